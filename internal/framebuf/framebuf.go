// Package framebuf implements the single-producer/single-consumer frame buffer
// shared between the decode pipeline thread and the UI thread.
//
// This package is INTERNAL - clients read frames through videobridge.FrameBuffer.
package framebuf

import (
	"sync"
	"sync/atomic"
)

// BytesPerPixel is fixed by the RGBA8 output contract of the decode pipeline.
const BytesPerPixel = 4

// Frame is one decoded RGBA8 image.
//
// Layout: row-major, no padding, len(Data) >= Width*Height*4 whenever both
// dimensions are nonzero.
type Frame struct {
	// Width in pixels
	Width uint32
	// Height in pixels
	Height uint32
	// Data holds packed RGBA8 bytes
	Data []byte
}

// Size returns the number of bytes the frame dimensions require.
func (f *Frame) Size() int {
	return RequiredSize(f.Width, f.Height)
}

// Empty reports whether the frame carries no image.
func (f *Frame) Empty() bool {
	return f.Width == 0 || f.Height == 0
}

// RequiredSize returns width*height*4.
func RequiredSize(width, height uint32) int {
	return int(width) * int(height) * BytesPerPixel
}

// Stats is a snapshot of buffer activity.
type Stats struct {
	// Writes counts samples copied into the buffer
	Writes uint64
	// SkippedWrites counts writes abandoned because the consumer held the lock
	SkippedWrites uint64
	// RejectedWrites counts malformed samples (short payload, zero dimensions)
	RejectedWrites uint64
	// Reads counts frames copied out to the consumer
	Reads uint64
	// Generation increments on every successful write
	Generation uint64
	// Capacity is the current backing store size in bytes
	Capacity int
}

// Buffer is the shared frame buffer.
//
// Locking discipline:
//   - Write is called only from the producer (pipeline sample thread). It uses
//     TryLock so the realtime decode path never waits for the UI.
//   - ReadInto is called only from the consumer (UI thread).
//   - The backing slice never leaves the lock; both sides copy by value.
//
// Resizing policy: grow-only; Reset shrinks explicitly.
type Buffer struct {
	mu     sync.Mutex
	frame  Frame
	gen    uint64 // protected by mu
	seen   uint64 // generation last handed to the consumer, protected by mu
	closed bool   // protected by mu

	writes   atomic.Uint64
	skipped  atomic.Uint64
	rejected atomic.Uint64
	reads    atomic.Uint64
}

// New creates an empty buffer.
func New() *Buffer {
	return &Buffer{}
}

// Write copies a sample into the buffer.
//
// Returns false when the write did not happen:
//   - the consumer holds the lock (skip, stale frame is redrawn next cycle)
//   - the sample is malformed (zero dimensions or short payload)
//   - the buffer is closed
//
// Never blocks longer than one copy of width*height*4 bytes.
func (b *Buffer) Write(width, height uint32, src []byte) bool {
	need := RequiredSize(width, height)
	if need == 0 || len(src) < need {
		b.rejected.Add(1)
		return false
	}

	if !b.mu.TryLock() {
		b.skipped.Add(1)
		return false
	}
	defer b.mu.Unlock()

	if b.closed {
		return false
	}

	if cap(b.frame.Data) < need {
		b.frame.Data = make([]byte, need)
	} else {
		b.frame.Data = b.frame.Data[:need]
	}
	copy(b.frame.Data, src[:need])
	b.frame.Width = width
	b.frame.Height = height
	b.gen++

	b.writes.Add(1)
	return true
}

// ReadInto copies the current frame into dst, reusing dst.Data when it is
// large enough.
//
// Returns false and leaves dst untouched if the buffer holds no image, is
// closed, or has not been written since the previous successful read.
func (b *Buffer) ReadInto(dst *Frame) bool {
	if dst == nil {
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed || b.frame.Empty() || b.gen == b.seen {
		return false
	}

	need := b.frame.Size()
	if cap(dst.Data) < need {
		dst.Data = make([]byte, need)
	} else {
		dst.Data = dst.Data[:need]
	}
	copy(dst.Data, b.frame.Data[:need])
	dst.Width = b.frame.Width
	dst.Height = b.frame.Height
	b.seen = b.gen

	b.reads.Add(1)
	return true
}

// Reset drops the current image and releases the backing store.
func (b *Buffer) Reset() {
	b.mu.Lock()
	b.frame = Frame{}
	b.seen = b.gen
	b.mu.Unlock()
}

// Close releases the backing store. Every later Write and ReadInto is a no-op.
//
// Idempotent.
func (b *Buffer) Close() {
	b.mu.Lock()
	b.closed = true
	b.frame = Frame{}
	b.mu.Unlock()
}

// Closed reports whether Close has been called.
func (b *Buffer) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Stats returns a snapshot of buffer counters.
func (b *Buffer) Stats() Stats {
	b.mu.Lock()
	gen := b.gen
	capacity := cap(b.frame.Data)
	b.mu.Unlock()

	return Stats{
		Writes:         b.writes.Load(),
		SkippedWrites:  b.skipped.Load(),
		RejectedWrites: b.rejected.Load(),
		Reads:          b.reads.Load(),
		Generation:     gen,
		Capacity:       capacity,
	}
}
