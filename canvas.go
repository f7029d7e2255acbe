package videobridge

import (
	"sync/atomic"

	"github.com/tevino/abool"

	"github.com/e7canasta/orion-care-sensor/modules/videobridge/internal/framebuf"
	"github.com/e7canasta/orion-care-sensor/modules/videobridge/internal/handoff"
)

// CanvasStats is a snapshot of canvas activity.
type CanvasStats struct {
	// Sets counts frames handed to SetImage
	Sets uint64
	// Drawn counts frames returned by Draw with WakeImage
	Drawn uint64
	// Skipped counts frames replaced before they were drawn
	Skipped uint64
	// Rejected counts SetImage calls with a malformed payload
	Rejected uint64
	// Resizes counts dimension changes between drawn frames
	Resizes uint64
}

// Canvas is a render surface fed by a blocking handoff.
//
// The producer side (SetImage) never blocks. The draw side (Draw) blocks
// until a frame is pending, the stream ends, or Nudge is called. Only the
// most recent frame is kept: undrawn frames are replaced, never queued.
//
// Draw is meant to be called from a single render goroutine.
type Canvas struct {
	slot     *handoff.Slot[Frame]
	attached *abool.AtomicBool

	// last is owned by the render goroutine
	last Frame

	drawn    atomic.Uint64
	resizes  atomic.Uint64
	rejected atomic.Uint64
}

// NewCanvas creates a detached canvas.
func NewCanvas() *Canvas {
	return &Canvas{
		slot:     handoff.New[Frame](),
		attached: abool.New(),
	}
}

// SetImage copies an RGBA8 payload into the canvas and wakes the draw side.
//
// Returns true when a redraw should be scheduled, false for payloads shorter
// than width*height*4 or with zero dimensions.
func (c *Canvas) SetImage(data []byte, width, height uint32) bool {
	need := framebuf.RequiredSize(width, height)
	if need == 0 || len(data) < need {
		c.rejected.Add(1)
		return false
	}

	f := Frame{Width: width, Height: height, Data: make([]byte, need)}
	copy(f.Data, data[:need])
	return c.slot.Set(f)
}

// SetFrame hands over a frame without copying. The caller must not touch
// f.Data afterwards (frames from EventNewSampleData qualify).
func (c *Canvas) SetFrame(f Frame) bool {
	if f.Empty() || len(f.Data) < f.Size() {
		c.rejected.Add(1)
		return false
	}
	return c.slot.Set(f)
}

// NeedsRedraw reports whether an undrawn frame is pending. Lock-free.
func (c *Canvas) NeedsRedraw() bool {
	return c.slot.PeekDirty()
}

// Draw blocks for the next frame.
//
// On WakeImage the new frame is returned. On WakeNoMoreFrames and
// WakeSpurious the last drawn frame is returned so the surface keeps
// showing it (zero Frame if nothing was drawn yet).
func (c *Canvas) Draw() (Frame, Wake) {
	f, wake := c.slot.TakeBlocking()
	if wake != WakeImage {
		return c.last, wake
	}

	c.accept(f)
	return f, WakeImage
}

// TryDraw takes the pending frame without blocking. Returns false when
// nothing new was set since the last draw.
func (c *Canvas) TryDraw() (Frame, bool) {
	f, ok := c.slot.TryTake()
	if !ok {
		return c.last, false
	}
	c.accept(f)
	return f, true
}

func (c *Canvas) accept(f Frame) {
	if !c.last.Empty() && (f.Width != c.last.Width || f.Height != c.last.Height) {
		c.resizes.Add(1)
	}
	c.last = f
	c.drawn.Add(1)
}

// Last returns the most recently drawn frame.
func (c *Canvas) Last() Frame {
	return c.last
}

// Nudge wakes a blocked Draw with WakeSpurious.
func (c *Canvas) Nudge() {
	c.slot.Nudge()
}

// Attached reports whether a live stream feeds this canvas.
func (c *Canvas) Attached() bool {
	return c.attached.IsSet()
}

// Finished reports whether the attached stream has ended.
func (c *Canvas) Finished() bool {
	return c.slot.Finished()
}

// Stats returns a snapshot of canvas counters.
func (c *Canvas) Stats() CanvasStats {
	s := c.slot.Stats()
	return CanvasStats{
		Sets:     s.Sets,
		Drawn:    c.drawn.Load(),
		Skipped:  s.Skipped,
		Rejected: c.rejected.Load(),
		Resizes:  c.resizes.Load(),
	}
}

// attach binds the canvas to a new stream.
func (c *Canvas) attach() {
	c.slot.Reopen()
	c.attached.Set()
}

// finish ends the stream: blocked and future Draw calls return
// WakeNoMoreFrames once the pending frame is drawn.
func (c *Canvas) finish() {
	c.attached.UnSet()
	c.slot.Finish()
}
