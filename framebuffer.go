package videobridge

import "github.com/e7canasta/orion-care-sensor/modules/videobridge/internal/framebuf"

// FrameBufferStats is a snapshot of frame buffer activity.
type FrameBufferStats = framebuf.Stats

// FrameBuffer is the UI-side read face of the shared frame buffer used in
// ModeFrameBuffer. The pipeline sample thread writes; the UI thread reads on
// its tick.
type FrameBuffer struct {
	buf *framebuf.Buffer
}

// ReadInto copies the latest frame into dst, reusing dst.Data capacity.
//
// Returns false and leaves dst untouched when nothing new has been written
// since the previous read, no frame exists yet, or the Streamer was stopped.
func (fb *FrameBuffer) ReadInto(dst *Frame) bool {
	if fb == nil {
		return false
	}
	return fb.buf.ReadInto(dst)
}

// Reset drops the current frame and releases the backing store, which
// otherwise only grows. The next ReadInto returns false until a new frame
// is written. Call from the UI goroutine.
func (fb *FrameBuffer) Reset() {
	if fb == nil {
		return
	}
	fb.buf.Reset()
}

// Stats returns a snapshot of buffer counters.
func (fb *FrameBuffer) Stats() FrameBufferStats {
	if fb == nil {
		return FrameBufferStats{}
	}
	return fb.buf.Stats()
}
