// Package handoff implements a single-slot, latest-wins mailbox with a
// blocking consumer, used when the renderer pulls frames from its draw
// callback instead of polling.
package handoff

import (
	"sync"

	"github.com/tevino/abool"
)

// Wake tells the consumer why TakeBlocking returned.
type Wake int

const (
	// WakeImage means an image was taken from the slot.
	WakeImage Wake = iota
	// WakeNoMoreFrames means the stream ended; keep the last frame and stop waiting.
	WakeNoMoreFrames
	// WakeSpurious means the waiter was nudged without an image.
	WakeSpurious
)

// String returns a human-readable wake reason.
func (w Wake) String() string {
	switch w {
	case WakeImage:
		return "image"
	case WakeNoMoreFrames:
		return "no-more-frames"
	case WakeSpurious:
		return "spurious"
	default:
		return "unknown"
	}
}

// Stats is a snapshot of slot activity.
type Stats struct {
	Sets     uint64 // images handed to Set
	Taken    uint64 // images handed out by TakeBlocking/TryTake
	Skipped  uint64 // images replaced before anyone took them
	Finishes uint64 // Finish calls that changed state
}

// Slot is a mailbox holding at most one pending value.
//
// Semantics:
//   - Set overwrites any pending value (frame skipping, never a FIFO)
//   - TakeBlocking waits on a sync.Cond, never busy-polls
//   - Finish wakes every waiter; a waiter with nothing pending gets WakeNoMoreFrames
//   - Nudge wakes waiters with WakeSpurious
//
// The dirty flag is readable without the lock so a render scheduler can
// decide cheaply whether a redraw is worth issuing.
type Slot[T any] struct {
	mu      sync.Mutex
	cond    *sync.Cond
	pending *T
	// finished is set by Finish and cleared by Reopen
	finished bool
	// nudges counts Nudge calls; waiters compare against their entry value
	nudges uint64

	dirty *abool.AtomicBool

	stats Stats
}

// New creates an empty slot.
func New[T any]() *Slot[T] {
	s := &Slot[T]{dirty: abool.New()}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Set replaces the pending value and wakes one waiter.
//
// Returns true when the caller should schedule a redraw.
func (s *Slot[T]) Set(v T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending != nil {
		s.stats.Skipped++
	}
	s.pending = &v
	s.stats.Sets++
	s.dirty.Set()

	s.cond.Signal()
	return true
}

// TakeBlocking waits until a value is pending, the slot is finished, or a
// nudge arrives.
//
// A pending value is always returned (WakeImage) before WakeNoMoreFrames, so
// nothing Set before Finish is lost. There is no timeout: callers only block
// while a stream is attached.
func (s *Slot[T]) TakeBlocking() (T, Wake) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.nudges
	for s.pending == nil && !s.finished && s.nudges == entry {
		s.cond.Wait()
	}

	var zero T
	switch {
	case s.pending != nil:
		return s.takeLocked(), WakeImage
	case s.finished:
		return zero, WakeNoMoreFrames
	default:
		return zero, WakeSpurious
	}
}

// TryTake takes the pending value without blocking.
func (s *Slot[T]) TryTake() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending == nil {
		var zero T
		return zero, false
	}
	return s.takeLocked(), true
}

func (s *Slot[T]) takeLocked() T {
	v := *s.pending
	s.pending = nil
	s.dirty.UnSet()
	s.stats.Taken++
	return v
}

// PeekDirty reports whether a value is pending. Lock-free.
func (s *Slot[T]) PeekDirty() bool {
	return s.dirty.IsSet()
}

// Nudge wakes every waiter without a value.
func (s *Slot[T]) Nudge() {
	s.mu.Lock()
	s.nudges++
	s.cond.Broadcast()
	s.mu.Unlock()
}

// Finish marks the end of the stream and wakes every waiter.
//
// Idempotent. Set keeps working after Finish (events already queued for the
// UI may still land), but TakeBlocking no longer blocks.
func (s *Slot[T]) Finish() {
	s.mu.Lock()
	if !s.finished {
		s.finished = true
		s.stats.Finishes++
	}
	s.cond.Broadcast()
	s.mu.Unlock()
}

// Finished reports whether Finish was called since the last Reopen.
func (s *Slot[T]) Finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finished
}

// Reopen clears the finished state and any pending value for a new stream.
func (s *Slot[T]) Reopen() {
	s.mu.Lock()
	s.finished = false
	s.pending = nil
	s.dirty.UnSet()
	s.mu.Unlock()
}

// Stats returns a snapshot of slot counters.
func (s *Slot[T]) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}
