// Package eventq implements the bounded multi-producer/single-consumer event
// queue between pipeline threads and the UI thread.
package eventq

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// DefaultCapacity is the number of pending events a queue holds before
// producers block (Send) or drop (TrySend).
const DefaultCapacity = 10

// ErrClosed is returned by Send and Recv once the queue is closed.
var ErrClosed = errors.New("eventq: queue is closed")

// Stats is a snapshot of queue counters.
type Stats struct {
	Sent    uint64 // events accepted by Send or TrySend
	Dropped uint64 // TrySend calls rejected because the queue was full
	Blocked uint64 // Send calls that had to wait for space
	Pending int    // events currently queued
}

// Queue is a bounded FIFO.
//
// Producers:
//   - Send blocks while the queue is full (bounded-block policy) until space
//     frees up or the queue is closed.
//   - TrySend never blocks; it reports false when the queue is full.
//
// Consumer:
//   - DrainAvailable returns everything queued right now, never blocks.
//   - Recv blocks for the next event.
//
// Close never closes the underlying channel (producers may be mid-send), it
// closes done instead. Events queued before Close stay drainable.
type Queue[T any] struct {
	ch   chan T
	done chan struct{}
	once sync.Once

	sent    atomic.Uint64
	dropped atomic.Uint64
	blocked atomic.Uint64
}

// New creates a queue. capacity <= 0 selects DefaultCapacity.
func New[T any](capacity int) *Queue[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue[T]{
		ch:   make(chan T, capacity),
		done: make(chan struct{}),
	}
}

// Cap returns the queue capacity.
func (q *Queue[T]) Cap() int {
	return cap(q.ch)
}

// Len returns the number of queued events.
func (q *Queue[T]) Len() int {
	return len(q.ch)
}

// Send enqueues ev, blocking while the queue is full.
//
// Returns ErrClosed if the queue is closed before ev could be enqueued.
func (q *Queue[T]) Send(ev T) error {
	return q.SendContext(context.Background(), ev)
}

// SendContext is Send with an abort signal: it returns ctx.Err() if ctx is
// done while waiting for space. With space available ev is enqueued even if
// ctx is already done.
func (q *Queue[T]) SendContext(ctx context.Context, ev T) error {
	select {
	case <-q.done:
		return ErrClosed
	default:
	}

	// Fast path: space available
	select {
	case q.ch <- ev:
		q.sent.Add(1)
		return nil
	default:
	}

	q.blocked.Add(1)
	select {
	case q.ch <- ev:
		q.sent.Add(1)
		return nil
	case <-q.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TrySend enqueues ev if there is space. Never blocks.
func (q *Queue[T]) TrySend(ev T) bool {
	select {
	case <-q.done:
		return false
	default:
	}

	select {
	case q.ch <- ev:
		q.sent.Add(1)
		return true
	default:
		q.dropped.Add(1)
		return false
	}
}

// DrainAvailable returns every currently queued event in FIFO order.
//
// Never blocks. Returns nil when nothing is queued. Events sent while the
// drain is running may or may not be included; they are never lost.
func (q *Queue[T]) DrainAvailable() []T {
	n := len(q.ch)
	if n == 0 {
		return nil
	}

	out := make([]T, 0, n)
	for {
		select {
		case ev := <-q.ch:
			out = append(out, ev)
			// Bound the drain to what was visible plus what arrived meanwhile,
			// but never spin on a producer that keeps refilling.
			if len(out) >= cap(q.ch)*2 {
				return out
			}
		default:
			return out
		}
	}
}

// Recv blocks until an event is available, ctx is done, or the queue is
// closed and empty.
func (q *Queue[T]) Recv(ctx context.Context) (T, error) {
	var zero T

	select {
	case ev := <-q.ch:
		return ev, nil
	default:
	}

	select {
	case ev := <-q.ch:
		return ev, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-q.done:
		// Closed: hand out what is left before reporting ErrClosed
		select {
		case ev := <-q.ch:
			return ev, nil
		default:
			return zero, ErrClosed
		}
	}
}

// Close stops accepting events and unblocks every waiting producer.
//
// Idempotent.
func (q *Queue[T]) Close() {
	q.once.Do(func() { close(q.done) })
}

// Done is closed when the queue is closed.
func (q *Queue[T]) Done() <-chan struct{} {
	return q.done
}

// Closed reports whether Close has been called.
func (q *Queue[T]) Closed() bool {
	select {
	case <-q.done:
		return true
	default:
		return false
	}
}

// Stats returns a snapshot of queue counters.
func (q *Queue[T]) Stats() Stats {
	return Stats{
		Sent:    q.sent.Load(),
		Dropped: q.dropped.Load(),
		Blocked: q.blocked.Load(),
		Pending: len(q.ch),
	}
}
