package videobridge

import (
	"context"
	"errors"

	"github.com/e7canasta/orion-care-sensor/modules/videobridge/internal/eventq"
)

// EventReceiver is the UI-side end of the event queue.
//
// It applies the terminal rule: every event queued before the first EOS or
// Error is delivered in order, the terminal event is delivered, and sample
// events after it are discarded.
//
// Single consumer: call from the UI goroutine only.
type EventReceiver struct {
	q          *eventq.Queue[Event]
	terminated bool
	terminal   *Message
	discarded  uint64
}

func newEventReceiver(q *eventq.Queue[Event]) *EventReceiver {
	return &EventReceiver{q: q}
}

// DrainAvailable returns every event queued right now, up to and including
// the first terminal event. Never blocks.
//
// Once a terminal event has been returned, later calls return nil.
func (r *EventReceiver) DrainAvailable() []Event {
	if r.terminated {
		r.discard(r.q.DrainAvailable())
		return nil
	}

	evs := r.q.DrainAvailable()
	for i, ev := range evs {
		if ev.Terminal() {
			r.markTerminated(ev)
			r.discard(evs[i+1:])
			return evs[:i+1]
		}
	}
	return evs
}

// Recv blocks for the next event.
//
// Returns ErrEndOfEvents after the terminal event has been delivered or the
// Streamer was stopped and the queue is empty.
func (r *EventReceiver) Recv(ctx context.Context) (Event, error) {
	if r.terminated {
		return Event{}, ErrEndOfEvents
	}

	ev, err := r.q.Recv(ctx)
	if err != nil {
		if errors.Is(err, eventq.ErrClosed) {
			return Event{}, ErrEndOfEvents
		}
		return Event{}, err
	}
	if ev.Terminal() {
		r.markTerminated(ev)
	}
	return ev, nil
}

// Terminated reports whether the terminal event has been delivered.
func (r *EventReceiver) Terminated() bool {
	return r.terminated
}

// TerminalMessage returns the terminal message once delivered.
func (r *EventReceiver) TerminalMessage() (*Message, bool) {
	return r.terminal, r.terminal != nil
}

// Discarded returns the number of events dropped after the terminal event.
func (r *EventReceiver) Discarded() uint64 {
	return r.discarded
}

// Done is closed when the Streamer stops accepting events.
func (r *EventReceiver) Done() <-chan struct{} {
	return r.q.Done()
}

func (r *EventReceiver) markTerminated(ev Event) {
	r.terminated = true
	r.terminal = ev.Message
}

func (r *EventReceiver) discard(evs []Event) {
	r.discarded += uint64(len(evs))
}
