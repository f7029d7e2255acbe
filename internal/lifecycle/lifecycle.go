// Package lifecycle tracks the state of one decode session.
package lifecycle

import (
	"fmt"
	"sync/atomic"
)

// State of a decode session.
//
//	Idle → Loading → Playing → {EOS, Error}
//	Loading → {Error, Stopped}
//	Playing → Stopped
//
// EOS, Error and Stopped are terminal for a session.
type State int32

const (
	Idle State = iota
	Loading
	Playing
	EOS
	Error
	Stopped
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Playing:
		return "playing"
	case EOS:
		return "eos"
	case Error:
		return "error"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == EOS || s == Error || s == Stopped
}

var edges = map[State][]State{
	Idle:    {Loading},
	Loading: {Playing, Error, Stopped},
	Playing: {EOS, Error, Stopped},
}

// Allowed reports whether from → to is a valid transition.
func Allowed(from, to State) bool {
	for _, s := range edges[from] {
		if s == to {
			return true
		}
	}
	return false
}

// TransitionError reports a rejected transition.
type TransitionError struct {
	From, To State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("lifecycle: invalid transition %s → %s", e.From, e.To)
}

// Machine holds the current state. Safe for concurrent use; concurrent
// transitions are linearised so exactly one terminal transition wins.
type Machine struct {
	state atomic.Int32
}

// New creates a machine in Idle.
func New() *Machine {
	return &Machine{}
}

// Current returns the current state.
func (m *Machine) Current() State {
	return State(m.state.Load())
}

// Transition moves to the target state.
//
// Returns the state it left, or a *TransitionError if the edge is not valid
// from the current state.
func (m *Machine) Transition(to State) (State, error) {
	for {
		from := m.Current()
		if !Allowed(from, to) {
			return from, &TransitionError{From: from, To: to}
		}
		if m.state.CompareAndSwap(int32(from), int32(to)) {
			return from, nil
		}
	}
}
