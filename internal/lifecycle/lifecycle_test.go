package lifecycle

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransition_HappyPath(t *testing.T) {
	m := New()
	assert.Equal(t, Idle, m.Current())

	for _, to := range []State{Loading, Playing, EOS} {
		_, err := m.Transition(to)
		require.NoError(t, err, "→ %s", to)
	}
	assert.Equal(t, EOS, m.Current())
	assert.True(t, m.Current().Terminal())
}

func TestTransition_Invalid(t *testing.T) {
	tests := []struct {
		name string
		path []State
		bad  State
	}{
		{"idle to playing", nil, Playing},
		{"idle to eos", nil, EOS},
		{"loading to eos", []State{Loading}, EOS},
		{"eos is sticky", []State{Loading, Playing, EOS}, Error},
		{"error is sticky", []State{Loading, Error}, Playing},
		{"stopped is sticky", []State{Loading, Playing, Stopped}, EOS},
		{"no back edge", []State{Loading, Playing}, Loading},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := New()
			for _, s := range tc.path {
				_, err := m.Transition(s)
				require.NoError(t, err)
			}
			before := m.Current()

			from, err := m.Transition(tc.bad)
			var terr *TransitionError
			require.True(t, errors.As(err, &terr))
			assert.Equal(t, before, from)
			assert.Equal(t, before, m.Current(), "rejected transition must not change state")
			assert.Contains(t, err.Error(), tc.bad.String())
		})
	}
}

func TestTransition_ConcurrentTerminalOnlyOneWins(t *testing.T) {
	for round := 0; round < 100; round++ {
		m := New()
		_, _ = m.Transition(Loading)
		_, _ = m.Transition(Playing)

		var wins atomic.Int32
		var wg sync.WaitGroup
		for _, to := range []State{EOS, Error, Stopped, EOS, Error} {
			wg.Add(1)
			go func(to State) {
				defer wg.Done()
				if _, err := m.Transition(to); err == nil {
					wins.Add(1)
				}
			}(to)
		}
		wg.Wait()

		require.Equal(t, int32(1), wins.Load())
		require.True(t, m.Current().Terminal())
	}
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "loading", Loading.String())
	assert.Equal(t, "playing", Playing.String())
	assert.Equal(t, "eos", EOS.String())
	assert.Equal(t, "error", Error.String())
	assert.Equal(t, "stopped", Stopped.String())
	assert.Equal(t, "state(42)", State(42).String())
}
