package handoff

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSet_LatestWins(t *testing.T) {
	s := New[int]()

	assert.True(t, s.Set(1))
	assert.True(t, s.Set(2))
	assert.True(t, s.Set(3))
	assert.True(t, s.PeekDirty())

	v, wake := s.TakeBlocking()
	assert.Equal(t, WakeImage, wake)
	assert.Equal(t, 3, v)
	assert.False(t, s.PeekDirty())

	_, ok := s.TryTake()
	assert.False(t, ok, "skipped frames are never queued")

	st := s.Stats()
	assert.Equal(t, uint64(3), st.Sets)
	assert.Equal(t, uint64(2), st.Skipped)
	assert.Equal(t, uint64(1), st.Taken)
}

func TestTakeBlocking_WaitsForSet(t *testing.T) {
	s := New[string]()

	got := make(chan string, 1)
	go func() {
		v, wake := s.TakeBlocking()
		if wake == WakeImage {
			got <- v
		}
	}()

	select {
	case <-got:
		t.Fatal("TakeBlocking returned before Set")
	case <-time.After(20 * time.Millisecond):
	}

	s.Set("frame")
	select {
	case v := <-got:
		assert.Equal(t, "frame", v)
	case <-time.After(time.Second):
		t.Fatal("TakeBlocking not woken by Set")
	}
}

func TestFinish_WakesWithNoMoreFrames(t *testing.T) {
	s := New[int]()

	const waiters = 3
	wakes := make(chan Wake, waiters)
	var wg sync.WaitGroup
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, w := s.TakeBlocking()
			wakes <- w
		}()
	}

	time.Sleep(10 * time.Millisecond)
	s.Finish()
	s.Finish() // idempotent
	wg.Wait()
	close(wakes)

	for w := range wakes {
		assert.Equal(t, WakeNoMoreFrames, w)
	}
	assert.Equal(t, uint64(1), s.Stats().Finishes)

	// Finished slot never blocks
	_, w := s.TakeBlocking()
	assert.Equal(t, WakeNoMoreFrames, w)
}

func TestFinish_PendingImageDeliveredFirst(t *testing.T) {
	s := New[int]()
	s.Set(9)
	s.Finish()

	v, w := s.TakeBlocking()
	assert.Equal(t, WakeImage, w)
	assert.Equal(t, 9, v)

	_, w = s.TakeBlocking()
	assert.Equal(t, WakeNoMoreFrames, w)
}

func TestNudge_SpuriousWake(t *testing.T) {
	s := New[int]()

	wake := make(chan Wake, 1)
	go func() {
		_, w := s.TakeBlocking()
		wake <- w
	}()

	time.Sleep(10 * time.Millisecond)
	s.Nudge()

	select {
	case w := <-wake:
		assert.Equal(t, WakeSpurious, w)
	case <-time.After(time.Second):
		t.Fatal("Nudge did not wake the waiter")
	}
}

func TestReopen(t *testing.T) {
	s := New[int]()
	s.Set(1)
	s.Finish()
	s.Reopen()

	assert.False(t, s.Finished())
	assert.False(t, s.PeekDirty())
	_, ok := s.TryTake()
	assert.False(t, ok)

	go func() {
		time.Sleep(5 * time.Millisecond)
		s.Set(2)
	}()
	v, w := s.TakeBlocking()
	assert.Equal(t, WakeImage, w)
	assert.Equal(t, 2, v)
}

// TestTakeBlocking_NeverOlderThanLatestSet hammers Set from a producer while
// a consumer takes. Every taken value must be newer than the previous one.
func TestTakeBlocking_NeverOlderThanLatestSet(t *testing.T) {
	s := New[int]()
	const n = 10000

	go func() {
		for i := 1; i <= n; i++ {
			s.Set(i)
		}
		s.Finish()
	}()

	last := 0
	for {
		v, w := s.TakeBlocking()
		if w == WakeNoMoreFrames {
			break
		}
		require.Equal(t, WakeImage, w)
		require.Greater(t, v, last)
		last = v
	}
	assert.Equal(t, n, last, "the final Set is always delivered")
}

func TestWake_String(t *testing.T) {
	assert.Equal(t, "image", WakeImage.String())
	assert.Equal(t, "no-more-frames", WakeNoMoreFrames.String())
	assert.Equal(t, "spurious", WakeSpurious.String())
	assert.Equal(t, "unknown", Wake(99).String())
}
