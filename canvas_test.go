package videobridge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(w, h uint32, v byte) []byte {
	data := make([]byte, int(w)*int(h)*4)
	for i := range data {
		data[i] = v
	}
	return data
}

func TestCanvas_SetImageValidates(t *testing.T) {
	c := NewCanvas()

	assert.False(t, c.SetImage(make([]byte, 3), 1, 1), "short payload")
	assert.False(t, c.SetImage(nil, 0, 4), "zero width")
	assert.False(t, c.NeedsRedraw())
	assert.Equal(t, uint64(2), c.Stats().Rejected)

	assert.True(t, c.SetImage(solid(2, 2, 1), 2, 2))
	assert.True(t, c.NeedsRedraw())
}

func TestCanvas_SetFrameValidates(t *testing.T) {
	tests := []struct {
		name  string
		frame Frame
	}{
		{"short payload", Frame{Width: 4, Height: 4, Data: make([]byte, 3)}},
		{"one byte short", Frame{Width: 2, Height: 2, Data: make([]byte, 15)}},
		{"zero height", Frame{Width: 4, Height: 0, Data: make([]byte, 16)}},
		{"nil data", Frame{Width: 1, Height: 1}},
	}

	c := NewCanvas()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, c.SetFrame(tt.frame))
		})
	}
	assert.False(t, c.NeedsRedraw())
	assert.Equal(t, uint64(len(tests)), c.Stats().Rejected)

	require.True(t, c.SetFrame(Frame{Width: 2, Height: 2, Data: solid(2, 2, 5)}))
	f, wake := c.Draw()
	require.Equal(t, WakeImage, wake)
	assert.Len(t, f.Data, 16)
}

func TestCanvas_SetImageCopies(t *testing.T) {
	c := NewCanvas()
	src := solid(1, 1, 3)

	require.True(t, c.SetImage(src, 1, 1))
	src[0] = 99

	f, wake := c.Draw()
	require.Equal(t, WakeImage, wake)
	assert.Equal(t, byte(3), f.Data[0])
}

func TestCanvas_LatestWins(t *testing.T) {
	c := NewCanvas()

	for i := byte(1); i <= 5; i++ {
		require.True(t, c.SetImage(solid(1, 1, i), 1, 1))
	}

	f, wake := c.Draw()
	require.Equal(t, WakeImage, wake)
	assert.Equal(t, byte(5), f.Data[0])
	assert.False(t, c.NeedsRedraw())

	s := c.Stats()
	assert.Equal(t, uint64(5), s.Sets)
	assert.Equal(t, uint64(4), s.Skipped)
	assert.Equal(t, uint64(1), s.Drawn)
}

func TestCanvas_DrawBlocksUntilImage(t *testing.T) {
	c := NewCanvas()

	got := make(chan Frame, 1)
	go func() {
		f, _ := c.Draw()
		got <- f
	}()

	select {
	case <-got:
		t.Fatal("Draw returned without an image")
	case <-time.After(20 * time.Millisecond):
	}

	c.SetImage(solid(2, 1, 8), 2, 1)

	select {
	case f := <-got:
		assert.Equal(t, uint32(2), f.Width)
	case <-time.After(time.Second):
		t.Fatal("Draw not woken by SetImage")
	}
}

func TestCanvas_NudgeKeepsLastFrame(t *testing.T) {
	c := NewCanvas()
	require.True(t, c.SetImage(solid(1, 1, 4), 1, 1))
	_, wake := c.Draw()
	require.Equal(t, WakeImage, wake)

	woke := make(chan Wake, 1)
	var last Frame
	go func() {
		f, w := c.Draw()
		last = f
		woke <- w
	}()

	// A nudge only wakes a waiter that is already parked; repeat until it lands
	deadline := time.After(time.Second)
	for {
		select {
		case w := <-woke:
			assert.Equal(t, WakeSpurious, w)
			assert.Equal(t, byte(4), last.Data[0])
			return
		case <-deadline:
			t.Fatal("Draw not woken by Nudge")
		case <-time.After(5 * time.Millisecond):
			c.Nudge()
		}
	}
}

func TestCanvas_Resizes(t *testing.T) {
	c := NewCanvas()

	sizes := [][2]uint32{{4, 4}, {4, 4}, {8, 4}, {8, 4}, {2, 2}}
	for _, sz := range sizes {
		require.True(t, c.SetImage(solid(sz[0], sz[1], 1), sz[0], sz[1]))
		f, wake := c.Draw()
		require.Equal(t, WakeImage, wake)
		assert.Equal(t, sz[0], f.Width)
	}

	assert.Equal(t, uint64(2), c.Stats().Resizes)
}

func TestCanvas_TryDraw(t *testing.T) {
	c := NewCanvas()

	f, ok := c.TryDraw()
	assert.False(t, ok, "nothing pending")
	assert.True(t, f.Empty())

	require.True(t, c.SetImage(solid(4, 4, 1), 4, 4))
	require.True(t, c.SetImage(solid(2, 2, 2), 2, 2))

	f, ok = c.TryDraw()
	require.True(t, ok)
	assert.Equal(t, byte(2), f.Data[0], "latest frame wins")

	f, ok = c.TryDraw()
	assert.False(t, ok)
	assert.Equal(t, uint32(2), f.Width, "keeps returning the last frame")

	require.True(t, c.SetImage(solid(4, 2, 3), 4, 2))
	_, ok = c.TryDraw()
	require.True(t, ok)

	st := c.Stats()
	assert.Equal(t, uint64(2), st.Drawn)
	assert.Equal(t, uint64(1), st.Skipped)
	assert.Equal(t, uint64(1), st.Resizes)
}

func TestCanvas_FinishAndReattach(t *testing.T) {
	c := NewCanvas()
	c.attach()
	assert.True(t, c.Attached())

	require.True(t, c.SetImage(solid(1, 1, 6), 1, 1))
	c.finish()
	assert.False(t, c.Attached())
	assert.True(t, c.Finished())

	// Pending frame first, then no more frames
	f, wake := c.Draw()
	assert.Equal(t, WakeImage, wake)
	assert.Equal(t, byte(6), f.Data[0])

	f, wake = c.Draw()
	assert.Equal(t, WakeNoMoreFrames, wake)
	assert.Equal(t, byte(6), f.Data[0], "last frame kept")

	c.attach()
	assert.False(t, c.Finished())
	assert.False(t, c.NeedsRedraw())
}

func TestCanvas_ImplementsImageSetter(t *testing.T) {
	var setter ImageSetter = NewCanvas()
	assert.True(t, setter.SetImage(solid(1, 1, 0), 1, 1))
}
