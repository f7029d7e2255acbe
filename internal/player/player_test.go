package player

import (
	"context"
	"errors"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/e7canasta/orion-care-sensor/modules/videobridge"
	"github.com/e7canasta/orion-care-sensor/modules/videobridge/internal/config"
	"github.com/e7canasta/orion-care-sensor/modules/videobridge/pipelinetest"
)

var testCaps = videobridge.Capabilities{Width: 4, Height: 2, Framerate: 30, Duration: time.Second}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPlayerConfig(t *testing.T, mode string) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.URI = "file:///videos/movie.mp4"
	cfg.Mode = mode
	require.NoError(t, config.Validate(&cfg))
	return cfg
}

func runWithTimeout(t *testing.T, p *Player, ctx context.Context) (Summary, error) {
	t.Helper()
	type result struct {
		sum Summary
		err error
	}
	done := make(chan result, 1)
	go func() {
		sum, err := p.Run(ctx)
		done <- result{sum, err}
	}()

	select {
	case r := <-done:
		return r.sum, r.err
	case <-time.After(5 * time.Second):
		t.Fatal("player did not finish")
		return Summary{}, nil
	}
}

func TestPlayer_FrameBufferToEOS(t *testing.T) {
	cfg := testPlayerConfig(t, "framebuffer")
	cfg.Snapshot = config.SnapshotConfig{Dir: t.TempDir(), Every: 1}

	pipe := pipelinetest.New(testCaps)
	pl := New(cfg, pipelinetest.NewOpener(pipe), quietLogger())
	pl.OnReady = func(s *videobridge.Streamer) {
		for v := byte(1); v <= 3; v++ {
			assert.NoError(t, pipe.EmitSolid(4, 2, v))
		}
		pipe.PostEOS()
	}

	sum, err := runWithTimeout(t, pl, context.Background())
	require.NoError(t, err)

	require.NotNil(t, sum.Terminal)
	assert.Equal(t, videobridge.MessageEOS, sum.Terminal.Kind)
	assert.Equal(t, videobridge.ModeFrameBuffer, sum.Mode)
	assert.Equal(t, uint64(3), sum.Stats.FrameCount)
	assert.Equal(t, 1, sum.Rendered, "newest frame read once per tick")
	assert.Equal(t, 1, sum.Snapshots)
	assert.True(t, pipe.Released())

	files, err := filepath.Glob(filepath.Join(cfg.Snapshot.Dir, "*.png"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	f, err := os.Open(files[0])
	require.NoError(t, err)
	defer f.Close()

	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 4, img.Bounds().Dx())
	assert.Equal(t, 2, img.Bounds().Dy())

	r, _, _, _ := img.At(0, 0).RGBA()
	assert.Equal(t, uint32(3)*0x101, r, "last emitted frame")
}

func TestPlayer_ChannelModeDrawsThroughCanvas(t *testing.T) {
	cfg := testPlayerConfig(t, "channel")

	pipe := pipelinetest.New(testCaps)
	pl := New(cfg, pipelinetest.NewOpener(pipe), quietLogger())
	pl.OnReady = func(s *videobridge.Streamer) {
		for v := byte(1); v <= 3; v++ {
			assert.NoError(t, pipe.EmitSolid(4, 2, v))
		}
		pipe.PostEOS()
	}

	sum, err := runWithTimeout(t, pl, context.Background())
	require.NoError(t, err)

	require.NotNil(t, sum.Terminal)
	assert.Equal(t, videobridge.MessageEOS, sum.Terminal.Kind)
	assert.Equal(t, videobridge.ModeChannel, sum.Mode)

	assert.Equal(t, uint64(3), sum.Canvas.Sets)
	assert.Equal(t, sum.Canvas.Sets, sum.Canvas.Drawn+sum.Canvas.Skipped, "every frame drawn or replaced")
	assert.Equal(t, int(sum.Canvas.Drawn), sum.Rendered)
	assert.GreaterOrEqual(t, sum.Rendered, 1)
}

func TestPlayer_PipelineError(t *testing.T) {
	cfg := testPlayerConfig(t, "framebuffer")

	pipe := pipelinetest.New(testCaps)
	pl := New(cfg, pipelinetest.NewOpener(pipe), quietLogger())
	pl.OnReady = func(s *videobridge.Streamer) {
		pipe.PostError("decoder0", "Could not decode stream", "codec not supported")
	}

	sum, err := runWithTimeout(t, pl, context.Background())
	require.Error(t, err)

	var rerr *videobridge.RuntimeError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, "decoder0", rerr.Source)
	assert.Equal(t, videobridge.ErrCategoryCodec, rerr.Category)

	require.NotNil(t, sum.Terminal)
	assert.Equal(t, videobridge.MessageError, sum.Terminal.Kind)
	assert.GreaterOrEqual(t, sum.Diagnostics, 1, "error log forwarded as diagnostic")
}

func TestPlayer_Interrupted(t *testing.T) {
	cfg := testPlayerConfig(t, "channel")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pipe := pipelinetest.New(testCaps)
	pl := New(cfg, pipelinetest.NewOpener(pipe), quietLogger())
	pl.StatsInterval = time.Millisecond
	pl.OnReady = func(s *videobridge.Streamer) {
		assert.NoError(t, pipe.EmitSolid(4, 2, 9))
		cancel()
	}

	sum, err := runWithTimeout(t, pl, ctx)
	require.NoError(t, err)

	assert.Nil(t, sum.Terminal)
	assert.Equal(t, videobridge.StateStopped, sum.Stats.State)
	assert.True(t, pipe.Released())
}

func TestPlayer_OpenFailure(t *testing.T) {
	cfg := testPlayerConfig(t, "framebuffer")

	opener := pipelinetest.NewOpener(nil)
	opener.Err = errors.New("no such element: uridecodebin")

	pl := New(cfg, opener, quietLogger())
	sum, err := pl.Run(context.Background())
	require.Error(t, err)

	var cerr *videobridge.ConstructionError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "open", cerr.Op)
	assert.Empty(t, sum.SessionID)
}

func TestRenderer_SnapshotEveryAndMax(t *testing.T) {
	dir := t.TempDir()
	r := newRenderer(config.SnapshotConfig{Dir: dir, Every: 2, Max: 2}, quietLogger())
	require.NoError(t, r.prepare())

	frame := videobridge.Frame{Width: 2, Height: 2, Data: pipelinetest.Solid(2, 2, 7)}
	for i := 0; i < 10; i++ {
		r.frame(frame)
	}

	rendered, snapshots, failed := r.counts()
	assert.Equal(t, 10, rendered)
	assert.Equal(t, 2, snapshots)
	assert.Zero(t, failed)

	files, err := filepath.Glob(filepath.Join(dir, "*.png"))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(dir, "frame_000002.png"),
		filepath.Join(dir, "frame_000004.png"),
	}, files)
}

func TestSaveSnapshot_EmptyFrame(t *testing.T) {
	err := saveSnapshot(filepath.Join(t.TempDir(), "x.png"), videobridge.Frame{})
	assert.ErrorIs(t, err, errEmptyFrame)
}
