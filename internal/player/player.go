// Package player drives a videobridge.Streamer without a window: a UI-style
// tick loop, a canvas draw loop in channel mode and PNG snapshots.
package player

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/e7canasta/orion-care-sensor/modules/videobridge"
	"github.com/e7canasta/orion-care-sensor/modules/videobridge/internal/config"
)

// Player drives one Streamer headlessly: it runs the UI tick loop, renders
// frames to an optional PNG snapshot directory and reports the outcome.
type Player struct {
	cfg    config.Config
	opener videobridge.Opener
	logger *slog.Logger

	// StatsInterval enables periodic stats logging when > 0
	StatsInterval time.Duration
	// OnReady is called after Start succeeds (optional)
	OnReady func(s *videobridge.Streamer)

	render *renderer
}

// Summary describes a finished playback.
type Summary struct {
	SessionID    string
	Capabilities videobridge.Capabilities
	Mode         videobridge.DeliveryMode
	// Terminal is nil when playback was interrupted before EOS or Error
	Terminal    *videobridge.Message
	Rendered    int
	Snapshots   int
	SnapshotErr int
	Diagnostics int
	Uptime      time.Duration
	Stats       videobridge.Stats
	Canvas      videobridge.CanvasStats
}

// New creates a player for a validated configuration.
func New(cfg config.Config, opener videobridge.Opener, logger *slog.Logger) *Player {
	if logger == nil {
		logger = slog.Default()
	}
	return &Player{
		cfg:    cfg,
		opener: opener,
		logger: logger,
		render: newRenderer(cfg.Snapshot, logger),
	}
}

// Run plays the configured URI until EOS, a pipeline error or ctx is done.
//
// Returns the pipeline's *videobridge.RuntimeError when playback ended with
// an error; an interrupted playback is not an error.
func (p *Player) Run(ctx context.Context) (Summary, error) {
	bcfg, err := p.cfg.Bridge()
	if err != nil {
		return Summary{}, err
	}
	bcfg.Opener = p.opener
	bcfg.Logger = p.logger

	streamer, events, err := videobridge.New(p.cfg.URI, bcfg)
	if err != nil {
		return Summary{}, err
	}
	defer streamer.Stop()

	sum := Summary{
		SessionID:    streamer.ID(),
		Capabilities: streamer.Capabilities(),
		Mode:         streamer.Mode(),
	}

	if err := p.render.prepare(); err != nil {
		return sum, err
	}

	var canvas *videobridge.Canvas
	if streamer.Mode() == videobridge.ModeChannel {
		canvas = videobridge.NewCanvas()
		streamer.Bind(canvas)
	}

	if err := streamer.Start(); err != nil {
		return sum, fmt.Errorf("failed to start streamer: %w", err)
	}
	start := time.Now()

	if p.OnReady != nil {
		p.OnReady(streamer)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// fed is closed once the tick loop stops handing frames to the canvas
	fed := make(chan struct{})

	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		defer cancel()
		defer close(fed)
		defer streamer.Stop()

		term, diags := p.tickLoop(gctx, streamer, events, canvas)
		sum.Terminal = term
		sum.Diagnostics = diags
		return nil
	})

	if canvas != nil {
		g.Go(func() error {
			p.drawLoop(canvas, fed)
			return nil
		})
	}

	if p.StatsInterval > 0 {
		g.Go(func() error {
			p.statsLoop(gctx, streamer)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return sum, err
	}

	sum.Uptime = time.Since(start)
	sum.Stats = streamer.Stats()
	sum.Rendered, sum.Snapshots, sum.SnapshotErr = p.render.counts()
	if canvas != nil {
		sum.Canvas = canvas.Stats()
	}

	if sum.Terminal != nil && sum.Terminal.Kind == videobridge.MessageError {
		return sum, sum.Terminal.Err
	}
	return sum, nil
}

// tickLoop is the UI thread: it drains events once per tick interval.
func (p *Player) tickLoop(ctx context.Context, s *videobridge.Streamer, events *videobridge.EventReceiver, canvas *videobridge.Canvas) (*videobridge.Message, int) {
	ticker := time.NewTicker(s.TickInterval())
	defer ticker.Stop()

	var (
		frame videobridge.Frame
		diags int
	)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("playback interrupted")
			return nil, diags

		case <-events.Done():
			// Stopped elsewhere; deliver whatever is left
			for _, ev := range events.DrainAvailable() {
				p.handle(ev, canvas, &diags)
			}
			m, _ := events.TerminalMessage()
			return m, diags

		case <-ticker.C:
			fresh := false
			for _, ev := range events.DrainAvailable() {
				if ev.Kind == videobridge.EventNewSample {
					fresh = true
				}
				p.handle(ev, canvas, &diags)
			}

			if fresh || events.Terminated() {
				if s.FrameBuffer().ReadInto(&frame) {
					p.render.frame(frame)
				}
			}

			if m, ok := events.TerminalMessage(); ok {
				return m, diags
			}
		}
	}
}

func (p *Player) handle(ev videobridge.Event, canvas *videobridge.Canvas, diags *int) {
	switch ev.Kind {
	case videobridge.EventNewSampleData:
		if canvas != nil && ev.Sample != nil {
			canvas.SetFrame(*ev.Sample)
		}

	case videobridge.EventDiagnostic:
		*diags++
		d := ev.Diagnostic
		p.logger.Debug("diagnostic", "level", d.Level, "msg", d.Message, "attrs", d.Attrs)

	case videobridge.EventPipelineMessage:
		m := ev.Message
		switch m.Kind {
		case videobridge.MessageEOS:
			p.logger.Info("end of stream", "source", m.Source)
		case videobridge.MessageError:
			p.logger.Error("pipeline error",
				"error", m.Err,
				"category", m.Err.Category.String(),
				"source", m.Source,
			)
		default:
			p.logger.Debug("pipeline message", "source", m.Source, "detail", m.Detail)
		}
	}
}

// drawLoop is the render thread for channel mode.
func (p *Player) drawLoop(canvas *videobridge.Canvas, fed <-chan struct{}) {
	for {
		f, wake := canvas.Draw()
		switch wake {
		case videobridge.WakeImage:
			p.render.frame(f)

		case videobridge.WakeNoMoreFrames:
			// The tick loop may still hand over frames queued before the
			// terminal event; pick up the newest one once it is done.
			<-fed
			if f, ok := canvas.TryDraw(); ok {
				p.render.frame(f)
			}
			return
		}
	}
}

func (p *Player) statsLoop(ctx context.Context, s *videobridge.Streamer) {
	ticker := time.NewTicker(p.StatsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st := s.Stats()
			rendered, _, _ := p.render.counts()
			p.logger.Info("stream stats",
				"state", st.State.String(),
				"frames", st.FrameCount,
				"rendered", rendered,
				"fps_target", st.FPSTarget,
				"fps_real", fmt.Sprintf("%.2f", st.FPSReal),
				"jitter_ms", fmt.Sprintf("%.2f", st.JitterMS),
				"stable", st.CadenceStable,
				"latency_ms", st.LatencyMS,
				"skipped_writes", st.SkippedWrites,
				"dropped_signals", st.DroppedSignals,
			)
		}
	}
}

// renderer counts rendered frames and saves PNG snapshots.
type renderer struct {
	cfg    config.SnapshotConfig
	logger *slog.Logger

	mu          sync.Mutex
	rendered    int
	snapshots   int
	snapshotErr int
}

func newRenderer(cfg config.SnapshotConfig, logger *slog.Logger) *renderer {
	if cfg.Every <= 0 {
		cfg.Every = 1
	}
	return &renderer{cfg: cfg, logger: logger}
}

func (r *renderer) prepare() error {
	if r.cfg.Dir == "" {
		return nil
	}
	if err := os.MkdirAll(r.cfg.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	return nil
}

func (r *renderer) frame(f videobridge.Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rendered++
	if r.cfg.Dir == "" || r.rendered%r.cfg.Every != 0 {
		return
	}
	if r.cfg.Max > 0 && r.snapshots >= r.cfg.Max {
		return
	}

	path := filepath.Join(r.cfg.Dir, fmt.Sprintf("frame_%06d.png", r.rendered))
	if err := saveSnapshot(path, f); err != nil {
		r.snapshotErr++
		r.logger.Error("failed to save snapshot", "error", err, "frame", r.rendered)
		return
	}
	r.snapshots++
}

func (r *renderer) counts() (rendered, snapshots, failed int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rendered, r.snapshots, r.snapshotErr
}

var errEmptyFrame = errors.New("empty frame")

// saveSnapshot writes an RGBA8 frame as PNG.
func saveSnapshot(path string, f videobridge.Frame) error {
	if f.Empty() {
		return errEmptyFrame
	}

	w, h := int(f.Width), int(f.Height)
	img := &image.RGBA{
		Pix:    f.Data[:f.Size()],
		Stride: w * 4,
		Rect:   image.Rect(0, 0, w, h),
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if err := png.Encode(file, img); err != nil {
		return fmt.Errorf("failed to encode PNG: %w", err)
	}
	return nil
}
