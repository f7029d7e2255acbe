package videobridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/e7canasta/orion-care-sensor/modules/videobridge/internal/diag"
	"github.com/e7canasta/orion-care-sensor/modules/videobridge/internal/eventq"
	"github.com/e7canasta/orion-care-sensor/modules/videobridge/internal/framebuf"
	"github.com/e7canasta/orion-care-sensor/modules/videobridge/internal/lifecycle"
)

// Streamer owns one decode pipeline and delivers its frames to the UI.
type Streamer struct {
	// Configuration
	id   string
	uri  string
	cfg  Config
	caps Capabilities

	logger *slog.Logger

	// Pipeline (owned exclusively)
	pipeline    Pipeline
	releaseOnce sync.Once
	releaseErr  error

	// Delivery
	queue  *eventq.Queue[Event]
	frames *framebuf.Buffer // nil in ModeChannel
	fb     *FrameBuffer
	sink   *sampleSink

	machine *lifecycle.Machine

	// Lifecycle
	mu       sync.Mutex
	halt     context.Context
	cancel   context.CancelFunc
	running  bool
	started  time.Time
	canvases []*Canvas
	wg       sync.WaitGroup
	stopOnce sync.Once
	stopErr  error

	droppedDiagnostics atomic.Uint64
	droppedMessages    atomic.Uint64
}

// New opens the pipeline for uri and resolves its capabilities.
//
// Construction is fail-fast and synchronous: on any failure a
// *ConstructionError is returned, no Streamer exists and no goroutine was
// started. An opened pipeline that fails the probe is set to Null.
//
// On success the Streamer is Playing (capabilities known) but no sample is
// delivered until Start.
func New(uri string, cfg Config) (*Streamer, *EventReceiver, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, nil, &ConstructionError{Op: "config", URI: uri, Err: err}
	}

	u, err := parseURI(uri)
	if err != nil {
		return nil, nil, &ConstructionError{Op: "parse", URI: uri, Err: err}
	}

	id := uuid.NewString()
	queue := eventq.New[Event](cfg.QueueCapacity)
	halt, cancel := context.WithCancel(context.Background())

	s := &Streamer{
		id:      id,
		uri:     uri,
		cfg:     cfg,
		queue:   queue,
		machine: lifecycle.New(),
		halt:    halt,
		cancel:  cancel,
	}

	// Records at or above DiagnosticLevel also reach the UI as events
	s.logger = slog.New(diag.Fanout{
		cfg.Logger.Handler(),
		diag.NewHandler(cfg.DiagnosticLevel, s.forwardDiagnostic),
	}).With("session", id, "uri", uri)

	if cfg.Mode == ModeFrameBuffer {
		s.frames = framebuf.New()
		s.fb = &FrameBuffer{buf: s.frames}
	}
	s.sink = newSampleSink(cfg.Mode, s.frames, queue, s.logger)

	if _, err := s.machine.Transition(StateLoading); err != nil {
		cancel()
		return nil, nil, &ConstructionError{Op: "open", URI: uri, Err: err}
	}

	s.logger.Debug("videobridge: opening pipeline", "mode", cfg.Mode)

	p, err := cfg.Opener.Open(u)
	if err != nil {
		s.fail()
		return nil, nil, &ConstructionError{Op: "open", URI: uri, Err: err}
	}
	s.pipeline = p

	caps, err := p.ProbeCapabilities(cfg.ProbeTimeout)
	if err == nil {
		err = validateCapabilities(caps)
	}
	if err != nil {
		if nerr := p.SetState(PipelineNull); nerr != nil {
			s.logger.Debug("videobridge: failed to release pipeline after probe", "error", nerr)
		}
		s.fail()
		return nil, nil, &ConstructionError{
			Op:  "probe",
			URI: uri,
			Err: fmt.Errorf("%w: %w", ErrCapabilities, err),
		}
	}
	s.caps = caps
	s.sink.cadence.SetNominal(caps.Framerate)

	if _, err := s.machine.Transition(StatePlaying); err != nil {
		_ = p.SetState(PipelineNull)
		cancel()
		return nil, nil, &ConstructionError{Op: "probe", URI: uri, Err: err}
	}

	s.logger.Info("videobridge: streamer ready",
		"resolution", caps.Resolution(),
		"framerate", caps.Framerate,
		"duration", caps.Duration,
		"mode", cfg.Mode,
	)

	return s, newEventReceiver(queue), nil
}

// fail moves a half-built Streamer to Error.
func (s *Streamer) fail() {
	if _, err := s.machine.Transition(StateError); err != nil {
		s.logger.Debug("videobridge: state transition rejected", "error", err)
	}
	s.cancel()
	s.queue.Close()
}

func parseURI(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, fmt.Errorf("%w: empty", ErrMalformedURI)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedURI, err)
	}
	if u.Scheme == "" {
		return nil, fmt.Errorf("%w: missing scheme", ErrMalformedURI)
	}
	if u.Host == "" && u.Path == "" && u.Opaque == "" {
		return nil, fmt.Errorf("%w: missing location", ErrMalformedURI)
	}
	return u, nil
}

func validateCapabilities(c Capabilities) error {
	if c.Width == 0 || c.Height == 0 {
		return fmt.Errorf("invalid resolution %s", c.Resolution())
	}
	if c.Framerate <= 0 {
		return fmt.Errorf("invalid framerate %.2f", c.Framerate)
	}
	if c.Duration < 0 {
		return fmt.Errorf("invalid duration %s", c.Duration)
	}
	return nil
}

// Start installs the callbacks, rewinds the stream and begins playback.
//
// The bus watch runs on a goroutine owned by the Streamer until EOS, Error
// or Stop.
func (s *Streamer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyStarted
	}
	if s.halt.Err() != nil {
		return ErrStopped
	}
	if st := s.machine.Current(); st != StatePlaying {
		return fmt.Errorf("%w (state %s)", ErrNotPlaying, st)
	}

	s.pipeline.SetSampleCallback(s.sink.onSample)
	s.pipeline.SetBusCallback(s.onBusMessage)

	// The probe pre-rolled the pipeline; rewind so the first frame is shown
	if err := s.pipeline.SeekToStart(); err != nil {
		s.logger.Warn("videobridge: rewind failed, playing from current position", "error", err)
	}

	if err := s.pipeline.SetState(PipelinePlaying); err != nil {
		s.pipeline.SetSampleCallback(nil)
		s.pipeline.SetBusCallback(nil)
		return fmt.Errorf("videobridge: failed to start pipeline: %w", err)
	}

	s.running = true
	s.started = time.Now()

	s.wg.Add(1)
	go s.watchBus()

	s.logger.Info("videobridge: streamer started",
		"resolution", s.caps.Resolution(),
		"tick", s.TickInterval(),
	)

	return nil
}

// watchBus runs the pipeline bus watch until it ends, then releases the
// pipeline if the session reached a terminal state on its own.
func (s *Streamer) watchBus() {
	defer s.wg.Done()

	err := s.pipeline.WatchBus(s.halt)
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("videobridge: bus watch failed", "error", err)
		s.terminate(StateError, &Message{
			Kind:   MessageError,
			Err:    &RuntimeError{Source: "bus", Message: err.Error(), Category: ErrCategoryUnknown},
			Source: "bus",
			Detail: err.Error(),
		})
	}

	if st := s.machine.Current(); st == StateEOS || st == StateError {
		if err := s.releasePipeline(); err != nil {
			s.logger.Error("videobridge: failed to release pipeline", "error", err)
		}
	}

	s.logger.Debug("videobridge: bus watch stopped")
}

// onBusMessage classifies one bus message. Returns false to end the watch.
func (s *Streamer) onBusMessage(msg BusMessage) bool {
	switch msg.Type {
	case BusEOS:
		s.logger.Info("videobridge: end of stream",
			"frames_processed", s.sink.frameCount.Load(),
			"uptime", s.uptime(),
		)
		s.terminate(StateEOS, &Message{
			Kind:   MessageEOS,
			Source: msg.Source,
			Detail: "end of stream",
		})
		return false

	case BusError:
		rerr := &RuntimeError{
			Source:   msg.Source,
			Message:  msg.Text,
			Debug:    msg.Debug,
			Category: ClassifyError(msg.Text, msg.Debug),
		}
		s.logger.Error("videobridge: pipeline error",
			"error", msg.Text,
			"debug", msg.Debug,
			"category", rerr.Category.String(),
			"source", msg.Source,
			"uptime", s.uptime(),
			"frames_processed", s.sink.frameCount.Load(),
		)
		s.terminate(StateError, &Message{
			Kind:   MessageError,
			Err:    rerr,
			Source: msg.Source,
			Detail: msg.Text,
		})
		return false

	case BusStateChanged, BusTag:
		s.logger.Debug("videobridge: bus message",
			"type", msg.Type.String(),
			"name", msg.Name,
			"source", msg.Source,
		)
		return true

	default:
		s.logger.Debug("videobridge: forwarding bus message",
			"name", msg.Name,
			"source", msg.Source,
		)
		ev := Event{
			Kind:    EventPipelineMessage,
			Message: &Message{Kind: MessageOther, Source: msg.Source, Detail: msg.Name},
		}
		if !s.queue.TrySend(ev) {
			s.droppedMessages.Add(1)
		}
		return true
	}
}

// terminate ends a Playing session on EOS or Error.
//
// Order: stop the sample path, enqueue the terminal event, finish bound
// canvases. Returns false if the session had already ended.
func (s *Streamer) terminate(to State, m *Message) bool {
	// Stopped before the state is visible: no sample lands behind the
	// terminal event
	s.sink.stop()

	from, err := s.machine.Transition(to)
	if err != nil {
		s.logger.Debug("videobridge: terminal message ignored", "state", from, "to", to)
		return false
	}

	// Blocking: the terminal event must reach the UI. Stop aborts the wait.
	if err := s.queue.SendContext(s.halt, Event{Kind: EventPipelineMessage, Message: m}); err != nil {
		s.logger.Debug("videobridge: terminal event not delivered", "error", err)
	}

	s.finishCanvases()
	return true
}

// releasePipeline sets the pipeline to Null and detaches the callbacks.
// Runs once; later calls return the first result.
func (s *Streamer) releasePipeline() error {
	s.releaseOnce.Do(func() {
		if err := s.pipeline.SetState(PipelineNull); err != nil {
			s.releaseErr = fmt.Errorf("videobridge: failed to stop pipeline: %w", err)
		}
		s.pipeline.SetSampleCallback(nil)
		s.pipeline.SetBusCallback(nil)
		s.logger.Debug("videobridge: pipeline released")
	})
	return s.releaseErr
}

// Stop tears the Streamer down.
//
// This method:
//  1. Stop-signals the sample path (late callbacks become no-ops)
//  2. Cancels the bus watch and waits for it (bounded by StopTimeout)
//  3. Sets the pipeline to Null and detaches callbacks
//  4. Closes the event queue (unblocks producers)
//  5. Finishes bound canvases
//  6. Closes the frame buffer
//
// Idempotent and safe from any goroutine in any state. A stopped Streamer
// cannot be restarted.
func (s *Streamer) Stop() error {
	s.stopOnce.Do(func() {
		s.stopErr = s.stop()
	})
	return s.stopErr
}

func (s *Streamer) stop() error {
	s.mu.Lock()
	if _, err := s.machine.Transition(StateStopped); err != nil {
		s.logger.Debug("videobridge: stopping ended session", "state", s.machine.Current())
	}
	s.sink.stop()
	s.cancel()
	s.mu.Unlock()

	s.logger.Info("videobridge: stopping streamer", "state", s.machine.Current())

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Debug("videobridge: bus watch stopped cleanly")
	case <-time.After(s.cfg.StopTimeout):
		s.logger.Warn("videobridge: stop timeout exceeded, bus watch may still be running",
			"timeout", s.cfg.StopTimeout)
	}

	err := s.releasePipeline()
	if err != nil {
		s.logger.Error("videobridge: failed to release pipeline", "error", err)
	}

	s.queue.Close()
	s.finishCanvases()
	if s.frames != nil {
		s.frames.Close()
	}

	s.logger.Info("videobridge: streamer stopped",
		"state", s.machine.Current(),
		"frames_processed", s.sink.frameCount.Load(),
		"late_samples", s.sink.late.Load(),
		"uptime", s.uptime(),
	)

	return err
}

// Bind attaches a canvas to this stream. The canvas is finished (its Draw
// returns WakeNoMoreFrames) on EOS, Error or Stop; binding after the session
// ended finishes it immediately.
func (s *Streamer) Bind(c *Canvas) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c.attach()
	s.canvases = append(s.canvases, c)

	if s.halt.Err() != nil || s.machine.Current().Terminal() {
		c.finish()
	}
}

func (s *Streamer) finishCanvases() {
	s.mu.Lock()
	canvases := s.canvases
	s.mu.Unlock()

	for _, c := range canvases {
		c.finish()
	}
}

// forwardDiagnostic is the diag sink. Must not log.
func (s *Streamer) forwardDiagnostic(rec diag.Record) {
	ev := Event{
		Kind: EventDiagnostic,
		Diagnostic: &Diagnostic{
			Time:    rec.Time,
			Level:   rec.Level,
			Message: rec.Message,
			Attrs:   rec.Attrs,
		},
	}
	if !s.queue.TrySend(ev) {
		s.droppedDiagnostics.Add(1)
	}
}

// ID returns the session ID used in logs and diagnostics.
func (s *Streamer) ID() string {
	return s.id
}

// URI returns the URI the Streamer was opened with.
func (s *Streamer) URI() string {
	return s.uri
}

// State returns the current lifecycle state.
func (s *Streamer) State() State {
	return s.machine.Current()
}

// Capabilities returns the probed stream capabilities.
func (s *Streamer) Capabilities() Capabilities {
	return s.caps
}

// Size returns the probed frame width and height.
func (s *Streamer) Size() (uint32, uint32) {
	return s.caps.Width, s.caps.Height
}

// Framerate returns the probed framerate in frames per second.
func (s *Streamer) Framerate() float64 {
	return s.caps.Framerate
}

// Duration returns the probed stream duration (0 for live sources).
func (s *Streamer) Duration() time.Duration {
	return s.caps.Duration
}

// Mode returns the delivery mode.
func (s *Streamer) Mode() DeliveryMode {
	return s.cfg.Mode
}

// FrameBuffer returns the shared frame buffer, or nil in ModeChannel.
func (s *Streamer) FrameBuffer() *FrameBuffer {
	return s.fb
}

// TickInterval returns the UI poll interval: TickMultiplier ticks per frame.
func (s *Streamer) TickInterval() time.Duration {
	return time.Duration(float64(time.Second) / (TickMultiplier * s.caps.Framerate))
}

func (s *Streamer) uptime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started.IsZero() {
		return 0
	}
	return time.Since(s.started)
}

// Stats returns current Streamer statistics.
//
// Thread-safe - counters are atomic.
func (s *Streamer) Stats() Stats {
	var skipped uint64
	if s.frames != nil {
		skipped = s.frames.Stats().SkippedWrites
	}
	c := s.sink.cadence.Stats()

	return Stats{
		SessionID:          s.id,
		State:              s.machine.Current(),
		Mode:               s.cfg.Mode,
		Resolution:         s.caps.Resolution(),
		FrameCount:         s.sink.frameCount.Load(),
		BytesRead:          s.sink.bytesRead.Load(),
		RejectedSamples:    s.sink.rejected.Load(),
		LateSamples:        s.sink.late.Load(),
		SkippedWrites:      skipped,
		DroppedSignals:     s.sink.droppedSignals.Load(),
		DroppedDiagnostics: s.droppedDiagnostics.Load(),
		DroppedMessages:    s.droppedMessages.Load(),
		BlockedSends:       s.queue.Stats().Blocked,
		FPSTarget:          s.caps.Framerate,
		FPSReal:            c.FPSMean,
		FPSStdDev:          c.FPSStdDev,
		FPSMin:             c.FPSMin,
		FPSMax:             c.FPSMax,
		JitterMS:           float64(c.JitterMean) / float64(time.Millisecond),
		JitterMaxMS:        float64(c.JitterMax) / float64(time.Millisecond),
		CadenceStable:      c.Stable,
		LatencyMS:          s.sink.latency(c).Milliseconds(),
	}
}
