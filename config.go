package videobridge

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/videobridge/internal/eventq"
)

const (
	// DefaultProbeTimeout bounds the capability probe.
	DefaultProbeTimeout = 5 * time.Second
	// DefaultStopTimeout bounds the wait for the bus goroutine during Stop.
	DefaultStopTimeout = 3 * time.Second
	// DefaultQueueCapacity is the number of pending events.
	DefaultQueueCapacity = eventq.DefaultCapacity
	// TickMultiplier is the UI tick rate relative to the stream framerate.
	TickMultiplier = 5
)

// Config contains configuration for a Streamer
type Config struct {
	// Opener constructs the decode pipeline (required)
	Opener Opener
	// Mode selects frame-buffer polling or payload channel delivery
	Mode DeliveryMode
	// QueueCapacity is the event queue size (default 10)
	QueueCapacity int
	// ProbeTimeout bounds the capability probe (default 5s)
	ProbeTimeout time.Duration
	// StopTimeout bounds the bus goroutine shutdown wait (default 3s)
	StopTimeout time.Duration
	// DiagnosticLevel is the minimum level forwarded as EventDiagnostic (default Warn)
	DiagnosticLevel slog.Leveler
	// Logger receives all Streamer logs (default slog.Default())
	Logger *slog.Logger
}

// DefaultConfig returns a Config with every optional field set. Opener must
// still be provided.
func DefaultConfig() Config {
	return Config{
		Mode:            ModeFrameBuffer,
		QueueCapacity:   DefaultQueueCapacity,
		ProbeTimeout:    DefaultProbeTimeout,
		StopTimeout:     DefaultStopTimeout,
		DiagnosticLevel: slog.LevelWarn,
	}
}

// withDefaults fills zero values.
func (c Config) withDefaults() Config {
	if c.QueueCapacity == 0 {
		c.QueueCapacity = DefaultQueueCapacity
	}
	if c.ProbeTimeout == 0 {
		c.ProbeTimeout = DefaultProbeTimeout
	}
	if c.StopTimeout == 0 {
		c.StopTimeout = DefaultStopTimeout
	}
	if c.DiagnosticLevel == nil {
		c.DiagnosticLevel = slog.LevelWarn
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// validate checks the configuration (fail-fast, before any resource exists).
func (c Config) validate() error {
	if c.Opener == nil {
		return fmt.Errorf("%w: opener is required", ErrInvalidConfig)
	}
	if c.Mode != ModeFrameBuffer && c.Mode != ModeChannel {
		return fmt.Errorf("%w: unknown delivery mode %d", ErrInvalidConfig, int(c.Mode))
	}
	if c.QueueCapacity < 1 {
		return fmt.Errorf("%w: queue capacity %d (must be >= 1)", ErrInvalidConfig, c.QueueCapacity)
	}
	if c.ProbeTimeout < 0 || c.StopTimeout < 0 {
		return fmt.Errorf("%w: negative timeout", ErrInvalidConfig)
	}
	return nil
}
