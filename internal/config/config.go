// Package config loads the video player shell configuration.
//
// Precedence (lowest to highest): defaults, YAML file, environment
// (VIDEOBRIDGE_*), command-line flags.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/e7canasta/orion-care-sensor/modules/videobridge"
)

// EnvPrefix prefixes every environment override (VIDEOBRIDGE_URI, ...).
const EnvPrefix = "VIDEOBRIDGE"

// Config represents the complete player configuration
type Config struct {
	URI  string `yaml:"uri" envconfig:"URI"`
	Mode string `yaml:"mode" envconfig:"MODE"` // framebuffer, channel

	QueueCapacity int           `yaml:"queue_capacity" envconfig:"QUEUE_CAPACITY"`
	ProbeTimeout  time.Duration `yaml:"probe_timeout" envconfig:"PROBE_TIMEOUT"`
	StopTimeout   time.Duration `yaml:"stop_timeout" envconfig:"STOP_TIMEOUT"`
	Sync          bool          `yaml:"sync" envconfig:"SYNC"` // pace playback against the pipeline clock

	Snapshot SnapshotConfig `yaml:"snapshot" envconfig:"SNAPSHOT"`

	LogLevel        string `yaml:"log_level" envconfig:"LOG_LEVEL"`               // debug, info, warn, error
	DiagnosticLevel string `yaml:"diagnostic_level" envconfig:"DIAGNOSTIC_LEVEL"` // minimum level delivered as events
}

// SnapshotConfig controls PNG snapshots of rendered frames
type SnapshotConfig struct {
	Dir   string `yaml:"dir" envconfig:"DIR"`     // empty disables snapshots
	Every int    `yaml:"every" envconfig:"EVERY"` // save every Nth rendered frame
	Max   int    `yaml:"max" envconfig:"MAX"`     // 0 = unlimited
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Mode:            videobridge.ModeFrameBuffer.String(),
		QueueCapacity:   videobridge.DefaultQueueCapacity,
		ProbeTimeout:    videobridge.DefaultProbeTimeout,
		StopTimeout:     videobridge.DefaultStopTimeout,
		Sync:            true,
		Snapshot:        SnapshotConfig{Every: 30},
		LogLevel:        "info",
		DiagnosticLevel: "warn",
	}
}

// Load reads an optional YAML file over the defaults and applies
// environment overrides. Flags are applied by the caller, then Validate.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to read environment: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func Validate(cfg *Config) error {
	if cfg.URI == "" {
		return fmt.Errorf("uri is required")
	}
	if _, err := videobridge.ParseDeliveryMode(cfg.Mode); err != nil {
		return err
	}
	if cfg.QueueCapacity < 1 {
		return fmt.Errorf("queue_capacity must be >= 1, got %d", cfg.QueueCapacity)
	}
	if cfg.ProbeTimeout <= 0 {
		return fmt.Errorf("probe_timeout must be > 0")
	}
	if cfg.StopTimeout <= 0 {
		return fmt.Errorf("stop_timeout must be > 0")
	}
	if _, err := ParseLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	if _, err := ParseLevel(cfg.DiagnosticLevel); err != nil {
		return fmt.Errorf("diagnostic_level: %w", err)
	}

	// Snapshot defaults
	if cfg.Snapshot.Every <= 0 {
		cfg.Snapshot.Every = 1
	}
	if cfg.Snapshot.Max < 0 {
		return fmt.Errorf("snapshot.max must be >= 0, got %d", cfg.Snapshot.Max)
	}

	return nil
}

// ParseLevel parses debug, info, warn or error.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unknown level %q", s)
	}
	return l, nil
}

// Bridge converts the configuration to a videobridge.Config. The caller
// sets Opener and Logger. cfg must be valid.
func (c Config) Bridge() (videobridge.Config, error) {
	mode, err := videobridge.ParseDeliveryMode(c.Mode)
	if err != nil {
		return videobridge.Config{}, err
	}
	level, err := ParseLevel(c.DiagnosticLevel)
	if err != nil {
		return videobridge.Config{}, err
	}

	out := videobridge.DefaultConfig()
	out.Mode = mode
	out.QueueCapacity = c.QueueCapacity
	out.ProbeTimeout = c.ProbeTimeout
	out.StopTimeout = c.StopTimeout
	out.DiagnosticLevel = level
	return out, nil
}
