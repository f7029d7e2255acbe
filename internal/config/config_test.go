package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/e7canasta/orion-care-sensor/modules/videobridge"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "player.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_YAMLOverDefaults(t *testing.T) {
	path := writeFile(t, `
uri: file:///videos/movie.mp4
mode: channel
probe_timeout: 2s
snapshot:
  dir: /tmp/frames
  every: 10
log_level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "file:///videos/movie.mp4", cfg.URI)
	assert.Equal(t, "channel", cfg.Mode)
	assert.Equal(t, 2*time.Second, cfg.ProbeTimeout)
	assert.Equal(t, "/tmp/frames", cfg.Snapshot.Dir)
	assert.Equal(t, 10, cfg.Snapshot.Every)
	assert.Equal(t, "debug", cfg.LogLevel)

	// Untouched fields keep their defaults
	assert.Equal(t, videobridge.DefaultQueueCapacity, cfg.QueueCapacity)
	assert.Equal(t, videobridge.DefaultStopTimeout, cfg.StopTimeout)
	assert.True(t, cfg.Sync)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	path := writeFile(t, "uri: file:///a.mp4\nqueue_capacity: 4\n")

	t.Setenv("VIDEOBRIDGE_URI", "file:///b.mp4")
	t.Setenv("VIDEOBRIDGE_SYNC", "false")
	t.Setenv("VIDEOBRIDGE_SNAPSHOT_DIR", "/var/snap")
	t.Setenv("VIDEOBRIDGE_STOP_TIMEOUT", "750ms")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "file:///b.mp4", cfg.URI)
	assert.Equal(t, 4, cfg.QueueCapacity, "unset env keeps YAML value")
	assert.False(t, cfg.Sync)
	assert.Equal(t, "/var/snap", cfg.Snapshot.Dir)
	assert.Equal(t, 750*time.Millisecond, cfg.StopTimeout)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "uri: [unterminated"))
	assert.Error(t, err)

	t.Setenv("VIDEOBRIDGE_QUEUE_CAPACITY", "many")
	_, err = Load("")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing uri", func(c *Config) { c.URI = "" }, true},
		{"bad mode", func(c *Config) { c.Mode = "pipe" }, true},
		{"zero capacity", func(c *Config) { c.QueueCapacity = 0 }, true},
		{"zero probe timeout", func(c *Config) { c.ProbeTimeout = 0 }, true},
		{"zero stop timeout", func(c *Config) { c.StopTimeout = 0 }, true},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, true},
		{"bad diagnostic level", func(c *Config) { c.DiagnosticLevel = "" }, true},
		{"negative snapshot max", func(c *Config) { c.Snapshot.Max = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.URI = "file:///movie.mp4"
			tt.mutate(&cfg)

			err := Validate(&cfg)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidate_SnapshotEveryDefault(t *testing.T) {
	cfg := Default()
	cfg.URI = "file:///movie.mp4"
	cfg.Snapshot.Every = 0

	require.NoError(t, Validate(&cfg))
	assert.Equal(t, 1, cfg.Snapshot.Every)
}

func TestBridge(t *testing.T) {
	cfg := Default()
	cfg.Mode = "channel"
	cfg.QueueCapacity = 3
	cfg.DiagnosticLevel = "error"

	bc, err := cfg.Bridge()
	require.NoError(t, err)

	assert.Equal(t, videobridge.ModeChannel, bc.Mode)
	assert.Equal(t, 3, bc.QueueCapacity)
	assert.Equal(t, slog.LevelError, bc.DiagnosticLevel)
	assert.Nil(t, bc.Opener)
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
}
