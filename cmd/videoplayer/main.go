// Command videoplayer plays a media URI through videobridge without a
// window: frames are rendered on a UI-style tick loop and optionally saved
// as PNG snapshots.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/videobridge"
	"github.com/e7canasta/orion-care-sensor/modules/videobridge/gstpipeline"
	"github.com/e7canasta/orion-care-sensor/modules/videobridge/internal/config"
	"github.com/e7canasta/orion-care-sensor/modules/videobridge/internal/player"
)

// Version information
const version = "v0.1.0"

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "", "YAML config file (optional)")
	uri := flag.String("uri", "", "Media URI, e.g. file:///videos/movie.mp4 (required)")
	mode := flag.String("mode", "framebuffer", "Delivery mode: framebuffer, channel")
	snapshotDir := flag.String("snapshot-dir", "", "Directory to save PNG snapshots (optional)")
	snapshotEvery := flag.Int("snapshot-every", 30, "Save every Nth rendered frame")
	maxSnapshots := flag.Int("max-snapshots", 0, "Maximum snapshots to save (0 = unlimited)")
	noSync := flag.Bool("no-sync", false, "Decode as fast as possible instead of real time")
	statsInterval := flag.Int("stats-interval", 10, "Seconds between stats reports (0 = off)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("videoplayer %s\n", version)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Flags win over file and environment, but only when given
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "uri":
			cfg.URI = *uri
		case "mode":
			cfg.Mode = *mode
		case "snapshot-dir":
			cfg.Snapshot.Dir = *snapshotDir
		case "snapshot-every":
			cfg.Snapshot.Every = *snapshotEvery
		case "max-snapshots":
			cfg.Snapshot.Max = *maxSnapshots
		case "no-sync":
			cfg.Sync = !*noSync
		case "debug":
			if *debug {
				cfg.LogLevel = "debug"
			}
		}
	})

	if cfg.URI == "" {
		fmt.Fprintf(os.Stderr, "Error: --uri flag is required\n\n")
		fmt.Fprintf(os.Stderr, "Usage example:\n")
		fmt.Fprintf(os.Stderr, "  videoplayer --uri file:///videos/movie.mp4\n")
		fmt.Fprintf(os.Stderr, "  videoplayer --uri rtsp://192.168.1.100/stream --mode channel --snapshot-dir ./frames\n\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	if err := config.Validate(&cfg); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Set up logging
	logLevel, _ := config.ParseLevel(cfg.LogLevel)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	fmt.Printf("\n")
	fmt.Printf("Video Player %s\n", version)
	fmt.Printf("  URI:           %s\n", cfg.URI)
	fmt.Printf("  Mode:          %s\n", cfg.Mode)
	fmt.Printf("  Sync:          %v\n", cfg.Sync)
	if cfg.Snapshot.Dir != "" {
		fmt.Printf("  Snapshots:     %s (every %d frames)\n", cfg.Snapshot.Dir, cfg.Snapshot.Every)
	} else {
		fmt.Printf("  Snapshots:     (none)\n")
	}
	fmt.Printf("\n")

	opts := gstpipeline.DefaultOptions()
	opts.Sync = cfg.Sync
	opts.Logger = logger

	p := player.New(cfg, gstpipeline.NewOpener(opts), logger)
	p.StatsInterval = time.Duration(*statsInterval) * time.Second
	p.OnReady = func(s *videobridge.Streamer) {
		caps := s.Capabilities()
		slog.Info("playback started",
			"session", s.ID(),
			"resolution", caps.Resolution(),
			"framerate", caps.Framerate,
			"duration", caps.Duration,
			"tick", s.TickInterval(),
		)
	}

	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sum, err := p.Run(ctx)
	printSummary(sum)

	if err != nil {
		var cerr *videobridge.ConstructionError
		if errors.As(err, &cerr) {
			slog.Error("failed to open stream", "op", cerr.Op, "error", cerr.Err)
		} else {
			slog.Error("playback failed", "error", err)
		}
		os.Exit(1)
	}

	slog.Info("playback completed successfully")
}

func printSummary(sum player.Summary) {
	if sum.SessionID == "" {
		return
	}

	outcome := "interrupted"
	if sum.Terminal != nil {
		outcome = sum.Terminal.Kind.String()
	}

	fmt.Printf("\n")
	fmt.Printf("═══════════════════════════════════════════════════════════\n")
	fmt.Printf("                     Final Statistics                      \n")
	fmt.Printf("═══════════════════════════════════════════════════════════\n")
	fmt.Printf("  Session:            %s\n", sum.SessionID)
	fmt.Printf("  Outcome:            %s\n", outcome)
	fmt.Printf("  Resolution:         %s @ %.2f fps\n", sum.Capabilities.Resolution(), sum.Capabilities.Framerate)
	fmt.Printf("  Mode:               %s\n", sum.Mode)
	fmt.Printf("  Uptime:             %s\n", sum.Uptime.Round(time.Millisecond))
	fmt.Printf("  Frames Decoded:     %d frames\n", sum.Stats.FrameCount)
	fmt.Printf("  Frames Rendered:    %d frames\n", sum.Rendered)
	if sum.Snapshots > 0 || sum.SnapshotErr > 0 {
		fmt.Printf("  Snapshots Saved:    %d (%d failed)\n", sum.Snapshots, sum.SnapshotErr)
	}
	fmt.Printf("  Average FPS:        %.2f fps\n", sum.Stats.FPSReal)
	if sum.Stats.FrameCount > 1 {
		fmt.Printf("  FPS Range:          %.1f - %.1f fps (stddev %.2f)\n", sum.Stats.FPSMin, sum.Stats.FPSMax, sum.Stats.FPSStdDev)
		fmt.Printf("  Jitter Mean/Max:    %.2f / %.2f ms\n", sum.Stats.JitterMS, sum.Stats.JitterMaxMS)
		fmt.Printf("  Cadence Stable:     %v\n", sum.Stats.CadenceStable)
	}
	fmt.Printf("  Bytes Read:         %.2f MB\n", float64(sum.Stats.BytesRead)/1024/1024)
	fmt.Printf("  Skipped Writes:     %d\n", sum.Stats.SkippedWrites)
	fmt.Printf("  Dropped Signals:    %d\n", sum.Stats.DroppedSignals)
	if sum.Mode == videobridge.ModeChannel {
		fmt.Printf("  Canvas Skipped:     %d frames\n", sum.Canvas.Skipped)
	}
	fmt.Printf("  Diagnostics:        %d\n", sum.Diagnostics)
	fmt.Printf("═══════════════════════════════════════════════════════════\n")
	fmt.Printf("\n")
}
