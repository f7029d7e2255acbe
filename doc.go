// Package videobridge delivers decoded video frames from a media pipeline to
// a UI render loop.
//
// Decoding runs on pipeline-owned threads; the UI runs its own tick or draw
// cycle. The bridge between them never makes either side wait for more than
// one frame interval.
//
// # Quick Start
//
// Open a stream with the GStreamer pipeline and poll the frame buffer on
// every UI tick:
//
//	cfg := videobridge.DefaultConfig()
//	cfg.Opener = gstpipeline.NewOpener(gstpipeline.DefaultOptions())
//
//	streamer, events, err := videobridge.New("file:///videos/movie.mp4", cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer streamer.Stop()
//
//	if err := streamer.Start(); err != nil {
//	    log.Fatal(err)
//	}
//
//	var frame videobridge.Frame
//	ticker := time.NewTicker(streamer.TickInterval())
//	for range ticker.C {
//	    for _, ev := range events.DrainAvailable() {
//	        if ev.Terminal() {
//	            return
//	        }
//	    }
//	    if streamer.FrameBuffer().ReadInto(&frame) {
//	        upload(frame.Data, frame.Width, frame.Height)
//	    }
//	}
//
// # Delivery Modes
//
// Two strategies are available via Config.Mode:
//
//   - ModeFrameBuffer (default): the sample callback copies each frame into a
//     shared FrameBuffer and enqueues a payload-free EventNewSample token. The
//     write uses TryLock, so while the UI is reading the producer skips the
//     frame instead of waiting. Tokens are dropped when the queue is full.
//   - ModeChannel: every frame is copied into an EventNewSampleData event.
//     When the queue is full the producer blocks until the UI drains it
//     (bounded-block). Pair it with a Canvas when the renderer pulls frames
//     from its draw callback.
//
// # Lifecycle
//
// States: Idle → Loading → Playing → {EOS, Error}, plus Stopped for an
// explicit Stop while Playing. Terminal states are sticky; a new stream
// needs a new Streamer.
//
//   - New parses the URI, opens the pipeline and probes width, height,
//     framerate and duration (Config.ProbeTimeout, default 5s). Any failure
//     returns a *ConstructionError and nothing keeps running.
//   - Start installs the callbacks, rewinds to the first frame and plays.
//   - EOS and Error stop the sample path, enqueue the terminal event and
//     finish bound canvases. The pipeline is then set to Null.
//   - Stop is idempotent and safe from any goroutine.
//
// # Events
//
// The EventReceiver drains events in FIFO order per event type. Samples and
// bus messages come from different threads, so there is no global order
// between them. Everything enqueued before the first terminal event is
// delivered; samples after it are discarded.
//
// Log records at or above Config.DiagnosticLevel (default Warn) are also
// delivered as EventDiagnostic events.
//
// # Frame Format
//
//   - Format: RGBA8, row-major, no padding
//   - Size: Width × Height × 4 bytes
//   - Example (1080p): 1920 × 1080 × 4 = 8,294,400 bytes (~7.9 MB)
//
// # Thread Safety
//
//   - Streamer methods are safe for concurrent use
//   - EventReceiver and FrameBuffer.ReadInto belong to the UI goroutine
//   - Canvas.SetImage may be called from any goroutine; Canvas.Draw from one
//     render goroutine
package videobridge
