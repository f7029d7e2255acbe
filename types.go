package videobridge

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/videobridge/internal/framebuf"
	"github.com/e7canasta/orion-care-sensor/modules/videobridge/internal/handoff"
	"github.com/e7canasta/orion-care-sensor/modules/videobridge/internal/lifecycle"
)

// Frame is re-exported from the internal frame buffer package.
// See internal/framebuf for the layout contract.
type Frame = framebuf.Frame

// State is re-exported from the internal lifecycle package.
type State = lifecycle.State

// Session states.
const (
	StateIdle    = lifecycle.Idle
	StateLoading = lifecycle.Loading
	StatePlaying = lifecycle.Playing
	StateEOS     = lifecycle.EOS
	StateError   = lifecycle.Error
	StateStopped = lifecycle.Stopped
)

// Wake is re-exported from the internal handoff package.
type Wake = handoff.Wake

// Canvas wake reasons.
const (
	WakeImage        = handoff.WakeImage
	WakeNoMoreFrames = handoff.WakeNoMoreFrames
	WakeSpurious     = handoff.WakeSpurious
)

// DeliveryMode selects how decoded samples reach the UI.
type DeliveryMode int

const (
	// ModeFrameBuffer writes samples into the shared FrameBuffer and sends a
	// payload-free EventNewSample token. The UI polls on its tick.
	ModeFrameBuffer DeliveryMode = iota
	// ModeChannel sends every sample as an EventNewSampleData payload. When the
	// queue is full the producer blocks until the UI drains it.
	ModeChannel
)

// String returns a human-readable mode name.
func (m DeliveryMode) String() string {
	switch m {
	case ModeFrameBuffer:
		return "framebuffer"
	case ModeChannel:
		return "channel"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseDeliveryMode parses "framebuffer" or "channel".
func ParseDeliveryMode(s string) (DeliveryMode, error) {
	switch s {
	case "framebuffer", "":
		return ModeFrameBuffer, nil
	case "channel":
		return ModeChannel, nil
	default:
		return 0, fmt.Errorf("videobridge: unknown delivery mode %q (must be framebuffer or channel)", s)
	}
}

// EventKind tags an Event.
type EventKind int

const (
	// EventNewSample signals that the FrameBuffer holds a newer frame.
	EventNewSample EventKind = iota
	// EventNewSampleData carries a self-contained frame in Event.Sample.
	EventNewSampleData
	// EventPipelineMessage carries a bus message in Event.Message.
	EventPipelineMessage
	// EventDiagnostic carries a structured log record in Event.Diagnostic.
	EventDiagnostic
)

// String returns a human-readable event kind.
func (k EventKind) String() string {
	switch k {
	case EventNewSample:
		return "new-sample"
	case EventNewSampleData:
		return "new-sample-data"
	case EventPipelineMessage:
		return "pipeline-message"
	case EventDiagnostic:
		return "diagnostic"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// MessageKind classifies a pipeline message delivered to the UI.
type MessageKind int

const (
	// MessageEOS ends playback normally.
	MessageEOS MessageKind = iota
	// MessageError ends playback with a RuntimeError.
	MessageError
	// MessageOther is informational and never changes state.
	MessageOther
)

// String returns a human-readable message kind.
func (k MessageKind) String() string {
	switch k {
	case MessageEOS:
		return "eos"
	case MessageError:
		return "error"
	case MessageOther:
		return "other"
	default:
		return fmt.Sprintf("message(%d)", int(k))
	}
}

// Message is a pipeline bus message translated for the UI.
type Message struct {
	Kind MessageKind
	// Err is set for MessageError
	Err *RuntimeError
	// Source names the pipeline element that posted the message
	Source string
	// Detail is a short description (bus message type name for MessageOther)
	Detail string
}

// Diagnostic is a structured, level-tagged record emitted by the Streamer.
type Diagnostic struct {
	Time    time.Time
	Level   slog.Level
	Message string
	Attrs   map[string]any
}

// Event is delivered from pipeline threads to the UI thread.
//
// Ordering is FIFO per event type only: samples and bus messages come from
// different threads.
type Event struct {
	Kind       EventKind
	Sample     *Frame      // EventNewSampleData
	Message    *Message    // EventPipelineMessage
	Diagnostic *Diagnostic // EventDiagnostic
}

// Terminal reports whether the event ends the session (EOS or Error).
func (e Event) Terminal() bool {
	return e.Kind == EventPipelineMessage && e.Message != nil &&
		(e.Message.Kind == MessageEOS || e.Message.Kind == MessageError)
}

// IsSample reports whether the event announces a frame.
func (e Event) IsSample() bool {
	return e.Kind == EventNewSample || e.Kind == EventNewSampleData
}

// Capabilities are resolved once by the capability probe and never change
// for the lifetime of a Streamer.
type Capabilities struct {
	Width     uint32
	Height    uint32
	Framerate float64
	Duration  time.Duration
}

// Resolution returns "WxH".
func (c Capabilities) Resolution() string {
	return fmt.Sprintf("%dx%d", c.Width, c.Height)
}

// Stats contains current Streamer statistics.
type Stats struct {
	// SessionID identifies the Streamer in logs and diagnostics
	SessionID string
	// State is the lifecycle state at snapshot time
	State State
	// Mode is the configured delivery mode
	Mode DeliveryMode
	// Resolution is the probed resolution (e.g., "1920x1080")
	Resolution string
	// FrameCount is the number of samples accepted by the producer path
	FrameCount uint64
	// BytesRead is the total sample payload received from the pipeline
	BytesRead uint64
	// RejectedSamples counts malformed samples mapped to a flow error
	RejectedSamples uint64
	// LateSamples counts callbacks that arrived after the stop signal
	LateSamples uint64
	// SkippedWrites counts frame buffer writes skipped under contention
	SkippedWrites uint64
	// DroppedSignals counts NewSample tokens not enqueued (queue full)
	DroppedSignals uint64
	// DroppedDiagnostics counts diagnostic events not enqueued (queue full)
	DroppedDiagnostics uint64
	// DroppedMessages counts informational bus messages not enqueued (queue full)
	DroppedMessages uint64
	// BlockedSends counts payload sends that waited for queue space
	BlockedSends uint64
	// FPSTarget is the probed stream framerate
	FPSTarget float64
	// FPSReal is the measured sample rate since the first sample
	FPSReal float64
	// FPSStdDev is the standard deviation of instantaneous FPS
	FPSStdDev float64
	FPSMin    float64
	FPSMax    float64
	// JitterMS is the mean deviation from the nominal frame interval
	JitterMS    float64
	JitterMaxMS float64
	// CadenceStable is true when FPS stddev < 15% of mean and jitter < 20%
	// of the nominal interval
	CadenceStable bool
	// LatencyMS is the time since the last sample in milliseconds
	LatencyMS int64
}
