package videobridge

import (
	"context"
	"net/url"
	"time"
)

// PipelineState is the target state passed to Pipeline.SetState.
type PipelineState int

const (
	PipelineNull PipelineState = iota
	PipelinePaused
	PipelinePlaying
)

// String returns a human-readable pipeline state.
func (s PipelineState) String() string {
	switch s {
	case PipelineNull:
		return "null"
	case PipelinePaused:
		return "paused"
	case PipelinePlaying:
		return "playing"
	default:
		return "unknown"
	}
}

// BusMessageType is the raw type of a pipeline bus message.
type BusMessageType int

const (
	BusEOS BusMessageType = iota
	BusError
	BusStateChanged
	BusTag
	BusOther
)

// String returns a human-readable bus message type.
func (t BusMessageType) String() string {
	switch t {
	case BusEOS:
		return "eos"
	case BusError:
		return "error"
	case BusStateChanged:
		return "state-changed"
	case BusTag:
		return "tag"
	default:
		return "other"
	}
}

// BusMessage is an asynchronous lifecycle notification from the pipeline.
type BusMessage struct {
	Type BusMessageType
	// Source names the element that posted the message
	Source string
	// Name is the pipeline's own name for the message type (for logs)
	Name string
	// Text is the error text for BusError
	Text string
	// Debug is the debug string for BusError
	Debug string
}

// SampleCallback receives one decoded RGBA8 sample.
//
// data is only valid for the duration of the call. width and height are
// re-read per sample in case of a mid-stream format change. Returning a
// non-nil error maps to a pipeline flow error (ErrStopped maps to flushing).
//
// Runs on a pipeline-owned thread and must not block for long.
type SampleCallback func(data []byte, width, height uint32) error

// BusCallback receives bus messages. Returning false stops the watch.
type BusCallback func(msg BusMessage) bool

// Pipeline is the decode pipeline collaborator.
//
// Implementations must guarantee:
//   - the sample callback is never invoked after SetState(PipelineNull) returns
//   - WatchBus dispatches to the bus callback on the caller's goroutine
//   - SetState(PipelineNull) is idempotent
type Pipeline interface {
	// ProbeCapabilities pre-rolls the pipeline and resolves width, height,
	// framerate and duration, failing after timeout.
	ProbeCapabilities(timeout time.Duration) (Capabilities, error)

	// SetSampleCallback installs the sample callback (nil detaches it).
	SetSampleCallback(cb SampleCallback)

	// SetBusCallback installs the bus callback (nil detaches it).
	SetBusCallback(cb BusCallback)

	// WatchBus dispatches bus messages to the bus callback until ctx is done
	// or the callback returns false.
	WatchBus(ctx context.Context) error

	// SetState changes the pipeline state.
	SetState(state PipelineState) error

	// SeekToStart flush-seeks to the beginning of the stream.
	SeekToStart() error
}

// Opener constructs a Pipeline for a URI.
type Opener interface {
	Open(uri *url.URL) (Pipeline, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(uri *url.URL) (Pipeline, error)

// Open implements Opener.
func (f OpenerFunc) Open(uri *url.URL) (Pipeline, error) {
	return f(uri)
}

// ImageSetter is the push-side entry of a render surface. SetImage reports
// whether a redraw should be scheduled.
type ImageSetter interface {
	SetImage(data []byte, width, height uint32) bool
}
