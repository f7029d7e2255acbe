package videobridge

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMalformedURI is wrapped by ConstructionError when the URI cannot be parsed.
	ErrMalformedURI = errors.New("videobridge: malformed URI")
	// ErrCapabilities is wrapped by ConstructionError when the probe fails.
	ErrCapabilities = errors.New("videobridge: failed to resolve media capabilities")
	// ErrInvalidConfig is wrapped by ConstructionError for bad configuration.
	ErrInvalidConfig = errors.New("videobridge: invalid configuration")
	// ErrMalformedSample is returned by the sample callback for samples that
	// violate the RGBA8 contract. Pipelines map it to a flow error.
	ErrMalformedSample = errors.New("videobridge: malformed sample")
	// ErrStopped is returned by the sample callback after the stop signal.
	ErrStopped = errors.New("videobridge: streamer stopped")
	// ErrAlreadyStarted is returned by a second Start call.
	ErrAlreadyStarted = errors.New("videobridge: streamer already started")
	// ErrNotPlaying is returned by Start when the session is not Playing.
	ErrNotPlaying = errors.New("videobridge: streamer is not playing")
	// ErrEndOfEvents is returned by EventReceiver.Recv once the session ended.
	ErrEndOfEvents = errors.New("videobridge: no more events")
)

// ConstructionError is returned synchronously by New. No Streamer exists and
// no background goroutine was started when it is returned.
type ConstructionError struct {
	// Op is the construction step that failed (parse, open, probe, config)
	Op  string
	URI string
	Err error
}

func (e *ConstructionError) Error() string {
	if e.URI == "" {
		return fmt.Sprintf("videobridge: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("videobridge: %s %q: %v", e.Op, e.URI, e.Err)
}

func (e *ConstructionError) Unwrap() error { return e.Err }

// RuntimeError is a decode error reported by the pipeline bus. It is fatal
// to the session and is delivered inside the terminal event.
type RuntimeError struct {
	Source   string
	Message  string
	Debug    string
	Category ErrorCategory
}

func (e *RuntimeError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("pipeline error [%s]: %s", e.Category, e.Message)
	}
	return fmt.Sprintf("pipeline error [%s] from %s: %s", e.Category, e.Source, e.Message)
}

// ErrorCategory classifies pipeline errors for telemetry.
type ErrorCategory int

const (
	// ErrCategoryResource indicates missing or unreadable media (file, permissions)
	ErrCategoryResource ErrorCategory = iota
	// ErrCategoryCodec indicates decode, negotiation or format failures
	ErrCategoryCodec
	// ErrCategoryNetwork indicates connection failures for remote URIs
	ErrCategoryNetwork
	// ErrCategoryUnknown indicates unclassified errors
	ErrCategoryUnknown
)

// String returns a human-readable string representation of the error category
func (e ErrorCategory) String() string {
	switch e {
	case ErrCategoryResource:
		return "resource"
	case ErrCategoryCodec:
		return "codec"
	case ErrCategoryNetwork:
		return "network"
	default:
		return "unknown"
	}
}

var (
	resourceKeywords = []string{
		"not found",
		"no such file",
		"could not open",
		"permission denied",
		"resource",
		"could not read",
	}
	codecKeywords = []string{
		"codec",
		"decode",
		"format",
		"negotiation",
		"not negotiated",
		"caps",
		"no decoder",
		"missing plugin",
		"internal data stream error",
		"malformed sample",
	}
	networkKeywords = []string{
		"connection",
		"timeout",
		"timed out",
		"unreachable",
		"network",
		"dns",
		"resolve",
		"socket",
		"http",
	}
)

// ClassifyError categorizes a pipeline error from its message and debug text.
//
// Priority: codec first (most specific for a player), then resource, then
// network. Matching is keyword-based because bus errors carry free text.
func ClassifyError(text, debug string) ErrorCategory {
	combined := strings.ToLower(text + " " + debug)

	switch {
	case containsAny(combined, codecKeywords):
		return ErrCategoryCodec
	case containsAny(combined, resourceKeywords):
		return ErrCategoryResource
	case containsAny(combined, networkKeywords):
		return ErrCategoryNetwork
	default:
		return ErrCategoryUnknown
	}
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
