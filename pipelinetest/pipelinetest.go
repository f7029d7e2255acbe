// Package pipelinetest provides an in-memory videobridge.Pipeline for tests.
//
// The fake behaves like a real pipeline at the boundary the Streamer relies
// on: samples are delivered synchronously on the caller's goroutine (the
// "pipeline thread"), bus messages are queued until WatchBus dispatches them,
// and SetState(PipelineNull) waits for in-flight sample callbacks so none runs
// after it returns.
package pipelinetest

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/videobridge"
)

// ErrReleased is returned by Emit once the pipeline was set to Null.
var ErrReleased = errors.New("pipelinetest: pipeline released")

// ErrNoCallback is returned by Emit before a sample callback is installed.
var ErrNoCallback = errors.New("pipelinetest: no sample callback")

// busBacklog is the number of bus messages Post can queue before blocking.
const busBacklog = 64

// Pipeline is a scripted videobridge.Pipeline.
type Pipeline struct {
	// Caps is returned by ProbeCapabilities
	Caps videobridge.Capabilities
	// ProbeErr fails ProbeCapabilities
	ProbeErr error
	// SeekErr fails SeekToStart
	SeekErr error
	// PlayErr fails SetState(PipelinePlaying)
	PlayErr error

	// flow is held for reading by every in-flight sample callback
	flow sync.RWMutex

	mu           sync.Mutex
	sampleCB     videobridge.SampleCallback
	busCB        videobridge.BusCallback
	states       []videobridge.PipelineState
	released     bool
	seeks        int
	probeTimeout time.Duration

	bus chan videobridge.BusMessage
}

// New creates a fake pipeline that probes to caps.
func New(caps videobridge.Capabilities) *Pipeline {
	return &Pipeline{
		Caps: caps,
		bus:  make(chan videobridge.BusMessage, busBacklog),
	}
}

// ProbeCapabilities implements videobridge.Pipeline.
func (p *Pipeline) ProbeCapabilities(timeout time.Duration) (videobridge.Capabilities, error) {
	p.mu.Lock()
	p.probeTimeout = timeout
	p.mu.Unlock()

	if p.ProbeErr != nil {
		return videobridge.Capabilities{}, p.ProbeErr
	}
	return p.Caps, nil
}

// SetSampleCallback implements videobridge.Pipeline.
func (p *Pipeline) SetSampleCallback(cb videobridge.SampleCallback) {
	p.mu.Lock()
	p.sampleCB = cb
	p.mu.Unlock()
}

// SetBusCallback implements videobridge.Pipeline.
func (p *Pipeline) SetBusCallback(cb videobridge.BusCallback) {
	p.mu.Lock()
	p.busCB = cb
	p.mu.Unlock()
}

// WatchBus implements videobridge.Pipeline.
func (p *Pipeline) WatchBus(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-p.bus:
			p.mu.Lock()
			cb := p.busCB
			p.mu.Unlock()

			if cb == nil {
				continue
			}
			if !cb(msg) {
				return nil
			}
		}
	}
}

// SetState implements videobridge.Pipeline.
func (p *Pipeline) SetState(state videobridge.PipelineState) error {
	if state == videobridge.PipelinePlaying && p.PlayErr != nil {
		return p.PlayErr
	}

	if state == videobridge.PipelineNull {
		// Wait for in-flight callbacks, like a streaming thread join
		p.flow.Lock()
		defer p.flow.Unlock()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.states = append(p.states, state)
	p.released = state == videobridge.PipelineNull
	return nil
}

// SeekToStart implements videobridge.Pipeline.
func (p *Pipeline) SeekToStart() error {
	p.mu.Lock()
	p.seeks++
	p.mu.Unlock()
	return p.SeekErr
}

// Emit delivers one sample through the installed callback on the calling
// goroutine and returns the callback's result.
func (p *Pipeline) Emit(data []byte, width, height uint32) error {
	p.flow.RLock()
	defer p.flow.RUnlock()

	p.mu.Lock()
	cb, released := p.sampleCB, p.released
	p.mu.Unlock()

	if released {
		return ErrReleased
	}
	if cb == nil {
		return ErrNoCallback
	}
	return cb(data, width, height)
}

// EmitSolid delivers a width x height frame filled with v.
func (p *Pipeline) EmitSolid(width, height uint32, v byte) error {
	return p.Emit(Solid(width, height, v), width, height)
}

// Post queues a bus message for WatchBus.
func (p *Pipeline) Post(msg videobridge.BusMessage) {
	p.bus <- msg
}

// PostEOS queues an end-of-stream message.
func (p *Pipeline) PostEOS() {
	p.Post(videobridge.BusMessage{Type: videobridge.BusEOS, Source: "pipeline0", Name: "eos"})
}

// PostError queues an error message.
func (p *Pipeline) PostError(source, text, debug string) {
	p.Post(videobridge.BusMessage{
		Type:   videobridge.BusError,
		Source: source,
		Name:   "error",
		Text:   text,
		Debug:  debug,
	})
}

// SampleCallback returns the installed sample callback (nil if detached).
func (p *Pipeline) SampleCallback() videobridge.SampleCallback {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sampleCB
}

// BusCallback returns the installed bus callback (nil if detached).
func (p *Pipeline) BusCallback() videobridge.BusCallback {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.busCB
}

// States returns every state passed to SetState, in order.
func (p *Pipeline) States() []videobridge.PipelineState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]videobridge.PipelineState(nil), p.states...)
}

// Released reports whether the last SetState was PipelineNull.
func (p *Pipeline) Released() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.released
}

// Seeks returns the number of SeekToStart calls.
func (p *Pipeline) Seeks() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.seeks
}

// ProbeTimeout returns the timeout passed to the last probe.
func (p *Pipeline) ProbeTimeout() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.probeTimeout
}

// Opener hands out a fixed pipeline and records every Open call.
type Opener struct {
	// Pipeline is returned by Open
	Pipeline *Pipeline
	// Err fails Open
	Err error

	mu   sync.Mutex
	uris []*url.URL
}

// NewOpener creates an opener for p.
func NewOpener(p *Pipeline) *Opener {
	return &Opener{Pipeline: p}
}

// Open implements videobridge.Opener.
func (o *Opener) Open(uri *url.URL) (videobridge.Pipeline, error) {
	o.mu.Lock()
	o.uris = append(o.uris, uri)
	o.mu.Unlock()

	if o.Err != nil {
		return nil, o.Err
	}
	return o.Pipeline, nil
}

// Calls returns the number of Open calls.
func (o *Opener) Calls() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.uris)
}

// URIs returns the URIs passed to Open.
func (o *Opener) URIs() []*url.URL {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*url.URL(nil), o.uris...)
}

// Solid returns a width x height RGBA8 payload filled with v.
func Solid(width, height uint32, v byte) []byte {
	data := make([]byte, int(width)*int(height)*4)
	for i := range data {
		data[i] = v
	}
	return data
}
