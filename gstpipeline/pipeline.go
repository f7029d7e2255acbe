// Package gstpipeline implements videobridge.Pipeline on GStreamer.
//
// Topology (any URI uridecodebin understands: file://, http(s)://, rtsp://):
//
//	uridecodebin → videoconvert → videoscale → appsink (RGBA, square pixels)
//
// Requires the gstreamer1.0 runtime with the base and good plugin sets.
package gstpipeline

import (
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	"github.com/pkg/errors"
	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/e7canasta/orion-care-sensor/modules/videobridge"
)

const appSinkName = "app_sink"

// Options configures pipelines created by an Opener.
type Options struct {
	// Sync paces delivery against the pipeline clock (normal playback).
	// When false frames are decoded as fast as the consumer accepts them.
	Sync bool
	// Logger receives adapter logs (default slog.Default())
	Logger *slog.Logger
}

// DefaultOptions returns options for normal playback.
func DefaultOptions() Options {
	return Options{Sync: true}
}

// Opener creates GStreamer pipelines.
type Opener struct {
	opts Options
}

// NewOpener creates an Opener.
func NewOpener(opts Options) *Opener {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Opener{opts: opts}
}

// Open implements videobridge.Opener. The pipeline is created in the Null
// state; nothing is read until the capability probe.
func (o *Opener) Open(uri *url.URL) (videobridge.Pipeline, error) {
	// Initialize GStreamer (safe to call multiple times)
	gst.Init(nil)

	launch := LaunchString(uri)
	o.opts.Logger.Debug("gstpipeline: creating pipeline", "pipeline", launch)

	pipeline, err := gst.NewPipelineFromString(launch)
	if err != nil {
		return nil, errors.Wrap(err, "gstpipeline: failed to create pipeline")
	}

	elem, err := pipeline.GetElementByName(appSinkName)
	if err != nil {
		_ = pipeline.SetState(gst.StateNull)
		return nil, errors.Wrap(err, "gstpipeline: appsink not found")
	}

	return &Pipeline{
		pipeline: pipeline,
		appsink:  app.SinkFromElement(elem),
		opts:     o.opts,
		logger:   o.opts.Logger.With("uri", uri.String()),
	}, nil
}

// LaunchString returns the gst-launch description for uri.
//
// Only video streams are exposed; audio and subtitle streams are left
// undecoded.
func LaunchString(uri *url.URL) string {
	return fmt.Sprintf(
		"uridecodebin uri=\"%s\" caps=video/x-raw expose-all-streams=false ! "+
			"videoconvert ! "+
			"videoscale ! "+
			"appsink name=%s caps=video/x-raw,format=RGBA,pixel-aspect-ratio=1/1 "+
			"max-buffers=1 sync=false",
		uri.String(),
		appSinkName,
	)
}

// Pipeline is a GStreamer-backed videobridge.Pipeline.
type Pipeline struct {
	pipeline *gst.Pipeline
	appsink  *app.Sink
	opts     Options
	logger   *slog.Logger

	mu       sync.RWMutex
	sampleCB videobridge.SampleCallback
	busCB    videobridge.BusCallback
	attached bool
}

// SetSampleCallback implements videobridge.Pipeline.
func (p *Pipeline) SetSampleCallback(cb videobridge.SampleCallback) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.sampleCB = cb
	if cb != nil && !p.attached {
		p.appsink.SetCallbacks(&app.SinkCallbacks{
			NewSampleFunc: p.onNewSample,
		})
		p.attached = true
	}
}

// SetBusCallback implements videobridge.Pipeline.
func (p *Pipeline) SetBusCallback(cb videobridge.BusCallback) {
	p.mu.Lock()
	p.busCB = cb
	p.mu.Unlock()
}

func (p *Pipeline) sampleCallback() videobridge.SampleCallback {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sampleCB
}

func (p *Pipeline) busCallback() videobridge.BusCallback {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.busCB
}

// SetState implements videobridge.Pipeline.
//
// Setting Null stops the streaming threads before returning, so no sample
// callback runs afterwards. Idempotent.
func (p *Pipeline) SetState(state videobridge.PipelineState) error {
	target, err := gstState(state)
	if err != nil {
		return err
	}

	if state == videobridge.PipelinePlaying {
		if err := p.appsink.SetProperty("sync", p.opts.Sync); err != nil {
			p.logger.Warn("gstpipeline: failed to set appsink sync", "error", err)
		}
	}

	if err := p.pipeline.SetState(target); err != nil {
		return errors.Wrapf(err, "gstpipeline: failed to set state %s", state)
	}

	p.logger.Debug("gstpipeline: state requested", "state", state.String())
	return nil
}

func gstState(state videobridge.PipelineState) (gst.State, error) {
	switch state {
	case videobridge.PipelineNull:
		return gst.StateNull, nil
	case videobridge.PipelinePaused:
		return gst.StatePaused, nil
	case videobridge.PipelinePlaying:
		return gst.StatePlaying, nil
	default:
		return gst.StateNull, errors.Errorf("gstpipeline: unknown state %d", int(state))
	}
}

// SeekToStart implements videobridge.Pipeline.
func (p *Pipeline) SeekToStart() error {
	if !p.pipeline.SeekSimple(0, gst.FormatTime, gst.SeekFlagFlush|gst.SeekFlagKeyUnit) {
		return errors.New("gstpipeline: seek to start rejected")
	}
	return nil
}
