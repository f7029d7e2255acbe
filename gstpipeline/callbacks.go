package gstpipeline

import (
	"github.com/pkg/errors"
	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/e7canasta/orion-care-sensor/modules/videobridge"
)

// onNewSample is called by GStreamer on the streaming thread for every
// decoded frame.
//
// Width and height are read from the sample caps each time so a mid-stream
// format change reaches the consumer. The mapped buffer is only valid
// during the callback; the consumer copies what it keeps.
func (p *Pipeline) onNewSample(sink *app.Sink) gst.FlowReturn {
	sample := sink.PullSample()
	if sample == nil {
		// Flushing or EOS
		return gst.FlowEOS
	}

	cb := p.sampleCallback()
	if cb == nil {
		return gst.FlowFlushing
	}

	var (
		width, height uint32
		capsErr       error
	)
	caps := sample.GetCaps()
	if caps == nil || caps.GetSize() == 0 {
		capsErr = errNoCaps
	} else {
		width, height, _, capsErr = parseVideoCaps(caps.GetStructureAt(0))
	}

	buffer := sample.GetBuffer()
	if err := validateSample(capsErr, buffer != nil); err != nil {
		p.logger.Error("gstpipeline: rejecting sample", "error", err)
		return flowFor(err)
	}

	mapInfo := buffer.Map(gst.MapRead)
	defer buffer.Unmap()

	return flowFor(cb(mapInfo.Bytes(), width, height))
}

var (
	errNoCaps   = errors.New("sample without caps")
	errNoBuffer = errors.New("sample without buffer")
)

// validateSample reports why a pulled sample cannot be delivered. The
// result wraps videobridge.ErrMalformedSample so it maps to a flow error.
func validateSample(capsErr error, hasBuffer bool) error {
	if capsErr != nil {
		return errors.Wrapf(videobridge.ErrMalformedSample, "unreadable caps: %v", capsErr)
	}
	if !hasBuffer {
		return errors.Wrap(videobridge.ErrMalformedSample, errNoBuffer.Error())
	}
	return nil
}

// flowFor maps a sample callback result to a flow return. Stopping flushes
// quietly; any other error posts a bus error and ends the stream.
func flowFor(err error) gst.FlowReturn {
	switch {
	case err == nil:
		return gst.FlowOK
	case errors.Is(err, videobridge.ErrStopped):
		return gst.FlowFlushing
	default:
		return gst.FlowError
	}
}
