package gstpipeline

import (
	"context"
	"time"

	"github.com/tinyzimmer/go-gst/gst"

	"github.com/e7canasta/orion-care-sensor/modules/videobridge"
)

// busPollInterval bounds each bus pop so cancellation is noticed quickly.
const busPollInterval = 50 * time.Millisecond

// WatchBus implements videobridge.Pipeline.
//
// Pops bus messages on the calling goroutine and dispatches them to the bus
// callback until ctx is done (returns ctx.Err()) or the callback returns
// false (returns nil).
func (p *Pipeline) WatchBus(ctx context.Context) error {
	bus := p.pipeline.GetPipelineBus()

	for {
		select {
		case <-ctx.Done():
			p.logger.Debug("gstpipeline: context cancelled, stopping bus watch")
			return ctx.Err()

		default:
			// Poll for messages with short timeout for responsive shutdown
			msg := bus.TimedPop(busPollInterval)
			if msg == nil {
				continue
			}

			cb := p.busCallback()
			if cb == nil {
				continue
			}
			if !cb(translateMessage(msg)) {
				return nil
			}
		}
	}
}

// translateMessage converts a GStreamer message to a videobridge.BusMessage.
func translateMessage(msg *gst.Message) videobridge.BusMessage {
	out := videobridge.BusMessage{
		Type:   busMessageType(msg.Type()),
		Source: msg.Source(),
		Name:   msg.Type().String(),
	}

	switch msg.Type() {
	case gst.MessageError:
		gerr := msg.ParseError()
		out.Text = gerr.Error()
		out.Debug = gerr.DebugString()
	case gst.MessageWarning:
		gerr := msg.ParseWarning()
		out.Text = gerr.Error()
		out.Debug = gerr.DebugString()
	}

	return out
}

func busMessageType(t gst.MessageType) videobridge.BusMessageType {
	switch t {
	case gst.MessageEOS:
		return videobridge.BusEOS
	case gst.MessageError:
		return videobridge.BusError
	case gst.MessageStateChanged:
		return videobridge.BusStateChanged
	case gst.MessageTag:
		return videobridge.BusTag
	default:
		return videobridge.BusOther
	}
}
