package gstpipeline

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/tinyzimmer/go-gst/gst"

	"github.com/e7canasta/orion-care-sensor/modules/videobridge"
)

// probePollInterval bounds each bus pop while waiting for preroll.
const probePollInterval = 50 * time.Millisecond

// ProbeCapabilities implements videobridge.Pipeline.
//
// Pauses the pipeline so it prerolls (caps negotiated, one frame decoded but
// not delivered), then reads the appsink caps and the stream duration. The
// pipeline stays Paused.
func (p *Pipeline) ProbeCapabilities(timeout time.Duration) (videobridge.Capabilities, error) {
	if err := p.pipeline.SetState(gst.StatePaused); err != nil {
		return videobridge.Capabilities{}, errors.Wrap(err, "gstpipeline: failed to pause pipeline")
	}

	if err := p.waitPreroll(timeout); err != nil {
		return videobridge.Capabilities{}, err
	}

	pad := p.appsink.GetStaticPad("sink")
	if pad == nil {
		return videobridge.Capabilities{}, errors.New("gstpipeline: appsink has no sink pad")
	}
	caps := pad.GetCurrentCaps()
	if caps == nil || caps.GetSize() == 0 {
		return videobridge.Capabilities{}, errors.New("gstpipeline: appsink caps not negotiated")
	}

	width, height, framerate, err := parseVideoCaps(caps.GetStructureAt(0))
	if err != nil {
		return videobridge.Capabilities{}, err
	}

	var duration time.Duration
	if ok, ns := p.pipeline.QueryDuration(gst.FormatTime); ok && ns > 0 {
		duration = time.Duration(ns)
	} else {
		p.logger.Debug("gstpipeline: duration unknown (live source?)")
	}

	result := videobridge.Capabilities{
		Width:     width,
		Height:    height,
		Framerate: framerate,
		Duration:  duration,
	}

	p.logger.Info("gstpipeline: stream capabilities detected",
		"resolution", result.Resolution(),
		"framerate", framerate,
		"duration", duration,
		"caps", caps.String(),
	)

	return result, nil
}

// waitPreroll pops bus messages until AsyncDone, an error, or the deadline.
func (p *Pipeline) waitPreroll(timeout time.Duration) error {
	bus := p.pipeline.GetPipelineBus()
	deadline := time.Now().Add(timeout)

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return errors.Errorf("gstpipeline: timeout waiting for preroll after %v", timeout)
		}

		msg := bus.TimedPop(min(remaining, probePollInterval))
		if msg == nil {
			continue
		}

		switch msg.Type() {
		case gst.MessageAsyncDone:
			return nil

		case gst.MessageError:
			gerr := msg.ParseError()
			p.logger.Error("gstpipeline: probe pipeline error",
				"error", gerr.Error(),
				"debug", gerr.DebugString(),
				"source", msg.Source(),
			)
			return errors.Errorf("gstpipeline: %s: %s", msg.Source(), gerr.Error())

		case gst.MessageEOS:
			return errors.New("gstpipeline: stream ended before preroll")

		case gst.MessageStateChanged:
			if msg.Source() == p.pipeline.GetName() {
				oldState, newState := msg.ParseStateChanged()
				p.logger.Debug("gstpipeline: probe state changed", "from", oldState, "to", newState)
			}
		}
	}
}

// parseVideoCaps extracts width, height and framerate from a video/x-raw
// structure.
func parseVideoCaps(s *gst.Structure) (uint32, uint32, float64, error) {
	if s == nil {
		return 0, 0, 0, errors.New("gstpipeline: empty caps")
	}

	width, err := intField(s, "width")
	if err != nil {
		return 0, 0, 0, err
	}
	height, err := intField(s, "height")
	if err != nil {
		return 0, 0, 0, err
	}

	framerate := 0.0
	if val, err := s.GetValue("framerate"); err == nil {
		framerate = fractionValue(val)
	}
	if framerate <= 0 {
		// Some bindings return fractions as opaque values; the serialized
		// structure always carries them
		framerate = parseFramerate(s.String())
	}

	return width, height, framerate, nil
}

func intField(s *gst.Structure, name string) (uint32, error) {
	val, err := s.GetValue(name)
	if err != nil {
		return 0, errors.Wrapf(err, "gstpipeline: caps field %q", name)
	}
	switch v := val.(type) {
	case int:
		if v > 0 {
			return uint32(v), nil
		}
	case int32:
		if v > 0 {
			return uint32(v), nil
		}
	case uint32:
		if v > 0 {
			return v, nil
		}
	}
	return 0, errors.Errorf("gstpipeline: invalid caps field %s=%v", name, val)
}

// fractionValue reads a framerate value, rendered by the binding as "N/D".
func fractionValue(val interface{}) float64 {
	switch v := val.(type) {
	case float64:
		return v
	case nil:
		return 0
	default:
		return parseFraction(fmt.Sprint(v))
	}
}

var framerateRe = regexp.MustCompile(`framerate=\(fraction\)(\d+/\d+)`)

// parseFramerate reads "framerate=(fraction)N/D" from a serialized caps
// structure.
func parseFramerate(structure string) float64 {
	m := framerateRe.FindStringSubmatch(structure)
	if m == nil {
		return 0
	}
	return parseFraction(m[1])
}

// parseFraction converts "N/D" to a rate.
// Examples: "30/1" → 30, "30000/1001" → 29.97, "0/1" → 0.
func parseFraction(s string) float64 {
	num, den, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(num)
	if err != nil {
		return 0
	}
	d, err := strconv.Atoi(den)
	if err != nil || d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}
