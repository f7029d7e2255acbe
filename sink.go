package videobridge

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/tevino/abool"

	"github.com/e7canasta/orion-care-sensor/modules/videobridge/internal/cadence"
	"github.com/e7canasta/orion-care-sensor/modules/videobridge/internal/eventq"
	"github.com/e7canasta/orion-care-sensor/modules/videobridge/internal/framebuf"
)

// sampleSink is everything the sample callback touches. The callback
// closure captures only this value, never the Streamer.
type sampleSink struct {
	mode   DeliveryMode
	frames *framebuf.Buffer // ModeFrameBuffer only
	queue  *eventq.Queue[Event]
	logger *slog.Logger

	stopped *abool.AtomicBool
	// ctx aborts a payload send blocked on a full queue
	ctx    context.Context
	cancel context.CancelFunc

	frameCount     atomic.Uint64
	bytesRead      atomic.Uint64
	rejected       atomic.Uint64
	late           atomic.Uint64
	droppedSignals atomic.Uint64

	cadence *cadence.Tracker
}

func newSampleSink(mode DeliveryMode, frames *framebuf.Buffer, queue *eventq.Queue[Event], logger *slog.Logger) *sampleSink {
	ctx, cancel := context.WithCancel(context.Background())
	return &sampleSink{
		mode:    mode,
		frames:  frames,
		queue:   queue,
		logger:  logger,
		stopped: abool.New(),
		ctx:     ctx,
		cancel:  cancel,
		cadence: cadence.New(0),
	}
}

// onSample is the SampleCallback. Runs on a pipeline thread.
//
// ModeFrameBuffer never blocks: the frame buffer write skips under
// contention and the signal token is dropped when the queue is full.
// ModeChannel blocks while the queue is full until the UI drains it or the
// sample path is stopped.
func (s *sampleSink) onSample(data []byte, width, height uint32) error {
	if s.stopped.IsSet() {
		s.late.Add(1)
		return ErrStopped
	}

	need := framebuf.RequiredSize(width, height)
	if need == 0 || len(data) < need {
		s.rejected.Add(1)
		s.logger.Warn("videobridge: malformed sample",
			"width", width,
			"height", height,
			"bytes", len(data),
			"required", need)
		return ErrMalformedSample
	}

	s.bytesRead.Add(uint64(len(data)))
	s.cadence.Observe(time.Now())

	switch s.mode {
	case ModeChannel:
		f := &Frame{Width: width, Height: height, Data: make([]byte, need)}
		copy(f.Data, data[:need])

		if err := s.queue.SendContext(s.ctx, Event{Kind: EventNewSampleData, Sample: f}); err != nil {
			if errors.Is(err, eventq.ErrClosed) || errors.Is(err, context.Canceled) {
				s.late.Add(1)
				return ErrStopped
			}
			return err
		}
		s.frameCount.Add(1)

	default:
		if !s.frames.Write(width, height, data) {
			// Skipped under contention or closed: the UI redraws the stale frame
			if s.frames.Closed() {
				s.late.Add(1)
				return ErrStopped
			}
			return nil
		}
		s.frameCount.Add(1)

		if !s.queue.TrySend(Event{Kind: EventNewSample}) {
			s.droppedSignals.Add(1)
		}
	}

	return nil
}

// stop makes every later callback a no-op and releases a callback blocked
// on a full queue. Idempotent.
func (s *sampleSink) stop() {
	s.stopped.Set()
	s.cancel()
}

// latency returns the time since the last sample.
func (s *sampleSink) latency(c cadence.Stats) time.Duration {
	if c.Last.IsZero() {
		return 0
	}
	return time.Since(c.Last)
}
