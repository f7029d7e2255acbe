// Package cadence measures the arrival rate of decoded samples.
//
// Statistics are computed online, one observation per sample, so the
// tracker can run for the whole session instead of a fixed warm-up window.
package cadence

import (
	"math"
	"sync"
	"time"
)

const (
	// FPSStabilityThreshold is the maximum FPS standard deviation as a
	// fraction of mean FPS. 30 FPS mean → stable if stddev < 4.5 FPS.
	FPSStabilityThreshold = 0.15

	// JitterStabilityThreshold is the maximum mean jitter as a fraction of
	// the expected interval. 30 FPS (33ms) → stable if jitter < 6.6ms.
	JitterStabilityThreshold = 0.20
)

// Stats is a snapshot of the sample cadence.
type Stats struct {
	// Samples is the number of observations
	Samples uint64
	// Span is the time between the first and last observation
	Span time.Duration
	// Last is the time of the last observation (zero if none)
	Last time.Time

	// FPSMean is the overall rate: intervals / span
	FPSMean float64
	// FPSStdDev is the standard deviation of instantaneous FPS
	FPSStdDev float64
	FPSMin    float64
	FPSMax    float64

	// JitterMean is the mean deviation from the expected interval
	JitterMean time.Duration
	JitterMax  time.Duration

	// Stable is true when FPS stddev < 15% of mean AND jitter < 20% of
	// the expected interval
	Stable bool
}

// Tracker accumulates sample arrival times.
//
// Observe and Stats may be called from different goroutines.
type Tracker struct {
	mu sync.Mutex

	// expected is the nominal interval; 0 measures jitter against the
	// running mean interval
	expected float64

	n           uint64
	first, last time.Time

	// instantaneous FPS (Welford)
	k        uint64
	mean, m2 float64
	min, max float64

	jitterSum, jitterMax float64
}

// New creates a tracker. nominalFPS <= 0 means unknown.
func New(nominalFPS float64) *Tracker {
	t := &Tracker{}
	t.SetNominal(nominalFPS)
	return t
}

// SetNominal sets the stream's nominal framerate used as the jitter reference.
func (t *Tracker) SetNominal(fps float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.expected = 0
	if fps > 0 {
		t.expected = 1.0 / fps
	}
}

// Observe records one sample arrival.
func (t *Tracker) Observe(at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.n++
	if t.n == 1 {
		t.first, t.last = at, at
		return
	}

	interval := at.Sub(t.last).Seconds()
	t.last = at
	if interval <= 0 {
		return
	}

	fps := 1.0 / interval
	t.k++
	delta := fps - t.mean
	t.mean += delta / float64(t.k)
	t.m2 += delta * (fps - t.mean)

	if t.k == 1 || fps < t.min {
		t.min = fps
	}
	if fps > t.max {
		t.max = fps
	}

	jitter := math.Abs(interval - t.expectedLocked())
	t.jitterSum += jitter
	if jitter > t.jitterMax {
		t.jitterMax = jitter
	}
}

func (t *Tracker) expectedLocked() float64 {
	if t.expected > 0 {
		return t.expected
	}
	if span := t.last.Sub(t.first).Seconds(); span > 0 && t.n > 1 {
		return span / float64(t.n-1)
	}
	return 0
}

// Stats returns a snapshot.
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := Stats{
		Samples: t.n,
		Last:    t.last,
	}
	if t.n < 2 || t.k == 0 {
		return s
	}

	s.Span = t.last.Sub(t.first)
	if secs := s.Span.Seconds(); secs > 0 {
		s.FPSMean = float64(t.n-1) / secs
	}
	s.FPSStdDev = math.Sqrt(t.m2 / float64(t.k))
	s.FPSMin = t.min
	s.FPSMax = t.max

	jitterMean := t.jitterSum / float64(t.k)
	s.JitterMean = seconds(jitterMean)
	s.JitterMax = seconds(t.jitterMax)

	expected := t.expectedLocked()
	s.Stable = s.FPSStdDev < s.FPSMean*FPSStabilityThreshold &&
		jitterMean < expected*JitterStabilityThreshold

	return s
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
