// Package throughput samples the processing rate of the dump pipeline.
package throughput

import (
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/discochess/capdump/internal/stats"
)

// DefaultInterval is the number of records between samples.
const DefaultInterval = 1000

// Sample is a point-in-time throughput measurement.
type Sample struct {
	Count   int64
	Elapsed time.Duration
	// Bytes is the number of raw bytes read so far, if a counter is attached.
	Bytes int64
}

// Rate returns records per second. It is +Inf when no time has elapsed.
func (s Sample) Rate() float64 {
	ns := s.Elapsed.Nanoseconds()
	if ns <= 0 {
		return math.Inf(1)
	}
	return float64(s.Count) * 1e9 / float64(ns)
}

// Sampler counts records and takes a Sample every interval records.
// A Sampler is owned by a single pipeline run and is not safe for
// concurrent use.
type Sampler struct {
	interval int64
	now      func() time.Time
	bytes    *Counter
	logger   *zap.Logger
	stats    stats.Collector

	start   time.Time
	count   int64
	samples []Sample
}

// Option configures a Sampler.
type Option func(*Sampler)

// WithInterval sets the number of records between samples.
func WithInterval(n int64) Option {
	return func(s *Sampler) {
		if n > 0 {
			s.interval = n
		}
	}
}

// WithClock sets the time source. Defaults to time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Sampler) { s.now = now }
}

// WithBytes attaches a byte counter reported with each sample.
func WithBytes(c *Counter) Option {
	return func(s *Sampler) { s.bytes = c }
}

// WithLogger sets the logger samples are reported to.
func WithLogger(l *zap.Logger) Option {
	return func(s *Sampler) { s.logger = l }
}

// WithStats sets the collector samples are published to.
func WithStats(c stats.Collector) Option {
	return func(s *Sampler) { s.stats = c }
}

// New creates a Sampler whose clock starts now.
func New(opts ...Option) *Sampler {
	s := &Sampler{
		interval: DefaultInterval,
		now:      time.Now,
		logger:   zap.NewNop(),
		stats:    stats.NewNoop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.start = s.now()
	return s
}

// Observe counts one successful record. When the count reaches a multiple
// of the interval it takes, reports and returns a sample.
func (s *Sampler) Observe() (Sample, bool) {
	s.count++
	if s.count%s.interval != 0 {
		return Sample{}, false
	}

	sample := s.Snapshot()
	s.samples = append(s.samples, sample)

	rate := sample.Rate()
	s.logger.Info("throughput",
		zap.Int64("records", sample.Count),
		zap.Float64("rate", rate),
		zap.String("read", FormatBytes(sample.Bytes)),
	)
	s.stats.IncCounter(stats.MetricSamples, 1)
	s.stats.SetGauge(stats.MetricBytesRead, sample.Bytes)
	if !math.IsInf(rate, 0) {
		s.stats.ObserveHistogram(stats.MetricRate, rate)
	}
	return sample, true
}

// Snapshot returns the current count and elapsed time without recording a
// sample.
func (s *Sampler) Snapshot() Sample {
	sample := Sample{
		Count:   s.count,
		Elapsed: s.now().Sub(s.start),
	}
	if s.bytes != nil {
		sample.Bytes = s.bytes.Load()
	}
	return sample
}

// Count returns the number of records observed.
func (s *Sampler) Count() int64 {
	return s.count
}

// Samples returns the samples taken so far.
func (s *Sampler) Samples() []Sample {
	return s.samples
}
