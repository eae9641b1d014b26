// Package prometheus provides a Prometheus-based stats collector.
package prometheus

import (
	"errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/discochess/capdump/internal/stats"
)

// help documents the metrics emitted by the pipeline. Unknown names use the
// metric name as help text.
var help = map[string]string{
	stats.MetricRecords:      "Capture records decoded and rendered.",
	stats.MetricDecodeErrors: "Capture records that failed to decode.",
	stats.MetricBytesRead:    "Bytes read from the capture location before decompression.",
	stats.MetricRate:         "Sampled processing rate in records per second.",
	stats.MetricSamples:      "Throughput samples taken.",
}

// rateBuckets spans 1k to ~1G records per second.
var rateBuckets = prometheus.ExponentialBuckets(1e3, 4, 11)

// Collector implements stats.Collector using Prometheus metrics.
type Collector struct {
	registry *prometheus.Registry

	mu         sync.RWMutex
	counters   map[string]prometheus.Counter
	gauges     map[string]prometheus.Gauge
	histograms map[string]prometheus.Histogram
}

// Compile-time check that Collector implements stats.Collector.
var _ stats.Collector = (*Collector)(nil)

// New creates a new Prometheus collector registering into registry.
// If registry is nil, a fresh registry is created.
func New(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	return &Collector{
		registry:   registry,
		counters:   make(map[string]prometheus.Counter),
		gauges:     make(map[string]prometheus.Gauge),
		histograms: make(map[string]prometheus.Histogram),
	}
}

// Registry returns the registry metrics are registered in.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// IncCounter increments a counter metric.
func (c *Collector) IncCounter(name string, delta int64) {
	getOrCreate(c, c.counters, name, func() prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: helpFor(name)})
	}).Add(float64(delta))
}

// SetGauge sets a gauge metric.
func (c *Collector) SetGauge(name string, value int64) {
	getOrCreate(c, c.gauges, name, func() prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: helpFor(name)})
	}).Set(float64(value))
}

// ObserveHistogram records a value in a histogram.
func (c *Collector) ObserveHistogram(name string, value float64) {
	getOrCreate(c, c.histograms, name, func() prometheus.Histogram {
		return prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    name,
			Help:    helpFor(name),
			Buckets: rateBuckets,
		})
	}).Observe(value)
}

// WriteTextfile writes every registered metric to path in the text
// exposition format, replacing the file atomically.
func (c *Collector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}

func helpFor(name string) string {
	if h, ok := help[name]; ok {
		return h
	}
	return name
}

// getOrCreate returns the metric called name from m, building and registering
// it on first use. A metric already present in the registry is reused.
func getOrCreate[T prometheus.Collector](c *Collector, m map[string]T, name string, build func() T) T {
	c.mu.RLock()
	metric, ok := m[name]
	c.mu.RUnlock()
	if ok {
		return metric
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if metric, ok = m[name]; ok {
		return metric
	}

	metric = build()
	if err := c.registry.Register(metric); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				metric = existing
			}
		}
	}
	m[name] = metric
	return metric
}
