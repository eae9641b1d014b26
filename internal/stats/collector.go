// Package stats provides a unified interface for collecting metrics.
package stats

// Metric names used throughout the module.
const (
	// Pipeline metrics.
	MetricRecords      = "capdump_records_total"
	MetricDecodeErrors = "capdump_decode_errors_total"
	MetricBytesRead    = "capdump_bytes_read"

	// Throughput metrics.
	MetricRate    = "capdump_throughput_records_per_second"
	MetricSamples = "capdump_throughput_samples_total"
)

// Collector defines the interface for collecting metrics.
type Collector interface {
	// IncCounter increments a counter metric by delta.
	IncCounter(name string, delta int64)

	// SetGauge sets a gauge metric to value.
	SetGauge(name string, value int64)

	// ObserveHistogram records a value in a histogram metric.
	ObserveHistogram(name string, value float64)
}
