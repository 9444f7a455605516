// Package metrics provides metrics collection for the NL2SQL service.
package metrics

// Collector defines the interface for collecting metrics.
type Collector interface {
	// IncrementCounter increments a counter metric.
	IncrementCounter(name string, labels ...string)

	// RecordHistogram records a value in a histogram metric.
	RecordHistogram(name string, value float64, labels ...string)

	// RecordGauge records a gauge metric value.
	RecordGauge(name string, value float64, labels ...string)
}

// NoOpCollector is a no-op implementation of Collector.
type NoOpCollector struct{}

// NewNoOpCollector creates a new no-op collector.
func NewNoOpCollector() Collector {
	return &NoOpCollector{}
}

// IncrementCounter does nothing.
func (n *NoOpCollector) IncrementCounter(name string, labels ...string) {}

// RecordHistogram does nothing.
func (n *NoOpCollector) RecordHistogram(name string, value float64, labels ...string) {}

// RecordGauge does nothing.
func (n *NoOpCollector) RecordGauge(name string, value float64, labels ...string) {}
