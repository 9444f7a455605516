package metrics

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector implements Collector using Prometheus. Metric vectors
// are created lazily on first use and registered with the given registerer.
type PrometheusCollector struct {
	registerer prometheus.Registerer

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
	gauges     map[string]*prometheus.GaugeVec
}

// NewPrometheusCollector creates a Prometheus collector backed by the default
// registry.
func NewPrometheusCollector() *PrometheusCollector {
	return NewPrometheusCollectorWithRegisterer(prometheus.DefaultRegisterer)
}

// NewPrometheusCollectorWithRegisterer creates a Prometheus collector backed
// by a specific registerer. Tests use this to avoid cross-test registration
// collisions.
func NewPrometheusCollectorWithRegisterer(registerer prometheus.Registerer) *PrometheusCollector {
	return &PrometheusCollector{
		registerer: registerer,
		counters:   make(map[string]*prometheus.CounterVec),
		histograms: make(map[string]*prometheus.HistogramVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
	}
}

// IncrementCounter increments a counter metric.
func (p *PrometheusCollector) IncrementCounter(name string, labels ...string) {
	labelNames, labelValues := parseLabelPairs(labels)

	p.mu.Lock()
	counter, exists := p.counters[name]
	if !exists {
		counter = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: name,
				Help: fmt.Sprintf("Counter for %s", name),
			},
			labelNames,
		)
		p.registerer.MustRegister(counter)
		p.counters[name] = counter
	}
	p.mu.Unlock()

	counter.WithLabelValues(labelValues...).Inc()
}

// RecordHistogram records a value in a histogram metric.
func (p *PrometheusCollector) RecordHistogram(name string, value float64, labels ...string) {
	labelNames, labelValues := parseLabelPairs(labels)

	p.mu.Lock()
	histogram, exists := p.histograms[name]
	if !exists {
		histogram = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    name,
				Help:    fmt.Sprintf("Histogram for %s", name),
				Buckets: prometheus.DefBuckets,
			},
			labelNames,
		)
		p.registerer.MustRegister(histogram)
		p.histograms[name] = histogram
	}
	p.mu.Unlock()

	histogram.WithLabelValues(labelValues...).Observe(value)
}

// RecordGauge records a gauge metric value.
func (p *PrometheusCollector) RecordGauge(name string, value float64, labels ...string) {
	labelNames, labelValues := parseLabelPairs(labels)

	p.mu.Lock()
	gauge, exists := p.gauges[name]
	if !exists {
		gauge = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: name,
				Help: fmt.Sprintf("Gauge for %s", name),
			},
			labelNames,
		)
		p.registerer.MustRegister(gauge)
		p.gauges[name] = gauge
	}
	p.mu.Unlock()

	gauge.WithLabelValues(labelValues...).Set(value)
}

// parseLabelPairs parses label pairs from variadic string arguments.
// Expected format: "key1", "value1", "key2", "value2", ...
func parseLabelPairs(labels []string) ([]string, []string) {
	if len(labels)%2 != 0 {
		// If odd number of labels, ignore the last one
		labels = labels[:len(labels)-1]
	}

	labelNames := make([]string, 0, len(labels)/2)
	labelValues := make([]string, 0, len(labels)/2)

	for i := 0; i < len(labels); i += 2 {
		labelNames = append(labelNames, labels[i])
		labelValues = append(labelValues, labels[i+1])
	}

	return labelNames, labelValues
}
