package middleware

import (
	"net/http"
	"strconv"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// MetricsCollector defines the interface for collecting metrics.
type MetricsCollector interface {
	IncrementCounter(name string, labels ...string)
	RecordHistogram(name string, value float64, labels ...string)
	RecordGauge(name string, value float64, labels ...string)
}

// MetricsMiddleware provides metrics collection middleware.
type MetricsMiddleware struct {
	collector MetricsCollector
}

// NewMetricsMiddleware creates a new metrics middleware.
func NewMetricsMiddleware(collector MetricsCollector) *MetricsMiddleware {
	return &MetricsMiddleware{
		collector: collector,
	}
}

// Handler returns an HTTP middleware that records request counts and
// latencies.
func (m *MetricsMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		m.collector.IncrementCounter("http_requests_total", "method", r.Method, "path", r.URL.Path)

		next.ServeHTTP(ww, r)

		duration := time.Since(start).Seconds()
		m.collector.RecordHistogram("http_request_duration_seconds", duration, "method", r.Method, "path", r.URL.Path)
		m.collector.IncrementCounter("http_responses_total",
			"method", r.Method,
			"path", r.URL.Path,
			"status", strconv.Itoa(ww.Status()))
	})
}
