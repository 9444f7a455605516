// Package handlers implements the HTTP API surface.
package handlers

import (
	"context"

	"github.com/TFMV/sage/pkg/services"
)

// QuestionRunner answers a natural-language question, recording executed
// queries in the given context.
type QuestionRunner interface {
	Run(ctx context.Context, question string, ec *services.ExecutionContext) (string, error)
}

// HealthChecker reports whether the backing database is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Logger defines logging interface for handlers.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// MetricsCollector defines metrics collection interface for handlers.
type MetricsCollector interface {
	IncrementCounter(name string, labels ...string)
	RecordHistogram(name string, value float64, labels ...string)
	RecordGauge(name string, value float64, labels ...string)
}
