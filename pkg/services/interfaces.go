// Package services contains business logic implementations.
package services

import (
	"context"
	"time"

	"github.com/TFMV/sage/pkg/models"
)

// QueryGuard validates and repairs generated queries before execution.
type QueryGuard interface {
	Accept(query string) models.GuardResult
}

// ResultOptimizer bounds the token and row cost of raw query results.
type ResultOptimizer interface {
	Optimize(rows []models.Row, question string) models.OptimizedPayload
	FormatForLLM(rows []models.Row, format OutputFormat) string
	OptimizeSchema(schema, question string, maxTables int) string
}

// VisualizationClassifier infers a rendering hint from result shape.
type VisualizationClassifier interface {
	Classify(rows []models.Row, query, question string) models.VisualizationDecision
}

// TokenTracker estimates token counts and accumulates session statistics.
type TokenTracker interface {
	Estimate(text string) int
	CountRequest(systemPrompt, schema, userQuery string, toolOutputs []string, modelResponse string) models.TokenUsageSample
	SessionStats() models.SessionStats
	SuggestOptimizations() []string
	ExportHistory() models.TokenUsageExport
	ResetSession()
}

// ResponseAssembler combines recorded execution context and classifier
// output into the final structured payload.
type ResponseAssembler interface {
	Assemble(answer string, ec *ExecutionContext, req models.AskRequest, started time.Time) models.StructuredResponse
}

// SchemaService loads and formats the target database schema.
type SchemaService interface {
	Load(ctx context.Context, refresh bool) ([]models.Table, error)
	FormatForPrompt(tables []models.Table) string
}

// Logger defines logging interface.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// MetricsCollector defines metrics collection interface.
type MetricsCollector interface {
	IncrementCounter(name string, labels ...string)
	RecordHistogram(name string, value float64, labels ...string)
	RecordGauge(name string, value float64, labels ...string)
}
