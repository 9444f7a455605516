package services

import (
	"fmt"
	"time"

	"github.com/TFMV/sage/pkg/models"
)

// responseAssembler implements ResponseAssembler.
type responseAssembler struct {
	classifier VisualizationClassifier
	logger     Logger
	metrics    MetricsCollector
}

// NewResponseAssembler creates a response assembler.
func NewResponseAssembler(classifier VisualizationClassifier, logger Logger, metrics MetricsCollector) ResponseAssembler {
	return &responseAssembler{classifier: classifier, logger: logger, metrics: metrics}
}

// Assemble builds the structured response from the answer text and the
// recorded execution context. This is the outermost business-logic boundary:
// any failure here is converted to a success=false response instead of
// propagating to the transport.
func (a *responseAssembler) Assemble(answer string, ec *ExecutionContext, req models.AskRequest, started time.Time) (resp models.StructuredResponse) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("Response assembly panicked", "panic", r)
			a.metrics.IncrementCounter("assembly_failures")
			resp = models.StructuredResponse{
				Answer:        answer,
				Data:          []models.Row{},
				Visualization: models.VisualizationText,
				Success:       false,
				Error:         fmt.Sprintf("response assembly failed: %v", r),
				Metadata:      a.baseMetadata(ec, started),
			}
		}
	}()

	resp = models.StructuredResponse{
		Answer:        answer,
		Data:          []models.Row{},
		Visualization: models.VisualizationText,
		Success:       true,
		Metadata:      a.baseMetadata(ec, started),
	}

	last, executed := ec.Last()
	if executed {
		resp.Data = last.Rows
		resp.RowCount = len(last.Rows)
		resp.Truncated = last.Truncated
		resp.Success = last.Succeeded
		resp.Error = last.Error
		if req.IncludeSQL {
			resp.SQLQuery = last.Query
		}
		if len(last.Corrections) > 0 {
			resp.Metadata["query_corrections"] = last.Corrections
		}
		if len(last.Advisories) > 0 {
			resp.Metadata["query_advisories"] = last.Advisories
		}
	}

	switch {
	case req.FormatResponse && resp.Success && resp.RowCount > 0:
		viz := a.classifier.Classify(last.Rows, last.Query, req.Question)
		resp.Visualization = viz.Kind
		resp.VizMetadata = viz.Metadata
	case resp.Success && resp.RowCount > 0:
		resp.Visualization = models.VisualizationTable
	default:
		resp.Visualization = models.VisualizationText
	}

	a.metrics.IncrementCounter("responses_assembled", "visualization", string(resp.Visualization))

	return resp
}

func (a *responseAssembler) baseMetadata(ec *ExecutionContext, started time.Time) map[string]interface{} {
	md := map[string]interface{}{
		"execution_time_seconds": time.Since(started).Seconds(),
		"executions":             ec.Executions(),
	}
	if id := ec.RequestID(); id != "" {
		md["request_id"] = id
	}
	return md
}
