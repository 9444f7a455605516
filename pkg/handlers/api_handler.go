package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/TFMV/sage/pkg/errors"
	"github.com/TFMV/sage/pkg/models"
	"github.com/TFMV/sage/pkg/services"
)

// APIHandler serves the question-answering API.
type APIHandler struct {
	runner    QuestionRunner
	assembler services.ResponseAssembler
	tokens    services.TokenTracker
	health    HealthChecker
	logger    Logger
	metrics   MetricsCollector
}

// NewAPIHandler creates an API handler.
func NewAPIHandler(
	runner QuestionRunner,
	assembler services.ResponseAssembler,
	tokens services.TokenTracker,
	health HealthChecker,
	logger Logger,
	metrics MetricsCollector,
) *APIHandler {
	return &APIHandler{
		runner:    runner,
		assembler: assembler,
		tokens:    tokens,
		health:    health,
		logger:    logger,
		metrics:   metrics,
	}
}

// HandleAsk answers a natural-language question about the database.
func (h *APIHandler) HandleAsk(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	var req models.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.metrics.IncrementCounter("ask_requests", "status", "bad_request")
		h.writeError(w, http.StatusBadRequest, errors.New(errors.CodeInvalidRequest, "invalid request body"))
		return
	}
	if req.Question == "" {
		h.metrics.IncrementCounter("ask_requests", "status", "bad_request")
		h.writeError(w, http.StatusBadRequest, errors.New(errors.CodeInvalidRequest, "question cannot be empty"))
		return
	}

	requestID := uuid.NewString()
	ec := services.NewExecutionContext(requestID)

	h.logger.Info("Received question",
		"request_id", requestID,
		"question", req.Question)

	answer, err := h.runner.Run(r.Context(), req.Question, ec)

	resp := h.assembler.Assemble(answer, ec, req, started)
	if err != nil {
		h.logger.Error("Question processing failed",
			"request_id", requestID,
			"error", err)
		resp.Success = false
		if resp.Error == "" {
			resp.Error = errors.GetMessage(err)
		}
		resp.Visualization = models.VisualizationText
	}

	status := "ok"
	if !resp.Success {
		status = "failed"
	}
	h.metrics.IncrementCounter("ask_requests", "status", status)
	h.metrics.RecordHistogram("ask_duration_seconds", time.Since(started).Seconds())

	h.writeJSON(w, http.StatusOK, resp)
}

// HandleHealth is the liveness/readiness check.
func (h *APIHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := h.health.Ping(r.Context()); err != nil {
		h.logger.Warn("Health check failed", "error", err)
		status = "unavailable"
		code = http.StatusServiceUnavailable
	}

	h.writeJSON(w, code, map[string]string{
		"status":  status,
		"service": "sage",
	})
}

// HandleStats returns session token usage statistics.
func (h *APIHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats := h.tokens.SessionStats()
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"session_stats":            stats,
		"optimization_suggestions": h.tokens.SuggestOptimizations(),
	})
}

// HandleStatsExport returns the full token usage history snapshot.
func (h *APIHandler) HandleStatsExport(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.tokens.ExportHistory())
}

// HandleStatsReset clears accumulated session token statistics.
func (h *APIHandler) HandleStatsReset(w http.ResponseWriter, r *http.Request) {
	h.tokens.ResetSession()
	h.logger.Info("Session token statistics reset")
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (h *APIHandler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("Failed to encode response", "error", err)
	}
}

func (h *APIHandler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, map[string]interface{}{
		"success": false,
		"code":    errors.GetCode(err),
		"error":   errors.GetMessage(err),
	})
}
