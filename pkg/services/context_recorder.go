package services

import (
	"sync"

	"github.com/TFMV/sage/pkg/models"
)

// ExecutionContext captures query executions for one inbound request. The
// latest record supersedes earlier ones for the primary response; the full
// ordered log is kept for diagnostics.
//
// One instance per request. Sharing a single instance across concurrently
// in-flight requests corrupts context between them, so the handler creates a
// fresh context keyed by the request correlation id and threads it through
// the agent run.
type ExecutionContext struct {
	mu        sync.Mutex
	requestID string
	last      models.QueryRecord
	hasLast   bool
	log       []models.QueryRecord
}

// NewExecutionContext creates an empty execution context for a request.
func NewExecutionContext(requestID string) *ExecutionContext {
	return &ExecutionContext{requestID: requestID}
}

// RequestID returns the correlation id this context is scoped to.
func (ec *ExecutionContext) RequestID() string {
	return ec.requestID
}

// Reset clears all recorded state. Runs exactly once per inbound request,
// before any execution.
func (ec *ExecutionContext) Reset() {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	ec.last = models.QueryRecord{}
	ec.hasLast = false
	ec.log = nil
}

// Record overwrites the last-query state with the newest outcome and appends
// it to the execution log.
func (ec *ExecutionContext) Record(rec models.QueryRecord) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	ec.last = rec
	ec.hasLast = true
	ec.log = append(ec.log, rec)
}

// Last returns the most recent query record, if any execution happened.
func (ec *ExecutionContext) Last() (models.QueryRecord, bool) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	return ec.last, ec.hasLast
}

// Log returns a copy of the ordered execution log.
func (ec *ExecutionContext) Log() []models.QueryRecord {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	out := make([]models.QueryRecord, len(ec.log))
	copy(out, ec.log)
	return out
}

// Executions returns the number of recorded executions.
func (ec *ExecutionContext) Executions() int {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	return len(ec.log)
}
