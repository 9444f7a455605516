package models

import "time"

// QueryRecord captures the outcome of one executed statement. The context
// recorder keeps the latest record per request plus an ordered execution log.
type QueryRecord struct {
	Query       string        `json:"query"`
	Succeeded   bool          `json:"succeeded"`
	Rows        []Row         `json:"rows,omitempty"`
	Error       string        `json:"error,omitempty"`
	Truncated   bool          `json:"truncated"`
	Duration    time.Duration `json:"duration,omitempty"`
	Corrections []string      `json:"corrections,omitempty"`
	Advisories  []string      `json:"advisories,omitempty"`
}

// OptimizedPayload is the token-bounded form of a query result fed back to
// the reasoning loop. Derived per execution, never persisted.
type OptimizedPayload struct {
	Rows          []Row  `json:"rows"`
	RowCount      int    `json:"row_count"`
	DisplayedRows int    `json:"displayed_rows"`
	Truncated     bool   `json:"truncated"`
	FieldsKept    int    `json:"fields_kept"`
	FieldsRemoved int    `json:"fields_removed"`
	Summary       string `json:"summary,omitempty"`
}

// GuardResult is the outcome of passing a query through the query guard.
type GuardResult struct {
	Allowed     bool     `json:"allowed"`
	Query       string   `json:"query"`
	Corrections []string `json:"corrections,omitempty"`
	Advisories  []string `json:"advisories,omitempty"`
}

// Corrected reports whether the guard rewrote the query.
func (g GuardResult) Corrected() bool {
	return len(g.Corrections) > 0
}
