package services

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/TFMV/sage/pkg/models"
)

// DefaultGuardMaxRows is the row bound injected into unbounded queries.
const DefaultGuardMaxRows = 50

// Messages surfaced through GuardResult for auditability.
const (
	adviceMissingTableType    = "query counts all database objects (tables + views); missing table_type = 'BASE TABLE'"
	adviceMissingSchemaFilter = "query does not filter by schema; system schemas may be included"
)

var (
	// Known metadata-query mistake: counting objects in the public schema
	// without restricting to base tables.
	tableTypeFilterRe  = regexp.MustCompile(`(?i)table_type\s*=\s*['"]BASE TABLE['"]`)
	publicSchemaWhere  = regexp.MustCompile(`(?i)(WHERE\s+table_schema\s*=\s*['"]public['"])`)
	publicSchemaFilter = regexp.MustCompile(`(?i)table_schema\s*=\s*['"]public['"]`)
)

// queryGuard implements QueryGuard.
type queryGuard struct {
	maxRows int
	logger  Logger
	metrics MetricsCollector
}

// NewQueryGuard creates a query guard with the given row bound.
func NewQueryGuard(maxRows int, logger Logger, metrics MetricsCollector) QueryGuard {
	if maxRows <= 0 {
		maxRows = DefaultGuardMaxRows
	}
	return &queryGuard{maxRows: maxRows, logger: logger, metrics: metrics}
}

// Accept validates a generated query. Rejection is fatal for this execution;
// the guard never retries — only the reasoning loop may regenerate and
// resubmit. Allowed queries may come back corrected (metadata-query repair,
// row-limit injection), with every rewrite recorded for auditability.
func (g *queryGuard) Accept(query string) models.GuardResult {
	result := models.GuardResult{Query: query}

	if !isReadOnlyQuery(query) {
		g.logger.Warn("Blocked potentially unsafe query", "query", query)
		g.metrics.IncrementCounter("guard_rejected_queries")
		return result
	}
	result.Allowed = true

	result = g.correctMetadataQuery(result)
	result = g.injectRowLimit(result)

	if result.Corrected() {
		g.logger.Info("Guard corrected query",
			"original", query,
			"corrected", result.Query,
			"corrections", strings.Join(result.Corrections, "; "))
		g.metrics.IncrementCounter("guard_corrected_queries")
	}
	g.metrics.IncrementCounter("guard_accepted_queries")

	return result
}

// isReadOnlyQuery reports whether the trimmed statement starts with a
// read-only verb. Heuristic text check, not a parser.
func isReadOnlyQuery(query string) bool {
	upper := strings.ToUpper(strings.TrimSpace(query))
	for _, prefix := range []string{"SELECT", "WITH", "EXPLAIN"} {
		if strings.HasPrefix(upper, prefix) {
			return true
		}
	}
	return false
}

// correctMetadataQuery repairs the known information_schema.tables mistake:
// filtering by table_schema = 'public' without a table_type filter counts
// views as tables. Only the literal public-schema predicate is recognized;
// anything else gets an advisory, never a guessed fix.
func (g *queryGuard) correctMetadataQuery(result models.GuardResult) models.GuardResult {
	lower := strings.ToLower(result.Query)
	if !strings.Contains(lower, "information_schema.tables") {
		return result
	}

	if !tableTypeFilterRe.MatchString(result.Query) && strings.Contains(lower, "table_schema") {
		result.Advisories = append(result.Advisories, adviceMissingTableType)
		if publicSchemaWhere.MatchString(result.Query) {
			result.Query = publicSchemaWhere.ReplaceAllString(result.Query, "$1 AND table_type = 'BASE TABLE'")
			result.Corrections = append(result.Corrections, "added AND table_type = 'BASE TABLE' after schema predicate")
		}
	}

	if !publicSchemaFilter.MatchString(result.Query) {
		result.Advisories = append(result.Advisories, adviceMissingSchemaFilter)
	}

	return result
}

// injectRowLimit appends a LIMIT clause to queries that bound neither their
// row count nor aggregate to one (COUNT). Keeps the reasoning loop from
// pulling thousands of rows into the prompt.
func (g *queryGuard) injectRowLimit(result models.GuardResult) models.GuardResult {
	upper := strings.ToUpper(result.Query)
	if strings.Contains(upper, "LIMIT") || strings.Contains(upper, "COUNT") {
		return result
	}

	limit := fmt.Sprintf("LIMIT %d", g.maxRows)
	trimmed := strings.TrimRight(result.Query, " \t\n\r")
	if strings.HasSuffix(trimmed, ";") {
		result.Query = strings.TrimSuffix(trimmed, ";") + " " + limit + ";"
	} else {
		result.Query = trimmed + " " + limit
	}
	result.Corrections = append(result.Corrections, "injected "+limit+" row bound")

	return result
}
