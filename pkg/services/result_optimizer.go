package services

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/TFMV/sage/pkg/models"
)

// Defaults for the result optimizer.
const (
	DefaultOptimizerMaxRows = 20
	DefaultMaxCharsPerField = 100
	summaryThresholdRows    = 5
	summaryMaxNumericFields = 2
	readableCellMaxChars    = 50
)

// OutputFormat selects how optimized rows are rendered for the model.
type OutputFormat string

const (
	FormatCompact  OutputFormat = "compact"
	FormatReadable OutputFormat = "readable"
	FormatJSON     OutputFormat = "json"
)

// essentialFields are always kept, in English and Spanish, even when a name
// also matches the redundant list.
var essentialFields = map[string]bool{
	"id": true, "name": true, "nombre": true, "title": true, "titulo": true,
	"total": true, "count": true, "sum": true, "avg": true, "amount": true,
	"status": true, "estado": true, "type": true, "tipo": true,
}

// redundantFields rarely help the model answer: audit timestamps, secrets,
// and blob-ish payload columns.
var redundantFields = map[string]bool{
	"created_at": true, "updated_at": true, "deleted_at": true,
	"password": true, "password_hash": true, "token": true,
	"metadata": true, "extra_data": true, "raw_data": true,
}

var dateQuestionKeywords = []string{"fecha", "date", "cuando", "when", "último", "last", "primero", "first"}

var dateFieldMarkers = []string{"date", "fecha", "created", "updated", "time"}

// resultOptimizer implements ResultOptimizer.
type resultOptimizer struct {
	maxRows          int
	maxCharsPerField int
	logger           Logger
}

// NewResultOptimizer creates a result optimizer with the given bounds.
func NewResultOptimizer(maxRows, maxCharsPerField int, logger Logger) ResultOptimizer {
	if maxRows <= 0 {
		maxRows = DefaultOptimizerMaxRows
	}
	if maxCharsPerField <= 0 {
		maxCharsPerField = DefaultMaxCharsPerField
	}
	return &resultOptimizer{maxRows: maxRows, maxCharsPerField: maxCharsPerField, logger: logger}
}

// Optimize compresses a raw query result before it is fed back into the
// reasoning loop. Pure function of its inputs and the fixed field lists;
// source rows are never mutated.
func (o *resultOptimizer) Optimize(rows []models.Row, question string) models.OptimizedPayload {
	if len(rows) == 0 {
		return models.OptimizedPayload{
			Rows:     []models.Row{},
			RowCount: 0,
			Summary:  "No results found.",
		}
	}

	originalRows := len(rows)
	originalFields := rows[0].Len()

	truncated := originalRows > o.maxRows
	working := rows
	if truncated {
		working = rows[:o.maxRows]
	}

	relevant := o.relevantFields(rows[0].Columns, strings.ToLower(question))

	optimized := make([]models.Row, 0, len(working))
	for _, row := range working {
		cols := make([]string, 0, len(row.Columns))
		vals := make(map[string]interface{}, len(row.Columns))
		for _, col := range row.Columns {
			if !relevant[col] {
				continue
			}
			cols = append(cols, col)
			vals[col] = o.compressValue(row.Values[col])
		}
		optimized = append(optimized, models.Row{Columns: cols, Values: vals})
	}

	kept := 0
	for _, col := range rows[0].Columns {
		if relevant[col] {
			kept++
		}
	}

	payload := models.OptimizedPayload{
		Rows:          optimized,
		RowCount:      originalRows,
		DisplayedRows: len(optimized),
		Truncated:     truncated,
		FieldsKept:    kept,
		FieldsRemoved: originalFields - kept,
	}

	if originalRows > summaryThresholdRows {
		payload.Summary = o.generateSummary(rows, originalRows, truncated)
	}

	return payload
}

// relevantFields determines which source fields survive optimization:
// the essential allowlist, anything the question mentions, anything not on
// the redundant denylist, and date-like fields when the question asks about
// dates.
func (o *resultOptimizer) relevantFields(fields []string, question string) map[string]bool {
	relevant := make(map[string]bool, len(fields))

	for _, field := range fields {
		lower := strings.ToLower(field)
		switch {
		case essentialFields[lower]:
			relevant[field] = true
		case question != "" && (strings.Contains(question, lower) || strings.Contains(question, strings.ReplaceAll(lower, "_", " "))):
			relevant[field] = true
		case !redundantFields[lower]:
			relevant[field] = true
		}
	}

	if containsAny(question, dateQuestionKeywords) {
		for _, field := range fields {
			if containsAny(strings.ToLower(field), dateFieldMarkers) {
				relevant[field] = true
			}
		}
	}

	return relevant
}

// compressValue bounds the character cost of a single value. Long strings
// are cut with an explicit marker; structured values that would serialize
// too large are replaced with a placeholder.
func (o *resultOptimizer) compressValue(value interface{}) interface{} {
	if value == nil {
		return nil
	}

	switch v := value.(type) {
	case string:
		if cut := truncateRunes(v, o.maxCharsPerField); cut != v {
			return cut + "..."
		}
		return v
	case map[string]interface{}, []interface{}:
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("[Complex object, unserializable: %v]", err)
		}
		if len(raw) > o.maxCharsPerField {
			return fmt.Sprintf("[Complex object, %d chars]", len(raw))
		}
		return v
	default:
		return value
	}
}

// generateSummary produces the one-line statistical summary appended to
// larger results: total count, truncation note, and the mean of up to two
// numeric fields (id excluded).
func (o *resultOptimizer) generateSummary(rows []models.Row, totalRows int, truncated bool) string {
	parts := []string{fmt.Sprintf("Total: %d rows", totalRows)}

	if truncated {
		parts = append(parts, fmt.Sprintf("(showing first %d)", o.maxRows))
	}

	numericFields := make([]string, 0, summaryMaxNumericFields)
	for _, col := range rows[0].Columns {
		if strings.EqualFold(col, "id") {
			continue
		}
		if models.IsNumeric(rows[0].Values[col]) {
			numericFields = append(numericFields, col)
			if len(numericFields) == summaryMaxNumericFields {
				break
			}
		}
	}

	for _, field := range numericFields {
		var sum float64
		var n int
		for _, row := range rows {
			if f, ok := models.AsFloat(row.Values[field]); ok {
				sum += f
				n++
			}
		}
		if n > 0 {
			parts = append(parts, fmt.Sprintf("Avg %s: %.2f", field, sum/float64(n)))
		}
	}

	return strings.Join(parts, " | ")
}

// FormatForLLM renders rows as text for the tool result fed back to the
// reasoning loop.
func (o *resultOptimizer) FormatForLLM(rows []models.Row, format OutputFormat) string {
	if len(rows) == 0 {
		return "No data"
	}
	if len(rows) > o.maxRows {
		rows = rows[:o.maxRows]
	}

	switch format {
	case FormatReadable:
		headers := rows[0].Columns
		lines := []string{"| " + strings.Join(headers, " | ") + " |"}
		sep := make([]string, len(headers))
		for i := range sep {
			sep[i] = "---"
		}
		lines = append(lines, "| "+strings.Join(sep, " | ")+" |")
		for _, row := range rows {
			cells := make([]string, len(headers))
			for i, h := range headers {
				cell := fmt.Sprintf("%v", row.Values[h])
				if row.Values[h] == nil {
					cell = ""
				}
				cells[i] = truncateRunes(cell, readableCellMaxChars)
			}
			lines = append(lines, "| "+strings.Join(cells, " | ")+" |")
		}
		return strings.Join(lines, "\n")

	case FormatJSON:
		raw, err := json.Marshal(rows)
		if err != nil {
			return fmt.Sprintf("[unserializable result: %v]", err)
		}
		return string(raw)

	default: // FormatCompact
		lines := make([]string, 0, len(rows))
		for i, row := range rows {
			parts := make([]string, 0, len(row.Columns))
			for _, col := range row.Columns {
				if row.Values[col] == nil {
					continue
				}
				parts = append(parts, fmt.Sprintf("%s=%v", col, row.Values[col]))
			}
			lines = append(lines, fmt.Sprintf("%d. %s", i+1, strings.Join(parts, " | ")))
		}
		return strings.Join(lines, "\n")
	}
}

// commonSchemaKeywords are always considered relevant when trimming the
// schema, alongside words lifted from the question.
var commonSchemaKeywords = []string{
	"cliente", "client", "orden", "order", "producto", "product",
	"venta", "sale", "factura", "invoice", "pago", "payment",
}

var auditColumns = map[string]bool{
	"created_at": true, "updated_at": true, "deleted_at": true,
	"created_by": true, "updated_by": true,
}

// OptimizeSchema trims a formatted schema to the tables most relevant to the
// question, dropping audit columns unless the question asks about dates.
func (o *resultOptimizer) OptimizeSchema(schema, question string, maxTables int) string {
	questionLower := strings.ToLower(question)
	keywords := map[string]bool{}
	for _, w := range strings.Fields(questionLower) {
		keywords[w] = true
	}
	for _, w := range commonSchemaKeywords {
		keywords[w] = true
	}

	wantsDates := containsAny(questionLower, []string{"fecha", "date", "cuando", "created", "updated"})

	var out []string
	includeTable := true
	tablesIncluded := 0

	for _, line := range strings.Split(schema, "\n") {
		if strings.HasPrefix(line, "Table:") {
			name := strings.ToLower(strings.Fields(strings.TrimSpace(strings.TrimPrefix(line, "Table:")))[0])
			includeTable = tablesIncluded < maxTables &&
				(question == "" || keywordMatchesTable(keywords, name) || tablesIncluded < 5)
			if includeTable {
				tablesIncluded++
				out = append(out, line)
			}
			continue
		}
		if !includeTable {
			continue
		}
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "-") {
			colFields := strings.Fields(strings.TrimLeft(trimmed, "- "))
			if len(colFields) > 0 && auditColumns[strings.ToLower(colFields[0])] && !wantsDates {
				continue
			}
		}
		out = append(out, line)
	}

	return strings.Join(out, "\n")
}

func keywordMatchesTable(keywords map[string]bool, tableName string) bool {
	for kw := range keywords {
		if kw != "" && strings.Contains(tableName, kw) {
			return true
		}
	}
	return false
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// truncateRunes cuts s to at most max runes, never splitting a multi-byte
// character.
func truncateRunes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
