package services

import (
	"strings"

	"github.com/TFMV/sage/pkg/models"
)

// pieChartMaxCategories is the category count at which a two-column result
// switches from a pie to a bar chart.
const pieChartMaxCategories = 8

var aggregationKeywords = []string{"SUM", "AVG", "MAX", "MIN", "TOTAL"}

var vizDateMarkers = []string{"date", "time", "created", "updated", "timestamp", "fecha"}

// vizClassifier implements VisualizationClassifier.
type vizClassifier struct {
	logger Logger
}

// NewVisualizationClassifier creates a visualization classifier.
func NewVisualizationClassifier(logger Logger) VisualizationClassifier {
	return &vizClassifier{logger: logger}
}

// Classify infers the rendering hint for a result. Rules are evaluated in
// strict order and the first match wins; every input shape reaches exactly
// one rule, so the decision is total and deterministic.
func (c *vizClassifier) Classify(rows []models.Row, query, question string) models.VisualizationDecision {
	// Rule 1: nothing to render.
	if len(rows) == 0 {
		return decision(models.VisualizationText, map[string]interface{}{"reason": "no_data"})
	}

	first := rows[0]

	// Rule 2: a single scalar is a KPI.
	if len(rows) == 1 && first.Len() == 1 {
		return decision(models.VisualizationKPI, map[string]interface{}{
			"value": first.Values[first.Columns[0]],
		})
	}

	// Rule 3: one row with at least one numeric field is a KPI with context.
	if len(rows) == 1 {
		var numericCols []string
		for _, col := range first.Columns {
			if models.IsNumeric(first.Values[col]) {
				numericCols = append(numericCols, col)
			}
		}
		if len(numericCols) >= 1 {
			context := map[string]interface{}{}
			for _, col := range first.Columns {
				if !models.IsNumeric(first.Values[col]) {
					context[col] = first.Values[col]
				}
			}
			return decision(models.VisualizationKPI, map[string]interface{}{
				"primary_value": first.Values[numericCols[0]],
				"context":       context,
			})
		}
	}

	// Rule 4: category + numeric value pairs become pie or bar charts.
	if len(rows) > 1 && first.Len() == 2 {
		valueCol := first.Columns[1]
		allNumeric := true
		for _, row := range rows {
			if !models.IsNumeric(row.Values[valueCol]) {
				allNumeric = false
				break
			}
		}
		if allNumeric {
			meta := map[string]interface{}{
				"category_column": first.Columns[0],
				"value_column":    valueCol,
			}
			if len(rows) <= pieChartMaxCategories {
				return decision(models.VisualizationPieChart, meta)
			}
			return decision(models.VisualizationBarChart, meta)
		}
	}

	// Rule 5: a date-like column next to a numeric one is a time series.
	var dateCols []string
	for _, col := range first.Columns {
		if containsAny(strings.ToLower(col), vizDateMarkers) {
			dateCols = append(dateCols, col)
		}
	}
	if len(dateCols) > 0 {
		isDate := make(map[string]bool, len(dateCols))
		for _, col := range dateCols {
			isDate[col] = true
		}
		for _, col := range first.Columns {
			if !isDate[col] && models.IsNumeric(first.Values[col]) {
				return decision(models.VisualizationLineChart, map[string]interface{}{
					"date_column":  dateCols[0],
					"value_column": col,
				})
			}
		}
	}

	upperQuery := strings.ToUpper(query)

	// Rule 6: single-row COUNT results are KPIs.
	if strings.Contains(upperQuery, "COUNT") && len(rows) == 1 {
		return decision(models.VisualizationKPI, map[string]interface{}{
			"value": first.Values[first.Columns[0]],
		})
	}

	// Rule 7: single-row aggregations are KPIs.
	if len(rows) == 1 && containsAny(upperQuery, aggregationKeywords) {
		return decision(models.VisualizationKPI, map[string]interface{}{
			"value": first.Values[first.Columns[0]],
		})
	}

	// Rule 8: default to a table.
	return decision(models.VisualizationTable, map[string]interface{}{
		"reason":       "default_table",
		"column_count": first.Len(),
		"row_count":    len(rows),
	})
}

func decision(kind models.VisualizationKind, metadata map[string]interface{}) models.VisualizationDecision {
	return models.VisualizationDecision{Kind: kind, Metadata: metadata}
}
