package services

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TFMV/sage/pkg/models"
)

func newTestClassifier() VisualizationClassifier {
	return NewVisualizationClassifier(&mockLogger{})
}

func TestClassifyNoData(t *testing.T) {
	c := newTestClassifier()

	viz := c.Classify(nil, "SELECT * FROM clientes", "")

	assert.Equal(t, models.VisualizationText, viz.Kind)
	assert.Equal(t, "no_data", viz.Metadata["reason"])
}

func TestClassifySingleScalarIsKPI(t *testing.T) {
	c := newTestClassifier()

	rows := []models.Row{makeRow([]string{"count"}, 150)}
	viz := c.Classify(rows, "SELECT COUNT(*) FROM clientes", "how many clients?")

	assert.Equal(t, models.VisualizationKPI, viz.Kind)
	assert.Equal(t, 150, viz.Metadata["value"])
}

func TestClassifySingleRowWithContextIsKPI(t *testing.T) {
	c := newTestClassifier()

	rows := []models.Row{
		makeRow([]string{"nombre", "total"}, "Ana", 4200.5),
	}
	viz := c.Classify(rows, "SELECT nombre, SUM(monto) AS total FROM ventas GROUP BY nombre LIMIT 1", "")

	assert.Equal(t, models.VisualizationKPI, viz.Kind)
	assert.Equal(t, 4200.5, viz.Metadata["primary_value"])

	context, ok := viz.Metadata["context"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Ana", context["nombre"])
}

func TestClassifyCategoryValuePairs(t *testing.T) {
	c := newTestClassifier()

	makeRows := func(n int) []models.Row {
		rows := make([]models.Row, n)
		for i := range rows {
			rows[i] = makeRow([]string{"city", "n"}, fmt.Sprintf("city-%d", i), i+1)
		}
		return rows
	}

	tests := []struct {
		name string
		rows int
		want models.VisualizationKind
	}{
		{"two categories", 2, models.VisualizationPieChart},
		{"eight categories", 8, models.VisualizationPieChart},
		{"nine categories", 9, models.VisualizationBarChart},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			viz := c.Classify(makeRows(tt.rows), "SELECT city, COUNT(*) AS n FROM clientes GROUP BY city", "")
			assert.Equal(t, tt.want, viz.Kind)
			assert.Equal(t, "city", viz.Metadata["category_column"])
			assert.Equal(t, "n", viz.Metadata["value_column"])
		})
	}
}

func TestClassifyNonNumericValueColumnFallsThrough(t *testing.T) {
	c := newTestClassifier()

	rows := []models.Row{
		makeRow([]string{"city", "zone"}, "Lima", "north"),
		makeRow([]string{"city", "zone"}, "Cusco", "south"),
	}
	viz := c.Classify(rows, "SELECT city, zone FROM clientes", "")

	assert.Equal(t, models.VisualizationTable, viz.Kind)
}

func TestClassifyTimeSeries(t *testing.T) {
	c := newTestClassifier()

	rows := []models.Row{
		makeRow([]string{"fecha", "region", "total"}, "2024-01-01", "north", 10.0),
		makeRow([]string{"fecha", "region", "total"}, "2024-01-02", "north", 12.0),
	}
	viz := c.Classify(rows, "SELECT fecha, region, SUM(monto) AS total FROM ventas GROUP BY 1, 2", "sales over time")

	assert.Equal(t, models.VisualizationLineChart, viz.Kind)
	assert.Equal(t, "fecha", viz.Metadata["date_column"])
	assert.Equal(t, "total", viz.Metadata["value_column"])
}

func TestClassifySingleRowCountWithoutNumericValues(t *testing.T) {
	c := newTestClassifier()

	// Numeric-looking strings are not numeric, so the shape rules fall
	// through to the COUNT keyword rule.
	rows := []models.Row{
		makeRow([]string{"total", "label"}, "150", "clientes"),
	}
	viz := c.Classify(rows, "SELECT COUNT(*) AS total, 'clientes' AS label FROM clientes", "")

	assert.Equal(t, models.VisualizationKPI, viz.Kind)
	assert.Equal(t, "150", viz.Metadata["value"])
}

func TestClassifyDefaultTable(t *testing.T) {
	c := newTestClassifier()

	rows := []models.Row{
		makeRow([]string{"nombre", "email", "ciudad"}, "Ana", "ana@example.com", "Lima"),
		makeRow([]string{"nombre", "email", "ciudad"}, "Luis", "luis@example.com", "Cusco"),
	}
	viz := c.Classify(rows, "SELECT nombre, email, ciudad FROM clientes", "list the clients")

	assert.Equal(t, models.VisualizationTable, viz.Kind)
	assert.Equal(t, 3, viz.Metadata["column_count"])
	assert.Equal(t, 2, viz.Metadata["row_count"])
}
