package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TFMV/sage/pkg/models"
)

// panickyClassifier implements VisualizationClassifier
type panickyClassifier struct{}

func (p *panickyClassifier) Classify(rows []models.Row, query, question string) models.VisualizationDecision {
	panic("classifier exploded")
}

func newTestAssembler() ResponseAssembler {
	return NewResponseAssembler(newTestClassifier(), &mockLogger{}, &mockMetricsCollector{})
}

func TestAssembleWithoutExecution(t *testing.T) {
	asm := newTestAssembler()
	ec := NewExecutionContext("req-1")

	resp := asm.Assemble("I could not find anything to query.", ec, models.AskRequest{Question: "hello"}, time.Now())

	assert.True(t, resp.Success)
	assert.Equal(t, "I could not find anything to query.", resp.Answer)
	assert.Equal(t, models.VisualizationText, resp.Visualization)
	assert.Empty(t, resp.Data)
	assert.Equal(t, 0, resp.RowCount)
	assert.Equal(t, 0, resp.Metadata["executions"])
	assert.Equal(t, "req-1", resp.Metadata["request_id"])
}

func TestAssembleFormattedResponse(t *testing.T) {
	asm := newTestAssembler()
	ec := NewExecutionContext("req-1")
	ec.Record(models.QueryRecord{
		Query:     "SELECT COUNT(*) FROM clientes",
		Succeeded: true,
		Rows:      []models.Row{makeRow([]string{"count"}, 150)},
	})

	req := models.AskRequest{
		Question:       "how many clients?",
		IncludeSQL:     true,
		FormatResponse: true,
	}
	resp := asm.Assemble("There are 150 clients.", ec, req, time.Now())

	assert.True(t, resp.Success)
	assert.Equal(t, 1, resp.RowCount)
	assert.Equal(t, "SELECT COUNT(*) FROM clientes", resp.SQLQuery)
	assert.Equal(t, models.VisualizationKPI, resp.Visualization)
	assert.Equal(t, 150, resp.VizMetadata["value"])
}

func TestAssembleUnformattedDefaultsToTable(t *testing.T) {
	asm := newTestAssembler()
	ec := NewExecutionContext("req-1")
	ec.Record(models.QueryRecord{
		Query:     "SELECT nombre FROM clientes LIMIT 2",
		Succeeded: true,
		Rows: []models.Row{
			makeRow([]string{"nombre"}, "Ana"),
			makeRow([]string{"nombre"}, "Luis"),
		},
	})

	resp := asm.Assemble("Here are two clients.", ec, models.AskRequest{Question: "list clients"}, time.Now())

	assert.True(t, resp.Success)
	assert.Equal(t, models.VisualizationTable, resp.Visualization)
	assert.Nil(t, resp.VizMetadata)
	// SQL is withheld unless explicitly requested.
	assert.Empty(t, resp.SQLQuery)
}

func TestAssembleFailedQuery(t *testing.T) {
	asm := newTestAssembler()
	ec := NewExecutionContext("req-1")
	ec.Record(models.QueryRecord{
		Query:     "SELECT * FROM missing_table",
		Succeeded: false,
		Error:     "relation \"missing_table\" does not exist",
	})

	req := models.AskRequest{Question: "anything", FormatResponse: true}
	resp := asm.Assemble("The table does not exist.", ec, req, time.Now())

	assert.False(t, resp.Success)
	assert.Equal(t, "relation \"missing_table\" does not exist", resp.Error)
	assert.Equal(t, models.VisualizationText, resp.Visualization)
	assert.Equal(t, 0, resp.RowCount)
}

func TestAssembleSurfacesCorrections(t *testing.T) {
	asm := newTestAssembler()
	ec := NewExecutionContext("req-1")
	ec.Record(models.QueryRecord{
		Query:       "SELECT * FROM clientes LIMIT 50",
		Succeeded:   true,
		Rows:        []models.Row{makeRow([]string{"id"}, 1)},
		Corrections: []string{"injected LIMIT 50 row bound"},
		Advisories:  []string{"query does not filter by schema; system schemas may be included"},
	})

	resp := asm.Assemble("One client.", ec, models.AskRequest{Question: "clients"}, time.Now())

	assert.Equal(t, []string{"injected LIMIT 50 row bound"}, resp.Metadata["query_corrections"])
	assert.NotEmpty(t, resp.Metadata["query_advisories"])
}

func TestAssembleTruncationFlag(t *testing.T) {
	asm := newTestAssembler()
	ec := NewExecutionContext("req-1")
	ec.Record(models.QueryRecord{
		Query:     "SELECT * FROM clientes LIMIT 50",
		Succeeded: true,
		Rows:      []models.Row{makeRow([]string{"id"}, 1)},
		Truncated: true,
	})

	resp := asm.Assemble("Many clients.", ec, models.AskRequest{Question: "clients"}, time.Now())
	assert.True(t, resp.Truncated)
}

func TestAssembleRecoversFromPanic(t *testing.T) {
	asm := NewResponseAssembler(&panickyClassifier{}, &mockLogger{}, &mockMetricsCollector{})
	ec := NewExecutionContext("req-1")
	ec.Record(models.QueryRecord{
		Query:     "SELECT COUNT(*) FROM clientes",
		Succeeded: true,
		Rows:      []models.Row{makeRow([]string{"count"}, 150)},
	})

	req := models.AskRequest{Question: "how many?", FormatResponse: true}
	resp := asm.Assemble("There are 150.", ec, req, time.Now())

	require.False(t, resp.Success)
	assert.Contains(t, resp.Error, "response assembly failed")
	assert.Equal(t, models.VisualizationText, resp.Visualization)
	assert.Equal(t, "There are 150.", resp.Answer)
}
