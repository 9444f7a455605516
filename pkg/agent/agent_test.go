package agent

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sageerrors "github.com/TFMV/sage/pkg/errors"
	"github.com/TFMV/sage/pkg/models"
	"github.com/TFMV/sage/pkg/services"
)

type mockLogger struct{}

func (m *mockLogger) Debug(msg string, keysAndValues ...interface{}) {}
func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Warn(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}

type mockMetrics struct{}

func (m *mockMetrics) IncrementCounter(name string, labels ...string)               {}
func (m *mockMetrics) RecordHistogram(name string, value float64, labels ...string) {}
func (m *mockMetrics) RecordGauge(name string, value float64, labels ...string)     {}

type mockQueryRepository struct {
	executeFunc func(ctx context.Context, query string) ([]models.Row, error)
}

func (m *mockQueryRepository) ExecuteQuery(ctx context.Context, query string) ([]models.Row, error) {
	return m.executeFunc(ctx, query)
}

type mockMetadataRepository struct {
	getTablesFunc func(ctx context.Context) ([]models.Table, error)
}

func (m *mockMetadataRepository) GetTables(ctx context.Context) ([]models.Table, error) {
	return m.getTablesFunc(ctx)
}

// scriptedConversation replays a fixed sequence of model turns and records
// the tool results it is fed.
type scriptedConversation struct {
	turns    []Turn
	next     int
	received [][]ToolOutcome
}

func (c *scriptedConversation) advance() (Turn, error) {
	if c.next >= len(c.turns) {
		return Turn{}, errors.New("no scripted turns left")
	}
	turn := c.turns[c.next]
	c.next++
	return turn, nil
}

func (c *scriptedConversation) Send(ctx context.Context, text string) (Turn, error) {
	return c.advance()
}

func (c *scriptedConversation) SendToolResults(ctx context.Context, results []ToolOutcome) (Turn, error) {
	c.received = append(c.received, results)
	return c.advance()
}

type scriptedLLM struct {
	conv *scriptedConversation
}

func (l *scriptedLLM) StartConversation(systemPrompt string, tools []ToolDefinition) Conversation {
	return l.conv
}

func newTestAgent(t *testing.T, conv *scriptedConversation, queries *mockQueryRepository) (*Agent, services.TokenTracker) {
	t.Helper()

	logger := &mockLogger{}
	metrics := &mockMetrics{}

	metadata := &mockMetadataRepository{
		getTablesFunc: func(ctx context.Context) ([]models.Table, error) {
			return []models.Table{
				{
					Schema: "public",
					Name:   "clientes",
					Columns: []models.Column{
						{Name: "id", Type: "integer"},
						{Name: "nombre", Type: "text", Nullable: true},
					},
					PrimaryKeys: []string{"id"},
				},
			}, nil
		},
	}

	tokens := services.NewTokenTracker(services.DefaultPricing, logger, metrics)
	agent := NewAgent(
		&scriptedLLM{conv: conv},
		services.NewQueryGuard(services.DefaultGuardMaxRows, logger, metrics),
		services.NewResultOptimizer(services.DefaultOptimizerMaxRows, services.DefaultMaxCharsPerField, logger),
		services.NewSchemaService(metadata, 0, logger, metrics),
		queries,
		tokens,
		logger,
		metrics,
		Options{},
	)
	return agent, tokens
}

func TestAgentRunAnswersAfterSchemaAndQuery(t *testing.T) {
	conv := &scriptedConversation{
		turns: []Turn{
			{Calls: []ToolCall{{Name: toolGetSchema, Args: map[string]interface{}{}}}},
			{Calls: []ToolCall{{
				Name: toolRunQuery,
				Args: map[string]interface{}{"query": "SELECT COUNT(*) FROM clientes"},
			}}},
			{Text: "There are 150 clients in the database."},
		},
	}

	var executed string
	queries := &mockQueryRepository{
		executeFunc: func(ctx context.Context, query string) ([]models.Row, error) {
			executed = query
			return []models.Row{
				models.NewRow([]string{"count"}, []interface{}{int64(150)}),
			}, nil
		},
	}

	agent, tokens := newTestAgent(t, conv, queries)
	ec := services.NewExecutionContext("req-1")

	answer, err := agent.Run(context.Background(), "How many clients do we have?", ec)
	require.NoError(t, err)
	assert.Equal(t, "There are 150 clients in the database.", answer)

	// COUNT queries must not have a LIMIT injected.
	assert.Equal(t, "SELECT COUNT(*) FROM clientes", executed)

	last, ok := ec.Last()
	require.True(t, ok)
	assert.True(t, last.Succeeded)
	assert.Len(t, last.Rows, 1)
	assert.False(t, last.Truncated)

	// One completed request should be accounted for.
	stats := tokens.SessionStats()
	assert.Equal(t, 1, stats.Requests)
	assert.Greater(t, stats.TotalTokens, 0)
}

func TestAgentRunBlocksWriteQuery(t *testing.T) {
	conv := &scriptedConversation{
		turns: []Turn{
			{Calls: []ToolCall{{
				Name: toolRunQuery,
				Args: map[string]interface{}{"query": "DROP TABLE clientes"},
			}}},
			{Text: "I can only run read-only queries."},
		},
	}

	queries := &mockQueryRepository{
		executeFunc: func(ctx context.Context, query string) ([]models.Row, error) {
			t.Fatal("blocked query must not reach the database")
			return nil, nil
		},
	}

	agent, _ := newTestAgent(t, conv, queries)
	ec := services.NewExecutionContext("req-2")

	answer, err := agent.Run(context.Background(), "Delete the clients table", ec)
	require.NoError(t, err)
	assert.Equal(t, "I can only run read-only queries.", answer)

	require.Len(t, conv.received, 1)
	result := conv.received[0][0].Result
	assert.Equal(t, false, result["success"])
	assert.Contains(t, result["error"], "guardrails")

	// A blocked query is not an execution and must leave no record.
	_, ok := ec.Last()
	assert.False(t, ok)
	assert.Equal(t, 0, ec.Executions())
}

func TestAgentRunBlockedQueryKeepsEarlierResult(t *testing.T) {
	conv := &scriptedConversation{
		turns: []Turn{
			{Calls: []ToolCall{{
				Name: toolRunQuery,
				Args: map[string]interface{}{"query": "SELECT COUNT(*) FROM clientes"},
			}}},
			{Calls: []ToolCall{{
				Name: toolRunQuery,
				Args: map[string]interface{}{"query": "DROP TABLE clientes"},
			}}},
			{Text: "There are 150 clients. I cannot drop tables."},
		},
	}

	queries := &mockQueryRepository{
		executeFunc: func(ctx context.Context, query string) ([]models.Row, error) {
			return []models.Row{
				models.NewRow([]string{"count"}, []interface{}{int64(150)}),
			}, nil
		},
	}

	agent, _ := newTestAgent(t, conv, queries)
	ec := services.NewExecutionContext("req-8")

	answer, err := agent.Run(context.Background(), "How many clients? Then drop the table.", ec)
	require.NoError(t, err)
	assert.Equal(t, "There are 150 clients. I cannot drop tables.", answer)

	// The rejected second query must not overwrite the successful first one.
	last, ok := ec.Last()
	require.True(t, ok)
	assert.True(t, last.Succeeded)
	assert.Len(t, last.Rows, 1)
	assert.Equal(t, 1, ec.Executions())
}

func TestAgentRunInjectsRowLimit(t *testing.T) {
	conv := &scriptedConversation{
		turns: []Turn{
			{Calls: []ToolCall{{
				Name: toolRunQuery,
				Args: map[string]interface{}{"query": "SELECT * FROM clientes"},
			}}},
			{Text: "Here are the clients."},
		},
	}

	var executed string
	queries := &mockQueryRepository{
		executeFunc: func(ctx context.Context, query string) ([]models.Row, error) {
			executed = query
			return nil, nil
		},
	}

	agent, _ := newTestAgent(t, conv, queries)
	ec := services.NewExecutionContext("req-3")

	_, err := agent.Run(context.Background(), "Show me all clients", ec)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM clientes LIMIT 50", executed)
}

func TestAgentRunQueryToolFeedsOptimizedRows(t *testing.T) {
	conv := &scriptedConversation{
		turns: []Turn{
			{Calls: []ToolCall{{
				Name: toolRunQuery,
				Args: map[string]interface{}{"query": "SELECT id, nombre, password_hash FROM clientes"},
			}}},
			{Text: "Here are the clients."},
		},
	}

	queries := &mockQueryRepository{
		executeFunc: func(ctx context.Context, query string) ([]models.Row, error) {
			rows := make([]models.Row, 0, 6)
			for i := 1; i <= 6; i++ {
				rows = append(rows, models.NewRow(
					[]string{"id", "nombre", "password_hash"},
					[]interface{}{int64(i), fmt.Sprintf("cliente-%d", i), "$2a$10$secret"},
				))
			}
			return rows, nil
		},
	}

	agent, _ := newTestAgent(t, conv, queries)
	ec := services.NewExecutionContext("req-9")

	_, err := agent.Run(context.Background(), "List the clients", ec)
	require.NoError(t, err)

	result := conv.received[0][0].Result
	assert.Equal(t, true, result["success"])

	// The model sees pruned fields plus the statistical summary, while the
	// recorder keeps the raw rows for the response assembler.
	data, _ := result["data"].(string)
	assert.Contains(t, data, "nombre=cliente-1")
	assert.NotContains(t, data, "password_hash")
	assert.Contains(t, data, "Total: 6 rows")

	last, ok := ec.Last()
	require.True(t, ok)
	require.Len(t, last.Rows, 6)
	assert.Contains(t, last.Rows[0].Columns, "password_hash")
}

func TestAgentRunReportsQueryError(t *testing.T) {
	conv := &scriptedConversation{
		turns: []Turn{
			{Calls: []ToolCall{{
				Name: toolRunQuery,
				Args: map[string]interface{}{"query": "SELECT missing FROM clientes"},
			}}},
			{Text: "The column does not exist."},
		},
	}

	queries := &mockQueryRepository{
		executeFunc: func(ctx context.Context, query string) ([]models.Row, error) {
			return nil, errors.New(`column "missing" does not exist`)
		},
	}

	agent, _ := newTestAgent(t, conv, queries)
	ec := services.NewExecutionContext("req-4")

	answer, err := agent.Run(context.Background(), "Show the missing column", ec)
	require.NoError(t, err)
	assert.Equal(t, "The column does not exist.", answer)

	result := conv.received[0][0].Result
	assert.Equal(t, false, result["success"])
	assert.Contains(t, result["error"], "does not exist")

	last, ok := ec.Last()
	require.True(t, ok)
	assert.False(t, last.Succeeded)
	assert.Contains(t, last.Error, "does not exist")
}

func TestAgentRunSchemaToolReturnsFormattedSchema(t *testing.T) {
	conv := &scriptedConversation{
		turns: []Turn{
			{Calls: []ToolCall{{Name: toolGetSchema, Args: map[string]interface{}{"refresh": true}}}},
			{Text: "The database has a clientes table."},
		},
	}

	agent, _ := newTestAgent(t, conv, &mockQueryRepository{})
	ec := services.NewExecutionContext("req-5")

	_, err := agent.Run(context.Background(), "What tables exist?", ec)
	require.NoError(t, err)

	result := conv.received[0][0].Result
	assert.Equal(t, true, result["success"])
	assert.Contains(t, result["schema"], "clientes")
	assert.Equal(t, 1, result["table_count"])
}

func TestAgentRunIterationLimit(t *testing.T) {
	// A conversation that never stops asking for tools.
	turns := make([]Turn, 0, DefaultMaxIterations+2)
	for i := 0; i < DefaultMaxIterations+2; i++ {
		turns = append(turns, Turn{Calls: []ToolCall{{Name: toolGetSchema, Args: map[string]interface{}{}}}})
	}
	conv := &scriptedConversation{turns: turns}

	agent, _ := newTestAgent(t, conv, &mockQueryRepository{})
	ec := services.NewExecutionContext("req-6")

	_, err := agent.Run(context.Background(), "Loop forever", ec)
	require.Error(t, err)
	assert.Equal(t, sageerrors.CodeModelFailed, sageerrors.GetCode(err))
}

func TestAgentRunEmptyModelResponse(t *testing.T) {
	conv := &scriptedConversation{turns: []Turn{{Text: "   "}}}

	agent, _ := newTestAgent(t, conv, &mockQueryRepository{})
	ec := services.NewExecutionContext("req-7")

	_, err := agent.Run(context.Background(), "Say nothing", ec)
	require.Error(t, err)
	assert.Equal(t, sageerrors.CodeModelFailed, sageerrors.GetCode(err))
}
