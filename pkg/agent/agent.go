package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/TFMV/sage/pkg/errors"
	"github.com/TFMV/sage/pkg/models"
	"github.com/TFMV/sage/pkg/repositories"
	"github.com/TFMV/sage/pkg/services"
)

// Defaults for the reasoning loop.
const (
	DefaultMaxIterations   = 10
	DefaultMaxSchemaTables = 10
)

// Options tunes the reasoning loop.
type Options struct {
	// MaxIterations bounds the number of model rounds per question.
	MaxIterations int
	// MaxRows is the row bound the guard injects; results at or above it
	// are reported to the model as truncated.
	MaxRows int
	// MaxSchemaTables bounds how many tables the schema tool returns when
	// the question mentions specific tables.
	MaxSchemaTables int
}

// Agent runs the question-to-answer loop: it hands the user's question to the
// model, dispatches the tool calls the model requests, and returns the final
// text answer. Every executed query is recorded in the request's
// ExecutionContext.
type Agent struct {
	llm       LLMClient
	guard     services.QueryGuard
	optimizer services.ResultOptimizer
	schema    services.SchemaService
	queries   repositories.QueryRepository
	tokens    services.TokenTracker
	logger    services.Logger
	metrics   services.MetricsCollector

	maxIterations   int
	maxRows         int
	maxSchemaTables int
}

// NewAgent creates an agent.
func NewAgent(
	llm LLMClient,
	guard services.QueryGuard,
	optimizer services.ResultOptimizer,
	schema services.SchemaService,
	queries repositories.QueryRepository,
	tokens services.TokenTracker,
	logger services.Logger,
	metrics services.MetricsCollector,
	opts Options,
) *Agent {
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultMaxIterations
	}
	if opts.MaxRows <= 0 {
		opts.MaxRows = services.DefaultGuardMaxRows
	}
	if opts.MaxSchemaTables <= 0 {
		opts.MaxSchemaTables = DefaultMaxSchemaTables
	}
	return &Agent{
		llm:             llm,
		guard:           guard,
		optimizer:       optimizer,
		schema:          schema,
		queries:         queries,
		tokens:          tokens,
		logger:          logger,
		metrics:         metrics,
		maxIterations:   opts.MaxIterations,
		maxRows:         opts.MaxRows,
		maxSchemaTables: opts.MaxSchemaTables,
	}
}

// Run answers a natural-language question. Queries executed along the way are
// recorded in ec; the returned string is the model's final answer.
func (a *Agent) Run(ctx context.Context, question string, ec *services.ExecutionContext) (string, error) {
	conv := a.llm.StartConversation(systemPrompt, toolDefinitions())

	var (
		toolOutputs []string
		schemaText  string
	)

	turn, err := conv.Send(ctx, question)
	if err != nil {
		return "", errors.Wrap(err, errors.CodeModelFailed, "model request failed")
	}

	for i := 0; i < a.maxIterations; i++ {
		if len(turn.Calls) == 0 {
			answer := strings.TrimSpace(turn.Text)
			if answer == "" {
				return "", errors.New(errors.CodeModelFailed, "model returned an empty response")
			}
			a.tokens.CountRequest(systemPrompt, schemaText, question, toolOutputs, answer)
			return answer, nil
		}

		outcomes := make([]ToolOutcome, 0, len(turn.Calls))
		for _, call := range turn.Calls {
			a.logger.Debug("Dispatching tool call", "tool", call.Name, "iteration", i)
			a.metrics.IncrementCounter("agent_tool_calls", "tool", call.Name)

			var result map[string]interface{}
			switch call.Name {
			case toolGetSchema:
				var text string
				result, text = a.getSchema(ctx, call.Args, question)
				if text != "" {
					schemaText = text
				}
			case toolRunQuery:
				result = a.runQuery(ctx, ec, call.Args, question)
			default:
				result = map[string]interface{}{
					"success": false,
					"error":   fmt.Sprintf("unknown tool: %s", call.Name),
				}
			}

			toolOutputs = append(toolOutputs, toolOutputText(result))
			outcomes = append(outcomes, ToolOutcome{Name: call.Name, Result: result})
		}

		turn, err = conv.SendToolResults(ctx, outcomes)
		if err != nil {
			return "", errors.Wrap(err, errors.CodeModelFailed, "model request failed")
		}
	}

	a.metrics.IncrementCounter("agent_iteration_limit_hits")
	return "", errors.New(errors.CodeModelFailed, "model did not produce a final answer")
}

// getSchema serves the get_schema tool. It returns the tool result for the
// model and the full formatted schema text for token accounting.
func (a *Agent) getSchema(ctx context.Context, args map[string]interface{}, question string) (map[string]interface{}, string) {
	refresh, _ := args["refresh"].(bool)
	a.logger.Info("Retrieving database schema", "refresh", refresh)

	tables, err := a.schema.Load(ctx, refresh)
	if err != nil {
		a.logger.Error("Schema load failed", "error", err)
		return map[string]interface{}{"success": false, "error": err.Error()}, ""
	}

	text := a.schema.FormatForPrompt(tables)
	return map[string]interface{}{
		"success":     true,
		"schema":      a.optimizer.OptimizeSchema(text, question, a.maxSchemaTables),
		"table_count": len(tables),
	}, text
}

// runQuery serves the run_query tool: validate through the guard, execute,
// record the outcome, and return an optimized view of the rows to the model.
// Blocked queries are reported to the model but never recorded; they are not
// executions.
func (a *Agent) runQuery(ctx context.Context, ec *services.ExecutionContext, args map[string]interface{}, question string) map[string]interface{} {
	raw, _ := args["query"].(string)

	verdict := a.guard.Accept(raw)
	if !verdict.Allowed {
		a.logger.Warn("Query blocked by guardrails", "query", raw)
		return map[string]interface{}{
			"success": false,
			"error":   "Query blocked by guardrails (only SELECT allowed)",
			"query":   raw,
		}
	}

	query := verdict.Query
	for _, correction := range verdict.Corrections {
		a.logger.Info("Applied query correction", "correction", correction)
	}
	for _, advisory := range verdict.Advisories {
		a.logger.Warn("Query advisory", "advisory", advisory)
	}

	a.logger.Info("Executing query", "query", query)
	start := time.Now()
	rows, err := a.queries.ExecuteQuery(ctx, query)
	duration := time.Since(start)

	if err != nil {
		a.logger.Error("Query failed", "query", query, "error", err)
		a.metrics.IncrementCounter("agent_query_failures")
		ec.Record(models.QueryRecord{
			Query:       query,
			Error:       err.Error(),
			Duration:    duration,
			Corrections: verdict.Corrections,
			Advisories:  verdict.Advisories,
		})
		return map[string]interface{}{
			"success": false,
			"error":   err.Error(),
			"query":   query,
		}
	}

	truncated := len(rows) >= a.maxRows
	ec.Record(models.QueryRecord{
		Query:       query,
		Succeeded:   true,
		Rows:        rows,
		Truncated:   truncated,
		Duration:    duration,
		Corrections: verdict.Corrections,
		Advisories:  verdict.Advisories,
	})

	if len(rows) == 0 {
		return map[string]interface{}{
			"success": true,
			"message": "Query executed successfully (no results)",
			"query":   query,
		}
	}

	message := fmt.Sprintf("Query succeeded! Returned %d rows.", len(rows))
	if truncated {
		message += fmt.Sprintf(" (NOTE: Results were truncated to %d rows for efficiency. If you need more specific data, refine your WHERE clause.)", a.maxRows)
	}

	// The model sees the optimized payload, not the raw rows: pruned fields,
	// compressed values, and a summary when the result set is large.
	payload := a.optimizer.Optimize(rows, question)
	data := a.optimizer.FormatForLLM(payload.Rows, services.FormatCompact)
	if payload.Summary != "" {
		data += "\n" + payload.Summary
	}
	return map[string]interface{}{
		"success": true,
		"data":    data,
		"message": message,
		"query":   query,
	}
}

// toolOutputText flattens a tool result into text for token accounting.
func toolOutputText(result map[string]interface{}) string {
	var b strings.Builder
	for _, key := range []string{"message", "data", "schema", "error"} {
		if v, ok := result[key].(string); ok && v != "" {
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString(v)
		}
	}
	return b.String()
}
