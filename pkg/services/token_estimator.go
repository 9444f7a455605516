package services

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/TFMV/sage/pkg/models"
)

// charsPerToken is the documented approximation used in place of an exact
// tokenizer: roughly four characters per token, cross-checked against a
// word-based estimate.
const charsPerToken = 4

const tokensPerWord = 1.3

// ModelPricing holds per-million-token prices for a model.
type ModelPricing struct {
	Model           string
	PricePerMInput  float64
	PricePerMOutput float64
}

// DefaultPricing matches Gemini 2.0 Flash list prices.
var DefaultPricing = ModelPricing{
	Model:           "gemini-2.0-flash",
	PricePerMInput:  0.075,
	PricePerMOutput: 0.30,
}

// Thresholds for advisory suggestions, evaluated over the last ten samples.
const (
	suggestSchemaTokens  = 1000
	suggestToolTokens    = 500
	suggestAvgTokens     = 2000
	suggestSessionCost   = 0.10
	suggestSampleWindow  = 10
	questionExcerptChars = 100
)

// tokenTracker implements TokenTracker. Session history is shared process
// state; all mutation is mutex-guarded so concurrent requests cannot corrupt
// the running totals.
type tokenTracker struct {
	mu      sync.Mutex
	pricing ModelPricing
	history []models.TokenUsageSample
	totals  models.SessionStats
	logger  Logger
	metrics MetricsCollector
}

// NewTokenTracker creates a session-scoped token usage tracker.
func NewTokenTracker(pricing ModelPricing, logger Logger, metrics MetricsCollector) TokenTracker {
	if pricing.Model == "" {
		pricing = DefaultPricing
	}
	return &tokenTracker{pricing: pricing, logger: logger, metrics: metrics}
}

// Estimate approximates the token count of a text: the average of a
// character-based and a word-based estimate, floored.
func (t *tokenTracker) Estimate(text string) int {
	if text == "" {
		return 0
	}
	charEstimate := len(text) / charsPerToken
	wordEstimate := int(float64(len(strings.Fields(text))) * tokensPerWord)
	return (charEstimate + wordEstimate) / 2
}

// CountRequest sums per-segment estimates for a completed request, appends
// an immutable sample to the session history, and updates running totals.
func (t *tokenTracker) CountRequest(systemPrompt, schema, userQuery string, toolOutputs []string, modelResponse string) models.TokenUsageSample {
	systemTokens := t.Estimate(systemPrompt)
	schemaTokens := t.Estimate(schema)
	queryTokens := t.Estimate(userQuery)
	toolTokens := 0
	for _, out := range toolOutputs {
		toolTokens += t.Estimate(out)
	}

	inputTokens := systemTokens + schemaTokens + queryTokens + toolTokens
	outputTokens := t.Estimate(modelResponse)

	sample := models.TokenUsageSample{
		Timestamp:          time.Now(),
		InputTokens:        inputTokens,
		OutputTokens:       outputTokens,
		TotalTokens:        inputTokens + outputTokens,
		SystemPromptTokens: systemTokens,
		SchemaTokens:       schemaTokens,
		UserQueryTokens:    queryTokens,
		ToolOutputTokens:   toolTokens,
		Question:           truncateRunes(userQuery, questionExcerptChars),
		Model:              t.pricing.Model,
		EstimatedCostUSD:   t.estimateCost(inputTokens, outputTokens),
	}

	t.mu.Lock()
	t.history = append(t.history, sample)
	t.totals.InputTokens += sample.InputTokens
	t.totals.OutputTokens += sample.OutputTokens
	t.totals.TotalTokens += sample.TotalTokens
	t.totals.Requests++
	t.totals.EstimatedCostUSD += sample.EstimatedCostUSD
	t.mu.Unlock()

	t.logger.Info("Token usage",
		"input_tokens", sample.InputTokens,
		"output_tokens", sample.OutputTokens,
		"total_tokens", sample.TotalTokens,
		"estimated_cost_usd", sample.EstimatedCostUSD)
	t.metrics.RecordHistogram("request_estimated_tokens", float64(sample.TotalTokens))

	return sample
}

// estimateCost converts token counts to USD, rounded to six decimals.
func (t *tokenTracker) estimateCost(inputTokens, outputTokens int) float64 {
	cost := float64(inputTokens)/1e6*t.pricing.PricePerMInput +
		float64(outputTokens)/1e6*t.pricing.PricePerMOutput
	return math.Round(cost*1e6) / 1e6
}

// SessionStats returns a snapshot of the running session totals.
func (t *tokenTracker) SessionStats() models.SessionStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.statsLocked()
}

func (t *tokenTracker) statsLocked() models.SessionStats {
	stats := t.totals
	if stats.Requests > 0 {
		stats.AvgTokensPerRequest = stats.TotalTokens / stats.Requests
	}
	stats.HistoryCount = len(t.history)
	return stats
}

// SuggestOptimizations inspects the most recent samples and emits advisory
// strings. No automatic behavior change follows from these.
func (t *tokenTracker) SuggestOptimizations() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.history) == 0 {
		return []string{"Not enough data to analyze."}
	}

	recent := t.history
	if len(recent) > suggestSampleWindow {
		recent = recent[len(recent)-suggestSampleWindow:]
	}

	var schemaSum, toolSum int
	for _, u := range recent {
		schemaSum += u.SchemaTokens
		toolSum += u.ToolOutputTokens
	}
	avgSchema := float64(schemaSum) / float64(len(recent))
	avgTool := float64(toolSum) / float64(len(recent))
	stats := t.statsLocked()

	var suggestions []string
	if avgSchema > suggestSchemaTokens {
		suggestions = append(suggestions, fmt.Sprintf(
			"Schema segment is large (%.0f tokens on average). Consider filtering to relevant tables or shortening descriptions.", avgSchema))
	}
	if avgTool > suggestToolTokens {
		suggestions = append(suggestions, fmt.Sprintf(
			"Tool outputs are large (%.0f tokens on average). Consider lowering row limits or selecting fewer columns.", avgTool))
	}
	if stats.AvgTokensPerRequest > suggestAvgTokens {
		suggestions = append(suggestions, fmt.Sprintf(
			"High average consumption (%d tokens/request). Consider schema retrieval limited to relevant tables.", stats.AvgTokensPerRequest))
	}
	if stats.EstimatedCostUSD > suggestSessionCost {
		suggestions = append(suggestions, fmt.Sprintf(
			"Accumulated session cost: $%.4f. Consider caching frequent answers or a cheaper model for simple queries.", stats.EstimatedCostUSD))
	}

	if len(suggestions) == 0 {
		suggestions = append(suggestions, "Token usage within expected ranges.")
	}
	return suggestions
}

// ExportHistory returns a JSON-serializable snapshot of session stats,
// suggestions, and the per-sample history.
func (t *tokenTracker) ExportHistory() models.TokenUsageExport {
	suggestions := t.SuggestOptimizations()

	t.mu.Lock()
	defer t.mu.Unlock()
	history := make([]models.TokenUsageSample, len(t.history))
	copy(history, t.history)

	return models.TokenUsageExport{
		SessionStats:            t.statsLocked(),
		OptimizationSuggestions: suggestions,
		History:                 history,
	}
}

// ResetSession clears the history and running totals.
func (t *tokenTracker) ResetSession() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.history = nil
	t.totals = models.SessionStats{}
}
