package models

import "time"

// TokenUsageSample is one immutable estimate of token consumption for a
// completed request, with a per-segment breakdown.
type TokenUsageSample struct {
	Timestamp          time.Time `json:"timestamp"`
	InputTokens        int       `json:"input_tokens"`
	OutputTokens       int       `json:"output_tokens"`
	TotalTokens        int       `json:"total_tokens"`
	SystemPromptTokens int       `json:"system_prompt_tokens"`
	SchemaTokens       int       `json:"schema_tokens"`
	UserQueryTokens    int       `json:"user_query_tokens"`
	ToolOutputTokens   int       `json:"tool_output_tokens"`
	Question           string    `json:"question"`
	Model              string    `json:"model"`
	EstimatedCostUSD   float64   `json:"estimated_cost_usd"`
}

// SessionStats aggregates token usage across all requests in a session.
type SessionStats struct {
	InputTokens         int     `json:"input_tokens"`
	OutputTokens        int     `json:"output_tokens"`
	TotalTokens         int     `json:"total_tokens"`
	Requests            int     `json:"requests"`
	EstimatedCostUSD    float64 `json:"estimated_cost_usd"`
	AvgTokensPerRequest int     `json:"avg_tokens_per_request"`
	HistoryCount        int     `json:"history_count"`
}

// TokenUsageExport is the JSON snapshot produced by the session tracker.
type TokenUsageExport struct {
	SessionStats            SessionStats       `json:"session_stats"`
	OptimizationSuggestions []string           `json:"optimization_suggestions"`
	History                 []TokenUsageSample `json:"history"`
}
