// Package agent implements the reasoning loop that turns natural-language
// questions into executed SQL and an answer.
package agent

import "context"

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	Name string
	Args map[string]interface{}
}

// Turn is one model response: either a final text answer or one or more
// tool calls to satisfy first.
type Turn struct {
	Text  string
	Calls []ToolCall
}

// ToolDefinition describes a tool offered to the model.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]ParameterDefinition
	Required    []string
}

// ParameterDefinition describes one tool parameter.
type ParameterDefinition struct {
	Type        string
	Description string
}

// ToolOutcome is the result of one executed tool call, keyed by tool name.
type ToolOutcome struct {
	Name   string
	Result map[string]interface{}
}

// Conversation is a single model conversation with accumulated history.
type Conversation interface {
	// Send submits a user message and returns the model's turn.
	Send(ctx context.Context, text string) (Turn, error)
	// SendToolResults submits the results of the pending tool calls and
	// returns the model's next turn.
	SendToolResults(ctx context.Context, results []ToolOutcome) (Turn, error)
}

// LLMClient creates model conversations.
type LLMClient interface {
	StartConversation(systemPrompt string, tools []ToolDefinition) Conversation
}
