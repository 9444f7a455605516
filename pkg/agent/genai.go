package agent

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GeminiClient talks to the Gemini API through the google.golang.org/genai SDK.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient creates a Gemini-backed LLM client.
func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &GeminiClient{client: client, model: model}, nil
}

// Model returns the configured model name.
func (c *GeminiClient) Model() string {
	return c.model
}

// StartConversation begins a conversation with the given system prompt and tools.
func (c *GeminiClient) StartConversation(systemPrompt string, tools []ToolDefinition) Conversation {
	return &geminiConversation{
		client: c.client,
		model:  c.model,
		config: &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
			Tools:             convertTools(tools),
		},
	}
}

type geminiConversation struct {
	client  *genai.Client
	model   string
	config  *genai.GenerateContentConfig
	history []*genai.Content
}

func (c *geminiConversation) Send(ctx context.Context, text string) (Turn, error) {
	c.history = append(c.history, genai.NewContentFromText(text, genai.RoleUser))
	return c.generate(ctx)
}

func (c *geminiConversation) SendToolResults(ctx context.Context, results []ToolOutcome) (Turn, error) {
	parts := make([]*genai.Part, len(results))
	for i, res := range results {
		parts[i] = genai.NewPartFromFunctionResponse(res.Name, res.Result)
	}
	c.history = append(c.history, &genai.Content{
		Role:  genai.RoleUser,
		Parts: parts,
	})
	return c.generate(ctx)
}

func (c *geminiConversation) generate(ctx context.Context) (Turn, error) {
	resp, err := c.client.Models.GenerateContent(ctx, c.model, c.history, c.config)
	if err != nil {
		return Turn{}, fmt.Errorf("generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return Turn{}, fmt.Errorf("model returned no candidates")
	}

	content := resp.Candidates[0].Content
	c.history = append(c.history, content)

	var turn Turn
	for _, part := range content.Parts {
		if part.Text != "" {
			turn.Text += part.Text
		}
		if part.FunctionCall != nil {
			turn.Calls = append(turn.Calls, ToolCall{
				Name: part.FunctionCall.Name,
				Args: part.FunctionCall.Args,
			})
		}
	}
	return turn, nil
}

func convertTools(tools []ToolDefinition) []*genai.Tool {
	if len(tools) == 0 {
		return nil
	}

	decls := make([]*genai.FunctionDeclaration, len(tools))
	for i, tool := range tools {
		props := make(map[string]*genai.Schema, len(tool.Parameters))
		for name, param := range tool.Parameters {
			props[name] = &genai.Schema{
				Type:        schemaType(param.Type),
				Description: param.Description,
			}
		}
		decls[i] = &genai.FunctionDeclaration{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters: &genai.Schema{
				Type:       genai.TypeObject,
				Properties: props,
				Required:   tool.Required,
			},
		}
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

func schemaType(t string) genai.Type {
	switch t {
	case "string":
		return genai.TypeString
	case "boolean":
		return genai.TypeBoolean
	case "integer":
		return genai.TypeInteger
	case "number":
		return genai.TypeNumber
	default:
		return genai.TypeString
	}
}
