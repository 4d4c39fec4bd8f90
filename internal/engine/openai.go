package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/emergentdev/emergent/internal/tools"
)

// DefaultModel is used when no model is configured. The original
// deployment targets OpenAI-compatible endpoints, so any
// chat-completions model name works here.
const DefaultModel = "gpt-4.1-mini"

// defaultRequestTimeout bounds one decide call; exceeding it surfaces
// as a retryable engine failure.
const defaultRequestTimeout = 2 * time.Minute

// ClientConfig holds connection settings for the OpenAI-compatible
// endpoint.
type ClientConfig struct {
	APIKey         string
	BaseURL        string // empty for api.openai.com
	Model          string
	Temperature    float32
	RequestTimeout time.Duration
}

// Client implements Engine against an OpenAI-compatible
// chat-completions API using function calling.
type Client struct {
	api         *openai.Client
	model       string
	temperature float32
	timeout     time.Duration
}

// NewClient creates an engine client.
func NewClient(config ClientConfig) *Client {
	apiConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		apiConfig.BaseURL = config.BaseURL
	}
	model := config.Model
	if model == "" {
		model = DefaultModel
	}
	timeout := config.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	temperature := config.Temperature
	if temperature == 0 {
		temperature = 0.7
	}
	return &Client{
		api:         openai.NewClientWithConfig(apiConfig),
		model:       model,
		temperature: temperature,
		timeout:     timeout,
	}
}

// Decide requests the next action. A tool call on the completion tool
// is surfaced as a completion decision; a content-only reply becomes a
// note.
func (c *Client) Decide(ctx context.Context, req Request) (*Decision, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    toChatMessages(req),
		Tools:       toChatTools(req.Tools),
		Temperature: c.temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("engine request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("engine returned no choices")
	}

	msg := resp.Choices[0].Message
	decision := &Decision{
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}

	if len(msg.ToolCalls) == 0 {
		decision.Type = DecisionNote
		decision.Note = msg.Content
		return decision, nil
	}

	// One decision per tick: only the first tool call is honored.
	call := msg.ToolCalls[0]
	args := map[string]any{}
	if call.Function.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			return nil, fmt.Errorf("engine produced unparseable arguments for %s: %w", call.Function.Name, err)
		}
	}
	decision.ToolCall = &ToolCall{ID: call.ID, Name: call.Function.Name, Args: args}
	if call.Function.Name == tools.CompleteGoalName {
		decision.Type = DecisionComplete
	} else {
		decision.Type = DecisionAction
	}
	return decision, nil
}

func toChatMessages(req Request) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: req.System,
	})
	for _, m := range req.Messages {
		cm := openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
		if m.ToolCall != nil {
			rawArgs, _ := json.Marshal(m.ToolCall.Args)
			cm.ToolCalls = []openai.ToolCall{{
				ID:   m.ToolCall.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      m.ToolCall.Name,
					Arguments: string(rawArgs),
				},
			}}
		}
		if m.ToolCallID != "" {
			cm.ToolCallID = m.ToolCallID
		}
		messages = append(messages, cm)
	}
	return messages
}

func toChatTools(schemas []tools.Schema) []openai.Tool {
	out := make([]openai.Tool, 0, len(schemas))
	for _, s := range schemas {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        s.Name,
				Description: s.Description,
				Parameters:  s.Parameters,
			},
		})
	}
	return out
}
