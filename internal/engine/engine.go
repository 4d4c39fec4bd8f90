// Package engine defines the reasoning-engine contract: bounded
// context in, one decision out. The engine is an external collaborator
// and is never trusted about its own health; failures are plain errors
// the session level may retry.
package engine

import (
	"context"

	"github.com/emergentdev/emergent/internal/tools"
)

// Message roles in the decide transcript.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one entry in the bounded decide transcript.
type Message struct {
	Role       string
	Content    string
	ToolCall   *ToolCall // set on assistant messages that requested a tool
	ToolCallID string    // set on tool messages carrying a result
}

// ToolCall is a requested tool invocation.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
}

// Decision types.
const (
	DecisionAction   = "action"   // invoke a tool
	DecisionComplete = "complete" // goal reported complete
	DecisionNote     = "note"     // free-text thinking, no tool call
)

// Decision is the engine's answer to one decide call.
type Decision struct {
	Type     string
	ToolCall *ToolCall // set for action and complete
	Note     string    // set for note

	// Token usage of the decide call, fed to the token-waste guard.
	InputTokens  int
	OutputTokens int
}

// Request is the bounded context for one decide call.
type Request struct {
	System   string
	Messages []Message
	Tools    []tools.Schema
}

// Engine produces the next decision. Implementations must be safe for
// sequential reuse across sessions; they hold no session state.
type Engine interface {
	Decide(ctx context.Context, req Request) (*Decision, error)
}
