package state

import (
	"path/filepath"
	"time"
)

// StateVersion is written into every state record so future schema
// changes can be detected on load.
const StateVersion = "1"

// DefaultHistoryCap is the maximum number of action records retained
// in the agent state. Oldest records are evicted first.
const DefaultHistoryCap = 20

// AgentState is the durable record of the agent's position in its work.
// It is owned by exactly one active session at a time; the supervisor
// only reads it between sessions.
type AgentState struct {
	Version                string         `json:"version"`
	InitializedAt          time.Time      `json:"initialized_at"`
	Goal                   string         `json:"goal"`
	Position               string         `json:"position"` // working location within the workspace
	FilesInContext         []string       `json:"files_in_context"`
	RecentActions          []ActionRecord `json:"recent_actions"`
	ActionsSinceReflection int            `json:"actions_since_reflection"`
	LastReflection         *time.Time     `json:"last_reflection,omitempty"`
	TotalActions           int            `json:"total_actions"`
	SessionStart           time.Time      `json:"session_start"`
	Complete               bool           `json:"complete"`
	CompletionSummary      string         `json:"completion_summary,omitempty"`
}

// ActionRecord is one appended entry in the bounded action history.
// Records are immutable once appended.
type ActionRecord struct {
	Seq       int       `json:"seq"`
	Tool      string    `json:"tool"`
	Signature string    `json:"signature"`
	Success   bool      `json:"success"`
	Summary   string    `json:"summary"`
	Timestamp time.Time `json:"timestamp"`
}

// Config holds state store settings.
type Config struct {
	HistoryCap int
}

// NewAgentState returns the fresh default state used when no record
// exists on disk yet.
func NewAgentState(workDir string) *AgentState {
	now := time.Now().UTC()
	return &AgentState{
		Version:        StateVersion,
		InitializedAt:  now,
		Position:       filepath.Join(workDir, "project"),
		FilesInContext: []string{},
		RecentActions:  []ActionRecord{},
		SessionStart:   now,
	}
}
