// Package tools provides the tool surface the reasoning engine drives:
// a registry of named tools, each with a JSON-schema parameter
// description, returning one fixed result shape.
package tools

import "context"

// Result is the fixed tool result contract. Every tool call returns
// this shape; the action loop depends on nothing else.
type Result struct {
	Success         bool           `json:"success"`
	Summary         string         `json:"summary"`
	Data            map[string]any `json:"data"`
	NextSuggestions []string       `json:"next_suggestions"`
}

// Tool is a single callable tool.
type Tool interface {
	Name() string
	Description() string
	// Parameters returns the JSON-schema object describing the tool's
	// arguments, in the shape function-calling engines expect.
	Parameters() map[string]any
	Execute(ctx context.Context, args map[string]any) Result
}

// Schema is the engine-facing description of one tool.
type Schema struct {
	Name        string
	Description string
	Parameters  map[string]any
}

func ok(summary string, data map[string]any, suggestions ...string) Result {
	if data == nil {
		data = map[string]any{}
	}
	return Result{Success: true, Summary: summary, Data: data, NextSuggestions: suggestions}
}

func failure(summary string, suggestions ...string) Result {
	return Result{Success: false, Summary: summary, Data: map[string]any{}, NextSuggestions: suggestions}
}

// stringArg extracts a required string argument.
func stringArg(args map[string]any, key string) (string, bool) {
	v, ok := args[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok && s != ""
}

// intArg extracts an optional integer argument; JSON numbers arrive as
// float64.
func intArg(args map[string]any, key string, fallback int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return fallback
}
