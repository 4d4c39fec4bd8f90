package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/emergentdev/emergent/internal/tools"
)

// fakeCompletion serves a canned chat-completions response.
func fakeCompletion(t *testing.T, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
}

func TestDecide_ActionToolCall(t *testing.T) {
	srv := fakeCompletion(t, `{
		"choices": [{"message": {
			"role": "assistant",
			"tool_calls": [{"id": "call_1", "type": "function", "function": {
				"name": "write_file",
				"arguments": "{\"file_path\": \"hello.py\", \"content\": \"print('hi')\"}"
			}}]
		}}],
		"usage": {"prompt_tokens": 120, "completion_tokens": 30}
	}`)
	defer srv.Close()

	c := NewClient(ClientConfig{APIKey: "test", BaseURL: srv.URL})
	decision, err := c.Decide(context.Background(), Request{System: "sys"})
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if decision.Type != DecisionAction {
		t.Fatalf("expected action decision, got %s", decision.Type)
	}
	if decision.ToolCall.Name != "write_file" {
		t.Errorf("unexpected tool: %s", decision.ToolCall.Name)
	}
	if decision.ToolCall.Args["file_path"] != "hello.py" {
		t.Errorf("unexpected args: %v", decision.ToolCall.Args)
	}
	if decision.InputTokens != 120 || decision.OutputTokens != 30 {
		t.Errorf("token usage not captured: %d/%d", decision.InputTokens, decision.OutputTokens)
	}
}

func TestDecide_CompletionSignal(t *testing.T) {
	srv := fakeCompletion(t, `{
		"choices": [{"message": {
			"role": "assistant",
			"tool_calls": [{"id": "call_2", "type": "function", "function": {
				"name": "complete_goal",
				"arguments": "{\"summary\": \"done\"}"
			}}]
		}}],
		"usage": {"prompt_tokens": 10, "completion_tokens": 5}
	}`)
	defer srv.Close()

	c := NewClient(ClientConfig{APIKey: "test", BaseURL: srv.URL})
	decision, err := c.Decide(context.Background(), Request{})
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if decision.Type != DecisionComplete {
		t.Errorf("expected completion decision, got %s", decision.Type)
	}
	if decision.ToolCall.Args["summary"] != "done" {
		t.Errorf("unexpected args: %v", decision.ToolCall.Args)
	}
}

func TestDecide_NoteWithoutToolCall(t *testing.T) {
	srv := fakeCompletion(t, `{
		"choices": [{"message": {"role": "assistant", "content": "thinking about it"}}],
		"usage": {"prompt_tokens": 8, "completion_tokens": 4}
	}`)
	defer srv.Close()

	c := NewClient(ClientConfig{APIKey: "test", BaseURL: srv.URL})
	decision, err := c.Decide(context.Background(), Request{})
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if decision.Type != DecisionNote {
		t.Errorf("expected note decision, got %s", decision.Type)
	}
	if decision.Note != "thinking about it" {
		t.Errorf("unexpected note: %q", decision.Note)
	}
}

func TestDecide_ServerErrorIsRetryableError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"message": "rate limited"}}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{APIKey: "test", BaseURL: srv.URL})
	if _, err := c.Decide(context.Background(), Request{}); err == nil {
		t.Fatal("expected error from rate-limited endpoint")
	}
}

func TestDecide_SendsToolSchemas(t *testing.T) {
	var gotTools int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		if ts, ok := req["tools"].([]any); ok {
			gotTools = len(ts)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices": [{"message": {"role": "assistant", "content": "ok"}}]}`))
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{APIKey: "test", BaseURL: srv.URL})
	_, err := c.Decide(context.Background(), Request{
		Tools: []tools.Schema{
			{Name: "read_file", Parameters: map[string]any{"type": "object"}},
			{Name: "write_file", Parameters: map[string]any{"type": "object"}},
		},
	})
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if gotTools != 2 {
		t.Errorf("expected 2 tool schemas in request, got %d", gotTools)
	}
}
