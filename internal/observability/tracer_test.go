package observability

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/emergentdev/emergent/internal/engine"
)

func newTestLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestNoOpTracer(t *testing.T) {
	tracer := &NoOpTracer{}

	// All methods should be callable without panic
	trace := tracer.StartRun("run-1", RunOptions{Goal: "build the thing"})
	span := tracer.StartSession(trace, "sess-1", SessionOptions{})
	tracer.RecordDecision(span, GenerationInput{
		Name:         "action",
		InputTokens:  100,
		OutputTokens: 50,
	})
	tracer.RecordRestart(span, "loop_detected", "repeating: read_file")
	tracer.EndSession(span, "completed", 1000)
	tracer.CompleteRun(trace, CompleteOptions{Status: "completed"})

	if err := tracer.Flush(context.Background()); err != nil {
		t.Errorf("NoOpTracer.Flush() returned error: %v", err)
	}
	if err := tracer.Stop(context.Background()); err != nil {
		t.Errorf("NoOpTracer.Stop() returned error: %v", err)
	}
}

func TestNoOpTracerInterface(t *testing.T) {
	// Verify NoOpTracer satisfies the Tracer interface
	var _ Tracer = &NoOpTracer{}
}

func TestLangfuseTracerInterface(t *testing.T) {
	// Verify LangfuseTracer satisfies the Tracer interface
	var _ Tracer = &LangfuseTracer{}
}

func TestLangfuseTracerSendsBatches(t *testing.T) {
	var mu sync.Mutex
	var receivedBatches []ingestionPayload

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != ingestionPath {
			t.Errorf("unexpected path: %s", r.URL.Path)
			http.Error(w, "not found", http.StatusNotFound)
			return
		}

		// Verify auth header
		auth := r.Header.Get("Authorization")
		if auth == "" {
			t.Error("missing Authorization header")
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("failed to read body: %v", err)
			http.Error(w, "read error", http.StatusInternalServerError)
			return
		}

		var payload ingestionPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Errorf("failed to unmarshal body: %v", err)
			http.Error(w, "parse error", http.StatusBadRequest)
			return
		}

		mu.Lock()
		receivedBatches = append(receivedBatches, payload)
		mu.Unlock()

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"successes":[],"errors":[]}`))
	}))
	defer server.Close()

	tracer := NewLangfuseTracer(LangfuseConfig{
		PublicKey: "pk-test",
		SecretKey: "sk-test",
		BaseURL:   server.URL,
	}, newTestLogger())

	// Record a full run lifecycle
	trace := tracer.StartRun("run-123", RunOptions{
		Goal:      "build a parser",
		Workspace: "/work",
	})

	span := tracer.StartSession(trace, "sess-1", SessionOptions{
		Number:        1,
		MaxIterations: 50,
	})

	tracer.RecordDecision(span, GenerationInput{
		Name:         "action",
		Model:        "gpt-4.1-mini",
		Output:       "write_file",
		InputTokens:  1500,
		OutputTokens: 300,
		Status:       "completed",
		DurationMs:   5000,
	})

	tracer.RecordRestart(span, "watchdog_timeout", "no progress for 30m")

	tracer.RecordDecision(span, GenerationInput{
		Name:         "complete",
		Model:        "gpt-4.1-mini",
		InputTokens:  800,
		OutputTokens: 50,
		Status:       "completed",
		DurationMs:   2000,
	})

	tracer.EndSession(span, "completed", 7000)
	tracer.CompleteRun(trace, CompleteOptions{
		Status:            "completed",
		Sessions:          1,
		TotalInputTokens:  2300,
		TotalOutputTokens: 350,
	})

	// Stop flushes remaining events and shuts down the background goroutine
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tracer.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()

	// Expected: trace-create, span-create, generation-create,
	// event-create (restart), generation-create, span-update,
	// trace-create (complete)
	totalEvents := 0
	for _, batch := range receivedBatches {
		totalEvents += len(batch.Batch)
	}
	expectedEvents := 7
	if totalEvents != expectedEvents {
		t.Errorf("expected %d events, got %d", expectedEvents, totalEvents)
		for i, batch := range receivedBatches {
			for j, evt := range batch.Batch {
				t.Logf("batch[%d][%d]: type=%s", i, j, evt.Type)
			}
		}
	}

	// Verify event types
	eventTypes := make(map[string]int)
	for _, batch := range receivedBatches {
		for _, evt := range batch.Batch {
			eventTypes[evt.Type]++
		}
	}

	expectations := map[string]int{
		"trace-create":      2, // create + complete
		"span-create":       1,
		"generation-create": 2,
		"event-create":      1, // restart
		"span-update":       1,
	}

	for evtType, expected := range expectations {
		if got := eventTypes[evtType]; got != expected {
			t.Errorf("expected %d %s events, got %d", expected, evtType, got)
		}
	}
}

func TestLangfuseTracerAuthHeader(t *testing.T) {
	var receivedAuth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"successes":[],"errors":[]}`))
	}))
	defer server.Close()

	tracer := NewLangfuseTracer(LangfuseConfig{
		PublicKey: "pk-abc",
		SecretKey: "sk-xyz",
		BaseURL:   server.URL,
	}, newTestLogger())

	tracer.StartRun("run-1", RunOptions{})

	ctx := context.Background()
	if err := tracer.Flush(ctx); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	_ = tracer.Stop(ctx)

	// Verify Basic auth: base64("pk-abc:sk-xyz")
	expectedAuth := "Basic cGstYWJjOnNrLXh5eg=="
	if receivedAuth != expectedAuth {
		t.Errorf("expected auth %q, got %q", expectedAuth, receivedAuth)
	}
}

func TestLangfuseTracerDefaultBaseURL(t *testing.T) {
	tracer := NewLangfuseTracer(LangfuseConfig{
		PublicKey: "pk",
		SecretKey: "sk",
	}, newTestLogger())
	defer func() { _ = tracer.Stop(context.Background()) }()

	if tracer.config.BaseURL != defaultBaseURL {
		t.Errorf("expected default base URL %q, got %q", defaultBaseURL, tracer.config.BaseURL)
	}
}

func TestLangfuseTracerAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
	}))
	defer server.Close()

	tracer := NewLangfuseTracer(LangfuseConfig{
		PublicKey: "bad-key",
		SecretKey: "bad-secret",
		BaseURL:   server.URL,
	}, newTestLogger())

	tracer.StartRun("run-1", RunOptions{})

	err := tracer.Flush(context.Background())
	if err == nil {
		t.Error("expected error for 401 response, got nil")
	}
	_ = tracer.Stop(context.Background())
}

func TestLangfuseTracerSpanContext(t *testing.T) {
	tracer := NewLangfuseTracer(LangfuseConfig{
		PublicKey: "pk",
		SecretKey: "sk",
		BaseURL:   "http://localhost:1", // Won't connect; we only test context creation
	}, newTestLogger())
	defer func() { _ = tracer.Stop(context.Background()) }()

	trace := tracer.StartRun("run-42", RunOptions{Goal: "fix the build"})
	if trace.TraceID != "run-42" || trace.RunID != "run-42" {
		t.Errorf("unexpected trace context: %+v", trace)
	}
	if trace.Metadata["goal"] != "fix the build" {
		t.Errorf("expected goal metadata, got %q", trace.Metadata["goal"])
	}

	span := tracer.StartSession(trace, "sess-2", SessionOptions{Number: 2, MaxIterations: 50})
	if span.SessionID != "sess-2" {
		t.Errorf("expected SessionID 'sess-2', got %q", span.SessionID)
	}
	if span.TraceID != trace.TraceID {
		t.Errorf("expected span TraceID %q, got %q", trace.TraceID, span.TraceID)
	}
	if span.SpanID == "" {
		t.Error("expected non-empty SpanID")
	}
}

// recordingTracer captures decisions for the engine-wrapper test.
type recordingTracer struct {
	NoOpTracer
	generations []GenerationInput
}

func (r *recordingTracer) RecordDecision(_ SpanContext, gen GenerationInput) {
	r.generations = append(r.generations, gen)
}

type stubEngine struct {
	decision *engine.Decision
	err      error
}

func (s *stubEngine) Decide(_ context.Context, _ engine.Request) (*engine.Decision, error) {
	return s.decision, s.err
}

func TestWrapEngine_RecordsDecisions(t *testing.T) {
	tracer := &recordingTracer{}
	inner := &stubEngine{decision: &engine.Decision{
		Type:         engine.DecisionAction,
		ToolCall:     &engine.ToolCall{Name: "run_command"},
		InputTokens:  120,
		OutputTokens: 40,
	}}

	wrapped := WrapEngine(inner, tracer, SpanContext{SpanID: "s1"}, "gpt-4.1-mini")
	decision, err := wrapped.Decide(context.Background(), engine.Request{})
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if decision.ToolCall.Name != "run_command" {
		t.Errorf("decision not passed through: %+v", decision)
	}
	if len(tracer.generations) != 1 {
		t.Fatalf("expected 1 generation, got %d", len(tracer.generations))
	}
	gen := tracer.generations[0]
	if gen.Name != engine.DecisionAction || gen.Output != "run_command" {
		t.Errorf("unexpected generation: %+v", gen)
	}
	if gen.InputTokens != 120 || gen.OutputTokens != 40 {
		t.Errorf("token usage not recorded: %+v", gen)
	}
}

func TestWrapEngine_RecordsErrors(t *testing.T) {
	tracer := &recordingTracer{}
	inner := &stubEngine{err: errors.New("rate limited")}

	wrapped := WrapEngine(inner, tracer, SpanContext{}, "gpt-4.1-mini")
	if _, err := wrapped.Decide(context.Background(), engine.Request{}); err == nil {
		t.Fatal("expected error passed through")
	}
	if len(tracer.generations) != 1 || tracer.generations[0].Status != "error" {
		t.Errorf("error generation not recorded: %+v", tracer.generations)
	}
}

func TestWrapEngine_NilTracerReturnsInner(t *testing.T) {
	inner := &stubEngine{}
	if got := WrapEngine(inner, nil, SpanContext{}, ""); got != engine.Engine(inner) {
		t.Error("nil tracer must return the inner engine unchanged")
	}
}
