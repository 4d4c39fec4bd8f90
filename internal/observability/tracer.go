package observability

import "context"

// Tracer defines the interface for observability tracing.
// Implementations track one supervised run through its sessions,
// recording engine invocations (generations) and restart events.
//
// Trace hierarchy:
//
//	Run (Trace)
//	  └── Session (Span)
//	        ├── Decide (Generation)
//	        └── Restart (Event, when the session ends on a signal)
type Tracer interface {
	StartRun(runID string, opts RunOptions) TraceContext
	StartSession(trace TraceContext, sessionID string, opts SessionOptions) SpanContext
	RecordDecision(span SpanContext, gen GenerationInput)
	RecordRestart(span SpanContext, reason string, details string)
	EndSession(span SpanContext, status string, durationMs int64)
	CompleteRun(trace TraceContext, opts CompleteOptions)
	Flush(ctx context.Context) error
	Stop(ctx context.Context) error
}

// TraceContext holds the context for an active trace (run level).
type TraceContext struct {
	TraceID  string
	RunID    string
	Metadata map[string]string
}

// SpanContext holds the context for an active span (session level).
type SpanContext struct {
	SpanID    string
	SessionID string
	TraceID   string
}

// RunOptions configures a new trace.
type RunOptions struct {
	Goal      string
	Workspace string
}

// SessionOptions configures a new session span.
type SessionOptions struct {
	Number        int
	MaxIterations int
	Metadata      map[string]string
}

// GenerationInput describes an engine invocation to record.
type GenerationInput struct {
	Name         string // decision type: "action", "complete", "note"
	Model        string
	Input        string // tool name or note excerpt
	Output       string
	InputTokens  int
	OutputTokens int
	Status       string // "completed" or "error"
	DurationMs   int64
}

// CompleteOptions configures trace completion.
type CompleteOptions struct {
	Status            string // "completed", "deadline", "failed"
	Sessions          int
	TotalInputTokens  int
	TotalOutputTokens int
}
