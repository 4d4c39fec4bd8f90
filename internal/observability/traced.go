package observability

import (
	"context"
	"time"

	"github.com/emergentdev/emergent/internal/engine"
)

// TracedEngine wraps an engine and records every decide call as a
// generation under the given session span.
type TracedEngine struct {
	inner  engine.Engine
	tracer Tracer
	span   SpanContext
	model  string
}

// WrapEngine returns an engine that reports its decisions to the
// tracer. A nil tracer returns the inner engine unchanged.
func WrapEngine(inner engine.Engine, tracer Tracer, span SpanContext, model string) engine.Engine {
	if tracer == nil {
		return inner
	}
	return &TracedEngine{inner: inner, tracer: tracer, span: span, model: model}
}

func (e *TracedEngine) Decide(ctx context.Context, req engine.Request) (*engine.Decision, error) {
	start := time.Now()
	decision, err := e.inner.Decide(ctx, req)
	durationMs := time.Since(start).Milliseconds()

	if err != nil {
		e.tracer.RecordDecision(e.span, GenerationInput{
			Name:       "decide",
			Model:      e.model,
			Status:     "error",
			Output:     err.Error(),
			DurationMs: durationMs,
		})
		return nil, err
	}

	output := decision.Note
	if decision.ToolCall != nil {
		output = decision.ToolCall.Name
	}
	e.tracer.RecordDecision(e.span, GenerationInput{
		Name:         decision.Type,
		Model:        e.model,
		Output:       output,
		InputTokens:  decision.InputTokens,
		OutputTokens: decision.OutputTokens,
		Status:       "completed",
		DurationMs:   durationMs,
	})
	return decision, nil
}
