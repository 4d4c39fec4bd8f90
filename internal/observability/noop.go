package observability

import "context"

// NoOpTracer is a tracer that does nothing. It is used when trace
// export is not configured or is explicitly disabled.
type NoOpTracer struct{}

func (n *NoOpTracer) StartRun(_ string, _ RunOptions) TraceContext {
	return TraceContext{}
}

func (n *NoOpTracer) StartSession(_ TraceContext, _ string, _ SessionOptions) SpanContext {
	return SpanContext{}
}

func (n *NoOpTracer) RecordDecision(_ SpanContext, _ GenerationInput) {}

func (n *NoOpTracer) RecordRestart(_ SpanContext, _ string, _ string) {}

func (n *NoOpTracer) EndSession(_ SpanContext, _ string, _ int64) {}

func (n *NoOpTracer) CompleteRun(_ TraceContext, _ CompleteOptions) {}

func (n *NoOpTracer) Flush(_ context.Context) error { return nil }

func (n *NoOpTracer) Stop(_ context.Context) error { return nil }
