package observability

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// DetachTraceContext returns context.Background() carrying the span context
// of ctx, so child spans stay linked to the request trace without inheriting
// its cancellation.
func DetachTraceContext(ctx context.Context) context.Context {
	return DetachTraceContextFrom(ctx, context.Background())
}

// DetachTraceContextFrom copies the trace span from src into baseCtx.
// Admitted jobs run on the server's base context (cancelled only at shutdown)
// while their spans and log lines stay attached to the HTTP request trace.
func DetachTraceContextFrom(src, baseCtx context.Context) context.Context {
	sc := trace.SpanContextFromContext(src)
	if !sc.IsValid() {
		return baseCtx
	}
	return trace.ContextWithRemoteSpanContext(baseCtx, sc)
}
