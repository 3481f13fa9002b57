package apm

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// TraceID extracts the current trace id from ctx, or "" when the
// context carries no span. Shaped to plug into logger.TraceIDFn.
func TraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}
