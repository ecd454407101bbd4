// Package tracing is the single entry point domain packages use to open
// OTel spans. With no TracerProvider registered the global no-op provider
// answers, so tests and local runs pay nothing.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "meridian"

// Start opens a span named spanName under the span carried by ctx, or a root
// span when ctx has none. Callers must end it, normally with defer:
//
//	ctx, span := tracing.Start(ctx, "snapshot.build",
//	    attribute.String("meridian.build.id", build.ID))
//	defer span.End()
func Start(ctx context.Context, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, spanName, trace.WithAttributes(attrs...))
}
