package oteltrace

import (
	"context"

	"github.com/Zhima-Mochi/storefront/internal/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type tracer struct{ t trace.Tracer }

// New returns a TraceCtx over the globally registered tracer provider. With
// no provider installed, spans are no-ops; an exporter can be wired in the
// composition root via otel.SetTracerProvider.
func New(name string) observability.TraceCtx {
	if name == "" {
		name = "storefront"
	}
	return &tracer{t: otel.Tracer(name)}
}

func (t *tracer) Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.t.Start(ctx, name, trace.WithAttributes(attrs...))
}
