package oteltrace

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/henoc97/ecommerce-backend-sub001/internal/observability"
)

// tracer stamps every span it starts with the owning service so spans stay attributable
// when no SDK resource is configured.
type tracer struct {
	t       trace.Tracer
	service attribute.KeyValue
}

// New returns a tracer backed by the global provider. The global provider is a no-op until
// an sdktrace.TracerProvider is installed with otel.SetTracerProvider.
func New(service string) observability.Tracer {
	return NewWithProvider(otel.GetTracerProvider(), service)
}

func NewWithProvider(tp trace.TracerProvider, service string) observability.Tracer {
	if service == "" {
		service = "ecommerce"
	}
	return &tracer{
		t:       tp.Tracer(service),
		service: attribute.String("service.name", service),
	}
}

func (t *tracer) Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.t.Start(ctx, name, trace.WithAttributes(append([]attribute.KeyValue{t.service}, attrs...)...))
}
