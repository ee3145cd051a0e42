package workerpresentation

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	domoutbox "github.com/henoc97/ecommerce-backend-sub001/internal/domain/outbox"
	"github.com/henoc97/ecommerce-backend-sub001/internal/observability"
	"github.com/henoc97/ecommerce-backend-sub001/internal/observability/logctx"
)

const spanPrefixEvent = "Event."

// WithEventContext injects a request-scoped logger for background/worker executions.
// A nil base narrows the logger already on ctx, falling back to tel's.
// Dynamic fields only: trace_id/span_id (if valid), event_id (generated if empty),
// plus caller-provided low-cardinality attributes (e.g. "use_case", "event", "tenant_id").
func WithEventContext(
	ctx context.Context,
	base observability.Logger,
	tel observability.Observability,
	traceID trace.TraceID,
	spanID trace.SpanID,
	attrs map[string]string, // keep this low-cardinality: event name, tenant, shard, queue, etc.
) context.Context {
	fields := make([]observability.Field, 0, 3+len(attrs))

	evtID := attrs["event_id"]
	if evtID == "" {
		evtID = uuid.NewString()
	}
	fields = append(fields, observability.F("event_id", evtID))

	if traceID.IsValid() {
		fields = append(fields, observability.F("trace_id", traceID.String()))
	}
	if spanID.IsValid() {
		fields = append(fields, observability.F("span_id", spanID.String()))
	}

	for k, v := range attrs {
		if k == "event_id" || v == "" {
			continue
		}
		fields = append(fields, observability.F(k, v))
	}

	if base != nil {
		return logctx.With(ctx, base.With(fields...))
	}
	return logctx.WithFields(ctx, tel.Logger(), fields...)
}

// EventMiddleware wraps every bus handler in a consumer span and an event-scoped logger.
// The returned function has the shape of the event bus middleware.
func EventMiddleware(tel observability.Observability) func(eventName string, next domoutbox.Handler) domoutbox.Handler {
	if tel == nil {
		tel = observability.Nop()
	}
	return func(eventName string, next domoutbox.Handler) domoutbox.Handler {
		return func(ctx context.Context, e domoutbox.Event) error {
			attrs := []attribute.KeyValue{attribute.String("event.name", eventName)}
			if key := domoutbox.KeyOf(e); key != "" {
				attrs = append(attrs, attribute.String("event.key", key))
			}
			ctx, span := tel.Tracer().Start(ctx, spanPrefixEvent+eventName, attrs...)
			defer span.End()

			sc := span.SpanContext()
			ctx = WithEventContext(ctx, nil, tel, sc.TraceID(), sc.SpanID(), map[string]string{
				"event": eventName,
			})

			err := next(ctx, e)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "EVENT_HANDLER_FAILED")
				return err
			}
			span.SetStatus(codes.Ok, "OK")
			return nil
		}
	}
}
