package workerpresentation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	domoutbox "github.com/henoc97/ecommerce-backend-sub001/internal/domain/outbox"
	"github.com/henoc97/ecommerce-backend-sub001/internal/observability"
	"github.com/henoc97/ecommerce-backend-sub001/internal/observability/logctx"
)

type fieldLogger struct {
	fields map[string]any
}

func (l *fieldLogger) With(fields ...observability.Field) observability.Logger {
	out := &fieldLogger{fields: map[string]any{}}
	for k, v := range l.fields {
		out.fields[k] = v
	}
	for _, f := range fields {
		out.fields[f.Key] = f.Value
	}
	return out
}

func (l *fieldLogger) Debug(string, ...observability.Field) {}
func (l *fieldLogger) Info(string, ...observability.Field)  {}
func (l *fieldLogger) Warn(string, ...observability.Field)  {}
func (l *fieldLogger) Error(string, ...observability.Field) {}

type loggerTel struct{ log observability.Logger }

func (t loggerTel) Tracer() observability.Tracer   { return observability.NopTracer() }
func (t loggerTel) Logger() observability.Logger   { return t.log }
func (t loggerTel) Metrics() observability.Metrics { return observability.NopMetrics() }

type cartEvent struct{}

func (cartEvent) EventName() string    { return "cart.totals_recomputed" }
func (cartEvent) PartitionKey() string { return "7" }

func TestWithEventContext_Fields(t *testing.T) {
	base := &fieldLogger{fields: map[string]any{}}
	ctx := WithEventContext(context.Background(), base, loggerTel{log: base},
		trace.TraceID{1}, trace.SpanID{}, map[string]string{"event_id": "evt-1", "event": "cart.totals_recomputed", "tenant": ""})

	got := logctx.From(ctx).(*fieldLogger).fields
	assert.Equal(t, "evt-1", got["event_id"])
	assert.Equal(t, "cart.totals_recomputed", got["event"])
	assert.Contains(t, got, "trace_id")
	assert.NotContains(t, got, "span_id")
	assert.NotContains(t, got, "tenant")
}

func TestEventMiddleware_InjectsLoggerAndPropagatesError(t *testing.T) {
	base := &fieldLogger{fields: map[string]any{}}
	mw := EventMiddleware(loggerTel{log: base})
	boom := errors.New("boom")

	var seen map[string]any
	h := mw("cart.totals_recomputed", func(ctx context.Context, _ domoutbox.Event) error {
		l, ok := logctx.From(ctx).(*fieldLogger)
		require.True(t, ok)
		seen = l.fields
		return boom
	})

	err := h(context.Background(), cartEvent{})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "cart.totals_recomputed", seen["event"])
	assert.NotEmpty(t, seen["event_id"])
}
