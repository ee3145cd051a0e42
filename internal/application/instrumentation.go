package application

import (
	"context"
	"time"

	"github.com/henoc97/ecommerce-backend-sub001/internal/observability"
	"github.com/henoc97/ecommerce-backend-sub001/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const spanPrefix = "UC."

// Outcome labels reported on usecase_requests_total.
const (
	OutcomeLabelSuccess  = "success"
	OutcomeLabelRejected = "rejected"
	OutcomeLabelError    = "error"
)

// Instrumentation bundles the logger, tracer and RED instruments a use case reports to.
type Instrumentation struct {
	log          observability.Logger
	tracer       observability.Tracer
	reqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{use_case}
	extCounter   observability.Counter   // external_requests_total{peer,endpoint,outcome}
	extHistogram observability.Histogram // external_request_duration_seconds{peer,endpoint}
}

func NewInstrumentation(service string, tel observability.Observability) *Instrumentation {
	if tel == nil {
		tel = observability.Nop()
	}
	metrics := tel.Metrics()
	return &Instrumentation{
		log:          tel.Logger().With(observability.F("service", service)),
		tracer:       tel.Tracer(),
		reqCounter:   metrics.Counter(observability.MUsecaseRequests),
		durHistogram: metrics.Histogram(observability.MUsecaseDuration),
		extCounter:   metrics.Counter(observability.MExternalRequests),
		extHistogram: metrics.Histogram(observability.MExternalRequestDuration),
	}
}

func (in *Instrumentation) Logger() observability.Logger { return in.log }

// Execution tracks one use case run from Begin to End.
type Execution struct {
	in      *Instrumentation
	ctx     context.Context
	span    trace.Span
	logger  observability.Logger
	useCase string
	start   time.Time
	outcome string
	status  string
	fields  []observability.Field
}

// Begin starts the span and binds the request-scoped logger.
func (in *Instrumentation) Begin(ctx context.Context, useCase, spanName string, attrs []attribute.KeyValue, fields ...observability.Field) (context.Context, *Execution) {
	logger := logctx.FromOr(ctx, in.log).With(
		append([]observability.Field{observability.F("use_case", useCase)}, fields...)...,
	)
	ctx, span := in.tracer.Start(ctx, spanPrefix+spanName,
		append([]attribute.KeyValue{attribute.String("use_case", useCase)}, attrs...)...,
	)
	return ctx, &Execution{
		in:      in,
		ctx:     ctx,
		span:    span,
		logger:  logger,
		useCase: useCase,
		start:   time.Now(),
		outcome: OutcomeLabelSuccess,
		status:  "OK",
	}
}

func (e *Execution) Logger() observability.Logger { return e.logger }

func (e *Execution) Span() trace.Span { return e.span }

// Set records the outcome label and status text reported at End.
func (e *Execution) Set(outcome, status string) {
	e.outcome, e.status = outcome, status
}

// AddField attaches a field to the final use_case_done record.
func (e *Execution) AddField(k string, v any) {
	e.fields = append(e.fields, observability.F(k, v))
}

// End closes the span, records metrics and writes the use_case_done log.
func (e *Execution) End(err error) {
	if err != nil && e.outcome == OutcomeLabelSuccess {
		e.outcome = OutcomeLabelError
		if e.status == "OK" {
			e.status = "INTERNAL"
		}
	}

	if e.span != nil {
		if err != nil {
			e.span.RecordError(err)
			e.span.SetStatus(codes.Error, e.status)
		} else {
			e.span.SetStatus(codes.Ok, e.status)
		}
		e.span.End()
	}

	latency := time.Since(e.start).Seconds()
	e.in.reqCounter.Add(1,
		observability.L("use_case", e.useCase),
		observability.L("outcome", e.outcome),
	)
	e.in.durHistogram.Observe(latency,
		observability.L("use_case", e.useCase),
	)

	fields := []observability.Field{
		observability.F("outcome", e.outcome),
		observability.F("status", e.status),
		observability.F("latency_seconds", latency),
	}
	if sc := trace.SpanContextFromContext(e.ctx); sc.IsValid() {
		fields = append(fields,
			observability.F("trace_id", sc.TraceID().String()),
			observability.F("span_id", sc.SpanID().String()),
		)
	}
	fields = append(fields, e.fields...)
	if err != nil {
		fields = append(fields, observability.F("error", err.Error()))
	}
	e.logger.Info("use_case_done", fields...)
}

// ObserveExternal records one call to an external peer.
func (in *Instrumentation) ObserveExternal(peer, endpoint, outcome string, start time.Time) {
	in.extCounter.Add(1,
		observability.L("peer", peer),
		observability.L("endpoint", endpoint),
		observability.L("outcome", outcome),
	)
	in.extHistogram.Observe(time.Since(start).Seconds(),
		observability.L("peer", peer),
		observability.L("endpoint", endpoint),
	)
}
