package cart

import (
	"context"
	"fmt"
	"time"

	domcart "github.com/henoc97/ecommerce-backend-sub001/internal/domain/cart"
	domoutbox "github.com/henoc97/ecommerce-backend-sub001/internal/domain/outbox"
	"github.com/henoc97/ecommerce-backend-sub001/internal/observability"
	"github.com/henoc97/ecommerce-backend-sub001/internal/observability/logctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	workerService    = "cart_cache_worker"
	spanPrefixWorker = "Worker."
)

// CacheWorker drops cached snapshots once a cart's totals were rewritten.
type CacheWorker struct {
	subscriber domoutbox.Subscriber
	cache      domcart.Cache
	tel        observability.Observability

	log          observability.Logger
	reqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{use_case}
}

func NewCacheWorker(subscriber domoutbox.Subscriber, cache domcart.Cache, tel observability.Observability) *CacheWorker {
	if tel == nil {
		tel = observability.Nop()
	}
	metrics := tel.Metrics()
	return &CacheWorker{
		subscriber:   subscriber,
		cache:        cache,
		tel:          tel,
		log:          tel.Logger().With(observability.F("service", workerService)),
		reqCounter:   metrics.Counter(observability.MUsecaseRequests),
		durHistogram: metrics.Histogram(observability.MUsecaseDuration),
	}
}

func (w *CacheWorker) Start() {
	if w.subscriber == nil || w.cache == nil {
		return
	}
	w.subscriber.Subscribe(domcart.CartTotalsRecomputedEvent{}.EventName(), w.handleTotalsRecomputed)
}

func (w *CacheWorker) handleTotalsRecomputed(ctx context.Context, e domoutbox.Event) error {
	const useCase = "cart.worker.totals_recomputed"
	evt, ok := e.(domcart.CartTotalsRecomputedEvent)
	if !ok {
		w.count(useCase, "ignored")
		return nil
	}

	ctx, span := w.tel.Tracer().Start(ctx, spanPrefixWorker+"TotalsRecomputed",
		attribute.String("use_case", useCase),
		attribute.String("event", e.EventName()),
		attribute.Int64("cart.id", evt.CartID),
	)
	start := time.Now()
	outcome, status := "success", "OK"

	logger := logctx.FromOr(ctx, w.log).With(
		observability.F("use_case", useCase),
		observability.F("event", e.EventName()),
		observability.F("cart_id", evt.CartID),
	)
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		logger = logger.With(
			observability.F("trace_id", sc.TraceID().String()),
			observability.F("span_id", sc.SpanID().String()),
		)
	}
	ctx = logctx.With(ctx, logger)

	defer func() {
		lat := time.Since(start).Seconds()
		w.observe(useCase, outcome, lat)
		logger.Info("use_case_done",
			observability.F("outcome", outcome),
			observability.F("status", status),
			observability.F("latency_seconds", lat),
		)
		if outcome == "error" {
			span.SetStatus(codes.Error, status)
		} else {
			span.SetStatus(codes.Ok, status)
		}
		span.End()
	}()

	if err := w.cache.Invalidate(ctx, evt.CartID); err != nil {
		outcome, status = "error", "CACHE_INVALIDATE_FAILED"
		span.RecordError(err)
		return fmt.Errorf("worker: invalidate cart %d: %w", evt.CartID, err)
	}
	return nil
}

func (w *CacheWorker) count(useCase, outcome string) {
	w.reqCounter.Add(1,
		observability.L("use_case", useCase),
		observability.L("outcome", outcome),
	)
}

func (w *CacheWorker) observe(useCase, outcome string, latencySeconds float64) {
	w.count(useCase, outcome)
	w.durHistogram.Observe(latencySeconds,
		observability.L("use_case", useCase),
	)
}
