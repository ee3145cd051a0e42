package httppresentation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/henoc97/ecommerce-backend-sub001/internal/application"
	appcart "github.com/henoc97/ecommerce-backend-sub001/internal/application/cart"
	appcheckout "github.com/henoc97/ecommerce-backend-sub001/internal/application/checkout"
	apppayment "github.com/henoc97/ecommerce-backend-sub001/internal/application/payment"
	domcart "github.com/henoc97/ecommerce-backend-sub001/internal/domain/cart"
	dompayment "github.com/henoc97/ecommerce-backend-sub001/internal/domain/payment"
	"github.com/henoc97/ecommerce-backend-sub001/internal/observability"
	"github.com/henoc97/ecommerce-backend-sub001/internal/observability/logctx"
)

const (
	componentHTTPHandler = "http_server"
	headerRequestID      = "X-Request-ID"
	headerTenantID       = "X-Tenant-ID"
	headerIdempotencyKey = "Idempotency-Key"
	tracerName           = "ecommerce.http"
	maxBodyBytes         = 1 << 20
)

// CartUseCases are the cart operations exposed over HTTP.
type CartUseCases struct {
	AddItem        application.UseCase[appcart.AddItemInput, *appcart.MutationResult]
	UpdateQuantity application.UseCase[appcart.UpdateItemQuantityInput, *appcart.MutationResult]
	RemoveItem     application.UseCase[appcart.RemoveItemInput, *appcart.MutationResult]
	GetCart        application.UseCase[appcart.GetCartInput, *domcart.Snapshot]
}

// PaymentUseCases are the payment and checkout operations exposed over HTTP.
type PaymentUseCases struct {
	Process  application.UseCase[apppayment.ProcessPaymentInput, *dompayment.Result]
	Refund   application.UseCase[apppayment.RefundPaymentInput, *dompayment.Result]
	Checkout application.UseCase[appcheckout.ChargeInput, *appcheckout.ChargeResult]
}

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

type Handler struct {
	cart   CartUseCases
	pay    PaymentUseCases
	checks map[string]HealthCheck
	log    observability.Logger
	tel    observability.Observability
}

type Option func(*Handler)

// WithHealthCheck adds a named dependency check to GET /health.
func WithHealthCheck(name string, check HealthCheck) Option {
	return func(h *Handler) {
		if check != nil {
			h.checks[name] = check
		}
	}
}

func NewHandler(cart CartUseCases, pay PaymentUseCases, tel observability.Observability, opts ...Option) *Handler {
	if tel == nil {
		tel = observability.Nop()
	}
	h := &Handler{
		cart:   cart,
		pay:    pay,
		checks: make(map[string]HealthCheck),
		log:    tel.Logger().With(observability.F("component", componentHTTPHandler)),
		tel:    tel,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Router mounts every route on a chi router. /metrics is mounted by the caller.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	h.handle(r, http.MethodPost, "/carts/{cartID}/items", h.handleAddItem)
	h.handle(r, http.MethodGet, "/carts/{cartID}", h.handleGetCart)
	h.handle(r, http.MethodPatch, "/cart-items/{itemID}", h.handleUpdateQuantity)
	h.handle(r, http.MethodDelete, "/cart-items/{itemID}", h.handleRemoveItem)
	h.handle(r, http.MethodPost, "/carts/{cartID}/checkout", h.handleCheckout)
	h.handle(r, http.MethodPost, "/payments", h.handleProcessPayment)
	h.handle(r, http.MethodPost, "/payments/{providerID}/refund", h.handleRefund)
	h.handle(r, http.MethodGet, "/health", h.handleHealth)

	return r
}

// handle wires one route as Trace → Request Logger + Metrics → Access Log → Handler.
func (h *Handler) handle(r chi.Router, method, pattern string, handler http.HandlerFunc) {
	obs := ObservabilityMiddleware(
		h.log,
		func(r *http.Request) string { return r.Header.Get(headerRequestID) },
		func(r *http.Request) string { return r.Header.Get(headerTenantID) },
		h.tel,
	)
	wrapped := h.withTrace(obs(h.withAccessLog(handler)))

	r.Method(method, pattern, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		wrapped.ServeHTTP(w, req.WithContext(contextWithRoute(req.Context(), pattern)))
	}))
}

// withAccessLog writes a single access log after the handler completes.
// It relies on the request-scoped logger already injected by ObservabilityMiddleware.
func (h *Handler) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(lrw, r)

		logctx.FromOr(r.Context(), h.log).Info("http_access",
			observability.F("method", r.Method),
			observability.F("route", routeFromContext(r.Context())),
			observability.F("path", r.URL.Path),
			observability.F("status", lrw.status),
			observability.F("latency_ms", time.Since(start).Milliseconds()),
		)
	})
}

// withTrace creates a server span for the request using OTel and W3C propagation.
func (h *Handler) withTrace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parentCtx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		route := routeFromContext(parentCtx)
		if route == "unknown" {
			route = r.URL.Path
		}

		ctx, span := otel.Tracer(tracerName).Start(parentCtx,
			r.Method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.route", route),
				attribute.String("http.target", r.URL.Path),
				attribute.String("http.user_agent", r.UserAgent()),
			),
		)
		defer span.End()

		lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(lrw, r.WithContext(ctx))
		span.SetAttributes(attribute.Int("http.status_code", lrw.status))
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{}
	healthy := true
	for name, check := range h.checks {
		if err := check(r.Context()); err != nil {
			status[name] = err.Error()
			healthy = false
			continue
		}
		status[name] = "ok"
	}
	if !healthy {
		writeJSON(w, http.StatusServiceUnavailable, status)
		return
	}
	if len(status) == 0 {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// decodeJSON rejects unknown fields. An empty body leaves dst untouched when allowEmpty is set.
func decodeJSON(r *http.Request, dst any, allowEmpty bool) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer", name)
	}
	return id, nil
}

type errorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Field   string `json:"field,omitempty"`
	Outcome string `json:"outcome,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error(), Code: code})
}

// writeDomainError is the single mapping from use case errors to HTTP statuses.
func writeDomainError(ctx context.Context, w http.ResponseWriter, log observability.Logger, err error) {
	var verr *dompayment.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: verr.Error(), Code: "validation_failed", Field: verr.Field})
	case errors.Is(err, domcart.ErrInvalidQuantity):
		writeError(w, http.StatusBadRequest, "invalid_quantity", err)
	case errors.Is(err, domcart.ErrCartNotFound),
		errors.Is(err, domcart.ErrItemNotFound),
		errors.Is(err, domcart.ErrVariantNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, appcheckout.ErrEmptyCart):
		writeError(w, http.StatusUnprocessableEntity, "cart_empty", err)
	default:
		logctx.FromOr(ctx, log).Error("http_internal_error", observability.Err(err))
		writeError(w, http.StatusInternalServerError, "internal_error", errors.New("internal server error"))
	}
}

type routeKey struct{}

// contextWithRoute stores the stable route template in the context so downstream
// metrics/logging can rely on low-cardinality values.
func contextWithRoute(ctx context.Context, route string) context.Context {
	if route == "" {
		return ctx
	}
	return context.WithValue(ctx, routeKey{}, route)
}

func routeFromContext(ctx context.Context) string {
	if ctx == nil {
		return "unknown"
	}
	if route, ok := ctx.Value(routeKey{}).(string); ok && route != "" {
		return route
	}
	return "unknown"
}
