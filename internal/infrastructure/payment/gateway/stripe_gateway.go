package gateway

import (
	"context"
	"errors"
	"time"

	dompayment "github.com/henoc97/ecommerce-backend-sub001/internal/domain/payment"
	"github.com/henoc97/ecommerce-backend-sub001/internal/observability"
	"github.com/henoc97/ecommerce-backend-sub001/internal/observability/logctx"

	"github.com/shopspring/decimal"
)

const (
	providerPeer           = "stripe"
	defaultProviderTimeout = 15 * time.Second
)

// StripeGateway talks to the live provider. It never returns provider faults as errors.
type StripeGateway struct {
	api       IntentAPI
	returnURL string
	timeout   time.Duration
	now       func() time.Time

	log          observability.Logger
	extCounter   observability.Counter   // external_requests_total{peer,endpoint,outcome}
	extHistogram observability.Histogram // external_request_duration_seconds{peer,endpoint}
}

func NewStripeGateway(api IntentAPI, returnURL string, timeout time.Duration, tel observability.Observability) *StripeGateway {
	if tel == nil {
		tel = observability.Nop()
	}
	if timeout <= 0 {
		timeout = defaultProviderTimeout
	}
	return &StripeGateway{
		api:          api,
		returnURL:    returnURL,
		timeout:      timeout,
		now:          time.Now,
		log:          tel.Logger().With(observability.F("component", "stripe_gateway")),
		extCounter:   tel.Metrics().Counter(observability.MExternalRequests),
		extHistogram: tel.Metrics().Histogram(observability.MExternalRequestDuration),
	}
}

func (g *StripeGateway) Name() string { return dompayment.MethodProvider }

func (g *StripeGateway) ProcessPayment(ctx context.Context, req dompayment.Request) (*dompayment.Result, error) {
	if err := dompayment.ValidateRequest(req); err != nil {
		return nil, err
	}
	minor, err := dompayment.ToMinorUnits(req.Amount, req.Currency)
	if err != nil {
		return nil, err
	}

	details := g.baseDetails(req)
	intent, err := call(ctx, g, "payment_intents.create", func(ctx context.Context) (*Intent, error) {
		return g.api.CreateIntent(ctx, IntentParams{
			Amount:         minor,
			Currency:       req.Currency,
			PaymentMethod:  req.CardToken,
			ReturnURL:      g.returnURL,
			IdempotencyKey: req.Metadata[dompayment.MetadataIdempotencyKey],
			Metadata:       req.Metadata,
		})
	})
	if err != nil {
		// a decline still carries the intent; map it like any other terminal state
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Intent != nil {
			return mapIntent(apiErr.Intent, details), nil
		}
		g.logFailure(ctx, "payment_provider_call_failed", err)
		return handleError(err, details), nil
	}
	return mapIntent(intent, details), nil
}

func (g *StripeGateway) RefundPayment(ctx context.Context, providerID string, amount decimal.NullDecimal) (*dompayment.Result, error) {
	if err := dompayment.ValidateRefund(providerID, amount); err != nil {
		return nil, err
	}

	params := RefundParams{PaymentIntentID: providerID}
	details := map[string]any{
		dompayment.DetailMethod:      dompayment.MethodProvider,
		dompayment.DetailRefundScope: dompayment.RefundScopeFull,
		dompayment.DetailTimestamp:   g.now().UTC().Format(time.RFC3339),
	}
	if amount.Valid {
		// partial amounts are expressed in the captured payment's currency
		intent, err := call(ctx, g, "payment_intents.retrieve", func(ctx context.Context) (*Intent, error) {
			return g.api.GetIntent(ctx, providerID)
		})
		if err != nil {
			g.logFailure(ctx, "refund_provider_call_failed", err)
			return handleError(err, details), nil
		}
		if intent.Currency == "" {
			return dompayment.Failed(dompayment.CodeProviderError, "payment currency is unknown", details), nil
		}
		minor, err := dompayment.ToMinorUnits(amount.Decimal, intent.Currency)
		if err != nil {
			return nil, err
		}
		params.Amount = &minor
		details[dompayment.DetailRefundScope] = dompayment.RefundScopePartial
		details[dompayment.DetailCurrency] = intent.Currency
	}

	refund, err := call(ctx, g, "refunds.create", func(ctx context.Context) (*Refund, error) {
		return g.api.CreateRefund(ctx, params)
	})
	if err != nil {
		g.logFailure(ctx, "refund_provider_call_failed", err)
		return handleError(err, details), nil
	}

	details[dompayment.DetailProviderStatus] = refund.Status
	if refund.Currency != "" {
		details[dompayment.DetailAmount] = dompayment.FromMinorUnits(refund.Amount, refund.Currency).String()
		details[dompayment.DetailCurrency] = refund.Currency
	}
	if refund.Status == "failed" || refund.Status == "canceled" {
		return dompayment.Failed(dompayment.CodePaymentFailed, "refund was not completed", details), nil
	}
	return dompayment.Succeeded(refund.ID, refund.ID, details), nil
}

func (g *StripeGateway) baseDetails(req dompayment.Request) map[string]any {
	return map[string]any{
		dompayment.DetailMethod:        dompayment.MethodProvider,
		dompayment.DetailPaymentMethod: req.Method,
		dompayment.DetailAmount:        req.Amount.String(),
		dompayment.DetailCurrency:      req.Currency,
		dompayment.DetailTimestamp:     g.now().UTC().Format(time.RFC3339),
	}
}

func (g *StripeGateway) logFailure(ctx context.Context, msg string, err error) {
	logctx.FromOr(ctx, g.log).Warn(msg, observability.F("error", err.Error()))
}

// call runs fn under the provider deadline, converts panics to errors and records the external call.
func call[T any](ctx context.Context, g *StripeGateway, endpoint string, fn func(context.Context) (*T, error)) (out *T, err error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, panicError{v: r}
		}
		outcome := "success"
		if err != nil {
			outcome = "error"
		}
		g.extCounter.Add(1,
			observability.L("peer", providerPeer),
			observability.L("endpoint", endpoint),
			observability.L("outcome", outcome),
		)
		g.extHistogram.Observe(time.Since(start).Seconds(),
			observability.L("peer", providerPeer),
			observability.L("endpoint", endpoint),
		)
	}()

	out, err = fn(ctx)
	if err == nil && out == nil {
		err = errors.New("payment provider returned an empty response")
	}
	return out, err
}

// mapIntent applies the intent status table: succeeded, requires_action, everything else.
func mapIntent(in *Intent, details map[string]any) *dompayment.Result {
	details[dompayment.DetailProviderStatus] = in.Status
	if in.Currency != "" {
		details[dompayment.DetailAmount] = dompayment.FromMinorUnits(in.Amount, in.Currency).String()
		details[dompayment.DetailCurrency] = in.Currency
	}

	switch in.Status {
	case IntentSucceeded:
		txID := in.LatestChargeID
		if txID == "" {
			txID = in.ID
		}
		return dompayment.Succeeded(in.ID, txID, details)
	case IntentRequiresAction:
		details[dompayment.DetailNextAction] = map[string]any{
			"type":         in.NextActionType,
			"redirect_url": in.NextActionURL,
		}
		details[dompayment.DetailClientSecret] = in.ClientSecret
		res := dompayment.Failed(dompayment.CodeRequiresAction, "additional authentication required", details)
		res.ProviderID = in.ID
		return res
	default:
		details[dompayment.DetailLastError] = map[string]any{
			"code":    in.LastErrorCode,
			"message": in.LastErrorMessage,
		}
		msg := in.LastErrorMessage
		if msg == "" {
			msg = "payment was not completed (status " + in.Status + ")"
		}
		res := dompayment.Failed(dompayment.CodePaymentFailed, msg, details)
		res.ProviderID = in.ID
		return res
	}
}
