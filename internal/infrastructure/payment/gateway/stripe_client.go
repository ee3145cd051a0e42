package gateway

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/henoc97/ecommerce-backend-sub001/internal/observability"

	"github.com/sony/gobreaker/v2"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	breakerName             = "stripe"
	breakerFailureThreshold = 5
	breakerOpenTimeout      = 30 * time.Second
)

// stripeClient adapts stripe-go to IntentAPI. Calls share one circuit breaker and are never retried.
type stripeClient struct {
	sc      *client.API
	breaker *gobreaker.CircuitBreaker[any]
}

// NewStripeClient builds an IntentAPI over the live provider. secret must be non-empty.
func NewStripeClient(secret string, log observability.Logger) (IntentAPI, error) {
	return newStripeClient(secret, "", log)
}

// newStripeClient allows pointing the SDK at another base URL.
func newStripeClient(secret, baseURL string, log observability.Logger) (IntentAPI, error) {
	if secret == "" {
		return nil, errors.New("payment provider secret is empty")
	}
	if log == nil {
		log = observability.NopLogger()
	}

	httpClient := &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	cfg := &stripe.BackendConfig{
		HTTPClient:        httpClient,
		MaxNetworkRetries: stripe.Int64(0),
	}
	if baseURL != "" {
		cfg.URL = stripe.String(baseURL)
	}
	backends := &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, cfg),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, cfg),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, cfg),
	}

	breaker := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:    breakerName,
		Timeout: breakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerFailureThreshold
		},
		// declines are answers, not outages
		IsSuccessful: func(err error) bool {
			var apiErr *APIError
			return err == nil || (errors.As(err, &apiErr) && apiErr.CardError())
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit_breaker_state_changed",
				observability.F("breaker", name),
				observability.F("from", from.String()),
				observability.F("to", to.String()),
			)
		},
	})

	return &stripeClient{sc: client.New(secret, backends), breaker: breaker}, nil
}

func (c *stripeClient) CreateIntent(ctx context.Context, p IntentParams) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(p.Amount),
		Currency: stripe.String(p.Currency),
		Confirm:  stripe.Bool(true),
	}
	if p.PaymentMethod != "" {
		params.PaymentMethod = stripe.String(p.PaymentMethod)
	}
	if p.ReturnURL != "" {
		params.ReturnURL = stripe.String(p.ReturnURL)
	} else {
		params.AutomaticPaymentMethods = &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String("never"),
		}
	}
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}
	if p.IdempotencyKey != "" {
		params.SetIdempotencyKey(p.IdempotencyKey)
	}
	params.Context = ctx

	v, err := c.breaker.Execute(func() (any, error) {
		pi, err := c.sc.PaymentIntents.New(params)
		if err != nil {
			return nil, convertError(err)
		}
		return toIntent(pi), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Intent), nil
}

func (c *stripeClient) GetIntent(ctx context.Context, id string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	v, err := c.breaker.Execute(func() (any, error) {
		pi, err := c.sc.PaymentIntents.Get(id, params)
		if err != nil {
			return nil, convertError(err)
		}
		return toIntent(pi), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Intent), nil
}

func (c *stripeClient) CreateRefund(ctx context.Context, p RefundParams) (*Refund, error) {
	params := &stripe.RefundParams{PaymentIntent: stripe.String(p.PaymentIntentID)}
	if p.Amount != nil {
		params.Amount = stripe.Int64(*p.Amount)
	}
	params.Context = ctx

	v, err := c.breaker.Execute(func() (any, error) {
		r, err := c.sc.Refunds.New(params)
		if err != nil {
			return nil, convertError(err)
		}
		return &Refund{
			ID:       r.ID,
			Status:   string(r.Status),
			Amount:   r.Amount,
			Currency: string(r.Currency),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Refund), nil
}

func toIntent(pi *stripe.PaymentIntent) *Intent {
	if pi == nil {
		return nil
	}
	in := &Intent{
		ID:           pi.ID,
		Status:       string(pi.Status),
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
		ClientSecret: pi.ClientSecret,
	}
	if pi.LatestCharge != nil {
		in.LatestChargeID = pi.LatestCharge.ID
	}
	if pi.NextAction != nil {
		in.NextActionType = string(pi.NextAction.Type)
		if pi.NextAction.RedirectToURL != nil {
			in.NextActionURL = pi.NextAction.RedirectToURL.URL
		}
	}
	if pi.LastPaymentError != nil {
		in.LastErrorCode = string(pi.LastPaymentError.Code)
		in.LastErrorMessage = pi.LastPaymentError.Msg
	}
	return in
}

// convertError keeps SDK types out of the rest of the package. Context errors pass through untouched.
func convertError(err error) error {
	var se *stripe.Error
	if !errors.As(err, &se) {
		return err
	}
	return &APIError{
		Type:       string(se.Type),
		Code:       string(se.Code),
		Message:    se.Msg,
		HTTPStatus: se.HTTPStatusCode,
		Intent:     toIntent(se.PaymentIntent),
	}
}
