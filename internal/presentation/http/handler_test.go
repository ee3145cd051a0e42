package httppresentation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/henoc97/ecommerce-backend-sub001/internal/application"
	appcart "github.com/henoc97/ecommerce-backend-sub001/internal/application/cart"
	appcheckout "github.com/henoc97/ecommerce-backend-sub001/internal/application/checkout"
	apppayment "github.com/henoc97/ecommerce-backend-sub001/internal/application/payment"
	domcart "github.com/henoc97/ecommerce-backend-sub001/internal/domain/cart"
	dompayment "github.com/henoc97/ecommerce-backend-sub001/internal/domain/payment"
	"github.com/henoc97/ecommerce-backend-sub001/internal/observability"
)

type countingTel struct {
	mu     sync.Mutex
	routes []string
}

func (t *countingTel) Tracer() observability.Tracer   { return observability.NopTracer() }
func (t *countingTel) Logger() observability.Logger   { return observability.NopLogger() }
func (t *countingTel) Metrics() observability.Metrics { return t }

func (t *countingTel) Counter(k observability.MetricKey) observability.Counter {
	if k != observability.MHTTPRequests {
		return observability.NopCounter()
	}
	return routeCounter{t: t}
}

func (t *countingTel) Histogram(observability.MetricKey) observability.Histogram {
	return observability.NopHistogram()
}

type routeCounter struct{ t *countingTel }

func (c routeCounter) Add(_ float64, labels ...observability.Label) {
	c.t.mu.Lock()
	defer c.t.mu.Unlock()
	for _, l := range labels {
		if l.Key == "route" {
			c.t.routes = append(c.t.routes, l.Value)
		}
	}
}

func (c routeCounter) Bind(...observability.Label) observability.BoundCounter { return nil }

func sampleCart() *domcart.Cart {
	return &domcart.Cart{ID: 7, TotalQuantity: 4, TotalPrice: decimal.RequireFromString("40.00")}
}

func newTestServer(t *testing.T, cart CartUseCases, pay PaymentUseCases, opts ...Option) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewHandler(cart, pay, observability.Nop(), opts...).Router())
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func TestAddItem_Created(t *testing.T) {
	var got appcart.AddItemInput
	srv := newTestServer(t, CartUseCases{
		AddItem: application.UseCaseFunc[appcart.AddItemInput, *appcart.MutationResult](func(_ context.Context, in appcart.AddItemInput) (*appcart.MutationResult, error) {
			got = in
			return &appcart.MutationResult{
				Outcome: appcart.OutcomeSuccess,
				Item:    &domcart.Item{ID: 3, CartID: in.CartID, VariantID: in.VariantID, Quantity: in.Quantity},
				Cart:    sampleCart(),
			}, nil
		}),
	}, PaymentUseCases{})

	resp, body := do(t, srv, http.MethodPost, "/carts/7/items", `{"variant_id":9,"quantity":4}`)

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, appcart.AddItemInput{CartID: 7, VariantID: 9, Quantity: 4}, got)
	assert.Equal(t, "success", body["outcome"])
	assert.Equal(t, "40", body["cart"].(map[string]any)["total_price"])
	assert.NotEmpty(t, resp.Header.Get(headerRequestID))
}

func TestUpdateQuantity_OutcomeStatuses(t *testing.T) {
	cases := []struct {
		outcome appcart.Outcome
		status  int
	}{
		{appcart.OutcomeSuccess, http.StatusOK},
		{appcart.OutcomeNotFound, http.StatusNotFound},
		{appcart.OutcomeConflict, http.StatusConflict},
		{appcart.OutcomeInsufficientStock, http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		t.Run(string(tc.outcome), func(t *testing.T) {
			srv := newTestServer(t, CartUseCases{
				UpdateQuantity: application.UseCaseFunc[appcart.UpdateItemQuantityInput, *appcart.MutationResult](func(context.Context, appcart.UpdateItemQuantityInput) (*appcart.MutationResult, error) {
					res := &appcart.MutationResult{Outcome: tc.outcome}
					if tc.outcome == appcart.OutcomeSuccess {
						res.Item = &domcart.Item{ID: 1, CartID: 7, VariantID: 9, Quantity: 4}
						res.Cart = sampleCart()
					}
					return res, nil
				}),
			}, PaymentUseCases{})

			resp, body := do(t, srv, http.MethodPatch, "/cart-items/1", `{"quantity":4}`)
			assert.Equal(t, tc.status, resp.StatusCode)
			if tc.outcome != appcart.OutcomeSuccess {
				assert.Equal(t, string(tc.outcome), body["outcome"])
			}
		})
	}
}

func TestUpdateQuantity_RequestErrors(t *testing.T) {
	srv := newTestServer(t, CartUseCases{
		UpdateQuantity: application.UseCaseFunc[appcart.UpdateItemQuantityInput, *appcart.MutationResult](func(_ context.Context, in appcart.UpdateItemQuantityInput) (*appcart.MutationResult, error) {
			if in.Quantity < 1 {
				return nil, domcart.ErrInvalidQuantity
			}
			return nil, errors.New("boom")
		}),
	}, PaymentUseCases{})

	resp, _ := do(t, srv, http.MethodPatch, "/cart-items/abc", `{"quantity":1}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, srv, http.MethodPatch, "/cart-items/1", `{"quantity":1,"extra":true}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := do(t, srv, http.MethodPatch, "/cart-items/1", `{"quantity":0}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_quantity", body["code"])

	resp, body = do(t, srv, http.MethodPatch, "/cart-items/1", `{"quantity":2}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "internal server error", body["error"])
}

func TestRemoveItem_ReturnsCartWithoutItem(t *testing.T) {
	srv := newTestServer(t, CartUseCases{
		RemoveItem: application.UseCaseFunc[appcart.RemoveItemInput, *appcart.MutationResult](func(context.Context, appcart.RemoveItemInput) (*appcart.MutationResult, error) {
			return &appcart.MutationResult{Outcome: appcart.OutcomeSuccess, Cart: &domcart.Cart{ID: 7, TotalPrice: decimal.Zero}}, nil
		}),
	}, PaymentUseCases{})

	resp, body := do(t, srv, http.MethodDelete, "/cart-items/1", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotContains(t, body, "item")
	assert.Contains(t, body, "cart")
}

func TestGetCart(t *testing.T) {
	srv := newTestServer(t, CartUseCases{
		GetCart: application.UseCaseFunc[appcart.GetCartInput, *domcart.Snapshot](func(_ context.Context, in appcart.GetCartInput) (*domcart.Snapshot, error) {
			if in.CartID != 7 {
				return nil, domcart.ErrCartNotFound
			}
			return &domcart.Snapshot{
				Cart:  *sampleCart(),
				Items: []domcart.Item{{ID: 1, CartID: 7, VariantID: 9, Quantity: 4}},
			}, nil
		}),
	}, PaymentUseCases{})

	resp, body := do(t, srv, http.MethodGet, "/carts/7", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 7, body["id"])
	assert.EqualValues(t, 4, body["total_quantity"])
	assert.Len(t, body["items"], 1)

	resp, body = do(t, srv, http.MethodGet, "/carts/8", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", body["code"])
}

func TestProcessPayment(t *testing.T) {
	var got apppayment.ProcessPaymentInput
	srv := newTestServer(t, CartUseCases{}, PaymentUseCases{
		Process: application.UseCaseFunc[apppayment.ProcessPaymentInput, *dompayment.Result](func(_ context.Context, in apppayment.ProcessPaymentInput) (*dompayment.Result, error) {
			got = in
			switch in.CardToken {
			case "bad":
				return nil, &dompayment.ValidationError{Field: "amount", Reason: "must be greater than zero"}
			case "declined":
				return dompayment.Failed(dompayment.CodeCardDeclined, "declined", nil), nil
			case "down":
				return dompayment.Failed(dompayment.CodeProviderUnavailable, "circuit open", nil), nil
			}
			return dompayment.Succeeded("pi_1", "ch_1", map[string]any{dompayment.DetailMethod: dompayment.MethodSimulation}), nil
		}),
	})

	resp, body := do(t, srv, http.MethodPost, "/payments", `{"amount":"12.50","currency":"USD","method":"card","card_token":"tok"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, got.Amount.Equal(decimal.RequireFromString("12.5")))
	assert.Equal(t, "pi_1", body["provider_id"])
	assert.Equal(t, "simulation", body["details"].(map[string]any)["method"])

	resp, body = do(t, srv, http.MethodPost, "/payments", `{"amount":0,"currency":"usd","method":"card","card_token":"bad"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "amount", body["field"])

	resp, body = do(t, srv, http.MethodPost, "/payments", `{"amount":5,"currency":"usd","method":"card","card_token":"declined"}`)
	assert.Equal(t, http.StatusPaymentRequired, resp.StatusCode)
	assert.Equal(t, dompayment.CodeCardDeclined, body["error_code"])

	resp, _ = do(t, srv, http.MethodPost, "/payments", `{"amount":5,"currency":"usd","method":"card","card_token":"down"}`)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestRefund_OptionalAmount(t *testing.T) {
	var calls []apppayment.RefundPaymentInput
	srv := newTestServer(t, CartUseCases{}, PaymentUseCases{
		Refund: application.UseCaseFunc[apppayment.RefundPaymentInput, *dompayment.Result](func(_ context.Context, in apppayment.RefundPaymentInput) (*dompayment.Result, error) {
			calls = append(calls, in)
			return dompayment.Succeeded("re_1", in.ProviderID, nil), nil
		}),
	})

	resp, _ := do(t, srv, http.MethodPost, "/payments/pi_1/refund", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = do(t, srv, http.MethodPost, "/payments/pi_1/refund", `{"amount":"2.50"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.Len(t, calls, 2)
	assert.Equal(t, "pi_1", calls[0].ProviderID)
	assert.False(t, calls[0].Amount.Valid)
	assert.True(t, calls[1].Amount.Valid)
	assert.True(t, calls[1].Amount.Decimal.Equal(decimal.RequireFromString("2.5")))
}

func TestCheckout(t *testing.T) {
	srv := newTestServer(t, CartUseCases{}, PaymentUseCases{
		Checkout: application.UseCaseFunc[appcheckout.ChargeInput, *appcheckout.ChargeResult](func(_ context.Context, in appcheckout.ChargeInput) (*appcheckout.ChargeResult, error) {
			switch in.CartID {
			case 1:
				return nil, appcheckout.ErrEmptyCart
			case 2:
				return nil, domcart.ErrCartNotFound
			}
			return &appcheckout.ChargeResult{
				CheckoutID: "chk_1",
				Cart:       sampleCart(),
				Payment:    dompayment.Succeeded("pi_1", "ch_1", nil),
			}, nil
		}),
	})

	resp, body := do(t, srv, http.MethodPost, "/carts/7/checkout", `{"method":"card","card_token":"tok"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "chk_1", body["checkout_id"])

	resp, body = do(t, srv, http.MethodPost, "/carts/1/checkout", `{"method":"card"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "cart_empty", body["code"])

	resp, _ = do(t, srv, http.MethodPost, "/carts/2/checkout", `{"method":"card"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCheckout_ForwardsIdempotencyKey(t *testing.T) {
	var got string
	srv := newTestServer(t, CartUseCases{}, PaymentUseCases{
		Checkout: application.UseCaseFunc[appcheckout.ChargeInput, *appcheckout.ChargeResult](func(_ context.Context, in appcheckout.ChargeInput) (*appcheckout.ChargeResult, error) {
			got = in.IdempotencyKey
			return &appcheckout.ChargeResult{
				CheckoutID: in.IdempotencyKey,
				Cart:       sampleCart(),
				Payment:    dompayment.Succeeded("pi_1", "ch_1", nil),
			}, nil
		}),
	})

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/carts/7/checkout", strings.NewReader(`{"method":"card"}`))
	require.NoError(t, err)
	req.Header.Set("Idempotency-Key", "order-77")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "order-77", got)
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, CartUseCases{}, PaymentUseCases{})
	resp, _ := do(t, srv, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	failing := newTestServer(t, CartUseCases{}, PaymentUseCases{},
		WithHealthCheck("postgres", func(context.Context) error { return errors.New("connection refused") }),
	)
	resp, body := do(t, failing, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "connection refused", body["postgres"])
}

func TestRouter_MetricsUseRouteTemplate(t *testing.T) {
	tel := &countingTel{}
	h := NewHandler(CartUseCases{
		GetCart: application.UseCaseFunc[appcart.GetCartInput, *domcart.Snapshot](func(context.Context, appcart.GetCartInput) (*domcart.Snapshot, error) {
			return &domcart.Snapshot{Cart: *sampleCart()}, nil
		}),
	}, PaymentUseCases{}, tel)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/carts/7", nil)
	req.Header.Set(headerRequestID, "req-1")
	h.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-1", rec.Header().Get(headerRequestID))
	assert.Equal(t, []string{"/carts/{cartID}"}, tel.routes)
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, CartUseCases{}, PaymentUseCases{})
	resp, _ := do(t, srv, http.MethodPut, "/health", "")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
