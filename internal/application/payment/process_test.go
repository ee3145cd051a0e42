package payment

import (
	"context"
	"sync"
	"testing"

	domoutbox "github.com/henoc97/ecommerce-backend-sub001/internal/domain/outbox"
	dompayment "github.com/henoc97/ecommerce-backend-sub001/internal/domain/payment"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGateway struct {
	result  *dompayment.Result
	calls   int
	lastReq dompayment.Request
	lastAmt decimal.NullDecimal
}

func (g *stubGateway) Name() string { return "stub" }

func (g *stubGateway) ProcessPayment(_ context.Context, req dompayment.Request) (*dompayment.Result, error) {
	g.calls++
	g.lastReq = req
	return g.result, nil
}

func (g *stubGateway) RefundPayment(_ context.Context, _ string, amount decimal.NullDecimal) (*dompayment.Result, error) {
	g.calls++
	g.lastAmt = amount
	return g.result, nil
}

type capturePublisher struct {
	mu     sync.Mutex
	events []domoutbox.Event
}

func (p *capturePublisher) Publish(_ context.Context, e domoutbox.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func TestProcessPayment_InvalidAmountNeverReachesGateway(t *testing.T) {
	gw := &stubGateway{}
	uc := NewProcessPaymentUseCase(gw, nil, nil)

	for _, amount := range []decimal.Decimal{decimal.Zero, decimal.NewFromInt(-5)} {
		res, err := uc.Execute(context.Background(), ProcessPaymentInput{Amount: amount, Currency: "usd", Method: "card"})

		assert.Nil(t, res)
		var verr *dompayment.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "amount", verr.Field)
	}
	assert.Zero(t, gw.calls)
}

func TestProcessPayment_NormalizesRequestAndPublishes(t *testing.T) {
	gw := &stubGateway{result: dompayment.Succeeded("pi_1", "pi_1", map[string]any{dompayment.DetailMethod: dompayment.MethodSimulation})}
	pub := &capturePublisher{}
	uc := NewProcessPaymentUseCase(gw, pub, nil)

	res, err := uc.Execute(context.Background(), ProcessPaymentInput{
		Amount:   decimal.RequireFromString("49.99"),
		Currency: " EUR ",
		Method:   "card",
	})

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "eur", gw.lastReq.Currency)
	require.Len(t, pub.events, 1)
	evt, ok := pub.events[0].(dompayment.PaymentProcessedEvent)
	require.True(t, ok)
	assert.Equal(t, "pi_1", evt.ProviderID)
	assert.Equal(t, dompayment.MethodSimulation, evt.Branch)
}

func TestProcessPayment_DeclineIsAResultNotAnError(t *testing.T) {
	gw := &stubGateway{result: dompayment.Failed(dompayment.CodeCardDeclined, "declined", nil)}
	uc := NewProcessPaymentUseCase(gw, nil, nil)

	res, err := uc.Execute(context.Background(), ProcessPaymentInput{Amount: decimal.NewFromInt(10), Currency: "usd", Method: "card"})

	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, dompayment.CodeCardDeclined, res.ErrorCode)
}

func TestRefundPayment_PassesAmountThrough(t *testing.T) {
	gw := &stubGateway{result: dompayment.Succeeded("re_1", "re_1", nil)}
	pub := &capturePublisher{}
	uc := NewRefundPaymentUseCase(gw, pub, nil)

	_, err := uc.Execute(context.Background(), RefundPaymentInput{ProviderID: "pi_1"})
	require.NoError(t, err)
	assert.False(t, gw.lastAmt.Valid)

	_, err = uc.Execute(context.Background(), RefundPaymentInput{
		ProviderID: "pi_1",
		Amount:     decimal.NewNullDecimal(decimal.NewFromInt(50)),
	})
	require.NoError(t, err)
	assert.True(t, gw.lastAmt.Valid)
	assert.Len(t, pub.events, 2)
	assert.Equal(t, "50", pub.events[1].(dompayment.PaymentRefundedEvent).Amount)
}

func TestRefundPayment_RequiresProviderID(t *testing.T) {
	gw := &stubGateway{}
	uc := NewRefundPaymentUseCase(gw, nil, nil)

	_, err := uc.Execute(context.Background(), RefundPaymentInput{ProviderID: "  "})

	var verr *dompayment.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Zero(t, gw.calls)
}
