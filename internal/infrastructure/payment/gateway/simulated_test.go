package gateway

import (
	"context"
	"testing"
	"time"

	dompayment "github.com/henoc97/ecommerce-backend-sub001/internal/domain/payment"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulatedGateway_EveryResultIsMarked(t *testing.T) {
	g := NewSimulatedGateway(WithSeed(7), WithDelay(0))

	for i := 0; i < 50; i++ {
		res, err := g.ProcessPayment(context.Background(), newRequest("12.50"))
		require.NoError(t, err)
		assert.Equal(t, dompayment.MethodSimulation, res.Details[dompayment.DetailMethod])
		if res.Success {
			assert.NotEmpty(t, res.ProviderID)
			assert.NotEmpty(t, res.TransactionID)
		} else {
			assert.Equal(t, dompayment.CodeCardDeclined, res.ErrorCode)
		}
	}

	res, err := g.RefundPayment(context.Background(), "pi_sim_1", decimal.NullDecimal{})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, dompayment.MethodSimulation, res.Branch())
}

func TestSimulatedGateway_SuccessRate(t *testing.T) {
	always := NewSimulatedGateway(WithSuccessRate(1), WithDelay(0))
	never := NewSimulatedGateway(WithSuccessRate(0), WithDelay(0))

	ok, err := always.ProcessPayment(context.Background(), newRequest("1"))
	require.NoError(t, err)
	assert.True(t, ok.Success)

	declined, err := never.ProcessPayment(context.Background(), newRequest("1"))
	require.NoError(t, err)
	assert.False(t, declined.Success)
	assert.Equal(t, dompayment.CodeCardDeclined, declined.ErrorCode)
}

func TestSimulatedGateway_RoughlyEightyPercent(t *testing.T) {
	g := NewSimulatedGateway(WithSeed(42), WithDelay(0))

	succeeded := 0
	const n = 2000
	for i := 0; i < n; i++ {
		res, err := g.ProcessPayment(context.Background(), newRequest("1"))
		require.NoError(t, err)
		if res.Success {
			succeeded++
		}
	}
	assert.InDelta(t, 0.8, float64(succeeded)/n, 0.05)
}

func TestSimulatedGateway_RefundEchoesAmount(t *testing.T) {
	g := NewSimulatedGateway(WithDelay(0))

	res, err := g.RefundPayment(context.Background(), "pi_sim_1", decimal.NewNullDecimal(decimal.NewFromInt(50)))

	require.NoError(t, err)
	assert.Equal(t, "50", res.Details[dompayment.DetailAmount])
	assert.Equal(t, dompayment.RefundScopePartial, res.Details[dompayment.DetailRefundScope])
}

func TestSimulatedGateway_ValidatesFirst(t *testing.T) {
	g := NewSimulatedGateway(WithDelay(time.Hour))

	_, err := g.ProcessPayment(context.Background(), newRequest("0"))

	var verr *dompayment.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestSimulatedGateway_HonorsCancellation(t *testing.T) {
	g := NewSimulatedGateway(WithDelay(time.Hour))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := g.ProcessPayment(ctx, newRequest("1"))

	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, dompayment.MethodSimulation, res.Branch())
}

func TestNew_SelectsGatewayByCredential(t *testing.T) {
	gw, ir := New(Config{SimulationDelay: 0}, nil)
	assert.Equal(t, ModeSimulation, ir.Mode)
	assert.ErrorIs(t, ir.Err, ErrNoCredential)
	assert.Equal(t, dompayment.MethodSimulation, gw.Name())

	gw, ir = New(Config{Secret: "sk_test_123", Timeout: time.Second}, nil)
	assert.Equal(t, ModeLive, ir.Mode)
	assert.NoError(t, ir.Err)
	assert.Equal(t, dompayment.MethodProvider, gw.Name())
}
