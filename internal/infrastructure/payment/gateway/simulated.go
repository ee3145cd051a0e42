package gateway

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	dompayment "github.com/henoc97/ecommerce-backend-sub001/internal/domain/payment"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	defaultSimulationSuccessRate = 0.8
	defaultSimulationDelay       = 500 * time.Millisecond
)

// SimulatedGateway stands in for the provider when no credential is configured.
// It makes no network calls; every result carries details["method"] = "simulation".
type SimulatedGateway struct {
	mu          sync.Mutex
	random      *rand.Rand
	successRate float64
	delay       time.Duration
	now         func() time.Time
}

type SimulationOption func(*SimulatedGateway)

// WithSeed makes the outcome sequence reproducible.
func WithSeed(seed int64) SimulationOption {
	return func(g *SimulatedGateway) { g.random = rand.New(rand.NewSource(seed)) }
}

func WithSuccessRate(rate float64) SimulationOption {
	return func(g *SimulatedGateway) { g.successRate = min(max(rate, 0), 1) }
}

func WithDelay(d time.Duration) SimulationOption {
	return func(g *SimulatedGateway) { g.delay = max(d, 0) }
}

func NewSimulatedGateway(opts ...SimulationOption) *SimulatedGateway {
	g := &SimulatedGateway{
		random:      rand.New(rand.NewSource(time.Now().UnixNano())),
		successRate: defaultSimulationSuccessRate,
		delay:       defaultSimulationDelay,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *SimulatedGateway) Name() string { return dompayment.MethodSimulation }

func (g *SimulatedGateway) ProcessPayment(ctx context.Context, req dompayment.Request) (*dompayment.Result, error) {
	if err := dompayment.ValidateRequest(req); err != nil {
		return nil, err
	}

	details := map[string]any{
		dompayment.DetailMethod:        dompayment.MethodSimulation,
		dompayment.DetailPaymentMethod: req.Method,
		dompayment.DetailAmount:        req.Amount.String(),
		dompayment.DetailCurrency:      req.Currency,
		dompayment.DetailTimestamp:     g.now().UTC().Format(time.RFC3339),
	}
	if err := g.wait(ctx); err != nil {
		return handleError(err, details), nil
	}

	if !g.roll() {
		details[dompayment.DetailLastError] = dompayment.CodeCardDeclined
		return dompayment.Failed(dompayment.CodeCardDeclined, "Your card was declined.", details), nil
	}
	return dompayment.Succeeded(syntheticID("pi_sim_"), syntheticID("ch_sim_"), details), nil
}

// RefundPayment always succeeds, echoing the requested amount or marking the refund as full.
func (g *SimulatedGateway) RefundPayment(ctx context.Context, providerID string, amount decimal.NullDecimal) (*dompayment.Result, error) {
	if err := dompayment.ValidateRefund(providerID, amount); err != nil {
		return nil, err
	}

	details := map[string]any{
		dompayment.DetailMethod:      dompayment.MethodSimulation,
		dompayment.DetailRefundScope: dompayment.RefundScopeFull,
		dompayment.DetailTimestamp:   g.now().UTC().Format(time.RFC3339),
		"payment_id":                 providerID,
	}
	if amount.Valid {
		details[dompayment.DetailRefundScope] = dompayment.RefundScopePartial
		details[dompayment.DetailAmount] = amount.Decimal.String()
	}
	if err := g.wait(ctx); err != nil {
		return handleError(err, details), nil
	}
	id := syntheticID("re_sim_")
	return dompayment.Succeeded(id, id, details), nil
}

// wait models provider latency but still honors cancellation.
func (g *SimulatedGateway) wait(ctx context.Context) error {
	if g.delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(g.delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (g *SimulatedGateway) roll() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.random.Float64() < g.successRate
}

func syntheticID(prefix string) string {
	return prefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:24]
}
