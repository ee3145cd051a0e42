package gateway

import (
	"errors"
	"time"

	dompayment "github.com/henoc97/ecommerce-backend-sub001/internal/domain/payment"
	"github.com/henoc97/ecommerce-backend-sub001/internal/observability"
)

// Mode names the gateway the factory selected.
type Mode string

const (
	ModeLive       Mode = "live"
	ModeSimulation Mode = "simulation"
)

var ErrNoCredential = errors.New("payment provider secret is not configured")

type Config struct {
	Secret          string
	ReturnURL       string
	Timeout         time.Duration
	SimulationDelay time.Duration
}

// InitResult tells the composition root which gateway it got and why.
// Err is set when live mode was wanted but could not be initialized.
type InitResult struct {
	Mode   Mode
	Reason string
	Err    error
}

func (r InitResult) Simulated() bool { return r.Mode == ModeSimulation }

// New selects the live gateway when a secret is configured and the simulated one otherwise.
// It never fails; a failed live initialization falls back to simulation and is reported in InitResult.
func New(cfg Config, tel observability.Observability) (dompayment.Gateway, InitResult) {
	if tel == nil {
		tel = observability.Nop()
	}
	sim := func(reason string, err error) (dompayment.Gateway, InitResult) {
		return NewSimulatedGateway(WithDelay(cfg.SimulationDelay)), InitResult{Mode: ModeSimulation, Reason: reason, Err: err}
	}

	if cfg.Secret == "" {
		return sim("no provider secret configured", ErrNoCredential)
	}
	api, err := NewStripeClient(cfg.Secret, tel.Logger())
	if err != nil {
		return sim("provider client initialization failed", err)
	}
	return NewStripeGateway(api, cfg.ReturnURL, cfg.Timeout, tel), InitResult{Mode: ModeLive, Reason: "provider secret configured"}
}
