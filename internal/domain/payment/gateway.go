package payment

import (
	"context"

	"github.com/shopspring/decimal"
)

// Gateway is the contract every payment provider integration satisfies.
//
// Both operations return a *ValidationError, and nothing else, when the input is malformed.
// Every provider outcome, including transport faults, comes back as a Result.
type Gateway interface {
	Name() string
	ProcessPayment(ctx context.Context, req Request) (*Result, error)
	// RefundPayment refunds amount, or the full captured amount when amount is not Valid.
	RefundPayment(ctx context.Context, providerID string, amount decimal.NullDecimal) (*Result, error)
}
