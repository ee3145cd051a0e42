package gateway

import (
	"context"
	"fmt"
)

// Intent is the provider's view of one payment attempt, reduced to what result mapping reads.
type Intent struct {
	ID               string
	Status           string
	Amount           int64
	Currency         string
	LatestChargeID   string
	ClientSecret     string
	NextActionType   string
	NextActionURL    string
	LastErrorCode    string
	LastErrorMessage string
}

// Provider intent statuses the mapping distinguishes.
const (
	IntentSucceeded      = "succeeded"
	IntentRequiresAction = "requires_action"
)

type Refund struct {
	ID       string
	Status   string
	Amount   int64
	Currency string
}

type IntentParams struct {
	Amount         int64
	Currency       string
	PaymentMethod  string
	ReturnURL      string
	IdempotencyKey string
	Metadata       map[string]string
}

type RefundParams struct {
	PaymentIntentID string
	Amount          *int64 // nil refunds the full captured amount
}

// IntentAPI is the slice of the provider SDK the gateway uses.
type IntentAPI interface {
	CreateIntent(ctx context.Context, p IntentParams) (*Intent, error)
	GetIntent(ctx context.Context, id string) (*Intent, error)
	CreateRefund(ctx context.Context, p RefundParams) (*Refund, error)
}

// APIError is a provider-side rejection. Intent is set when the provider attached the failed attempt.
type APIError struct {
	Type       string
	Code       string
	Message    string
	HTTPStatus int
	Intent     *Intent
}

func (e *APIError) Error() string {
	return fmt.Sprintf("payment provider: %s (%s/%s, http %d)", e.Message, e.Type, e.Code, e.HTTPStatus)
}

// CardError reports a decline as opposed to a provider fault.
func (e *APIError) CardError() bool { return e.Type == "card_error" }
