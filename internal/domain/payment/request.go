package payment

import (
	"maps"
	"strings"

	"github.com/shopspring/decimal"
)

// Request describes a single payment attempt. Build it with NewRequest and do not mutate it afterwards.
type Request struct {
	Amount    decimal.Decimal
	Currency  string
	Method    string
	CardToken string
	Metadata  map[string]string
}

func NewRequest(amount decimal.Decimal, currency, method, cardToken string, metadata map[string]string) Request {
	return Request{
		Amount:    amount,
		Currency:  strings.ToLower(strings.TrimSpace(currency)),
		Method:    strings.TrimSpace(method),
		CardToken: strings.TrimSpace(cardToken),
		Metadata:  maps.Clone(metadata),
	}
}

// ValidateRequest checks the preconditions of a payment attempt. It performs no I/O.
func ValidateRequest(req Request) error {
	if !req.Amount.IsPositive() {
		return &ValidationError{Field: "amount", Reason: "must be greater than zero"}
	}
	if req.Currency == "" {
		return &ValidationError{Field: "currency", Reason: "is required"}
	}
	if len(req.Currency) != 3 || strings.Trim(req.Currency, "abcdefghijklmnopqrstuvwxyz") != "" {
		return &ValidationError{Field: "currency", Reason: "must be a three letter ISO 4217 code"}
	}
	if req.Method == "" {
		return &ValidationError{Field: "method", Reason: "is required"}
	}
	if _, err := ToMinorUnits(req.Amount, req.Currency); err != nil {
		return err
	}
	return nil
}

// ValidateRefund checks a refund target and, when present, the partial amount.
// Two decimals is the bound across every supported currency. The payment's own
// currency is checked by ToMinorUnits once the gateway knows it.
func ValidateRefund(providerID string, amount decimal.NullDecimal) error {
	if strings.TrimSpace(providerID) == "" {
		return &ValidationError{Field: "provider_id", Reason: "is required"}
	}
	if amount.Valid && !amount.Decimal.IsPositive() {
		return &ValidationError{Field: "amount", Reason: "must be greater than zero when set"}
	}
	if amount.Valid {
		if cents := amount.Decimal.Shift(2); !cents.Equal(cents.Truncate(0)) {
			return &ValidationError{Field: "amount", Reason: "refunds allow at most two decimal places"}
		}
	}
	return nil
}

// MetadataIdempotencyKey, when present in Request.Metadata, is forwarded to the provider so a
// replayed attempt cannot charge twice.
const MetadataIdempotencyKey = "idempotency_key"
