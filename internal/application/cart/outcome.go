package cart

import (
	domcart "github.com/henoc97/ecommerce-backend-sub001/internal/domain/cart"
)

// Outcome is the closed set of results a cart mutation can end with.
type Outcome string

const (
	OutcomeSuccess           Outcome = "success"
	OutcomeNotFound          Outcome = "not_found"
	OutcomeInsufficientStock Outcome = "insufficient_stock"
	OutcomeConflict          Outcome = "conflict"
)

// MutationResult is returned by every cart mutation.
// Item and Cart are set only on success; Item is nil after a removal.
type MutationResult struct {
	Outcome Outcome
	Item    *domcart.Item
	Cart    *domcart.Cart
}

func rejected(o Outcome) *MutationResult {
	return &MutationResult{Outcome: o}
}

func statusFor(o Outcome) string {
	switch o {
	case OutcomeNotFound:
		return "NOT_FOUND"
	case OutcomeInsufficientStock:
		return "INSUFFICIENT_STOCK"
	case OutcomeConflict:
		return "CONFLICT"
	default:
		return "OK"
	}
}
