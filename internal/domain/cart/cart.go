package cart

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrCartNotFound    = errors.New("cart: cart not found")
	ErrItemNotFound    = errors.New("cart: item not found")
	ErrVariantNotFound = errors.New("cart: product variant not found")
	ErrInvalidQuantity = errors.New("cart: quantity must be at least one")
	// ErrIntegrity marks storage inconsistencies, such as an item whose variant no longer exists.
	ErrIntegrity = errors.New("cart: data integrity violation")
	ErrCacheMiss = errors.New("cart: cache miss")
	// ErrDuplicateItem is returned by stores that enforce one item per variant and cart.
	ErrDuplicateItem = errors.New("cart: variant already in cart")
)

// Cart carries totals derived from its items. They are only ever written by a recomputation.
type Cart struct {
	ID            int64
	TotalPrice    decimal.Decimal
	TotalQuantity int
	UpdatedAt     time.Time
}

type Item struct {
	ID        int64
	CartID    int64
	VariantID int64
	Quantity  int
}

// Variant is a purchasable SKU. Read-only from the cart's point of view.
type Variant struct {
	ID    int64
	Stock int
	Price decimal.Decimal
}

func (v *Variant) HasStock(quantity int) bool {
	return v.Stock >= quantity
}

func ValidateQuantity(quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	return nil
}

// Line is one item priced at its variant's current price.
type Line struct {
	Quantity  int
	UnitPrice decimal.Decimal
}

type Totals struct {
	Quantity int
	Price    decimal.Decimal
}

// ComputeTotals sums quantities and quantity × unit price over lines.
func ComputeTotals(lines []Line) Totals {
	t := Totals{Price: decimal.Zero}
	for _, l := range lines {
		t.Quantity += l.Quantity
		t.Price = t.Price.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return t
}
