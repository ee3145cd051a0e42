package cart

import (
	"strconv"
	"time"
)

// CartTotalsRecomputedEvent is emitted after a cart's totals were rewritten.
type CartTotalsRecomputedEvent struct {
	CartID        int64     `json:"cart_id"`
	TotalQuantity int       `json:"total_quantity"`
	TotalPrice    string    `json:"total_price"`
	OccurredAt    time.Time `json:"occurred_at"`
}

func (CartTotalsRecomputedEvent) EventName() string { return "cart.totals_recomputed" }

func (e CartTotalsRecomputedEvent) PartitionKey() string { return strconv.FormatInt(e.CartID, 10) }

func NewCartTotalsRecomputedEvent(c *Cart) CartTotalsRecomputedEvent {
	return CartTotalsRecomputedEvent{
		CartID:        c.ID,
		TotalQuantity: c.TotalQuantity,
		TotalPrice:    c.TotalPrice.String(),
		OccurredAt:    time.Now().UTC(),
	}
}
