package cart

import "context"

// ItemStore persists cart line items. Lookups return ErrItemNotFound when nothing matches.
type ItemStore interface {
	FindItemByID(ctx context.Context, id int64) (*Item, error)
	FindItemByVariant(ctx context.Context, cartID, variantID int64) (*Item, error)
	ListItemsByCart(ctx context.Context, cartID int64) ([]Item, error)
	InsertItem(ctx context.Context, item Item) (*Item, error)
	UpdateItemQuantity(ctx context.Context, id int64, quantity int) error
	DeleteItem(ctx context.Context, id int64) error
}

// VariantLookup reads variant stock and price. Returns ErrVariantNotFound when absent.
type VariantLookup interface {
	FindVariantByID(ctx context.Context, id int64) (*Variant, error)
}

// AggregateStore persists the derived cart totals. Returns ErrCartNotFound when absent.
type AggregateStore interface {
	FindCartByID(ctx context.Context, id int64) (*Cart, error)
	// UpdateTotals writes both totals in one step.
	UpdateTotals(ctx context.Context, cartID int64, totals Totals) (*Cart, error)
}

// Transactor runs fn as one unit of work: either every store write made through fn's
// context is kept, or none is. fn's error is returned unchanged.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Locker provides a per-cart exclusive section.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// Snapshot is a cart read together with its items.
type Snapshot struct {
	Cart  Cart
	Items []Item
}

// Cache holds read snapshots keyed by cart id. Get returns ErrCacheMiss when nothing is cached.
type Cache interface {
	Get(ctx context.Context, cartID int64) (*Snapshot, error)
	Set(ctx context.Context, snap *Snapshot) error
	Invalidate(ctx context.Context, cartID int64) error
}
