package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	domain "github.com/henoc97/ecommerce-backend-sub001/internal/domain/cart"

	"github.com/shopspring/decimal"
)

// CartRepository keeps carts, their items and the variant catalog in one map set,
// so it can serve every cart port of the engine.
type CartRepository struct {
	mu       sync.RWMutex
	carts    map[int64]*domain.Cart
	items    map[int64]*domain.Item
	variants map[int64]*domain.Variant
	lastItem int64
	lastCart int64
	now      func() time.Time
}

func NewCartRepository() *CartRepository {
	return &CartRepository{
		carts:    make(map[int64]*domain.Cart),
		items:    make(map[int64]*domain.Item),
		variants: make(map[int64]*domain.Variant),
		now:      time.Now,
	}
}

// CreateCart adds an empty cart and returns it.
func (r *CartRepository) CreateCart(ctx context.Context) (*domain.Cart, error) {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastCart++
	c := &domain.Cart{ID: r.lastCart, TotalPrice: decimal.Zero, UpdatedAt: r.now().UTC()}
	r.carts[c.ID] = c
	return cloneCart(c), nil
}

// PutVariant inserts or replaces a catalog variant.
func (r *CartRepository) PutVariant(ctx context.Context, v domain.Variant) error {
	_ = ctx
	if v.Stock < 0 || v.Price.IsNegative() {
		return fmt.Errorf("cart repository: variant %d has negative stock or price", v.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.variants[v.ID] = &v
	return nil
}

func (r *CartRepository) FindItemByID(ctx context.Context, id int64) (*domain.Item, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	it, ok := r.items[id]
	if !ok {
		return nil, domain.ErrItemNotFound
	}
	return cloneCartItem(it), nil
}

func (r *CartRepository) FindItemByVariant(ctx context.Context, cartID, variantID int64) (*domain.Item, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, it := range r.items {
		if it.CartID == cartID && it.VariantID == variantID {
			return cloneCartItem(it), nil
		}
	}
	return nil, domain.ErrItemNotFound
}

func (r *CartRepository) ListItemsByCart(ctx context.Context, cartID int64) ([]domain.Item, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Item, 0)
	for _, it := range r.items {
		if it.CartID == cartID {
			out = append(out, *it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *CartRepository) InsertItem(ctx context.Context, item domain.Item) (*domain.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.carts[item.CartID]; !ok {
		return nil, domain.ErrCartNotFound
	}
	if _, ok := r.variants[item.VariantID]; !ok {
		return nil, domain.ErrVariantNotFound
	}
	for _, it := range r.items {
		if it.CartID == item.CartID && it.VariantID == item.VariantID {
			return nil, domain.ErrDuplicateItem
		}
	}
	r.lastItem++
	item.ID = r.lastItem
	r.items[item.ID] = &item
	r.record(ctx, func() { delete(r.items, item.ID) })
	return cloneCartItem(&item), nil
}

func (r *CartRepository) UpdateItemQuantity(ctx context.Context, id int64, quantity int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	it, ok := r.items[id]
	if !ok {
		return domain.ErrItemNotFound
	}
	prev := it.Quantity
	it.Quantity = quantity
	r.record(ctx, func() { it.Quantity = prev })
	return nil
}

func (r *CartRepository) DeleteItem(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	it, ok := r.items[id]
	if !ok {
		return domain.ErrItemNotFound
	}
	delete(r.items, id)
	r.record(ctx, func() { r.items[id] = it })
	return nil
}

func (r *CartRepository) FindVariantByID(ctx context.Context, id int64) (*domain.Variant, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.variants[id]
	if !ok {
		return nil, domain.ErrVariantNotFound
	}
	clone := *v
	return &clone, nil
}

func (r *CartRepository) FindCartByID(ctx context.Context, id int64) (*domain.Cart, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.carts[id]
	if !ok {
		return nil, domain.ErrCartNotFound
	}
	return cloneCart(c), nil
}

func (r *CartRepository) UpdateTotals(ctx context.Context, cartID int64, totals domain.Totals) (*domain.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.carts[cartID]
	if !ok {
		return nil, domain.ErrCartNotFound
	}
	prev := *c
	c.TotalQuantity = totals.Quantity
	c.TotalPrice = totals.Price
	c.UpdatedAt = r.now().UTC()
	r.record(ctx, func() { *c = prev })
	return cloneCart(c), nil
}

type txKey struct{}

// undoLog collects the inverse of every write made inside one WithinTx call.
type undoLog struct {
	repo *CartRepository
	undo []func()
}

// WithinTx runs fn and, if it fails, reverts the item and totals writes fn made.
// Writes by other callers are untouched; the engine's per-cart lock keeps them off this cart.
// A nested call joins the outer unit of work.
func (r *CartRepository) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if log, ok := ctx.Value(txKey{}).(*undoLog); ok && log.repo == r {
		return fn(ctx)
	}
	log := &undoLog{repo: r}
	err := fn(context.WithValue(ctx, txKey{}, log))
	if err != nil {
		r.mu.Lock()
		for i := len(log.undo) - 1; i >= 0; i-- {
			log.undo[i]()
		}
		r.mu.Unlock()
	}
	return err
}

// record registers an undo step. The caller holds r.mu.
func (r *CartRepository) record(ctx context.Context, undo func()) {
	if log, ok := ctx.Value(txKey{}).(*undoLog); ok && log.repo == r {
		log.undo = append(log.undo, undo)
	}
}

func cloneCart(c *domain.Cart) *domain.Cart {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

func cloneCartItem(it *domain.Item) *domain.Item {
	if it == nil {
		return nil
	}
	clone := *it
	return &clone
}
