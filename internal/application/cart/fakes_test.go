package cart

import (
	"context"
	"maps"
	"sort"
	"sync"

	domcart "github.com/henoc97/ecommerce-backend-sub001/internal/domain/cart"
	domoutbox "github.com/henoc97/ecommerce-backend-sub001/internal/domain/outbox"
	"github.com/shopspring/decimal"
)

// store implements every cart port in memory and counts writes.
type store struct {
	mu       sync.Mutex
	carts    map[int64]domcart.Cart
	items    map[int64]domcart.Item
	variants map[int64]domcart.Variant
	nextID   int64
	writes   int
	failList error

	failTotals error
	commits    int
	rollbacks  int
}

func newStore() *store {
	return &store{
		carts:    map[int64]domcart.Cart{},
		items:    map[int64]domcart.Item{},
		variants: map[int64]domcart.Variant{},
		nextID:   100,
	}
}

func (s *store) cart(id int64) *store {
	s.carts[id] = domcart.Cart{ID: id, TotalPrice: decimal.Zero}
	return s
}

func (s *store) variant(id int64, stock int, price int64) *store {
	s.variants[id] = domcart.Variant{ID: id, Stock: stock, Price: decimal.NewFromInt(price)}
	return s
}

func (s *store) item(id, cartID, variantID int64, qty int) *store {
	s.items[id] = domcart.Item{ID: id, CartID: cartID, VariantID: variantID, Quantity: qty}
	return s
}

func (s *store) writeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func (s *store) FindItemByID(_ context.Context, id int64) (*domcart.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok {
		return nil, domcart.ErrItemNotFound
	}
	return &it, nil
}

func (s *store) FindItemByVariant(_ context.Context, cartID, variantID int64) (*domcart.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range s.items {
		if it.CartID == cartID && it.VariantID == variantID {
			return &it, nil
		}
	}
	return nil, domcart.ErrItemNotFound
}

func (s *store) ListItemsByCart(_ context.Context, cartID int64) ([]domcart.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failList != nil {
		return nil, s.failList
	}
	var out []domcart.Item
	for _, it := range s.items {
		if it.CartID == cartID {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *store) InsertItem(_ context.Context, item domcart.Item) (*domcart.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	item.ID = s.nextID
	s.items[item.ID] = item
	s.writes++
	return &item, nil
}

func (s *store) UpdateItemQuantity(_ context.Context, id int64, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok {
		return domcart.ErrItemNotFound
	}
	it.Quantity = quantity
	s.items[id] = it
	s.writes++
	return nil
}

func (s *store) DeleteItem(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return domcart.ErrItemNotFound
	}
	delete(s.items, id)
	s.writes++
	return nil
}

func (s *store) FindVariantByID(_ context.Context, id int64) (*domcart.Variant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.variants[id]
	if !ok {
		return nil, domcart.ErrVariantNotFound
	}
	return &v, nil
}

func (s *store) FindCartByID(_ context.Context, id int64) (*domcart.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.carts[id]
	if !ok {
		return nil, domcart.ErrCartNotFound
	}
	return &c, nil
}

func (s *store) UpdateTotals(_ context.Context, cartID int64, totals domcart.Totals) (*domcart.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failTotals != nil {
		return nil, s.failTotals
	}
	c, ok := s.carts[cartID]
	if !ok {
		return nil, domcart.ErrCartNotFound
	}
	c.TotalQuantity = totals.Quantity
	c.TotalPrice = totals.Price
	s.carts[cartID] = c
	s.writes++
	return &c, nil
}

// WithinTx restores the items and carts it saw on entry when fn fails.
func (s *store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	items, carts := maps.Clone(s.items), maps.Clone(s.carts)
	s.mu.Unlock()

	err := fn(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.items, s.carts = items, carts
		s.rollbacks++
		return err
	}
	s.commits++
	return nil
}

func (s *store) quantityOf(id int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items[id].Quantity
}

func (s *store) deps() Dependencies {
	return Dependencies{Items: s, Variants: s, Carts: s, Locker: &mutexLocker{}, Tx: s}
}

// mutexLocker serializes every key behind one mutex and counts acquisitions.
type mutexLocker struct {
	mu    sync.Mutex
	locks int
}

func (l *mutexLocker) Lock(context.Context, string) (func(), error) {
	l.mu.Lock()
	l.locks++
	return l.mu.Unlock, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domoutbox.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e domoutbox.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}
