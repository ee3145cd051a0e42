package cart

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/henoc97/ecommerce-backend-sub001/internal/application"
	domcart "github.com/henoc97/ecommerce-backend-sub001/internal/domain/cart"
	domoutbox "github.com/henoc97/ecommerce-backend-sub001/internal/domain/outbox"
	"github.com/henoc97/ecommerce-backend-sub001/internal/observability"
)

const (
	cartService = "cart-service"
	lockPrefix  = "cart:"
)

var ErrRepository = errors.New("cart: repository failure")

// errRejected unwinds a unit of work whose outcome is a business rejection.
var errRejected = errors.New("cart: mutation rejected")

// Dependencies are the collaborators shared by every cart use case.
type Dependencies struct {
	Items     domcart.ItemStore
	Variants  domcart.VariantLookup
	Carts     domcart.AggregateStore
	Locker    domcart.Locker
	Publisher domoutbox.Publisher
	// Tx, when set, makes an item write and the totals it implies commit together.
	Tx        domcart.Transactor
}

// engine holds the steps shared by the mutations: locking, totals recomputation and event publishing.
type engine struct {
	Dependencies
	inst     *application.Instrumentation
	lockWait observability.Histogram // cart_lock_wait_seconds{outcome}
}

func newEngine(deps Dependencies, tel observability.Observability) engine {
	if tel == nil {
		tel = observability.Nop()
	}
	return engine{
		Dependencies: deps,
		inst:         application.NewInstrumentation(cartService, tel),
		lockWait:     tel.Metrics().Histogram(observability.MCartLockWait),
	}
}

// lockCart enters the cart's exclusive section. The returned func must be called exactly once.
func (e engine) lockCart(ctx context.Context, cartID int64) (func(), error) {
	if e.Locker == nil {
		return func() {}, nil
	}
	start := time.Now()
	unlock, err := e.Locker.Lock(ctx, lockPrefix+strconv.FormatInt(cartID, 10))
	outcome := application.OutcomeLabelSuccess
	if err != nil {
		outcome = application.OutcomeLabelError
	}
	e.lockWait.Observe(time.Since(start).Seconds(), observability.L("outcome", outcome))
	if err != nil {
		return nil, fmt.Errorf("cart: lock cart %d: %w", cartID, err)
	}
	return unlock, nil
}

// withinTx runs fn as one unit of work when a Transactor is configured.
// fn's own error wins over a failure to begin or commit.
func (e engine) withinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if e.Tx == nil {
		return fn(ctx)
	}
	var fnErr error
	err := e.Tx.WithinTx(ctx, func(ctx context.Context) error {
		fnErr = fn(ctx)
		return fnErr
	})
	if fnErr != nil {
		return fnErr
	}
	return wrapRepositoryError(err)
}

// recomputeTotals rewrites the cart's totals from its current items and variant prices.
func (e engine) recomputeTotals(ctx context.Context, cartID int64) (*domcart.Cart, error) {
	items, err := e.Items.ListItemsByCart(ctx, cartID)
	if err != nil {
		return nil, wrapRepositoryError(err)
	}

	lines := make([]domcart.Line, 0, len(items))
	variants := make(map[int64]*domcart.Variant, len(items))
	for _, it := range items {
		v, ok := variants[it.VariantID]
		if !ok {
			v, err = e.findVariantOfItem(ctx, &it)
			if err != nil {
				return nil, err
			}
			variants[it.VariantID] = v
		}
		lines = append(lines, domcart.Line{Quantity: it.Quantity, UnitPrice: v.Price})
	}

	updated, err := e.Carts.UpdateTotals(ctx, cartID, domcart.ComputeTotals(lines))
	if errors.Is(err, domcart.ErrCartNotFound) {
		return nil, fmt.Errorf("%w: items reference missing cart %d", domcart.ErrIntegrity, cartID)
	}
	if err != nil {
		return nil, wrapRepositoryError(err)
	}
	return updated, nil
}

// findVariantOfItem treats a missing variant as corruption: the item exists, so its variant must too.
func (e engine) findVariantOfItem(ctx context.Context, item *domcart.Item) (*domcart.Variant, error) {
	v, err := e.Variants.FindVariantByID(ctx, item.VariantID)
	if errors.Is(err, domcart.ErrVariantNotFound) {
		return nil, fmt.Errorf("%w: item %d references missing variant %d", domcart.ErrIntegrity, item.ID, item.VariantID)
	}
	if err != nil {
		return nil, wrapRepositoryError(err)
	}
	return v, nil
}

func (e engine) publishRecomputed(ctx context.Context, exec *application.Execution, c *domcart.Cart) {
	if err := e.inst.Publish(ctx, e.Publisher, domcart.NewCartTotalsRecomputedEvent(c)); err != nil {
		exec.AddField("event_publish_error", err.Error())
		exec.Logger().Warn("event_publish_failed",
			observability.F("event", domcart.CartTotalsRecomputedEvent{}.EventName()),
			observability.F("cart_id", c.ID),
			observability.F("error", err.Error()),
		)
	}
}

func (e engine) reject(exec *application.Execution, o Outcome) *MutationResult {
	exec.Set(application.OutcomeLabelRejected, statusFor(o))
	return rejected(o)
}

func wrapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrRepository, err)
}
