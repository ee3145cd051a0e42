package cart

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/henoc97/ecommerce-backend-sub001/internal/application"
	domcart "github.com/henoc97/ecommerce-backend-sub001/internal/domain/cart"
	"github.com/henoc97/ecommerce-backend-sub001/internal/observability"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"
)

const (
	useCaseGetCart = "cart.get"
	cachePeer      = "cart_cache"

	// sharedLoadTimeout bounds a load that no longer follows any caller's cancellation.
	sharedLoadTimeout = 5 * time.Second
)

type GetCartInput struct {
	CartID int64
}

// GetCartUseCase reads a cart with its items. Concurrent reads of the same cart share one load.
type GetCartUseCase struct {
	items ItemLister
	carts domcart.AggregateStore
	cache domcart.Cache
	inst  *application.Instrumentation
	log   observability.Logger
	group singleflight.Group
}

// ItemLister is the read side of domcart.ItemStore.
type ItemLister interface {
	ListItemsByCart(ctx context.Context, cartID int64) ([]domcart.Item, error)
}

// NewGetCartUseCase builds the read use case. cache may be nil.
func NewGetCartUseCase(items ItemLister, carts domcart.AggregateStore, cache domcart.Cache, tel observability.Observability) *GetCartUseCase {
	if tel == nil {
		tel = observability.Nop()
	}
	return &GetCartUseCase{
		items: items,
		carts: carts,
		cache: cache,
		inst:  application.NewInstrumentation(cartService, tel),
		log:   tel.Logger().With(observability.F("component", "cart_loader")),
	}
}

func (uc *GetCartUseCase) Execute(ctx context.Context, cmd GetCartInput) (_ *domcart.Snapshot, err error) {
	ctx, exec := uc.inst.Begin(ctx, useCaseGetCart, "GetCart",
		[]attribute.KeyValue{attribute.Int64("cart.id", cmd.CartID)},
		observability.F("cart_id", cmd.CartID),
	)
	defer func() { exec.End(err) }()

	if snap, ok := uc.fromCache(ctx, exec, cmd.CartID); ok {
		exec.AddField("cache", "hit")
		return snap, nil
	}

	// the shared load outlives any single caller; each caller still waits on its own ctx
	ch := uc.group.DoChan(strconv.FormatInt(cmd.CartID, 10), func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedLoadTimeout)
		defer cancel()
		return uc.load(loadCtx, cmd.CartID)
	})
	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		exec.Set(application.OutcomeLabelError, "CANCELED")
		return nil, ctx.Err()
	}
	v, err, shared := res.Val, res.Err, res.Shared
	exec.AddField("shared", shared)
	if errors.Is(err, domcart.ErrCartNotFound) {
		exec.Set(application.OutcomeLabelRejected, "NOT_FOUND")
		return nil, err
	}
	if err != nil {
		exec.Set(application.OutcomeLabelError, "CART_LOAD_FAILED")
		return nil, err
	}
	return v.(*domcart.Snapshot), nil
}

func (uc *GetCartUseCase) fromCache(ctx context.Context, exec *application.Execution, cartID int64) (*domcart.Snapshot, bool) {
	if uc.cache == nil {
		return nil, false
	}
	start := time.Now()
	snap, err := uc.cache.Get(ctx, cartID)
	switch {
	case err == nil:
		uc.inst.ObserveExternal(cachePeer, "get", "hit", start)
		return snap, true
	case errors.Is(err, domcart.ErrCacheMiss):
		uc.inst.ObserveExternal(cachePeer, "get", "miss", start)
	default:
		uc.inst.ObserveExternal(cachePeer, "get", application.OutcomeLabelError, start)
		exec.Logger().Warn("cart_cache_get_failed", observability.F("error", err.Error()))
	}
	return nil, false
}

func (uc *GetCartUseCase) load(ctx context.Context, cartID int64) (*domcart.Snapshot, error) {
	c, err := uc.carts.FindCartByID(ctx, cartID)
	if errors.Is(err, domcart.ErrCartNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, wrapRepositoryError(err)
	}
	items, err := uc.items.ListItemsByCart(ctx, cartID)
	if err != nil {
		return nil, wrapRepositoryError(err)
	}
	snap := &domcart.Snapshot{Cart: *c, Items: items}

	if uc.cache != nil {
		start := time.Now()
		if err := uc.cache.Set(ctx, snap); err != nil {
			uc.inst.ObserveExternal(cachePeer, "set", application.OutcomeLabelError, start)
			uc.log.Warn("cart_cache_set_failed",
				observability.F("cart_id", cartID),
				observability.F("error", err.Error()),
			)
		} else {
			uc.inst.ObserveExternal(cachePeer, "set", application.OutcomeLabelSuccess, start)
		}
	}
	return snap, nil
}
