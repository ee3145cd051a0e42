package cart

import (
	"context"
	"errors"

	"github.com/henoc97/ecommerce-backend-sub001/internal/application"
	domcart "github.com/henoc97/ecommerce-backend-sub001/internal/domain/cart"
	"github.com/henoc97/ecommerce-backend-sub001/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const useCaseRemoveItem = "cart.remove_item"

type RemoveItemInput struct {
	ItemID int64
}

// RemoveItemUseCase deletes a line item and recomputes the totals of the cart it belonged to.
type RemoveItemUseCase struct {
	engine
}

func NewRemoveItemUseCase(deps Dependencies, tel observability.Observability) *RemoveItemUseCase {
	return &RemoveItemUseCase{engine: newEngine(deps, tel)}
}

func (uc *RemoveItemUseCase) Execute(ctx context.Context, cmd RemoveItemInput) (_ *MutationResult, err error) {
	ctx, exec := uc.inst.Begin(ctx, useCaseRemoveItem, "RemoveItem",
		[]attribute.KeyValue{attribute.Int64("cart_item.id", cmd.ItemID)},
		observability.F("item_id", cmd.ItemID),
	)
	defer func() { exec.End(err) }()

	item, err := uc.Items.FindItemByID(ctx, cmd.ItemID)
	if errors.Is(err, domcart.ErrItemNotFound) {
		return uc.reject(exec, OutcomeNotFound), nil
	}
	if err != nil {
		exec.Set(application.OutcomeLabelError, "ITEM_LOOKUP_FAILED")
		return nil, wrapRepositoryError(err)
	}

	unlock, err := uc.lockCart(ctx, item.CartID)
	if err != nil {
		exec.Set(application.OutcomeLabelError, "LOCK_FAILED")
		return nil, err
	}
	defer unlock()

	exec.AddField("cart_id", item.CartID)

	var c *domcart.Cart
	err = uc.withinTx(ctx, func(ctx context.Context) error {
		if err := uc.Items.DeleteItem(ctx, item.ID); err != nil {
			if errors.Is(err, domcart.ErrItemNotFound) {
				return errRejected
			}
			exec.Set(application.OutcomeLabelError, "ITEM_DELETE_FAILED")
			return wrapRepositoryError(err)
		}

		var err error
		c, err = uc.recomputeTotals(ctx, item.CartID)
		if err != nil {
			exec.Set(application.OutcomeLabelError, "RECOMPUTE_FAILED")
			return err
		}
		return nil
	})
	if errors.Is(err, errRejected) {
		return uc.reject(exec, OutcomeNotFound), nil
	}
	if err != nil {
		return nil, err
	}
	uc.publishRecomputed(ctx, exec, c)

	return &MutationResult{Outcome: OutcomeSuccess, Cart: c}, nil
}
