package cart

import (
	"context"
	"errors"

	"github.com/henoc97/ecommerce-backend-sub001/internal/application"
	domcart "github.com/henoc97/ecommerce-backend-sub001/internal/domain/cart"
	"github.com/henoc97/ecommerce-backend-sub001/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const useCaseUpdateQuantity = "cart.update_quantity"

type UpdateItemQuantityInput struct {
	ItemID   int64
	Quantity int
}

// UpdateItemQuantityUseCase changes a line item's quantity and brings the cart totals back in line.
type UpdateItemQuantityUseCase struct {
	engine
}

func NewUpdateItemQuantityUseCase(deps Dependencies, tel observability.Observability) *UpdateItemQuantityUseCase {
	return &UpdateItemQuantityUseCase{engine: newEngine(deps, tel)}
}

// Execute validates stock, persists the quantity, re-reads the item and recomputes its cart's totals,
// all inside the cart's exclusive section. The write and the totals commit together.
func (uc *UpdateItemQuantityUseCase) Execute(ctx context.Context, cmd UpdateItemQuantityInput) (_ *MutationResult, err error) {
	ctx, exec := uc.inst.Begin(ctx, useCaseUpdateQuantity, "UpdateItemQuantity",
		[]attribute.KeyValue{
			attribute.Int64("cart_item.id", cmd.ItemID),
			attribute.Int("cart_item.quantity", cmd.Quantity),
		},
		observability.F("item_id", cmd.ItemID),
		observability.F("quantity", cmd.Quantity),
	)
	defer func() { exec.End(err) }()

	if err = domcart.ValidateQuantity(cmd.Quantity); err != nil {
		exec.Set(application.OutcomeLabelError, "QUANTITY_INVALID")
		return nil, err
	}

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

	// the item may have been removed while we waited for the lock
	item, err = uc.Items.FindItemByID(ctx, cmd.ItemID)
	if errors.Is(err, domcart.ErrItemNotFound) {
		return uc.reject(exec, OutcomeNotFound), nil
	}
	if err != nil {
		exec.Set(application.OutcomeLabelError, "ITEM_LOOKUP_FAILED")
		return nil, wrapRepositoryError(err)
	}
	exec.AddField("cart_id", item.CartID)

	variant, err := uc.findVariantOfItem(ctx, item)
	if err != nil {
		exec.Set(application.OutcomeLabelError, "VARIANT_MISSING")
		return nil, err
	}
	if !variant.HasStock(cmd.Quantity) {
		exec.AddField("stock", variant.Stock)
		return uc.reject(exec, OutcomeInsufficientStock), nil
	}

	var (
		updated *domcart.Item
		c       *domcart.Cart
	)
	err = uc.withinTx(ctx, func(ctx context.Context) error {
		if err := uc.Items.UpdateItemQuantity(ctx, item.ID, cmd.Quantity); err != nil {
			exec.Set(application.OutcomeLabelError, "ITEM_UPDATE_FAILED")
			return wrapRepositoryError(err)
		}

		// read back the written row rather than trusting the in-memory copy
		var err error
		updated, err = uc.Items.FindItemByID(ctx, item.ID)
		if err != nil {
			exec.Set(application.OutcomeLabelError, "ITEM_RELOAD_FAILED")
			return wrapRepositoryError(err)
		}

		c, err = uc.recomputeTotals(ctx, updated.CartID)
		if err != nil {
			exec.Set(application.OutcomeLabelError, "RECOMPUTE_FAILED")
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	uc.publishRecomputed(ctx, exec, c)

	exec.Span().SetAttributes(
		attribute.Int64("cart.id", c.ID),
		attribute.Int("cart.total_quantity", c.TotalQuantity),
	)
	return &MutationResult{Outcome: OutcomeSuccess, Item: updated, Cart: c}, nil
}
