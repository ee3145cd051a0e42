package cart

import (
	"context"
	"errors"

	"github.com/henoc97/ecommerce-backend-sub001/internal/application"
	domcart "github.com/henoc97/ecommerce-backend-sub001/internal/domain/cart"
	"github.com/henoc97/ecommerce-backend-sub001/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const useCaseAddItem = "cart.add_item"

type AddItemInput struct {
	CartID    int64
	VariantID int64
	Quantity  int
}

// AddItemUseCase inserts a new line item. A variant already in the cart is a conflict, never a merge.
type AddItemUseCase struct {
	engine
}

func NewAddItemUseCase(deps Dependencies, tel observability.Observability) *AddItemUseCase {
	return &AddItemUseCase{engine: newEngine(deps, tel)}
}

func (uc *AddItemUseCase) Execute(ctx context.Context, cmd AddItemInput) (_ *MutationResult, err error) {
	ctx, exec := uc.inst.Begin(ctx, useCaseAddItem, "AddItem",
		[]attribute.KeyValue{
			attribute.Int64("cart.id", cmd.CartID),
			attribute.Int64("variant.id", cmd.VariantID),
			attribute.Int("cart_item.quantity", cmd.Quantity),
		},
		observability.F("cart_id", cmd.CartID),
		observability.F("variant_id", cmd.VariantID),
		observability.F("quantity", cmd.Quantity),
	)
	defer func() { exec.End(err) }()

	if err = domcart.ValidateQuantity(cmd.Quantity); err != nil {
		exec.Set(application.OutcomeLabelError, "QUANTITY_INVALID")
		return nil, err
	}

	unlock, err := uc.lockCart(ctx, cmd.CartID)
	if err != nil {
		exec.Set(application.OutcomeLabelError, "LOCK_FAILED")
		return nil, err
	}
	defer unlock()

	if _, err = uc.Carts.FindCartByID(ctx, cmd.CartID); err != nil {
		if errors.Is(err, domcart.ErrCartNotFound) {
			return uc.reject(exec, OutcomeNotFound), nil
		}
		exec.Set(application.OutcomeLabelError, "CART_LOOKUP_FAILED")
		return nil, wrapRepositoryError(err)
	}

	// the variant comes from the caller here, so its absence is an ordinary not-found
	variant, err := uc.Variants.FindVariantByID(ctx, cmd.VariantID)
	if errors.Is(err, domcart.ErrVariantNotFound) {
		return uc.reject(exec, OutcomeNotFound), nil
	}
	if err != nil {
		exec.Set(application.OutcomeLabelError, "VARIANT_LOOKUP_FAILED")
		return nil, wrapRepositoryError(err)
	}
	if !variant.HasStock(cmd.Quantity) {
		exec.AddField("stock", variant.Stock)
		return uc.reject(exec, OutcomeInsufficientStock), nil
	}

	_, err = uc.Items.FindItemByVariant(ctx, cmd.CartID, cmd.VariantID)
	switch {
	case err == nil:
		return uc.reject(exec, OutcomeConflict), nil
	case errors.Is(err, domcart.ErrItemNotFound):
	default:
		exec.Set(application.OutcomeLabelError, "CONFLICT_CHECK_FAILED")
		return nil, wrapRepositoryError(err)
	}

	var (
		inserted *domcart.Item
		c        *domcart.Cart
	)
	err = uc.withinTx(ctx, func(ctx context.Context) error {
		var err error
		inserted, err = uc.Items.InsertItem(ctx, domcart.Item{
			CartID:    cmd.CartID,
			VariantID: cmd.VariantID,
			Quantity:  cmd.Quantity,
		})
		if errors.Is(err, domcart.ErrDuplicateItem) {
			return errRejected
		}
		if err != nil {
			exec.Set(application.OutcomeLabelError, "ITEM_INSERT_FAILED")
			return wrapRepositoryError(err)
		}
		exec.AddField("item_id", inserted.ID)

		c, err = uc.recomputeTotals(ctx, cmd.CartID)
		if err != nil {
			exec.Set(application.OutcomeLabelError, "RECOMPUTE_FAILED")
			return err
		}
		return nil
	})
	if errors.Is(err, errRejected) {
		return uc.reject(exec, OutcomeConflict), nil
	}
	if err != nil {
		return nil, err
	}
	uc.publishRecomputed(ctx, exec, c)

	return &MutationResult{Outcome: OutcomeSuccess, Item: inserted, Cart: c}, nil
}
