package checkout

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/henoc97/ecommerce-backend-sub001/internal/application"
	apppayment "github.com/henoc97/ecommerce-backend-sub001/internal/application/payment"
	domcart "github.com/henoc97/ecommerce-backend-sub001/internal/domain/cart"
	dompayment "github.com/henoc97/ecommerce-backend-sub001/internal/domain/payment"
	"github.com/henoc97/ecommerce-backend-sub001/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const (
	checkoutService = "checkout-service"
	useCaseCheckout = "checkout.charge"
)

// maxIdempotencyKeyLen is the longest key the provider accepts.
const maxIdempotencyKeyLen = 255

var ErrEmptyCart = errors.New("checkout: cart is empty")

type IDGenerator interface {
	NewID() string
}

type CartReader interface {
	FindCartByID(ctx context.Context, id int64) (*domcart.Cart, error)
}

type ChargeInput struct {
	CartID    int64
	Currency  string // falls back to the configured default
	Method    string
	CardToken string
	// IdempotencyKey is the client's key for this checkout attempt. Retries that reuse it are
	// recognized by the provider and cannot charge twice. A fresh id is generated when empty.
	IdempotencyKey string
}

type ChargeResult struct {
	CheckoutID string
	Cart       *domcart.Cart
	Payment    *dompayment.Result
}

// ChargeCartUseCase charges a cart's current total. It reads the totals the cart engine maintains
// and never mutates the cart itself.
type ChargeCartUseCase struct {
	carts           CartReader
	pay             application.UseCase[apppayment.ProcessPaymentInput, *dompayment.Result]
	ids             IDGenerator
	defaultCurrency string
	inst            *application.Instrumentation
}

func NewChargeCartUseCase(
	carts CartReader,
	pay application.UseCase[apppayment.ProcessPaymentInput, *dompayment.Result],
	ids IDGenerator,
	defaultCurrency string,
	tel observability.Observability,
) *ChargeCartUseCase {
	return &ChargeCartUseCase{
		carts:           carts,
		pay:             pay,
		ids:             ids,
		defaultCurrency: defaultCurrency,
		inst:            application.NewInstrumentation(checkoutService, tel),
	}
}

func (uc *ChargeCartUseCase) Execute(ctx context.Context, cmd ChargeInput) (_ *ChargeResult, err error) {
	checkoutID := strings.TrimSpace(cmd.IdempotencyKey)
	if checkoutID == "" {
		checkoutID = uc.ids.NewID()
	}
	ctx, exec := uc.inst.Begin(ctx, useCaseCheckout, "ChargeCart",
		[]attribute.KeyValue{
			attribute.Int64("cart.id", cmd.CartID),
			attribute.String("checkout.id", checkoutID),
		},
		observability.F("cart_id", cmd.CartID),
		observability.F("checkout_id", checkoutID),
	)
	defer func() { exec.End(err) }()

	if len(checkoutID) > maxIdempotencyKeyLen {
		exec.Set(application.OutcomeLabelRejected, "VALIDATION_FAILED")
		return nil, &dompayment.ValidationError{Field: "idempotency_key", Reason: "must be at most 255 characters"}
	}

	c, err := uc.carts.FindCartByID(ctx, cmd.CartID)
	if errors.Is(err, domcart.ErrCartNotFound) {
		exec.Set(application.OutcomeLabelRejected, "NOT_FOUND")
		return nil, err
	}
	if err != nil {
		exec.Set(application.OutcomeLabelError, "CART_LOOKUP_FAILED")
		return nil, fmt.Errorf("checkout: load cart %d: %w", cmd.CartID, err)
	}
	if c.TotalQuantity == 0 || !c.TotalPrice.IsPositive() {
		exec.Set(application.OutcomeLabelRejected, "CART_EMPTY")
		return nil, ErrEmptyCart
	}

	currency := cmd.Currency
	if currency == "" {
		currency = uc.defaultCurrency
	}
	exec.AddField("amount", c.TotalPrice.String())

	res, err := uc.pay.Execute(ctx, apppayment.ProcessPaymentInput{
		Amount:    c.TotalPrice,
		Currency:  currency,
		Method:    cmd.Method,
		CardToken: cmd.CardToken,
		Metadata: map[string]string{
			"cart_id":                         strconv.FormatInt(c.ID, 10),
			"checkout_id":                     checkoutID,
			dompayment.MetadataIdempotencyKey: checkoutID,
		},
	})
	if err != nil {
		exec.Set(application.OutcomeLabelRejected, "VALIDATION_FAILED")
		return nil, err
	}
	if !res.Success {
		exec.Set(application.OutcomeLabelRejected, "PAYMENT_NOT_COMPLETED")
		exec.AddField("error_code", res.ErrorCode)
	}
	return &ChargeResult{CheckoutID: checkoutID, Cart: c, Payment: res}, nil
}
