package payment

import (
	"context"
	"strings"

	"github.com/henoc97/ecommerce-backend-sub001/internal/application"
	domoutbox "github.com/henoc97/ecommerce-backend-sub001/internal/domain/outbox"
	dompayment "github.com/henoc97/ecommerce-backend-sub001/internal/domain/payment"
	"github.com/henoc97/ecommerce-backend-sub001/internal/observability"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

const (
	paymentService        = "payment-service"
	useCasePaymentProcess = "payment.process"
	useCasePaymentRefund  = "payment.refund"
)

type ProcessPaymentInput struct {
	Amount    decimal.Decimal
	Currency  string
	Method    string
	CardToken string
	Metadata  map[string]string
}

// ProcessPaymentUseCase charges through whichever gateway the composition root selected.
type ProcessPaymentUseCase struct {
	gateway   dompayment.Gateway
	publisher domoutbox.Publisher
	inst      *application.Instrumentation
	results   observability.Counter // payment_results_total{gateway,operation,code}
}

func NewProcessPaymentUseCase(gateway dompayment.Gateway, publisher domoutbox.Publisher, tel observability.Observability) *ProcessPaymentUseCase {
	return &ProcessPaymentUseCase{
		gateway:   gateway,
		publisher: publisher,
		inst:      application.NewInstrumentation(paymentService, tel),
		results:   resultCounter(tel),
	}
}

// Execute returns a *dompayment.ValidationError for malformed input. Every other outcome,
// declines and provider faults included, is reported through the Result.
func (uc *ProcessPaymentUseCase) Execute(ctx context.Context, cmd ProcessPaymentInput) (_ *dompayment.Result, err error) {
	req := dompayment.NewRequest(cmd.Amount, cmd.Currency, cmd.Method, cmd.CardToken, cmd.Metadata)

	ctx, exec := uc.inst.Begin(ctx, useCasePaymentProcess, "ProcessPayment",
		[]attribute.KeyValue{
			attribute.String("payment.amount", req.Amount.String()),
			attribute.String("payment.currency", req.Currency),
			attribute.String("payment.gateway", uc.gateway.Name()),
		},
		observability.F("amount", req.Amount.String()),
		observability.F("currency", req.Currency),
		observability.F("payment_method", req.Method),
		observability.F("gateway", uc.gateway.Name()),
	)
	defer func() { exec.End(err) }()

	if err = dompayment.ValidateRequest(req); err != nil {
		exec.Set(application.OutcomeLabelRejected, "VALIDATION_FAILED")
		return nil, err
	}

	res, err := uc.gateway.ProcessPayment(ctx, req)
	if err != nil {
		exec.Set(application.OutcomeLabelRejected, "VALIDATION_FAILED")
		return nil, err
	}
	reportResult(exec, uc.results, uc.gateway.Name(), "charge", res)

	if pubErr := uc.inst.Publish(ctx, uc.publisher, dompayment.NewPaymentProcessedEvent(req, res)); pubErr != nil {
		exec.AddField("event_publish_error", pubErr.Error())
	}
	return res, nil
}

type RefundPaymentInput struct {
	ProviderID string
	// Amount is partial when Valid; otherwise the full captured amount is refunded.
	Amount decimal.NullDecimal
}

type RefundPaymentUseCase struct {
	gateway   dompayment.Gateway
	publisher domoutbox.Publisher
	inst      *application.Instrumentation
	results   observability.Counter
}

func NewRefundPaymentUseCase(gateway dompayment.Gateway, publisher domoutbox.Publisher, tel observability.Observability) *RefundPaymentUseCase {
	return &RefundPaymentUseCase{
		gateway:   gateway,
		publisher: publisher,
		inst:      application.NewInstrumentation(paymentService, tel),
		results:   resultCounter(tel),
	}
}

func (uc *RefundPaymentUseCase) Execute(ctx context.Context, cmd RefundPaymentInput) (_ *dompayment.Result, err error) {
	amount := ""
	if cmd.Amount.Valid {
		amount = cmd.Amount.Decimal.String()
	}
	ctx, exec := uc.inst.Begin(ctx, useCasePaymentRefund, "RefundPayment",
		[]attribute.KeyValue{
			attribute.String("payment.provider_id", cmd.ProviderID),
			attribute.String("payment.gateway", uc.gateway.Name()),
		},
		observability.F("provider_id", cmd.ProviderID),
		observability.F("amount", amount),
		observability.F("gateway", uc.gateway.Name()),
	)
	defer func() { exec.End(err) }()

	if err = dompayment.ValidateRefund(cmd.ProviderID, cmd.Amount); err != nil {
		exec.Set(application.OutcomeLabelRejected, "VALIDATION_FAILED")
		return nil, err
	}

	res, err := uc.gateway.RefundPayment(ctx, cmd.ProviderID, cmd.Amount)
	if err != nil {
		exec.Set(application.OutcomeLabelRejected, "VALIDATION_FAILED")
		return nil, err
	}
	reportResult(exec, uc.results, uc.gateway.Name(), "refund", res)

	if pubErr := uc.inst.Publish(ctx, uc.publisher, dompayment.NewPaymentRefundedEvent(cmd.ProviderID, amount, res)); pubErr != nil {
		exec.AddField("event_publish_error", pubErr.Error())
	}
	return res, nil
}

func resultCounter(tel observability.Observability) observability.Counter {
	if tel == nil {
		return observability.NopCounter()
	}
	return tel.Metrics().Counter(observability.MPaymentResults)
}

// reportResult labels a declined or failed result as rejected; the call itself did not error.
func reportResult(exec *application.Execution, results observability.Counter, gateway, operation string, res *dompayment.Result) {
	code := res.ErrorCode
	if res.Success {
		code = "ok"
	}
	results.Add(1,
		observability.L("gateway", gateway),
		observability.L("operation", operation),
		observability.L("code", code),
	)
	exec.AddField("branch", res.Branch())
	exec.Span().SetAttributes(
		attribute.Bool("payment.success", res.Success),
		attribute.String("payment.branch", res.Branch()),
	)
	if res.Success {
		exec.AddField("provider_id", res.ProviderID)
		return
	}
	exec.AddField("error_code", res.ErrorCode)
	exec.Span().SetAttributes(attribute.String("payment.error_code", res.ErrorCode))
	exec.Set(application.OutcomeLabelRejected, "PAYMENT_"+strings.ToUpper(res.ErrorCode))
}
