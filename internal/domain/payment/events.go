package payment

import "time"

// PaymentProcessedEvent is emitted once per payment attempt that reached a gateway.
type PaymentProcessedEvent struct {
	Success    bool      `json:"success"`
	ProviderID string    `json:"provider_id"`
	ErrorCode  string    `json:"error_code"`
	Amount     string    `json:"amount"`
	Currency   string    `json:"currency"`
	Branch     string    `json:"branch"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (PaymentProcessedEvent) EventName() string { return "payment.processed" }

func (e PaymentProcessedEvent) PartitionKey() string { return e.ProviderID }

func NewPaymentProcessedEvent(req Request, res *Result) PaymentProcessedEvent {
	return PaymentProcessedEvent{
		Success:    res.Success,
		ProviderID: res.ProviderID,
		ErrorCode:  res.ErrorCode,
		Amount:     req.Amount.String(),
		Currency:   req.Currency,
		Branch:     res.Branch(),
		OccurredAt: time.Now().UTC(),
	}
}

// PaymentRefundedEvent is emitted once per refund attempt that reached a gateway.
type PaymentRefundedEvent struct {
	Success    bool      `json:"success"`
	PaymentID  string    `json:"payment_id"`
	RefundID   string    `json:"refund_id"`
	ErrorCode  string    `json:"error_code"`
	Amount     string    `json:"amount"` // empty for a full refund
	Branch     string    `json:"branch"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (PaymentRefundedEvent) EventName() string { return "payment.refunded" }

func (e PaymentRefundedEvent) PartitionKey() string { return e.PaymentID }

func NewPaymentRefundedEvent(paymentID, amount string, res *Result) PaymentRefundedEvent {
	return PaymentRefundedEvent{
		Success:    res.Success,
		PaymentID:  paymentID,
		RefundID:   res.ProviderID,
		ErrorCode:  res.ErrorCode,
		Amount:     amount,
		Branch:     res.Branch(),
		OccurredAt: time.Now().UTC(),
	}
}
