package payment

import "maps"

// Stable error codes carried by failed results.
const (
	CodeRequiresAction      = "requires_action"
	CodePaymentFailed       = "payment_failed"
	CodeCardDeclined        = "card_declined"
	CodeProviderError       = "provider_error"
	CodeProviderTimeout     = "provider_timeout"
	CodeProviderUnavailable = "provider_unavailable"
)

// Keys of Result.Details.
const (
	DetailMethod         = "method" // which gateway produced the result
	DetailPaymentMethod  = "payment_method"
	DetailAmount         = "amount"
	DetailCurrency       = "currency"
	DetailTimestamp      = "timestamp"
	DetailProviderStatus = "provider_status"
	DetailNextAction     = "next_action"
	DetailClientSecret   = "client_secret"
	DetailLastError      = "last_error"
	DetailRefundScope    = "refund_scope"
	DetailCause          = "cause"
)

// Values of Details[DetailMethod].
const (
	MethodProvider   = "stripe"
	MethodSimulation = "simulation"
)

const (
	RefundScopeFull    = "full"
	RefundScopePartial = "partial"
)

// Result is the uniform outcome of a payment or refund attempt.
// A successful result always has a ProviderID; a failed one always has an ErrorCode.
type Result struct {
	Success       bool
	ProviderID    string
	TransactionID string
	ErrorCode     string
	ErrorMessage  string
	Details       map[string]any
}

func Succeeded(providerID, transactionID string, details map[string]any) *Result {
	if providerID == "" {
		return Failed(CodeProviderError, "provider reported success without an identifier", details)
	}
	return &Result{
		Success:       true,
		ProviderID:    providerID,
		TransactionID: transactionID,
		Details:       cloneDetails(details),
	}
}

func Failed(code, message string, details map[string]any) *Result {
	if code == "" {
		code = CodeProviderError
	}
	return &Result{
		Success:      false,
		ErrorCode:    code,
		ErrorMessage: message,
		Details:      cloneDetails(details),
	}
}

// Branch reports which gateway produced the result.
func (r *Result) Branch() string {
	if r == nil {
		return ""
	}
	s, _ := r.Details[DetailMethod].(string)
	return s
}

func cloneDetails(d map[string]any) map[string]any {
	if d == nil {
		return map[string]any{}
	}
	return maps.Clone(d)
}
