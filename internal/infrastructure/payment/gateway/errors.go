package gateway

import (
	"context"
	"errors"
	"fmt"

	dompayment "github.com/henoc97/ecommerce-backend-sub001/internal/domain/payment"
	"github.com/sony/gobreaker/v2"
)

// handleError turns anything the provider call produced into a failed result. It never returns nil.
func handleError(err error, details map[string]any) *dompayment.Result {
	if details == nil {
		details = map[string]any{}
	}
	details[dompayment.DetailCause] = err.Error()

	var apiErr *APIError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return dompayment.Failed(dompayment.CodeProviderTimeout, "payment provider did not respond in time", details)
	case errors.Is(err, context.Canceled):
		return dompayment.Failed(dompayment.CodeProviderError, "payment request was canceled", details)
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return dompayment.Failed(dompayment.CodeProviderUnavailable, "payment provider is temporarily unavailable", details)
	case errors.As(err, &apiErr):
		if apiErr.Code != "" {
			details[dompayment.DetailLastError] = apiErr.Code
		}
		if apiErr.CardError() {
			return dompayment.Failed(dompayment.CodeCardDeclined, apiErr.Message, details)
		}
		return dompayment.Failed(dompayment.CodeProviderError, apiErr.Message, details)
	default:
		return dompayment.Failed(dompayment.CodeProviderError, "payment provider call failed", details)
	}
}

// panicError wraps a value recovered from a provider call.
type panicError struct{ v any }

func (p panicError) Error() string { return fmt.Sprintf("payment provider panic: %v", p.v) }
