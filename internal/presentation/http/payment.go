package httppresentation

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	appcheckout "github.com/henoc97/ecommerce-backend-sub001/internal/application/checkout"
	apppayment "github.com/henoc97/ecommerce-backend-sub001/internal/application/payment"
	dompayment "github.com/henoc97/ecommerce-backend-sub001/internal/domain/payment"
)

type processPaymentRequest struct {
	Amount    decimal.Decimal   `json:"amount"`
	Currency  string            `json:"currency"`
	Method    string            `json:"method"`
	CardToken string            `json:"card_token"`
	Metadata  map[string]string `json:"metadata"`
}

type refundRequest struct {
	Amount decimal.NullDecimal `json:"amount"`
}

type checkoutRequest struct {
	Currency  string `json:"currency"`
	Method    string `json:"method"`
	CardToken string `json:"card_token"`
}

type paymentResponse struct {
	Success       bool           `json:"success"`
	ProviderID    string         `json:"provider_id,omitempty"`
	TransactionID string         `json:"transaction_id,omitempty"`
	ErrorCode     string         `json:"error_code,omitempty"`
	ErrorMessage  string         `json:"error_message,omitempty"`
	Details       map[string]any `json:"details"`
}

type checkoutResponse struct {
	CheckoutID string          `json:"checkout_id"`
	Cart       *cartResponse   `json:"cart"`
	Payment    paymentResponse `json:"payment"`
}

func toPaymentResponse(res *dompayment.Result) paymentResponse {
	return paymentResponse{
		Success:       res.Success,
		ProviderID:    res.ProviderID,
		TransactionID: res.TransactionID,
		ErrorCode:     res.ErrorCode,
		ErrorMessage:  res.ErrorMessage,
		Details:       res.Details,
	}
}

// paymentStatus maps a result to an HTTP status. Declines are the client's problem,
// provider faults are reported as a bad gateway.
func paymentStatus(res *dompayment.Result) int {
	if res.Success {
		return http.StatusOK
	}
	switch res.ErrorCode {
	case dompayment.CodeCardDeclined, dompayment.CodePaymentFailed, dompayment.CodeRequiresAction:
		return http.StatusPaymentRequired
	case dompayment.CodeProviderTimeout:
		return http.StatusGatewayTimeout
	case dompayment.CodeProviderUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func (h *Handler) handleProcessPayment(w http.ResponseWriter, r *http.Request) {
	var req processPaymentRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err)
		return
	}

	res, err := h.pay.Process.Execute(r.Context(), apppayment.ProcessPaymentInput{
		Amount:    req.Amount,
		Currency:  req.Currency,
		Method:    req.Method,
		CardToken: req.CardToken,
		Metadata:  req.Metadata,
	})
	if err != nil {
		writeDomainError(r.Context(), w, h.log, err)
		return
	}
	writeJSON(w, paymentStatus(res), toPaymentResponse(res))
}

func (h *Handler) handleRefund(w http.ResponseWriter, r *http.Request) {
	var req refundRequest
	if err := decodeJSON(r, &req, true); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err)
		return
	}

	res, err := h.pay.Refund.Execute(r.Context(), apppayment.RefundPaymentInput{
		ProviderID: strings.TrimSpace(chi.URLParam(r, "providerID")),
		Amount:     req.Amount,
	})
	if err != nil {
		writeDomainError(r.Context(), w, h.log, err)
		return
	}
	writeJSON(w, paymentStatus(res), toPaymentResponse(res))
}

func (h *Handler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	cartID, err := pathID(r, "cartID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_path", err)
		return
	}
	var req checkoutRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err)
		return
	}

	res, err := h.pay.Checkout.Execute(r.Context(), appcheckout.ChargeInput{
		CartID:         cartID,
		Currency:       req.Currency,
		Method:         req.Method,
		CardToken:      req.CardToken,
		IdempotencyKey: r.Header.Get(headerIdempotencyKey),
	})
	if err != nil {
		writeDomainError(r.Context(), w, h.log, err)
		return
	}
	writeJSON(w, paymentStatus(res.Payment), checkoutResponse{
		CheckoutID: res.CheckoutID,
		Cart:       toCartResponse(res.Cart),
		Payment:    toPaymentResponse(res.Payment),
	})
}
