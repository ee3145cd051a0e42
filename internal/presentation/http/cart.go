package httppresentation

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	appcart "github.com/henoc97/ecommerce-backend-sub001/internal/application/cart"
	domcart "github.com/henoc97/ecommerce-backend-sub001/internal/domain/cart"
)

type addItemRequest struct {
	VariantID int64 `json:"variant_id"`
	Quantity  int   `json:"quantity"`
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

type cartResponse struct {
	ID            int64           `json:"id"`
	TotalQuantity int             `json:"total_quantity"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type itemResponse struct {
	ID        int64 `json:"id"`
	CartID    int64 `json:"cart_id"`
	VariantID int64 `json:"variant_id"`
	Quantity  int   `json:"quantity"`
}

type mutationResponse struct {
	Outcome appcart.Outcome `json:"outcome"`
	Item    *itemResponse   `json:"item,omitempty"`
	Cart    *cartResponse   `json:"cart,omitempty"`
}

type cartSnapshotResponse struct {
	cartResponse
	Items []itemResponse `json:"items"`
}

func toCartResponse(c *domcart.Cart) *cartResponse {
	if c == nil {
		return nil
	}
	return &cartResponse{
		ID:            c.ID,
		TotalQuantity: c.TotalQuantity,
		TotalPrice:    c.TotalPrice,
		UpdatedAt:     c.UpdatedAt,
	}
}

func toItemResponse(it *domcart.Item) *itemResponse {
	if it == nil {
		return nil
	}
	return &itemResponse{ID: it.ID, CartID: it.CartID, VariantID: it.VariantID, Quantity: it.Quantity}
}

func (h *Handler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	cartID, err := pathID(r, "cartID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_path", err)
		return
	}
	var req addItemRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err)
		return
	}

	res, err := h.cart.AddItem.Execute(r.Context(), appcart.AddItemInput{
		CartID:    cartID,
		VariantID: req.VariantID,
		Quantity:  req.Quantity,
	})
	if err != nil {
		writeDomainError(r.Context(), w, h.log, err)
		return
	}
	writeMutation(w, http.StatusCreated, res)
}

func (h *Handler) handleUpdateQuantity(w http.ResponseWriter, r *http.Request) {
	itemID, err := pathID(r, "itemID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_path", err)
		return
	}
	var req updateQuantityRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err)
		return
	}

	res, err := h.cart.UpdateQuantity.Execute(r.Context(), appcart.UpdateItemQuantityInput{
		ItemID:   itemID,
		Quantity: req.Quantity,
	})
	if err != nil {
		writeDomainError(r.Context(), w, h.log, err)
		return
	}
	writeMutation(w, http.StatusOK, res)
}

func (h *Handler) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := pathID(r, "itemID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_path", err)
		return
	}

	res, err := h.cart.RemoveItem.Execute(r.Context(), appcart.RemoveItemInput{ItemID: itemID})
	if err != nil {
		writeDomainError(r.Context(), w, h.log, err)
		return
	}
	writeMutation(w, http.StatusOK, res)
}

func (h *Handler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	cartID, err := pathID(r, "cartID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_path", err)
		return
	}

	snap, err := h.cart.GetCart.Execute(r.Context(), appcart.GetCartInput{CartID: cartID})
	if err != nil {
		writeDomainError(r.Context(), w, h.log, err)
		return
	}
	resp := cartSnapshotResponse{
		cartResponse: *toCartResponse(&snap.Cart),
		Items:        make([]itemResponse, 0, len(snap.Items)),
	}
	for i := range snap.Items {
		resp.Items = append(resp.Items, *toItemResponse(&snap.Items[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

// writeMutation maps a cart outcome to its status. okStatus is used on success.
func writeMutation(w http.ResponseWriter, okStatus int, res *appcart.MutationResult) {
	switch res.Outcome {
	case appcart.OutcomeSuccess:
		writeJSON(w, okStatus, mutationResponse{
			Outcome: res.Outcome,
			Item:    toItemResponse(res.Item),
			Cart:    toCartResponse(res.Cart),
		})
	case appcart.OutcomeNotFound:
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "cart, item or variant not found", Outcome: string(res.Outcome)})
	case appcart.OutcomeConflict:
		writeJSON(w, http.StatusConflict, errorResponse{Error: "variant already in cart", Outcome: string(res.Outcome)})
	case appcart.OutcomeInsufficientStock:
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "not enough stock", Outcome: string(res.Outcome)})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "unknown outcome", Outcome: string(res.Outcome)})
	}
}
