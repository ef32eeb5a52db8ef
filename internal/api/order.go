package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/marketloop/storefront/internal/domain/order"
)

type orderItemResponse struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type orderResponse struct {
	ID        string              `json:"id"`
	UserID    string              `json:"userId"`
	Items     []orderItemResponse `json:"items"`
	CouponID  string              `json:"couponId,omitempty"`
	Discount  float64             `json:"discount"`
	Total     float64             `json:"totalPrice"`
	CreatedAt time.Time           `json:"createdAt"`
}

func toOrderResponse(o order.Order) orderResponse {
	items := make([]orderItemResponse, len(o.Items))
	for i, it := range o.Items {
		items[i] = orderItemResponse{ProductID: it.ProductID, Quantity: it.Quantity}
	}
	return orderResponse{
		ID:        o.ID,
		UserID:    o.UserID,
		Items:     items,
		CouponID:  o.CouponID,
		Discount:  o.Discount.InexactFloat64(),
		Total:     o.Total.InexactFloat64(),
		CreatedAt: o.CreatedAt,
	}
}

func toOrderResponses(orders []order.Order) []orderResponse {
	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = toOrderResponse(o)
	}
	return resp
}

// placeOrder checks out the authenticated user's cart. The request carries no
// body: the cart is always resolved server-side.
func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	usr, ok := UserFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Message: "authorization required"})
		return
	}

	o, err := h.checkout.Checkout(r.Context(), usr)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResponse(*o))
}

func (h *Handler) listUserOrders(w http.ResponseWriter, r *http.Request) {
	usr, ok := UserFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Message: "authorization required"})
		return
	}

	orders, err := h.orders.ListByUser(r.Context(), usr.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponses(orders))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	usr, ok := UserFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Message: "authorization required"})
		return
	}

	o, err := h.checkout.GetForUser(r.Context(), usr, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(*o))
}

func (h *Handler) listAllOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponses(orders))
}
