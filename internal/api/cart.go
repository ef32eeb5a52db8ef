package api

import (
	"net/http"

	"github.com/marketloop/storefront/internal/domain/cart"
	"github.com/marketloop/storefront/internal/domain/coupon"
)

type cartItemResponse struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
}

type cartResponse struct {
	ID       string             `json:"id"`
	Items    []cartItemResponse `json:"items"`
	CouponID string             `json:"couponId,omitempty"`
	Subtotal float64            `json:"subtotal"`
}

func toCartResponse(v *cart.View) cartResponse {
	items := make([]cartItemResponse, len(v.Items))
	for i, ri := range v.Items {
		items[i] = cartItemResponse{
			ProductID: ri.Product.ID,
			Name:      ri.Product.Name,
			Price:     ri.Product.Price.InexactFloat64(),
			Quantity:  ri.Quantity,
		}
	}
	return cartResponse{
		ID:       v.Cart.ID,
		Items:    items,
		CouponID: v.Cart.CouponID,
		Subtotal: v.Subtotal.InexactFloat64(),
	}
}

type quoteResponse struct {
	TotalDiscount float64 `json:"totalDiscount"`
	TotalPrice    float64 `json:"totalPrice"`
}

func toQuoteResponse(q coupon.Quote) quoteResponse {
	return quoteResponse{
		TotalDiscount: q.Discount.InexactFloat64(),
		TotalPrice:    q.Total().InexactFloat64(),
	}
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	usr, ok := UserFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Message: "authorization required"})
		return
	}

	view, err := h.carts.Get(r.Context(), usr)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(view))
}

type addProductRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

func (h *Handler) addCartProduct(w http.ResponseWriter, r *http.Request) {
	usr, ok := UserFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Message: "authorization required"})
		return
	}

	var req addProductRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ProductID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "productId is required"})
		return
	}

	view, err := h.carts.AddProduct(r.Context(), usr, req.ProductID, req.Quantity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(view))
}

type removeProductRequest struct {
	ProductID string `json:"productId"`
}

func (h *Handler) removeCartProduct(w http.ResponseWriter, r *http.Request) {
	usr, ok := UserFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Message: "authorization required"})
		return
	}

	var req removeProductRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ProductID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "productId is required"})
		return
	}

	view, err := h.carts.RemoveProduct(r.Context(), usr, req.ProductID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(view))
}

type applyCouponRequest struct {
	CouponID string `json:"couponId"`
}

func (h *Handler) applyCartCoupon(w http.ResponseWriter, r *http.Request) {
	usr, ok := UserFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Message: "authorization required"})
		return
	}

	var req applyCouponRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.CouponID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "couponId is required"})
		return
	}

	_, quote, err := h.carts.ApplyCoupon(r.Context(), usr, req.CouponID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toQuoteResponse(quote))
}

func (h *Handler) removeCartCoupon(w http.ResponseWriter, r *http.Request) {
	usr, ok := UserFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Message: "authorization required"})
		return
	}

	view, err := h.carts.RemoveCoupon(r.Context(), usr)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(view))
}
