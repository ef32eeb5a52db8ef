package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/marketloop/storefront/internal/domain/coupon"
)

// couponRequest is the validated body for coupon create/update.
type couponRequest struct {
	Code                 string          `json:"code"`
	Description          string          `json:"description"`
	DiscountType         string          `json:"discountType"`
	Amount               decimal.Decimal `json:"amount"`
	MinPurchase          decimal.Decimal `json:"minPurchase"`
	MaxDiscount          decimal.Decimal `json:"maxDiscount"`
	ApplicableCategories []string        `json:"applicableCategories"`
	NewUserOnly          bool            `json:"newUserOnly"`
	ExpiresAt            time.Time       `json:"expiresAt"`
}

func (req *couponRequest) validate() error {
	if req.Code == "" {
		return errors.New("code is required")
	}
	switch coupon.DiscountType(req.DiscountType) {
	case coupon.DiscountPercentage:
		if !req.Amount.IsPositive() || req.Amount.GreaterThan(decimal.NewFromInt(100)) {
			return errors.New("percentage amount must be between 0 and 100")
		}
	case coupon.DiscountFixed:
		if !req.Amount.IsPositive() {
			return errors.New("fixed amount must be greater than 0")
		}
	default:
		return errors.New("discountType must be \"percentage\" or \"fixed\"")
	}
	if req.MinPurchase.IsNegative() {
		return errors.New("minPurchase must not be negative")
	}
	if req.MaxDiscount.IsNegative() {
		return errors.New("maxDiscount must not be negative")
	}
	if req.ExpiresAt.IsZero() {
		return errors.New("expiresAt is required")
	}
	return nil
}

func (req *couponRequest) toDomain(id string) coupon.Coupon {
	return coupon.Coupon{
		ID:                   id,
		Code:                 req.Code,
		Description:          req.Description,
		DiscountType:         coupon.DiscountType(req.DiscountType),
		Amount:               req.Amount,
		MinPurchase:          req.MinPurchase,
		MaxDiscount:          req.MaxDiscount,
		ApplicableCategories: req.ApplicableCategories,
		NewUserOnly:          req.NewUserOnly,
		ExpiresAt:            req.ExpiresAt,
	}
}

type couponResponse struct {
	ID                   string    `json:"id"`
	Code                 string    `json:"code"`
	Description          string    `json:"description"`
	DiscountType         string    `json:"discountType"`
	Amount               float64   `json:"amount"`
	MinPurchase          float64   `json:"minPurchase"`
	MaxDiscount          float64   `json:"maxDiscount,omitempty"`
	ApplicableCategories []string  `json:"applicableCategories"`
	NewUserOnly          bool      `json:"newUserOnly"`
	ExpiresAt            time.Time `json:"expiresAt"`
	UsageCount           int       `json:"usageCount"`
}

func toCouponResponse(c coupon.Coupon) couponResponse {
	return couponResponse{
		ID:                   c.ID,
		Code:                 c.Code,
		Description:          c.Description,
		DiscountType:         string(c.DiscountType),
		Amount:               c.Amount.InexactFloat64(),
		MinPurchase:          c.MinPurchase.InexactFloat64(),
		MaxDiscount:          c.MaxDiscount.InexactFloat64(),
		ApplicableCategories: c.ApplicableCategories,
		NewUserOnly:          c.NewUserOnly,
		ExpiresAt:            c.ExpiresAt,
		UsageCount:           c.UsageCount,
	}
}

func (h *Handler) listCoupons(w http.ResponseWriter, r *http.Request) {
	coupons, err := h.coupons.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := make([]couponResponse, len(coupons))
	for i, c := range coupons {
		resp[i] = toCouponResponse(c)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) getCoupon(w http.ResponseWriter, r *http.Request) {
	c, err := h.coupons.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCouponResponse(*c))
}

func (h *Handler) getCouponByCode(w http.ResponseWriter, r *http.Request) {
	c, err := h.coupons.GetByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCouponResponse(*c))
}

// validateCoupon runs a dry-run validation of the coupon against the
// authenticated user's cart without attaching it.
func (h *Handler) validateCoupon(w http.ResponseWriter, r *http.Request) {
	usr, ok := UserFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Message: "authorization required"})
		return
	}

	quote, err := h.carts.QuoteCoupon(r.Context(), usr, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toQuoteResponse(quote))
}

func (h *Handler) createCoupon(w http.ResponseWriter, r *http.Request) {
	var req couponRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: err.Error()})
		return
	}

	c := req.toDomain(uuid.New().String())
	if err := h.coupons.Create(r.Context(), &c); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCouponResponse(c))
}

func (h *Handler) createCoupons(w http.ResponseWriter, r *http.Request) {
	var reqs []couponRequest
	if !decodeJSON(w, r, &reqs) {
		return
	}
	if len(reqs) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "at least one coupon is required"})
		return
	}

	coupons := make([]coupon.Coupon, len(reqs))
	for i := range reqs {
		if err := reqs[i].validate(); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Message: err.Error()})
			return
		}
		coupons[i] = reqs[i].toDomain(uuid.New().String())
	}

	if err := h.coupons.CreateBatch(r.Context(), coupons); err != nil {
		writeError(w, r, err)
		return
	}

	resp := make([]couponResponse, len(coupons))
	for i, c := range coupons {
		resp[i] = toCouponResponse(c)
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) updateCoupon(w http.ResponseWriter, r *http.Request) {
	var req couponRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: err.Error()})
		return
	}

	c := req.toDomain(chi.URLParam(r, "id"))
	if err := h.coupons.Update(r.Context(), &c); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCouponResponse(c))
}

func (h *Handler) deleteCoupon(w http.ResponseWriter, r *http.Request) {
	if err := h.coupons.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
