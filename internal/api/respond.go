package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/marketloop/storefront/internal/domain/cart"
	"github.com/marketloop/storefront/internal/domain/catalog"
	"github.com/marketloop/storefront/internal/domain/coupon"
	"github.com/marketloop/storefront/internal/domain/order"
	"github.com/marketloop/storefront/internal/domain/user"
)

// errorResponse is the JSON body for every non-2xx response.
type errorResponse struct {
	Message string `json:"message"`
}

// writeJSON serializes v as the response body with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps a domain error onto the HTTP error taxonomy: not-found
// sentinels become 404, validation failures 400, ownership violations 403,
// and everything else a generic 500. Domain packages never see HTTP; the
// mapping lives here only.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, catalog.ErrProductNotFound),
		errors.Is(err, catalog.ErrCategoryNotFound),
		errors.Is(err, coupon.ErrNotFound),
		errors.Is(err, cart.ErrNotFound),
		errors.Is(err, order.ErrNotFound),
		errors.Is(err, user.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Message: err.Error()})

	case errors.Is(err, order.ErrEmptyCart):
		// Capitalized per the public API contract.
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "Cart is empty"})

	case errors.Is(err, order.ErrNotOwner):
		writeJSON(w, http.StatusForbidden, errorResponse{Message: err.Error()})

	case errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, coupon.ErrExpired),
		errors.Is(err, coupon.ErrNewUsersOnly),
		errors.Is(err, coupon.ErrBelowMinPurchase),
		isNotApplicable(err):
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: err.Error()})

	default:
		zctx.From(r.Context()).Error("request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "internal server error"})
	}
}

func isNotApplicable(err error) bool {
	var na *coupon.NotApplicableError
	return errors.As(err, &na)
}

// decodeJSON decodes the request body into dst, rejecting unknown fields.
// A false return means the 400 response has already been written.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid request body"})
		return false
	}
	return true
}
