package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/marketloop/storefront/internal/domain/catalog"
)

// productRequest is the validated body for product create/update.
type productRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	CategoryID  string          `json:"categoryId"`
	Stock       int             `json:"stock"`
}

func (req *productRequest) validate() error {
	if req.Name == "" {
		return errors.New("name is required")
	}
	if req.Price.IsNegative() {
		return errors.New("price must not be negative")
	}
	if req.CategoryID == "" {
		return errors.New("categoryId is required")
	}
	if req.Stock < 0 {
		return errors.New("stock must not be negative")
	}
	return nil
}

func (req *productRequest) toDomain(id string) catalog.Product {
	return catalog.Product{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		CategoryID:  req.CategoryID,
		Stock:       req.Stock,
	}
}

type productResponse struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	CategoryID  string  `json:"categoryId"`
	Stock       int     `json:"stock"`
}

func toProductResponse(p catalog.Product) productResponse {
	return productResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price.InexactFloat64(),
		CategoryID:  p.CategoryID,
		Stock:       p.Stock,
	}
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := make([]productResponse, len(products))
	for i, p := range products {
		resp[i] = toProductResponse(p)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(*p))
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: err.Error()})
		return
	}

	p := req.toDomain(uuid.New().String())
	if err := h.products.Create(r.Context(), &p); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProductResponse(p))
}

func (h *Handler) createProducts(w http.ResponseWriter, r *http.Request) {
	var reqs []productRequest
	if !decodeJSON(w, r, &reqs) {
		return
	}
	if len(reqs) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "at least one product is required"})
		return
	}

	products := make([]catalog.Product, len(reqs))
	for i := range reqs {
		if err := reqs[i].validate(); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Message: err.Error()})
			return
		}
		products[i] = reqs[i].toDomain(uuid.New().String())
	}

	if err := h.products.CreateBatch(r.Context(), products); err != nil {
		writeError(w, r, err)
		return
	}

	resp := make([]productResponse, len(products))
	for i, p := range products {
		resp[i] = toProductResponse(p)
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: err.Error()})
		return
	}

	p := req.toDomain(chi.URLParam(r, "id"))
	if err := h.products.Update(r.Context(), &p); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(p))
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.products.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
