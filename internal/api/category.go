package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/marketloop/storefront/internal/domain/catalog"
)

type categoryRequest struct {
	Name string `json:"name"`
}

type categoryResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.categories.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := make([]categoryResponse, len(categories))
	for i, c := range categories {
		resp[i] = categoryResponse{ID: c.ID, Name: c.Name}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) getCategory(w http.ResponseWriter, r *http.Request) {
	c, err := h.categories.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, categoryResponse{ID: c.ID, Name: c.Name})
}

func (h *Handler) createCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "name is required"})
		return
	}

	c := catalog.Category{ID: uuid.New().String(), Name: req.Name}
	if err := h.categories.Create(r.Context(), &c); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, categoryResponse{ID: c.ID, Name: c.Name})
}

func (h *Handler) updateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "name is required"})
		return
	}

	c := catalog.Category{ID: chi.URLParam(r, "id"), Name: req.Name}
	if err := h.categories.Update(r.Context(), &c); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, categoryResponse{ID: c.ID, Name: c.Name})
}

func (h *Handler) deleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := h.categories.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
