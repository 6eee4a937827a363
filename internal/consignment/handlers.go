package consignment

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ateliemoda/backend-atelie/internal/common"
	"github.com/ateliemoda/backend-atelie/internal/repo"
)

// Handler exposes consignment lifecycle endpoints.
type Handler struct {
	Svc *Service
}

// Create opens a new consignment or event with its allocations.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	detail, err := h.Svc.Create(r.Context(), in)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": detail})
}

// List returns a page of consignments.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	p := common.ParsePagination(r, 20, 100)
	q := r.URL.Query()
	rows, err := h.Svc.List(r.Context(), q.Get("kind"), q.Get("status"), p.Limit, p.Offset)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rows, "meta": p})
}

// Get returns one consignment with its allocation rows.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid consignment id", nil)
		return
	}
	detail, err := h.Svc.Detail(r.Context(), id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "consignment not found", nil)
			return
		}
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": detail})
}
