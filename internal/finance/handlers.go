package finance

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ateliemoda/backend-atelie/internal/common"
	"github.com/ateliemoda/backend-atelie/internal/repo"
)

// Handler exposes transaction endpoints.
type Handler struct {
	Svc *Service
}

// Record stores a new transaction.
func (h *Handler) Record(w http.ResponseWriter, r *http.Request) {
	var in RecordInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	id, err := h.Svc.Record(r.Context(), in)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": map[string]any{"id": id}})
}

// List returns transactions matching the query filters.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f repo.TransactionFilter
	var err error
	if raw := q.Get("from"); raw != "" {
		f.From, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid from date", nil)
			return
		}
	}
	if raw := q.Get("to"); raw != "" {
		f.To, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid to date", nil)
			return
		}
	}
	f.Type = q.Get("type")
	f.Category = q.Get("category")
	rows, err := h.Svc.List(r.Context(), f)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rows})
}
