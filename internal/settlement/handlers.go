package settlement

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ateliemoda/backend-atelie/internal/common"
	"github.com/ateliemoda/backend-atelie/internal/repo"
)

// Handler exposes settlement preview and commit endpoints.
type Handler struct {
	Svc *Service
}

func consignmentID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "id"))
}

func decodeInput(r *http.Request) (Input, error) {
	var in Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		return Input{}, err
	}
	return in, nil
}

// Preview recomputes settlement totals for display. Nothing is written.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	id, err := consignmentID(r)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid consignment id", nil)
		return
	}
	in, err := decodeInput(r)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	result, err := h.Svc.Preview(r.Context(), id, in)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "consignment not found", nil)
			return
		}
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": result})
}

// Settle validates and commits the settlement.
func (h *Handler) Settle(w http.ResponseWriter, r *http.Request) {
	id, err := consignmentID(r)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid consignment id", nil)
		return
	}
	in, err := decodeInput(r)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	result, err := h.Svc.Settle(r.Context(), id, in)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "consignment not found", nil)
			return
		}
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": result})
}
