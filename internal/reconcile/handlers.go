package reconcile

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ateliemoda/backend-atelie/internal/common"
	"github.com/ateliemoda/backend-atelie/internal/repo"
)

// Handler exposes the blind-count wizard endpoints.
type Handler struct {
	Svc *Service
}

func eventID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "id"))
}

func (h *Handler) respond(w http.ResponseWriter, v SessionView, err error) {
	if err != nil {
		switch {
		case errors.Is(err, ErrSessionNotFound):
			common.JSONError(w, http.StatusNotFound, "SESSION_NOT_FOUND", "no reconciliation session for event", nil)
		case errors.Is(err, repo.ErrNotFound):
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "event not found", nil)
		default:
			common.RenderError(w, err)
		}
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": v})
}

// Start opens (or resumes) a counting session for the event.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	id, err := eventID(r)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid event id", nil)
		return
	}
	v, err := h.Svc.Start(r.Context(), id)
	h.respond(w, v, err)
}

// Get returns the session as the operator should see it.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := eventID(r)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid event id", nil)
		return
	}
	v, err := h.Svc.Get(r.Context(), id)
	h.respond(w, v, err)
}

// Count records one physical count.
func (h *Handler) Count(w http.ResponseWriter, r *http.Request) {
	id, err := eventID(r)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid event id", nil)
		return
	}
	var body struct {
		ItemID   string `json:"itemId"`
		Quantity int    `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ItemID == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	v, err := h.Svc.RecordCount(r.Context(), id, body.ItemID, body.Quantity)
	h.respond(w, v, err)
}

// Notes attaches divergence notes to one item.
func (h *Handler) Notes(w http.ResponseWriter, r *http.Request) {
	id, err := eventID(r)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid event id", nil)
		return
	}
	var body struct {
		ItemID string `json:"itemId"`
		Notes  string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ItemID == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	v, err := h.Svc.RecordNotes(r.Context(), id, body.ItemID, body.Notes)
	h.respond(w, v, err)
}

// Reveal toggles expected-quantity visibility during counting.
func (h *Handler) Reveal(w http.ResponseWriter, r *http.Request) {
	id, err := eventID(r)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid event id", nil)
		return
	}
	var body struct {
		Reveal bool `json:"reveal"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	v, err := h.Svc.Reveal(r.Context(), id, body.Reveal)
	h.respond(w, v, err)
}

// Review advances the session from counting to review.
func (h *Handler) Review(w http.ResponseWriter, r *http.Request) {
	id, err := eventID(r)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid event id", nil)
		return
	}
	v, err := h.Svc.BeginReview(r.Context(), id)
	h.respond(w, v, err)
}

// Reopen returns the session from review to counting.
func (h *Handler) Reopen(w http.ResponseWriter, r *http.Request) {
	id, err := eventID(r)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid event id", nil)
		return
	}
	v, err := h.Svc.Reopen(r.Context(), id)
	h.respond(w, v, err)
}

// Confirm commits the reviewed counts.
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	id, err := eventID(r)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid event id", nil)
		return
	}
	v, err := h.Svc.Confirm(r.Context(), id)
	h.respond(w, v, err)
}
