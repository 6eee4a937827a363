package inventory

import (
	"net/http"

	"github.com/ateliemoda/backend-atelie/internal/common"
)

// Handler exposes catalogue read endpoints.
type Handler struct {
	Svc *Service
}

// List returns a page of the tenant's products.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	p := common.ParsePagination(r, 20, 100)
	rows, err := h.Svc.List(r.Context(), p.Limit, p.Offset)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": rows,
		"meta": p,
	})
}
