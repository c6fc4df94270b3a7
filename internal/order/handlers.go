package order

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/toko-pos/internal/common"
)

// Handler exposes read access to persisted orders.
type Handler struct {
	Orders Reader
}

// Get handles GET /api/v1/orders/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Orders == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order store not configured", nil)
		return
	}
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "order id is required", nil)
		return
	}
	rec, err := h.Orders.OrderByID(r.Context(), id)
	if err != nil {
		common.WriteError(w, err, common.Rule{Target: ErrOrderNotFound, Code: "NOT_FOUND", Status: http.StatusNotFound})
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data":    rec,
		"display": rec.Totals.View(rec.Currency),
	})
}
