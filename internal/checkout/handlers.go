package checkout

import (
	"errors"
	"net/http"

	"github.com/noah-isme/toko-pos/internal/common"
	"github.com/noah-isme/toko-pos/internal/order"
)

// Handler exposes the storefront checkout.
type Handler struct {
	Svc *Service
}

var rules = []common.Rule{
	{Target: order.ErrEmptyCart, Code: "EMPTY_CART", Status: http.StatusUnprocessableEntity},
	{Target: ErrCheckoutInProgress, Code: "CHECKOUT_IN_PROGRESS", Status: http.StatusConflict},
	{Target: ErrOrderPersistence, Code: "ORDER_NOT_SAVED", Status: http.StatusServiceUnavailable},
}

// Checkout handles POST /api/v1/checkout.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout service not configured", nil)
		return
	}
	sessionID, ok := common.SessionID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "MISSING_SESSION", common.HeaderSessionID+" header is required", nil)
		return
	}
	var in Input
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	out, err := h.Svc.Submit(r.Context(), sessionID, in)
	if err != nil {
		if errors.Is(err, ErrOrderPersistence) {
			w.Header().Set("Retry-After", "1")
		}
		common.WriteError(w, err, rules...)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": out})
}
