package cart

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/toko-pos/internal/catalog"
	"github.com/noah-isme/toko-pos/internal/common"
	"github.com/noah-isme/toko-pos/internal/coupon"
	"github.com/noah-isme/toko-pos/internal/order"
	"github.com/noah-isme/toko-pos/internal/session"
)

// Handler wires cart services to HTTP. Every route runs behind
// common.RequireSession.
type Handler struct {
	Svc *Service
}

// Rules maps cart, coupon and catalog errors onto API responses.
var Rules = append([]common.Rule{
	{Target: ErrInvalidQuantity, Code: "INVALID_QUANTITY", Status: http.StatusUnprocessableEntity},
	{Target: ErrItemNotFound, Code: "ITEM_NOT_FOUND", Status: http.StatusNotFound},
	{Target: order.ErrEmptyCart, Code: "EMPTY_CART", Status: http.StatusUnprocessableEntity},
	{Target: coupon.ErrCouponNotFound, Code: "COUPON_NOT_FOUND", Status: http.StatusNotFound},
	{Target: coupon.ErrCouponInactive, Code: "COUPON_INACTIVE", Status: http.StatusUnprocessableEntity},
	{Target: coupon.ErrMinimumAmountNotMet, Code: "MINIMUM_AMOUNT_NOT_MET", Status: http.StatusUnprocessableEntity},
	{Target: session.ErrInvalidID, Code: "MISSING_SESSION", Status: http.StatusBadRequest},
}, catalog.Rules...)

func (h *Handler) sessionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return "", false
	}
	id, ok := common.SessionID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "MISSING_SESSION", common.HeaderSessionID+" header is required", nil)
		return "", false
	}
	return id, true
}

func (h *Handler) respond(w http.ResponseWriter, sum Summary, err error) {
	if err != nil {
		common.WriteError(w, err, Rules...)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": sum})
}

// Get handles GET /api/v1/cart.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	sum, err := h.Svc.Summary(r.Context(), sessionID)
	h.respond(w, sum, err)
}

// AddItem handles POST /api/v1/cart/items.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	var in AddInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	sum, err := h.Svc.AddItem(r.Context(), sessionID, in)
	h.respond(w, sum, err)
}

// UpdateItem handles PATCH /api/v1/cart/items/{key}.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	var in struct {
		Quantity *int `json:"quantity" validate:"required,gte=0,lte=10000"`
	}
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	sum, err := h.Svc.UpdateQuantity(r.Context(), sessionID, chi.URLParam(r, "key"), *in.Quantity)
	h.respond(w, sum, err)
}

// RemoveItem handles DELETE /api/v1/cart/items/{key}.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	sum, err := h.Svc.RemoveItem(r.Context(), sessionID, chi.URLParam(r, "key"))
	h.respond(w, sum, err)
}

// ApplyCoupon handles POST /api/v1/cart/coupon.
func (h *Handler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	var in struct {
		Code string `json:"code" validate:"required,max=64"`
	}
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	sum, err := h.Svc.ApplyCoupon(r.Context(), sessionID, in.Code)
	h.respond(w, sum, err)
}

// RemoveCoupon handles DELETE /api/v1/cart/coupon.
func (h *Handler) RemoveCoupon(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	sum, err := h.Svc.RemoveCoupon(r.Context(), sessionID)
	h.respond(w, sum, err)
}
