package register

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/toko-pos/internal/catalog"
	"github.com/noah-isme/toko-pos/internal/common"
	"github.com/noah-isme/toko-pos/internal/order"
	"github.com/noah-isme/toko-pos/internal/payment"
	"github.com/noah-isme/toko-pos/internal/pricing"
	"github.com/noah-isme/toko-pos/internal/session"
)

// Handler wires the POS register to HTTP. Every route runs behind
// common.RequireDevice.
type Handler struct {
	Svc *Service
}

// Rules maps register, ledger and catalog errors onto API responses.
var Rules = append([]common.Rule{
	{Target: ErrInvalidQuantity, Code: "INVALID_QUANTITY", Status: http.StatusUnprocessableEntity},
	{Target: ErrLineNotFound, Code: "LINE_NOT_FOUND", Status: http.StatusNotFound},
	{Target: ErrParkedSaleNotFound, Code: "PARKED_SALE_NOT_FOUND", Status: http.StatusNotFound},
	{Target: ErrSaleInProgress, Code: "SALE_IN_PROGRESS", Status: http.StatusConflict},
	{Target: ErrInvalidTransition, Code: "INVALID_TRANSITION", Status: http.StatusConflict},
	{Target: ErrBalanceDue, Code: "BALANCE_DUE", Status: http.StatusUnprocessableEntity},
	{Target: order.ErrEmptyCart, Code: "EMPTY_SALE", Status: http.StatusUnprocessableEntity},
	{Target: order.ErrPersistence, Code: "ORDER_NOT_SAVED", Status: http.StatusServiceUnavailable},
	{Target: pricing.ErrInvalidDiscount, Code: "INVALID_DISCOUNT", Status: http.StatusUnprocessableEntity},
	{Target: payment.ErrNonPositiveAmount, Code: "INVALID_AMOUNT", Status: http.StatusUnprocessableEntity},
	{Target: payment.ErrMethodRequired, Code: "METHOD_REQUIRED", Status: http.StatusUnprocessableEntity},
	{Target: payment.ErrPaymentNotFound, Code: "PAYMENT_NOT_FOUND", Status: http.StatusNotFound},
	{Target: session.ErrInvalidID, Code: "MISSING_DEVICE", Status: http.StatusBadRequest},
}, catalog.Rules...)

// Routes mounts the register endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Use(common.RequireDevice)
	r.Get("/register", h.Get)
	r.Post("/items", h.AddItem)
	r.Patch("/items/{index}", h.UpdateItem)
	r.Delete("/items/{index}", h.RemoveItem)
	r.Put("/items/{index}/discount", h.SetLineDiscount)
	r.Delete("/items/{index}/discount", h.ClearLineDiscount)
	r.Put("/discount", h.SetOrderDiscount)
	r.Delete("/discount", h.ClearOrderDiscount)
	r.Put("/customer", h.SetCustomer)
	r.Delete("/customer", h.ClearCustomer)
	r.Put("/notes", h.SetNotes)
	r.Post("/payments", h.AddPayment)
	r.Delete("/payments/{index}", h.RemovePayment)
	r.Post("/park", h.Park)
	r.Post("/parked/{index}/resume", h.Resume)
	r.Delete("/parked/{index}", h.DeleteParked)
	r.Post("/discard", h.Discard)
	r.Post("/complete", h.Complete)
}

func (h *Handler) deviceID(w http.ResponseWriter, r *http.Request) (string, bool) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "register service not configured", nil)
		return "", false
	}
	id, ok := common.DeviceID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "MISSING_DEVICE", common.HeaderDeviceID+" header is required", nil)
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

// indexed resolves the device and the {index} URL parameter.
func (h *Handler) indexed(w http.ResponseWriter, r *http.Request) (string, int, bool) {
	deviceID, ok := h.deviceID(w, r)
	if !ok {
		return "", 0, false
	}
	idx, err := common.PathIndex(r, "index")
	if err != nil {
		common.WriteError(w, err)
		return "", 0, false
	}
	return deviceID, idx, true
}

// Get handles GET /api/v1/pos/register.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := h.deviceID(w, r)
	if !ok {
		return
	}
	sum, err := h.Svc.Summary(r.Context(), deviceID)
	h.respond(w, sum, err)
}

// AddItem handles POST /api/v1/pos/items.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := h.deviceID(w, r)
	if !ok {
		return
	}
	var in AddInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	sum, err := h.Svc.AddItem(r.Context(), deviceID, in)
	h.respond(w, sum, err)
}

// UpdateItem handles PATCH /api/v1/pos/items/{index}.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	deviceID, idx, ok := h.indexed(w, r)
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
	sum, err := h.Svc.UpdateQuantity(r.Context(), deviceID, idx, *in.Quantity)
	h.respond(w, sum, err)
}

// RemoveItem handles DELETE /api/v1/pos/items/{index}.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	deviceID, idx, ok := h.indexed(w, r)
	if !ok {
		return
	}
	sum, err := h.Svc.RemoveItem(r.Context(), deviceID, idx)
	h.respond(w, sum, err)
}

// SetLineDiscount handles PUT /api/v1/pos/items/{index}/discount.
func (h *Handler) SetLineDiscount(w http.ResponseWriter, r *http.Request) {
	deviceID, idx, ok := h.indexed(w, r)
	if !ok {
		return
	}
	var spec pricing.DiscountSpec
	if err := common.DecodeJSON(r, &spec); err != nil {
		common.WriteError(w, err)
		return
	}
	sum, err := h.Svc.SetLineDiscount(r.Context(), deviceID, idx, &spec)
	h.respond(w, sum, err)
}

// ClearLineDiscount handles DELETE /api/v1/pos/items/{index}/discount.
func (h *Handler) ClearLineDiscount(w http.ResponseWriter, r *http.Request) {
	deviceID, idx, ok := h.indexed(w, r)
	if !ok {
		return
	}
	sum, err := h.Svc.SetLineDiscount(r.Context(), deviceID, idx, nil)
	h.respond(w, sum, err)
}

// SetOrderDiscount handles PUT /api/v1/pos/discount.
func (h *Handler) SetOrderDiscount(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := h.deviceID(w, r)
	if !ok {
		return
	}
	var spec pricing.DiscountSpec
	if err := common.DecodeJSON(r, &spec); err != nil {
		common.WriteError(w, err)
		return
	}
	sum, err := h.Svc.SetOrderDiscount(r.Context(), deviceID, &spec)
	h.respond(w, sum, err)
}

// ClearOrderDiscount handles DELETE /api/v1/pos/discount.
func (h *Handler) ClearOrderDiscount(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := h.deviceID(w, r)
	if !ok {
		return
	}
	sum, err := h.Svc.SetOrderDiscount(r.Context(), deviceID, nil)
	h.respond(w, sum, err)
}

// SetCustomer handles PUT /api/v1/pos/customer.
func (h *Handler) SetCustomer(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := h.deviceID(w, r)
	if !ok {
		return
	}
	var c order.Customer
	if err := common.DecodeJSON(r, &c); err != nil {
		common.WriteError(w, err)
		return
	}
	sum, err := h.Svc.SetCustomer(r.Context(), deviceID, &c)
	h.respond(w, sum, err)
}

// ClearCustomer handles DELETE /api/v1/pos/customer.
func (h *Handler) ClearCustomer(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := h.deviceID(w, r)
	if !ok {
		return
	}
	sum, err := h.Svc.SetCustomer(r.Context(), deviceID, nil)
	h.respond(w, sum, err)
}

// SetNotes handles PUT /api/v1/pos/notes.
func (h *Handler) SetNotes(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := h.deviceID(w, r)
	if !ok {
		return
	}
	var in struct {
		Notes string `json:"notes" validate:"max=1000"`
	}
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	sum, err := h.Svc.SetNotes(r.Context(), deviceID, in.Notes)
	h.respond(w, sum, err)
}

// AddPayment handles POST /api/v1/pos/payments.
func (h *Handler) AddPayment(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := h.deviceID(w, r)
	if !ok {
		return
	}
	var in PaymentInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	sum, err := h.Svc.AddPayment(r.Context(), deviceID, in)
	h.respond(w, sum, err)
}

// RemovePayment handles DELETE /api/v1/pos/payments/{index}.
func (h *Handler) RemovePayment(w http.ResponseWriter, r *http.Request) {
	deviceID, idx, ok := h.indexed(w, r)
	if !ok {
		return
	}
	sum, err := h.Svc.RemovePayment(r.Context(), deviceID, idx)
	h.respond(w, sum, err)
}

// Park handles POST /api/v1/pos/park.
func (h *Handler) Park(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := h.deviceID(w, r)
	if !ok {
		return
	}
	sum, err := h.Svc.Park(r.Context(), deviceID)
	h.respond(w, sum, err)
}

// Resume handles POST /api/v1/pos/parked/{index}/resume.
func (h *Handler) Resume(w http.ResponseWriter, r *http.Request) {
	deviceID, idx, ok := h.indexed(w, r)
	if !ok {
		return
	}
	sum, err := h.Svc.Resume(r.Context(), deviceID, idx)
	h.respond(w, sum, err)
}

// DeleteParked handles DELETE /api/v1/pos/parked/{index}.
func (h *Handler) DeleteParked(w http.ResponseWriter, r *http.Request) {
	deviceID, idx, ok := h.indexed(w, r)
	if !ok {
		return
	}
	sum, err := h.Svc.DeleteParked(r.Context(), deviceID, idx)
	h.respond(w, sum, err)
}

// Discard handles POST /api/v1/pos/discard.
func (h *Handler) Discard(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := h.deviceID(w, r)
	if !ok {
		return
	}
	sum, err := h.Svc.Discard(r.Context(), deviceID)
	h.respond(w, sum, err)
}

// Complete handles POST /api/v1/pos/complete.
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := h.deviceID(w, r)
	if !ok {
		return
	}
	out, err := h.Svc.Complete(r.Context(), deviceID)
	if err != nil {
		if errors.Is(err, order.ErrPersistence) {
			w.Header().Set("Retry-After", "1")
		}
		common.WriteError(w, err, Rules...)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": out})
}
