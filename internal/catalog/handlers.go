package catalog

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/toko-pos/internal/common"
	"github.com/noah-isme/toko-pos/internal/pricing"
)

// Handler exposes catalog price resolution endpoints.
type Handler struct {
	Svc      *Service
	Currency string
}

// Price handles GET /api/v1/catalog/products/{id}/price?variantId=.
func (h *Handler) Price(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	productID := chi.URLParam(r, "id")
	variantID := strings.TrimSpace(r.URL.Query().Get("variantId"))
	res, err := h.Svc.Resolve(r.Context(), productID, variantID, nil)
	if err != nil {
		WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": res,
		"display": map[string]string{
			"unitPrice": pricing.Format(h.Currency, res.UnitPrice),
		},
	})
}

// BySlug handles GET /api/v1/catalog/products/slug/{slug}.
func (h *Handler) BySlug(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	p, err := h.Svc.ProductBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": p})
}

// Rules maps catalog errors onto API responses. Other packages reuse them when
// an operation resolves prices.
var Rules = []common.Rule{
	{Target: ErrProductNotFound, Code: "PRODUCT_NOT_FOUND", Status: http.StatusNotFound},
	{Target: ErrVariantNotFound, Code: "VARIANT_NOT_FOUND", Status: http.StatusNotFound},
	{Target: ErrVariantMismatch, Code: "VARIANT_MISMATCH", Status: http.StatusBadRequest},
	{Target: ErrInsufficientStock, Code: "INSUFFICIENT_STOCK", Status: http.StatusConflict},
	{Target: ErrInvalidPrice, Code: "INVALID_PRICE", Status: http.StatusUnprocessableEntity},
}

// WriteError renders catalog errors.
func WriteError(w http.ResponseWriter, err error) {
	common.WriteError(w, err, Rules...)
}
