package register_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-pos/internal/common"
	"github.com/noah-isme/toko-pos/internal/register"
)

func newRouter(t *testing.T) (http.Handler, fixture) {
	t.Helper()
	f := newFixture(t)
	f.svc.Settings = fixedSettings{CurrencySymbol: "Rp"}
	h := &register.Handler{Svc: f.svc}
	r := chi.NewRouter()
	r.Route("/pos", h.Routes)
	return r, f
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body)).WithContext(context.Background())
	req.Header.Set(common.HeaderDeviceID, "till-1")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	return rr, out
}

func errorCode(out map[string]any) string {
	e, _ := out["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func TestHandlerSaleFlow(t *testing.T) {
	h, f := newRouter(t)

	rr, _ := do(t, h, http.MethodPost, "/pos/items", `{"productId":"p1","quantity":2}`)
	require.Equal(t, http.StatusOK, rr.Code)

	rr, _ = do(t, h, http.MethodPut, "/pos/items/0/discount", `{"kind":"percentage","value":10}`)
	require.Equal(t, http.StatusOK, rr.Code)

	rr, out := do(t, h, http.MethodPut, "/pos/discount", `{"kind":"fixed","value":20}`)
	require.Equal(t, http.StatusOK, rr.Code)
	totals := out["data"].(map[string]any)["totals"].(map[string]any)
	require.Equal(t, 160.0, totals["grandTotal"])

	rr, _ = do(t, h, http.MethodPut, "/pos/customer", `{"name":"Budi","email":"budi@example.com"}`)
	require.Equal(t, http.StatusOK, rr.Code)

	rr, out = do(t, h, http.MethodPost, "/pos/payments", `{"method":"cash","amount":100}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, 60.0, out["data"].(map[string]any)["balance"])

	rr, out = do(t, h, http.MethodPost, "/pos/complete", ``)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	require.Equal(t, "BALANCE_DUE", errorCode(out))

	rr, _ = do(t, h, http.MethodPost, "/pos/payments", `{"method":"card","amount":60}`)
	require.Equal(t, http.StatusOK, rr.Code)

	rr, out = do(t, h, http.MethodPost, "/pos/complete", ``)
	require.Equal(t, http.StatusCreated, rr.Code)
	data := out["data"].(map[string]any)
	require.Equal(t, "ORD-20260309-000001", data["order"].(map[string]any)["orderNumber"])
	require.Len(t, f.orders.payloads, 1)
	require.Equal(t, "budi@example.com", f.orders.payloads[0].Customer.Email)
}

func TestHandlerErrors(t *testing.T) {
	h, _ := newRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/pos/register", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr, out := do(t, h, http.MethodPost, "/pos/park", ``)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	require.Equal(t, "EMPTY_SALE", errorCode(out))

	rr, out = do(t, h, http.MethodPatch, "/pos/items/x", `{"quantity":1}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "BAD_REQUEST", errorCode(out))

	rr, out = do(t, h, http.MethodDelete, "/pos/items/3", ``)
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Equal(t, "LINE_NOT_FOUND", errorCode(out))

	rr, out = do(t, h, http.MethodPost, "/pos/payments", `{"method":"cash","amount":0}`)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	require.Equal(t, "INVALID_AMOUNT", errorCode(out))

	rr, out = do(t, h, http.MethodPut, "/pos/discount", `{"kind":"bogus","value":1}`)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	require.Equal(t, "VALIDATION_FAILED", errorCode(out))

	rr, out = do(t, h, http.MethodPost, "/pos/parked/0/resume", ``)
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Equal(t, "PARKED_SALE_NOT_FOUND", errorCode(out))
}
