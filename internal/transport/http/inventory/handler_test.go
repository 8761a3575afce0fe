package inventory

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/taller/internal/entity"
	"github.com/Additional-Code/taller/internal/repository/memory"
	service "github.com/Additional-Code/taller/internal/service/inventory"
)

func newTestEcho(t *testing.T) *echo.Echo {
	t.Helper()
	store := memory.New()
	store.PutProduct(entity.Product{ID: 1, Name: "Harina", UnitPrice: decimal.NewFromInt(12), Active: true}, 1, 4)
	store.PutProduct(entity.Product{ID: 2, Name: "Azúcar", UnitPrice: decimal.NewFromInt(8), Active: true}, 50, 4)
	require.NoError(t, store.Kardex().Insert(t.Context(), &entity.KardexEntry{
		ProductID:  1,
		OccurredAt: time.Date(2025, 5, 10, 8, 0, 0, 0, time.UTC),
		Kind:       entity.MovementReserve,
		Quantity:   3,
		UnitCost:   decimal.NewFromInt(12),
		Reference:  "PEDIDO-4",
	}))

	e := echo.New()
	Register(e, NewHandler(service.NewService(store.Kardex(), store.Stocks(), store.Products())))
	return e
}

func get(t *testing.T, e *echo.Echo, path string) (int, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestKardexRoute(t *testing.T) {
	e := newTestEcho(t)

	status, body := get(t, e, "/products/1/kardex?limit=10")
	require.Equal(t, http.StatusOK, status)
	entries := body["data"].([]any)
	require.Len(t, entries, 1)
	entry := entries[0].(map[string]any)
	assert.Equal(t, "RESERVE", entry["kind"])
	assert.Equal(t, "12.00", entry["unit_cost"])
	assert.Equal(t, "PEDIDO-4", entry["reference"])

	status, _ = get(t, e, "/products/9/kardex")
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = get(t, e, "/products/1/kardex?limit=x")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestLowStockRoute(t *testing.T) {
	e := newTestEcho(t)

	status, body := get(t, e, "/stock/low")
	require.Equal(t, http.StatusOK, status)
	levels := body["data"].([]any)
	require.Len(t, levels, 1)
	assert.Equal(t, "Harina", levels[0].(map[string]any)["name"])
	assert.Equal(t, float64(1), body["meta"].(map[string]any)["count"])
}
