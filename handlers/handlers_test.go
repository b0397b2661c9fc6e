package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/StereoSachiiii/royal-liqour-sub000/handlers"
	"github.com/StereoSachiiii/royal-liqour-sub000/internal/fulfillment"
	"github.com/StereoSachiiii/royal-liqour-sub000/internal/orders"
	"github.com/StereoSachiiii/royal-liqour-sub000/internal/stores/memory"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAPI(t *testing.T) (*gin.Engine, *memory.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := memory.NewStore()
	svc := fulfillment.NewService(store, nil)
	return handlers.API("/v1", store, store, svc), store
}

func doJSON(t *testing.T, api *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	api.ServeHTTP(w, req)
	return w
}

func TestHealthCheck(t *testing.T) {
	api, _ := newAPI(t)
	w := doJSON(t, api, http.MethodGet, "/ping", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCreateOrder_Validation(t *testing.T) {
	api, _ := newAPI(t)

	// missing items
	w := doJSON(t, api, http.MethodPost, "/v1/orders", map[string]any{
		"user_id": "7cb1f89e-41ce-4a2c-8a3a-215c3f0e8a42",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// zero quantity
	w = doJSON(t, api, http.MethodPost, "/v1/orders", map[string]any{
		"user_id": "7cb1f89e-41ce-4a2c-8a3a-215c3f0e8a42",
		"items":   []map[string]any{{"product_id": 1, "quantity": 0}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOrderLifecycleOverHTTP(t *testing.T) {
	api, store := newAPI(t)

	w := doJSON(t, api, http.MethodPost, "/v1/stock/intake", map[string]any{
		"product_id": 1, "warehouse_id": 1, "quantity": 10,
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, api, http.MethodPost, "/v1/orders", map[string]any{
		"user_id": "7cb1f89e-41ce-4a2c-8a3a-215c3f0e8a42",
		"items":   []map[string]any{{"product_id": 1, "quantity": 7, "price_cents": 2500}},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var created struct {
		Order orders.Order `json:"order"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	orderID := created.Order.ID
	require.NotEmpty(t, orderID)

	w = doJSON(t, api, http.MethodPost, "/v1/orders/"+orderID+"/reserve", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// a second reserve must conflict, not double-book
	w = doJSON(t, api, http.MethodPost, "/v1/orders/"+orderID+"/reserve", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, api, http.MethodPost, "/v1/webhook", map[string]any{
		"type": "payment.confirmed", "order_id": orderID,
	})
	assert.Equal(t, http.StatusOK, w.Code)

	order, _, err := store.GetOrder(context.Background(), orderID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPaid, order.Status)

	w = doJSON(t, api, http.MethodGet, "/v1/stock/1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stock struct {
		Available int `json:"available"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stock))
	assert.Equal(t, 3, stock.Available)
}

func TestReserve_InsufficientStockConflict(t *testing.T) {
	api, _ := newAPI(t)

	w := doJSON(t, api, http.MethodPost, "/v1/stock/intake", map[string]any{
		"product_id": 1, "warehouse_id": 1, "quantity": 2,
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, api, http.MethodPost, "/v1/orders", map[string]any{
		"user_id": "7cb1f89e-41ce-4a2c-8a3a-215c3f0e8a42",
		"items":   []map[string]any{{"product_id": 1, "quantity": 5}},
	})
	require.Equal(t, http.StatusOK, w.Code)
	var created struct {
		Order orders.Order `json:"order"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = doJSON(t, api, http.MethodPost, fmt.Sprintf("/v1/orders/%s/reserve", created.Order.ID), nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "insufficient stock")
}

func TestGetOrder_NotFound(t *testing.T) {
	api, _ := newAPI(t)
	w := doJSON(t, api, http.MethodGet, "/v1/orders/6f8a98e1-0000-4a42-9e3b-dc2f7a1b9f00", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWebhook_UnhandledEventType(t *testing.T) {
	api, _ := newAPI(t)
	w := doJSON(t, api, http.MethodPost, "/v1/webhook", map[string]any{
		"type": "payment.failed", "order_id": "whatever",
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Event type not handled")
}

func TestStock_InvalidProductID(t *testing.T) {
	api, _ := newAPI(t)
	w := doJSON(t, api, http.MethodGet, "/v1/stock/not-a-number", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIntake_RejectsNonPositiveQuantity(t *testing.T) {
	api, _ := newAPI(t)
	w := doJSON(t, api, http.MethodPost, "/v1/stock/intake", map[string]any{
		"product_id": 1, "warehouse_id": 1, "quantity": -3,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
