package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bizpadi-api/internal/auth"
	"bizpadi-api/internal/models"
	"bizpadi-api/internal/service"
	"bizpadi-api/internal/store/memstore"
	"bizpadi-api/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const testSecret = "test-secret"

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

type apiFixture struct {
	router *gin.Engine
	store  *memstore.Store
	token  string
}

func newAPIFixture(t *testing.T, pingers map[string]Pinger) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	util.SetLogger(zaptest.NewLogger(t))

	st := memstore.New()
	sales := service.NewSaleService(st, nil, nil, nil, service.LedgerConfig{
		DefaultPageLimit: 10,
		MaxPageLimit:     20,
		RetryOnConflict:  true,
	})
	products := service.NewProductService(st, nil)
	clients := service.NewClientService(st)

	router := gin.New()
	NewHandler(sales, products, clients, testSecret, pingers).SetupRoutes(router)

	token, err := auth.GenerateAccessToken(testSecret, "owner-1", time.Hour)
	require.NoError(t, err)

	require.NoError(t, st.CreateProduct(context.Background(), &models.Product{
		ID:        "p1",
		OwnerID:   "owner-1",
		Name:      "Rice",
		CostPrice: decimal.NewFromInt(5),
		Quantity:  10,
	}))

	return &apiFixture{router: router, store: st, token: token}
}

func (f *apiFixture) do(t *testing.T, method, path string, body interface{}, headers map[string]string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var out map[string]interface{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w, out
}

func (f *apiFixture) stock(t *testing.T) int {
	t.Helper()
	p, err := f.store.GetProduct(context.Background(), "owner-1", "p1")
	require.NoError(t, err)
	return p.Quantity
}

func TestHealthCheck(t *testing.T) {
	f := newAPIFixture(t, nil)

	w, body := f.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", body["status"])
}

func TestReadinessCheck(t *testing.T) {
	f := newAPIFixture(t, map[string]Pinger{
		"postgres": pingerFunc(func(context.Context) error { return nil }),
		"redis":    pingerFunc(func(context.Context) error { return errors.New("connection refused") }),
	})

	w, body := f.do(t, http.MethodGet, "/ready", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "not_ready", body["status"])

	checks := body["checks"].(map[string]interface{})
	assert.Equal(t, "ok", checks["postgres"])
	assert.Equal(t, "connection refused", checks["redis"])
}

func TestAuthRequired(t *testing.T) {
	f := newAPIFixture(t, nil)

	f.token = ""
	w, body := f.do(t, http.MethodGet, "/api/v1/sales", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, false, body["success"])

	f.token = "not-a-jwt"
	w, _ = f.do(t, http.MethodGet, "/api/v1/sales", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	other, err := auth.GenerateAccessToken("other-secret", "owner-1", time.Hour)
	require.NoError(t, err)
	f.token = other
	w, _ = f.do(t, http.MethodGet, "/api/v1/sales", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSaleLifecycle(t *testing.T) {
	f := newAPIFixture(t, nil)

	w, body := f.do(t, http.MethodPost, "/api/v1/sales", gin.H{
		"product_id":    "p1",
		"quantity":      3,
		"selling_price": "8",
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, true, body["success"])

	sale := body["sale"].(map[string]interface{})
	saleID := sale["sale_id"].(string)
	assert.Equal(t, "24", sale["total_price"])
	assert.Equal(t, "9", sale["profit_made"])
	assert.Equal(t, 7, f.stock(t))

	w, body = f.do(t, http.MethodGet, "/api/v1/sales/"+saleID, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Rice", body["data"].(map[string]interface{})["product_name"])

	w, body = f.do(t, http.MethodPut, "/api/v1/sales/"+saleID, gin.H{
		"product_id":    "p1",
		"quantity":      5,
		"selling_price": "8",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "40", body["data"].(map[string]interface{})["total_price"])
	assert.Equal(t, 5, f.stock(t))

	w, _ = f.do(t, http.MethodDelete, "/api/v1/sales/"+saleID, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 10, f.stock(t))

	w, body = f.do(t, http.MethodGet, "/api/v1/sales/"+saleID, nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, false, body["success"])
}

func TestCreateSaleErrorMapping(t *testing.T) {
	f := newAPIFixture(t, nil)

	tests := []struct {
		name   string
		body   interface{}
		status int
	}{
		{"insufficient stock", gin.H{"product_id": "p1", "quantity": 11, "selling_price": "8"}, http.StatusBadRequest},
		{"unknown product", gin.H{"product_id": "nope", "quantity": 1, "selling_price": "8"}, http.StatusNotFound},
		{"zero quantity", gin.H{"product_id": "p1", "quantity": 0, "selling_price": "8"}, http.StatusBadRequest},
		{"missing price", gin.H{"product_id": "p1", "quantity": 1}, http.StatusBadRequest},
		{"malformed body", "not an object", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := f.do(t, http.MethodPost, "/api/v1/sales", tt.body, nil)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, false, body["success"])
			assert.NotEmpty(t, body["error"])
		})
	}

	assert.Equal(t, 10, f.stock(t))
}

func TestStoreFailureHidesDetails(t *testing.T) {
	f := newAPIFixture(t, nil)
	f.store.FailOn(memstore.OpInsertSale, errors.New("pq: relation \"sales\" does not exist"))

	w, body := f.do(t, http.MethodPost, "/api/v1/sales", gin.H{"product_id": "p1", "quantity": 1, "selling_price": "8"}, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal server error", body["error"])
	assert.Equal(t, 10, f.stock(t))
}

func TestListSalesQueryParams(t *testing.T) {
	f := newAPIFixture(t, nil)

	for i := 0; i < 3; i++ {
		w, _ := f.do(t, http.MethodPost, "/api/v1/sales", gin.H{"product_id": "p1", "quantity": 1, "selling_price": "8"}, nil)
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w, body := f.do(t, http.MethodGet, "/api/v1/sales?page=1&limit=2&search=ric", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(3), body["total"])
	assert.Equal(t, float64(2), body["pages"])
	assert.Equal(t, "16", body["totalSales"])
	assert.Equal(t, "6", body["totalProfit"])
	assert.Len(t, body["data"], 2)

	w, _ = f.do(t, http.MethodGet, "/api/v1/sales?limit=20", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = f.do(t, http.MethodGet, "/api/v1/sales?limit=21", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = f.do(t, http.MethodGet, "/api/v1/sales?page=abc", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = f.do(t, http.MethodGet, "/api/v1/sales?page=922337203685477580&limit=20", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateSaleRejectsUnrepresentableAmounts(t *testing.T) {
	f := newAPIFixture(t, nil)

	for _, p := range []string{"0.005", "100000000000"} {
		w, body := f.do(t, http.MethodPost, "/api/v1/sales", gin.H{"product_id": "p1", "quantity": 1, "selling_price": p}, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, p)
		assert.Equal(t, false, body["success"])
	}
	assert.Equal(t, 10, f.stock(t))
}

func TestUpdateAndDeleteProduct(t *testing.T) {
	f := newAPIFixture(t, nil)

	w, body := f.do(t, http.MethodPost, "/api/v1/sales", gin.H{"product_id": "p1", "quantity": 2, "selling_price": "8"}, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	saleID := body["sale"].(map[string]interface{})["sale_id"].(string)

	w, body = f.do(t, http.MethodPut, "/api/v1/products/p1", gin.H{"name": "Jasmine Rice", "quantity": 20}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Jasmine Rice", body["data"].(map[string]interface{})["name"])
	assert.Equal(t, 20, f.stock(t))

	w, _ = f.do(t, http.MethodPut, "/api/v1/products/nope", gin.H{"name": "x"}, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, body = f.do(t, http.MethodDelete, "/api/v1/products/p1", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Product deleted successfully", body["message"])

	w, _ = f.do(t, http.MethodGet, "/api/v1/sales/"+saleID, nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w, _ = f.do(t, http.MethodGet, "/api/v1/products/p1", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestClientEndpoints(t *testing.T) {
	f := newAPIFixture(t, nil)

	client := gin.H{"name": "Ada", "email": "ada@example.com", "phone_number": "0803", "address": "Lagos"}
	w, body := f.do(t, http.MethodPost, "/api/v1/clients", client, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	clientID := body["client"].(map[string]interface{})["client_id"].(string)

	w, _ = f.do(t, http.MethodPost, "/api/v1/clients", client, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w, _ = f.do(t, http.MethodPost, "/api/v1/clients", gin.H{"name": "Bo", "email": "bad", "phone_number": "1", "address": "x"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, body = f.do(t, http.MethodPut, "/api/v1/clients/"+clientID, gin.H{"phone_number": "0805"}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "0805", body["data"].(map[string]interface{})["phone_number"])

	w, body = f.do(t, http.MethodGet, "/api/v1/clients/"+clientID, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Ada", body["data"].(map[string]interface{})["name"])

	w, _ = f.do(t, http.MethodDelete, "/api/v1/clients/"+clientID, nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = f.do(t, http.MethodGet, "/api/v1/clients/"+clientID, nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateAndGetProduct(t *testing.T) {
	f := newAPIFixture(t, nil)

	w, body := f.do(t, http.MethodPost, "/api/v1/products", gin.H{
		"name":       "Beans",
		"cost_price": "2.50",
		"quantity":   4,
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	productID := body["product"].(map[string]interface{})["product_id"].(string)

	w, body = f.do(t, http.MethodGet, "/api/v1/products/"+productID, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Beans", body["data"].(map[string]interface{})["name"])

	w, _ = f.do(t, http.MethodPost, "/api/v1/products", gin.H{"name": "", "cost_price": "1"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSummaryUnavailableWithoutProjection(t *testing.T) {
	f := newAPIFixture(t, nil)

	w, body := f.do(t, http.MethodGet, "/api/v1/sales/summary", nil, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, false, body["success"])
}
