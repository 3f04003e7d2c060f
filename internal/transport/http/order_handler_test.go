package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/service/placement"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	router    *gin.Engine
	customers domain.CustomerRepository
	products  domain.ProductRepository
	orders    domain.OrderRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := log.New()
	logger.SetLevel(log.WarnLevel)
	entry := logger.WithField("component", "http-test")

	customers := memory.NewCustomerRepository()
	products := memory.NewProductRepository()
	orders := memory.NewOrderRepository()
	engine := placement.NewEngineWithoutMetrics(customers, products, orders, entry)

	handler := NewOrderHandler(engine, orders, entry)
	healthHandler := health.NewHandler("test")
	router := NewRouter(handler, healthHandler, entry)

	return &testEnv{
		router:    router,
		customers: customers,
		products:  products,
		orders:    orders,
	}
}

func (e *testEnv) seed(t *testing.T) {
	t.Helper()
	if err := e.customers.Create(domain.Customer{ID: "C1", Name: "test", CreatedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("seed customer: %v", err)
	}
	if err := e.products.Upsert(domain.StockEntry{SKU: "P1", Quantity: 10, PriceMinor: 500}); err != nil {
		t.Fatalf("seed product: %v", err)
	}
}

func (e *testEnv) placeOrderRequest(t *testing.T, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/orders", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestPlaceOrderEndpoint_Success(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)

	w := env.placeOrderRequest(t, `{"customer_id":"C1","lines":[{"sku":"P1","qty":3}]}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp orderResp
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.OrderID == "" || resp.CustomerID != "C1" || resp.AmountMinor != 1500 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if len(resp.Items) != 1 || resp.Items[0].PriceMinor != 500 {
		t.Fatalf("unexpected items: %+v", resp.Items)
	}
}

func TestPlaceOrderEndpoint_BadJSON(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)

	w := env.placeOrderRequest(t, `{"customer_id":`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestPlaceOrderEndpoint_CustomerNotFound(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)

	w := env.placeOrderRequest(t, `{"customer_id":"ghost","lines":[{"sku":"P1","qty":1}]}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", w.Code, w.Body.String())
	}
}

func TestPlaceOrderEndpoint_InsufficientStock(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)

	w := env.placeOrderRequest(t, `{"customer_id":"C1","lines":[{"sku":"P1","qty":100}]}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
	}

	var payload map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	if payload["error"] == "" {
		t.Fatal("expected error message naming the product")
	}
}

func TestPlaceOrderEndpoint_UnknownProduct(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)

	w := env.placeOrderRequest(t, `{"customer_id":"C1","lines":[{"sku":"P1","qty":1},{"sku":"ghost","qty":1}]}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", w.Code, w.Body.String())
	}
}

func TestPlaceOrderEndpoint_InvalidQty(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)

	w := env.placeOrderRequest(t, `{"customer_id":"C1","lines":[{"sku":"P1","qty":0}]}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", w.Code, w.Body.String())
	}
}

func TestGetOrderEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)

	placed := env.placeOrderRequest(t, `{"customer_id":"C1","lines":[{"sku":"P1","qty":2}]}`)
	if placed.Code != http.StatusCreated {
		t.Fatalf("place failed: %d", placed.Code)
	}
	var created orderResp
	if err := json.Unmarshal(placed.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode created order: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/orders/"+created.OrderID, nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var got orderResp
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode order: %v", err)
	}
	if got.OrderID != created.OrderID || got.AmountMinor != 1000 {
		t.Fatalf("unexpected order: %+v", got)
	}
}

func TestGetOrderEndpoint_NotFound(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/orders/missing", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestListCustomerOrdersEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)

	for i := 0; i < 2; i++ {
		if w := env.placeOrderRequest(t, `{"customer_id":"C1","lines":[{"sku":"P1","qty":1}]}`); w.Code != http.StatusCreated {
			t.Fatalf("place %d failed: %d", i, w.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/customers/C1/orders", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var payload struct {
		Orders []orderResp `json:"orders"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(payload.Orders) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(payload.Orders))
	}
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/healthz", "/livez", "/readyz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200 from %s, got %d", path, w.Code)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 from /metrics, got %d", w.Code)
	}
}
