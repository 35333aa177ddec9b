package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/idpuniv/livewire/internal/idempotency"
	"github.com/idpuniv/livewire/internal/repository/sqlstore"
	"github.com/idpuniv/livewire/internal/service"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
}

func (p *recordingPublisher) PublishEvent(_ context.Context, topic, _ string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	return nil
}

type testServer struct {
	handler http.Handler
	pub     *recordingPublisher
}

func setupServer(t *testing.T, guard idempotency.Guard) *testServer {
	t.Helper()
	ctx := context.Background()
	store, err := sqlstore.Open(ctx, sqlstore.SQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	products := sqlstore.NewProductRepository(store)
	carts := sqlstore.NewCartRepository(store)
	orders := sqlstore.NewOrderRepository(store)
	payments := sqlstore.NewPaymentRepository(store)
	require.NoError(t, products.Seed(ctx, sqlstore.DemoProducts()))

	orderSvc := service.NewOrderService(store, orders, carts, products)
	paymentSvc := service.NewPaymentService(store, orders, payments)
	pub := &recordingPublisher{}

	h := NewHandler(Services{
		Catalog:  service.NewCatalogService(products),
		Carts:    service.NewCartService(store, carts, products),
		Orders:   orderSvc,
		Payments: paymentSvc,
		Checkout: service.NewCheckoutService(store, carts, orderSvc, paymentSvc),
		Events:   service.NewDispatcher(pub),
		Guard:    guard,
		Ping:     store.PingContext,
	})
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return &testServer{handler: EnableCORS(mux), pub: pub}
}

func (s *testServer) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

type cartBody struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
	Total  string `json:"total"`
	Items  []struct {
		ProductID int64 `json:"product_id"`
		Quantity  int   `json:"quantity"`
	} `json:"items"`
}

type resultBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		Change string `json:"change"`
		Order  struct {
			ID     int64  `json:"id"`
			Status string `json:"status"`
		} `json:"order"`
	} `json:"data"`
}

// openCart fills a cart with 2 × Lait (800) and 1 × product 3 (1500).
func (s *testServer) openCart(t *testing.T) cartBody {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/carts", map[string]any{"owner_id": 1})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	cart := decodeBody[cartBody](t, w)

	w = s.do(t, http.MethodPut, pathf("/api/carts/%d/items/1", cart.ID), map[string]any{"quantity": 2})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = s.do(t, http.MethodPost, pathf("/api/carts/%d/items/3/increment", cart.ID), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decodeBody[cartBody](t, w)
}

func TestProductFlow(t *testing.T) {
	s := setupServer(t, nil)

	w := s.do(t, http.MethodGet, "/api/products", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeBody[[]map[string]any](t, w), 6)

	w = s.do(t, http.MethodPost, "/api/products", map[string]any{
		"name": "Pain", "code": "100", "price": "500", "stock": 5,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decodeBody[map[string]any](t, w)
	id := int64(created["id"].(float64))

	w = s.do(t, http.MethodPut, pathf("/api/products/%d", id), map[string]any{
		"name": "Pain complet", "code": "100", "price": "550", "stock": 7,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	cart := s.openCart(t)
	w = s.do(t, http.MethodPut, pathf("/api/carts/%d/items/%d", cart.ID, id), map[string]any{"quantity": 1})
	assert.Equal(t, http.StatusConflict, w.Code, "unpublished products are not for sale")

	w = s.do(t, http.MethodGet, "/api/products?q=complet", nil)
	require.Equal(t, http.StatusOK, w.Code)
	found := decodeBody[[]map[string]any](t, w)
	require.Len(t, found, 1)
	assert.Equal(t, "550", found[0]["price"])

	w = s.do(t, http.MethodPost, "/api/products", map[string]any{"name": "dup", "code": "100", "price": "1"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPost, "/api/products", map[string]any{"name": "", "code": "101", "price": "1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodDelete, pathf("/api/products/%d", id), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(t, http.MethodGet, pathf("/api/products/%d", id), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"error"`)

	w = s.do(t, http.MethodGet, "/api/products/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Equal(t, []string{"products.updated", "products.updated", "products.updated"}, s.pub.topics)
}

func TestCheckoutFlow(t *testing.T) {
	s := setupServer(t, nil)
	cart := s.openCart(t)
	require.Len(t, cart.Items, 2)

	w := s.do(t, http.MethodPost, pathf("/api/carts/%d/checkout", cart.ID), map[string]any{"amount_paid": "3719", "method": "cash"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.False(t, decodeBody[resultBody](t, w).Success)

	w = s.do(t, http.MethodPost, pathf("/api/carts/%d/checkout", cart.ID), map[string]any{"amount_paid": "4000", "method": "cash"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	res := decodeBody[resultBody](t, w)
	assert.True(t, res.Success)
	assert.Equal(t, "280", res.Data.Change)
	assert.Equal(t, "confirmed", res.Data.Order.Status)
	assert.ElementsMatch(t, []string{"payments.completed", "orders.payed"}, s.pub.topics)

	w = s.do(t, http.MethodGet, pathf("/api/carts/%d", cart.ID), nil)
	assert.Equal(t, "closed", decodeBody[cartBody](t, w).Status)

	w = s.do(t, http.MethodGet, pathf("/api/orders/%d/payments", res.Data.Order.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeBody[[]map[string]any](t, w), 1)
}

func TestOrderThenPay(t *testing.T) {
	s := setupServer(t, nil)
	cart := s.openCart(t)

	w := s.do(t, http.MethodPost, pathf("/api/carts/%d/orders", cart.ID), nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	order := decodeBody[map[string]any](t, w)
	id := int64(order["id"].(float64))
	assert.Equal(t, "pending", order["status"])

	w = s.do(t, http.MethodPost, pathf("/api/orders/%d/items", id), map[string]any{"product_id": 2, "quantity": 1})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, pathf("/api/orders/%d/payments", id), map[string]any{"amount_paid": "0", "method": "card"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, pathf("/api/orders/%d/payments", id), map[string]any{"amount_paid": "0", "method": "card"})
	assert.Equal(t, http.StatusConflict, w.Code)
	res := decodeBody[resultBody](t, w)
	assert.False(t, res.Success)
	assert.Equal(t, "Order already paid", res.Message)

	w = s.do(t, http.MethodPost, pathf("/api/orders/%d/payments", id), map[string]any{"amount_paid": "0", "method": "barter"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/orders/999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEmptyCartCheckout(t *testing.T) {
	s := setupServer(t, nil)
	w := s.do(t, http.MethodPost, "/api/carts", map[string]any{"owner_id": 7})
	cart := decodeBody[cartBody](t, w)

	w = s.do(t, http.MethodPost, pathf("/api/carts/%d/orders", cart.ID), nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = s.do(t, http.MethodPost, "/api/carts", map[string]any{"owner_id": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIdempotencyKey(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	s := setupServer(t, idempotency.NewRedisGuard(rdb, time.Hour))
	cart := s.openCart(t)
	path := pathf("/api/carts/%d/checkout", cart.ID)

	w := s.do(t, http.MethodPost, path, map[string]any{"amount_paid": "10", "method": "cash"}, "Idempotency-Key", "k1")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = s.do(t, http.MethodPost, path, map[string]any{"amount_paid": "4000", "method": "cash"}, "Idempotency-Key", "k1")
	require.Equal(t, http.StatusCreated, w.Code, "a failed attempt releases its key")

	w = s.do(t, http.MethodPost, path, map[string]any{"amount_paid": "4000", "method": "cash"}, "Idempotency-Key", "k1")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "duplicate request")
}

type downGuard struct{}

func (downGuard) Claim(context.Context, string) (bool, error) { return false, errors.New("redis down") }
func (downGuard) Release(context.Context, string) error      { return nil }

func TestIdempotencyGuardDown(t *testing.T) {
	s := setupServer(t, downGuard{})
	cart := s.openCart(t)

	w := s.do(t, http.MethodPost, pathf("/api/carts/%d/checkout", cart.ID), map[string]any{"amount_paid": "4000", "method": "cash"}, "Idempotency-Key", "k")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = s.do(t, http.MethodPost, pathf("/api/carts/%d/checkout", cart.ID), map[string]any{"amount_paid": "4000", "method": "cash"})
	assert.Equal(t, http.StatusCreated, w.Code, "requests without a key bypass the guard")
}

func TestCartEndpoints(t *testing.T) {
	s := setupServer(t, nil)
	cart := s.openCart(t)
	assert.Equal(t, "3720", cart.Total)

	w := s.do(t, http.MethodPost, pathf("/api/carts/%d/items/3/decrement", cart.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeBody[cartBody](t, w).Items, 1)

	w = s.do(t, http.MethodDelete, pathf("/api/carts/%d/items/1", cart.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decodeBody[cartBody](t, w).Items)

	w = s.do(t, http.MethodPut, pathf("/api/carts/%d/items/1", cart.ID), map[string]any{"quantity": 3})
	require.Equal(t, http.StatusOK, w.Code)
	w = s.do(t, http.MethodDelete, pathf("/api/carts/%d/items", cart.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decodeBody[cartBody](t, w).Items)

	w = s.do(t, http.MethodPut, pathf("/api/carts/%d/items/999", cart.ID), map[string]any{"quantity": 1})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPut, pathf("/api/carts/%d/items/1", cart.ID), "not an object")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChangeAndHealth(t *testing.T) {
	s := setupServer(t, nil)

	w := s.do(t, http.MethodGet, "/api/change?amount_paid=5000&total=3720", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1280", decodeBody[map[string]string](t, w)["change"])

	w = s.do(t, http.MethodGet, "/api/change?amount_paid=100&total=3720", nil)
	assert.Equal(t, "0", decodeBody[map[string]string](t, w)["change"])

	w = s.do(t, http.MethodGet, "/api/change?amount_paid=x&total=1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodOptions, "/api/products", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimit(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	h := RateLimit(0.001, 2)(ok)

	codes := make([]int, 3)
	for i := range codes {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		codes[i] = w.Code
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	unlimited := RateLimit(0, 0)(ok)
	for range 5 {
		w := httptest.NewRecorder()
		unlimited.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func pathf(format string, args ...any) string {
	return fmt.Sprintf(format, args...)
}
