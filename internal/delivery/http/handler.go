package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/idpuniv/livewire/internal/entity"
	"github.com/idpuniv/livewire/internal/idempotency"
	"github.com/idpuniv/livewire/internal/service"
)

// Services are the dependencies of Handler.
type Services struct {
	Catalog  *service.CatalogService
	Carts    *service.CartService
	Orders   *service.OrderService
	Payments *service.PaymentService
	Checkout *service.CheckoutService
	Events   *service.Dispatcher
	// Guard deduplicates payment requests carrying an Idempotency-Key header.
	Guard idempotency.Guard
	// Ping reports storage health for /healthz.
	Ping func(ctx context.Context) error
}

// Handler handles HTTP requests for the application.
type Handler struct {
	Services
}

func NewHandler(s Services) *Handler {
	if s.Guard == nil {
		s.Guard = idempotency.Nop{}
	}
	return &Handler{Services: s}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.handleHealth)
	mux.HandleFunc("GET /api/change", h.handleChange)

	mux.HandleFunc("GET /api/products", h.handleListProducts)
	mux.HandleFunc("GET /api/products/{id}", h.handleGetProduct)
	mux.HandleFunc("POST /api/products", h.handleCreateProduct)
	mux.HandleFunc("PUT /api/products/{id}", h.handleUpdateProduct)
	mux.HandleFunc("DELETE /api/products/{id}", h.handleDeleteProduct)

	mux.HandleFunc("POST /api/carts", h.handleOpenCart)
	mux.HandleFunc("GET /api/carts/{id}", h.handleGetCart)
	mux.HandleFunc("PUT /api/carts/{id}/items/{productID}", h.handleSetCartItem)
	mux.HandleFunc("POST /api/carts/{id}/items/{productID}/increment", h.handleIncrementCartItem)
	mux.HandleFunc("POST /api/carts/{id}/items/{productID}/decrement", h.handleDecrementCartItem)
	mux.HandleFunc("DELETE /api/carts/{id}/items/{productID}", h.handleRemoveCartItem)
	mux.HandleFunc("DELETE /api/carts/{id}/items", h.handleClearCart)
	mux.HandleFunc("POST /api/carts/{id}/orders", h.handleCreateOrder)
	mux.HandleFunc("POST /api/carts/{id}/checkout", h.handleCheckout)

	mux.HandleFunc("GET /api/orders/{id}", h.handleGetOrder)
	mux.HandleFunc("POST /api/orders/{id}/items", h.handleAddOrderItem)
	mux.HandleFunc("POST /api/orders/{id}/payments", h.handlePay)
	mux.HandleFunc("GET /api/orders/{id}/payments", h.handlePaymentHistory)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.Ping != nil {
		if err := h.Ping(r.Context()); err != nil {
			slog.Error("Health check failed", "err", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// dispatch publishes events once the request's transaction has committed.
// Publishing outlives a client that hangs up.
func (h *Handler) dispatch(r *http.Request, events []entity.Event) {
	if h.Events == nil || len(events) == 0 {
		return
	}
	h.Events.Dispatch(context.WithoutCancel(r.Context()), events...)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "err", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	code := statusOf(err)
	if code >= http.StatusInternalServerError {
		slog.Error("Request failed", "err", err)
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, entity.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, entity.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, entity.ErrOrderAlreadyPaid),
		errors.Is(err, entity.ErrInvalidState),
		errors.Is(err, entity.ErrDuplicate),
		errors.Is(err, entity.ErrStockInsufficient):
		return http.StatusConflict
	case errors.Is(err, entity.ErrInsufficientAmount), errors.Is(err, entity.ErrEmptyCart):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeResult answers with the Result body, deriving the status from its error.
func writeResult(w http.ResponseWriter, res service.Result, okStatus int) {
	if res.Success {
		writeJSON(w, okStatus, res)
		return
	}
	code := statusOf(res.Err)
	if code >= http.StatusInternalServerError {
		slog.Error("Payment request failed", "err", res.Err)
	}
	writeJSON(w, code, res)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}
