package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/idpuniv/livewire/internal/entity"
	"github.com/idpuniv/livewire/internal/service"
	"github.com/shopspring/decimal"
)

type PayRequest struct {
	AmountPaid decimal.Decimal      `json:"amount_paid"`
	Method     entity.PaymentMethod `json:"method"`
}

type AddOrderItemRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

func (h *Handler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	cartID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	order, err := h.Orders.CreateOrderFromCart(r.Context(), cartID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	order, err := h.Orders.GetOrder(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *Handler) handleAddOrderItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req AddOrderItemRequest
	if !decode(w, r, &req) {
		return
	}
	order, err := h.Orders.AddItemToExistingOrder(r.Context(), id, req.ProductID, req.Quantity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *Handler) handlePay(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req PayRequest
	if !decode(w, r, &req) {
		return
	}
	h.once(w, r, "order:"+strconv.FormatInt(id, 10), func() service.Result {
		return h.Payments.ProcessPayment(r.Context(), id, req.AmountPaid, req.Method)
	})
}

func (h *Handler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	cartID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req PayRequest
	if !decode(w, r, &req) {
		return
	}
	h.once(w, r, "cart:"+strconv.FormatInt(cartID, 10), func() service.Result {
		return h.Checkout.CreateOrderAndPay(r.Context(), cartID, req.AmountPaid, req.Method)
	})
}

// once runs a payment at most once per Idempotency-Key. The key is released
// when the payment fails so the client may retry.
func (h *Handler) once(w http.ResponseWriter, r *http.Request, scope string, pay func() service.Result) {
	key := r.Header.Get("Idempotency-Key")
	if key != "" {
		key = scope + ":" + key
		claimed, err := h.Guard.Claim(r.Context(), key)
		if err != nil {
			slog.Error("Idempotency guard unavailable", "err", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "idempotency guard unavailable"})
			return
		}
		if !claimed {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "duplicate request"})
			return
		}
	}

	res := pay()
	if !res.Success && key != "" {
		if err := h.Guard.Release(r.Context(), key); err != nil {
			slog.Warn("Failed to release idempotency key", "key", key, "err", err)
		}
	}
	if res.Success {
		h.dispatch(r, res.Events)
	}
	writeResult(w, res, http.StatusCreated)
}

func (h *Handler) handlePaymentHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	payments, err := h.Payments.History(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if payments == nil {
		payments = []entity.Payment{}
	}
	writeJSON(w, http.StatusOK, payments)
}

func (h *Handler) handleChange(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	paid, err := decimal.NewFromString(q.Get("amount_paid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid amount_paid"})
		return
	}
	total, err := decimal.NewFromString(q.Get("total"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid total"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"change": h.Payments.CalculateChange(paid, total).String()})
}
