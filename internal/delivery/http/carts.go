package http

import (
	"context"
	"net/http"

	"github.com/idpuniv/livewire/internal/entity"
)

type OpenCartRequest struct {
	OwnerID int64 `json:"owner_id"`
}

type SetItemRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) handleOpenCart(w http.ResponseWriter, r *http.Request) {
	var req OpenCartRequest
	if !decode(w, r, &req) {
		return
	}
	cart, err := h.Carts.GetOrCreate(r.Context(), req.OwnerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cartView(cart))
}

func (h *Handler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	cart, err := h.Carts.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cartView(cart))
}

func (h *Handler) handleSetCartItem(w http.ResponseWriter, r *http.Request) {
	var req SetItemRequest
	h.cartItem(w, r, func(ctx context.Context, cartID, productID int64) (*entity.Cart, error) {
		if !decode(w, r, &req) {
			return nil, nil
		}
		return h.Carts.AddItem(ctx, cartID, productID, req.Quantity)
	})
}

func (h *Handler) handleIncrementCartItem(w http.ResponseWriter, r *http.Request) {
	h.cartItem(w, r, h.Carts.Increment)
}

func (h *Handler) handleDecrementCartItem(w http.ResponseWriter, r *http.Request) {
	h.cartItem(w, r, h.Carts.Decrement)
}

func (h *Handler) handleRemoveCartItem(w http.ResponseWriter, r *http.Request) {
	h.cartItem(w, r, h.Carts.RemoveItem)
}

func (h *Handler) handleClearCart(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	cart, err := h.Carts.Clear(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cartView(cart))
}

// cartItem parses the cart and product ids and applies fn. A nil cart with a
// nil error means fn already answered.
func (h *Handler) cartItem(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, cartID, productID int64) (*entity.Cart, error)) {
	cartID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	productID, ok := pathID(w, r, "productID")
	if !ok {
		return
	}
	cart, err := fn(r.Context(), cartID, productID)
	if err != nil {
		writeError(w, err)
		return
	}
	if cart != nil {
		writeJSON(w, http.StatusOK, cartView(cart))
	}
}

// CartView is a cart with its computed totals.
type CartView struct {
	*entity.Cart
	Subtotal string `json:"subtotal"`
	Tax      string `json:"tax"`
	Total    string `json:"total"`
}

func cartView(c *entity.Cart) CartView {
	if c.Items == nil {
		c.Items = []entity.CartItem{}
	}
	return CartView{
		Cart:     c,
		Subtotal: c.Subtotal().String(),
		Tax:      c.Tax().String(),
		Total:    c.Total().String(),
	}
}
