package service

import (
	"context"
	"testing"

	"github.com/idpuniv/livewire/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCartGetOrCreateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	first, err := h.cart.GetOrCreate(ctx, 1)
	require.NoError(t, err)
	second, err := h.cart.GetOrCreate(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	other, err := h.cart.GetOrCreate(ctx, 2)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)

	_, err = h.cart.GetOrCreate(ctx, 0)
	assert.ErrorIs(t, err, entity.ErrValidation)

	require.NoError(t, h.cart.Close(ctx, first.ID))
	fresh, err := h.cart.GetOrCreate(ctx, 1)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, fresh.ID)
}

func TestCartItems(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	cart, milk, juice := h.scenarioCart(t, 1)

	require.Len(t, cart.Items, 2)
	assert.True(t, cart.Subtotal().Equal(dec("3100")))
	assert.True(t, cart.Tax().Equal(dec("620")))
	assert.True(t, cart.Total().Equal(dec("3720")))

	cart, err := h.cart.Increment(ctx, cart.ID, milk.ID)
	require.NoError(t, err)
	line, ok := cart.Item(milk.ID)
	require.True(t, ok)
	assert.Equal(t, 3, line.Quantity)

	cart, err = h.cart.Decrement(ctx, cart.ID, juice.ID)
	require.NoError(t, err)
	_, ok = cart.Item(juice.ID)
	assert.False(t, ok, "decrement to zero removes the line")

	cart, err = h.cart.AddItem(ctx, cart.ID, milk.ID, 0)
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty(), "quantity zero removes the line")

	cart, err = h.cart.Increment(ctx, cart.ID, juice.ID)
	require.NoError(t, err)
	line, ok = cart.Item(juice.ID)
	require.True(t, ok)
	assert.Equal(t, 1, line.Quantity)
	assert.True(t, line.Price.Equal(dec("1500")))

	cart, err = h.cart.RemoveItem(ctx, cart.ID, juice.ID)
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())

	_, err = h.cart.AddItem(ctx, cart.ID, milk.ID, 4)
	require.NoError(t, err)
	cart, err = h.cart.Clear(ctx, cart.ID)
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())
}

func TestCartNotFound(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	milk := h.product(t, "001", 800, 1)
	cart, err := h.cart.GetOrCreate(ctx, 1)
	require.NoError(t, err)

	_, err = h.cart.AddItem(ctx, cart.ID, 9999, 1)
	assert.ErrorIs(t, err, entity.ErrNotFound)

	_, err = h.cart.AddItem(ctx, 9999, milk.ID, 1)
	assert.ErrorIs(t, err, entity.ErrNotFound)

	_, err = h.cart.Get(ctx, 9999)
	assert.ErrorIs(t, err, entity.ErrNotFound)

	_, err = h.cart.Clear(ctx, 9999)
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestCartLinePriceIsSnapshot(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	cart, milk, _ := h.scenarioCart(t, 1)

	milk.Price = dec("900")
	require.NoError(t, h.products.Update(ctx, milk))

	cart, err := h.cart.Increment(ctx, cart.ID, milk.ID)
	require.NoError(t, err)
	line, _ := cart.Item(milk.ID)
	assert.True(t, line.Price.Equal(dec("800")), "increment keeps the snapshot")

	cart, err = h.cart.AddItem(ctx, cart.ID, milk.ID, 2)
	require.NoError(t, err)
	line, _ = cart.Item(milk.ID)
	assert.True(t, line.Price.Equal(dec("900")), "setting the quantity refreshes the snapshot")
}

func TestClosedCartRejectsEdits(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	cart, milk, _ := h.scenarioCart(t, 1)

	require.NoError(t, h.cart.Close(ctx, cart.ID))
	_, err := h.cart.AddItem(ctx, cart.ID, milk.ID, 1)
	assert.ErrorIs(t, err, entity.ErrInvalidState)
	assert.ErrorIs(t, h.cart.Close(ctx, cart.ID), entity.ErrInvalidState)
}

func TestCartRejectsUnpublishedProducts(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	cart, milk, _ := h.scenarioCart(t, 1)

	draft := &entity.Product{Name: "Draft", Code: "900", Price: dec("100"), Stock: 10}
	require.NoError(t, h.products.Create(ctx, draft))

	_, err := h.cart.AddItem(ctx, cart.ID, draft.ID, 1)
	assert.ErrorIs(t, err, entity.ErrInvalidState)
	_, err = h.cart.Increment(ctx, cart.ID, draft.ID)
	assert.ErrorIs(t, err, entity.ErrInvalidState)

	milk.Published = false
	require.NoError(t, h.products.Update(ctx, milk))

	_, err = h.cart.Increment(ctx, cart.ID, milk.ID)
	assert.ErrorIs(t, err, entity.ErrInvalidState)

	cart, err = h.cart.Decrement(ctx, cart.ID, milk.ID)
	require.NoError(t, err, "withdrawn lines can still be reduced")
	line, ok := cart.Item(milk.ID)
	require.True(t, ok)
	assert.Equal(t, 1, line.Quantity)

	cart, err = h.cart.RemoveItem(ctx, cart.ID, milk.ID)
	require.NoError(t, err)
	_, ok = cart.Item(milk.ID)
	assert.False(t, ok)
	assert.Len(t, cart.Items, 1)
}
