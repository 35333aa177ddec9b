package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/idpuniv/livewire/internal/entity"
	"github.com/idpuniv/livewire/internal/repository"
)

// CartService manages the pending cart of each owner.
type CartService struct {
	tx       repository.TxManager
	carts    repository.CartRepository
	products repository.ProductRepository
}

func NewCartService(tx repository.TxManager, carts repository.CartRepository, products repository.ProductRepository) *CartService {
	return &CartService{
		tx:       tx,
		carts:    carts,
		products: products,
	}
}

// GetOrCreate returns the single pending cart of ownerID, creating it if absent.
func (s *CartService) GetOrCreate(ctx context.Context, ownerID int64) (*entity.Cart, error) {
	if ownerID <= 0 {
		return nil, fmt.Errorf("owner id %d: %w", ownerID, entity.ErrValidation)
	}

	cart, err := s.carts.FindPendingByOwner(ctx, ownerID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, entity.ErrNotFound) {
		return nil, err
	}

	cart, err = s.carts.Create(ctx, ownerID)
	if errors.Is(err, entity.ErrDuplicate) {
		// Lost a race with a concurrent create.
		return s.carts.FindPendingByOwner(ctx, ownerID)
	}
	if err != nil {
		return nil, err
	}

	slog.Info("Cart opened", "cart_id", cart.ID, "owner_id", ownerID)
	return cart, nil
}

func (s *CartService) Get(ctx context.Context, cartID int64) (*entity.Cart, error) {
	return s.carts.FindByID(ctx, cartID)
}

// AddItem sets the quantity of a product line, snapshotting the product's
// current price. A quantity of zero or less removes the line. Unpublished
// products cannot be added.
func (s *CartService) AddItem(ctx context.Context, cartID, productID int64, quantity int) (*entity.Cart, error) {
	return s.mutate(ctx, cartID, productID, func(ctx context.Context, cart *entity.Cart, product *entity.Product) error {
		if quantity <= 0 {
			return s.carts.RemoveItem(ctx, cartID, productID)
		}
		if err := sellable(product); err != nil {
			return err
		}
		return s.carts.UpsertItem(ctx, cartID, productID, quantity, product.Price)
	})
}

// Increment adds one unit. An existing line keeps its price snapshot.
func (s *CartService) Increment(ctx context.Context, cartID, productID int64) (*entity.Cart, error) {
	return s.mutate(ctx, cartID, productID, func(ctx context.Context, cart *entity.Cart, product *entity.Product) error {
		if err := sellable(product); err != nil {
			return err
		}
		if line, ok := cart.Item(productID); ok {
			return s.carts.UpsertItem(ctx, cartID, productID, line.Quantity+1, line.Price)
		}
		return s.carts.UpsertItem(ctx, cartID, productID, 1, product.Price)
	})
}

// Decrement removes one unit, dropping the line when it reaches zero.
func (s *CartService) Decrement(ctx context.Context, cartID, productID int64) (*entity.Cart, error) {
	return s.mutate(ctx, cartID, productID, func(ctx context.Context, cart *entity.Cart, product *entity.Product) error {
		line, ok := cart.Item(productID)
		if !ok {
			return nil
		}
		if line.Quantity <= 1 {
			return s.carts.RemoveItem(ctx, cartID, productID)
		}
		return s.carts.UpsertItem(ctx, cartID, productID, line.Quantity-1, line.Price)
	})
}

func (s *CartService) RemoveItem(ctx context.Context, cartID, productID int64) (*entity.Cart, error) {
	return s.mutate(ctx, cartID, productID, func(ctx context.Context, _ *entity.Cart, _ *entity.Product) error {
		return s.carts.RemoveItem(ctx, cartID, productID)
	})
}

func (s *CartService) Clear(ctx context.Context, cartID int64) (*entity.Cart, error) {
	var cart *entity.Cart
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		if _, err := s.carts.FindByID(ctx, cartID); err != nil {
			return err
		}
		if err := s.carts.Clear(ctx, cartID); err != nil {
			return err
		}
		var err error
		cart, err = s.carts.FindByID(ctx, cartID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return cart, nil
}

// Close retires a pending cart so the owner's next GetOrCreate opens a new one.
func (s *CartService) Close(ctx context.Context, cartID int64) error {
	if err := s.carts.Close(ctx, cartID); err != nil {
		return err
	}
	slog.Info("Cart closed", "cart_id", cartID)
	return nil
}

// sellable rejects products withdrawn from sale. Lines already in a cart can
// still be decremented or removed.
func sellable(p *entity.Product) error {
	if !p.Published {
		return fmt.Errorf("product %d is not published: %w", p.ID, entity.ErrInvalidState)
	}
	return nil
}

// mutate loads the cart and product inside a transaction, applies fn and
// returns the refreshed cart.
func (s *CartService) mutate(ctx context.Context, cartID, productID int64, fn func(ctx context.Context, cart *entity.Cart, product *entity.Product) error) (*entity.Cart, error) {
	var cart *entity.Cart
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		current, err := s.carts.FindByID(ctx, cartID)
		if err != nil {
			return err
		}
		if current.Status != entity.CartPending {
			return fmt.Errorf("cart %d is %s: %w", cartID, current.Status, entity.ErrInvalidState)
		}
		product, err := s.products.FindByID(ctx, productID)
		if err != nil {
			return err
		}
		if err := fn(ctx, current, product); err != nil {
			return err
		}
		cart, err = s.carts.FindByID(ctx, cartID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return cart, nil
}
