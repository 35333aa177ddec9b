package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/idpuniv/livewire/internal/entity"
	"github.com/idpuniv/livewire/internal/repository"
	"github.com/shopspring/decimal"
)

type cartRepository struct {
	s *Store
}

// NewCartRepository creates a new CartRepository backed by the store.
func NewCartRepository(s *Store) repository.CartRepository {
	return &cartRepository{s: s}
}

func (r *cartRepository) FindByID(ctx context.Context, id int64) (*entity.Cart, error) {
	return r.find(ctx, "SELECT id, owner_id, status, created_at, updated_at FROM carts WHERE id = ?", id)
}

func (r *cartRepository) FindPendingByOwner(ctx context.Context, ownerID int64) (*entity.Cart, error) {
	return r.find(ctx,
		"SELECT id, owner_id, status, created_at, updated_at FROM carts WHERE owner_id = ? AND status = ?",
		ownerID, entity.CartPending,
	)
}

func (r *cartRepository) find(ctx context.Context, query string, args ...any) (*entity.Cart, error) {
	var c entity.Cart
	err := r.s.queryRow(ctx, query, args...).Scan(&c.ID, &c.OwnerID, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("cart: %w", entity.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	items, err := r.items(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	c.Items = items
	return &c, nil
}

func (r *cartRepository) items(ctx context.Context, cartID int64) ([]entity.CartItem, error) {
	rows, err := r.s.query(ctx, `
		SELECT ci.cart_id, ci.product_id, p.name, p.code, ci.quantity, ci.price
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = ?
		ORDER BY ci.id`, cartID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cart items: %w", err)
	}
	defer rows.Close()

	items := []entity.CartItem{}
	for rows.Next() {
		var it entity.CartItem
		if err := rows.Scan(&it.CartID, &it.ProductID, &it.ProductName, &it.ProductCode, &it.Quantity, &it.Price); err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cart item rows: %w", err)
	}
	return items, nil
}

func (r *cartRepository) Create(ctx context.Context, ownerID int64) (*entity.Cart, error) {
	now := time.Now().UTC()
	c := &entity.Cart{OwnerID: ownerID, Status: entity.CartPending, Items: []entity.CartItem{}, CreatedAt: now, UpdatedAt: now}
	err := r.s.queryRow(ctx,
		"INSERT INTO carts (owner_id, status, created_at, updated_at) VALUES (?, ?, ?, ?) RETURNING id",
		ownerID, c.Status, now, now,
	).Scan(&c.ID)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("pending cart for owner %d: %w", ownerID, entity.ErrDuplicate)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to insert cart: %w", err)
	}
	return c, nil
}

func (r *cartRepository) UpsertItem(ctx context.Context, cartID, productID int64, quantity int, price decimal.Decimal) error {
	_, err := r.s.exec(ctx, `
		INSERT INTO cart_items (cart_id, product_id, quantity, price) VALUES (?, ?, ?, ?)
		ON CONFLICT (cart_id, product_id)
		DO UPDATE SET quantity = excluded.quantity, price = excluded.price, updated_at = CURRENT_TIMESTAMP`,
		cartID, productID, quantity, price,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert cart item: %w", err)
	}
	return nil
}

func (r *cartRepository) RemoveItem(ctx context.Context, cartID, productID int64) error {
	if _, err := r.s.exec(ctx, "DELETE FROM cart_items WHERE cart_id = ? AND product_id = ?", cartID, productID); err != nil {
		return fmt.Errorf("failed to delete cart item: %w", err)
	}
	return nil
}

func (r *cartRepository) Clear(ctx context.Context, cartID int64) error {
	if _, err := r.s.exec(ctx, "DELETE FROM cart_items WHERE cart_id = ?", cartID); err != nil {
		return fmt.Errorf("failed to clear cart %d: %w", cartID, err)
	}
	return nil
}

func (r *cartRepository) Close(ctx context.Context, cartID int64) error {
	res, err := r.s.exec(ctx,
		"UPDATE carts SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND status = ?",
		entity.CartClosed, cartID, entity.CartPending,
	)
	if err != nil {
		return fmt.Errorf("failed to close cart %d: %w", cartID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n > 0 {
		return nil
	}

	var status entity.CartStatus
	err = r.s.queryRow(ctx, "SELECT status FROM carts WHERE id = ?", cartID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("cart %d: %w", cartID, entity.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to get cart %d: %w", cartID, err)
	}
	return fmt.Errorf("cart %d is %s: %w", cartID, status, entity.ErrInvalidState)
}
