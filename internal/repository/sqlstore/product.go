package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/idpuniv/livewire/internal/entity"
	"github.com/idpuniv/livewire/internal/repository"
)

const productColumns = "id, name, code, description, price, stock, published, created_at, updated_at"

type productRepository struct {
	s *Store
}

// NewProductRepository creates a new ProductRepository backed by the store.
func NewProductRepository(s *Store) repository.ProductRepository {
	return &productRepository{s: s}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(row scanner) (*entity.Product, error) {
	var p entity.Product
	err := row.Scan(&p.ID, &p.Name, &p.Code, &p.Description, &p.Price, &p.Stock, &p.Published, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *productRepository) FindByID(ctx context.Context, id int64) (*entity.Product, error) {
	p, err := scanProduct(r.s.queryRow(ctx, "SELECT "+productColumns+" FROM products WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %d: %w", id, entity.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product %d: %w", id, err)
	}
	return p, nil
}

func (r *productRepository) FindAll(ctx context.Context) ([]entity.Product, error) {
	return r.list(ctx, "SELECT "+productColumns+" FROM products ORDER BY name")
}

func (r *productRepository) Search(ctx context.Context, query string) ([]entity.Product, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return r.FindAll(ctx)
	}
	like := "%" + strings.ToLower(query) + "%"
	return r.list(ctx,
		"SELECT "+productColumns+" FROM products WHERE LOWER(name) LIKE ? OR LOWER(code) LIKE ? ORDER BY name",
		like, like,
	)
}

func (r *productRepository) list(ctx context.Context, query string, args ...any) ([]entity.Product, error) {
	rows, err := r.s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	products := []entity.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating product rows: %w", err)
	}
	return products, nil
}

func (r *productRepository) Create(ctx context.Context, p *entity.Product) error {
	now := time.Now().UTC()
	err := r.s.queryRow(ctx,
		"INSERT INTO products (name, code, description, price, stock, published, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id",
		p.Name, p.Code, p.Description, p.Price, p.Stock, p.Published, now, now,
	).Scan(&p.ID)
	if isUniqueViolation(err) {
		return fmt.Errorf("product code %s: %w", p.Code, entity.ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("failed to insert product: %w", err)
	}
	p.CreatedAt, p.UpdatedAt = now, now
	return nil
}

func (r *productRepository) Update(ctx context.Context, p *entity.Product) error {
	now := time.Now().UTC()
	res, err := r.s.exec(ctx,
		"UPDATE products SET name = ?, code = ?, description = ?, price = ?, stock = ?, published = ?, updated_at = ? WHERE id = ?",
		p.Name, p.Code, p.Description, p.Price, p.Stock, p.Published, now, p.ID,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("product code %s: %w", p.Code, entity.ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("failed to update product %d: %w", p.ID, err)
	}
	if err := expectRow(res, fmt.Sprintf("product %d", p.ID)); err != nil {
		return err
	}
	p.UpdatedAt = now
	return nil
}

func (r *productRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.s.exec(ctx, "DELETE FROM products WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete product %d: %w", id, err)
	}
	return expectRow(res, fmt.Sprintf("product %d", id))
}

func (r *productRepository) DecrementStock(ctx context.Context, id int64, qty int) (bool, error) {
	res, err := r.s.exec(ctx,
		"UPDATE products SET stock = stock - ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND stock >= ?",
		qty, id, qty,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update product stock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

func (r *productRepository) Seed(ctx context.Context, products []entity.Product) error {
	var count int
	if err := r.s.queryRow(ctx, "SELECT COUNT(*) FROM products").Scan(&count); err != nil {
		return fmt.Errorf("failed to count products: %w", err)
	}
	if count > 0 {
		return nil // already seeded
	}

	for i := range products {
		if err := r.Create(ctx, &products[i]); err != nil {
			return fmt.Errorf("failed to seed product %s: %w", products[i].Code, err)
		}
	}
	return nil
}

// expectRow maps a zero-row write to entity.ErrNotFound.
func expectRow(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, entity.ErrNotFound)
	}
	return nil
}
