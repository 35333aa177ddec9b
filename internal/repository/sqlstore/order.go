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

type orderRepository struct {
	s *Store
}

// NewOrderRepository creates a new OrderRepository backed by the store.
func NewOrderRepository(s *Store) repository.OrderRepository {
	return &orderRepository{s: s}
}

func (r *orderRepository) CreateInvoice(ctx context.Context, inv *entity.Invoice) error {
	now := time.Now().UTC()
	if inv.Status == "" {
		inv.Status = entity.InvoicePending
	}
	err := r.s.queryRow(ctx,
		"INSERT INTO invoices (subtotal, tax, total, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?) RETURNING id",
		inv.Subtotal, inv.Tax, inv.Total, inv.Status, now, now,
	).Scan(&inv.ID)
	if err != nil {
		return fmt.Errorf("failed to insert invoice: %w", err)
	}
	inv.CreatedAt, inv.UpdatedAt = now, now
	return nil
}

func (r *orderRepository) Create(ctx context.Context, o *entity.Order) error {
	now := time.Now().UTC()
	if o.Status == "" {
		o.Status = entity.OrderPending
	}
	err := r.s.queryRow(ctx,
		"INSERT INTO orders (invoice_id, owner_id, status, amount_paid, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?) RETURNING id",
		o.InvoiceID, o.OwnerID, o.Status, o.AmountPaid, now, now,
	).Scan(&o.ID)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	o.CreatedAt, o.UpdatedAt = now, now
	return nil
}

func (r *orderRepository) InsertItems(ctx context.Context, orderID int64, items []entity.OrderItem) error {
	if len(items) == 0 {
		return nil
	}

	args := make([]any, 0, len(items)*7)
	for i := range items {
		items[i].OrderID = orderID
		it := items[i]
		args = append(args, orderID, it.ProductID, it.ProductName, it.ProductCode, it.UnitPrice, it.Quantity, it.TotalPrice)
	}

	query := "INSERT INTO order_items (order_id, product_id, product_name, product_code, unit_price, quantity, total_price) VALUES " +
		placeholders(len(items), 7)
	if _, err := r.s.exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert order items: %w", err)
	}
	return nil
}

func (r *orderRepository) InsertInvoiceItems(ctx context.Context, invoiceID int64, items []entity.InvoiceItem) error {
	if len(items) == 0 {
		return nil
	}

	args := make([]any, 0, len(items)*9)
	for i := range items {
		items[i].InvoiceID = invoiceID
		it := items[i]
		args = append(args, invoiceID, it.ProductID, it.ProductName, it.ProductCode, it.UnitPrice, it.Quantity, it.TotalPrice, it.TaxRate, it.TaxAmount)
	}

	query := "INSERT INTO invoice_items (invoice_id, product_id, product_name, product_code, unit_price, quantity, total_price, tax_rate, tax_amount) VALUES " +
		placeholders(len(items), 9)
	if _, err := r.s.exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert invoice items: %w", err)
	}
	return nil
}

func (r *orderRepository) SaveLine(ctx context.Context, orderID, invoiceID int64, item entity.OrderItem, taxAmount decimal.Decimal) error {
	_, err := r.s.exec(ctx, `
		INSERT INTO order_items (order_id, product_id, product_name, product_code, unit_price, quantity, total_price)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (order_id, product_id)
		DO UPDATE SET quantity = excluded.quantity, total_price = excluded.total_price`,
		orderID, item.ProductID, item.ProductName, item.ProductCode, item.UnitPrice, item.Quantity, item.TotalPrice,
	)
	if err != nil {
		return fmt.Errorf("failed to save order item: %w", err)
	}

	_, err = r.s.exec(ctx, `
		INSERT INTO invoice_items (invoice_id, product_id, product_name, product_code, unit_price, quantity, total_price, tax_rate, tax_amount)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (invoice_id, product_id)
		DO UPDATE SET quantity = excluded.quantity, total_price = excluded.total_price, tax_amount = excluded.tax_amount`,
		invoiceID, item.ProductID, item.ProductName, item.ProductCode, item.UnitPrice, item.Quantity, item.TotalPrice,
		entity.TaxRatePercent, taxAmount,
	)
	if err != nil {
		return fmt.Errorf("failed to save invoice item: %w", err)
	}
	return nil
}

func (r *orderRepository) UpdateInvoiceTotals(ctx context.Context, inv *entity.Invoice) error {
	res, err := r.s.exec(ctx,
		"UPDATE invoices SET subtotal = ?, tax = ?, total = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		inv.Subtotal, inv.Tax, inv.Total, inv.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update invoice %d: %w", inv.ID, err)
	}
	return expectRow(res, fmt.Sprintf("invoice %d", inv.ID))
}

const orderSelect = "SELECT id, invoice_id, owner_id, status, amount_paid, created_at, updated_at FROM orders WHERE id = ?"

func (r *orderRepository) FindByID(ctx context.Context, id int64) (*entity.Order, error) {
	return r.load(ctx, orderSelect, id)
}

func (r *orderRepository) FindForUpdate(ctx context.Context, id int64) (*entity.Order, error) {
	return r.load(ctx, r.s.forUpdate(orderSelect), id)
}

func (r *orderRepository) load(ctx context.Context, query string, id int64) (*entity.Order, error) {
	var o entity.Order
	err := r.s.queryRow(ctx, query, id).Scan(&o.ID, &o.InvoiceID, &o.OwnerID, &o.Status, &o.AmountPaid, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order %d: %w", id, entity.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order %d: %w", id, err)
	}

	if o.Items, err = r.orderItems(ctx, o.ID); err != nil {
		return nil, err
	}

	inv, err := r.invoice(ctx, o.InvoiceID)
	if err != nil && !errors.Is(err, entity.ErrNotFound) {
		return nil, err
	}
	o.Invoice = inv
	return &o, nil
}

func (r *orderRepository) orderItems(ctx context.Context, orderID int64) ([]entity.OrderItem, error) {
	rows, err := r.s.query(ctx, `
		SELECT id, order_id, product_id, product_name, product_code, unit_price, quantity, total_price
		FROM order_items WHERE order_id = ? ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	items := []entity.OrderItem{}
	for rows.Next() {
		var it entity.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.ProductCode, &it.UnitPrice, &it.Quantity, &it.TotalPrice); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order item rows: %w", err)
	}
	return items, nil
}

func (r *orderRepository) invoice(ctx context.Context, id int64) (*entity.Invoice, error) {
	var inv entity.Invoice
	err := r.s.queryRow(ctx,
		"SELECT id, subtotal, tax, total, status, created_at, updated_at FROM invoices WHERE id = ?", id,
	).Scan(&inv.ID, &inv.Subtotal, &inv.Tax, &inv.Total, &inv.Status, &inv.CreatedAt, &inv.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("invoice %d: %w", id, entity.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invoice %d: %w", id, err)
	}

	rows, err := r.s.query(ctx, `
		SELECT id, invoice_id, product_id, product_name, product_code, unit_price, quantity, total_price, tax_rate, tax_amount
		FROM invoice_items WHERE invoice_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoice items: %w", err)
	}
	defer rows.Close()

	inv.Items = []entity.InvoiceItem{}
	for rows.Next() {
		var it entity.InvoiceItem
		if err := rows.Scan(&it.ID, &it.InvoiceID, &it.ProductID, &it.ProductName, &it.ProductCode,
			&it.UnitPrice, &it.Quantity, &it.TotalPrice, &it.TaxRate, &it.TaxAmount); err != nil {
			return nil, fmt.Errorf("failed to scan invoice item: %w", err)
		}
		inv.Items = append(inv.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating invoice item rows: %w", err)
	}
	return &inv, nil
}

func (r *orderRepository) Confirm(ctx context.Context, orderID int64, amountPaid decimal.Decimal) error {
	res, err := r.s.exec(ctx,
		"UPDATE orders SET status = ?, amount_paid = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND status = ?",
		entity.OrderConfirmed, amountPaid, orderID, entity.OrderPending,
	)
	if err != nil {
		return fmt.Errorf("failed to confirm order %d: %w", orderID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n > 0 {
		return nil
	}

	var status entity.OrderStatus
	err = r.s.queryRow(ctx, "SELECT status FROM orders WHERE id = ?", orderID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("order %d: %w", orderID, entity.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to get order %d: %w", orderID, err)
	}
	if status == entity.OrderConfirmed {
		return fmt.Errorf("order %d: %w", orderID, entity.ErrOrderAlreadyPaid)
	}
	return fmt.Errorf("order %d is %s: %w", orderID, status, entity.ErrInvalidState)
}

func (r *orderRepository) MarkInvoicePaid(ctx context.Context, invoiceID int64) error {
	res, err := r.s.exec(ctx,
		"UPDATE invoices SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		entity.InvoicePaid, invoiceID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark invoice %d paid: %w", invoiceID, err)
	}
	return expectRow(res, fmt.Sprintf("invoice %d", invoiceID))
}
