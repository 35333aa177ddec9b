package sqlstore

import (
	"context"
	"fmt"

	"github.com/idpuniv/livewire/internal/entity"
	"github.com/idpuniv/livewire/internal/repository"
)

type stockLedger struct {
	s *Store
}

// NewStockLedger creates a StockLedger backed by the stock_movements table.
func NewStockLedger(s *Store) repository.StockLedger {
	return &stockLedger{s: s}
}

func (l *stockLedger) HasMovements(ctx context.Context, orderID int64) (bool, error) {
	var count int
	if err := l.s.queryRow(ctx, "SELECT COUNT(*) FROM stock_movements WHERE order_id = ?", orderID).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to count stock movements for order %d: %w", orderID, err)
	}
	return count > 0, nil
}

// Record appends movements. A second record for the same order line fails
// with entity.ErrDuplicate.
func (l *stockLedger) Record(ctx context.Context, movements []entity.StockMovement) error {
	if len(movements) == 0 {
		return nil
	}

	args := make([]any, 0, len(movements)*4)
	for _, m := range movements {
		args = append(args, m.OrderID, m.ProductID, m.Quantity, m.Applied)
	}

	_, err := l.s.exec(ctx,
		"INSERT INTO stock_movements (order_id, product_id, quantity, applied) VALUES "+placeholders(len(movements), 4),
		args...,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("stock movement for order %d: %w", movements[0].OrderID, entity.ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("failed to insert stock movements: %w", err)
	}
	return nil
}

func (l *stockLedger) ListByOrder(ctx context.Context, orderID int64) ([]entity.StockMovement, error) {
	rows, err := l.s.query(ctx,
		"SELECT order_id, product_id, quantity, applied FROM stock_movements WHERE order_id = ? ORDER BY product_id",
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load stock movements for order %d: %w", orderID, err)
	}
	defer rows.Close()

	movements := []entity.StockMovement{}
	for rows.Next() {
		var m entity.StockMovement
		if err := rows.Scan(&m.OrderID, &m.ProductID, &m.Quantity, &m.Applied); err != nil {
			return nil, fmt.Errorf("failed to scan stock movement: %w", err)
		}
		movements = append(movements, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stock movement rows: %w", err)
	}
	return movements, nil
}
