package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/idpuniv/livewire/internal/entity"
	"github.com/idpuniv/livewire/internal/repository"
)

type paymentRepository struct {
	s *Store
}

// NewPaymentRepository creates a new PaymentRepository backed by the store.
func NewPaymentRepository(s *Store) repository.PaymentRepository {
	return &paymentRepository{s: s}
}

// jsonArg passes raw JSON as text: lib/pq would send []byte as bytea.
func jsonArg(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func (r *paymentRepository) Create(ctx context.Context, p *entity.Payment) error {
	now := time.Now().UTC()
	if p.Reference == "" {
		p.Reference = entity.NewPaymentReference()
	}
	if p.Status == "" {
		p.Status = entity.PaymentPending
	}

	err := r.s.queryRow(ctx, `
		INSERT INTO payments (order_id, user_id, amount, payment_method, status, reference, payment_details, paid_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		p.OrderID, p.UserID, p.Amount, p.Method, p.Status, p.Reference, jsonArg(p.Details), p.PaidAt, now, now,
	).Scan(&p.ID)
	if isReferenceViolation(err) {
		return fmt.Errorf("payment reference %s: %w", p.Reference, entity.ErrReferenceTaken)
	}
	if isUniqueViolation(err) {
		return fmt.Errorf("payment for order %d: %w", p.OrderID, entity.ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	p.CreatedAt = now
	return nil
}

func (r *paymentRepository) CreateTransaction(ctx context.Context, t *entity.Transaction) error {
	now := time.Now().UTC()
	if t.Reference == "" {
		t.Reference = entity.NewTransactionReference(t.Type, now)
	}
	if t.Status == "" {
		t.Status = entity.TransactionPending
	}

	var gatewayRef any
	if t.GatewayReference != "" {
		gatewayRef = t.GatewayReference
	}

	err := r.s.queryRow(ctx, `
		INSERT INTO transactions (reference, payment_id, transaction_type, amount, status, gateway_reference, gateway_response, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		t.Reference, t.PaymentID, t.Type, t.Amount, t.Status, gatewayRef, jsonArg(t.GatewayResponse), jsonArg(t.Metadata), now, now,
	).Scan(&t.ID)
	if isReferenceViolation(err) {
		return fmt.Errorf("transaction reference %s: %w", t.Reference, entity.ErrReferenceTaken)
	}
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	t.CreatedAt = now
	return nil
}

func (r *paymentRepository) CreateReceipt(ctx context.Context, rc *entity.Receipt) error {
	now := time.Now().UTC()
	if rc.Reference == "" {
		rc.Reference = entity.NewReceiptReference(now)
	}

	err := r.s.queryRow(ctx, `
		INSERT INTO receipts (order_id, payment_id, reference, amount, payment_method, created_at)
		VALUES (?, ?, ?, ?, ?, ?) RETURNING id`,
		rc.OrderID, rc.PaymentID, rc.Reference, rc.Amount, rc.Method, now,
	).Scan(&rc.ID)
	if isReferenceViolation(err) {
		return fmt.Errorf("receipt reference %s: %w", rc.Reference, entity.ErrReferenceTaken)
	}
	if err != nil {
		return fmt.Errorf("failed to insert receipt: %w", err)
	}
	rc.CreatedAt = now
	return nil
}

func (r *paymentRepository) ListByOrder(ctx context.Context, orderID int64) ([]entity.Payment, error) {
	rows, err := r.s.query(ctx, `
		SELECT id, order_id, user_id, amount, payment_method, status, reference, payment_details, paid_at, created_at
		FROM payments WHERE order_id = ? ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}

	payments := []entity.Payment{}
	for rows.Next() {
		var (
			p       entity.Payment
			details []byte
			paidAt  sql.NullTime
		)
		if err := rows.Scan(&p.ID, &p.OrderID, &p.UserID, &p.Amount, &p.Method, &p.Status, &p.Reference, &details, &paidAt, &p.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		p.Details = details
		if paidAt.Valid {
			t := paidAt.Time
			p.PaidAt = &t
		}
		payments = append(payments, p)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("error iterating payment rows: %w", err)
	}

	for i := range payments {
		txs, err := r.transactions(ctx, payments[i].ID)
		if err != nil {
			return nil, err
		}
		payments[i].Transactions = txs
	}
	return payments, nil
}

func (r *paymentRepository) transactions(ctx context.Context, paymentID int64) ([]entity.Transaction, error) {
	rows, err := r.s.query(ctx, `
		SELECT id, reference, payment_id, transaction_type, amount, status, gateway_reference, gateway_response, metadata, created_at
		FROM transactions WHERE payment_id = ? ORDER BY id`, paymentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	txs := []entity.Transaction{}
	for rows.Next() {
		var (
			t                  entity.Transaction
			gatewayRef         sql.NullString
			response, metadata []byte
		)
		if err := rows.Scan(&t.ID, &t.Reference, &t.PaymentID, &t.Type, &t.Amount, &t.Status, &gatewayRef, &response, &metadata, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		t.GatewayReference = gatewayRef.String
		t.GatewayResponse = response
		t.Metadata = metadata
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transaction rows: %w", err)
	}
	return txs, nil
}
