package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/idpuniv/livewire/internal/entity"
	"github.com/idpuniv/livewire/internal/repository"
	"github.com/shopspring/decimal"
)

// PaymentOutcome is the Data of a successful payment Result.
type PaymentOutcome struct {
	Order   *entity.Order   `json:"order"`
	Payment *entity.Payment `json:"payment"`
	Receipt *entity.Receipt `json:"receipt"`
	Change  decimal.Decimal `json:"change"`
}

// PaymentService settles pending orders.
type PaymentService struct {
	tx       repository.TxManager
	orders   repository.OrderRepository
	payments repository.PaymentRepository
	now      func() time.Time
}

func NewPaymentService(tx repository.TxManager, orders repository.OrderRepository, payments repository.PaymentRepository) *PaymentService {
	return &PaymentService{
		tx:       tx,
		orders:   orders,
		payments: payments,
		now:      time.Now,
	}
}

// ProcessPayment records a payment against a pending order. Payment,
// transaction, order and invoice updates and the receipt commit together or
// not at all. The returned events must be dispatched by the caller.
func (s *PaymentService) ProcessPayment(ctx context.Context, orderID int64, amountPaid decimal.Decimal, method entity.PaymentMethod) Result {
	var (
		outcome *PaymentOutcome
		events  []entity.Event
	)
	err := retryOnReferenceClash(ctx, s.tx, func(ctx context.Context) error {
		var err error
		outcome, events, err = s.pay(ctx, orderID, amountPaid, method)
		return err
	})
	if err != nil {
		slog.Warn("Payment rejected", "order_id", orderID, "method", method, "err", err)
		return failure(err)
	}

	slog.Info("Payment completed",
		"order_id", orderID,
		"reference", outcome.Payment.Reference,
		"amount", outcome.Payment.Amount.String(),
		"change", outcome.Change.String(),
	)
	return succeed("Payment completed", outcome, events)
}

// referenceAttempts bounds how often a transaction is rerun after a
// generated reference collided with an existing one.
const referenceAttempts = 3

// retryOnReferenceClash runs fn in a transaction and reruns it from scratch
// when a generated reference was already taken. The failed attempt is rolled
// back first, so each rerun draws fresh references.
func retryOnReferenceClash(ctx context.Context, tx repository.TxManager, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 1; attempt <= referenceAttempts; attempt++ {
		err = tx.WithTx(ctx, fn)
		if !errors.Is(err, entity.ErrReferenceTaken) {
			return err
		}
		slog.Warn("Reference already taken, retrying", "attempt", attempt, "err", err)
	}
	return err
}

// pay runs inside the caller's transaction.
func (s *PaymentService) pay(ctx context.Context, orderID int64, amountPaid decimal.Decimal, method entity.PaymentMethod) (*PaymentOutcome, []entity.Event, error) {
	if !method.Valid() {
		return nil, nil, fmt.Errorf("payment method %q: %w", method, entity.ErrValidation)
	}
	if amountPaid.IsNegative() {
		return nil, nil, fmt.Errorf("amount paid %s: %w", amountPaid, entity.ErrValidation)
	}

	order, err := s.orders.FindForUpdate(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	switch order.Status {
	case entity.OrderPending:
	case entity.OrderConfirmed:
		return nil, nil, fmt.Errorf("order %d: %w", orderID, entity.ErrOrderAlreadyPaid)
	default:
		return nil, nil, fmt.Errorf("order %d is %s: %w", orderID, order.Status, entity.ErrInvalidState)
	}
	if order.Invoice == nil {
		return nil, nil, fmt.Errorf("order %d has no invoice: %w", orderID, entity.ErrValidation)
	}

	total := order.Invoice.Total
	if !total.IsPositive() {
		return nil, nil, fmt.Errorf("order %d total %s: %w", orderID, total, entity.ErrValidation)
	}
	if method == entity.MethodCash && amountPaid.LessThan(total) {
		return nil, nil, fmt.Errorf("tendered %s below total %s: %w", amountPaid, total, entity.ErrInsufficientAmount)
	}

	out, err := s.record(ctx, order, amountPaid, method)
	if err != nil {
		if errors.Is(err, entity.ErrOrderAlreadyPaid) || errors.Is(err, entity.ErrDuplicate) {
			return nil, nil, fmt.Errorf("order %d: %w: %w", orderID, entity.ErrOrderAlreadyPaid, err)
		}
		return nil, nil, fmt.Errorf("%w: %w", entity.ErrTransactionFailed, err)
	}

	events := []entity.Event{
		entity.PaymentCompleted{OrderID: order.ID, Products: order.Items, CompletedAt: *out.Payment.PaidAt},
		entity.OrderPayed{OrderID: order.ID, Status: order.Status, Total: total.String()},
	}
	return out, events, nil
}

func (s *PaymentService) record(ctx context.Context, order *entity.Order, amountPaid decimal.Decimal, method entity.PaymentMethod) (*PaymentOutcome, error) {
	now := s.now().UTC()
	total := order.Invoice.Total
	change := entity.CalculateChange(amountPaid, total)

	details, err := json.Marshal(map[string]any{
		"amount_tendered": amountPaid.String(),
		"change":          change.String(),
		"invoice_id":      order.InvoiceID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payment details: %w", err)
	}

	payment := &entity.Payment{
		OrderID: order.ID,
		UserID:  order.OwnerID,
		Amount:  total,
		Method:  method,
		Status:  entity.PaymentSuccess,
		Details: details,
		PaidAt:  &now,
	}
	if err := s.payments.Create(ctx, payment); err != nil {
		return nil, err
	}

	metadata, err := json.Marshal(map[string]any{
		"order_id":   order.ID,
		"invoice_id": order.InvoiceID,
		"method":     method,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal transaction metadata: %w", err)
	}

	txn := entity.Transaction{
		PaymentID: payment.ID,
		Type:      entity.TransactionPayment,
		Amount:    total,
		Status:    entity.TransactionSuccess,
		Metadata:  metadata,
	}
	if err := s.payments.CreateTransaction(ctx, &txn); err != nil {
		return nil, err
	}
	payment.Transactions = []entity.Transaction{txn}

	if err := s.orders.Confirm(ctx, order.ID, total); err != nil {
		return nil, err
	}
	if err := order.Confirm(total); err != nil {
		return nil, err
	}

	if err := s.orders.MarkInvoicePaid(ctx, order.InvoiceID); err != nil {
		return nil, err
	}
	order.Invoice.Status = entity.InvoicePaid

	receipt := &entity.Receipt{
		OrderID:   order.ID,
		PaymentID: payment.ID,
		Amount:    total,
		Method:    method,
	}
	if err := s.payments.CreateReceipt(ctx, receipt); err != nil {
		return nil, err
	}

	return &PaymentOutcome{Order: order, Payment: payment, Receipt: receipt, Change: change}, nil
}

// History lists the payments recorded for an order.
func (s *PaymentService) History(ctx context.Context, orderID int64) ([]entity.Payment, error) {
	if _, err := s.orders.FindByID(ctx, orderID); err != nil {
		return nil, err
	}
	return s.payments.ListByOrder(ctx, orderID)
}

// CalculateChange returns max(amountPaid - total, 0).
func (s *PaymentService) CalculateChange(amountPaid, total decimal.Decimal) decimal.Decimal {
	return entity.CalculateChange(amountPaid, total)
}

// CanPay reports whether a payment may be attempted against order or cart.
func (s *PaymentService) CanPay(order *entity.Order, cart *entity.Cart, amountPaid decimal.Decimal, method entity.PaymentMethod) bool {
	return entity.CanPay(order, cart, amountPaid, method)
}
