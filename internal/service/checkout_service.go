package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/idpuniv/livewire/internal/entity"
	"github.com/idpuniv/livewire/internal/repository"
	"github.com/shopspring/decimal"
)

// CheckoutService builds an order from a cart and pays it in one transaction.
type CheckoutService struct {
	tx       repository.TxManager
	carts    repository.CartRepository
	orders   *OrderService
	payments *PaymentService
}

func NewCheckoutService(tx repository.TxManager, carts repository.CartRepository, orders *OrderService, payments *PaymentService) *CheckoutService {
	return &CheckoutService{
		tx:       tx,
		carts:    carts,
		orders:   orders,
		payments: payments,
	}
}

// CreateOrderAndPay converts the cart into an order, pays it and closes the
// cart. If any step fails nothing is kept, the order included.
func (s *CheckoutService) CreateOrderAndPay(ctx context.Context, cartID int64, amountPaid decimal.Decimal, method entity.PaymentMethod) Result {
	if err := s.precheck(ctx, cartID, amountPaid, method); err != nil {
		slog.Warn("Checkout rejected", "cart_id", cartID, "method", method, "err", err)
		return failure(err)
	}

	var (
		outcome *PaymentOutcome
		events  []entity.Event
	)
	err := retryOnReferenceClash(ctx, s.tx, func(ctx context.Context) error {
		order, err := s.orders.CreateOrderFromCart(ctx, cartID)
		if err != nil {
			return err
		}
		outcome, events, err = s.payments.pay(ctx, order.ID, amountPaid, method)
		if err != nil {
			return err
		}
		return s.carts.Close(ctx, cartID)
	})
	if err != nil {
		slog.Warn("Checkout rolled back", "cart_id", cartID, "method", method, "err", err)
		return failure(err)
	}

	slog.Info("Checkout completed",
		"cart_id", cartID,
		"order_id", outcome.Order.ID,
		"reference", outcome.Payment.Reference,
		"change", outcome.Change.String(),
	)
	return succeed("Order created and paid", outcome, events)
}

// precheck rejects requests that cannot succeed before anything is written.
func (s *CheckoutService) precheck(ctx context.Context, cartID int64, amountPaid decimal.Decimal, method entity.PaymentMethod) error {
	if !method.Valid() {
		return fmt.Errorf("payment method %q: %w", method, entity.ErrValidation)
	}
	cart, err := s.carts.FindByID(ctx, cartID)
	if err != nil {
		return err
	}
	if cart.Status != entity.CartPending {
		return fmt.Errorf("cart %d is %s: %w", cartID, cart.Status, entity.ErrInvalidState)
	}
	if cart.IsEmpty() {
		return fmt.Errorf("cart %d: %w", cartID, entity.ErrEmptyCart)
	}
	if method == entity.MethodCash && amountPaid.LessThan(cart.Total()) {
		return fmt.Errorf("tendered %s below total %s: %w", amountPaid, cart.Total(), entity.ErrInsufficientAmount)
	}
	return nil
}
