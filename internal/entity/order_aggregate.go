package entity

import (
	"fmt"

	"github.com/shopspring/decimal"
)

func (o *Order) IsPending() bool {
	return o.Status == OrderPending
}

// Total is the invoice total, or zero when the invoice was not loaded.
func (o *Order) Total() decimal.Decimal {
	if o.Invoice == nil {
		return decimal.Zero
	}
	return o.Invoice.Total
}

// Confirm moves a pending order to confirmed and records the amount paid.
func (o *Order) Confirm(amount decimal.Decimal) error {
	switch o.Status {
	case OrderPending:
	case OrderConfirmed:
		return fmt.Errorf("order %d: %w", o.ID, ErrOrderAlreadyPaid)
	default:
		return fmt.Errorf("order %d is %s: %w", o.ID, o.Status, ErrInvalidState)
	}
	o.Status = OrderConfirmed
	o.AmountPaid = amount
	return nil
}

// CanPay reports whether a payment of amountPaid with method may be attempted
// against order, or against cart when no order exists yet. A cart that is
// given must not be empty, even when the total comes from the order.
func CanPay(order *Order, cart *Cart, amountPaid decimal.Decimal, method PaymentMethod) bool {
	if !method.Valid() {
		return false
	}
	if cart != nil && cart.IsEmpty() {
		return false
	}

	var total decimal.Decimal
	switch {
	case order != nil:
		if order.Invoice == nil {
			return false
		}
		total = order.Invoice.Total
	case cart != nil:
		total = cart.Total()
	default:
		return false
	}

	if !total.IsPositive() {
		return false
	}
	if method == MethodCash && amountPaid.LessThan(total) {
		return false
	}
	return true
}
