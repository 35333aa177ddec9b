package service

import (
	"errors"

	"github.com/idpuniv/livewire/internal/entity"
)

// Result is the uniform outcome of payment and checkout operations.
// Errors never escape these operations; they are reported here instead.
type Result struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Data    any            `json:"data,omitempty"`
	Events  []entity.Event `json:"-"`
	Err     error          `json:"-"`
}

func succeed(message string, data any, events []entity.Event) Result {
	return Result{Success: true, Message: message, Data: data, Events: events}
}

func failure(err error) Result {
	return Result{Success: false, Message: failureMessage(err), Err: err}
}

func failureMessage(err error) string {
	switch {
	case errors.Is(err, entity.ErrOrderAlreadyPaid):
		return "Order already paid"
	case errors.Is(err, entity.ErrEmptyCart):
		return "Cart is empty"
	case errors.Is(err, entity.ErrTransactionFailed):
		return "Payment failed, nothing was recorded"
	default:
		return err.Error()
	}
}
