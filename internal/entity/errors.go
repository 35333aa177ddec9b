package entity

import "errors"

var (
	// ErrValidation is returned for bad input before anything is written.
	ErrValidation = errors.New("validation failed")
	// ErrInsufficientAmount is returned when cash tendered is below the total.
	ErrInsufficientAmount = errors.New("insufficient amount")
	ErrEmptyCart          = errors.New("cart is empty")
	ErrNotFound           = errors.New("not found")
	ErrOrderAlreadyPaid   = errors.New("order already paid")
	// ErrInvalidState is returned when an order is not in a state that allows the operation.
	ErrInvalidState = errors.New("invalid state")
	// ErrTransactionFailed wraps any failure inside an atomic order or payment sequence.
	ErrTransactionFailed = errors.New("transaction failed")
	// ErrStockInsufficient is logged, never returned to callers of the payment path.
	ErrStockInsufficient = errors.New("insufficient stock")
	// ErrDuplicate is returned by repositories on unique constraint violations.
	ErrDuplicate = errors.New("already exists")
	// ErrReferenceTaken is returned when a generated reference collides with a
	// stored one. Retrying with a fresh reference is safe.
	ErrReferenceTaken = errors.New("reference already taken")
)
