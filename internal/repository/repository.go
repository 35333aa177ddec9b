package repository

import (
	"context"

	"github.com/idpuniv/livewire/internal/entity"
	"github.com/shopspring/decimal"
)

// TxManager runs fn inside a database transaction carried by ctx.
// A call made with a ctx that already carries a transaction joins it.
type TxManager interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ProductRepository handles persistence for Products.
type ProductRepository interface {
	FindByID(ctx context.Context, id int64) (*entity.Product, error)
	FindAll(ctx context.Context) ([]entity.Product, error)
	// Search matches name or code, case-insensitively.
	Search(ctx context.Context, query string) ([]entity.Product, error)
	Create(ctx context.Context, p *entity.Product) error
	Update(ctx context.Context, p *entity.Product) error
	Delete(ctx context.Context, id int64) error
	// DecrementStock lowers stock by qty unless that would make it negative.
	// It reports whether the row was changed.
	DecrementStock(ctx context.Context, id int64, qty int) (bool, error)
	// Seed inserts initial products if none exist.
	Seed(ctx context.Context, products []entity.Product) error
}

// CartRepository handles persistence for Carts and their lines.
type CartRepository interface {
	FindByID(ctx context.Context, id int64) (*entity.Cart, error)
	FindPendingByOwner(ctx context.Context, ownerID int64) (*entity.Cart, error)
	// Create returns entity.ErrDuplicate when the owner already has a pending cart.
	Create(ctx context.Context, ownerID int64) (*entity.Cart, error)
	UpsertItem(ctx context.Context, cartID, productID int64, quantity int, price decimal.Decimal) error
	RemoveItem(ctx context.Context, cartID, productID int64) error
	Clear(ctx context.Context, cartID int64) error
	// Close moves a pending cart to closed; any other state is entity.ErrInvalidState.
	Close(ctx context.Context, cartID int64) error
}

// OrderRepository handles persistence for Orders and their Invoices.
type OrderRepository interface {
	CreateInvoice(ctx context.Context, inv *entity.Invoice) error
	Create(ctx context.Context, o *entity.Order) error
	InsertItems(ctx context.Context, orderID int64, items []entity.OrderItem) error
	InsertInvoiceItems(ctx context.Context, invoiceID int64, items []entity.InvoiceItem) error
	// SaveLine upserts the order and invoice line of one product.
	SaveLine(ctx context.Context, orderID, invoiceID int64, item entity.OrderItem, taxAmount decimal.Decimal) error
	UpdateInvoiceTotals(ctx context.Context, inv *entity.Invoice) error
	// FindByID returns the order with items, invoice and invoice items.
	FindByID(ctx context.Context, id int64) (*entity.Order, error)
	// FindForUpdate returns the order and its invoice, locking the order row
	// until the surrounding transaction ends.
	FindForUpdate(ctx context.Context, id int64) (*entity.Order, error)
	// Confirm moves a pending order to confirmed. It returns
	// entity.ErrOrderAlreadyPaid when the order was no longer pending.
	Confirm(ctx context.Context, orderID int64, amountPaid decimal.Decimal) error
	MarkInvoicePaid(ctx context.Context, invoiceID int64) error
}

// PaymentRepository handles persistence for Payments, Transactions and Receipts.
type PaymentRepository interface {
	Create(ctx context.Context, p *entity.Payment) error
	CreateTransaction(ctx context.Context, t *entity.Transaction) error
	CreateReceipt(ctx context.Context, r *entity.Receipt) error
	// ListByOrder returns the payments of an order with their transactions.
	ListByOrder(ctx context.Context, orderID int64) ([]entity.Payment, error)
}

// StockLedger records which order lines have been applied to product stock.
type StockLedger interface {
	HasMovements(ctx context.Context, orderID int64) (bool, error)
	Record(ctx context.Context, movements []entity.StockMovement) error
	ListByOrder(ctx context.Context, orderID int64) ([]entity.StockMovement, error)
}
