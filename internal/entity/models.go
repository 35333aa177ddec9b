package entity

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a product in the catalog.
type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Code        string          `json:"code"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Published   bool            `json:"published"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type CartStatus string

const (
	CartPending CartStatus = "pending"
	CartClosed  CartStatus = "closed"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderConfirmed OrderStatus = "confirmed"
	OrderCancelled OrderStatus = "cancelled"
)

type InvoiceStatus string

const (
	InvoicePending InvoiceStatus = "pending"
	InvoicePaid    InvoiceStatus = "paid"
)

// PaymentMethod is how the customer tendered funds.
type PaymentMethod string

const (
	MethodCash   PaymentMethod = "cash"
	MethodCard   PaymentMethod = "card"
	MethodMobile PaymentMethod = "mobile"
)

// Valid reports whether m is one of the supported methods.
func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCash, MethodCard, MethodMobile:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentSuccess PaymentStatus = "success"
	PaymentFailed  PaymentStatus = "failed"
)

type TransactionType string

const (
	TransactionPayment    TransactionType = "payment"
	TransactionRefund     TransactionType = "refund"
	TransactionAdjustment TransactionType = "adjustment"
)

type TransactionStatus string

const (
	TransactionPending TransactionStatus = "pending"
	TransactionSuccess TransactionStatus = "success"
	TransactionFailed  TransactionStatus = "failed"
)

// OrderItem is a frozen copy of a cart line taken when the order was created.
type OrderItem struct {
	ID          int64           `json:"id"`
	OrderID     int64           `json:"order_id"`
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	ProductCode string          `json:"product_code"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
	TotalPrice  decimal.Decimal `json:"total_price"`
}

// InvoiceItem mirrors an OrderItem with its tax breakdown.
type InvoiceItem struct {
	ID          int64           `json:"id"`
	InvoiceID   int64           `json:"invoice_id"`
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	ProductCode string          `json:"product_code"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
	TotalPrice  decimal.Decimal `json:"total_price"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
	TaxAmount   decimal.Decimal `json:"tax_amount"`
}

// Invoice is the financial breakdown of an order.
type Invoice struct {
	ID        int64           `json:"id"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Tax       decimal.Decimal `json:"tax"`
	Total     decimal.Decimal `json:"total"`
	Status    InvoiceStatus   `json:"status"`
	Items     []InvoiceItem   `json:"items"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Order represents a committed sale. Invoice and Items are filled by repository fetches.
type Order struct {
	ID         int64           `json:"id"`
	InvoiceID  int64           `json:"invoice_id"`
	OwnerID    int64           `json:"owner_id"`
	Status     OrderStatus     `json:"status"`
	AmountPaid decimal.Decimal `json:"amount_paid"`
	Items      []OrderItem     `json:"items"`
	Invoice    *Invoice        `json:"invoice,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Payment records funds tendered against an order.
type Payment struct {
	ID           int64           `json:"id"`
	OrderID      int64           `json:"order_id"`
	UserID       int64           `json:"user_id"`
	Amount       decimal.Decimal `json:"amount"`
	Method       PaymentMethod   `json:"payment_method"`
	Status       PaymentStatus   `json:"status"`
	Reference    string          `json:"reference"`
	Details      json.RawMessage `json:"payment_details,omitempty"`
	PaidAt       *time.Time      `json:"paid_at,omitempty"`
	Transactions []Transaction   `json:"transactions,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Transaction is a ledger entry tied to a payment.
type Transaction struct {
	ID               int64             `json:"id"`
	Reference        string            `json:"reference"`
	PaymentID        int64             `json:"payment_id"`
	Type             TransactionType   `json:"transaction_type"`
	Amount           decimal.Decimal   `json:"amount"`
	Status           TransactionStatus `json:"status"`
	GatewayReference string            `json:"gateway_reference,omitempty"`
	GatewayResponse  json.RawMessage   `json:"gateway_response,omitempty"`
	Metadata         json.RawMessage   `json:"metadata,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
}

// Receipt is issued once a payment is finalized.
type Receipt struct {
	ID        int64           `json:"id"`
	OrderID   int64           `json:"order_id"`
	PaymentID int64           `json:"payment_id"`
	Reference string          `json:"reference"`
	Amount    decimal.Decimal `json:"amount"`
	Method    PaymentMethod   `json:"payment_method"`
	CreatedAt time.Time       `json:"created_at"`
}

// StockMovement records that a paid order's line was applied to product stock.
type StockMovement struct {
	OrderID   int64 `json:"order_id"`
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
	Applied   bool  `json:"applied"`
}
