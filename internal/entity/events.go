package entity

import "time"

// Event represents a domain event.
type Event interface {
	EventType() string
}

// PaymentCompleted is emitted once a payment commits. Products lists the
// order lines the stock listener must decrement.
type PaymentCompleted struct {
	OrderID     int64       `json:"order_id"`
	Products    []OrderItem `json:"products"`
	CompletedAt time.Time   `json:"completed_at"`
}

func (e PaymentCompleted) EventType() string { return "PaymentCompleted" }

// OrderPayed carries the final state of a paid order.
type OrderPayed struct {
	OrderID int64       `json:"order_id"`
	Status  OrderStatus `json:"status"`
	Total   string      `json:"total"`
}

func (e OrderPayed) EventType() string { return "OrderPayed" }

// ProductAction tells listeners what happened to a product.
type ProductAction string

const (
	ProductCreated ProductAction = "created"
	ProductEdited  ProductAction = "updated"
	ProductDeleted ProductAction = "deleted"
	ProductStock   ProductAction = "stock"
)

// ProductUpdated carries a product snapshot after a catalog write.
type ProductUpdated struct {
	Action  ProductAction `json:"action"`
	Product Product       `json:"product"`
}

func (e ProductUpdated) EventType() string { return "ProductUpdated" }
