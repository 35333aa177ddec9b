package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartItem represents a line currently in an owner's cart.
// Price is the unit price captured when the line was added.
type CartItem struct {
	CartID      int64           `json:"cart_id"`
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	ProductCode string          `json:"product_code"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
}

// LineTotal is quantity × unit price.
func (i CartItem) LineTotal() decimal.Decimal {
	return LineTotal(i.Price, i.Quantity)
}

// Cart is the mutable pre-checkout container of selected products.
type Cart struct {
	ID        int64      `json:"id"`
	OwnerID   int64      `json:"owner_id"`
	Status    CartStatus `json:"status"`
	Items     []CartItem `json:"items"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Item returns the line for productID, if any.
func (c *Cart) Item(productID int64) (CartItem, bool) {
	for _, it := range c.Items {
		if it.ProductID == productID {
			return it, true
		}
	}
	return CartItem{}, false
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Subtotal is the sum of quantity × price over all lines.
func (c *Cart) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range c.Items {
		sum = sum.Add(it.LineTotal())
	}
	return sum
}

// Tax is Subtotal at the fixed tax rate.
func (c *Cart) Tax() decimal.Decimal {
	return TaxOn(c.Subtotal())
}

// Total is Subtotal plus Tax.
func (c *Cart) Total() decimal.Decimal {
	subtotal := c.Subtotal()
	return subtotal.Add(TaxOn(subtotal))
}

// Snapshot returns a deep copy whose lines cannot drift with later cart edits.
func (c *Cart) Snapshot() Cart {
	cp := *c
	cp.Items = make([]CartItem, len(c.Items))
	copy(cp.Items, c.Items)
	return cp
}
