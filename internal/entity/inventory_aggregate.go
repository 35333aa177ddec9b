package entity

import "sort"

// StockPlan folds the product lines of a paid order into one movement per
// product, ordered by product id so concurrent listeners lock rows in the
// same order.
func StockPlan(orderID int64, items []OrderItem) []StockMovement {
	qty := make(map[int64]int, len(items))
	for _, it := range items {
		if it.Quantity <= 0 {
			continue
		}
		qty[it.ProductID] += it.Quantity
	}

	plan := make([]StockMovement, 0, len(qty))
	for productID, q := range qty {
		plan = append(plan, StockMovement{OrderID: orderID, ProductID: productID, Quantity: q})
	}
	sort.Slice(plan, func(i, j int) bool { return plan[i].ProductID < plan[j].ProductID })
	return plan
}
