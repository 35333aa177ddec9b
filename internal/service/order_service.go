package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/idpuniv/livewire/internal/entity"
	"github.com/idpuniv/livewire/internal/repository"
	"github.com/shopspring/decimal"
)

// OrderService turns carts into orders with their invoices.
type OrderService struct {
	tx       repository.TxManager
	orders   repository.OrderRepository
	carts    repository.CartRepository
	products repository.ProductRepository
}

func NewOrderService(
	tx repository.TxManager,
	orders repository.OrderRepository,
	carts repository.CartRepository,
	products repository.ProductRepository,
) *OrderService {
	return &OrderService{
		tx:       tx,
		orders:   orders,
		carts:    carts,
		products: products,
	}
}

func (s *OrderService) GetOrder(ctx context.Context, orderID int64) (*entity.Order, error) {
	return s.orders.FindByID(ctx, orderID)
}

// CreateOrderFromCart writes a pending invoice, a pending order and a frozen
// copy of every cart line in one transaction. The cart itself is not touched
// and no stock moves.
func (s *OrderService) CreateOrderFromCart(ctx context.Context, cartID int64) (*entity.Order, error) {
	var order *entity.Order
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		cart, err := s.carts.FindByID(ctx, cartID)
		if err != nil {
			return err
		}
		snapshot := cart.Snapshot()
		if snapshot.IsEmpty() {
			return fmt.Errorf("cart %d: %w", cartID, entity.ErrEmptyCart)
		}

		orderID, err := s.build(ctx, &snapshot)
		if err != nil {
			return fmt.Errorf("%w: %w", entity.ErrTransactionFailed, err)
		}

		order, err = s.orders.FindByID(ctx, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Order created", "order_id", order.ID, "cart_id", cartID, "total", order.Total().String())
	return order, nil
}

func (s *OrderService) build(ctx context.Context, cart *entity.Cart) (int64, error) {
	subtotal := cart.Subtotal()
	tax := entity.TaxOn(subtotal)

	invoice := &entity.Invoice{
		Subtotal: subtotal,
		Tax:      tax,
		Total:    subtotal.Add(tax),
		Status:   entity.InvoicePending,
	}
	if err := s.orders.CreateInvoice(ctx, invoice); err != nil {
		return 0, err
	}

	order := &entity.Order{
		InvoiceID:  invoice.ID,
		OwnerID:    cart.OwnerID,
		Status:     entity.OrderPending,
		AmountPaid: decimal.Zero,
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return 0, err
	}

	orderItems := make([]entity.OrderItem, 0, len(cart.Items))
	invoiceItems := make([]entity.InvoiceItem, 0, len(cart.Items))
	for _, line := range cart.Items {
		total := line.LineTotal()
		orderItems = append(orderItems, entity.OrderItem{
			ProductID:   line.ProductID,
			ProductName: line.ProductName,
			ProductCode: line.ProductCode,
			UnitPrice:   line.Price,
			Quantity:    line.Quantity,
			TotalPrice:  total,
		})
		invoiceItems = append(invoiceItems, entity.InvoiceItem{
			ProductID:   line.ProductID,
			ProductName: line.ProductName,
			ProductCode: line.ProductCode,
			UnitPrice:   line.Price,
			Quantity:    line.Quantity,
			TotalPrice:  total,
			TaxRate:     entity.TaxRatePercent,
			TaxAmount:   entity.TaxOn(total),
		})
	}

	if err := s.orders.InsertItems(ctx, order.ID, orderItems); err != nil {
		return 0, err
	}
	if err := s.orders.InsertInvoiceItems(ctx, invoice.ID, invoiceItems); err != nil {
		return 0, err
	}
	return order.ID, nil
}

// AddItemToExistingOrder adds quantity units of a product to a pending order.
// A zero quantity means one unit. An existing line keeps its frozen price and
// the invoice header moves by the line's delta.
func (s *OrderService) AddItemToExistingOrder(ctx context.Context, orderID, productID int64, quantity int) (*entity.Order, error) {
	if quantity < 0 {
		return nil, fmt.Errorf("quantity %d: %w", quantity, entity.ErrValidation)
	}
	if quantity == 0 {
		quantity = 1
	}

	var order *entity.Order
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		current, err := s.orders.FindForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if !current.IsPending() {
			return fmt.Errorf("order %d is %s: %w", orderID, current.Status, entity.ErrInvalidState)
		}
		if current.Invoice == nil {
			return fmt.Errorf("order %d has no invoice: %w", orderID, entity.ErrInvalidState)
		}

		line, oldTotal, err := s.nextLine(ctx, current, productID, quantity)
		if err != nil {
			return err
		}

		lineTax := entity.TaxOn(line.TotalPrice)
		if err := s.orders.SaveLine(ctx, current.ID, current.InvoiceID, line, lineTax); err != nil {
			return fmt.Errorf("%w: %w", entity.ErrTransactionFailed, err)
		}

		inv := current.Invoice
		delta := line.TotalPrice.Sub(oldTotal)
		inv.Subtotal = inv.Subtotal.Add(delta)
		inv.Tax = inv.Tax.Add(entity.TaxOn(delta))
		inv.Total = inv.Subtotal.Add(inv.Tax)
		if err := s.orders.UpdateInvoiceTotals(ctx, inv); err != nil {
			return fmt.Errorf("%w: %w", entity.ErrTransactionFailed, err)
		}

		order, err = s.orders.FindByID(ctx, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Order item added", "order_id", orderID, "product_id", productID, "quantity", quantity)
	return order, nil
}

// nextLine returns the updated line for productID and the line total it replaces.
func (s *OrderService) nextLine(ctx context.Context, order *entity.Order, productID int64, quantity int) (entity.OrderItem, decimal.Decimal, error) {
	for _, it := range order.Items {
		if it.ProductID == productID {
			oldTotal := it.TotalPrice
			it.Quantity += quantity
			it.TotalPrice = entity.LineTotal(it.UnitPrice, it.Quantity)
			return it, oldTotal, nil
		}
	}

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return entity.OrderItem{}, decimal.Zero, err
	}
	if err := sellable(product); err != nil {
		return entity.OrderItem{}, decimal.Zero, err
	}
	return entity.OrderItem{
		OrderID:     order.ID,
		ProductID:   product.ID,
		ProductName: product.Name,
		ProductCode: product.Code,
		UnitPrice:   product.Price,
		Quantity:    quantity,
		TotalPrice:  entity.LineTotal(product.Price, quantity),
	}, decimal.Zero, nil
}
