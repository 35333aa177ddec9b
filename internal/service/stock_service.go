package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/idpuniv/livewire/internal/entity"
	"github.com/idpuniv/livewire/internal/messaging"
	"github.com/idpuniv/livewire/internal/repository"
)

// StockService applies paid orders to product stock.
type StockService struct {
	tx       repository.TxManager
	products repository.ProductRepository
	ledger   repository.StockLedger
}

func NewStockService(tx repository.TxManager, products repository.ProductRepository, ledger repository.StockLedger) *StockService {
	return &StockService{
		tx:       tx,
		products: products,
		ledger:   ledger,
	}
}

// HandlePaymentCompleted decrements stock for every line of the paid order.
// Redelivered events are ignored. A line whose product lacks stock is skipped
// and logged, never clamped.
func (s *StockService) HandlePaymentCompleted(ctx context.Context, event entity.PaymentCompleted) ([]entity.Event, error) {
	var events []entity.Event
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		done, err := s.ledger.HasMovements(ctx, event.OrderID)
		if err != nil {
			return err
		}
		if done {
			slog.Info("Stock already decremented", "order_id", event.OrderID)
			return nil
		}

		plan := entity.StockPlan(event.OrderID, event.Products)
		for i := range plan {
			m := &plan[i]
			applied, err := s.products.DecrementStock(ctx, m.ProductID, m.Quantity)
			if err != nil {
				return err
			}
			if !applied {
				slog.Warn("Stock decrement skipped",
					"order_id", event.OrderID,
					"product_id", m.ProductID,
					"quantity", m.Quantity,
					"err", entity.ErrStockInsufficient,
				)
				continue
			}
			m.Applied = true

			product, err := s.products.FindByID(ctx, m.ProductID)
			if err != nil {
				return err
			}
			events = append(events, entity.ProductUpdated{Action: entity.ProductStock, Product: *product})
		}

		return s.ledger.Record(ctx, plan)
	})
	if errors.Is(err, entity.ErrDuplicate) {
		slog.Info("Stock decrement raced with another consumer", "order_id", event.OrderID)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decrement stock for order %d: %w", event.OrderID, err)
	}
	return events, nil
}

// PaymentCompletedHandler adapts HandlePaymentCompleted to a broker
// subscription, dispatching the resulting product events. Storage errors are
// returned so the broker redelivers; the ledger makes redelivery harmless.
func (s *StockService) PaymentCompletedHandler(d *Dispatcher) messaging.Handler {
	return func(ctx context.Context, payload []byte) error {
		var event entity.PaymentCompleted
		if err := json.Unmarshal(payload, &event); err != nil {
			return fmt.Errorf("failed to unmarshal PaymentCompleted event: %w: %w", messaging.ErrMalformed, err)
		}
		events, err := s.HandlePaymentCompleted(ctx, event)
		if err != nil {
			return err
		}
		d.Dispatch(ctx, events...)
		return nil
	}
}
