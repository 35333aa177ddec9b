package service

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/idpuniv/livewire/internal/entity"
	"github.com/idpuniv/livewire/internal/messaging"
)

const (
	TopicPaymentCompleted = "payments.completed"
	TopicOrderPayed       = "orders.payed"
	TopicProductUpdated   = "products.updated"
)

// Dispatcher publishes domain events once the transaction that produced them
// has committed. Delivery is fire-and-forget: failures are logged only.
type Dispatcher struct {
	publisher messaging.Publisher
}

func NewDispatcher(publisher messaging.Publisher) *Dispatcher {
	return &Dispatcher{publisher: publisher}
}

// Route returns the topic and partition key of an event.
func Route(e entity.Event) (topic, key string, ok bool) {
	switch e := e.(type) {
	case entity.PaymentCompleted:
		return TopicPaymentCompleted, strconv.FormatInt(e.OrderID, 10), true
	case entity.OrderPayed:
		return TopicOrderPayed, strconv.FormatInt(e.OrderID, 10), true
	case entity.ProductUpdated:
		return TopicProductUpdated, strconv.FormatInt(e.Product.ID, 10), true
	}
	return "", "", false
}

func (d *Dispatcher) Dispatch(ctx context.Context, events ...entity.Event) {
	for _, e := range events {
		topic, key, ok := Route(e)
		if !ok {
			slog.Warn("No topic for event", "event", e.EventType())
			continue
		}
		if err := d.publisher.PublishEvent(ctx, topic, key, e); err != nil {
			slog.Error("Failed to publish event", "event", e.EventType(), "topic", topic, "err", err)
			continue
		}
		slog.Debug("Event published", "event", e.EventType(), "topic", topic, "key", key)
	}
}
