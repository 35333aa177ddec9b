package service

import (
	"context"
	"errors"
	"testing"

	"github.com/idpuniv/livewire/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type unroutable struct{}

func (unroutable) EventType() string { return "Unroutable" }

func TestRoute(t *testing.T) {
	tests := []struct {
		event entity.Event
		topic string
		key   string
	}{
		{entity.PaymentCompleted{OrderID: 7}, TopicPaymentCompleted, "7"},
		{entity.OrderPayed{OrderID: 7}, TopicOrderPayed, "7"},
		{entity.ProductUpdated{Product: entity.Product{ID: 3}}, TopicProductUpdated, "3"},
	}
	for _, tt := range tests {
		t.Run(tt.event.EventType(), func(t *testing.T) {
			topic, key, ok := Route(tt.event)
			require.True(t, ok)
			assert.Equal(t, tt.topic, topic)
			assert.Equal(t, tt.key, key)
		})
	}

	_, _, ok := Route(unroutable{})
	assert.False(t, ok)
}

func TestDispatch(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	d := NewDispatcher(pub)

	d.Dispatch(ctx, entity.PaymentCompleted{OrderID: 1}, unroutable{}, entity.OrderPayed{OrderID: 1})
	assert.Equal(t, []string{TopicPaymentCompleted, TopicOrderPayed}, pub.topics())
	assert.Equal(t, "1", pub.msgs[0].key)

	failing := &recordingPublisher{err: errors.New("broker down")}
	assert.NotPanics(t, func() {
		NewDispatcher(failing).Dispatch(ctx, entity.OrderPayed{OrderID: 1})
	})
}
