package watermill

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/idpuniv/livewire/internal/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type orderEvent struct {
	OrderID int64 `json:"order_id"`
}

func (orderEvent) EventType() string { return "OrderEvent" }

func TestInMemoryBrokerDeliversToConsumer(t *testing.T) {
	b := NewInMemory(watermill.NopLogger{})
	t.Cleanup(func() { _ = b.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Published before anyone subscribes: the channel is persistent.
	require.NoError(t, b.PublishEvent(ctx, "orders.payed", "1", orderEvent{OrderID: 1}))

	received := make(chan orderEvent, 4)
	done := make(chan struct{})
	go func() {
		defer close(done)
		b.Consume(ctx, "orders.payed", "test", func(_ context.Context, payload []byte) error {
			var e orderEvent
			if err := json.Unmarshal(payload, &e); err != nil {
				return err
			}
			received <- e
			return nil
		})
	}()

	require.NoError(t, b.PublishEvent(ctx, "orders.payed", "2", orderEvent{OrderID: 2}))
	require.NoError(t, b.PublishEvent(ctx, "orders.payed", "3", orderEvent{OrderID: 3}))

	var got []int64
	for len(got) < 3 {
		select {
		case e := <-received:
			got = append(got, e.OrderID)
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out, received %v", got)
		}
	}
	assert.ElementsMatch(t, []int64{1, 2, 3}, got)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not stop after cancel")
	}
}

func TestPublishRejectsUnmarshalableEvent(t *testing.T) {
	b := NewInMemory(watermill.NopLogger{})
	t.Cleanup(func() { _ = b.Close() })

	err := b.PublishEvent(context.Background(), "t", "k", make(chan int))
	assert.Error(t, err)
}

func fastBroker(t *testing.T) *Broker {
	t.Helper()
	b := NewInMemory(watermill.NopLogger{})
	b.backoff = messaging.Backoff{BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestFailedMessageIsRedelivered(t *testing.T) {
	b := fastBroker(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := make(chan int64, 8)
	attempts := 0
	go b.Consume(ctx, "payments.completed", "stock", func(_ context.Context, payload []byte) error {
		var e orderEvent
		if err := json.Unmarshal(payload, &e); err != nil {
			return err
		}
		attempts++
		calls <- e.OrderID
		if attempts == 1 {
			return errors.New("database is locked")
		}
		return nil
	})

	require.NoError(t, b.PublishEvent(ctx, "payments.completed", "1", orderEvent{OrderID: 1}))

	for want := 1; want <= 2; want++ {
		select {
		case id := <-calls:
			assert.Equal(t, int64(1), id)
		case <-time.After(5 * time.Second):
			t.Fatalf("handler called %d times, want 2", want-1)
		}
	}
	select {
	case id := <-calls:
		t.Fatalf("message %d delivered again after success", id)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMalformedMessageIsDropped(t *testing.T) {
	b := fastBroker(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := make(chan int64, 8)
	go b.Consume(ctx, "payments.completed", "stock", func(_ context.Context, payload []byte) error {
		var e orderEvent
		if err := json.Unmarshal(payload, &e); err != nil {
			return err
		}
		calls <- e.OrderID
		if e.OrderID == 1 {
			return fmt.Errorf("order 1: %w", messaging.ErrMalformed)
		}
		return nil
	})

	require.NoError(t, b.PublishEvent(ctx, "payments.completed", "1", orderEvent{OrderID: 1}))
	require.NoError(t, b.PublishEvent(ctx, "payments.completed", "2", orderEvent{OrderID: 2}))

	var got []int64
	for len(got) < 2 {
		select {
		case id := <-calls:
			got = append(got, id)
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out, received %v", got)
		}
	}
	assert.ElementsMatch(t, []int64{1, 2}, got, "the malformed message is handled exactly once")
}
