// Package watermill implements the messaging interfaces on Watermill, either
// in process through a Go channel or over Kafka through Sarama.
package watermill

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/IBM/sarama"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/idpuniv/livewire/internal/messaging"
)

const keyMetadata = "partition_key"

// Broker adapts a Watermill publisher and per-group subscribers.
type Broker struct {
	publisher message.Publisher
	subscribe func(groupID string) (message.Subscriber, error)
	backoff   messaging.Backoff

	mu      sync.Mutex
	closers []func() error
}

var _ messaging.Broker = (*Broker)(nil)

// NewInMemory returns a broker backed by a persistent Go channel. Every
// subscriber receives every message regardless of its group.
func NewInMemory(logger watermill.LoggerAdapter) *Broker {
	pubSub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 256,
		Persistent:          true,
	}, logger)

	return &Broker{
		publisher: pubSub,
		backoff:   messaging.DefaultBackoff(),
		subscribe: func(string) (message.Subscriber, error) { return pubSub, nil },
		closers:   []func() error{pubSub.Close},
	}
}

// NewKafka returns a broker publishing to and consuming from Kafka.
// Consumers start from the oldest offset the first time a group is seen.
func NewKafka(brokers []string, logger watermill.LoggerAdapter) (*Broker, error) {
	marshaler := kafka.NewWithPartitioningMarshaler(func(_ string, msg *message.Message) (string, error) {
		return msg.Metadata.Get(keyMetadata), nil
	})

	publisher, err := kafka.NewPublisher(kafka.PublisherConfig{
		Brokers:   brokers,
		Marshaler: marshaler,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka publisher: %w", err)
	}

	b := &Broker{
		publisher: publisher,
		backoff:   messaging.DefaultBackoff(),
		closers:   []func() error{publisher.Close},
	}
	b.subscribe = func(groupID string) (message.Subscriber, error) {
		saramaConfig := kafka.DefaultSaramaSubscriberConfig()
		saramaConfig.Consumer.Offsets.Initial = sarama.OffsetOldest

		sub, err := kafka.NewSubscriber(kafka.SubscriberConfig{
			Brokers:               brokers,
			Unmarshaler:           marshaler,
			OverwriteSaramaConfig: saramaConfig,
			ConsumerGroup:         groupID,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create kafka subscriber: %w", err)
		}
		b.mu.Lock()
		b.closers = append(b.closers, sub.Close)
		b.mu.Unlock()
		return sub, nil
	}
	return b, nil
}

func (b *Broker) PublishEvent(ctx context.Context, topic string, key string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(uuid.New().String(), payload)
	msg.Metadata.Set(keyMetadata, key)
	if e, ok := event.(interface{ EventType() string }); ok {
		msg.Metadata.Set("event_type", e.EventType())
	}
	msg.SetContext(ctx)

	if err := b.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

func (b *Broker) Consume(ctx context.Context, topic string, groupID string, handler messaging.Handler) {
	sub, err := b.subscribe(groupID)
	if err != nil {
		slog.Error("Failed to create subscriber", "topic", topic, "group", groupID, "err", err)
		return
	}

	messages, err := sub.Subscribe(ctx, topic)
	if err != nil {
		slog.Error("Failed to subscribe", "topic", topic, "group", groupID, "err", err)
		return
	}

	for {
		select {
		case <-ctx.Done():
			slog.Info("Consumer shutting down", "topic", topic)
			return
		case msg, ok := <-messages:
			if !ok {
				slog.Info("Subscription closed", "topic", topic)
				return
			}
			err := messaging.HandleUntilDone(ctx, b.backoff, handler, msg.Payload, func(attempt int, err error) {
				slog.Error("Error handling message, retrying", "topic", topic, "uuid", msg.UUID, "attempt", attempt, "err", err)
			})
			switch {
			case err == nil:
				msg.Ack()
			case errors.Is(err, messaging.ErrMalformed):
				slog.Error("Dropping malformed message", "topic", topic, "uuid", msg.UUID, "err", err)
				msg.Ack()
			default:
				// Shutting down mid-retry: hand the message back for redelivery.
				msg.Nack()
			}
		}
	}
}

func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var errs []error
	for _, c := range b.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	b.closers = nil
	return errors.Join(errs...)
}
