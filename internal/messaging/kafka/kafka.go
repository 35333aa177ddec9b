package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/idpuniv/livewire/internal/messaging"
	kafkaGo "github.com/segmentio/kafka-go"
)

type kafkaBroker struct {
	brokers []string
	writer  *kafkaGo.Writer
	backoff messaging.Backoff
}

// NewKafkaBroker creates a Kafka publisher and subscriber. Messages with the
// same key land on the same partition, so events of one order stay ordered.
func NewKafkaBroker(brokers []string) messaging.Broker {
	return &kafkaBroker{
		brokers: brokers,
		backoff: messaging.DefaultBackoff(),
		writer: &kafkaGo.Writer{
			Addr:                   kafkaGo.TCP(brokers...),
			Balancer:               &kafkaGo.Hash{},
			AllowAutoTopicCreation: true,
		},
	}
}

func (k *kafkaBroker) PublishEvent(ctx context.Context, topic string, key string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := k.writer.WriteMessages(ctx, kafkaGo.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: payload,
	}); err != nil {
		return fmt.Errorf("failed to write message to %s: %w", topic, err)
	}
	return nil
}

func (k *kafkaBroker) Consume(ctx context.Context, topic string, groupID string, handler messaging.Handler) {
	reader := kafkaGo.NewReader(kafkaGo.ReaderConfig{
		Brokers: k.brokers,
		Topic:   topic,
		GroupID: groupID,
	})
	defer reader.Close()

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				slog.Info("Consumer shutting down", "topic", topic)
				return
			}
			slog.Error("Error reading message", "topic", topic, "err", err)
			continue
		}

		err = messaging.HandleUntilDone(ctx, k.backoff, handler, msg.Value, func(attempt int, err error) {
			slog.Error("Error handling message, retrying", "topic", topic, "offset", msg.Offset, "attempt", attempt, "err", err)
		})
		if ctx.Err() != nil {
			// Uncommitted: the group redelivers it after restart.
			slog.Info("Consumer shutting down", "topic", topic)
			return
		}
		if errors.Is(err, messaging.ErrMalformed) {
			slog.Error("Dropping malformed message", "topic", topic, "offset", msg.Offset, "err", err)
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			slog.Error("Failed to commit message", "topic", topic, "offset", msg.Offset, "err", err)
		}
	}
}

func (k *kafkaBroker) Close() error {
	return k.writer.Close()
}
