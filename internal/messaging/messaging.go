package messaging

import (
	"context"
	"errors"
	"time"
)

// ErrMalformed marks a payload no retry can fix. Brokers drop such messages
// instead of redelivering them.
var ErrMalformed = errors.New("malformed message")

// Handler processes one message payload.
type Handler func(ctx context.Context, payload []byte) error

// Publisher defines an interface for publishing events to a message broker.
type Publisher interface {
	PublishEvent(ctx context.Context, topic string, key string, event any) error
}

// Subscriber defines an interface for subscribing to a message topic.
// Consume blocks until ctx is cancelled. A message is acknowledged only once
// its handler succeeded or reported ErrMalformed; anything else is redelivered.
type Subscriber interface {
	Consume(ctx context.Context, topic string, groupID string, handler Handler)
}

// Broker is a Publisher and Subscriber owning network resources.
type Broker interface {
	Publisher
	Subscriber
	Close() error
}

// Backoff bounds the delay between redeliveries of a failing message.
type Backoff struct {
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
}

func DefaultBackoff() Backoff {
	return Backoff{BaseDelay: 200 * time.Millisecond, MaxDelay: 30 * time.Second, Multiplier: 2}
}

// HandleUntilDone calls handler until it succeeds or returns ErrMalformed,
// waiting between attempts. It returns ctx.Err() if ctx ends first, in which
// case the message must not be acknowledged. onRetry sees every failure.
func HandleUntilDone(ctx context.Context, b Backoff, handler Handler, payload []byte, onRetry func(attempt int, err error)) error {
	delay := b.BaseDelay
	for attempt := 1; ; attempt++ {
		err := handler(ctx, payload)
		if err == nil || errors.Is(err, ErrMalformed) {
			return err
		}
		if onRetry != nil {
			onRetry(attempt, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = time.Duration(float64(delay) * b.Multiplier)
		if delay > b.MaxDelay {
			delay = b.MaxDelay
		}
	}
}
