package events

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-redis/redis/v8"

	"github.com/tcmartin/crewdeck/pkg/logging"
)

// ChannelName returns the pub/sub channel the backend publishes execution events to
func ChannelName(executionID string) string {
	return "execution:" + executionID
}

// RedisSubscriber listens on the backend's Redis pub/sub channel for an
// execution. The channel ends after a complete, error or cancelled event.
type RedisSubscriber struct {
	client redis.UniversalClient
	logger *slog.Logger
}

// NewRedisSubscriber creates a subscriber on top of an existing client
func NewRedisSubscriber(client redis.UniversalClient, logger *slog.Logger) *RedisSubscriber {
	return &RedisSubscriber{
		client: client,
		logger: logging.OrDefault(logger),
	}
}

// Subscribe joins the execution channel and waits for the confirmation
func (r *RedisSubscriber) Subscribe(ctx context.Context, executionID string, handler Handler) (*Subscription, error) {
	channel := ChannelName(executionID)
	pubsub := r.client.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	sub, ctx := newSubscription(ctx, executionID)
	messages := pubsub.Channel()

	go func() {
		defer pubsub.Close()

		for {
			select {
			case <-ctx.Done():
				sub.finish(nil)
				return
			case msg, ok := <-messages:
				if !ok {
					r.logger.Debug("redis channel closed", "channel", channel)
					sub.finish(ErrStreamClosed)
					return
				}

				ev := Decode([]byte(msg.Payload))
				if !sub.deliver(handler, ev) || ev.Type.IsTerminal() {
					sub.finish(nil)
					return
				}
			}
		}
	}()

	return sub, nil
}
