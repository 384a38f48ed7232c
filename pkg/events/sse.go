package events

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/r3labs/sse/v2"
	"gopkg.in/cenkalti/backoff.v1"

	"github.com/tcmartin/crewdeck/pkg/logging"
)

// SSESubscriber follows the event relay exposed by a crewdeck server at
// {base}/api/v1/runs/{id}/events. Reconnects are bounded by the
// subscription context.
type SSESubscriber struct {
	baseURL        string
	headers        map[string]string
	maxElapsedTime time.Duration
	logger         *slog.Logger
}

// NewSSESubscriber creates a relay subscriber. headers are sent with every
// connection attempt.
func NewSSESubscriber(baseURL string, headers map[string]string, logger *slog.Logger) *SSESubscriber {
	return &SSESubscriber{
		baseURL:        strings.TrimRight(baseURL, "/"),
		headers:        headers,
		maxElapsedTime: time.Minute,
		logger:         logging.OrDefault(logger),
	}
}

// StreamURL returns the relay address for an execution, without the stream query
func (s *SSESubscriber) StreamURL(executionID string) string {
	return s.baseURL + "/api/v1/runs/" + url.PathEscape(executionID) + "/events"
}

// Subscribe starts reading the relay stream in the background
func (s *SSESubscriber) Subscribe(ctx context.Context, executionID string, handler Handler) (*Subscription, error) {
	if _, err := url.Parse(s.baseURL); err != nil || s.baseURL == "" {
		return nil, fmt.Errorf("invalid sse base url %q", s.baseURL)
	}

	sub, ctx := newSubscription(ctx, executionID)

	client := sse.NewClient(s.StreamURL(executionID))
	for k, v := range s.headers {
		client.Headers[k] = v
	}
	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = s.maxElapsedTime
	client.ReconnectStrategy = backoff.WithContext(policy, ctx)
	client.ReconnectNotify = func(err error, next time.Duration) {
		s.logger.Debug("reconnecting to event relay", "execution_id", executionID, "error", err, "retry_in", next)
	}

	go func() {
		err := client.SubscribeWithContext(ctx, executionID, func(msg *sse.Event) {
			if len(msg.Data) == 0 {
				return
			}
			ev := Decode(msg.Data)
			if !sub.deliver(handler, ev) || ev.Type.IsTerminal() {
				sub.Unsubscribe()
			}
		})

		switch {
		case ctx.Err() != nil:
			sub.finish(nil)
		case err != nil:
			sub.finish(err)
		default:
			sub.finish(ErrStreamClosed)
		}
	}()

	return sub, nil
}
