package events

import "context"

// Tee returns a Subscriber that hands every event to observe before the
// subscriber's own handler. A nil inner subscriber yields nil.
func Tee(inner Subscriber, observe Handler) Subscriber {
	if inner == nil {
		return nil
	}
	return &teeSubscriber{inner: inner, observe: observe}
}

type teeSubscriber struct {
	inner   Subscriber
	observe Handler
}

func (t *teeSubscriber) Subscribe(ctx context.Context, executionID string, handler Handler) (*Subscription, error) {
	return t.inner.Subscribe(ctx, executionID, func(ev Event) {
		t.observe(ev)
		handler(ev)
	})
}
