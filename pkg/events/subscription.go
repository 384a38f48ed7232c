package events

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrStreamClosed is reported when the remote end closed the channel before
// the execution reached a terminal state
var ErrStreamClosed = errors.New("event stream closed by remote")

// Handler receives decoded events
type Handler func(Event)

// Subscriber opens a live event channel for one execution
type Subscriber interface {
	Subscribe(ctx context.Context, executionID string, handler Handler) (*Subscription, error)
}

// Subscription is a live channel. Events are delivered from a single
// goroutine; once Unsubscribe returns no new delivery starts.
type Subscription struct {
	executionID string
	cancel      context.CancelFunc
	stopped     atomic.Bool
	done        chan struct{}

	mu       sync.Mutex
	err      error
	finished bool
}

func newSubscription(ctx context.Context, executionID string) (*Subscription, context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	return &Subscription{
		executionID: executionID,
		cancel:      cancel,
		done:        make(chan struct{}),
	}, ctx
}

// ExecutionID returns the execution this subscription follows
func (s *Subscription) ExecutionID() string {
	return s.executionID
}

// Unsubscribe tears the channel down. It does not wait for the transport to
// close, so it is safe to call from inside the handler, and more than once.
func (s *Subscription) Unsubscribe() {
	if s.stopped.CompareAndSwap(false, true) {
		s.cancel()
	}
}

// Unsubscribed reports whether Unsubscribe has been called
func (s *Subscription) Unsubscribed() bool {
	return s.stopped.Load()
}

// Done is closed once the transport has shut down
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Err reports why the subscription ended. It is nil while running, after
// Unsubscribe, and after a terminal event ended the channel.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// deliver hands ev to handler unless the subscription was stopped. It
// reports whether the reader should keep going.
func (s *Subscription) deliver(handler Handler, ev Event) bool {
	if s.stopped.Load() {
		return false
	}
	handler(ev)
	return !s.stopped.Load()
}

// finish records the outcome and closes Done. Errors caused by our own
// teardown are dropped.
func (s *Subscription) finish(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return
	}
	s.finished = true
	if !s.stopped.Load() {
		s.err = err
	}
	s.cancel()
	close(s.done)
}

// SourceFunc adapts a function to the Subscriber interface. The function
// runs on its own goroutine and calls emit for every event; emit returns
// false once the subscription was torn down. The returned error becomes
// Err of the subscription.
type SourceFunc func(ctx context.Context, executionID string, emit func(Event) bool) error

// Subscribe runs f in the background
func (f SourceFunc) Subscribe(ctx context.Context, executionID string, handler Handler) (*Subscription, error) {
	sub, ctx := newSubscription(ctx, executionID)
	go func() {
		err := f(ctx, executionID, func(ev Event) bool {
			return sub.deliver(handler, ev)
		})
		sub.finish(err)
	}()
	return sub, nil
}
