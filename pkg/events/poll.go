package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/tcmartin/crewdeck/pkg/logging"
	"github.com/tcmartin/crewdeck/pkg/models"
)

// DefaultPollInterval is the poll period used when none is configured
const DefaultPollInterval = 2 * time.Second

// ExecutionReader is the part of the REST client the poll subscriber needs
type ExecutionReader interface {
	Get(ctx context.Context, executionID string) (*models.Execution, error)
	GetLogs(ctx context.Context, executionID string, query models.LogQuery) ([]models.ExecutionLog, error)
}

// PollSubscriber polls execution status and logs on a fixed interval and
// emits one snapshot event per successful poll. It stops on its own after
// delivering a snapshot with a terminal status.
type PollSubscriber struct {
	reader   ExecutionReader
	interval time.Duration
	logger   *slog.Logger
}

// NewPollSubscriber creates a poll subscriber. A non-positive interval
// selects DefaultPollInterval.
func NewPollSubscriber(reader ExecutionReader, interval time.Duration, logger *slog.Logger) *PollSubscriber {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &PollSubscriber{
		reader:   reader,
		interval: interval,
		logger:   logging.OrDefault(logger),
	}
}

// Interval returns the poll period
func (p *PollSubscriber) Interval() time.Duration {
	return p.interval
}

// Subscribe starts polling. The first poll happens immediately.
func (p *PollSubscriber) Subscribe(ctx context.Context, executionID string, handler Handler) (*Subscription, error) {
	sub, ctx := newSubscription(ctx, executionID)

	go func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			ev, ok := p.poll(ctx, executionID)
			if ok {
				if !sub.deliver(handler, ev) {
					sub.finish(nil)
					return
				}
				if ev.Snapshot.Execution.Status.IsTerminal() {
					sub.finish(nil)
					return
				}
			}

			select {
			case <-ctx.Done():
				sub.finish(nil)
				return
			case <-ticker.C:
			}
		}
	}()

	return sub, nil
}

func (p *PollSubscriber) poll(ctx context.Context, executionID string) (Event, bool) {
	execution, err := p.reader.Get(ctx, executionID)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Warn("failed to poll execution", "execution_id", executionID, "error", err)
		}
		return Event{}, false
	}

	logs, err := p.reader.GetLogs(ctx, executionID, models.LogQuery{})
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Warn("failed to poll execution logs", "execution_id", executionID, "error", err)
		}
		return Event{}, false
	}

	return NewSnapshotEvent(*execution, logs), true
}
