package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tcmartin/crewdeck/pkg/events"
	"github.com/tcmartin/crewdeck/pkg/logging"
	"github.com/tcmartin/crewdeck/pkg/models"
)

// ErrAlreadyStarted is returned when Start is called twice
var ErrAlreadyStarted = errors.New("monitor already started")

// Canceller issues the server-side cancel of an execution
type Canceller interface {
	Cancel(ctx context.Context, executionID string) error
}

// Config wires a Monitor
type Config struct {
	// Push is the live channel. When nil the monitor polls from the start.
	Push events.Subscriber

	// Poll is the fallback. When nil a dropped push channel ends monitoring.
	Poll events.Subscriber

	Canceller Canceller

	// Steps are the static flow steps shown alongside progress
	Steps []models.FlowStep

	Logger *slog.Logger
}

// Monitor observes a single execution. Push and poll subscriptions are never
// active at the same time.
type Monitor struct {
	executionID string
	cfg         Config
	logger      *slog.Logger

	mu        sync.Mutex
	state     State
	sub       *events.Subscription
	ctx       context.Context
	cancel    context.CancelFunc
	started   bool
	stopped   bool
	listeners map[int]func(State)
	nextID    int
	done      chan struct{}
	doneOnce  sync.Once
}

// New creates a monitor for executionID. Nothing happens until Start.
func New(executionID string, cfg Config) *Monitor {
	state := NewState(executionID)
	state.Steps = append([]models.FlowStep(nil), cfg.Steps...)
	return &Monitor{
		executionID: executionID,
		cfg:         cfg,
		logger:      logging.OrDefault(cfg.Logger).With("execution_id", executionID),
		state:       state,
		listeners:   make(map[int]func(State)),
		done:        make(chan struct{}),
	}
}

// ExecutionID returns the monitored execution
func (m *Monitor) ExecutionID() string {
	return m.executionID
}

// Start opens the push channel, or polls straight away when there is no
// push subscriber or it cannot connect.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	m.started = true
	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.mu.Unlock()

	// the monitor outlives the request that started it, but not a cancelled one
	if err := ctx.Err(); err != nil {
		m.Stop()
		return err
	}

	if m.cfg.Push != nil {
		sub, err := m.cfg.Push.Subscribe(m.ctx, m.executionID, m.handle)
		if err == nil {
			m.attach(sub, ChannelPush)
			return nil
		}
		m.logger.Warn("live channel unavailable, polling instead", "error", err)
	}
	return m.startPoll()
}

func (m *Monitor) startPoll() error {
	if m.cfg.Poll == nil {
		m.finish()
		return fmt.Errorf("no subscriber available for execution %s", m.executionID)
	}
	sub, err := m.cfg.Poll.Subscribe(m.ctx, m.executionID, m.handle)
	if err != nil {
		m.finish()
		return fmt.Errorf("failed to start polling: %w", err)
	}
	m.attach(sub, ChannelPoll)
	return nil
}

// attach makes sub the active subscription and watches for its end
func (m *Monitor) attach(sub *events.Subscription, channel string) {
	m.mu.Lock()
	if m.stopped || !m.state.Monitoring {
		m.mu.Unlock()
		sub.Unsubscribe()
		m.finish()
		return
	}
	m.sub = sub
	m.state.Channel = channel
	state := m.state.Clone()
	m.mu.Unlock()

	m.notify(state)
	go m.watch(sub, channel)
}

func (m *Monitor) watch(sub *events.Subscription, channel string) {
	<-sub.Done()

	m.mu.Lock()
	if m.sub != sub {
		m.mu.Unlock()
		return
	}
	m.sub = nil
	active := !m.stopped && m.state.Monitoring
	m.mu.Unlock()

	if !active {
		m.finish()
		return
	}

	if channel == ChannelPush && m.cfg.Poll != nil {
		m.logger.Warn("live channel ended, falling back to polling", "error", sub.Err())
		if err := m.startPoll(); err != nil {
			m.logger.Error("failed to fall back to polling", "error", err)
		}
		return
	}

	m.logger.Warn("monitoring ended before the execution finished", "channel", channel, "error", sub.Err())
	m.mu.Lock()
	m.state.Monitoring = false
	state := m.state.Clone()
	m.mu.Unlock()
	m.notify(state)
	m.finish()
}

// handle is the subscription handler. Deliveries are serial.
func (m *Monitor) handle(ev events.Event) {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.state = Reduce(m.state, ev)
	state := m.state.Clone()
	terminal := !m.state.Monitoring
	sub := m.sub
	m.mu.Unlock()

	m.notify(state)

	if terminal {
		m.logger.Info("execution finished", "status", state.Status)
		if sub != nil {
			sub.Unsubscribe()
		}
	}
}

// State returns a copy of the current run state
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Clone()
}

// OnChange registers fn to receive the state after every change. fn runs on
// the delivery goroutine and must not block. The returned func removes it.
func (m *Monitor) OnChange(fn func(State)) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

func (m *Monitor) notify(state State) {
	m.mu.Lock()
	fns := make([]func(State), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(state)
	}
}

// Stop tears down the active subscription without touching the execution.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	sub := m.sub
	m.sub = nil
	m.state.Monitoring = false
	m.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
	m.finish()
}

// Cancel asks the backend to cancel the execution and tears down local
// monitoring whether or not the request succeeded.
func (m *Monitor) Cancel(ctx context.Context) error {
	var err error
	if m.cfg.Canceller == nil {
		err = errors.New("no canceller configured")
	} else {
		err = m.cfg.Canceller.Cancel(ctx, m.executionID)
	}

	if err == nil {
		m.mu.Lock()
		if !m.state.Status.IsTerminal() {
			m.state.Status = models.StatusCancelled
			m.state.HumanInput = nil
		}
		m.state.Monitoring = false
		state := m.state.Clone()
		m.mu.Unlock()
		m.notify(state)
	}

	m.Stop()
	if err != nil {
		return fmt.Errorf("failed to cancel execution %s: %w", m.executionID, err)
	}
	return nil
}

// Done is closed when monitoring has ended for any reason
func (m *Monitor) Done() <-chan struct{} {
	return m.done
}

// Wait blocks until monitoring ends or ctx is done and returns the last state
func (m *Monitor) Wait(ctx context.Context) (State, error) {
	select {
	case <-m.done:
		return m.State(), nil
	case <-ctx.Done():
		return m.State(), ctx.Err()
	}
}

func (m *Monitor) finish() {
	m.doneOnce.Do(func() {
		m.mu.Lock()
		if m.cancel != nil {
			m.cancel()
		}
		m.mu.Unlock()
		close(m.done)
	})
}
