package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/tcmartin/crewdeck/pkg/client"
	"github.com/tcmartin/crewdeck/pkg/config"
	"github.com/tcmartin/crewdeck/pkg/events"
	"github.com/tcmartin/crewdeck/pkg/logging"
	"github.com/tcmartin/crewdeck/pkg/models"
	"github.com/tcmartin/crewdeck/pkg/monitor"
)

// DefaultRetention is how long a finished run stays readable before it is evicted
const DefaultRetention = 5 * time.Minute

// Config selects how runs receive events
type Config struct {
	Mode           events.Mode
	PollInterval   time.Duration
	FallbackToPoll bool

	// Retention keeps a finished run, and its relay stream, this long
	Retention time.Duration

	// RelayURL and RelayHeaders are used in sse mode
	RelayURL     string
	RelayHeaders map[string]string

	// Redis is used in redis mode
	Redis redis.UniversalClient

	Observer Observer
	Logger   *slog.Logger
}

// ConfigFrom builds a runtime config from the monitor section. rdb may be
// nil unless the mode is redis.
func ConfigFrom(cfg config.MonitorConfig, rdb redis.UniversalClient, logger *slog.Logger) Config {
	return Config{
		Mode:           events.Mode(cfg.Mode),
		PollInterval:   cfg.PollInterval.Std(),
		FallbackToPoll: cfg.FallbackToPoll,
		Retention:      cfg.Retention.Std(),
		RelayURL:       cfg.RelayURL,
		Redis:          rdb,
		Logger:         logger,
	}
}

// NewRedisClient connects to the pub/sub server of the redis mode
func NewRedisClient(cfg config.RedisConfig) redis.UniversalClient {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// flowRuntime is the implementation of the FlowRuntime interface
type flowRuntime struct {
	backend *client.Client
	cfg     Config
	logger  *slog.Logger

	mu   sync.Mutex
	runs map[string]*Run

	closed    chan struct{}
	closeOnce sync.Once
}

// NewFlowRuntime creates a runtime that talks to backend
func NewFlowRuntime(backend *client.Client, cfg Config) FlowRuntime {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = events.DefaultPollInterval
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	return &flowRuntime{
		backend: backend,
		cfg:     cfg,
		logger:  logging.OrDefault(cfg.Logger),
		runs:    make(map[string]*Run),
		closed:  make(chan struct{}),
	}
}

func (r *flowRuntime) clientFor(opts RunOptions) *client.Client {
	if opts.Client != nil {
		return opts.Client
	}
	return r.backend
}

func (r *flowRuntime) Execute(ctx context.Context, flowID string, input, initialState map[string]interface{}, opts RunOptions) (*Run, error) {
	cl := r.clientFor(opts)

	steps, err := cl.Flows.Steps(ctx, flowID)
	if err != nil {
		if client.IsNotFound(err) {
			return nil, fmt.Errorf("flow %s: %w", flowID, err)
		}
		r.logger.Warn("failed to load flow steps", "flow_id", flowID, "error", err)
		steps = nil
	}

	resp, err := cl.Flows.Kickoff(ctx, flowID, input, initialState)
	if err != nil {
		return nil, fmt.Errorf("failed to start flow %s: %w", flowID, err)
	}
	r.logger.Info("flow started", "flow_id", flowID, "execution_id", resp.ExecutionID, "status", resp.Status)

	opts.FlowID = flowID
	return r.attach(ctx, resp.ExecutionID, steps, opts)
}

func (r *flowRuntime) Attach(ctx context.Context, executionID string, opts RunOptions) (*Run, error) {
	var steps []models.FlowStep
	if opts.FlowID != "" {
		if s, err := r.clientFor(opts).Flows.Steps(ctx, opts.FlowID); err == nil {
			steps = s
		} else {
			r.logger.Warn("failed to load flow steps", "flow_id", opts.FlowID, "error", err)
		}
	}
	return r.attach(ctx, executionID, steps, opts)
}

func (r *flowRuntime) attach(ctx context.Context, executionID string, steps []models.FlowStep, opts RunOptions) (*Run, error) {
	r.mu.Lock()
	if run, ok := r.runs[executionID]; ok {
		r.mu.Unlock()
		return run, nil
	}
	r.mu.Unlock()

	cl := r.clientFor(opts)
	push, poll, err := r.subscribers(cl, opts.Realtime)
	if err != nil {
		return nil, err
	}

	if obs := r.cfg.Observer; obs != nil {
		observe := func(ev events.Event) { obs.Event(executionID, ev) }
		push = events.Tee(push, observe)
		poll = events.Tee(poll, observe)
	}

	run := &Run{
		ExecutionID: executionID,
		FlowID:      opts.FlowID,
		Realtime:    opts.Realtime && push != nil,
		StartedAt:   time.Now(),
		Monitor: monitor.New(executionID, monitor.Config{
			Push:      push,
			Poll:      poll,
			Canceller: cl.Executions,
			Steps:     steps,
			Logger:    r.logger,
		}),
	}

	r.mu.Lock()
	if existing, ok := r.runs[executionID]; ok {
		r.mu.Unlock()
		return existing, nil
	}
	r.runs[executionID] = run
	r.mu.Unlock()

	if obs := r.cfg.Observer; obs != nil {
		obs.RunStarted(executionID)
	}

	if err := run.Monitor.Start(ctx); err != nil {
		r.forget(run)
		return nil, fmt.Errorf("failed to monitor execution %s: %w", executionID, err)
	}
	go r.evictWhenDone(run)
	return run, nil
}

// evictWhenDone drops run once it has been finished for the retention period
func (r *flowRuntime) evictWhenDone(run *Run) {
	select {
	case <-run.Monitor.Done():
	case <-r.closed:
		return
	}

	timer := time.NewTimer(r.cfg.Retention)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-r.closed:
		return
	}

	if r.forget(run) {
		r.logger.Debug("evicted finished run", "execution_id", run.ExecutionID)
	}
}

// subscribers builds the push channel for the configured mode and the poll
// fallback. Either may be nil.
func (r *flowRuntime) subscribers(cl *client.Client, realtime bool) (push, poll events.Subscriber, err error) {
	poll = events.NewPollSubscriber(cl.Executions, r.cfg.PollInterval, r.logger)
	if !realtime || r.cfg.Mode == events.ModePoll {
		return nil, poll, nil
	}

	push, err = events.NewSubscriber(r.cfg.Mode, events.Dependencies{
		BaseURL:      cl.BaseURL(),
		Token:        cl.Token(),
		Executions:   cl.Executions,
		PollInterval: r.cfg.PollInterval,
		Redis:        r.cfg.Redis,
		RelayURL:     r.cfg.RelayURL,
		RelayHeaders: r.cfg.RelayHeaders,
		Logger:       r.logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create %s subscriber: %w", r.cfg.Mode, err)
	}
	if !r.cfg.FallbackToPoll {
		poll = nil
	}
	return push, poll, nil
}

func (r *flowRuntime) Get(executionID string) (*Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[executionID]
	if !ok {
		return nil, ErrRunNotFound
	}
	return run, nil
}

func (r *flowRuntime) Cancel(ctx context.Context, executionID string) error {
	run, err := r.Get(executionID)
	if err != nil {
		return err
	}
	return run.Monitor.Cancel(ctx)
}

func (r *flowRuntime) Remove(executionID string) error {
	run, err := r.Get(executionID)
	if err != nil {
		return err
	}
	run.Monitor.Stop()
	r.forget(run)
	return nil
}

// forget unregisters run unless another run already replaced it or it is gone
func (r *flowRuntime) forget(run *Run) bool {
	r.mu.Lock()
	if r.runs[run.ExecutionID] != run {
		r.mu.Unlock()
		return false
	}
	delete(r.runs, run.ExecutionID)
	r.mu.Unlock()

	if obs := r.cfg.Observer; obs != nil {
		obs.RunRemoved(run.ExecutionID)
	}
	return true
}

func (r *flowRuntime) Close() {
	r.closeOnce.Do(func() { close(r.closed) })

	r.mu.Lock()
	ids := make([]string, 0, len(r.runs))
	for id := range r.runs {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	for _, id := range ids {
		_ = r.Remove(id)
	}
}
