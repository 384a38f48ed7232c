// Package runtime starts flow executions on the backend and keeps each one
// under observation with a monitor.
package runtime

import (
	"context"
	"errors"
	"time"

	"github.com/tcmartin/crewdeck/pkg/client"
	"github.com/tcmartin/crewdeck/pkg/events"
	"github.com/tcmartin/crewdeck/pkg/monitor"
)

// ErrRunNotFound is returned for executions this runtime does not observe
var ErrRunNotFound = errors.New("run not found")

// FlowRuntime kicks off executions and tracks the ones it observes
type FlowRuntime interface {
	// Execute starts a flow and begins monitoring the new execution
	Execute(ctx context.Context, flowID string, input, initialState map[string]interface{}, opts RunOptions) (*Run, error)

	// Attach begins monitoring an execution started elsewhere
	Attach(ctx context.Context, executionID string, opts RunOptions) (*Run, error)

	// Get returns an observed run. Finished runs are evicted after the
	// configured retention.
	Get(executionID string) (*Run, error)

	// Cancel stops the execution on the backend and ends monitoring
	Cancel(ctx context.Context, executionID string) error

	// Remove ends monitoring and forgets the run. The execution keeps going.
	Remove(executionID string) error

	// Close removes every run
	Close()
}

// RunOptions tune a single run
type RunOptions struct {
	// Client overrides the runtime's backend client, e.g. with the caller's token
	Client *client.Client

	// Realtime selects the push channel; false polls from the start
	Realtime bool

	// FlowID is recorded on attached runs when known
	FlowID string
}

// Observer is told about runs and every event they receive
type Observer interface {
	RunStarted(executionID string)
	Event(executionID string, ev events.Event)
	RunRemoved(executionID string)
}

// Run is one observed execution
type Run struct {
	ExecutionID string
	FlowID      string
	Realtime    bool
	StartedAt   time.Time
	Monitor     *monitor.Monitor
}

// State returns the current run state
func (r *Run) State() monitor.State {
	return r.Monitor.State()
}
