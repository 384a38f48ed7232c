// Package monitor folds execution events into run state and keeps one
// execution under live observation, switching to polling when the push
// channel goes away.
package monitor

import (
	"time"

	"github.com/tcmartin/crewdeck/pkg/models"
)

// DefaultErrorMessage is used when an error event carries no message
const DefaultErrorMessage = "Execution failed"

// Channel names reported in State.Channel
const (
	ChannelPush = "push"
	ChannelPoll = "poll"
)

// LogEntry is one line of the run log
type LogEntry struct {
	ID        string      `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	Type      string      `json:"type"`
	Level     string      `json:"level"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
}

// HumanInput is the pending question of a waiting_human execution
type HumanInput struct {
	Prompt  string        `json:"prompt"`
	Options []interface{} `json:"options,omitempty"`
}

// State is what the run page shows for one execution
type State struct {
	ExecutionID string                 `json:"execution_id"`
	Status      models.ExecutionStatus `json:"status"`
	Progress    int                    `json:"progress"`

	// CurrentStep is empty when no step is running
	CurrentStep string `json:"current_step,omitempty"`

	Logs       []LogEntry  `json:"logs"`
	Result     interface{} `json:"result,omitempty"`
	Error      string      `json:"error,omitempty"`
	HumanInput *HumanInput `json:"human_input,omitempty"`

	// Monitoring is false once the execution reached a terminal state or the
	// monitor was torn down
	Monitoring bool `json:"monitoring"`

	// Channel is the active delivery path, push or poll
	Channel string `json:"channel,omitempty"`

	Steps     []models.FlowStep `json:"steps,omitempty"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// NewState returns the state of a freshly kicked off execution
func NewState(executionID string) State {
	return State{
		ExecutionID: executionID,
		Status:      models.StatusPending,
		Logs:        []LogEntry{},
		Monitoring:  true,
		UpdatedAt:   time.Now(),
	}
}

// Clone returns a copy that shares no slices with s
func (s State) Clone() State {
	s.Logs = append([]LogEntry(nil), s.Logs...)
	if s.Logs == nil {
		s.Logs = []LogEntry{}
	}
	s.Steps = append([]models.FlowStep(nil), s.Steps...)
	if s.HumanInput != nil {
		hi := *s.HumanInput
		s.HumanInput = &hi
	}
	return s
}

// StepIndex returns the position of the current step in Steps, or -1
func (s State) StepIndex() int {
	if s.CurrentStep == "" {
		return -1
	}
	for i, step := range s.Steps {
		if step.Name == s.CurrentStep || step.ID == s.CurrentStep {
			return i
		}
	}
	return -1
}
