// Package models contains the resource types exchanged with the orchestration backend.
package models

import "time"

// ExecutionStatus is the lifecycle state of a crew or flow execution
type ExecutionStatus string

// Execution statuses reported by the backend
const (
	StatusPending      ExecutionStatus = "pending"
	StatusRunning      ExecutionStatus = "running"
	StatusCompleted    ExecutionStatus = "completed"
	StatusFailed       ExecutionStatus = "failed"
	StatusCancelled    ExecutionStatus = "cancelled"
	StatusWaitingHuman ExecutionStatus = "waiting_human"
)

// IsTerminal reports whether no further transitions are expected
func (s ExecutionStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Execution represents a single run of a crew or flow
type Execution struct {
	// ID of the execution
	ID string `json:"id"`

	// ExecutionType is either "crew" or "flow"
	ExecutionType string `json:"execution_type"`

	CrewID string `json:"crew_id,omitempty"`
	FlowID string `json:"flow_id,omitempty"`

	// Status of the execution
	Status ExecutionStatus `json:"status"`

	// Inputs the execution was started with
	Inputs map[string]interface{} `json:"inputs,omitempty"`

	// Outputs of the execution once completed
	Outputs map[string]interface{} `json:"outputs,omitempty"`

	// Error message if the execution failed
	Error string `json:"error,omitempty"`

	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	DurationMS  int64      `json:"duration_ms,omitempty"`

	TotalTokens      int     `json:"total_tokens"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	EstimatedCost    float64 `json:"estimated_cost"`

	// TriggerType is how the execution was started (manual, webhook, schedule, ...)
	TriggerType string `json:"trigger_type,omitempty"`
	TriggerID   string `json:"trigger_id,omitempty"`

	Environment string    `json:"environment,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ExecutionLog is a log entry persisted by the backend for an execution
type ExecutionLog struct {
	ID          string `json:"id"`
	ExecutionID string `json:"execution_id"`

	// Level of the log entry
	Level string `json:"level"` // "debug", "info", "warning", "error"

	// Message is the log message
	Message string `json:"message"`

	// Data is additional context for the log entry
	Data map[string]interface{} `json:"data,omitempty"`

	// Source names the agent, task or step that produced the entry
	Source     string `json:"source,omitempty"`
	SourceType string `json:"source_type,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// Trace is an observability span recorded for an execution
type Trace struct {
	ID            string                 `json:"id"`
	ExecutionID   string                 `json:"execution_id"`
	TraceID       string                 `json:"trace_id"`
	SpanID        string                 `json:"span_id"`
	ParentSpanID  string                 `json:"parent_span_id,omitempty"`
	OperationName string                 `json:"operation_name"`
	OperationType string                 `json:"operation_type,omitempty"`
	StartTime     time.Time              `json:"start_time"`
	EndTime       *time.Time             `json:"end_time,omitempty"`
	DurationMS    int64                  `json:"duration_ms,omitempty"`
	Status        string                 `json:"status"`
	Error         string                 `json:"error,omitempty"`
	Attributes    map[string]interface{} `json:"attributes,omitempty"`
	LLMModel      string                 `json:"llm_model,omitempty"`
	TokensUsed    int                    `json:"tokens_used,omitempty"`
}

// KickoffRequest starts a flow execution. InitialState is always sent, {} when empty.
type KickoffRequest struct {
	Inputs         map[string]interface{} `json:"inputs"`
	InitialState   map[string]interface{} `json:"initial_state"`
	AsyncExecution bool                   `json:"async_execution"`
}

// CrewKickoffRequest starts a crew execution
type CrewKickoffRequest struct {
	Inputs         map[string]interface{} `json:"inputs"`
	AsyncExecution bool                   `json:"async_execution"`
}

// KickoffResponse is returned when an execution has been created
type KickoffResponse struct {
	ExecutionID string          `json:"execution_id"`
	Status      ExecutionStatus `json:"status"`
	Message     string          `json:"message"`
}

// LogQuery filters the execution log listing
type LogQuery struct {
	// Level restricts the listing to one level; empty means all
	Level string

	// Limit caps the number of entries; zero uses the backend default
	Limit int
}

// HumanFeedback answers a human_input_required event
type HumanFeedback struct {
	Response string                 `json:"response,omitempty"`
	Choice   string                 `json:"choice,omitempty"`
	Data     map[string]interface{} `json:"data,omitempty"`
}
