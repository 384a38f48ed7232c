// Package events delivers live execution events from the orchestration
// backend. A Subscriber connects to one execution and hands every decoded
// event to a caller supplied Handler, one at a time and in arrival order.
package events

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/tcmartin/crewdeck/pkg/models"
)

// Type is the event discriminator carried in the "type" field
type Type string

// Event types emitted by the backend
const (
	TypeConnected          Type = "connected"
	TypeStart              Type = "start"
	TypeFlowLoaded         Type = "flow_loaded"
	TypeCrewLoaded         Type = "crew_loaded"
	TypeStepStart          Type = "step_start"
	TypeStepComplete       Type = "step_complete"
	TypeAgentStart         Type = "agent_start"
	TypeAgentThinking      Type = "agent_thinking"
	TypeAgentAction        Type = "agent_action"
	TypeAgentComplete      Type = "agent_complete"
	TypeTaskStart          Type = "task_start"
	TypeTaskComplete       Type = "task_complete"
	TypeToolCall           Type = "tool_call"
	TypeLLMCall            Type = "llm_call"
	TypeLog                Type = "log"
	TypeProgress           Type = "progress"
	TypeComplete           Type = "complete"
	TypeError              Type = "error"
	TypeCancelled          Type = "cancelled"
	TypeHumanInputRequired Type = "human_input_required"

	// TypeSnapshot is produced locally by the poll subscriber
	TypeSnapshot Type = "snapshot"
)

// IsTerminal reports whether the event ends the execution
func (t Type) IsTerminal() bool {
	return t == TypeComplete || t == TypeError || t == TypeCancelled
}

// Snapshot is the server state captured by one poll
type Snapshot struct {
	Execution models.Execution      `json:"execution"`
	Logs      []models.ExecutionLog `json:"logs"`
}

// Event is a single message from an execution channel. Payload holds every
// decoded field including "type"; Raw keeps the bytes as received.
type Event struct {
	Type        Type
	ExecutionID string
	Payload     map[string]interface{}
	Raw         []byte
	Snapshot    *Snapshot
	ReceivedAt  time.Time
}

// Decode parses a frame. It never fails: frames that are not JSON objects
// become an event with an empty type and the raw text.
func Decode(raw []byte) Event {
	ev := Event{
		Raw:        append([]byte(nil), raw...),
		ReceivedAt: time.Now(),
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(raw, &payload); err != nil || payload == nil {
		return ev
	}
	ev.Payload = payload
	if t, ok := payload["type"].(string); ok {
		ev.Type = Type(t)
	}
	if id, ok := payload["execution_id"].(string); ok {
		ev.ExecutionID = id
	}

	if ev.Type == TypeSnapshot {
		var snap Snapshot
		if err := json.Unmarshal(raw, &snap); err == nil {
			ev.Snapshot = &snap
		}
	}
	return ev
}

// NewSnapshotEvent wraps a poll result as an event
func NewSnapshotEvent(execution models.Execution, logs []models.ExecutionLog) Event {
	if logs == nil {
		logs = []models.ExecutionLog{}
	}
	snap := &Snapshot{Execution: execution, Logs: logs}
	raw, _ := json.Marshal(struct {
		Type        Type   `json:"type"`
		ExecutionID string `json:"execution_id"`
		*Snapshot
	}{TypeSnapshot, execution.ID, snap})

	return Event{
		Type:        TypeSnapshot,
		ExecutionID: execution.ID,
		Payload: map[string]interface{}{
			"type":         string(TypeSnapshot),
			"execution_id": execution.ID,
			"status":       string(execution.Status),
		},
		Raw:        raw,
		Snapshot:   snap,
		ReceivedAt: time.Now(),
	}
}

// Value returns a payload field following nested object keys, e.g.
// Value("metrics", "duration_ms").
func (e Event) Value(path ...string) (interface{}, bool) {
	var cur interface{} = e.Payload
	for _, key := range path {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return cur, cur != nil
}

// String returns a payload field rendered as text. Numbers and booleans are
// formatted, objects are encoded as JSON.
func (e Event) String(path ...string) string {
	v, ok := e.Value(path...)
	if !ok {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// Number returns a numeric payload field
func (e Event) Number(path ...string) (float64, bool) {
	v, ok := e.Value(path...)
	if !ok {
		return 0, false
	}
	switch val := v.(type) {
	case float64:
		return val, true
	case string:
		f, err := strconv.ParseFloat(val, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// MarshalJSON emits the frame as it was received
func (e Event) MarshalJSON() ([]byte, error) {
	if len(e.Raw) > 0 && json.Valid(e.Raw) {
		return e.Raw, nil
	}
	if e.Payload != nil {
		return json.Marshal(e.Payload)
	}
	return json.Marshal(string(e.Raw))
}
