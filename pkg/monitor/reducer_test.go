package monitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tcmartin/crewdeck/pkg/events"
	"github.com/tcmartin/crewdeck/pkg/models"
)

func ev(raw string) events.Event {
	return events.Decode([]byte(raw))
}

func reduceAll(s State, evs ...events.Event) State {
	for _, e := range evs {
		s = Reduce(s, e)
	}
	return s
}

func TestReduceExampleScenario(t *testing.T) {
	s := NewState("exec-1")

	s = Reduce(s, ev(`{"type":"start"}`))
	assert.Equal(t, models.StatusRunning, s.Status)
	assert.Equal(t, 5, s.Progress)

	s = Reduce(s, ev(`{"type":"step_start","step_name":"fetch"}`))
	assert.Equal(t, "fetch", s.CurrentStep)

	s = Reduce(s, ev(`{"type":"step_complete","step_name":"fetch"}`))
	assert.Equal(t, "", s.CurrentStep)

	s = Reduce(s, ev(`{"type":"complete","output":{"result":"ok"}}`))
	assert.Equal(t, models.StatusCompleted, s.Status)
	assert.Equal(t, 100, s.Progress)
	assert.Equal(t, map[string]interface{}{"result": "ok"}, s.Result)
	assert.False(t, s.Monitoring)
	assert.Len(t, s.Logs, 4)
}

func TestReduceTransitions(t *testing.T) {
	tests := []struct {
		name   string
		event  string
		check  func(t *testing.T, s State)
	}{
		{"flow_loaded", `{"type":"flow_loaded","flow_name":"f","steps_count":3}`, func(t *testing.T, s State) {
			assert.Equal(t, 10, s.Progress)
		}},
		{"crew_loaded", `{"type":"crew_loaded"}`, func(t *testing.T, s State) {
			assert.Equal(t, 10, s.Progress)
		}},
		{"progress clamps", `{"type":"progress","percent":140}`, func(t *testing.T, s State) {
			assert.Equal(t, 100, s.Progress)
		}},
		{"progress negative", `{"type":"progress","percent":-3}`, func(t *testing.T, s State) {
			assert.Equal(t, 0, s.Progress)
		}},
		{"error with message", `{"type":"error","message":"LLM quota exceeded"}`, func(t *testing.T, s State) {
			assert.Equal(t, models.StatusFailed, s.Status)
			assert.Equal(t, "LLM quota exceeded", s.Error)
			assert.False(t, s.Monitoring)
		}},
		{"error without message", `{"type":"error"}`, func(t *testing.T, s State) {
			assert.Equal(t, models.StatusFailed, s.Status)
			assert.Equal(t, DefaultErrorMessage, s.Error)
		}},
		{"cancelled", `{"type":"cancelled"}`, func(t *testing.T, s State) {
			assert.Equal(t, models.StatusCancelled, s.Status)
			assert.False(t, s.Monitoring)
		}},
		{"human input", `{"type":"human_input_required","prompt":"Approve?","options":["yes","no"]}`, func(t *testing.T, s State) {
			assert.Equal(t, models.StatusWaitingHuman, s.Status)
			require.NotNil(t, s.HumanInput)
			assert.Equal(t, "Approve?", s.HumanInput.Prompt)
			assert.Equal(t, []interface{}{"yes", "no"}, s.HumanInput.Options)
			assert.True(t, s.Monitoring)
		}},
		{"unknown type only logs", `{"type":"agent_thinking","agent":"a","thought":"hmm"}`, func(t *testing.T, s State) {
			assert.Equal(t, models.StatusRunning, s.Status)
			assert.Equal(t, 5, s.Progress)
			assert.True(t, s.Monitoring)
		}},
		{"non json frame only logs", `garbage`, func(t *testing.T, s State) {
			assert.Equal(t, "garbage", s.Logs[len(s.Logs)-1].Message)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Reduce(NewState("exec-1"), ev(`{"type":"start"}`))
			s = Reduce(s, ev(tt.event))
			assert.Len(t, s.Logs, 2)
			tt.check(t, s)
		})
	}
}

func TestReduceCompleteUsesLastOutput(t *testing.T) {
	s := reduceAll(NewState("exec-1"),
		ev(`{"type":"start"}`),
		ev(`{"type":"complete","output":"first"}`),
		ev(`{"type":"complete","output":"second"}`),
	)
	assert.Equal(t, "second", s.Result)
	assert.Equal(t, 100, s.Progress)
}

func TestReduceLogCountMatchesEvents(t *testing.T) {
	frames := []string{
		`{"type":"connected"}`,
		`{"type":"start"}`,
		`{"type":"log","message":"same"}`,
		`{"type":"log","message":"same"}`,
		`{"type":"mystery"}`,
		`not json`,
		`{"type":"step_start","step_name":"a"}`,
	}
	s := NewState("exec-1")
	for i, f := range frames {
		s = Reduce(s, ev(f))
		assert.Len(t, s.Logs, i+1)
	}
	assert.Equal(t, "same", s.Logs[2].Message)
	assert.Equal(t, "same", s.Logs[3].Message, "duplicates are kept")
	assert.NotEqual(t, s.Logs[2].ID, s.Logs[3].ID)
}

func TestReduceDoesNotMutateInput(t *testing.T) {
	base := Reduce(NewState("exec-1"), ev(`{"type":"start"}`))
	base.Logs = append(make([]LogEntry, 0, 10), base.Logs...)

	a := Reduce(base, ev(`{"type":"log","message":"a"}`))
	b := Reduce(base, ev(`{"type":"log","message":"b"}`))

	assert.Len(t, base.Logs, 1)
	assert.Equal(t, "a", a.Logs[1].Message)
	assert.Equal(t, "b", b.Logs[1].Message)
	assert.Equal(t, models.StatusRunning, base.Status)
}

func TestReduceSnapshotReplacesLogs(t *testing.T) {
	s := reduceAll(NewState("exec-1"),
		ev(`{"type":"start"}`),
		ev(`{"type":"log","message":"local only"}`),
	)

	serverLogs := []models.ExecutionLog{
		{ID: "1", Level: "info", Message: "Execution started"},
		{ID: "2", Level: "info", Message: "Step fetch done"},
	}
	s = Reduce(s, events.NewSnapshotEvent(models.Execution{ID: "exec-1", Status: models.StatusRunning}, serverLogs))
	require.Len(t, s.Logs, 2)
	assert.Equal(t, "Execution started", s.Logs[0].Message)
	assert.Equal(t, "Step fetch done", s.Logs[1].Message)
	assert.True(t, s.Monitoring)

	s = Reduce(s, events.NewSnapshotEvent(models.Execution{ID: "exec-1", Status: models.StatusRunning}, serverLogs[:1]))
	assert.Len(t, s.Logs, 1, "each snapshot fully replaces the list")

	s = Reduce(s, events.NewSnapshotEvent(models.Execution{
		ID:      "exec-1",
		Status:  models.StatusCompleted,
		Outputs: map[string]interface{}{"result": "ok"},
	}, serverLogs))
	assert.Equal(t, models.StatusCompleted, s.Status)
	assert.Equal(t, 100, s.Progress)
	assert.Equal(t, map[string]interface{}{"result": "ok"}, s.Result)
	assert.False(t, s.Monitoring)
	assert.Len(t, s.Logs, 2)
}

func TestReduceSnapshotFailed(t *testing.T) {
	s := Reduce(NewState("exec-1"), events.NewSnapshotEvent(models.Execution{ID: "exec-1", Status: models.StatusFailed}, nil))
	assert.Equal(t, models.StatusFailed, s.Status)
	assert.Equal(t, DefaultErrorMessage, s.Error)
	assert.Empty(t, s.Logs)
	assert.False(t, s.Monitoring)
}

func TestStateStepIndex(t *testing.T) {
	s := NewState("exec-1")
	s.Steps = []models.FlowStep{{ID: "s1", Name: "fetch"}, {ID: "s2", Name: "summarize"}}
	assert.Equal(t, -1, s.StepIndex())

	s = Reduce(s, ev(`{"type":"step_start","step_name":"summarize"}`))
	assert.Equal(t, 1, s.StepIndex())

	clone := s.Clone()
	clone.Steps[0].Name = "changed"
	assert.Equal(t, "fetch", s.Steps[0].Name)
}
