package monitor

import (
	"time"

	"github.com/google/uuid"

	"github.com/tcmartin/crewdeck/pkg/events"
	"github.com/tcmartin/crewdeck/pkg/models"
)

// Reduce applies one event to s and returns the new state. s is not
// modified. Every event except a poll snapshot appends exactly one log
// entry; a snapshot replaces the log list with the server's copy.
func Reduce(s State, ev events.Event) State {
	if ev.Type == events.TypeSnapshot && ev.Snapshot != nil {
		return applySnapshot(s, ev.Snapshot, ev.ReceivedAt)
	}

	// clip so append never writes into the caller's backing array
	s.Logs = append(s.Logs[:len(s.Logs):len(s.Logs)], NewLogEntry(ev))
	s.UpdatedAt = eventTime(ev)

	switch ev.Type {
	case events.TypeStart:
		s.Status = models.StatusRunning
		s.Progress = 5
	case events.TypeFlowLoaded, events.TypeCrewLoaded:
		s.Progress = 10
	case events.TypeStepStart:
		s.CurrentStep = stepName(ev)
	case events.TypeStepComplete:
		s.CurrentStep = ""
	case events.TypeProgress:
		if p, ok := ev.Number("percent"); ok {
			s.Progress = clampProgress(int(p))
		}
	case events.TypeComplete:
		s.Status = models.StatusCompleted
		s.Result, _ = ev.Value("output")
		s.Progress = 100
		s.HumanInput = nil
		s.Monitoring = false
	case events.TypeError:
		s.Status = models.StatusFailed
		s.Error = ev.String("message")
		if s.Error == "" {
			s.Error = DefaultErrorMessage
		}
		s.HumanInput = nil
		s.Monitoring = false
	case events.TypeCancelled:
		s.Status = models.StatusCancelled
		s.HumanInput = nil
		s.Monitoring = false
	case events.TypeHumanInputRequired:
		s.Status = models.StatusWaitingHuman
		hi := &HumanInput{Prompt: ev.String("prompt")}
		if opts, ok := ev.Value("options"); ok {
			hi.Options, _ = opts.([]interface{})
		}
		s.HumanInput = hi
	}
	return s
}

func applySnapshot(s State, snap *events.Snapshot, at time.Time) State {
	logs := make([]LogEntry, 0, len(snap.Logs))
	for _, l := range snap.Logs {
		entry := LogEntry{
			ID:        l.ID,
			Timestamp: l.Timestamp,
			Type:      "log",
			Level:     l.Level,
			Message:   l.Message,
		}
		if l.Data != nil {
			entry.Data = l.Data
		}
		logs = append(logs, entry)
	}
	s.Logs = logs

	exec := snap.Execution
	if exec.Status != "" {
		s.Status = exec.Status
	}
	switch exec.Status {
	case models.StatusCompleted:
		s.Result = exec.Outputs
		s.Progress = 100
		s.CurrentStep = ""
	case models.StatusFailed:
		s.Error = exec.Error
		if s.Error == "" {
			s.Error = DefaultErrorMessage
		}
	}
	if exec.Status.IsTerminal() {
		s.HumanInput = nil
		s.Monitoring = false
	}
	if at.IsZero() {
		at = time.Now()
	}
	s.UpdatedAt = at
	return s
}

// NewLogEntry renders an event as a run log line
func NewLogEntry(ev events.Event) LogEntry {
	entry := LogEntry{
		ID:        uuid.NewString(),
		Timestamp: eventTime(ev),
		Type:      string(ev.Type),
		Level:     levelFor(ev),
		Message:   FormatMessage(ev),
	}
	if ev.Payload != nil {
		entry.Data = ev.Payload
	} else if len(ev.Raw) > 0 {
		entry.Data = string(ev.Raw)
	}
	return entry
}

func eventTime(ev events.Event) time.Time {
	if ev.ReceivedAt.IsZero() {
		return time.Now()
	}
	return ev.ReceivedAt
}

func stepName(ev events.Event) string {
	if name := ev.String("step_name"); name != "" {
		return name
	}
	return ev.String("step_id")
}

func clampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
