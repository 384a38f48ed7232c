package monitor

import (
	"fmt"
	"strings"

	"github.com/tcmartin/crewdeck/pkg/events"
)

type formatter func(ev events.Event) string

var formatters = map[events.Type]formatter{
	events.TypeConnected: func(events.Event) string { return "Connected to execution stream" },
	events.TypeStart:     func(events.Event) string { return "Execution started" },
	events.TypeFlowLoaded: func(ev events.Event) string {
		msg := "Flow loaded"
		if name := ev.String("flow_name"); name != "" {
			msg += ": " + name
		}
		if n := ev.String("steps_count"); n != "" {
			msg += fmt.Sprintf(" (%s steps)", n)
		}
		return msg
	},
	events.TypeCrewLoaded: func(ev events.Event) string {
		return withDetail("Crew loaded", ev.String("crew_name"))
	},
	events.TypeStepStart: func(ev events.Event) string {
		msg := "Starting step: " + stepName(ev)
		if t := ev.String("step_type"); t != "" {
			msg += fmt.Sprintf(" (%s)", t)
		}
		return msg
	},
	events.TypeStepComplete: func(ev events.Event) string {
		msg := "Completed step: " + stepName(ev)
		if ms := ev.String("metrics", "duration_ms"); ms != "" {
			msg += fmt.Sprintf(" in %sms", ms)
		}
		return msg
	},
	events.TypeAgentStart: func(ev events.Event) string {
		return withDetail("Agent "+ev.String("agent")+" started", ev.String("task"))
	},
	events.TypeAgentThinking: func(ev events.Event) string {
		return withDetail("Agent "+ev.String("agent")+" thinking", ev.String("thought"))
	},
	events.TypeAgentAction: func(ev events.Event) string {
		return withDetail("Agent "+ev.String("agent")+" action", ev.String("action"))
	},
	events.TypeAgentComplete: func(ev events.Event) string {
		return "Agent " + ev.String("agent") + " completed"
	},
	events.TypeTaskStart: func(ev events.Event) string {
		return withDetail("Task started", ev.String("task"))
	},
	events.TypeTaskComplete: func(ev events.Event) string {
		return withDetail("Task completed", ev.String("task"))
	},
	events.TypeToolCall: func(ev events.Event) string {
		return withDetail("Tool called", ev.String("tool"))
	},
	events.TypeLLMCall: func(ev events.Event) string {
		msg := withDetail("LLM call", ev.String("model"))
		if tokens := ev.String("tokens"); tokens != "" {
			msg += fmt.Sprintf(" (%s tokens)", tokens)
		}
		return msg
	},
	events.TypeLog: func(ev events.Event) string { return ev.String("message") },
	events.TypeProgress: func(ev events.Event) string {
		return withDetail("Progress "+ev.String("percent")+"%", ev.String("message"))
	},
	events.TypeComplete: func(events.Event) string { return "Execution completed successfully" },
	events.TypeError: func(ev events.Event) string {
		msg := ev.String("message")
		if msg == "" {
			msg = DefaultErrorMessage
		}
		return "Error: " + msg
	},
	events.TypeCancelled: func(events.Event) string { return "Execution cancelled" },
	events.TypeHumanInputRequired: func(ev events.Event) string {
		return withDetail("Human input required", ev.String("prompt"))
	},
	events.TypeSnapshot: func(ev events.Event) string {
		return "Status: " + ev.String("status")
	},
}

// FormatMessage derives the display message for an event. Types without a
// dedicated formatter fall back to the event's message, or its type and raw
// payload.
func FormatMessage(ev events.Event) string {
	if f, ok := formatters[ev.Type]; ok {
		return f(ev)
	}
	return defaultMessage(ev)
}

func defaultMessage(ev events.Event) string {
	if msg := ev.String("message"); msg != "" {
		return msg
	}
	raw := strings.TrimSpace(string(ev.Raw))
	if ev.Type == "" {
		return raw
	}
	return fmt.Sprintf("%s: %s", ev.Type, raw)
}

func withDetail(msg, detail string) string {
	if detail == "" {
		return msg
	}
	return msg + ": " + detail
}

func levelFor(ev events.Event) string {
	switch ev.Type {
	case events.TypeError:
		return "error"
	case events.TypeCancelled, events.TypeHumanInputRequired:
		return "warning"
	case events.TypeAgentThinking, events.TypeLLMCall, events.TypeConnected:
		return "debug"
	case events.TypeLog:
		if level := ev.String("level"); level != "" {
			return level
		}
	}
	return "info"
}
