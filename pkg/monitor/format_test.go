package monitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatMessage(t *testing.T) {
	tests := []struct {
		event string
		want  string
	}{
		{`{"type":"start"}`, "Execution started"},
		{`{"type":"flow_loaded","flow_name":"Research","steps_count":3}`, "Flow loaded: Research (3 steps)"},
		{`{"type":"flow_loaded"}`, "Flow loaded"},
		{`{"type":"step_start","step_name":"fetch","step_type":"crew"}`, "Starting step: fetch (crew)"},
		{`{"type":"step_complete","step_name":"fetch","metrics":{"duration_ms":1250}}`, "Completed step: fetch in 1250ms"},
		{`{"type":"complete","output":{}}`, "Execution completed successfully"},
		{`{"type":"error","message":"boom"}`, "Error: boom"},
		{`{"type":"error"}`, "Error: Execution failed"},
		{`{"type":"cancelled"}`, "Execution cancelled"},
		{`{"type":"human_input_required","prompt":"Approve?"}`, "Human input required: Approve?"},
		{`{"type":"llm_call","model":"gpt-4","tokens":150}`, "LLM call: gpt-4 (150 tokens)"},
		{`{"type":"agent_start","agent":"Researcher","task":"Research AI trends"}`, "Agent Researcher started: Research AI trends"},
		{`{"type":"log","level":"warning","message":"slow"}`, "slow"},
		{`{"type":"brand_new","message":"hello"}`, "hello"},
		{`{"type":"brand_new","x":1}`, `brand_new: {"type":"brand_new","x":1}`},
		{`plain text`, "plain text"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatMessage(ev(tt.event)))
		})
	}
}

func TestLevelFor(t *testing.T) {
	assert.Equal(t, "error", levelFor(ev(`{"type":"error"}`)))
	assert.Equal(t, "warning", levelFor(ev(`{"type":"human_input_required"}`)))
	assert.Equal(t, "warning", levelFor(ev(`{"type":"log","level":"warning"}`)))
	assert.Equal(t, "info", levelFor(ev(`{"type":"log"}`)))
	assert.Equal(t, "debug", levelFor(ev(`{"type":"llm_call"}`)))
	assert.Equal(t, "info", levelFor(ev(`{"type":"start"}`)))
}
