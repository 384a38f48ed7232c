package events

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tcmartin/crewdeck/pkg/models"
)

// collector records delivered events
type collector struct {
	mu     sync.Mutex
	events []Event
}

func (c *collector) handle(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *collector) types() []Type {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Type, 0, len(c.events))
	for _, ev := range c.events {
		out = append(out, ev.Type)
	}
	return out
}

func (c *collector) all() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Event(nil), c.events...)
}

func waitDone(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case <-sub.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("subscription did not finish")
	}
}

func TestDecode(t *testing.T) {
	ev := Decode([]byte(`{"type":"step_start","execution_id":"exec-1","step_name":"fetch","metrics":{"duration_ms":42}}`))
	assert.Equal(t, TypeStepStart, ev.Type)
	assert.Equal(t, "exec-1", ev.ExecutionID)
	assert.Equal(t, "fetch", ev.String("step_name"))
	assert.Equal(t, "42", ev.String("metrics", "duration_ms"))

	ms, ok := ev.Number("metrics", "duration_ms")
	assert.True(t, ok)
	assert.Equal(t, float64(42), ms)

	_, ok = ev.Value("metrics", "missing")
	assert.False(t, ok)
	assert.Equal(t, "", ev.String("step_name", "nested"))
}

func TestDecodeNeverValidates(t *testing.T) {
	garbage := Decode([]byte("not json"))
	assert.Equal(t, Type(""), garbage.Type)
	assert.Nil(t, garbage.Payload)
	assert.Equal(t, []byte("not json"), garbage.Raw)

	unknown := Decode([]byte(`{"type":"something_new","foo":1}`))
	assert.Equal(t, Type("something_new"), unknown.Type)
	assert.False(t, unknown.Type.IsTerminal())

	noType := Decode([]byte(`{"message":"hello"}`))
	assert.Equal(t, Type(""), noType.Type)
	assert.Equal(t, "hello", noType.String("message"))
}

func TestSnapshotEventRoundTrip(t *testing.T) {
	execution := models.Execution{ID: "exec-1", Status: models.StatusCompleted, Outputs: map[string]interface{}{"result": "ok"}}
	logs := []models.ExecutionLog{{ID: "l1", Level: "info", Message: "done"}}

	ev := NewSnapshotEvent(execution, logs)
	assert.Equal(t, TypeSnapshot, ev.Type)
	require.NotNil(t, ev.Snapshot)

	raw, err := json.Marshal(ev)
	require.NoError(t, err)

	decoded := Decode(raw)
	assert.Equal(t, TypeSnapshot, decoded.Type)
	assert.Equal(t, "exec-1", decoded.ExecutionID)
	require.NotNil(t, decoded.Snapshot)
	assert.Equal(t, models.StatusCompleted, decoded.Snapshot.Execution.Status)
	assert.Equal(t, "done", decoded.Snapshot.Logs[0].Message)
}

func TestMarshalNonJSONFrame(t *testing.T) {
	raw, err := json.Marshal(Decode([]byte("plain text")))
	require.NoError(t, err)
	assert.JSONEq(t, `"plain text"`, string(raw))
}

func TestTerminalTypes(t *testing.T) {
	for _, typ := range []Type{TypeComplete, TypeError, TypeCancelled} {
		assert.True(t, typ.IsTerminal(), typ)
	}
	for _, typ := range []Type{TypeStart, TypeHumanInputRequired, TypeSnapshot} {
		assert.False(t, typ.IsTerminal(), typ)
	}
}

func TestSubscriptionLifecycle(t *testing.T) {
	sub, ctx := newSubscription(context.Background(), "exec-1")
	assert.Equal(t, "exec-1", sub.ExecutionID())

	var c collector
	assert.True(t, sub.deliver(c.handle, Event{Type: TypeStart}))

	sub.Unsubscribe()
	sub.Unsubscribe()
	assert.True(t, sub.Unsubscribed())
	assert.Error(t, ctx.Err())
	assert.False(t, sub.deliver(c.handle, Event{Type: TypeLog}))

	sub.finish(ErrStreamClosed)
	waitDone(t, sub)
	assert.NoError(t, sub.Err(), "errors after unsubscribe are dropped")
	assert.Equal(t, []Type{TypeStart}, c.types())
}

func TestSubscriptionFinishError(t *testing.T) {
	sub, _ := newSubscription(context.Background(), "exec-1")
	sub.finish(ErrStreamClosed)
	sub.finish(nil)
	waitDone(t, sub)
	assert.ErrorIs(t, sub.Err(), ErrStreamClosed)
}

func TestSourceFunc(t *testing.T) {
	source := SourceFunc(func(ctx context.Context, id string, emit func(Event) bool) error {
		emit(Event{Type: TypeStart, ExecutionID: id})
		emit(Event{Type: TypeLog, ExecutionID: id})
		return ErrStreamClosed
	})

	var c collector
	sub, err := source.Subscribe(context.Background(), "exec-1", c.handle)
	require.NoError(t, err)
	waitDone(t, sub)

	assert.ErrorIs(t, sub.Err(), ErrStreamClosed)
	assert.Equal(t, []Type{TypeStart, TypeLog}, c.types())
}
