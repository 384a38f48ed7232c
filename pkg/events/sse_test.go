package events

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/r3labs/sse/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSSESubscriber(t *testing.T) {
	relay := sse.New()
	defer relay.Close()
	relay.CreateStream("exec-1")

	var gotHeader atomic.Value
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/runs/exec-1/events", func(w http.ResponseWriter, r *http.Request) {
		gotHeader.Store(r.Header.Get("Authorization"))
		relay.ServeHTTP(w, r)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	for _, payload := range []string{
		`{"type":"start"}`,
		`{"type":"step_start","step_name":"fetch"}`,
		`{"type":"cancelled"}`,
	} {
		relay.Publish("exec-1", &sse.Event{Data: []byte(payload)})
	}

	subscriber := NewSSESubscriber(server.URL+"/", map[string]string{"Authorization": "Bearer t"}, nil)
	assert.Equal(t, server.URL+"/api/v1/runs/exec-1/events", subscriber.StreamURL("exec-1"))

	var c collector
	sub, err := subscriber.Subscribe(context.Background(), "exec-1", c.handle)
	require.NoError(t, err)

	waitDone(t, sub)
	assert.NoError(t, sub.Err())
	assert.Equal(t, []Type{TypeStart, TypeStepStart, TypeCancelled}, c.types())
	assert.Equal(t, "Bearer t", gotHeader.Load())
}

func TestSSESubscriberInvalidURL(t *testing.T) {
	_, err := NewSSESubscriber("", nil, nil).Subscribe(context.Background(), "exec-1", func(Event) {})
	assert.Error(t, err)
}
