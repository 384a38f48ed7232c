package events

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// newSocketServer serves frames on the execution socket path, then either
// waits for the client to close or drops the connection
func newSocketServer(t *testing.T, frames []string, drop bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/api/v1/ws/executions/") {
			http.NotFound(w, r)
			return
		}
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for _, frame := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
				return
			}
		}
		if drop {
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func TestWebSocketSubscriberURL(t *testing.T) {
	s := NewWebSocketSubscriber("https://api.example.com/", "tok en", nil)
	u, err := s.URL("exec-1")
	require.NoError(t, err)
	assert.Equal(t, "wss://api.example.com/api/v1/ws/executions/exec-1?token=tok+en", u)

	s = NewWebSocketSubscriber("http://localhost:8000", "", nil)
	u, err = s.URL("exec-2")
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8000/api/v1/ws/executions/exec-2", u)

	_, err = NewWebSocketSubscriber("ftp://host", "", nil).URL("x")
	assert.Error(t, err)
}

func TestWebSocketSubscriberDeliversInOrder(t *testing.T) {
	server := newSocketServer(t, []string{
		`{"type":"connected","execution_id":"exec-1"}`,
		`{"type":"start","execution_id":"exec-1"}`,
		`{"type":"step_start","step_name":"fetch"}`,
		`{"type":"step_complete","step_name":"fetch"}`,
		`{"type":"complete","output":{"result":"ok"}}`,
		`{"type":"log","message":"after complete"}`,
	}, false)
	defer server.Close()

	var c collector
	var sub *Subscription
	ready := make(chan struct{})
	handler := func(ev Event) {
		<-ready
		c.handle(ev)
		if ev.Type == TypeComplete {
			sub.Unsubscribe()
		}
	}

	sub, err := NewWebSocketSubscriber(server.URL, "token", nil).Subscribe(context.Background(), "exec-1", handler)
	require.NoError(t, err)
	close(ready)

	waitDone(t, sub)
	assert.NoError(t, sub.Err())
	assert.Equal(t, []Type{TypeConnected, TypeStart, TypeStepStart, TypeStepComplete, TypeComplete}, c.types())
}

func TestWebSocketSubscriberReportsDrop(t *testing.T) {
	server := newSocketServer(t, []string{`{"type":"start"}`}, true)
	defer server.Close()

	var c collector
	sub, err := NewWebSocketSubscriber(server.URL, "", nil).Subscribe(context.Background(), "exec-1", c.handle)
	require.NoError(t, err)

	waitDone(t, sub)
	assert.Error(t, sub.Err())
	assert.Equal(t, []Type{TypeStart}, c.types())
}

func TestWebSocketSubscriberDialFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	_, err := NewWebSocketSubscriber(server.URL, "", nil).Subscribe(context.Background(), "exec-1", func(Event) {})
	assert.Error(t, err)
}

func TestWebSocketSubscriberContextCancel(t *testing.T) {
	server := newSocketServer(t, nil, false)
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	sub, err := NewWebSocketSubscriber(server.URL, "", nil).Subscribe(ctx, "exec-1", func(Event) {})
	require.NoError(t, err)

	cancel()
	waitDone(t, sub)
	assert.NoError(t, sub.Err())
}
