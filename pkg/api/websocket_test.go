package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tcmartin/crewdeck/pkg/events"
	"github.com/tcmartin/crewdeck/pkg/models"
	"github.com/tcmartin/crewdeck/pkg/monitor"
	"github.com/tcmartin/crewdeck/pkg/runtime"
)

// scriptedRun returns a run whose push channel emits whatever is sent on frames
func scriptedRun(t *testing.T, frames <-chan string) *runtime.Run {
	t.Helper()
	push := events.SourceFunc(func(ctx context.Context, executionID string, emit func(events.Event) bool) error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case f := <-frames:
				if !emit(events.Decode([]byte(f))) {
					return nil
				}
			}
		}
	})
	m := monitor.New("e1", monitor.Config{Push: push})
	require.NoError(t, m.Start(context.Background()))
	t.Cleanup(m.Stop)
	return &runtime.Run{ExecutionID: "e1", Realtime: true, StartedAt: time.Now(), Monitor: m}
}

func dialRun(t *testing.T, wsm *WebSocketManager, run *runtime.Run) *websocket.Conn {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wsm.HandleWebSocket(w, r, run)
	}))
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readUpdate(t *testing.T, conn *websocket.Conn) StateUpdate {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg StateUpdate
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestWebSocketStreamsState(t *testing.T) {
	frames := make(chan string, 4)
	run := scriptedRun(t, frames)
	wsm := NewWebSocketManager(nil, nil)

	conn := dialRun(t, wsm, run)

	initial := readUpdate(t, conn)
	assert.Equal(t, MessageState, initial.Type)
	assert.Equal(t, "e1", initial.ExecutionID)
	require.NotNil(t, initial.State)
	assert.Equal(t, models.StatusPending, initial.State.Status)

	require.Eventually(t, func() bool { return wsm.GetExecutionSubscribers("e1") == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, wsm.GetConnectedClients())

	frames <- `{"type":"progress","percent":40}`
	for {
		msg := readUpdate(t, conn)
		require.Equal(t, MessageState, msg.Type)
		if msg.State.Progress == 40 {
			break
		}
	}

	frames <- `{"type":"complete","output":"done"}`
	var final StateUpdate
	for {
		final = readUpdate(t, conn)
		if final.Type == MessageFinal {
			break
		}
	}
	assert.Equal(t, models.StatusCompleted, final.State.Status)
	assert.False(t, final.State.Monitoring)

	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)

	require.Eventually(t, func() bool { return wsm.GetConnectedClients() == 0 }, time.Second, 10*time.Millisecond)
}

func TestWebSocketPingPong(t *testing.T) {
	run := scriptedRun(t, make(chan string))
	wsm := NewWebSocketManager(nil, discardLogger())
	conn := dialRun(t, wsm, run)

	readUpdate(t, conn)
	require.NoError(t, conn.WriteJSON(WebSocketMessage{Type: "ping"}))

	msg := readUpdate(t, conn)
	assert.Equal(t, MessagePong, msg.Type)
	assert.Nil(t, msg.State)
}

func TestWebSocketRejectsOrigin(t *testing.T) {
	run := scriptedRun(t, make(chan string))
	wsm := NewWebSocketManager([]string{"https://dash.example.com"}, discardLogger())
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wsm.HandleWebSocket(w, r, run)
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": {"https://evil.example.com"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": {"https://dash.example.com"}})
	require.NoError(t, err)
	conn.Close()
}

func TestRunWebSocketRoute(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(t, http.MethodPost, "/flows/f1/run", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	wsURL := "ws" + strings.TrimPrefix(env.http.URL, "http") + "/api/v1/runs/e1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	first := readUpdate(t, conn)
	assert.Equal(t, "e1", first.ExecutionID)

	env.backend.status.Store(models.StatusCompleted)
	for {
		msg := readUpdate(t, conn)
		if msg.Type == MessageFinal {
			assert.Equal(t, models.StatusCompleted, msg.State.Status)
			break
		}
	}

	_, resp, err = websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(env.http.URL, "http")+"/api/v1/runs/nope/ws", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
