package api

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tcmartin/crewdeck/pkg/logging"
	"github.com/tcmartin/crewdeck/pkg/monitor"
	"github.com/tcmartin/crewdeck/pkg/runtime"
)

const (
	writeWait    = 10 * time.Second
	pingInterval = 30 * time.Second
	closeGrace   = 5 * time.Second
)

// Message types sent to run sockets
const (
	MessageState = "state"
	MessageFinal = "final"
	MessagePong  = "pong"
)

// WebSocketManager pushes run state to connected dashboards
type WebSocketManager struct {
	// upgrader for upgrading HTTP connections to WebSocket
	upgrader websocket.Upgrader

	// connections maps execution IDs to the sockets watching them
	connections map[string]map[*websocket.Conn]*ConnectionMetadata

	mu     sync.RWMutex
	logger *slog.Logger
}

// ConnectionMetadata stores metadata about a WebSocket connection
type ConnectionMetadata struct {
	ExecutionID string
	RemoteAddr  string
	ConnectedAt time.Time
	LastPongAt  time.Time
}

// StateUpdate is a message sent to a run socket
type StateUpdate struct {
	Type        string         `json:"type"`
	ExecutionID string         `json:"execution_id"`
	Timestamp   time.Time      `json:"timestamp"`
	State       *monitor.State `json:"state,omitempty"`
	Message     string         `json:"message,omitempty"`
}

// WebSocketMessage is a message read from a run socket
type WebSocketMessage struct {
	Type string `json:"type"` // "ping"
}

// NewWebSocketManager creates a manager accepting the given origins; an
// empty list accepts any origin
func NewWebSocketManager(allowedOrigins []string, logger *slog.Logger) *WebSocketManager {
	return &WebSocketManager{
		upgrader: websocket.Upgrader{
			CheckOrigin:     originChecker(allowedOrigins),
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		connections: make(map[string]map[*websocket.Conn]*ConnectionMetadata),
		logger:      logging.OrDefault(logger),
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if len(allowed) == 0 || origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}

// HandleWebSocket upgrades the request and streams the run state until the
// run ends or the client goes away. Bursts of changes are coalesced so a
// slow client only ever receives the latest state.
func (wsm *WebSocketManager) HandleWebSocket(w http.ResponseWriter, r *http.Request, run *runtime.Run) {
	conn, err := wsm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		wsm.logger.Warn("websocket upgrade failed", "execution_id", run.ExecutionID, "error", err)
		return
	}
	defer conn.Close()

	wsm.addConnection(run.ExecutionID, conn, r.RemoteAddr)
	defer wsm.removeConnection(run.ExecutionID, conn)

	wsm.logger.Debug("websocket connected", "execution_id", run.ExecutionID, "remote", r.RemoteAddr)

	conn.SetPongHandler(func(string) error {
		wsm.touch(run.ExecutionID, conn)
		return nil
	})

	updates := make(chan monitor.State, 1)
	replies := make(chan StateUpdate, 4)
	stop := make(chan struct{})
	writerDone := make(chan struct{})

	unregister := run.Monitor.OnChange(func(s monitor.State) {
		select {
		case updates <- s:
		default:
			// drop the stale state and keep the newest
			select {
			case <-updates:
			default:
			}
			select {
			case updates <- s:
			default:
			}
		}
	})
	defer unregister()

	go func() {
		defer close(writerDone)
		wsm.writeLoop(conn, run, updates, replies, stop)
	}()

	for {
		var msg WebSocketMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				wsm.logger.Debug("websocket read ended", "execution_id", run.ExecutionID, "error", err)
			}
			break
		}
		if msg.Type == "ping" {
			select {
			case replies <- StateUpdate{Type: MessagePong, ExecutionID: run.ExecutionID, Timestamp: time.Now()}:
			default:
			}
		}
	}

	close(stop)
	<-writerDone
}

// writeLoop is the only writer of data frames on conn
func (wsm *WebSocketManager) writeLoop(conn *websocket.Conn, run *runtime.Run, updates <-chan monitor.State, replies <-chan StateUpdate, stop <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	initial := run.State()
	if err := wsm.sendMessage(conn, newStateUpdate(MessageState, initial)); err != nil {
		return
	}

	for {
		select {
		case <-stop:
			return
		case s := <-updates:
			if err := wsm.sendMessage(conn, newStateUpdate(MessageState, s)); err != nil {
				return
			}
		case reply := <-replies:
			if err := wsm.sendMessage(conn, reply); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-run.Monitor.Done():
			final := newStateUpdate(MessageFinal, run.State())
			final.Message = "monitoring ended"
			if err := wsm.sendMessage(conn, final); err != nil {
				return
			}
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run finished"),
				time.Now().Add(writeWait))
			// the reader exits once the peer answers the close or the grace expires
			_ = conn.SetReadDeadline(time.Now().Add(closeGrace))
			<-stop
			return
		}
	}
}

func newStateUpdate(kind string, s monitor.State) StateUpdate {
	return StateUpdate{
		Type:        kind,
		ExecutionID: s.ExecutionID,
		Timestamp:   time.Now(),
		State:       &s,
	}
}

// sendMessage sends a message to a WebSocket connection
func (wsm *WebSocketManager) sendMessage(conn *websocket.Conn, message StateUpdate) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(message); err != nil {
		wsm.logger.Debug("websocket write failed", "execution_id", message.ExecutionID, "error", err)
		return err
	}
	return nil
}

func (wsm *WebSocketManager) addConnection(executionID string, conn *websocket.Conn, remote string) {
	wsm.mu.Lock()
	defer wsm.mu.Unlock()
	if wsm.connections[executionID] == nil {
		wsm.connections[executionID] = make(map[*websocket.Conn]*ConnectionMetadata)
	}
	now := time.Now()
	wsm.connections[executionID][conn] = &ConnectionMetadata{
		ExecutionID: executionID,
		RemoteAddr:  remote,
		ConnectedAt: now,
		LastPongAt:  now,
	}
}

// removeConnection removes a connection from the manager
func (wsm *WebSocketManager) removeConnection(executionID string, conn *websocket.Conn) {
	wsm.mu.Lock()
	defer wsm.mu.Unlock()
	if conns, ok := wsm.connections[executionID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(wsm.connections, executionID)
		}
	}
}

func (wsm *WebSocketManager) touch(executionID string, conn *websocket.Conn) {
	wsm.mu.Lock()
	defer wsm.mu.Unlock()
	if meta, ok := wsm.connections[executionID][conn]; ok {
		meta.LastPongAt = time.Now()
	}
}

// CloseAll sends a going-away close frame to every socket
func (wsm *WebSocketManager) CloseAll() {
	wsm.mu.RLock()
	var conns []*websocket.Conn
	for _, set := range wsm.connections {
		for conn := range set {
			conns = append(conns, conn)
		}
	}
	wsm.mu.RUnlock()

	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	for _, conn := range conns {
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		_ = conn.Close()
	}
}

// GetConnectedClients returns the number of connected sockets
func (wsm *WebSocketManager) GetConnectedClients() int {
	wsm.mu.RLock()
	defer wsm.mu.RUnlock()
	n := 0
	for _, set := range wsm.connections {
		n += len(set)
	}
	return n
}

// GetExecutionSubscribers returns the number of sockets watching an execution
func (wsm *WebSocketManager) GetExecutionSubscribers(executionID string) int {
	wsm.mu.RLock()
	defer wsm.mu.RUnlock()
	return len(wsm.connections[executionID])
}
