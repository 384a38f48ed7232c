package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/r3labs/sse/v2"

	"github.com/tcmartin/crewdeck/pkg/events"
	"github.com/tcmartin/crewdeck/pkg/logging"
)

// Relay republishes the raw events of observed runs as server-sent events,
// one stream per execution. It is a runtime.Observer.
type Relay struct {
	server *sse.Server
	logger *slog.Logger
}

// NewRelay creates an empty relay. Streams replay their history to late
// subscribers.
func NewRelay(logger *slog.Logger) *Relay {
	srv := sse.New()
	srv.AutoStream = false
	srv.AutoReplay = true
	srv.SplitData = true
	return &Relay{
		server: srv,
		logger: logging.OrDefault(logger),
	}
}

// RunStarted opens the stream of an execution
func (r *Relay) RunStarted(executionID string) {
	if !r.server.StreamExists(executionID) {
		r.server.CreateStream(executionID)
	}
}

// Event publishes ev on the execution's stream
func (r *Relay) Event(executionID string, ev events.Event) {
	if !r.server.StreamExists(executionID) {
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		r.logger.Warn("failed to encode relayed event", "execution_id", executionID, "error", err)
		return
	}
	// never stall the monitor on a slow subscriber
	if !r.server.TryPublish(executionID, &sse.Event{Event: []byte(ev.Type), Data: data}) {
		r.logger.Debug("relay buffer full, event dropped", "execution_id", executionID, "type", ev.Type)
	}
}

// RunRemoved closes the stream and disconnects its subscribers
func (r *Relay) RunRemoved(executionID string) {
	if r.server.StreamExists(executionID) {
		r.server.RemoveStream(executionID)
	}
}

// Exists reports whether an execution has a stream
func (r *Relay) Exists(executionID string) bool {
	return r.server.StreamExists(executionID)
}

// ServeStream subscribes the request to an execution's stream
func (r *Relay) ServeStream(w http.ResponseWriter, req *http.Request, executionID string) {
	q := req.URL.Query()
	q.Set("stream", executionID)
	req.URL.RawQuery = q.Encode()
	r.server.ServeHTTP(w, req)
}

// Close disconnects every subscriber
func (r *Relay) Close() {
	r.server.Close()
}
