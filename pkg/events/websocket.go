package events

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tcmartin/crewdeck/pkg/logging"
)

// WebSocketSubscriber reads events from the backend execution socket at
// {base}/api/v1/ws/executions/{id}?token=...
type WebSocketSubscriber struct {
	baseURL string
	token   string
	dialer  *websocket.Dialer
	logger  *slog.Logger
}

// NewWebSocketSubscriber creates a subscriber for the backend at baseURL.
// http and https URLs are mapped to ws and wss.
func NewWebSocketSubscriber(baseURL, token string, logger *slog.Logger) *WebSocketSubscriber {
	return &WebSocketSubscriber{
		baseURL: baseURL,
		token:   token,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
		},
		logger: logging.OrDefault(logger),
	}
}

// URL returns the socket address for an execution
func (s *WebSocketSubscriber) URL(executionID string) (string, error) {
	u, err := url.Parse(s.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid websocket base url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported url scheme: %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/api/v1/ws/executions/" + url.PathEscape(executionID)
	if s.token != "" {
		q := u.Query()
		q.Set("token", s.token)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// Subscribe dials the execution socket. A dial failure is returned
// directly so the caller can fall back to polling straight away.
func (s *WebSocketSubscriber) Subscribe(ctx context.Context, executionID string, handler Handler) (*Subscription, error) {
	wsURL, err := s.URL(executionID)
	if err != nil {
		return nil, err
	}

	conn, resp, err := s.dialer.DialContext(ctx, wsURL, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to execution socket: %w", err)
	}

	sub, ctx := newSubscription(ctx, executionID)
	readerDone := make(chan struct{})

	// Unblock ReadMessage when the subscription is torn down
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			conn.Close()
		case <-readerDone:
		}
	}()

	go func() {
		defer close(readerDone)
		defer conn.Close()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() != nil {
					sub.finish(nil)
					return
				}
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					err = ErrStreamClosed
				}
				s.logger.Debug("execution socket closed", "execution_id", executionID, "error", err)
				sub.finish(err)
				return
			}

			if !sub.deliver(handler, Decode(data)) {
				sub.finish(nil)
				return
			}
		}
	}()

	return sub, nil
}
