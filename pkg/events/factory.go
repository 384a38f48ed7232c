package events

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
)

// Mode selects a Subscriber implementation
type Mode string

// Supported subscriber modes
const (
	ModeWebSocket Mode = "websocket"
	ModePoll      Mode = "poll"
	ModeRedis     Mode = "redis"
	ModeSSE       Mode = "sse"
)

// Dependencies carries what the subscriber implementations need. Only the
// fields used by the selected mode have to be set.
type Dependencies struct {
	// BaseURL is the backend address for websocket mode
	BaseURL string

	// Token is the bearer token sent with the websocket handshake
	Token string

	// Executions is used by poll mode
	Executions   ExecutionReader
	PollInterval time.Duration

	// Redis is used by redis mode
	Redis redis.UniversalClient

	// RelayURL is the crewdeck server address for sse mode
	RelayURL     string
	RelayHeaders map[string]string

	Logger *slog.Logger
}

// NewSubscriber creates the subscriber for mode
func NewSubscriber(mode Mode, deps Dependencies) (Subscriber, error) {
	switch mode {
	case ModeWebSocket, "":
		if deps.BaseURL == "" {
			return nil, fmt.Errorf("websocket mode requires a base url")
		}
		return NewWebSocketSubscriber(deps.BaseURL, deps.Token, deps.Logger), nil
	case ModePoll:
		if deps.Executions == nil {
			return nil, fmt.Errorf("poll mode requires an execution reader")
		}
		return NewPollSubscriber(deps.Executions, deps.PollInterval, deps.Logger), nil
	case ModeRedis:
		if deps.Redis == nil {
			return nil, fmt.Errorf("redis mode requires a redis client")
		}
		return NewRedisSubscriber(deps.Redis, deps.Logger), nil
	case ModeSSE:
		if deps.RelayURL == "" {
			return nil, fmt.Errorf("sse mode requires a relay url")
		}
		return NewSSESubscriber(deps.RelayURL, deps.RelayHeaders, deps.Logger), nil
	default:
		return nil, fmt.Errorf("unsupported subscriber mode: %s", mode)
	}
}
