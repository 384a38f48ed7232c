package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/r3labs/sse/v2"
	"gopkg.in/cenkalti/backoff.v1"

	"github.com/tcmartin/crewdeck/pkg/events"
	"github.com/tcmartin/crewdeck/pkg/models"
)

// CrewService manages crews and starts crew executions
type CrewService struct {
	*DuplicableResource[models.Crew]
}

// Kickoff starts a crew. async selects background execution on the backend.
func (s *CrewService) Kickoff(ctx context.Context, crewID string, inputs map[string]interface{}, async bool) (*models.KickoffResponse, error) {
	if inputs == nil {
		inputs = map[string]interface{}{}
	}
	req := models.CrewKickoffRequest{Inputs: inputs, AsyncExecution: async}

	var out models.KickoffResponse
	if err := s.c.do(ctx, http.MethodPost, s.itemPath(crewID, "kickoff"), nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DefaultEnvironment is the deploy target when none is given
const DefaultEnvironment = "production"

// Deploy publishes a crew to an environment
func (s *CrewService) Deploy(ctx context.Context, crewID, environment string) (*models.DeployResponse, error) {
	if environment == "" {
		environment = DefaultEnvironment
	}
	q := url.Values{"environment": []string{environment}}

	var out models.DeployResponse
	if err := s.c.do(ctx, http.MethodPost, s.itemPath(crewID, "deploy"), q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// KickoffStream starts a crew and streams its events until the backend closes
// the stream, a terminal event arrives or ctx is done. The stream is not
// retried since every connection starts a new execution.
func (s *CrewService) KickoffStream(ctx context.Context, crewID string, handler events.Handler) error {
	client := sse.NewClient(s.c.endpoint(s.itemPath(crewID, "kickoff", "stream"), nil))
	hc := *s.c.httpClient
	hc.Timeout = 0
	client.Connection = &hc
	client.ReconnectStrategy = &backoff.StopBackOff{}
	client.ResponseValidator = func(_ *sse.Client, resp *http.Response) error {
		if resp.StatusCode == http.StatusOK {
			return nil
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return newAPIError(resp.StatusCode, body, "")
	}
	if s.c.token != "" {
		client.Headers["Authorization"] = "Bearer " + s.c.token
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	err := client.SubscribeRawWithContext(ctx, func(msg *sse.Event) {
		if len(msg.Data) == 0 || ctx.Err() != nil {
			return
		}
		ev := events.Decode(msg.Data)
		handler(ev)
		if ev.Type.IsTerminal() {
			cancel()
		}
	})
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("crew stream failed: %w", err)
	}
	return nil
}

// Inputs returns the placeholders the crew's agents and tasks expect
func (s *CrewService) Inputs(ctx context.Context, crewID string) ([]string, error) {
	var out struct {
		Inputs []string `json:"inputs"`
	}
	if err := s.c.do(ctx, http.MethodGet, s.itemPath(crewID, "inputs"), nil, nil, &out); err != nil {
		return nil, err
	}
	if out.Inputs == nil {
		out.Inputs = []string{}
	}
	return out.Inputs, nil
}
