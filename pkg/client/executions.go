package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/tcmartin/crewdeck/pkg/models"
)

// ExecutionService reads and controls executions. It satisfies the poll
// subscriber's reader and the monitor's canceller.
type ExecutionService struct {
	*Resource[models.Execution]
}

// GetLogs lists the persisted log entries of an execution
func (s *ExecutionService) GetLogs(ctx context.Context, executionID string, query models.LogQuery) ([]models.ExecutionLog, error) {
	q := url.Values{}
	if query.Level != "" {
		q.Set("level", query.Level)
	}
	if query.Limit > 0 {
		q.Set("limit", strconv.Itoa(query.Limit))
	}

	var out []models.ExecutionLog
	if err := s.c.do(ctx, http.MethodGet, s.itemPath(executionID, "logs"), q, nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []models.ExecutionLog{}
	}
	return out, nil
}

// Cancel asks the backend to stop a running execution
func (s *ExecutionService) Cancel(ctx context.Context, executionID string) error {
	return s.c.do(ctx, http.MethodPost, s.itemPath(executionID, "cancel"), nil, nil, nil)
}

// SubmitHumanFeedback answers an execution waiting for human input.
// The backend responds 400 unless the execution is waiting_human.
func (s *ExecutionService) SubmitHumanFeedback(ctx context.Context, executionID string, feedback models.HumanFeedback) error {
	return s.c.do(ctx, http.MethodPost, s.itemPath(executionID, "human-feedback"), nil, feedback, nil)
}

// Traces returns the recorded spans of an execution
func (s *ExecutionService) Traces(ctx context.Context, executionID string) ([]models.Trace, error) {
	var out struct {
		Items []models.Trace `json:"items"`
		Total int            `json:"total"`
	}
	if err := s.c.do(ctx, http.MethodGet, s.itemPath(executionID, "traces"), nil, nil, &out); err != nil {
		return nil, err
	}
	if out.Items == nil {
		out.Items = []models.Trace{}
	}
	return out.Items, nil
}
