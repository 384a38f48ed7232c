package client

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tcmartin/crewdeck/pkg/events"
	"github.com/tcmartin/crewdeck/pkg/models"
	"github.com/tcmartin/crewdeck/pkg/monitor"
)

var (
	_ events.ExecutionReader = (*ExecutionService)(nil)
	_ monitor.Canceller      = (*ExecutionService)(nil)
)

func TestGetLogs(t *testing.T) {
	srv, reqs := newBackend(t, http.StatusOK, `[{"id":"l1","level":"info","message":"Agent started"}]`)
	c := newTestClient(t, srv)

	logs, err := c.Executions.GetLogs(context.Background(), "e1", models.LogQuery{Level: "info", Limit: 50})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "Agent started", logs[0].Message)

	req := reqs()[0]
	assert.Equal(t, "/api/v1/executions/e1/logs", req.Path)
	assert.Equal(t, "level=info&limit=50", req.Query)
}

func TestGetLogsEmpty(t *testing.T) {
	srv, reqs := newBackend(t, http.StatusOK, `null`)
	c := newTestClient(t, srv)

	logs, err := c.Executions.GetLogs(context.Background(), "e1", models.LogQuery{})
	require.NoError(t, err)
	assert.NotNil(t, logs)
	assert.Empty(t, logs)
	assert.Empty(t, reqs()[0].Query)
}

func TestCancel(t *testing.T) {
	srv, reqs := newBackend(t, http.StatusOK, `{"message":"Execution cancelled"}`)
	c := newTestClient(t, srv)

	require.NoError(t, c.Executions.Cancel(context.Background(), "e1"))
	assert.Equal(t, "POST /api/v1/executions/e1/cancel", reqs()[0].Method+" "+reqs()[0].Path)
}

func TestSubmitHumanFeedback(t *testing.T) {
	srv, reqs := newBackend(t, http.StatusOK, `{"message":"Feedback submitted"}`)
	c := newTestClient(t, srv)

	err := c.Executions.SubmitHumanFeedback(context.Background(), "e1", models.HumanFeedback{Response: "approve"})
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/executions/e1/human-feedback", reqs()[0].Path)
	assert.Equal(t, "approve", reqs()[0].Body["response"])
}

func TestSubmitHumanFeedbackNotWaiting(t *testing.T) {
	srv, _ := newBackend(t, http.StatusBadRequest, `{"detail":"Execution is not waiting for human input"}`)
	c := newTestClient(t, srv)

	err := c.Executions.SubmitHumanFeedback(context.Background(), "e1", models.HumanFeedback{Response: "yes"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
}

func TestTraces(t *testing.T) {
	srv, _ := newBackend(t, http.StatusOK, `{"items":[{"id":"t1","operation_name":"llm_call","status":"ok"}],"total":1}`)
	c := newTestClient(t, srv)

	traces, err := c.Executions.Traces(context.Background(), "e1")
	require.NoError(t, err)
	require.Len(t, traces, 1)
	assert.Equal(t, "llm_call", traces[0].OperationName)
}
