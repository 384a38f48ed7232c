package client

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tcmartin/crewdeck/pkg/models"
)

func TestKnowledgeSearch(t *testing.T) {
	srv, reqs := newBackend(t, http.StatusOK, `{"results":[{"chunk":{"id":"k1","content":"goroutines"},"source_id":"s1","source_name":"Go docs","score":0.92}]}`)
	c := newTestClient(t, srv)

	results, err := c.Knowledge.Search(context.Background(), models.KnowledgeSearchRequest{Query: "concurrency"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Go docs", results[0].SourceName)

	req := reqs()[0]
	assert.Equal(t, "/api/v1/knowledge/search", req.Path)
	assert.Equal(t, float64(DefaultTopK), req.Body["top_k"])
}

func TestKnowledgeSearchRequiresQuery(t *testing.T) {
	srv, reqs := newBackend(t, http.StatusOK, `{}`)
	c := newTestClient(t, srv)

	_, err := c.Knowledge.Search(context.Background(), models.KnowledgeSearchRequest{})
	assert.Error(t, err)
	assert.Empty(t, reqs())
}

func TestKnowledgeReprocess(t *testing.T) {
	srv, reqs := newBackend(t, http.StatusOK, `{"id":"s1","status":"processing"}`)
	c := newTestClient(t, srv)

	src, err := c.Knowledge.Reprocess(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "processing", src.Status)
	assert.Equal(t, "/api/v1/knowledge/s1/reprocess", reqs()[0].Path)
}

func TestTemplates(t *testing.T) {
	srv, reqs := newBackend(t, http.StatusOK, `{"message":"ok","id":"new1","type":"crew"}`)
	c := newTestClient(t, srv)
	ctx := context.Background()

	used, err := c.Templates.Use(ctx, "tpl1")
	require.NoError(t, err)
	assert.Equal(t, "new1", used.ID)
	assert.Equal(t, "crew", used.Type)

	msg, err := c.Templates.Like(ctx, "tpl1")
	require.NoError(t, err)
	assert.Equal(t, "ok", msg)

	_, err = c.Templates.Rate(ctx, "tpl1", 4)
	require.NoError(t, err)

	got := reqs()
	assert.Equal(t, "/api/v1/templates/tpl1/use", got[0].Path)
	assert.Equal(t, "/api/v1/templates/tpl1/like", got[1].Path)
	assert.Equal(t, "/api/v1/templates/tpl1/rate", got[2].Path)
	assert.Equal(t, "rating=4", got[2].Query)
}

func TestTemplateRateRange(t *testing.T) {
	srv, reqs := newBackend(t, http.StatusOK, `{}`)
	c := newTestClient(t, srv)

	_, err := c.Templates.Rate(context.Background(), "tpl1", 0)
	assert.Error(t, err)
	_, err = c.Templates.Rate(context.Background(), "tpl1", 6)
	assert.Error(t, err)
	assert.Empty(t, reqs())
}

func TestTemplateCategories(t *testing.T) {
	srv, reqs := newBackend(t, http.StatusOK, `[{"id":"cat1","name":"Research","slug":"research"}]`)
	c := newTestClient(t, srv)

	cats, err := c.Templates.Categories(context.Background())
	require.NoError(t, err)
	require.Len(t, cats, 1)
	assert.Equal(t, "research", cats[0].Slug)
	assert.Equal(t, "/api/v1/templates/categories", reqs()[0].Path)
}

func TestTriggerCreateValidatesCron(t *testing.T) {
	srv, reqs := newBackend(t, http.StatusOK, `{"id":"tr1","trigger_type":"schedule"}`)
	c := newTestClient(t, srv)
	ctx := context.Background()

	_, err := c.Triggers.Create(ctx, models.Trigger{
		Name:        "nightly",
		TriggerType: models.TriggerSchedule,
		Config:      map[string]interface{}{"cron": "not a cron"},
	})
	assert.True(t, errors.Is(err, ErrInvalidSchedule))

	_, err = c.Triggers.Create(ctx, models.Trigger{
		Name:        "nightly",
		TriggerType: models.TriggerSchedule,
	})
	assert.True(t, errors.Is(err, ErrInvalidSchedule))
	assert.Empty(t, reqs())

	created, err := c.Triggers.Create(ctx, models.Trigger{
		Name:        "nightly",
		TriggerType: models.TriggerSchedule,
		Config:      map[string]interface{}{"cron": "0 2 * * *"},
	})
	require.NoError(t, err)
	assert.Equal(t, "tr1", created.ID)
	require.Len(t, reqs(), 1)

	_, err = c.Triggers.Create(ctx, models.Trigger{Name: "hook", TriggerType: models.TriggerWebhook})
	require.NoError(t, err)
}

func TestNextRuns(t *testing.T) {
	from := time.Date(2026, 1, 1, 10, 30, 0, 0, time.UTC)

	runs, err := NextRuns("0 * * * *", from, 3)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{
		time.Date(2026, 1, 1, 11, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 1, 13, 0, 0, 0, time.UTC),
	}, runs)

	runs, err = NextRuns("@daily", from, 1)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC), runs[0])

	_, err = NextRuns("61 * * * *", from, 1)
	assert.Error(t, err)
}

func signedToken(t *testing.T, claims jwt.Claims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return tok
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	tok := signedToken(t, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(exp)})

	got, err := TokenExpiry(tok)
	require.NoError(t, err)
	assert.True(t, exp.Equal(got))
	assert.False(t, TokenExpired(tok, time.Minute))
	assert.True(t, TokenExpired(tok, 2*time.Hour))

	noExp := signedToken(t, jwt.RegisteredClaims{Subject: "u1"})
	_, err = TokenExpiry(noExp)
	assert.ErrorIs(t, err, ErrNoExpiry)
	assert.False(t, TokenExpired(noExp, 0))

	_, err = TokenExpiry("garbage")
	assert.Error(t, err)
	assert.False(t, TokenExpired("garbage", 0))
}
