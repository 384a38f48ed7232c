package client

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tcmartin/crewdeck/pkg/models"
)

func TestToolsCRUD(t *testing.T) {
	srv, reqs := newBackend(t, http.StatusOK, `{"items":[{"id":"t1","name":"search","tool_type":"builtin","is_builtin":true}],"total":1,"page":1,"page_size":50}`)
	c := newTestClient(t, srv)
	ctx := context.Background()

	page, err := c.Tools.List(ctx, models.ListOptions{
		Search:  "sea",
		Filters: map[string]string{"tool_type": models.ToolBuiltin, "include_builtin": "true"},
	})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.True(t, page.Items[0].IsBuiltin)

	_, err = c.Tools.Create(ctx, map[string]interface{}{"name": "scrape", "tool_type": models.ToolCustom})
	require.NoError(t, err)
	_, err = c.Tools.Update(ctx, "t1", map[string]interface{}{"is_active": false})
	require.NoError(t, err)
	require.NoError(t, c.Tools.Delete(ctx, "t1"))

	got := reqs()
	require.Len(t, got, 4)
	assert.Equal(t, "/api/v1/tools/", got[0].Path)
	assert.Contains(t, got[0].Query, "tool_type=builtin")
	assert.Contains(t, got[0].Query, "include_builtin=true")
	assert.Contains(t, got[0].Query, "search=sea")
	assert.Equal(t, "POST /api/v1/tools/", got[1].Method+" "+got[1].Path)
	assert.Equal(t, "custom", got[1].Body["tool_type"])
	assert.Equal(t, "PATCH /api/v1/tools/t1", got[2].Method+" "+got[2].Path)
	assert.Equal(t, "DELETE /api/v1/tools/t1", got[3].Method+" "+got[3].Path)
}

func TestToolCategories(t *testing.T) {
	srv, reqs := newBackend(t, http.StatusOK, `[{"id":"c1","name":"Web","order":1},{"id":"c2","name":"Files","order":2}]`)
	c := newTestClient(t, srv)

	cats, err := c.Tools.Categories(context.Background())
	require.NoError(t, err)
	require.Len(t, cats, 2)
	assert.Equal(t, "Files", cats[1].Name)
	assert.Equal(t, "/api/v1/tools/categories", reqs()[0].Path)
}

func TestToolTest(t *testing.T) {
	srv, reqs := newBackend(t, http.StatusOK, `{"result":{"hits":3}}`)
	c := newTestClient(t, srv)

	result, err := c.Tools.Test(context.Background(), "t1", map[string]interface{}{"query": "go"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"hits":3}`, string(result))

	req := reqs()[0]
	assert.Equal(t, "POST /api/v1/tools/t1/test", req.Method+" "+req.Path)
	assert.Equal(t, "go", req.Body["query"])

	_, err = c.Tools.Test(context.Background(), "t1", nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{}, reqs()[1].Body)
}

func TestToolTestError(t *testing.T) {
	srv, _ := newBackend(t, http.StatusBadRequest, `{"detail":"Tool test failed: missing api key"}`)
	c := newTestClient(t, srv)

	_, err := c.Tools.Test(context.Background(), "t1", nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Tool test failed: missing api key", apiErr.Detail)
}

func TestCrewDeploy(t *testing.T) {
	srv, reqs := newBackend(t, http.StatusOK, `{"message":"Crew deployed to production","crew_id":"c1"}`)
	c := newTestClient(t, srv)
	ctx := context.Background()

	resp, err := c.Crews.Deploy(ctx, "c1", "")
	require.NoError(t, err)
	assert.Equal(t, "c1", resp.CrewID)

	_, err = c.Crews.Deploy(ctx, "c1", "staging")
	require.NoError(t, err)

	got := reqs()
	assert.Equal(t, "POST /api/v1/crews/c1/deploy", got[0].Method+" "+got[0].Path)
	assert.Equal(t, "environment=production", got[0].Query)
	assert.Equal(t, "environment=staging", got[1].Query)
}

func TestKnowledgeChunks(t *testing.T) {
	srv, reqs := newBackend(t, http.StatusOK, `{"items":[{"id":"k1","content":"channels"}],"total":41,"page":1,"page_size":20}`)
	c := newTestClient(t, srv)
	ctx := context.Background()

	page, err := c.Knowledge.Chunks(ctx, "s1", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 41, page.Total)
	assert.Equal(t, "channels", page.Items[0].Content)

	_, err = c.Knowledge.Chunks(ctx, "s1", 40, 10)
	require.NoError(t, err)

	got := reqs()
	assert.Equal(t, "/api/v1/knowledge/s1/chunks", got[0].Path)
	assert.Equal(t, "limit=20&skip=0", got[0].Query)
	assert.Equal(t, "limit=10&skip=40", got[1].Query)
}

func TestKnowledgeUpload(t *testing.T) {
	var (
		contentType, filename, content, auth string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/knowledge/s1/upload", r.URL.Path)
		contentType = r.Header.Get("Content-Type")
		auth = r.Header.Get("Authorization")
		file, header, err := r.FormFile("file")
		if assert.NoError(t, err) {
			defer file.Close()
			filename = header.Filename
			raw, _ := io.ReadAll(file)
			content = string(raw)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"s1","name":"notes","status":"processing"}`))
	}))
	t.Cleanup(srv.Close)
	c := newTestClient(t, srv, WithToken("secret"))

	src, err := c.Knowledge.Upload(context.Background(), "s1", "notes.md", strings.NewReader("# notes"))
	require.NoError(t, err)
	assert.Equal(t, "processing", src.Status)
	assert.True(t, strings.HasPrefix(contentType, "multipart/form-data; boundary="))
	assert.Equal(t, "Bearer secret", auth)
	assert.Equal(t, "notes.md", filename)
	assert.Equal(t, "# notes", content)
}

func TestKnowledgeUploadErrors(t *testing.T) {
	srv, reqs := newBackend(t, http.StatusRequestEntityTooLarge, `{"detail":"File too large"}`)
	c := newTestClient(t, srv)
	ctx := context.Background()

	_, err := c.Knowledge.Upload(ctx, "s1", "", strings.NewReader("x"))
	assert.Error(t, err)
	assert.Empty(t, reqs())

	_, err = c.Knowledge.Upload(ctx, "s1", "big.pdf", strings.NewReader("x"))
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusRequestEntityTooLarge, apiErr.StatusCode)
	assert.Equal(t, "File too large", apiErr.Detail)
}
