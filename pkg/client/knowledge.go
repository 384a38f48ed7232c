package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/tcmartin/crewdeck/pkg/models"
)

// DefaultTopK is the number of search results when none is requested
const DefaultTopK = 5

// DefaultChunkLimit is the chunk page size when none is requested
const DefaultChunkLimit = 20

// KnowledgeService manages knowledge sources. Listing pages with skip/limit.
type KnowledgeService struct {
	*Resource[models.KnowledgeSource]
}

// Search runs a semantic search across knowledge sources
func (s *KnowledgeService) Search(ctx context.Context, req models.KnowledgeSearchRequest) ([]models.KnowledgeSearchResult, error) {
	if req.Query == "" {
		return nil, errors.New("search query is required")
	}
	if req.TopK <= 0 {
		req.TopK = DefaultTopK
	}

	var out struct {
		Results []models.KnowledgeSearchResult `json:"results"`
	}
	if err := s.c.do(ctx, http.MethodPost, s.path+"/search", nil, req, &out); err != nil {
		return nil, err
	}
	if out.Results == nil {
		out.Results = []models.KnowledgeSearchResult{}
	}
	return out.Results, nil
}

// Reprocess re-chunks and re-embeds a source
func (s *KnowledgeService) Reprocess(ctx context.Context, sourceID string) (*models.KnowledgeSource, error) {
	var out models.KnowledgeSource
	if err := s.c.do(ctx, http.MethodPost, s.itemPath(sourceID, "reprocess"), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Upload attaches a file to a source. The backend queues it for processing.
func (s *KnowledgeService) Upload(ctx context.Context, sourceID, filename string, content io.Reader) (*models.KnowledgeSource, error) {
	if filename == "" {
		return nil, errors.New("upload filename is required")
	}
	var out models.KnowledgeSource
	if err := s.c.upload(ctx, s.itemPath(sourceID, "upload"), "file", filename, content, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Chunks pages through the indexed chunks of a source
func (s *KnowledgeService) Chunks(ctx context.Context, sourceID string, skip, limit int) (*models.ListResponse[models.KnowledgeChunk], error) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = DefaultChunkLimit
	}
	q := url.Values{}
	q.Set("skip", strconv.Itoa(skip))
	q.Set("limit", strconv.Itoa(limit))

	var out models.ListResponse[models.KnowledgeChunk]
	if err := s.c.do(ctx, http.MethodGet, s.itemPath(sourceID, "chunks"), q, nil, &out); err != nil {
		return nil, err
	}
	if out.Items == nil {
		out.Items = []models.KnowledgeChunk{}
	}
	return &out, nil
}
