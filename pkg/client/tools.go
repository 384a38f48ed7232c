package client

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/tcmartin/crewdeck/pkg/models"
)

// ToolService manages the tool catalogue. Filters: category_id, tool_type, include_builtin.
type ToolService struct {
	*Resource[models.Tool]
}

// Categories lists tool categories in display order
func (s *ToolService) Categories(ctx context.Context) ([]models.ToolCategory, error) {
	var out []models.ToolCategory
	if err := s.c.do(ctx, http.MethodGet, s.path+"/categories", nil, nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []models.ToolCategory{}
	}
	return out, nil
}

// Test runs a tool once with the given arguments and returns its raw result
func (s *ToolService) Test(ctx context.Context, toolID string, args map[string]interface{}) (json.RawMessage, error) {
	if args == nil {
		args = map[string]interface{}{}
	}
	var out struct {
		Result json.RawMessage `json:"result"`
	}
	if err := s.c.do(ctx, http.MethodPost, s.itemPath(toolID, "test"), nil, args, &out); err != nil {
		return nil, err
	}
	return out.Result, nil
}
