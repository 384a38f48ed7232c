package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/tcmartin/crewdeck/pkg/models"
)

// TemplateService browses and uses marketplace templates
type TemplateService struct {
	*Resource[models.Template]
}

// Categories lists template categories
func (s *TemplateService) Categories(ctx context.Context) ([]models.TemplateCategory, error) {
	var out []models.TemplateCategory
	if err := s.c.do(ctx, http.MethodGet, s.path+"/categories", nil, nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []models.TemplateCategory{}
	}
	return out, nil
}

// Mine lists templates published by the current user
func (s *TemplateService) Mine(ctx context.Context, opts models.ListOptions) (*models.ListResponse[models.Template], error) {
	var out models.ListResponse[models.Template]
	if err := s.c.do(ctx, http.MethodGet, s.path+"/my", s.listQuery(opts), nil, &out); err != nil {
		return nil, err
	}
	if out.Items == nil {
		out.Items = []models.Template{}
	}
	return &out, nil
}

// Use instantiates a template into the user's workspace
func (s *TemplateService) Use(ctx context.Context, templateID string) (*models.TemplateUseResponse, error) {
	var out models.TemplateUseResponse
	if err := s.c.do(ctx, http.MethodPost, s.itemPath(templateID, "use"), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Like records a like
func (s *TemplateService) Like(ctx context.Context, templateID string) (string, error) {
	var out models.MessageResponse
	if err := s.c.do(ctx, http.MethodPost, s.itemPath(templateID, "like"), nil, nil, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

// Rate scores a template from 1 to 5
func (s *TemplateService) Rate(ctx context.Context, templateID string, rating int) (string, error) {
	if rating < 1 || rating > 5 {
		return "", fmt.Errorf("rating must be between 1 and 5, got %d", rating)
	}
	q := url.Values{"rating": []string{strconv.Itoa(rating)}}

	var out models.MessageResponse
	if err := s.c.do(ctx, http.MethodPost, s.itemPath(templateID, "rate"), q, nil, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}
