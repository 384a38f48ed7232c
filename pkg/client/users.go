package client

import (
	"context"
	"net/http"

	"github.com/tcmartin/crewdeck/pkg/models"
)

// UserService reads and updates the authenticated account
type UserService struct {
	c *Client
}

// Me returns the current user
func (s *UserService) Me(ctx context.Context) (*models.User, error) {
	var out models.User
	if err := s.c.do(ctx, http.MethodGet, "/users/me", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateMe patches the current user
func (s *UserService) UpdateMe(ctx context.Context, patch map[string]interface{}) (*models.User, error) {
	var out models.User
	if err := s.c.do(ctx, http.MethodPatch, "/users/me", nil, patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
