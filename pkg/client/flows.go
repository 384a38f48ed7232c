package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/tcmartin/crewdeck/pkg/models"
)

// FlowService manages flows and their steps
type FlowService struct {
	*DuplicableResource[models.Flow]
}

// Kickoff starts a flow asynchronously. nil maps are sent as {}.
func (s *FlowService) Kickoff(ctx context.Context, flowID string, inputs, initialState map[string]interface{}) (*models.KickoffResponse, error) {
	if inputs == nil {
		inputs = map[string]interface{}{}
	}
	if initialState == nil {
		initialState = map[string]interface{}{}
	}
	req := models.KickoffRequest{
		Inputs:         inputs,
		InitialState:   initialState,
		AsyncExecution: true,
	}

	var out models.KickoffResponse
	if err := s.c.do(ctx, http.MethodPost, s.itemPath(flowID, "kickoff"), nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Steps returns the ordered steps of a flow
func (s *FlowService) Steps(ctx context.Context, flowID string) ([]models.FlowStep, error) {
	flow, err := s.Get(ctx, flowID)
	if err != nil {
		return nil, err
	}
	if flow.Steps == nil {
		return []models.FlowStep{}, nil
	}
	return flow.Steps, nil
}

// AddStep appends a step and returns the updated flow
func (s *FlowService) AddStep(ctx context.Context, flowID string, step models.FlowStep) (*models.Flow, error) {
	var out models.Flow
	if err := s.c.do(ctx, http.MethodPost, s.itemPath(flowID, "steps"), nil, step, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteStep removes a step together with its connections
func (s *FlowService) DeleteStep(ctx context.Context, flowID, stepID string) (*models.Flow, error) {
	var out models.Flow
	if err := s.c.do(ctx, http.MethodDelete, s.itemPath(flowID, "steps", url.PathEscape(stepID)), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AddConnection links two existing steps
func (s *FlowService) AddConnection(ctx context.Context, flowID string, conn models.FlowConnection) (*models.Flow, error) {
	var out models.Flow
	if err := s.c.do(ctx, http.MethodPost, s.itemPath(flowID, "connections"), nil, conn, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateStep patches the given fields of one step
func (s *FlowService) UpdateStep(ctx context.Context, flowID, stepID string, patch interface{}) (*models.Flow, error) {
	var out models.Flow
	if err := s.c.do(ctx, http.MethodPatch, s.itemPath(flowID, "steps", url.PathEscape(stepID)), nil, patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteConnection removes one edge, leaving both steps in place
func (s *FlowService) DeleteConnection(ctx context.Context, flowID, connID string) (*models.Flow, error) {
	var out models.Flow
	if err := s.c.do(ctx, http.MethodDelete, s.itemPath(flowID, "connections", url.PathEscape(connID)), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
