package loader

import (
	"context"

	"github.com/tcmartin/crewdeck/pkg/models"
)

// Step types understood by the backend flow engine
const (
	StepStart         = "start"
	StepListen        = "listen"
	StepRouter        = "router"
	StepCrew          = "crew"
	StepFunction      = "function"
	StepHumanFeedback = "human_feedback"
	StepEnd           = "end"
)

// Connection types
const (
	ConnectionNormal      = "normal"
	ConnectionOr          = "or"
	ConnectionAnd         = "and"
	ConnectionConditional = "conditional"
)

var stepTypes = map[string]bool{
	StepStart:         true,
	StepListen:        true,
	StepRouter:        true,
	StepCrew:          true,
	StepFunction:      true,
	StepHumanFeedback: true,
	StepEnd:           true,
}

// FlowWriter is the part of the flow API Apply needs.
// *client.FlowService satisfies it.
type FlowWriter interface {
	Get(ctx context.Context, id string) (*models.Flow, error)
	Create(ctx context.Context, body interface{}) (*models.Flow, error)
	Update(ctx context.Context, id string, patch interface{}) (*models.Flow, error)
	AddStep(ctx context.Context, flowID string, step models.FlowStep) (*models.Flow, error)
	DeleteStep(ctx context.Context, flowID, stepID string) (*models.Flow, error)
	AddConnection(ctx context.Context, flowID string, conn models.FlowConnection) (*models.Flow, error)
}

// FlowDefinition represents a parsed flow definition from YAML
type FlowDefinition struct {
	// Metadata about the flow
	Metadata FlowMetadata `yaml:"metadata" json:"metadata"`

	// State is sent as the flow's state schema
	State map[string]interface{} `yaml:"state,omitempty" json:"state,omitempty"`

	Stream bool     `yaml:"stream,omitempty" json:"stream,omitempty"`
	Tags   []string `yaml:"tags,omitempty" json:"tags,omitempty"`

	// Nodes in the flow, keyed by step name
	Nodes map[string]NodeDefinition `yaml:"nodes" json:"nodes"`
}

// FlowMetadata contains information about the flow
type FlowMetadata struct {
	// Name of the flow
	Name string `yaml:"name" json:"name"`

	// Description of the flow
	Description string `yaml:"description" json:"description"`

	// Version of the flow
	Version string `yaml:"version" json:"version"`
}

// NodeDefinition is one step of a flow definition
type NodeDefinition struct {
	Type        string                 `yaml:"type" json:"type"`
	Description string                 `yaml:"description,omitempty" json:"description,omitempty"`
	Crew        string                 `yaml:"crew,omitempty" json:"crew,omitempty"`
	Params      map[string]interface{} `yaml:"params,omitempty" json:"params,omitempty"`

	// Next maps an action (or router route) to the target node
	Next map[string]string `yaml:"next,omitempty" json:"next,omitempty"`

	// Join is "and" or "or" when the node waits on several predecessors
	Join string `yaml:"join,omitempty" json:"join,omitempty"`
}
