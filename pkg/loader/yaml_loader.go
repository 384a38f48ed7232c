package loader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/tcmartin/crewdeck/pkg/collections"
	"github.com/tcmartin/crewdeck/pkg/models"
)

// ErrInvalidDefinition wraps every validation failure
var ErrInvalidDefinition = errors.New("invalid flow definition")

const (
	columnWidth = 300
	rowHeight   = 150
)

// Parse decodes and validates a YAML flow definition. Unknown keys are rejected.
func Parse(data []byte) (*FlowDefinition, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var def FlowDefinition
	if err := dec.Decode(&def); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalidDefinition)
		}
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// LoadFile reads and parses a definition from disk
func LoadFile(path string) (*FlowDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read flow definition: %w", err)
	}
	return Parse(data)
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidDefinition, fmt.Sprintf(format, args...))
}

// Validate checks names, node types, references and the start node
func (d *FlowDefinition) Validate() error {
	if d.Metadata.Name == "" {
		return invalid("flow name is required")
	}
	if len(d.Nodes) == 0 {
		return invalid("flow must have at least one node")
	}

	for _, name := range d.nodeNames() {
		node := d.Nodes[name]
		if !stepTypes[node.Type] {
			return invalid("unknown node type '%s' in node '%s'", node.Type, name)
		}
		switch node.Type {
		case StepCrew:
			if node.Crew == "" {
				return invalid("crew node '%s' must name a crew", name)
			}
		case StepEnd:
			if len(node.Next) > 0 {
				return invalid("end node '%s' cannot have successors", name)
			}
		case StepRouter:
			if len(node.Next) == 0 {
				return invalid("router node '%s' needs at least one route", name)
			}
		}
		if node.Join != "" && node.Join != ConnectionAnd && node.Join != ConnectionOr {
			return invalid("node '%s' has join '%s', want 'and' or 'or'", name, node.Join)
		}
		for _, action := range sortedKeys(node.Next) {
			target := node.Next[action]
			if _, ok := d.Nodes[target]; !ok {
				return invalid("node '%s' references non-existent node '%s' for action '%s'", name, target, action)
			}
		}
	}

	_, err := d.StartNode()
	return err
}

// StartNode returns the single start-typed node, or failing that the single
// node no other node points at.
func (d *FlowDefinition) StartNode() (string, error) {
	var typed []string
	for _, name := range d.nodeNames() {
		if d.Nodes[name].Type == StepStart {
			typed = append(typed, name)
		}
	}
	switch len(typed) {
	case 1:
		return typed[0], nil
	case 0:
	default:
		return "", invalid("multiple start nodes found: '%s' and '%s'", typed[0], typed[1])
	}

	referenced := make(map[string]bool)
	for _, node := range d.Nodes {
		for _, target := range node.Next {
			referenced[target] = true
		}
	}

	var start string
	for _, name := range d.nodeNames() {
		if referenced[name] {
			continue
		}
		if start != "" {
			return "", invalid("multiple start nodes found: '%s' and '%s'", start, name)
		}
		start = name
	}
	if start == "" {
		return "", invalid("no start node found")
	}
	return start, nil
}

// Steps converts the nodes into backend steps, ordered breadth-first from the
// start node. Unreachable nodes follow in name order.
func (d *FlowDefinition) Steps() []models.FlowStep {
	start, err := d.StartNode()
	if err != nil {
		return nil
	}

	depth := map[string]int{start: 0}
	order := []string{start}
	for i := 0; i < len(order); i++ {
		name := order[i]
		next := d.Nodes[name].Next
		for _, action := range sortedKeys(next) {
			target := next[action]
			if _, seen := depth[target]; seen {
				continue
			}
			depth[target] = depth[name] + 1
			order = append(order, target)
		}
	}

	maxDepth := 0
	for _, dep := range depth {
		if dep > maxDepth {
			maxDepth = dep
		}
	}
	for _, name := range d.nodeNames() {
		if _, seen := depth[name]; !seen {
			depth[name] = maxDepth + 1
			order = append(order, name)
		}
	}

	rows := make(map[int]int)
	steps := make([]models.FlowStep, 0, len(order))
	for i, name := range order {
		node := d.Nodes[name]
		col := depth[name]
		steps = append(steps, models.FlowStep{
			Name:        name,
			Description: node.Description,
			StepType:    node.Type,
			Order:       i,
			PositionX:   float64(col * columnWidth),
			PositionY:   float64(rows[col] * rowHeight),
			Config:      node.Params,
			CrewID:      node.Crew,
		})
		rows[col]++
	}
	return steps
}

// Connections builds the edges between steps. ids maps step names to backend
// step ids.
func (d *FlowDefinition) Connections(ids map[string]string) ([]models.FlowConnection, error) {
	var conns []models.FlowConnection
	for _, name := range d.nodeNames() {
		node := d.Nodes[name]
		for _, action := range sortedKeys(node.Next) {
			target := node.Next[action]
			src, ok := ids[name]
			if !ok {
				return nil, fmt.Errorf("no step id for '%s'", name)
			}
			dst, ok := ids[target]
			if !ok {
				return nil, fmt.Errorf("no step id for '%s'", target)
			}

			conn := models.FlowConnection{
				SourceStepID:   src,
				TargetStepID:   dst,
				ConnectionType: ConnectionNormal,
				Label:          action,
			}
			switch {
			case node.Type == StepRouter:
				conn.ConnectionType = ConnectionConditional
				conn.RouteName = action
			case d.Nodes[target].Join != "":
				conn.ConnectionType = d.Nodes[target].Join
			}
			conns = append(conns, conn)
		}
	}
	return conns, nil
}

// flowPayload is the create/update body. Duplicate tags are dropped.
type flowPayload struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	StateSchema map[string]interface{} `json:"state_schema,omitempty"`
	Stream      bool                   `json:"stream"`
	Tags        []string               `json:"tags,omitempty"`
	Steps       []models.FlowStep      `json:"steps,omitempty"`
}

func (d *FlowDefinition) payload(steps []models.FlowStep) flowPayload {
	return flowPayload{
		Name:        d.Metadata.Name,
		Description: d.Metadata.Description,
		StateSchema: d.State,
		Stream:      d.Stream,
		Tags:        collections.NewOrderedSet(d.Tags...).Items(),
		Steps:       steps,
	}
}

// Apply uploads def. With an empty flowID a new flow is created; otherwise the
// flow's metadata is patched and its steps replaced. Connections are added once
// the backend has assigned step ids.
func Apply(ctx context.Context, w FlowWriter, def *FlowDefinition, flowID string) (*models.Flow, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	steps := def.Steps()

	var flow *models.Flow
	if flowID == "" {
		created, err := w.Create(ctx, def.payload(steps))
		if err != nil {
			return nil, fmt.Errorf("failed to create flow: %w", err)
		}
		flow = created
	} else {
		if _, err := w.Update(ctx, flowID, def.payload(nil)); err != nil {
			return nil, fmt.Errorf("failed to update flow %s: %w", flowID, err)
		}
		existing, err := w.Get(ctx, flowID)
		if err != nil {
			return nil, fmt.Errorf("failed to get flow %s: %w", flowID, err)
		}
		flow = existing
		for _, step := range existing.Steps {
			if flow, err = w.DeleteStep(ctx, flowID, step.ID); err != nil {
				return nil, fmt.Errorf("failed to remove step %s: %w", step.Name, err)
			}
		}
		for _, step := range steps {
			if flow, err = w.AddStep(ctx, flowID, step); err != nil {
				return nil, fmt.Errorf("failed to add step %s: %w", step.Name, err)
			}
		}
	}

	ids := make(map[string]string, len(flow.Steps))
	for _, step := range flow.Steps {
		ids[step.Name] = step.ID
	}
	conns, err := def.Connections(ids)
	if err != nil {
		return nil, err
	}
	for _, conn := range conns {
		if flow, err = w.AddConnection(ctx, flow.ID, conn); err != nil {
			return nil, fmt.Errorf("failed to connect steps: %w", err)
		}
	}
	return flow, nil
}

func (d *FlowDefinition) nodeNames() []string {
	return sortedKeys(d.Nodes)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
