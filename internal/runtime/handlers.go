package runtime

import (
	"context"
	"fmt"
	"strings"

	"github.com/aretw0/botflow/pkg/domain"
	"github.com/aretw0/botflow/pkg/schema"
)

// NodeHandler executes the behaviour of one node kind.
type NodeHandler interface {
	Execute(ctx context.Context, x *Execution) (StepResult, error)
}

// HandlerFunc adapts a function to NodeHandler.
type HandlerFunc func(ctx context.Context, x *Execution) (StepResult, error)

// Execute calls f(ctx, x).
func (f HandlerFunc) Execute(ctx context.Context, x *Execution) (StepResult, error) {
	return f(ctx, x)
}

// Execution is the view a handler gets of the step being executed.
type Execution struct {
	engine *Engine

	Graph *domain.Graph
	Node  *domain.Node
	Scope domain.Scope
}

// Interpolate renders text against the scope with the engine's interpolator.
func (x *Execution) Interpolate(ctx context.Context, text string) (string, error) {
	return x.engine.interpolator(ctx, text, x.Scope)
}

// Follow returns the target of the node's single outgoing connection, or "" when it has none.
// More than one outgoing connection is an AmbiguousBranch error.
func (x *Execution) Follow() (string, error) {
	out := x.Graph.OutgoingConnections(x.Node.ID)
	switch len(out) {
	case 0:
		return "", nil
	case 1:
		return out[0].Target, nil
	}
	return "", &domain.BranchError{NodeID: x.Node.ID, Kind: x.Node.Kind, Outgoing: len(out)}
}

// Branch returns the target of the first outgoing connection whose label matches result.
func (x *Execution) Branch(result bool) (string, error) {
	labels := x.engine.falsy
	if result {
		labels = x.engine.truthy
	}
	out := x.Graph.OutgoingConnections(x.Node.ID)
	for _, c := range out {
		if _, ok := labels[strings.ToLower(strings.TrimSpace(c.BranchLabel()))]; ok {
			return c.Target, nil
		}
	}
	return "", &domain.BranchError{NodeID: x.Node.ID, Kind: x.Node.Kind, Outgoing: len(out), Result: &result}
}

func passThrough(_ context.Context, x *Execution) (StepResult, error) {
	next, err := x.Follow()
	return StepResult{Next: next}, err
}

func halt(_ context.Context, _ *Execution) (StepResult, error) {
	return StepResult{}, nil
}

func sendMessage(ctx context.Context, x *Execution) (StepResult, error) {
	data, _ := x.Node.Data.(*domain.SendMessageData)
	var text string
	if data != nil {
		rendered, err := x.Interpolate(ctx, data.Text)
		if err != nil {
			return StepResult{}, fmt.Errorf("node '%s': %w", x.Node.ID, err)
		}
		text = rendered
	}

	next, err := x.Follow()
	if err != nil {
		return StepResult{}, err
	}
	return StepResult{
		Effects: []domain.Effect{domain.SendMessage(x.Node.ID, text)},
		Next:    next,
	}, nil
}

func condition(ctx context.Context, x *Execution) (StepResult, error) {
	data, ok := x.Node.Data.(*domain.ConditionData)
	if !ok || data.Variable == "" {
		return StepResult{}, &domain.GraphError{NodeID: x.Node.ID, Reason: "condition has no variable"}
	}

	result, err := x.engine.evaluator(ctx, data, x.Scope)
	if err != nil {
		return StepResult{}, withNode(x.Node.ID, err)
	}

	next, err := x.Branch(result)
	return StepResult{Next: next}, err
}

func setVariable(ctx context.Context, x *Execution) (StepResult, error) {
	data, ok := x.Node.Data.(*domain.SetVariableData)
	if !ok || data.Variable == "" {
		return StepResult{}, &domain.GraphError{NodeID: x.Node.ID, Reason: "set-variable has no variable"}
	}

	value, err := x.resolve(ctx, data.Value)
	if err != nil {
		return StepResult{}, fmt.Errorf("node '%s': %w", x.Node.ID, err)
	}

	if decl, declared := x.Graph.Variables[data.Variable]; declared && decl.Type != "" {
		value = x.coerce(data.Variable, decl.Type, value)
	}
	x.Scope[data.Variable] = value

	next, err := x.Follow()
	return StepResult{Next: next}, err
}

// resolve interpolates string values. A value that is exactly one placeholder
// takes the referenced value itself so its type survives.
func (x *Execution) resolve(ctx context.Context, value any) (any, error) {
	s, ok := value.(string)
	if !ok {
		return value, nil
	}
	if name, single := singlePlaceholder(s); single {
		if v, found := Lookup(x.Scope, name); found {
			return v, nil
		}
	}
	return x.Interpolate(ctx, s)
}

func (x *Execution) coerce(name, typeName string, value any) any {
	t, err := schema.ParseType(typeName)
	if err != nil || t == nil {
		if err != nil {
			x.engine.logger.Warn("Ignoring unknown variable type", "variable", name, "type", typeName)
		}
		return value
	}
	coerced, err := t.Coerce(value)
	if err != nil {
		x.engine.logger.Warn("Variable value does not match declared type", "node_id", x.Node.ID, "variable", name, "type", typeName, "err", err)
		return value
	}
	return coerced
}

func withNode(nodeID string, err error) error {
	if ge, ok := err.(*domain.GraphError); ok && ge.NodeID == "" {
		ge.NodeID = nodeID
		return ge
	}
	return fmt.Errorf("node '%s': %w", nodeID, err)
}
