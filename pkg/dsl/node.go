package dsl

import "github.com/aretw0/botflow/pkg/domain"

// Branch labels written by Then and Else.
const (
	LabelTrue  = "true"
	LabelFalse = "false"
)

// NodeBuilder provides a fluent API for connecting a node.
type NodeBuilder struct {
	node    domain.Node
	edges   []domain.Connection
	builder *Builder
}

// To adds an unlabeled connection to target.
func (n *NodeBuilder) To(target string) *NodeBuilder {
	return n.Branch("", target)
}

// Then connects the true outcome of a condition to target.
func (n *NodeBuilder) Then(target string) *NodeBuilder {
	return n.Branch(LabelTrue, target)
}

// Else connects the false outcome of a condition to target.
func (n *NodeBuilder) Else(target string) *NodeBuilder {
	return n.Branch(LabelFalse, target)
}

// Branch adds a connection to target carrying label.
func (n *NodeBuilder) Branch(label, target string) *NodeBuilder {
	n.edges = append(n.edges, domain.Connection{
		Source: n.node.ID,
		Target: target,
		Label:  label,
	})
	return n
}

// Label sets the display label of the node.
func (n *NodeBuilder) Label(label string) *NodeBuilder {
	switch d := n.node.Data.(type) {
	case *domain.CommandData:
		d.Label = label
	case *domain.MessageTriggerData:
		d.Label = label
	case *domain.SendMessageData:
		d.Label = label
	case *domain.ConditionData:
		d.Label = label
	case *domain.SetVariableData:
		d.Label = label
	case map[string]any:
		d["label"] = label
	case nil:
		n.node.Data = map[string]any{"label": label}
	}
	return n
}

// Build returns the underlying domain.Node.
// This is primarily used by the Builder, but exposed for advanced usage.
func (n *NodeBuilder) Build() domain.Node {
	return n.node
}
