package dsl

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aretw0/botflow/internal/compiler"
	"github.com/aretw0/botflow/pkg/adapters/memory"
	"github.com/aretw0/botflow/pkg/domain"
)

// Builder manages the graph construction.
type Builder struct {
	botID     string
	name      string
	nodes     []*NodeBuilder
	byID      map[string]*NodeBuilder
	variables map[string]domain.Variable
	errs      []error
}

// New creates a new graph builder for botID.
func New(botID string) *Builder {
	return &Builder{
		botID:     botID,
		byID:      make(map[string]*NodeBuilder),
		variables: make(map[string]domain.Variable),
	}
}

// Name sets the display name of the bot.
func (b *Builder) Name(name string) *Builder {
	b.name = name
	return b
}

// Var declares a graph variable with its default value and optional type.
func (b *Builder) Var(name string, defaultValue any, typeName string) *Builder {
	b.variables[name] = domain.Variable{DefaultValue: defaultValue, Type: typeName}
	return b
}

// Start adds an explicit entry node.
func (b *Builder) Start(id string) *NodeBuilder {
	return b.add(id, domain.KindStart, nil)
}

// Command adds a trigger-command node, e.g. for "/start".
func (b *Builder) Command(id, command string) *NodeBuilder {
	return b.add(id, domain.KindTriggerCommand, &domain.CommandData{Command: command})
}

// OnMessage adds a trigger-message node. An empty matchType means exact.
func (b *Builder) OnMessage(id, text, matchType string) *NodeBuilder {
	return b.add(id, domain.KindTriggerMessage, &domain.MessageTriggerData{Text: text, MatchType: matchType})
}

// Message adds an action-send-message node. Text may contain {{variable}} placeholders.
func (b *Builder) Message(id, text string) *NodeBuilder {
	return b.add(id, domain.KindSendMessage, &domain.SendMessageData{Text: text})
}

// Condition adds a condition node comparing variable to value with operator.
func (b *Builder) Condition(id, variable, operator string, value any) *NodeBuilder {
	return b.add(id, domain.KindCondition, &domain.ConditionData{Variable: variable, Operator: operator, Value: value})
}

// Set adds a set-variable node.
func (b *Builder) Set(id, variable string, value any) *NodeBuilder {
	return b.add(id, domain.KindSetVariable, &domain.SetVariableData{Variable: variable, Value: value})
}

// Node adds a node of any kind with a raw data payload, including kinds the runtime does not know.
func (b *Builder) Node(id string, kind domain.NodeKind, data map[string]any) *NodeBuilder {
	return b.add(id, kind, data)
}

func (b *Builder) add(id string, kind domain.NodeKind, data any) *NodeBuilder {
	nb := &NodeBuilder{builder: b, node: domain.Node{ID: id, Kind: kind, Data: data}}
	if _, dup := b.byID[id]; dup {
		b.errs = append(b.errs, fmt.Errorf("node '%s' added twice", id))
		return nb
	}
	b.byID[id] = nb
	b.nodes = append(b.nodes, nb)
	return nb
}

// Graph assembles the unparsed graph in insertion order.
func (b *Builder) Graph() (*domain.Graph, error) {
	if err := errors.Join(b.errs...); err != nil {
		return nil, err
	}

	g := &domain.Graph{
		BotID:       b.botID,
		Name:        b.name,
		Nodes:       make([]domain.Node, 0, len(b.nodes)),
		Connections: []domain.Connection{},
	}
	if len(b.variables) > 0 {
		g.Variables = b.variables
	}
	for _, nb := range b.nodes {
		g.Nodes = append(g.Nodes, nb.node)
		for _, e := range nb.edges {
			if _, ok := b.byID[e.Target]; !ok {
				return nil, fmt.Errorf("node '%s' connects to unknown node '%s'", nb.node.ID, e.Target)
			}
			e.ID = fmt.Sprintf("c%d", len(g.Connections)+1)
			g.Connections = append(g.Connections, e)
		}
	}
	return g, nil
}

// Document renders the graph as a JSON bot document.
func (b *Builder) Document() ([]byte, error) {
	g, err := b.Graph()
	if err != nil {
		return nil, err
	}
	return json.Marshal(g)
}

// Build parses the document like an uploaded bot and returns the indexed graph.
func (b *Builder) Build() (*domain.Graph, error) {
	doc, err := b.Document()
	if err != nil {
		return nil, err
	}
	g, err := compiler.NewParser().Parse(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to build bot '%s': %w", b.botID, err)
	}
	g.BotID = b.botID
	return g, nil
}

// Loader returns an in-memory BotLoader serving this bot.
func (b *Builder) Loader() (*memory.Loader, error) {
	g, err := b.Graph()
	if err != nil {
		return nil, err
	}
	loader, err := memory.NewFromGraphs(g)
	if err != nil {
		return nil, fmt.Errorf("failed to build memory loader: %w", err)
	}
	return loader, nil
}
