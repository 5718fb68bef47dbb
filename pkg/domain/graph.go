package domain

import (
	"regexp"
	"strings"
)

// Connection is a directed edge between two nodes of the same graph.
type Connection struct {
	ID           string `json:"id" yaml:"id"`
	Source       string `json:"source" yaml:"source"`
	Target       string `json:"target" yaml:"target"`
	SourceHandle string `json:"sourceHandle,omitempty" yaml:"sourceHandle,omitempty"`
	Label        string `json:"label,omitempty" yaml:"label,omitempty"`
}

// BranchLabel returns the outcome a condition connection corresponds to.
func (c Connection) BranchLabel() string {
	if c.Label != "" {
		return c.Label
	}
	return c.SourceHandle
}

// Variable is a graph-level variable declaration.
type Variable struct {
	DefaultValue any    `json:"defaultValue" yaml:"defaultValue" mapstructure:"defaultValue"`
	Type         string `json:"type,omitempty" yaml:"type,omitempty" mapstructure:"type"`
	Description  string `json:"description,omitempty" yaml:"description,omitempty" mapstructure:"description"`
}

// Graph is the immutable conversation graph of one bot.
// Build it with the compiler; do not mutate it after a session was created.
type Graph struct {
	BotID       string              `json:"botId,omitempty"`
	Name        string              `json:"name,omitempty"`
	Nodes       []Node              `json:"nodes"`
	Connections []Connection        `json:"connections"`
	Variables   map[string]Variable `json:"variables,omitempty"`

	index    map[string]int
	outgoing map[string][]Connection
}

// Index builds the lookup tables. The compiler calls it once after loading.
func (g *Graph) Index() {
	g.index = make(map[string]int, len(g.Nodes))
	for i, n := range g.Nodes {
		if _, dup := g.index[n.ID]; !dup {
			g.index[n.ID] = i
		}
	}
	g.outgoing = make(map[string][]Connection)
	for _, c := range g.Connections {
		g.outgoing[c.Source] = append(g.outgoing[c.Source], c)
	}
}

func (g *Graph) ensureIndex() {
	if g.index == nil {
		g.Index()
	}
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (*Node, bool) {
	g.ensureIndex()
	i, ok := g.index[id]
	if !ok {
		return nil, false
	}
	return &g.Nodes[i], true
}

// HasNode reports whether id names a node of the graph.
func (g *Graph) HasNode(id string) bool {
	_, ok := g.Node(id)
	return ok
}

// OutgoingConnections returns the connections leaving nodeID in stored order.
func (g *Graph) OutgoingConnections(nodeID string) []Connection {
	g.ensureIndex()
	return g.outgoing[nodeID]
}

// EntryNode returns the first start node, or the first trigger if there is none.
func (g *Graph) EntryNode() (*Node, bool) {
	for i := range g.Nodes {
		if g.Nodes[i].Kind == KindStart {
			return &g.Nodes[i], true
		}
	}
	for i := range g.Nodes {
		if g.Nodes[i].Kind.IsTrigger() {
			return &g.Nodes[i], true
		}
	}
	return nil, false
}

// Defaults returns a fresh scope seeded with the declared default values.
func (g *Graph) Defaults() Scope {
	scope := make(Scope, len(g.Variables))
	for name, v := range g.Variables {
		scope[name] = v.DefaultValue
	}
	return scope
}

// FindTrigger locates the node an incoming event should start from.
// For KindTriggerCommand the key is the command text ("/start", "start@bot").
// For KindTriggerMessage the key is the free-text message.
func (g *Graph) FindTrigger(kind NodeKind, key string) (*Node, bool) {
	switch kind {
	case KindTriggerCommand:
		want := normalizeCommand(key)
		for i := range g.Nodes {
			n := &g.Nodes[i]
			if n.Kind != KindTriggerCommand {
				continue
			}
			if d, ok := n.Data.(*CommandData); ok && normalizeCommand(d.Command) == want {
				return n, true
			}
		}
	case KindTriggerMessage:
		var fallback *Node
		for i := range g.Nodes {
			n := &g.Nodes[i]
			if n.Kind != KindTriggerMessage {
				continue
			}
			d, ok := n.Data.(*MessageTriggerData)
			if !ok || d.Text == "" {
				if fallback == nil {
					fallback = n
				}
				continue
			}
			if matchMessage(d, key) {
				return n, true
			}
		}
		if fallback != nil {
			return fallback, true
		}
	case KindStart:
		for i := range g.Nodes {
			if g.Nodes[i].Kind == KindStart {
				return &g.Nodes[i], true
			}
		}
	}
	return nil, false
}

func normalizeCommand(cmd string) string {
	cmd = strings.TrimSpace(cmd)
	if fields := strings.Fields(cmd); len(fields) > 0 {
		cmd = fields[0]
	}
	cmd = strings.TrimPrefix(cmd, "/")
	if at := strings.IndexByte(cmd, '@'); at >= 0 {
		cmd = cmd[:at]
	}
	return strings.ToLower(cmd)
}

func matchMessage(d *MessageTriggerData, text string) bool {
	switch d.MatchType {
	case MatchExact:
		return strings.EqualFold(strings.TrimSpace(text), strings.TrimSpace(d.Text))
	case MatchRegex:
		re, err := regexp.Compile(d.Text)
		if err != nil {
			return false
		}
		return re.MatchString(text)
	default:
		return strings.Contains(strings.ToLower(text), strings.ToLower(d.Text))
	}
}
