package compiler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/aretw0/botflow/pkg/domain"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Parser converts bot documents into validated graphs.
// It accepts the admin panel's bot document ({id, name, configuration:{nodes, edges, variables}})
// as well as a bare graph ({nodes, connections, variables}), encoded as JSON or YAML.
type Parser struct{}

// NewParser creates a new parser instance.
func NewParser() *Parser {
	return &Parser{}
}

type rawNode struct {
	ID   string         `mapstructure:"id"`
	Type string         `mapstructure:"type"`
	Data map[string]any `mapstructure:"data"`
	Rest map[string]any `mapstructure:",remain"`
}

type rawConnection struct {
	ID           string `mapstructure:"id"`
	Source       string `mapstructure:"source"`
	Target       string `mapstructure:"target"`
	SourceHandle string `mapstructure:"sourceHandle"`
	Label        string `mapstructure:"label"`
}

type rawGraph struct {
	Nodes       []rawNode       `mapstructure:"nodes"`
	Connections []rawConnection `mapstructure:"connections"`
	Edges       []rawConnection `mapstructure:"edges"`
	Variables   any             `mapstructure:"variables"`
}

type rawDocument struct {
	ID            string          `mapstructure:"id"`
	Name          string          `mapstructure:"name"`
	Configuration *rawGraph       `mapstructure:"configuration"`
	Nodes         []rawNode       `mapstructure:"nodes"`
	Connections   []rawConnection `mapstructure:"connections"`
	Edges         []rawConnection `mapstructure:"edges"`
	Variables     any             `mapstructure:"variables"`
}

// Parse decodes and validates a graph document.
// Structural problems are reported as *domain.GraphError (errors.Is ErrMalformedGraph).
func (p *Parser) Parse(data []byte) (*domain.Graph, error) {
	generic, err := decodeGeneric(data)
	if err != nil {
		return nil, &domain.GraphError{Reason: err.Error()}
	}

	var doc rawDocument
	if err := weakDecode(generic, &doc); err != nil {
		return nil, &domain.GraphError{Reason: fmt.Sprintf("invalid document: %v", err)}
	}

	src := rawGraph{
		Nodes:       doc.Nodes,
		Connections: doc.Connections,
		Edges:       doc.Edges,
		Variables:   doc.Variables,
	}
	if doc.Configuration != nil {
		src = *doc.Configuration
	}

	graph := &domain.Graph{
		BotID: doc.ID,
		Name:  doc.Name,
	}

	for _, rn := range src.Nodes {
		node, err := buildNode(rn)
		if err != nil {
			return nil, err
		}
		graph.Nodes = append(graph.Nodes, node)
	}

	conns := src.Connections
	if len(conns) == 0 {
		conns = src.Edges
	}
	for i, rc := range conns {
		id := rc.ID
		if id == "" {
			id = fmt.Sprintf("c%d", i+1)
		}
		graph.Connections = append(graph.Connections, domain.Connection{
			ID:           id,
			Source:       rc.Source,
			Target:       rc.Target,
			SourceHandle: rc.SourceHandle,
			Label:        rc.Label,
		})
	}

	graph.Variables, err = buildVariables(src.Variables)
	if err != nil {
		return nil, err
	}

	if err := Validate(graph); err != nil {
		return nil, err
	}
	graph.Index()
	return graph, nil
}

// Validate checks the structural invariants of a graph: unique non-empty node ids,
// connections between existing nodes, and at least one start or trigger node.
func Validate(g *domain.Graph) error {
	seen := make(map[string]struct{}, len(g.Nodes))
	hasEntry := false
	for _, n := range g.Nodes {
		if n.ID == "" {
			return &domain.GraphError{Reason: fmt.Sprintf("node of type '%s' has no id", n.Kind)}
		}
		if _, dup := seen[n.ID]; dup {
			return &domain.GraphError{NodeID: n.ID, Reason: "duplicate node id"}
		}
		seen[n.ID] = struct{}{}
		if n.Kind.IsEntry() {
			hasEntry = true
		}
	}

	for _, c := range g.Connections {
		if _, ok := seen[c.Source]; !ok {
			return &domain.GraphError{NodeID: c.Source, Reason: fmt.Sprintf("connection '%s' references missing source node", c.ID)}
		}
		if _, ok := seen[c.Target]; !ok {
			return &domain.GraphError{NodeID: c.Target, Reason: fmt.Sprintf("connection '%s' references missing target node", c.ID)}
		}
	}

	if !hasEntry {
		return &domain.GraphError{Reason: "no start or trigger node"}
	}
	return nil
}

func decodeGeneric(data []byte) (map[string]any, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty document")
	}

	var out map[string]any
	if trimmed[0] == '{' {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		if err := dec.Decode(&out); err != nil {
			return nil, fmt.Errorf("failed to parse JSON document: %w", err)
		}
		return normalizeNumbers(out).(map[string]any), nil
	}

	if err := yaml.Unmarshal(trimmed, &out); err != nil {
		return nil, fmt.Errorf("failed to parse YAML document: %w", err)
	}
	if out == nil {
		return nil, fmt.Errorf("document is not an object")
	}
	return out, nil
}

// normalizeNumbers turns json.Number into int64 when integral, float64 otherwise.
func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			t[k] = normalizeNumbers(val)
		}
		return t
	case []any:
		for i, val := range t {
			t[i] = normalizeNumbers(val)
		}
		return t
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	}
	return v
}

func weakDecode(input any, target any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

// dataFactories maps each known kind to the typed payload it decodes into.
var dataFactories = map[domain.NodeKind]func() any{
	domain.KindTriggerCommand: func() any { return &domain.CommandData{} },
	domain.KindTriggerMessage: func() any { return &domain.MessageTriggerData{} },
	domain.KindSendMessage:    func() any { return &domain.SendMessageData{} },
	domain.KindCondition:      func() any { return &domain.ConditionData{} },
	domain.KindSetVariable:    func() any { return &domain.SetVariableData{} },
}

func buildNode(rn rawNode) (domain.Node, error) {
	node := domain.Node{
		ID:   rn.ID,
		Kind: domain.NodeKind(rn.Type),
		Raw:  rn.Data,
	}

	factory, ok := dataFactories[node.Kind]
	if !ok {
		return node, nil
	}

	payload := factory()
	if rn.Data != nil {
		if err := weakDecode(rn.Data, payload); err != nil {
			return node, &domain.GraphError{NodeID: rn.ID, Reason: fmt.Sprintf("invalid data: %v", err)}
		}
	}
	node.Data = payload
	return node, nil
}

// buildVariables accepts {name: {defaultValue, type}}, {name: value} or [{name, defaultValue, type}].
func buildVariables(raw any) (map[string]domain.Variable, error) {
	vars := make(map[string]domain.Variable)

	switch v := raw.(type) {
	case nil:
	case map[string]any:
		names := make([]string, 0, len(v))
		for name := range v {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			vars[name] = decodeVariable(v[name])
		}
	case []any:
		for _, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, &domain.GraphError{Reason: fmt.Sprintf("invalid variable declaration: %v", item)}
			}
			name, _ := m["name"].(string)
			if name == "" {
				return nil, &domain.GraphError{Reason: "variable declaration without name"}
			}
			vars[name] = decodeVariable(m)
		}
	default:
		return nil, &domain.GraphError{Reason: fmt.Sprintf("invalid variables section of type %T", raw)}
	}
	return vars, nil
}

func decodeVariable(raw any) domain.Variable {
	m, ok := raw.(map[string]any)
	if !ok {
		return domain.Variable{DefaultValue: raw}
	}
	if _, declared := m["defaultValue"]; !declared {
		if _, typed := m["type"]; !typed {
			return domain.Variable{DefaultValue: raw}
		}
	}
	var v domain.Variable
	if err := weakDecode(m, &v); err != nil {
		return domain.Variable{DefaultValue: m["defaultValue"]}
	}
	return v
}
