package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/botflow/pkg/domain"
)

// GraphOverlay contains debug state to visualize on the graph.
type GraphOverlay struct {
	VisitedNodes []string
	CurrentNode  string
	Breakpoints  []string
}

// OverlayFromSnapshot builds the overlay of a session snapshot and its breakpoints.
func OverlayFromSnapshot(snap *domain.Snapshot, breakpoints []string) *GraphOverlay {
	overlay := &GraphOverlay{Breakpoints: breakpoints}
	if snap == nil {
		return overlay
	}
	for _, h := range snap.History {
		overlay.VisitedNodes = append(overlay.VisitedNodes, h.NodeID)
	}
	overlay.CurrentNode = snap.CurrentNodeID
	return overlay
}

// GenerateMermaid produces a Mermaid flowchart of g.
// It applies semantic styling:
// - Start and triggers: ((Circle))
// - Condition: {Rhombus}
// - Set variable: [/Parallelogram/]
// - Default: [Rectangle]
// It also applies overlay styles (visited, current, breakpoint) if provided.
func GenerateMermaid(g *domain.Graph, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, node := range g.Nodes {
		safeID := sanitizeMermaidID(node.ID)

		opener, closer := "[", "]"
		switch {
		case node.Kind.IsEntry():
			opener, closer = "((", "))"
		case node.Kind == domain.KindCondition:
			opener, closer = "{", "}"
		case node.Kind == domain.KindSetVariable:
			opener, closer = "[/", "/]"
		}

		text := node.ID
		if label := nodeLabel(node); label != "" && label != node.ID {
			text = fmt.Sprintf("%s <br/> %s", node.ID, escape(label))
		}
		if !node.Kind.Known() {
			text += fmt.Sprintf(" <br/> ? %s", escape(string(node.Kind)))
		}
		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", safeID, opener, text, closer))
	}

	for _, c := range g.Connections {
		arrow := "-->"
		if label := c.BranchLabel(); label != "" {
			arrow = fmt.Sprintf("-- \"%s\" -->", escape(label))
		}
		sb.WriteString(fmt.Sprintf("    %s %s %s\n", sanitizeMermaidID(c.Source), arrow, sanitizeMermaidID(c.Target)))
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Black text keeps contrast on light fills in both themes.
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")
		sb.WriteString("    classDef breakpoint stroke:#d32f2f,stroke-width:3px,stroke-dasharray:5 3;\n")

		visited := make(map[string]bool)
		for _, id := range overlay.VisitedNodes {
			safeID := sanitizeMermaidID(id)
			if !visited[safeID] && safeID != "" && g.HasNode(id) {
				visited[safeID] = true
				sb.WriteString(fmt.Sprintf("    class %s visited;\n", safeID))
			}
		}

		bps := append([]string(nil), overlay.Breakpoints...)
		sort.Strings(bps)
		for _, id := range bps {
			if g.HasNode(id) {
				sb.WriteString(fmt.Sprintf("    class %s breakpoint;\n", sanitizeMermaidID(id)))
			}
		}

		if overlay.CurrentNode != "" && g.HasNode(overlay.CurrentNode) {
			sb.WriteString(fmt.Sprintf("    class %s current;\n", sanitizeMermaidID(overlay.CurrentNode)))
		}
	}

	return sb.String()
}

// nodeLabel returns the editor label of a node, falling back to its trigger or text.
func nodeLabel(n domain.Node) string {
	switch d := n.Data.(type) {
	case *domain.CommandData:
		if d.Label != "" {
			return d.Label
		}
		return d.Command
	case *domain.MessageTriggerData:
		if d.Label != "" {
			return d.Label
		}
		return d.Text
	case *domain.SendMessageData:
		if d.Label != "" {
			return d.Label
		}
		return d.Text
	case *domain.ConditionData:
		if d.Label != "" {
			return d.Label
		}
		return strings.TrimSpace(fmt.Sprintf("%s %s %v", d.Variable, d.Operator, valueOrEmpty(d.Value)))
	case *domain.SetVariableData:
		if d.Label != "" {
			return d.Label
		}
		return fmt.Sprintf("%s = %v", d.Variable, valueOrEmpty(d.Value))
	}
	if label, ok := n.Raw["label"].(string); ok {
		return label
	}
	return ""
}

func valueOrEmpty(v any) any {
	if v == nil {
		return ""
	}
	return v
}

func escape(s string) string {
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.ReplaceAll(s, "\n", " ")
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
