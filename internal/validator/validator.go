package validator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/botflow/pkg/domain"
)

// Severity classifies a lint finding.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is a single finding about a graph that loads but may not run as intended.
type Issue struct {
	Severity Severity
	NodeID   string
	Message  string
}

func (i Issue) String() string {
	if i.NodeID == "" {
		return fmt.Sprintf("[%s] %s", i.Severity, i.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", i.Severity, i.NodeID, i.Message)
}

// LintGraph inspects a loaded graph for problems the engine would only hit at run time:
// ambiguous branches, conditions lacking a branch, unknown kinds and unreachable nodes.
// Reachability is computed by crawling from every start and trigger node.
func LintGraph(g *domain.Graph) []Issue {
	var issues []Issue

	for _, n := range g.Nodes {
		out := g.OutgoingConnections(n.ID)
		switch {
		case !n.Kind.Known():
			issues = append(issues, Issue{SeverityWarning, n.ID, fmt.Sprintf("unknown node type '%s' ends the run", n.Kind)})
		case n.Kind == domain.KindCondition:
			issues = append(issues, lintCondition(n, out)...)
		case len(out) > 1:
			issues = append(issues, Issue{SeverityError, n.ID, fmt.Sprintf("%d outgoing connections on a non-condition node", len(out))})
		}
	}

	visited := make(map[string]bool)
	var queue []string
	for _, n := range g.Nodes {
		if n.Kind.IsEntry() {
			queue = append(queue, n.ID)
		}
	}

	for len(queue) > 0 {
		currentID := queue[0]
		queue = queue[1:]

		if visited[currentID] {
			continue
		}
		visited[currentID] = true

		for _, c := range g.OutgoingConnections(currentID) {
			if !visited[c.Target] {
				queue = append(queue, c.Target)
			}
		}
	}

	for _, n := range g.Nodes {
		if !visited[n.ID] {
			issues = append(issues, Issue{SeverityWarning, n.ID, "unreachable from any start or trigger node"})
		}
	}

	return issues
}

func lintCondition(n domain.Node, out []domain.Connection) []Issue {
	var issues []Issue
	if d, ok := n.Data.(*domain.ConditionData); !ok || d.Variable == "" {
		issues = append(issues, Issue{SeverityError, n.ID, "condition has no variable"})
	}
	if len(out) == 0 {
		return append(issues, Issue{SeverityError, n.ID, "condition has no outgoing connections"})
	}
	for _, c := range out {
		if c.BranchLabel() == "" {
			issues = append(issues, Issue{SeverityWarning, n.ID, fmt.Sprintf("connection '%s' has no branch label", c.ID)})
		}
	}
	return issues
}

// HasErrors reports whether any issue has error severity.
func HasErrors(issues []Issue) bool {
	for _, i := range issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Summary renders the issues as a sorted bullet list.
func Summary(issues []Issue) string {
	lines := make([]string, 0, len(issues))
	for _, i := range issues {
		lines = append(lines, i.String())
	}
	sort.Strings(lines)
	return fmt.Sprintf("found %d issues:\n- %s", len(issues), strings.Join(lines, "\n- "))
}
