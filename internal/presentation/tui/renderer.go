package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/botflow/pkg/domain"
	"github.com/charmbracelet/glamour"
)

// NewRenderer returns a function that renders markdown using glamour.
// A nil renderer (no TTY) returns the markdown unchanged.
func NewRenderer() func(string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(), // Automatically detect light/dark background
	)
	if err != nil {
		return PlainRenderer
	}

	return func(markdown string) (string, error) {
		return r.Render(markdown)
	}
}

// PlainRenderer returns markdown as is, for pipes and tests.
func PlainRenderer(markdown string) (string, error) {
	return markdown, nil
}

// SnapshotMarkdown renders a session snapshot as a markdown report:
// status line, the messages the run sent, variables and the executed path.
func SnapshotMarkdown(snap *domain.Snapshot) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## %s · %s\n\n", snap.BotID, snap.Status)
	fmt.Fprintf(&sb, "- **Steps:** %d\n", snap.StepCount)
	if snap.CurrentNodeID != "" {
		fmt.Fprintf(&sb, "- **Current node:** `%s`\n", snap.CurrentNodeID)
	}
	fmt.Fprintf(&sb, "- **Time:** %s\n", snap.ExecutionTime)
	if snap.LastError != "" {
		fmt.Fprintf(&sb, "- **Error (%s):** %s\n", snap.ErrorKind, snap.LastError)
	}

	var messages []string
	for _, h := range snap.History {
		for _, e := range h.Effects {
			if e.Type == domain.EffectSendMessage {
				messages = append(messages, e.Text)
			}
		}
	}
	if len(messages) > 0 {
		sb.WriteString("\n### Messages\n\n")
		for _, m := range messages {
			fmt.Fprintf(&sb, "> %s\n>\n", strings.ReplaceAll(m, "\n", "\n> "))
		}
	}

	if len(snap.Variables) > 0 {
		sb.WriteString("\n### Variables\n\n| Name | Value |\n|---|---|\n")
		for _, k := range sortedKeys(snap.Variables) {
			fmt.Fprintf(&sb, "| `%s` | %v |\n", k, snap.Variables[k])
		}
	}

	if len(snap.History) > 0 {
		sb.WriteString("\n### Path\n\n")
		ids := make([]string, 0, len(snap.History))
		for _, h := range snap.History {
			ids = append(ids, "`"+h.NodeID+"`")
		}
		sb.WriteString(strings.Join(ids, " → "))
		sb.WriteString("\n")
	}
	return sb.String()
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
