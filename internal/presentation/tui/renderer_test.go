package tui

import (
	"bytes"
	"testing"

	"github.com/aretw0/botflow/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestSnapshotMarkdown(t *testing.T) {
	snap := &domain.Snapshot{
		BotID:         "greeter",
		Status:        domain.StatusError,
		CurrentNodeID: "check",
		StepCount:     2,
		Variables:     domain.Scope{"name": "Ana", "age": 30},
		History: []domain.HistoryEntry{
			{NodeID: "start"},
			{NodeID: "welcome", Effects: []domain.Effect{domain.SendMessage("welcome", "Hi Ana")}},
		},
		LastError: "node 'check': no connection for condition result true",
		ErrorKind: domain.ErrorKind(&domain.BranchError{Result: new(bool)}),
	}

	md := SnapshotMarkdown(snap)
	assert.Contains(t, md, "## greeter · error")
	assert.Contains(t, md, "**Current node:** `check`")
	assert.Contains(t, md, "> Hi Ana")
	assert.Contains(t, md, "| `age` | 30 |\n| `name` | Ana |")
	assert.Contains(t, md, "`start` → `welcome`")
	assert.Contains(t, md, "UnreachableBranch")
}

func TestPlainRenderer(t *testing.T) {
	out, err := PlainRenderer("# x")
	assert.NoError(t, err)
	assert.Equal(t, "# x", out)
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf)
	assert.Contains(t, buf.String(), "|_.__/")
}
