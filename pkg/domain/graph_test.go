package domain_test

import (
	"errors"
	"testing"

	"github.com/aretw0/botflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleGraph() *domain.Graph {
	g := &domain.Graph{
		Nodes: []domain.Node{
			{ID: "start", Kind: domain.KindStart},
			{ID: "cmd-help", Kind: domain.KindTriggerCommand, Data: &domain.CommandData{Command: "/help"}},
			{ID: "hi", Kind: domain.KindTriggerMessage, Data: &domain.MessageTriggerData{Text: "hello"}},
			{ID: "any", Kind: domain.KindTriggerMessage, Data: &domain.MessageTriggerData{}},
			{ID: "exact", Kind: domain.KindTriggerMessage, Data: &domain.MessageTriggerData{Text: "PING", MatchType: domain.MatchExact}},
			{ID: "welcome", Kind: domain.KindSendMessage, Data: &domain.SendMessageData{Text: "Hi"}},
			{ID: "bye", Kind: domain.KindSendMessage, Data: &domain.SendMessageData{Text: "Bye"}},
		},
		Connections: []domain.Connection{
			{ID: "c1", Source: "start", Target: "welcome"},
			{ID: "c2", Source: "start", Target: "bye", Label: "second"},
		},
		Variables: map[string]domain.Variable{
			"name": {DefaultValue: "guest"},
		},
	}
	g.Index()
	return g
}

func TestGraph_OutgoingConnections_Order(t *testing.T) {
	g := sampleGraph()

	out := g.OutgoingConnections("start")
	require.Len(t, out, 2)
	assert.Equal(t, "c1", out[0].ID)
	assert.Equal(t, "c2", out[1].ID)
	assert.Empty(t, g.OutgoingConnections("welcome"))
}

func TestGraph_FindTrigger(t *testing.T) {
	g := sampleGraph()

	tests := []struct {
		name   string
		kind   domain.NodeKind
		key    string
		wantID string
		found  bool
	}{
		{"Command with slash", domain.KindTriggerCommand, "/help", "cmd-help", true},
		{"Command without slash", domain.KindTriggerCommand, "HELP", "cmd-help", true},
		{"Command with bot suffix and args", domain.KindTriggerCommand, "/help@my_bot now", "cmd-help", true},
		{"Unknown command", domain.KindTriggerCommand, "/nope", "", false},
		{"Contains match", domain.KindTriggerMessage, "well Hello there", "hi", true},
		{"Exact match", domain.KindTriggerMessage, " ping ", "exact", true},
		{"Fallback to catch-all", domain.KindTriggerMessage, "something else", "any", true},
		{"Start", domain.KindStart, "", "start", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node, ok := g.FindTrigger(tt.kind, tt.key)
			assert.Equal(t, tt.found, ok)
			if tt.found {
				require.NotNil(t, node)
				assert.Equal(t, tt.wantID, node.ID)
			}
		})
	}
}

func TestGraph_EntryAndDefaults(t *testing.T) {
	g := sampleGraph()

	entry, ok := g.EntryNode()
	require.True(t, ok)
	assert.Equal(t, "start", entry.ID)

	scope := g.Defaults()
	assert.Equal(t, "guest", scope["name"])

	scope["name"] = "changed"
	assert.Equal(t, "guest", g.Defaults()["name"], "Defaults must return a fresh scope")
}

func TestBranchLabel(t *testing.T) {
	assert.Equal(t, "yes", domain.Connection{Label: "yes", SourceHandle: "true"}.BranchLabel())
	assert.Equal(t, "true", domain.Connection{SourceHandle: "true"}.BranchLabel())
}

func TestErrorTaxonomy(t *testing.T) {
	result := false
	tests := []struct {
		err  error
		want string
	}{
		{&domain.TransitionError{Op: "pause", Status: domain.StatusStopped}, "InvalidTransition"},
		{&domain.GraphError{Reason: "no entry"}, "MalformedGraph"},
		{&domain.BranchError{NodeID: "x", Outgoing: 2}, "AmbiguousBranch"},
		{&domain.BranchError{NodeID: "x", Result: &result}, "UnreachableBranch"},
		{&domain.StepLimitError{Limit: 10}, "StepLimitExceeded"},
		{domain.ErrNotFound, "NotFound"},
		{errors.New("boom"), "Internal"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, domain.ErrorKind(tt.err), tt.err.Error())
	}

	assert.True(t, domain.IsGraphFailure(&domain.StepLimitError{}))
	assert.False(t, domain.IsGraphFailure(&domain.TransitionError{}))
}
