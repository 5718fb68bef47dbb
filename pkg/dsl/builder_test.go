package dsl

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/botflow/internal/runtime"
	"github.com/aretw0/botflow/pkg/domain"
)

func greeter() *Builder {
	b := New("greeter").Name("Greeter")
	b.Var("name", "", "string")

	b.Command("start", "/start").To("check")
	b.Condition("check", "name", "not_empty", nil).
		Label("Has name?").
		Then("hello").
		Else("ask")
	b.Message("hello", "Hello {{name}}!")
	b.Message("ask", "What is your name?")
	return b
}

func TestBuilder_Build(t *testing.T) {
	g, err := greeter().Build()
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}

	if g.BotID != "greeter" {
		t.Errorf("Expected bot id 'greeter', got '%s'", g.BotID)
	}
	if len(g.Nodes) != 4 {
		t.Fatalf("Expected 4 nodes, got %d", len(g.Nodes))
	}
	if len(g.Connections) != 3 {
		t.Fatalf("Expected 3 connections, got %d", len(g.Connections))
	}

	entry, ok := g.EntryNode()
	if !ok || entry.ID != "start" {
		t.Fatalf("Expected entry node 'start', got %v", entry)
	}
	cmd, ok := entry.Data.(*domain.CommandData)
	if !ok || cmd.Command != "/start" {
		t.Errorf("Expected command data '/start', got %#v", entry.Data)
	}

	check, _ := g.Node("check")
	cond, ok := check.Data.(*domain.ConditionData)
	if !ok {
		t.Fatalf("Expected condition data, got %T", check.Data)
	}
	if cond.Label != "Has name?" || cond.Operator != "not_empty" {
		t.Errorf("Unexpected condition data %#v", cond)
	}

	out := g.OutgoingConnections("check")
	if len(out) != 2 || out[0].Label != LabelTrue || out[1].Target != "ask" {
		t.Errorf("Unexpected branches %#v", out)
	}
	if g.Variables["name"].Type != "string" {
		t.Errorf("Expected variable 'name' of type string, got %#v", g.Variables["name"])
	}
}

func TestBuilder_RunsOnEngine(t *testing.T) {
	g, err := greeter().Build()
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}

	engine := runtime.NewEngine()
	ctx := context.Background()
	scope := g.Defaults()

	var texts []string
	for node := "start"; node != ""; {
		res, err := engine.Step(ctx, g, node, scope)
		if err != nil {
			t.Fatalf("Step(%s) failed: %v", node, err)
		}
		for _, e := range res.Effects {
			texts = append(texts, e.Text)
		}
		node = res.Next
	}

	if len(texts) != 1 || texts[0] != "What is your name?" {
		t.Errorf("Expected the empty name to ask, got %v", texts)
	}
}

func TestBuilder_Errors(t *testing.T) {
	t.Run("Duplicate node", func(t *testing.T) {
		b := New("dup")
		b.Start("a")
		b.Message("a", "again")
		if _, err := b.Build(); err == nil {
			t.Error("Expected duplicate node error")
		}
	})

	t.Run("Unknown target", func(t *testing.T) {
		b := New("dangling")
		b.Start("a").To("ghost")
		if _, err := b.Document(); err == nil {
			t.Error("Expected unknown target error")
		}
	})

	t.Run("Empty graph", func(t *testing.T) {
		_, err := New("empty").Build()
		if !errors.Is(err, domain.ErrMalformedGraph) {
			t.Errorf("Expected ErrMalformedGraph, got %v", err)
		}
	})
}

func TestBuilder_Loader(t *testing.T) {
	loader, err := greeter().Loader()
	if err != nil {
		t.Fatalf("Loader() failed: %v", err)
	}

	bots, err := loader.ListBots(context.Background())
	if err != nil || len(bots) != 1 || bots[0] != "greeter" {
		t.Fatalf("Expected [greeter], got %v (%v)", bots, err)
	}
	if _, err := loader.GetBotDocument(context.Background(), "greeter"); err != nil {
		t.Errorf("GetBotDocument failed: %v", err)
	}
}

func TestNodeBuilder_LabelOnStart(t *testing.T) {
	b := New("labels")
	b.Start("s").Label("Begin").To("m")
	b.Message("m", "hi")

	g, err := b.Build()
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}
	n, _ := g.Node("s")
	if n.Raw["label"] != "Begin" {
		t.Errorf("Expected raw label 'Begin', got %v", n.Raw["label"])
	}
}
