package tests

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/botflow/pkg/domain"
	"github.com/aretw0/botflow/pkg/ports"
)

// BotLoaderContractTest is a reusable test suite that verifies if an adapter complies with ports.BotLoader.
func BotLoaderContractTest(t *testing.T, loader ports.BotLoader, setupData map[string][]byte) {
	t.Helper()
	ctx := context.Background()

	// 1. Test GetBotDocument (Success)
	t.Run("GetBotDocument_Success", func(t *testing.T) {
		for id, expectedContent := range setupData {
			content, err := loader.GetBotDocument(ctx, id)
			if err != nil {
				t.Fatalf("unexpected error getting bot %s: %v", id, err)
			}
			if string(content) != string(expectedContent) {
				t.Errorf("content mismatch for %s. got %q, want %q", id, content, expectedContent)
			}
		}
	})

	// 2. Test GetBotDocument (NotFound)
	t.Run("GetBotDocument_NotFound", func(t *testing.T) {
		_, err := loader.GetBotDocument(ctx, "non-existent-bot")
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound for non-existent bot, got %v", err)
		}
	})

	// 3. Test ListBots
	t.Run("ListBots", func(t *testing.T) {
		bots, err := loader.ListBots(ctx)
		if err != nil {
			t.Fatalf("unexpected error listing bots: %v", err)
		}

		if len(bots) != len(setupData) {
			t.Errorf("expected %d bots, got %d", len(setupData), len(bots))
		}

		lookup := make(map[string]bool)
		for _, id := range bots {
			lookup[id] = true
		}

		for id := range setupData {
			if !lookup[id] {
				t.Errorf("bot %s missing from list", id)
			}
		}
	})
}
