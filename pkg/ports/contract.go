package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/botflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunBreakpointStoreContract runs a suite of tests to verify that a BreakpointStore implementation
// adheres to the defined interface contract.
func RunBreakpointStoreContract(t *testing.T, store BreakpointStore) {
	ctx := context.Background()
	botID := "contract-bot-" + time.Now().Format("20060102150405")

	t.Run("Add and List", func(t *testing.T) {
		require.NoError(t, store.Add(ctx, botID, "welcome"))
		require.NoError(t, store.Add(ctx, botID, "ask"))
		require.NoError(t, store.Add(ctx, botID, "welcome"), "Add should be idempotent")

		ids, err := store.List(ctx, botID)
		require.NoError(t, err)
		assert.Equal(t, []string{"ask", "welcome"}, ids)
	})

	t.Run("ListBots", func(t *testing.T) {
		bots, err := store.ListBots(ctx)
		require.NoError(t, err)
		assert.Contains(t, bots, botID)
	})

	t.Run("Remove", func(t *testing.T) {
		require.NoError(t, store.Remove(ctx, botID, "ask"))
		require.NoError(t, store.Remove(ctx, botID, "never-set"), "Remove of an absent id should be a no-op")

		ids, err := store.List(ctx, botID)
		require.NoError(t, err)
		assert.Equal(t, []string{"welcome"}, ids)
	})

	t.Run("Empty set drops the bot", func(t *testing.T) {
		require.NoError(t, store.Remove(ctx, botID, "welcome"))

		ids, err := store.List(ctx, botID)
		require.NoError(t, err)
		assert.Empty(t, ids)

		bots, err := store.ListBots(ctx)
		require.NoError(t, err)
		assert.NotContains(t, bots, botID)
	})

	t.Run("Unknown bot", func(t *testing.T) {
		ids, err := store.List(ctx, "unknown-"+botID)
		require.NoError(t, err)
		assert.Empty(t, ids)
	})
}

// RunRunStoreContract runs a suite of tests to verify that a RunStore implementation
// adheres to the defined interface contract.
func RunRunStoreContract(t *testing.T, store RunStore) {
	ctx := context.Background()
	botID := "contract-bot-" + time.Now().Format("20060102150405")
	started := time.Now().Add(-time.Second).UTC().Truncate(time.Millisecond)

	newSnap := func(runID string) *domain.Snapshot {
		return &domain.Snapshot{
			BotID:         botID,
			RunID:         runID,
			Status:        domain.StatusStopped,
			CurrentNodeID: "welcome",
			Variables:     domain.Scope{"name": "guest"},
			History: []domain.HistoryEntry{
				{NodeID: "start", Kind: domain.KindStart, StepIndex: 0, Timestamp: started},
				{NodeID: "welcome", Kind: domain.KindSendMessage, StepIndex: 1, Timestamp: started,
					Effects: []domain.Effect{domain.SendMessage("welcome", "Hi guest")}},
			},
			StepCount: 2,
			StartedAt: &started,
		}
	}

	t.Run("Save and Load", func(t *testing.T) {
		snap := newSnap(botID + "-run-1")
		require.NoError(t, store.Save(ctx, snap))

		loaded, err := store.Load(ctx, snap.RunID)
		require.NoError(t, err)
		assert.Equal(t, snap.BotID, loaded.BotID)
		assert.Equal(t, domain.StatusStopped, loaded.Status)
		assert.Equal(t, 2, loaded.StepCount)
		assert.Equal(t, "guest", loaded.Variables["name"])
		require.Len(t, loaded.History, 2)
		assert.Equal(t, "welcome", loaded.History[1].NodeID)
		require.Len(t, loaded.History[1].Effects, 1)
		assert.Equal(t, "Hi guest", loaded.History[1].Effects[0].Text)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+botID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("List", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, newSnap(botID+"-run-2")))

		runs, err := store.List(ctx, botID)
		require.NoError(t, err)
		assert.Contains(t, runs, botID+"-run-1")
		assert.Contains(t, runs, botID+"-run-2")
	})

	t.Run("Delete", func(t *testing.T) {
		runID := botID + "-run-1"
		require.NoError(t, store.Delete(ctx, runID))

		_, err := store.Load(ctx, runID)
		assert.ErrorIs(t, err, domain.ErrNotFound, "Load after Delete should return ErrNotFound")

		runs, err := store.List(ctx, botID)
		require.NoError(t, err)
		assert.NotContains(t, runs, runID)
	})
}
