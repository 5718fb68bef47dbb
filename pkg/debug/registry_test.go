package debug_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aretw0/botflow/pkg/adapters/memory"
	"github.com/aretw0/botflow/pkg/debug"
	"github.com/aretw0/botflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_OneSessionPerBot(t *testing.T) {
	r := debug.NewRegistry(nil)
	ctx := context.Background()

	first, err := r.CreateDebugSession(ctx, "bot-1", []byte(welcomeDoc), "u1")
	require.NoError(t, err)
	require.NoError(t, first.Start(ctx, "start", nil))

	second, err := r.CreateDebugSession(ctx, "bot-1", []byte(welcomeDoc), "u2")
	require.NoError(t, err)

	got, ok := r.GetDebugSession("bot-1")
	require.True(t, ok)
	assert.Same(t, second, got)
	assert.Equal(t, domain.StatusCreated, got.Status())
	assert.Equal(t, "u2", got.UserID())
	assert.Equal(t, "bot-1", got.Graph().BotID)

	_, ok = r.GetDebugSession("bot-2")
	assert.False(t, ok)
}

func TestRegistry_MalformedDocument(t *testing.T) {
	r := debug.NewRegistry(nil)
	_, err := r.CreateDebugSession(context.Background(), "bot-1", []byte(`{"nodes": []}`), "")
	assert.True(t, errors.Is(err, domain.ErrMalformedGraph))

	_, ok := r.GetDebugSession("bot-1")
	assert.False(t, ok, "a failed load installs no session")
}

func TestRegistry_BreakpointsOutliveSessions(t *testing.T) {
	r := debug.NewRegistry(nil)
	ctx := context.Background()

	_, err := r.CreateDebugSession(ctx, "bot-1", []byte(welcomeDoc), "")
	require.NoError(t, err)

	bps, err := r.SetBreakpoint(ctx, "bot-1", "welcome")
	require.NoError(t, err)
	assert.Equal(t, []string{"welcome"}, bps)

	s, err := r.CreateDebugSession(ctx, "bot-1", []byte(welcomeDoc), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"welcome"}, r.GetBreakpoints(ctx, "bot-1"), "new session keeps breakpoints")

	require.NoError(t, s.Start(ctx, "start", nil))
	assert.Equal(t, domain.StatusPaused, s.Status())
	assert.Equal(t, "welcome", s.CurrentNodeID())
	assert.Equal(t, 1, s.StepCount())
}

func TestRegistry_BreakpointOnUnknownNodeIsNoop(t *testing.T) {
	r := debug.NewRegistry(nil)
	ctx := context.Background()

	_, err := r.CreateDebugSession(ctx, "bot-1", []byte(welcomeDoc), "")
	require.NoError(t, err)
	_, err = r.SetBreakpoint(ctx, "bot-1", "welcome")
	require.NoError(t, err)

	bps, err := r.SetBreakpoint(ctx, "bot-1", "ghost")
	require.NoError(t, err)
	assert.Equal(t, []string{"welcome"}, bps)

	bps, err = r.RemoveBreakpoint(ctx, "bot-1", "ghost")
	require.NoError(t, err)
	assert.Equal(t, []string{"welcome"}, bps, "removing an unknown node returns the unchanged list")

	bps, err = r.RemoveBreakpoint(ctx, "bot-1", "welcome")
	require.NoError(t, err)
	assert.Empty(t, bps)
}

func TestRegistry_BreakpointWithoutGraph(t *testing.T) {
	r := debug.NewRegistry(nil)
	ctx := context.Background()

	bps, err := r.SetBreakpoint(ctx, "bot-9", "anything")
	require.NoError(t, err)
	assert.Equal(t, []string{"anything"}, bps)
}

func TestRegistry_PersistentBreakpoints(t *testing.T) {
	store := memory.NewBreakpointStore()
	ctx := context.Background()

	r1 := debug.NewRegistry(nil, debug.WithBreakpointStore(store))
	_, err := r1.SetBreakpoint(ctx, "bot-1", "welcome")
	require.NoError(t, err)

	stored, err := store.List(ctx, "bot-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"welcome"}, stored)

	// A fresh registry (process restart) hydrates from the store.
	r2 := debug.NewRegistry(nil, debug.WithBreakpointStore(store))
	s, err := r2.CreateDebugSession(ctx, "bot-1", []byte(welcomeDoc), "")
	require.NoError(t, err)
	require.NoError(t, s.Start(ctx, "start", nil))
	assert.Equal(t, domain.StatusPaused, s.Status())
}

// flakyStore fails the first List calls.
type flakyStore struct {
	*memory.BreakpointStore
	failures int
}

func (f *flakyStore) List(ctx context.Context, botID string) ([]string, error) {
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("connection refused")
	}
	return f.BreakpointStore.List(ctx, botID)
}

func TestRegistry_BreakpointHydrationRetries(t *testing.T) {
	ctx := context.Background()
	inner := memory.NewBreakpointStore()
	require.NoError(t, inner.Add(ctx, "bot-1", "welcome"))
	store := &flakyStore{BreakpointStore: inner, failures: 2}

	r := debug.NewRegistry(nil, debug.WithBreakpointStore(store))
	_, err := r.SetBreakpoint(ctx, "bot-1", "start")
	require.Error(t, err)
	assert.Empty(t, r.GetBreakpoints(ctx, "bot-1"), "nothing is written while the store is unreadable")

	stored, err := inner.List(ctx, "bot-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"welcome"}, stored)

	bps, err := r.SetBreakpoint(ctx, "bot-1", "start")
	require.NoError(t, err)
	assert.Equal(t, []string{"start", "welcome"}, bps)

	bps, err = r.RemoveBreakpoint(ctx, "bot-1", "welcome")
	require.NoError(t, err)
	assert.Equal(t, []string{"start"}, bps)
	stored, err = inner.List(ctx, "bot-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"start"}, stored)
}

func TestRegistry_CreateSessionFromStore(t *testing.T) {
	loader := memory.NewLoader(map[string]string{"bot-1": welcomeDoc})
	r := debug.NewRegistry(nil, debug.WithBotLoader(loader))
	ctx := context.Background()

	s, err := r.CreateSessionFromStore(ctx, "bot-1", "u1")
	require.NoError(t, err)
	assert.Equal(t, "bot-1", s.BotID())

	_, err = r.CreateSessionFromStore(ctx, "missing", "u1")
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	// The stored graph validates breakpoints before any session exists.
	r2 := debug.NewRegistry(nil, debug.WithBotLoader(loader))
	bps, err := r2.SetBreakpoint(ctx, "bot-1", "ghost")
	require.NoError(t, err)
	assert.Empty(t, bps)
}

func TestRegistry_Stats(t *testing.T) {
	r := debug.NewRegistry(nil)
	ctx := context.Background()

	a, err := r.CreateDebugSession(ctx, "a", []byte(welcomeDoc), "")
	require.NoError(t, err)
	_, err = r.CreateDebugSession(ctx, "b", []byte(welcomeDoc), "")
	require.NoError(t, err)
	require.NoError(t, a.Start(ctx, "start", nil))

	_, err = r.SetBreakpoint(ctx, "b", "welcome")
	require.NoError(t, err)
	_, err = r.SetBreakpoint(ctx, "b", "start")
	require.NoError(t, err)

	stats := r.GetDebugStats()
	assert.Equal(t, 2, stats.TotalSessions)
	assert.Equal(t, 1, stats.ActiveSessions)
	assert.Equal(t, 2, stats.TotalBreakpoints)
	assert.Equal(t, 1, stats.BotsWithBreakpoints)
	assert.Equal(t, 1, stats.SessionsByStatus[domain.StatusStopped])
	assert.Equal(t, 1, stats.SessionsByStatus[domain.StatusCreated])
}

func TestRegistry_DeleteAndReap(t *testing.T) {
	r := debug.NewRegistry(nil)
	ctx := context.Background()

	done, err := r.CreateDebugSession(ctx, "done", []byte(welcomeDoc), "")
	require.NoError(t, err)
	require.NoError(t, done.Start(ctx, "start", nil))
	_, err = r.CreateDebugSession(ctx, "idle", []byte(welcomeDoc), "")
	require.NoError(t, err)

	assert.Equal(t, 0, r.Reap(time.Hour), "recent sessions are kept")
	assert.Equal(t, 1, r.Reap(-time.Second), "only terminal sessions are reaped")

	_, ok := r.GetDebugSession("done")
	assert.False(t, ok)

	assert.True(t, r.DeleteDebugSession("idle"))
	assert.False(t, r.DeleteDebugSession("idle"))
}

func TestRegistry_Service(t *testing.T) {
	loader := memory.NewLoader(map[string]string{"bot-1": welcomeDoc})
	runs := memory.NewRunStore()
	r := debug.NewRegistry(nil, debug.WithBotLoader(loader), debug.WithRunArchive(runs))
	ctx := context.Background()

	_, err := r.Status(ctx, "bot-1")
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	snap, err := r.CreateSession(ctx, "bot-1", "u1", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCreated, snap.Status)
	assert.Equal(t, "guest", snap.Variables["name"])

	snap, err = r.StepOver(ctx, "bot-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaused, snap.Status)
	assert.Equal(t, "welcome", snap.CurrentNodeID)

	snap, err = r.SetVariable(ctx, "bot-1", "name", "Caio")
	require.NoError(t, err)
	assert.Equal(t, "Caio", snap.Variables["name"])

	snap, err = r.Pause(ctx, "bot-1")
	assert.True(t, errors.Is(err, domain.ErrInvalidTransition))
	require.NotNil(t, snap, "the snapshot is returned alongside transition errors")
	assert.Equal(t, domain.StatusPaused, snap.Status)

	snap, err = r.Resume(ctx, "bot-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusStopped, snap.Status)
	assert.Equal(t, "Hello Caio", snap.History[1].Effects[0].Text)

	ids, err := r.Runs(ctx, "bot-1")
	require.NoError(t, err)
	require.Len(t, ids, 1)
	archived, err := r.Run(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, snap.RunID, archived.RunID)

	g, err := r.Graph(ctx, "bot-1")
	require.NoError(t, err)
	assert.Len(t, g.Nodes, 2)

	require.NoError(t, r.DropSession(ctx, "bot-1"))
	assert.True(t, errors.Is(r.DropSession(ctx, "bot-1"), domain.ErrNotFound))
}
