package debug_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/botflow/internal/compiler"
	"github.com/aretw0/botflow/pkg/adapters/memory"
	"github.com/aretw0/botflow/pkg/debug"
	"github.com/aretw0/botflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const welcomeDoc = `{
	"nodes": [
		{"id": "start", "type": "start"},
		{"id": "welcome", "type": "action-send-message", "data": {"text": "Hello {{name}}"}}
	],
	"connections": [{"id": "c1", "source": "start", "target": "welcome"}],
	"variables": {"name": {"defaultValue": "guest"}}
}`

// start -> greet -> ask -> check -(true)-> done, -(false)-> greet
const loopDoc = `{
	"nodes": [
		{"id": "start", "type": "start"},
		{"id": "greet", "type": "action-send-message", "data": {"text": "round {{round}}"}},
		{"id": "bump", "type": "set-variable", "data": {"variable": "round", "value": "{{round}}1"}},
		{"id": "check", "type": "condition", "data": {"variable": "round", "operator": "==", "value": "0111"}},
		{"id": "done", "type": "action-send-message", "data": {"text": "bye"}}
	],
	"connections": [
		{"id": "c1", "source": "start", "target": "greet"},
		{"id": "c2", "source": "greet", "target": "bump"},
		{"id": "c3", "source": "bump", "target": "check"},
		{"id": "c4", "source": "check", "target": "done", "label": "true"},
		{"id": "c5", "source": "check", "target": "greet", "label": "false"}
	],
	"variables": {"round": {"defaultValue": "0"}}
}`

const cycleDoc = `{
	"nodes": [
		{"id": "start", "type": "start"},
		{"id": "a", "type": "action-send-message", "data": {"text": "ping"}},
		{"id": "b", "type": "action-send-message", "data": {"text": "pong"}}
	],
	"connections": [
		{"id": "c1", "source": "start", "target": "a"},
		{"id": "c2", "source": "a", "target": "b"},
		{"id": "c3", "source": "b", "target": "a"}
	]
}`

func newSession(t *testing.T, doc string, opts ...debug.Option) *debug.Session {
	t.Helper()
	g, err := compiler.NewParser().Parse([]byte(doc))
	require.NoError(t, err)
	return debug.NewSession("bot-1", g, nil, opts...)
}

func historyIDs(s *debug.Session) []string {
	var ids []string
	for _, h := range s.History() {
		ids = append(ids, h.NodeID)
	}
	return ids
}

func assertHistoryConsistent(t *testing.T, s *debug.Session) {
	t.Helper()
	history := s.History()
	require.Equal(t, s.StepCount(), len(history), "history length must equal stepCount")
	for i, h := range history {
		assert.Equal(t, i, h.StepIndex)
	}
}

func TestSession_RunsToCompletion(t *testing.T) {
	sink := memory.NewRecorder()
	s := newSession(t, welcomeDoc, debug.WithEffectSink(sink))

	require.NoError(t, s.Start(context.Background(), "start", nil))

	assert.Equal(t, domain.StatusStopped, s.Status())
	assert.Equal(t, 2, s.StepCount())
	assert.Equal(t, []string{"start", "welcome"}, historyIDs(s))
	assert.Equal(t, "welcome", s.CurrentNodeID(), "a terminal step keeps the last executed node")
	assert.Equal(t, []string{"Hello guest"}, sink.Messages("bot-1"))

	snap := s.Snapshot()
	require.NotNil(t, snap.StoppedAt)
	require.NotNil(t, snap.StartedAt)
	assert.NotEmpty(t, snap.RunID)
	require.Len(t, snap.History[1].Effects, 1)
	assert.Equal(t, domain.KindSendMessage, snap.History[1].Kind)
	assertHistoryConsistent(t, s)
}

func TestSession_StartSetsTriggerBeforeFirstStep(t *testing.T) {
	var statuses []domain.ExecutionStatus
	var atRunning struct {
		node  string
		steps int
	}

	var s *debug.Session
	s = newSession(t, welcomeDoc, debug.WithLifecycleHooks(domain.LifecycleHooks{
		OnStatusChange: func(ctx context.Context, e *domain.StatusEvent) {
			statuses = append(statuses, e.To)
			if e.To == domain.StatusRunning {
				atRunning.node = s.CurrentNodeID()
				atRunning.steps = s.StepCount()
			}
		},
	}))

	require.NoError(t, s.Start(context.Background(), "start", map[string]any{"name": "Ana"}))

	assert.Equal(t, "start", atRunning.node)
	assert.Equal(t, 0, atRunning.steps)
	assert.Equal(t, []domain.ExecutionStatus{domain.StatusRunning, domain.StatusStopped}, statuses)
	assert.Equal(t, "Ana", s.Variables()["name"], "input is merged over defaults")
}

func TestSession_BreakpointPauses(t *testing.T) {
	s := newSession(t, welcomeDoc, debug.WithBreakpoints(debug.NewBreakpointSet("welcome")))

	require.NoError(t, s.Start(context.Background(), "start", nil))

	assert.Equal(t, domain.StatusPaused, s.Status())
	assert.Equal(t, "welcome", s.CurrentNodeID())
	assert.Equal(t, 1, s.StepCount())

	// Resuming executes the breakpoint node instead of pausing on it again.
	require.NoError(t, s.Resume(context.Background()))
	assert.Equal(t, domain.StatusStopped, s.Status())
	assert.Equal(t, 2, s.StepCount())
}

func TestSession_BreakpointOnEveryVisit(t *testing.T) {
	s := newSession(t, loopDoc, debug.WithBreakpoints(debug.NewBreakpointSet("greet")))
	ctx := context.Background()

	require.NoError(t, s.Start(ctx, "", nil))
	visits := 0
	for s.Status() == domain.StatusPaused {
		assert.Equal(t, "greet", s.CurrentNodeID())
		visits++
		require.NoError(t, s.Resume(ctx))
	}

	assert.Equal(t, 3, visits, "one pause per visit of greet")
	assert.Equal(t, domain.StatusStopped, s.Status())
	assertHistoryConsistent(t, s)
}

func TestSession_BreakpointOnTrigger(t *testing.T) {
	s := newSession(t, welcomeDoc, debug.WithBreakpoints(debug.NewBreakpointSet("start")))

	require.NoError(t, s.Start(context.Background(), "start", nil))
	assert.Equal(t, domain.StatusPaused, s.Status())
	assert.Equal(t, "start", s.CurrentNodeID())
	assert.Equal(t, 0, s.StepCount())

	require.NoError(t, s.Resume(context.Background()))
	assert.Equal(t, domain.StatusStopped, s.Status())
	assert.Equal(t, 2, s.StepCount())
}

func TestSession_StepOver(t *testing.T) {
	s := newSession(t, loopDoc)
	ctx := context.Background()

	// From created the run is initialised at the entry node.
	require.NoError(t, s.StepOver(ctx))
	assert.Equal(t, domain.StatusPaused, s.Status())
	assert.Equal(t, 1, s.StepCount())
	assert.Equal(t, "greet", s.CurrentNodeID())

	for i := 2; s.Status() == domain.StatusPaused; i++ {
		require.NoError(t, s.StepOver(ctx))
		assert.Equal(t, i, s.StepCount(), "stepOver adds exactly one step")
		assertHistoryConsistent(t, s)
	}

	assert.Equal(t, domain.StatusStopped, s.Status())
	assert.Equal(t, "done", s.CurrentNodeID())

	err := s.StepOver(ctx)
	assert.True(t, errors.Is(err, domain.ErrInvalidTransition))
}

func TestSession_PauseResumeRoundTrip(t *testing.T) {
	ctx := context.Background()

	reference := newSession(t, loopDoc)
	require.NoError(t, reference.Start(ctx, "start", nil))
	require.Equal(t, domain.StatusStopped, reference.Status())

	var s *debug.Session
	var pausedAt string
	paused := false
	s = newSession(t, loopDoc, debug.WithLifecycleHooks(domain.LifecycleHooks{
		OnNodeLeave: func(ctx context.Context, e *domain.NodeEvent) {
			if !paused && e.NodeID == "bump" {
				paused = true
				require.NoError(t, s.Pause(ctx))
				pausedAt = s.CurrentNodeID()
			}
		},
	}))

	require.NoError(t, s.Start(ctx, "start", nil))
	require.Equal(t, domain.StatusPaused, s.Status())
	assert.Equal(t, "check", pausedAt)
	assert.Equal(t, pausedAt, s.CurrentNodeID(), "pause does not advance")

	require.NoError(t, s.Resume(ctx))
	assert.Equal(t, domain.StatusStopped, s.Status())
	assert.Equal(t, historyIDs(reference), historyIDs(s))
	assert.Equal(t, reference.Variables(), s.Variables())
}

func TestSession_SetVariableVisibleToNextNode(t *testing.T) {
	sink := memory.NewRecorder()
	s := newSession(t, welcomeDoc,
		debug.WithEffectSink(sink),
		debug.WithBreakpoints(debug.NewBreakpointSet("welcome")),
	)
	ctx := context.Background()

	require.NoError(t, s.Start(ctx, "start", nil))
	require.Equal(t, domain.StatusPaused, s.Status())

	require.NoError(t, s.SetVariable(ctx, "name", "Bia"))
	assert.Equal(t, "Bia", s.Variables()["name"])

	require.NoError(t, s.Resume(ctx))
	assert.Equal(t, []string{"Hello Bia"}, sink.Messages("bot-1"))
}

func TestSession_SetVariableCoercesDeclaredType(t *testing.T) {
	s := newSession(t, `{
		"nodes": [{"id": "start", "type": "start"}],
		"variables": {"age": {"defaultValue": 0, "type": "number"}}
	}`)
	ctx := context.Background()

	require.NoError(t, s.SetVariable(ctx, "age", "42"))
	assert.Equal(t, float64(42), s.Variables()["age"])

	require.NoError(t, s.SetVariable(ctx, "age", "not a number"))
	assert.Equal(t, "not a number", s.Variables()["age"], "live patching keeps the raw value")

	assert.Error(t, s.SetVariable(ctx, "", 1))
}

func TestSession_StepLimit(t *testing.T) {
	s := newSession(t, cycleDoc, debug.WithMaxSteps(50))

	err := s.Start(context.Background(), "start", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrStepLimitExceeded))

	assert.Equal(t, domain.StatusError, s.Status())
	assert.Equal(t, 50, s.StepCount())
	assertHistoryConsistent(t, s)

	snap := s.Snapshot()
	assert.Equal(t, "StepLimitExceeded", snap.ErrorKind)
	assert.NotNil(t, snap.StoppedAt)

	// error is terminal for the session instance
	assert.True(t, errors.Is(s.Start(context.Background(), "start", nil), domain.ErrInvalidTransition))
	assert.True(t, errors.Is(s.Stop(context.Background()), domain.ErrInvalidTransition))
}

func TestSession_DefaultStepCeiling(t *testing.T) {
	s := newSession(t, cycleDoc)

	err := s.Start(context.Background(), "", nil)
	assert.True(t, errors.Is(err, domain.ErrStepLimitExceeded))
	assert.Equal(t, debug.DefaultMaxSteps, s.StepCount())
	assert.Equal(t, domain.StatusError, s.Status())
}

func TestSession_GraphErrorMovesToError(t *testing.T) {
	s := newSession(t, `{
		"nodes": [
			{"id": "start", "type": "start"},
			{"id": "a", "type": "action-send-message"},
			{"id": "b", "type": "action-send-message"}
		],
		"connections": [
			{"id": "c1", "source": "start", "target": "a"},
			{"id": "c2", "source": "start", "target": "b"}
		]
	}`)

	err := s.Start(context.Background(), "start", nil)
	assert.True(t, errors.Is(err, domain.ErrAmbiguousBranch))
	assert.Equal(t, domain.StatusError, s.Status())
	assert.Equal(t, 0, s.StepCount())
	assert.Equal(t, "AmbiguousBranch", s.Snapshot().ErrorKind)
}

func TestSession_UnknownKindStops(t *testing.T) {
	s := newSession(t, `{
		"nodes": [
			{"id": "start", "type": "start"},
			{"id": "img", "type": "action-send-image"},
			{"id": "after", "type": "action-send-message"}
		],
		"connections": [
			{"id": "c1", "source": "start", "target": "img"},
			{"id": "c2", "source": "img", "target": "after"}
		]
	}`)

	require.NoError(t, s.Start(context.Background(), "start", nil))
	assert.Equal(t, domain.StatusStopped, s.Status())
	assert.Equal(t, []string{"start", "img"}, historyIDs(s))
}

func TestSession_InvalidTransitions(t *testing.T) {
	s := newSession(t, welcomeDoc)
	ctx := context.Background()

	tests := []struct {
		name string
		op   func() error
	}{
		{"Pause from created", func() error { return s.Pause(ctx) }},
		{"Resume from created", func() error { return s.Resume(ctx) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.op()
			var te *domain.TransitionError
			require.True(t, errors.As(err, &te))
			assert.Equal(t, domain.StatusCreated, te.Status)
			assert.Equal(t, domain.StatusCreated, s.Status(), "state unchanged")
		})
	}

	require.NoError(t, s.Start(ctx, "start", nil))
	assert.True(t, errors.Is(s.Pause(ctx), domain.ErrInvalidTransition))
	assert.True(t, errors.Is(s.Resume(ctx), domain.ErrInvalidTransition))

	// Unknown trigger leaves the session untouched.
	err := s.Start(ctx, "ghost", nil)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.Equal(t, domain.StatusStopped, s.Status())
}

func TestSession_StopIsIdempotent(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	s := newSession(t, welcomeDoc,
		debug.WithClock(clock),
		debug.WithBreakpoints(debug.NewBreakpointSet("welcome")),
	)
	ctx := context.Background()

	require.NoError(t, s.Start(ctx, "start", nil))
	now = now.Add(3 * time.Second)
	assert.Equal(t, 3*time.Second, s.ExecutionTime())

	require.NoError(t, s.Stop(ctx))
	stoppedAt := *s.Snapshot().StoppedAt

	now = now.Add(time.Minute)
	require.NoError(t, s.Stop(ctx))
	assert.Equal(t, stoppedAt, *s.Snapshot().StoppedAt, "stoppedAt is set once")
	assert.Equal(t, 3*time.Second, s.ExecutionTime())

	// A stopped session can start a fresh run.
	require.NoError(t, s.Start(ctx, "start", nil))
	assert.Equal(t, 1, s.StepCount())
	assert.Nil(t, s.Snapshot().StoppedAt)
}

func TestSession_StopFromCreated(t *testing.T) {
	s := newSession(t, welcomeDoc)
	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, domain.StatusStopped, s.Status())
	assert.Zero(t, s.ExecutionTime())
}

func TestSession_StopHaltsDrive(t *testing.T) {
	var s *debug.Session
	s = newSession(t, cycleDoc, debug.WithLifecycleHooks(domain.LifecycleHooks{
		OnNodeLeave: func(ctx context.Context, e *domain.NodeEvent) {
			if s.StepCount() == 7 {
				_ = s.Stop(ctx)
			}
		},
	}))

	require.NoError(t, s.Start(context.Background(), "start", nil))
	assert.Equal(t, domain.StatusStopped, s.Status())
	assert.Equal(t, 7, s.StepCount(), "no step runs after stop")
}

func TestSession_ContextCancelPauses(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var s *debug.Session
	s = newSession(t, cycleDoc, debug.WithLifecycleHooks(domain.LifecycleHooks{
		OnNodeLeave: func(_ context.Context, e *domain.NodeEvent) {
			if s.StepCount() == 3 {
				cancel()
			}
		},
	}))

	err := s.Start(ctx, "start", nil)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, domain.StatusPaused, s.Status())
	assert.Equal(t, 3, s.StepCount())
}

func TestSession_ConcurrentResumeDoesNotDoubleDrive(t *testing.T) {
	s := newSession(t, cycleDoc,
		debug.WithMaxSteps(2000),
		debug.WithBreakpoints(debug.NewBreakpointSet("start")),
	)
	ctx := context.Background()
	require.NoError(t, s.Start(ctx, "start", nil))
	require.Equal(t, domain.StatusPaused, s.Status())

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Resume(ctx)
			if !errors.Is(err, domain.ErrInvalidTransition) {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.GreaterOrEqual(t, accepted, 1)
	assert.Equal(t, domain.StatusError, s.Status())
	assert.Equal(t, 2000, s.StepCount())
	assertHistoryConsistent(t, s)
}

func TestSession_ArchivesFinishedRuns(t *testing.T) {
	runs := memory.NewRunStore()
	ids := []string{"run-1", "run-2"}
	s := newSession(t, welcomeDoc,
		debug.WithRunStore(runs),
		debug.WithRunIDGenerator(func() string {
			id := ids[0]
			ids = ids[1:]
			return id
		}),
	)
	ctx := context.Background()

	require.NoError(t, s.Start(ctx, "start", nil))
	require.NoError(t, s.Start(ctx, "start", nil))

	archived, err := runs.List(ctx, "bot-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"run-1", "run-2"}, archived)

	snap, err := runs.Load(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusStopped, snap.Status)
	assert.Equal(t, 2, snap.StepCount)
}
