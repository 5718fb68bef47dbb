package http_test

import (
	"context"
	"testing"

	botflowhttp "github.com/aretw0/botflow/pkg/adapters/http"
	"github.com/aretw0/botflow/pkg/debug"
	"github.com/aretw0/botflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pingPongDoc = `{
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

// clientView applies diffs the way a browser client does.
type clientView struct {
	history int
	status  domain.ExecutionStatus
	steps   int
}

func (v *clientView) apply(d *domain.SnapshotDiff) {
	if d.Reset {
		v.history = 0
	}
	v.history += len(d.History)
	if d.Status != nil {
		v.status = *d.Status
	}
	if d.StepCount != nil {
		v.steps = *d.StepCount
	}
}

func TestStreamManager_LongRunKeepsHistory(t *testing.T) {
	sm := botflowhttp.NewStreamManager()
	reg := debug.NewRegistry(nil, debug.WithSessionOptions(
		debug.WithLifecycleHooks(sm.Hooks()),
		debug.WithMaxSteps(2000),
	))
	sm.Attach(reg)
	ctx := context.Background()

	session, err := reg.CreateDebugSession(ctx, "pingpong", []byte(pingPongDoc), "")
	require.NoError(t, err)

	sub, cancel := sm.Subscribe("pingpong")
	defer cancel()
	sub.Prime(session.Snapshot())

	var view clientView
	done := make(chan struct{})
	stop := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-sub.Ready():
				if d := sub.Next(); d != nil {
					view.apply(d)
				}
			case <-stop:
				return
			}
		}
	}()

	err = session.Start(ctx, "start", nil)
	require.ErrorIs(t, err, domain.ErrStepLimitExceeded)

	close(stop)
	<-done
	if d := sub.Next(); d != nil {
		view.apply(d)
	}

	snap := session.Snapshot()
	assert.Equal(t, 2000, snap.StepCount)
	assert.Equal(t, len(snap.History), view.history)
	assert.Equal(t, snap.StepCount, view.steps)
	assert.Equal(t, domain.StatusError, view.status)
}

func TestStreamManager_LaggingReaderCoalesces(t *testing.T) {
	sm := botflowhttp.NewStreamManager()
	sub, cancel := sm.Subscribe("bot")
	defer cancel()

	snaps := []*domain.Snapshot{
		{BotID: "bot", RunID: "r1", Status: domain.StatusRunning, History: []domain.HistoryEntry{{NodeID: "start"}}, StepCount: 1},
		{BotID: "bot", RunID: "r1", Status: domain.StatusRunning, History: []domain.HistoryEntry{{NodeID: "start"}, {NodeID: "a"}}, StepCount: 2},
		{BotID: "bot", RunID: "r1", Status: domain.StatusStopped, History: []domain.HistoryEntry{{NodeID: "start"}, {NodeID: "a"}, {NodeID: "b"}}, StepCount: 3},
	}

	sm.Publish(snaps[0])
	var view clientView
	view.apply(sub.Next())
	assert.Equal(t, 1, view.history)

	// Nobody reads while two snapshots are published.
	sm.Publish(snaps[1])
	sm.Publish(snaps[2])
	<-sub.Ready()
	d := sub.Next()
	require.NotNil(t, d)
	assert.False(t, d.Reset)
	view.apply(d)

	assert.Equal(t, 3, view.history)
	assert.Equal(t, domain.StatusStopped, view.status)
	assert.Nil(t, sub.Next(), "nothing left after catching up")

	sm.Forget("bot")
	sm.Publish(snaps[2])
	full := sub.Next()
	require.NotNil(t, full)
	assert.Len(t, full.History, 3, "forgotten subscribers get the whole snapshot")
}
