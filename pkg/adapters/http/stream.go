package http

import (
	"context"
	"log/slog"
	"sync"

	"github.com/aretw0/botflow/internal/logging"
	"github.com/aretw0/botflow/pkg/domain"
	"github.com/aretw0/botflow/pkg/ports"
)

// StreamManager fans snapshot diffs out to SSE subscribers, per bot.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[*Subscription]struct{} // BotID -> Set of Subscriptions
	source      ports.DebugService
	logger      *slog.Logger
}

// NewStreamManager creates a StreamManager. Attach a DebugService before using Hooks.
func NewStreamManager() *StreamManager {
	return &StreamManager{
		subscribers: make(map[string]map[*Subscription]struct{}),
		logger:      logging.NewNop(),
	}
}

// Subscription delivers the snapshots of one bot to one reader.
// Snapshots published while the reader lags collapse into the newest one, and
// Next diffs it against the last snapshot the reader received, so no change is lost.
type Subscription struct {
	ready chan struct{}

	mu      sync.Mutex
	pending *domain.Snapshot
	sent    *domain.Snapshot
}

func newSubscription() *Subscription {
	return &Subscription{ready: make(chan struct{}, 1)}
}

// Ready signals that a newer snapshot is waiting for Next.
func (s *Subscription) Ready() <-chan struct{} {
	return s.ready
}

// Next returns the changes since the previous call, or nil when there are none.
// The first diff describes the whole snapshot.
func (s *Subscription) Next() *domain.SnapshotDiff {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return nil
	}
	diff := domain.Diff(s.sent, s.pending)
	s.sent = s.pending
	s.pending = nil
	return diff
}

// Prime queues snap unless something newer is already queued or was delivered.
func (s *Subscription) Prime(snap *domain.Snapshot) {
	s.mu.Lock()
	if s.pending != nil || s.sent != nil || snap == nil {
		s.mu.Unlock()
		return
	}
	s.pending = snap
	s.mu.Unlock()
	s.signal()
}

func (s *Subscription) offer(snap *domain.Snapshot) {
	s.mu.Lock()
	s.pending = snap
	s.mu.Unlock()
	s.signal()
}

func (s *Subscription) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = nil
}

func (s *Subscription) signal() {
	select {
	case s.ready <- struct{}{}:
	default:
	}
}

// Attach sets the service Hooks reads snapshots from.
func (sm *StreamManager) Attach(svc ports.DebugService) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.source = svc
}

// Subscribe registers a reader for botID. Call the returned func to unsubscribe.
func (sm *StreamManager) Subscribe(botID string) (*Subscription, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sub := newSubscription()
	if _, ok := sm.subscribers[botID]; !ok {
		sm.subscribers[botID] = make(map[*Subscription]struct{})
	}
	sm.subscribers[botID][sub] = struct{}{}

	return sub, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[botID]; ok {
			delete(subs, sub)
			if len(subs) == 0 {
				delete(sm.subscribers, botID)
			}
		}
	}
}

// HasSubscribers reports whether anyone listens to botID.
func (sm *StreamManager) HasSubscribers(botID string) bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers[botID]) > 0
}

// Publish hands snap to every subscriber of its bot. It never blocks.
func (sm *StreamManager) Publish(snap *domain.Snapshot) {
	if snap == nil {
		return
	}
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	for sub := range sm.subscribers[snap.BotID] {
		sub.offer(snap)
	}
}

// Forget makes the next diff of every subscriber of botID a full one.
func (sm *StreamManager) Forget(botID string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	for sub := range sm.subscribers[botID] {
		sub.reset()
	}
}

// Hooks publishes progress while a session drives: every status change, and
// every step while the bot has subscribers.
func (sm *StreamManager) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeLeave: func(ctx context.Context, e *domain.NodeEvent) {
			if sm.HasSubscribers(e.BotID) {
				sm.refresh(ctx, e.BotID)
			}
		},
		OnStatusChange: func(ctx context.Context, e *domain.StatusEvent) {
			if sm.HasSubscribers(e.BotID) {
				sm.refresh(ctx, e.BotID)
			}
		},
	}
}

func (sm *StreamManager) refresh(ctx context.Context, botID string) {
	sm.mu.RLock()
	svc := sm.source
	sm.mu.RUnlock()
	if svc == nil {
		return
	}
	snap, err := svc.Status(ctx, botID)
	if err != nil {
		sm.logger.Debug("SSE: No snapshot to publish", "bot_id", botID, "err", err)
		return
	}
	sm.Publish(snap)
}
