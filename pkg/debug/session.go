package debug

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/botflow/internal/logging"
	"github.com/aretw0/botflow/internal/runtime"
	"github.com/aretw0/botflow/pkg/domain"
	"github.com/aretw0/botflow/pkg/ports"
	"github.com/aretw0/botflow/pkg/schema"
	"github.com/google/uuid"
)

// Session is one controllable run of a bot graph.
//
// All state transitions are serialized by a per-session mutex. The continuous drive
// re-acquires the mutex for every step and carries the epoch it was started in;
// pause, stop, stepOver and start bump the epoch, which ends any drive in flight
// before its next step.
type Session struct {
	botID  string
	userID string
	graph  *domain.Graph
	engine *runtime.Engine

	breakpoints *BreakpointSet
	maxSteps    int
	sink        ports.EffectSink
	runs        ports.RunStore
	hooks       domain.LifecycleHooks
	logger      *slog.Logger
	now         func() time.Time
	newRunID    func() string

	mu            sync.Mutex
	epoch         uint64
	status        domain.ExecutionStatus
	runID         string
	currentNodeID string
	scope         domain.Scope
	history       []domain.HistoryEntry
	stepCount     int
	startedAt     *time.Time
	stoppedAt     *time.Time
	lastErr       error
	lastActivity  time.Time
	out           outbox
}

// outbox collects what must happen once the lock is released.
type outbox struct {
	nodes    []*domain.NodeEvent
	statuses []*domain.StatusEvent
	effects  []domain.Effect
	archive  *domain.Snapshot
}

// NewSession creates a session in status created for graph g.
func NewSession(botID string, g *domain.Graph, engine *runtime.Engine, opts ...Option) *Session {
	s := &Session{
		botID:       botID,
		graph:       g,
		engine:      engine,
		breakpoints: NewBreakpointSet(),
		maxSteps:    DefaultMaxSteps,
		logger:      logging.NewNop(),
		now:         time.Now,
		newRunID:    uuid.NewString,
		status:      domain.StatusCreated,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.engine == nil {
		s.engine = runtime.NewEngine(runtime.WithLogger(s.logger))
	}
	s.scope = g.Defaults()
	s.lastActivity = s.now()
	return s
}

// Start begins a new run at triggerNodeID (the graph's entry node when empty) and
// drives it until a breakpoint, a terminal node, an error or ctx cancellation.
// Valid from created and stopped.
func (s *Session) Start(ctx context.Context, triggerNodeID string, input map[string]any) error {
	s.mu.Lock()
	if s.status != domain.StatusCreated && s.status != domain.StatusStopped {
		status := s.status
		s.mu.Unlock()
		return &domain.TransitionError{Op: "start", Status: status}
	}

	trigger, err := s.resolveTrigger(triggerNodeID)
	if err != nil {
		s.mu.Unlock()
		return err
	}

	s.resetRunLocked(trigger, input)
	s.setStatusLocked(domain.StatusRunning)
	epoch := s.epoch

	// A breakpoint on the trigger suspends before anything executes.
	if s.breakpoints.Contains(trigger) {
		s.setStatusLocked(domain.StatusPaused)
		s.unlockAndFlush(ctx)
		return nil
	}
	s.unlockAndFlush(ctx)

	return s.drive(ctx, epoch)
}

// Resume continues a paused run. Valid only from paused.
func (s *Session) Resume(ctx context.Context) error {
	s.mu.Lock()
	if s.status != domain.StatusPaused {
		status := s.status
		s.mu.Unlock()
		return &domain.TransitionError{Op: "resume", Status: status}
	}
	s.epoch++
	epoch := s.epoch
	s.setStatusLocked(domain.StatusRunning)
	s.unlockAndFlush(ctx)

	return s.drive(ctx, epoch)
}

// Pause suspends a running drive without advancing. Valid only from running.
func (s *Session) Pause(ctx context.Context) error {
	s.mu.Lock()
	if s.status != domain.StatusRunning {
		status := s.status
		s.mu.Unlock()
		return &domain.TransitionError{Op: "pause", Status: status}
	}
	s.epoch++
	s.setStatusLocked(domain.StatusPaused)
	s.unlockAndFlush(ctx)
	return nil
}

// StepOver executes exactly one step and leaves the session paused,
// or stopped when the step reached a terminal node.
// From created it first initialises a run at the graph's entry node.
func (s *Session) StepOver(ctx context.Context) error {
	s.mu.Lock()
	switch s.status {
	case domain.StatusCreated:
		trigger, err := s.resolveTrigger("")
		if err != nil {
			s.mu.Unlock()
			return err
		}
		s.resetRunLocked(trigger, nil)
	case domain.StatusRunning, domain.StatusPaused:
		s.epoch++
	default:
		status := s.status
		s.mu.Unlock()
		return &domain.TransitionError{Op: "stepOver", Status: status}
	}

	err := s.stepLocked(ctx)
	if err == nil && !s.status.Terminal() {
		s.setStatusLocked(domain.StatusPaused)
	}
	s.unlockAndFlush(ctx)
	return err
}

// Stop ends the run. Valid from any non-terminal status; stopping a stopped session is a no-op.
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	switch s.status {
	case domain.StatusStopped:
		s.mu.Unlock()
		return nil
	case domain.StatusError:
		s.mu.Unlock()
		return &domain.TransitionError{Op: "stop", Status: domain.StatusError}
	}
	s.epoch++
	s.finishLocked(domain.StatusStopped, nil)
	s.unlockAndFlush(ctx)
	return nil
}

// SetVariable writes name into the scope. It is permitted in every status.
// The value is coerced to the declared type of the variable when possible.
func (s *Session) SetVariable(ctx context.Context, name string, value any) error {
	if name == "" {
		return errors.New("variable name is required")
	}

	if decl, ok := s.graph.Variables[name]; ok && decl.Type != "" {
		if t, err := schema.ParseType(decl.Type); err == nil && t != nil {
			if coerced, err := t.Coerce(value); err == nil {
				value = coerced
			} else {
				s.logger.Warn("Variable value does not match declared type", "bot_id", s.botID, "variable", name, "type", decl.Type, "err", err)
			}
		}
	}

	s.mu.Lock()
	s.scope[name] = value
	s.lastActivity = s.now()
	s.mu.Unlock()
	s.logger.Debug("Variable set", "bot_id", s.botID, "variable", name)
	return nil
}

// drive runs steps until the session leaves running, the epoch changes, or ctx is done.
func (s *Session) drive(ctx context.Context, epoch uint64) error {
	for {
		s.mu.Lock()
		if s.epoch != epoch || s.status != domain.StatusRunning {
			s.mu.Unlock()
			return nil
		}

		if err := ctx.Err(); err != nil {
			s.setStatusLocked(domain.StatusPaused)
			s.unlockAndFlush(context.WithoutCancel(ctx))
			s.logger.Info("Drive interrupted, session paused", "bot_id", s.botID, "node_id", s.currentNodeID, "err", err)
			return err
		}

		err := s.stepLocked(ctx)
		if err == nil && s.status == domain.StatusRunning && s.breakpoints.Contains(s.currentNodeID) {
			s.setStatusLocked(domain.StatusPaused)
		}
		s.unlockAndFlush(ctx)
		if err != nil {
			return err
		}
	}
}

// stepLocked executes the current node once and records it.
// Engine failures move the run to error.
func (s *Session) stepLocked(ctx context.Context) error {
	nodeID := s.currentNodeID
	if s.stepCount >= s.maxSteps {
		err := &domain.StepLimitError{Limit: s.maxSteps, NodeID: nodeID}
		s.finishLocked(domain.StatusError, err)
		return err
	}

	res, err := s.engine.Step(ctx, s.graph, nodeID, s.scope)
	if err != nil {
		s.finishLocked(domain.StatusError, err)
		return err
	}

	var kind domain.NodeKind
	if node, ok := s.graph.Node(nodeID); ok {
		kind = node.Kind
	}
	now := s.now()
	s.history = append(s.history, domain.HistoryEntry{
		NodeID:    nodeID,
		Kind:      kind,
		Timestamp: now,
		StepIndex: s.stepCount,
		Effects:   res.Effects,
	})
	s.stepCount++
	s.lastActivity = now
	s.out.effects = append(s.out.effects, res.Effects...)
	s.out.nodes = append(s.out.nodes,
		&domain.NodeEvent{
			EventBase: domain.EventBase{Timestamp: now, Type: domain.EventNodeEnter, BotID: s.botID},
			NodeID:    nodeID,
			NodeKind:  kind,
		},
		&domain.NodeEvent{
			EventBase: domain.EventBase{Timestamp: now, Type: domain.EventNodeLeave, BotID: s.botID},
			NodeID:    nodeID,
			NodeKind:  kind,
			Next:      res.Next,
			Effects:   len(res.Effects),
		},
	)

	if res.Terminal() {
		if !kind.Known() {
			s.logger.Warn("Run ended at node of unknown type", "bot_id", s.botID, "node_id", nodeID, "type", kind)
		}
		s.finishLocked(domain.StatusStopped, nil)
		return nil
	}
	s.currentNodeID = res.Next
	return nil
}

func (s *Session) resolveTrigger(triggerNodeID string) (string, error) {
	if triggerNodeID == "" {
		entry, ok := s.graph.EntryNode()
		if !ok {
			return "", &domain.GraphError{Reason: "no start or trigger node"}
		}
		return entry.ID, nil
	}
	if !s.graph.HasNode(triggerNodeID) {
		return "", fmt.Errorf("trigger node '%s': %w", triggerNodeID, domain.ErrNotFound)
	}
	return triggerNodeID, nil
}

func (s *Session) resetRunLocked(trigger string, input map[string]any) {
	s.epoch++
	s.runID = s.newRunID()
	s.history = nil
	s.stepCount = 0
	s.scope = s.graph.Defaults()
	for k, v := range input {
		s.scope[k] = v
	}
	s.currentNodeID = trigger
	now := s.now()
	s.startedAt = &now
	s.stoppedAt = nil
	s.lastErr = nil
	s.lastActivity = now
}

func (s *Session) setStatusLocked(to domain.ExecutionStatus) {
	from := s.status
	if from == to {
		return
	}
	s.status = to
	s.lastActivity = s.now()

	ev := &domain.StatusEvent{
		EventBase: domain.EventBase{Timestamp: s.lastActivity, Type: domain.EventStatusChange, BotID: s.botID},
		RunID:     s.runID,
		From:      from,
		To:        to,
		Steps:     s.stepCount,
	}
	if s.lastErr != nil {
		ev.Err = s.lastErr.Error()
	}
	s.out.statuses = append(s.out.statuses, ev)
}

func (s *Session) finishLocked(status domain.ExecutionStatus, err error) {
	if err != nil {
		s.lastErr = err
		s.logger.Warn("Run failed", "bot_id", s.botID, "run_id", s.runID, "node_id", s.currentNodeID, "err", err)
	}
	if s.stoppedAt == nil {
		now := s.now()
		s.stoppedAt = &now
	}
	s.setStatusLocked(status)
	if s.runID != "" && s.runs != nil {
		s.out.archive = s.snapshotLocked()
	}
}

// unlockAndFlush releases the lock, then delivers effects, hooks and archives collected meanwhile.
func (s *Session) unlockAndFlush(ctx context.Context) {
	out := s.out
	s.out = outbox{}
	s.mu.Unlock()

	if len(out.effects) > 0 && s.sink != nil {
		if err := s.sink.Dispatch(ctx, s.botID, out.effects); err != nil {
			s.logger.Warn("Effect dispatch failed", "bot_id", s.botID, "effects", len(out.effects), "err", err)
		}
	}
	for _, ev := range out.nodes {
		if ev.Type == domain.EventNodeEnter && s.hooks.OnNodeEnter != nil {
			s.hooks.OnNodeEnter(ctx, ev)
		}
		if ev.Type == domain.EventNodeLeave && s.hooks.OnNodeLeave != nil {
			s.hooks.OnNodeLeave(ctx, ev)
		}
	}
	for _, ev := range out.statuses {
		if s.hooks.OnStatusChange != nil {
			s.hooks.OnStatusChange(ctx, ev)
		}
	}
	if out.archive != nil {
		if err := s.runs.Save(context.WithoutCancel(ctx), out.archive); err != nil {
			s.logger.Warn("Failed to archive run", "bot_id", s.botID, "run_id", out.archive.RunID, "err", err)
		}
	}
}

// --- Read accessors ---

// BotID returns the id of the bot the session debugs.
func (s *Session) BotID() string { return s.botID }

// UserID returns the owner recorded at creation.
func (s *Session) UserID() string { return s.userID }

// Graph returns the immutable graph of the session.
func (s *Session) Graph() *domain.Graph { return s.graph }

// Breakpoints returns the breakpoint set the drive consults.
func (s *Session) Breakpoints() *BreakpointSet { return s.breakpoints }

// MaxSteps returns the step ceiling.
func (s *Session) MaxSteps() int { return s.maxSteps }

// Status returns the current status.
func (s *Session) Status() domain.ExecutionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// CurrentNodeID returns the node the run is positioned at.
func (s *Session) CurrentNodeID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentNodeID
}

// CurrentNode returns the node the run is positioned at.
func (s *Session) CurrentNode() (*domain.Node, bool) {
	return s.graph.Node(s.CurrentNodeID())
}

// Variables returns a copy of the scope.
func (s *Session) Variables() domain.Scope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scope.Clone()
}

// History returns a copy of the execution history.
func (s *Session) History() []domain.HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.HistoryEntry(nil), s.history...)
}

// StepCount returns the number of steps executed in the current run.
func (s *Session) StepCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stepCount
}

// ExecutionTime returns (stoppedAt or now) - startedAt, or zero before the first run.
func (s *Session) ExecutionTime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.executionTimeLocked()
}

// Err returns the error that moved the session to error, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// LastActivity returns the time of the last state change.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// Snapshot returns an immutable copy of the session state.
func (s *Session) Snapshot() *domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) executionTimeLocked() time.Duration {
	if s.startedAt == nil {
		return 0
	}
	end := s.now()
	if s.stoppedAt != nil {
		end = *s.stoppedAt
	}
	return end.Sub(*s.startedAt)
}

func (s *Session) snapshotLocked() *domain.Snapshot {
	snap := &domain.Snapshot{
		BotID:         s.botID,
		UserID:        s.userID,
		RunID:         s.runID,
		Status:        s.status,
		CurrentNodeID: s.currentNodeID,
		Variables:     s.scope.Clone(),
		History:       append([]domain.HistoryEntry{}, s.history...),
		StepCount:     s.stepCount,
		ExecutionTime: s.executionTimeLocked(),
	}
	if s.startedAt != nil {
		t := *s.startedAt
		snap.StartedAt = &t
	}
	if s.stoppedAt != nil {
		t := *s.stoppedAt
		snap.StoppedAt = &t
	}
	if s.lastErr != nil {
		snap.LastError = s.lastErr.Error()
		snap.ErrorKind = domain.ErrorKind(s.lastErr)
	}
	return snap
}
