package debug

import (
	"context"
	"fmt"

	"github.com/aretw0/botflow/pkg/domain"
	"github.com/aretw0/botflow/pkg/ports"
)

var _ ports.DebugService = (*Registry)(nil)

// CreateSession creates a session from document, or from the BotLoader when document is empty.
func (r *Registry) CreateSession(ctx context.Context, botID, userID string, document []byte) (*domain.Snapshot, error) {
	var (
		s   *Session
		err error
	)
	if len(document) == 0 {
		s, err = r.CreateSessionFromStore(ctx, botID, userID)
	} else {
		s, err = r.CreateDebugSession(ctx, botID, document, userID)
	}
	if err != nil {
		return nil, err
	}
	return s.Snapshot(), nil
}

// DropSession discards the session of botID.
func (r *Registry) DropSession(_ context.Context, botID string) error {
	if !r.DeleteDebugSession(botID) {
		return notFound(botID)
	}
	return nil
}

// Start runs the session of botID from triggerNodeID with input merged into its scope.
func (r *Registry) Start(ctx context.Context, botID, triggerNodeID string, input map[string]any) (*domain.Snapshot, error) {
	return r.apply(botID, func(s *Session) error {
		return s.Start(ctx, triggerNodeID, input)
	})
}

// Stop ends the run of the session of botID.
func (r *Registry) Stop(ctx context.Context, botID string) (*domain.Snapshot, error) {
	return r.apply(botID, func(s *Session) error { return s.Stop(ctx) })
}

// Pause suspends the running session of botID without advancing it.
func (r *Registry) Pause(ctx context.Context, botID string) (*domain.Snapshot, error) {
	return r.apply(botID, func(s *Session) error { return s.Pause(ctx) })
}

// Resume drives the paused session of botID to the next breakpoint or the end of the run.
func (r *Registry) Resume(ctx context.Context, botID string) (*domain.Snapshot, error) {
	return r.apply(botID, func(s *Session) error { return s.Resume(ctx) })
}

// StepOver executes one node of the session of botID and leaves it paused.
func (r *Registry) StepOver(ctx context.Context, botID string) (*domain.Snapshot, error) {
	return r.apply(botID, func(s *Session) error { return s.StepOver(ctx) })
}

// SetVariable assigns name in the scope of the session of botID.
func (r *Registry) SetVariable(ctx context.Context, botID, name string, value any) (*domain.Snapshot, error) {
	return r.apply(botID, func(s *Session) error { return s.SetVariable(ctx, name, value) })
}

// Status returns the current snapshot of the session of botID.
func (r *Registry) Status(_ context.Context, botID string) (*domain.Snapshot, error) {
	return r.apply(botID, func(*Session) error { return nil })
}

// Graph returns the graph of the session of botID, or the stored bot document's graph.
func (r *Registry) Graph(ctx context.Context, botID string) (*domain.Graph, error) {
	return r.graph(ctx, botID)
}

// Breakpoints returns the breakpoints of botID sorted.
func (r *Registry) Breakpoints(ctx context.Context, botID string) ([]string, error) {
	return r.GetBreakpoints(ctx, botID), nil
}

// Runs lists the archived runs of botID; empty without a run archive.
func (r *Registry) Runs(ctx context.Context, botID string) ([]string, error) {
	if r.runs == nil {
		return []string{}, nil
	}
	return r.runs.List(ctx, botID)
}

// Run loads an archived run.
func (r *Registry) Run(ctx context.Context, runID string) (*domain.Snapshot, error) {
	if r.runs == nil {
		return nil, fmt.Errorf("run '%s': %w", runID, domain.ErrNotFound)
	}
	return r.runs.Load(ctx, runID)
}

// Stats aggregates over all sessions and breakpoint sets.
func (r *Registry) Stats(context.Context) domain.DebugStats {
	return r.GetDebugStats()
}

// apply runs op on the session of botID and returns its snapshot, also when op failed.
func (r *Registry) apply(botID string, op func(*Session) error) (*domain.Snapshot, error) {
	s, ok := r.GetDebugSession(botID)
	if !ok {
		return nil, notFound(botID)
	}
	err := op(s)
	return s.Snapshot(), err
}

func notFound(botID string) error {
	return fmt.Errorf("debug session for bot '%s': %w", botID, domain.ErrNotFound)
}
