package debug

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/botflow/internal/compiler"
	"github.com/aretw0/botflow/internal/logging"
	"github.com/aretw0/botflow/internal/runtime"
	"github.com/aretw0/botflow/pkg/domain"
	"github.com/aretw0/botflow/pkg/ports"
)

// Registry owns at most one debug session per bot and the breakpoint sets of all bots.
// Construct one per process with NewRegistry and hand it to the transports.
type Registry struct {
	engine      *runtime.Engine
	parser      *compiler.Parser
	loader      ports.BotLoader
	store       ports.BreakpointStore
	runs        ports.RunStore
	sessionOpts []Option
	logger      *slog.Logger

	mu          sync.RWMutex
	sessions    map[string]*Session
	breakpoints map[string]*BreakpointSet
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithBotLoader sets where bot documents are fetched from.
func WithBotLoader(loader ports.BotLoader) RegistryOption {
	return func(r *Registry) {
		r.loader = loader
	}
}

// WithBreakpointStore persists breakpoints through store.
func WithBreakpointStore(store ports.BreakpointStore) RegistryOption {
	return func(r *Registry) {
		r.store = store
	}
}

// WithRunArchive archives finished runs of every session in store.
func WithRunArchive(store ports.RunStore) RegistryOption {
	return func(r *Registry) {
		r.runs = store
	}
}

// WithSessionOptions applies opts to every session the registry creates.
func WithSessionOptions(opts ...Option) RegistryOption {
	return func(r *Registry) {
		r.sessionOpts = append(r.sessionOpts, opts...)
	}
}

// WithRegistryLogger sets the structured logger of the registry and its sessions.
func WithRegistryLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRegistry creates an empty registry. A nil engine gets a default one.
func NewRegistry(engine *runtime.Engine, opts ...RegistryOption) *Registry {
	r := &Registry{
		engine:      engine,
		parser:      compiler.NewParser(),
		logger:      logging.NewNop(),
		sessions:    make(map[string]*Session),
		breakpoints: make(map[string]*BreakpointSet),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.engine == nil {
		r.engine = runtime.NewEngine(runtime.WithLogger(r.logger))
	}
	return r
}

// CreateDebugSession parses document and installs a new session for botID,
// replacing (and dropping the reference to) any existing one.
func (r *Registry) CreateDebugSession(ctx context.Context, botID string, document []byte, userID string) (*Session, error) {
	if botID == "" {
		return nil, errors.New("bot id is required")
	}
	g, err := r.parser.Parse(document)
	if err != nil {
		return nil, fmt.Errorf("failed to load graph of bot '%s': %w", botID, err)
	}
	g.BotID = botID

	// Sessions share the set, so a later successful load reaches them too.
	set, _ := r.breakpointSet(ctx, botID)
	opts := []Option{
		WithLogger(r.logger),
		WithUserID(userID),
		WithBreakpoints(set),
	}
	if r.runs != nil {
		opts = append(opts, WithRunStore(r.runs))
	}
	opts = append(opts, r.sessionOpts...)
	session := NewSession(botID, g, r.engine, opts...)

	r.mu.Lock()
	_, replaced := r.sessions[botID]
	r.sessions[botID] = session
	r.mu.Unlock()

	r.logger.Info("Debug session created", "bot_id", botID, "user_id", userID, "nodes", len(g.Nodes), "replaced", replaced)
	return session, nil
}

// CreateSessionFromStore fetches the document of botID from the BotLoader and creates a session.
func (r *Registry) CreateSessionFromStore(ctx context.Context, botID, userID string) (*Session, error) {
	doc, err := r.loadDocument(ctx, botID)
	if err != nil {
		return nil, err
	}
	return r.CreateDebugSession(ctx, botID, doc, userID)
}

// GetDebugSession returns the session of botID.
func (r *Registry) GetDebugSession(botID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[botID]
	return s, ok
}

// DeleteDebugSession drops the session of botID and reports whether one existed.
func (r *Registry) DeleteDebugSession(botID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[botID]
	delete(r.sessions, botID)
	return ok
}

// Reap drops sessions that are stopped or in error and idle for longer than maxAge.
func (r *Registry) Reap(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	r.mu.Lock()
	defer r.mu.Unlock()
	reaped := 0
	for botID, s := range r.sessions {
		if s.Status().Terminal() && s.LastActivity().Before(cutoff) {
			delete(r.sessions, botID)
			reaped++
		}
	}
	if reaped > 0 {
		r.logger.Debug("Reaped debug sessions", "count", reaped)
	}
	return reaped
}

// SetBreakpoint adds nodeID to the breakpoints of botID and returns the resulting set.
// When the bot's graph is known and lacks nodeID, the set is returned unchanged.
func (r *Registry) SetBreakpoint(ctx context.Context, botID, nodeID string) ([]string, error) {
	set, err := r.breakpointSet(ctx, botID)
	if err != nil {
		return set.List(), err
	}
	if !r.nodeExists(ctx, botID, nodeID) {
		r.logger.Warn("Ignoring breakpoint on unknown node", "bot_id", botID, "node_id", nodeID)
		return set.List(), nil
	}

	if set.Add(nodeID) && r.store != nil {
		if err := r.store.Add(ctx, botID, nodeID); err != nil {
			set.Remove(nodeID)
			return set.List(), fmt.Errorf("failed to persist breakpoint: %w", err)
		}
	}
	return set.List(), nil
}

// RemoveBreakpoint removes nodeID from the breakpoints of botID and returns the resulting set.
// When the bot's graph is known and lacks nodeID, the set is returned unchanged.
func (r *Registry) RemoveBreakpoint(ctx context.Context, botID, nodeID string) ([]string, error) {
	set, err := r.breakpointSet(ctx, botID)
	if err != nil {
		return set.List(), err
	}
	if !r.nodeExists(ctx, botID, nodeID) {
		r.logger.Warn("Ignoring breakpoint removal on unknown node", "bot_id", botID, "node_id", nodeID)
		return set.List(), nil
	}

	if set.Remove(nodeID) && r.store != nil {
		if err := r.store.Remove(ctx, botID, nodeID); err != nil {
			set.Add(nodeID)
			return set.List(), fmt.Errorf("failed to persist breakpoint removal: %w", err)
		}
	}
	return set.List(), nil
}

// GetBreakpoints returns the breakpoints of botID sorted.
// When the store cannot be read, the breakpoints known in memory are returned.
func (r *Registry) GetBreakpoints(ctx context.Context, botID string) []string {
	set, _ := r.breakpointSet(ctx, botID)
	return set.List()
}

// GetDebugStats aggregates over all sessions and breakpoint sets.
func (r *Registry) GetDebugStats() domain.DebugStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := domain.DebugStats{
		TotalSessions:    len(r.sessions),
		SessionsByStatus: make(map[domain.ExecutionStatus]int),
	}
	for _, s := range r.sessions {
		status := s.Status()
		stats.SessionsByStatus[status]++
		if !status.Terminal() {
			stats.ActiveSessions++
		}
	}
	for _, set := range r.breakpoints {
		if n := set.Len(); n > 0 {
			stats.TotalBreakpoints += n
			stats.BotsWithBreakpoints++
		}
	}
	return stats
}

// breakpointSet returns the shared set of botID, hydrating it from the store
// until a load succeeds. The set is returned together with any load error.
func (r *Registry) breakpointSet(ctx context.Context, botID string) (*BreakpointSet, error) {
	r.mu.Lock()
	set, ok := r.breakpoints[botID]
	if !ok {
		set = NewBreakpointSet()
		r.breakpoints[botID] = set
	}
	r.mu.Unlock()

	if r.store == nil {
		return set, nil
	}
	err := set.hydrate(func() ([]string, error) {
		return r.store.List(ctx, botID)
	})
	if err != nil {
		r.logger.Warn("Failed to load persisted breakpoints", "bot_id", botID, "err", err)
		return set, fmt.Errorf("failed to load breakpoints of bot '%s': %w", botID, err)
	}
	return set, nil
}

// nodeExists reports false only when a graph for botID is resolvable and lacks nodeID.
func (r *Registry) nodeExists(ctx context.Context, botID, nodeID string) bool {
	g, err := r.graph(ctx, botID)
	if err != nil {
		return true
	}
	return g.HasNode(nodeID)
}

func (r *Registry) graph(ctx context.Context, botID string) (*domain.Graph, error) {
	if s, ok := r.GetDebugSession(botID); ok {
		return s.Graph(), nil
	}
	doc, err := r.loadDocument(ctx, botID)
	if err != nil {
		return nil, err
	}
	g, err := r.parser.Parse(doc)
	if err != nil {
		return nil, err
	}
	g.BotID = botID
	return g, nil
}

func (r *Registry) loadDocument(ctx context.Context, botID string) ([]byte, error) {
	if r.loader == nil {
		return nil, fmt.Errorf("bot '%s': %w", botID, domain.ErrNotFound)
	}
	doc, err := r.loader.GetBotDocument(ctx, botID)
	if err != nil {
		return nil, fmt.Errorf("failed to load bot '%s': %w", botID, err)
	}
	return doc, nil
}
