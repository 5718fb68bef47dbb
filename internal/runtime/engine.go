package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/botflow/internal/logging"
	"github.com/aretw0/botflow/pkg/domain"
)

// StepResult is the outcome of executing exactly one node.
type StepResult struct {
	Effects []domain.Effect
	// Next is the node the run continues at. Empty means the run ends here.
	Next string
}

// Terminal reports whether the run ends after this step.
func (r StepResult) Terminal() bool {
	return r.Next == ""
}

// Interpolator substitutes {{placeholders}} in text from the scope.
type Interpolator func(ctx context.Context, text string, scope domain.Scope) (string, error)

// ConditionEvaluator decides the boolean outcome of a condition node.
type ConditionEvaluator func(ctx context.Context, cond *domain.ConditionData, scope domain.Scope) (bool, error)

// Engine advances a run by one node at a time.
// It is stateless between calls; all run state lives in the scope the caller passes in.
type Engine struct {
	handlers     map[domain.NodeKind]NodeHandler
	interpolator Interpolator
	evaluator    ConditionEvaluator
	truthy       map[string]struct{}
	falsy        map[string]struct{}
	hooks        domain.LifecycleHooks
	logger       *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithHandler registers (or replaces) the handler for a node kind.
func WithHandler(kind domain.NodeKind, h NodeHandler) EngineOption {
	return func(e *Engine) {
		e.handlers[kind] = h
	}
}

// WithInterpolator replaces the default {{variable}} interpolator.
func WithInterpolator(interp Interpolator) EngineOption {
	return func(e *Engine) {
		e.interpolator = interp
	}
}

// WithConditionEvaluator replaces the default operator based evaluator.
func WithConditionEvaluator(eval ConditionEvaluator) EngineOption {
	return func(e *Engine) {
		e.evaluator = eval
	}
}

// WithBranchLabels sets which connection labels a condition treats as its true and false branches.
// Labels are matched case-insensitively.
func WithBranchLabels(truthy, falsy []string) EngineOption {
	return func(e *Engine) {
		e.truthy = labelSet(truthy)
		e.falsy = labelSet(falsy)
	}
}

// WithLifecycleHooks registers observability hooks fired around every step.
func WithLifecycleHooks(hooks domain.LifecycleHooks) EngineOption {
	return func(e *Engine) {
		e.hooks = e.hooks.Merge(hooks)
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// Default branch labels.
var (
	DefaultTruthyLabels = []string{"true", "yes", "then"}
	DefaultFalsyLabels  = []string{"false", "no", "else"}
)

// NewEngine creates an engine with the built-in handlers for every known node kind.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		handlers: map[domain.NodeKind]NodeHandler{
			domain.KindStart:          HandlerFunc(passThrough),
			domain.KindTriggerCommand: HandlerFunc(passThrough),
			domain.KindTriggerMessage: HandlerFunc(passThrough),
			domain.KindSendMessage:    HandlerFunc(sendMessage),
			domain.KindCondition:      HandlerFunc(condition),
			domain.KindSetVariable:    HandlerFunc(setVariable),
		},
		interpolator: Interpolate,
		evaluator:    EvaluateCondition,
		truthy:       labelSet(DefaultTruthyLabels),
		falsy:        labelSet(DefaultFalsyLabels),
		logger:       logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Step executes the node nodeID of g against scope and reports where the run goes next.
// The scope is mutated in place by set-variable nodes.
func (e *Engine) Step(ctx context.Context, g *domain.Graph, nodeID string, scope domain.Scope) (StepResult, error) {
	node, ok := g.Node(nodeID)
	if !ok {
		return StepResult{}, fmt.Errorf("node '%s': %w", nodeID, domain.ErrNotFound)
	}

	if e.hooks.OnNodeEnter != nil {
		e.hooks.OnNodeEnter(ctx, &domain.NodeEvent{
			EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventNodeEnter, BotID: g.BotID},
			NodeID:    node.ID,
			NodeKind:  node.Kind,
		})
	}

	handler, ok := e.handlers[node.Kind]
	if !ok {
		e.logger.Warn("Unknown node type, ending run", "node_id", node.ID, "type", node.Kind)
		handler = HandlerFunc(halt)
	}

	res, err := handler.Execute(ctx, &Execution{engine: e, Graph: g, Node: node, Scope: scope})
	if err != nil {
		e.logger.Debug("Step failed", "node_id", node.ID, "type", node.Kind, "err", err)
		return StepResult{}, err
	}

	if e.hooks.OnNodeLeave != nil {
		e.hooks.OnNodeLeave(ctx, &domain.NodeEvent{
			EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventNodeLeave, BotID: g.BotID},
			NodeID:    node.ID,
			NodeKind:  node.Kind,
			Next:      res.Next,
			Effects:   len(res.Effects),
		})
	}
	return res, nil
}

// Kinds returns the node kinds the engine has handlers for.
func (e *Engine) Kinds() []domain.NodeKind {
	kinds := make([]domain.NodeKind, 0, len(e.handlers))
	for k := range e.handlers {
		kinds = append(kinds, k)
	}
	return kinds
}

func labelSet(labels []string) map[string]struct{} {
	set := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		set[strings.ToLower(strings.TrimSpace(l))] = struct{}{}
	}
	return set
}
