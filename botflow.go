package botflow

import (
	"context"
	_ "embed"
	"log/slog"

	"github.com/aretw0/botflow/internal/logging"
	"github.com/aretw0/botflow/internal/runtime"
	"github.com/aretw0/botflow/pkg/debug"
	"github.com/aretw0/botflow/pkg/domain"
	"github.com/aretw0/botflow/pkg/ports"
)

// Version is the release of this module.
//
//go:embed VERSION
var Version string

type settings struct {
	engineOpts   []runtime.EngineOption
	registryOpts []debug.RegistryOption
	sessionOpts  []debug.Option
	logger       *slog.Logger
}

// Option configures the debugger built by New.
type Option func(*settings)

// WithBotLoader sets where bot documents are fetched from.
func WithBotLoader(loader ports.BotLoader) Option {
	return func(s *settings) {
		s.registryOpts = append(s.registryOpts, debug.WithBotLoader(loader))
	}
}

// WithBreakpointStore persists breakpoints.
func WithBreakpointStore(store ports.BreakpointStore) Option {
	return func(s *settings) {
		s.registryOpts = append(s.registryOpts, debug.WithBreakpointStore(store))
	}
}

// WithRunStore archives finished runs.
func WithRunStore(store ports.RunStore) Option {
	return func(s *settings) {
		s.registryOpts = append(s.registryOpts, debug.WithRunArchive(store))
	}
}

// WithEffectSink forwards the effects of every step, e.g. to a messenger.
func WithEffectSink(sink ports.EffectSink) Option {
	return func(s *settings) {
		s.sessionOpts = append(s.sessionOpts, debug.WithEffectSink(sink))
	}
}

// WithMaxSteps sets the step ceiling of every run.
func WithMaxSteps(n int) Option {
	return func(s *settings) {
		s.sessionOpts = append(s.sessionOpts, debug.WithMaxSteps(n))
	}
}

// WithLifecycleHooks registers observability hooks on every session.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(s *settings) {
		s.sessionOpts = append(s.sessionOpts, debug.WithLifecycleHooks(hooks))
	}
}

// WithBranchLabels replaces the connection labels that mean true and false on condition nodes.
func WithBranchLabels(truthy, falsy []string) Option {
	return func(s *settings) {
		s.engineOpts = append(s.engineOpts, runtime.WithBranchLabels(truthy, falsy))
	}
}

// WithInterpolator replaces {{variable}} substitution in message texts.
func WithInterpolator(fn func(ctx context.Context, text string, scope domain.Scope) (string, error)) Option {
	return func(s *settings) {
		s.engineOpts = append(s.engineOpts, runtime.WithInterpolator(fn))
	}
}

// WithConditionEvaluator replaces the built-in operators of condition nodes.
func WithConditionEvaluator(fn func(ctx context.Context, cond *domain.ConditionData, scope domain.Scope) (bool, error)) Option {
	return func(s *settings) {
		s.engineOpts = append(s.engineOpts, runtime.WithConditionEvaluator(fn))
	}
}

// WithLogger sets the structured logger of the engine, the registry and its sessions.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New builds a debugger: an execution engine and an empty session registry.
func New(opts ...Option) *debug.Registry {
	s := &settings{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(s)
	}

	engine := runtime.NewEngine(append([]runtime.EngineOption{runtime.WithLogger(s.logger)}, s.engineOpts...)...)
	registryOpts := append([]debug.RegistryOption{debug.WithRegistryLogger(s.logger)}, s.registryOpts...)
	if len(s.sessionOpts) > 0 {
		registryOpts = append(registryOpts, debug.WithSessionOptions(s.sessionOpts...))
	}
	return debug.NewRegistry(engine, registryOpts...)
}
