package debug

import (
	"log/slog"
	"time"

	"github.com/aretw0/botflow/pkg/domain"
	"github.com/aretw0/botflow/pkg/ports"
)

// DefaultMaxSteps bounds the number of steps of one run.
const DefaultMaxSteps = 10000

// Option configures a Session.
type Option func(*Session)

// WithMaxSteps sets the step ceiling of a run. Non-positive values keep the default.
func WithMaxSteps(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.maxSteps = n
		}
	}
}

// WithUserID records the user that owns the session.
func WithUserID(userID string) Option {
	return func(s *Session) {
		s.userID = userID
	}
}

// WithBreakpoints shares a breakpoint set with the session.
func WithBreakpoints(set *BreakpointSet) Option {
	return func(s *Session) {
		if set != nil {
			s.breakpoints = set
		}
	}
}

// WithEffectSink hands the effects of every step to sink.
func WithEffectSink(sink ports.EffectSink) Option {
	return func(s *Session) {
		s.sink = sink
	}
}

// WithRunStore archives the final snapshot of every run that reaches stopped or error.
func WithRunStore(store ports.RunStore) Option {
	return func(s *Session) {
		s.runs = store
	}
}

// WithLifecycleHooks registers observability hooks. Hooks fire after the session lock is released.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(s *Session) {
		s.hooks = s.hooks.Merge(hooks)
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		s.now = now
	}
}

// WithRunIDGenerator overrides the uuid based run id generator.
func WithRunIDGenerator(gen func() string) Option {
	return func(s *Session) {
		s.newRunID = gen
	}
}
