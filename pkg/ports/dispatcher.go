package ports

import (
	"context"

	"github.com/aretw0/botflow/pkg/domain"
)

// EffectSink receives the effects produced by each executed step.
// The engine never delivers messages itself; the host implements this interface to do so.
type EffectSink interface {
	Dispatch(ctx context.Context, botID string, effects []domain.Effect) error
}

// EffectSinkFunc adapts a function to EffectSink.
type EffectSinkFunc func(ctx context.Context, botID string, effects []domain.Effect) error

// Dispatch calls f(ctx, botID, effects).
func (f EffectSinkFunc) Dispatch(ctx context.Context, botID string, effects []domain.Effect) error {
	return f(ctx, botID, effects)
}
