package ports

import (
	"context"

	"github.com/aretw0/botflow/pkg/domain"
)

// BreakpointStore persists breakpoint sets keyed by bot id.
// Breakpoint sets live independently of debug sessions.
type BreakpointStore interface {
	// Add inserts nodeID into the breakpoint set of botID. Adding twice is a no-op.
	Add(ctx context.Context, botID, nodeID string) error

	// Remove deletes nodeID from the breakpoint set of botID. Removing an absent id is a no-op.
	Remove(ctx context.Context, botID, nodeID string) error

	// List returns the breakpoint set of botID sorted by node id; empty when none.
	List(ctx context.Context, botID string) ([]string, error)

	// ListBots returns the ids of bots that have at least one breakpoint.
	ListBots(ctx context.Context) ([]string, error)
}

// RunStore archives the final snapshot of finished runs.
type RunStore interface {
	// Save persists the snapshot under its RunID.
	Save(ctx context.Context, snap *domain.Snapshot) error

	// Load retrieves a snapshot by run id.
	// Returns domain.ErrNotFound if the run does not exist.
	Load(ctx context.Context, runID string) (*domain.Snapshot, error)

	// List returns the run ids archived for botID, oldest first.
	List(ctx context.Context, botID string) ([]string, error)

	// Delete removes an archived run.
	Delete(ctx context.Context, runID string) error
}
