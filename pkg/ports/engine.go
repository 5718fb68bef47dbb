package ports

import (
	"context"

	"github.com/aretw0/botflow/pkg/domain"
)

// DebugService is the control surface of the debugger.
// Transports (HTTP, MCP, CLI) drive sessions exclusively through it.
//
// Operations that run the graph return the resulting snapshot even when they also
// return a graph error (e.g. StepLimitExceeded), so callers can report the session status.
type DebugService interface {
	// CreateSession replaces any session of botID. A nil document is fetched from the BotLoader.
	CreateSession(ctx context.Context, botID, userID string, document []byte) (*domain.Snapshot, error)
	// DropSession discards the session of botID. Breakpoints are kept.
	DropSession(ctx context.Context, botID string) error

	Start(ctx context.Context, botID, triggerNodeID string, input map[string]any) (*domain.Snapshot, error)
	Stop(ctx context.Context, botID string) (*domain.Snapshot, error)
	Pause(ctx context.Context, botID string) (*domain.Snapshot, error)
	Resume(ctx context.Context, botID string) (*domain.Snapshot, error)
	StepOver(ctx context.Context, botID string) (*domain.Snapshot, error)
	SetVariable(ctx context.Context, botID, name string, value any) (*domain.Snapshot, error)

	// Status returns the current snapshot, or domain.ErrNotFound when botID has no session.
	Status(ctx context.Context, botID string) (*domain.Snapshot, error)
	// Graph returns the graph of the session of botID.
	Graph(ctx context.Context, botID string) (*domain.Graph, error)

	SetBreakpoint(ctx context.Context, botID, nodeID string) ([]string, error)
	RemoveBreakpoint(ctx context.Context, botID, nodeID string) ([]string, error)
	Breakpoints(ctx context.Context, botID string) ([]string, error)

	// Runs lists the archived run ids of botID; Run loads one of them.
	Runs(ctx context.Context, botID string) ([]string, error)
	Run(ctx context.Context, runID string) (*domain.Snapshot, error)

	Stats(ctx context.Context) domain.DebugStats
}
