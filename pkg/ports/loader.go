package ports

import "context"

// BotLoader defines how the debugger retrieves bot documents.
// This allows the storage layer (files, memory, an admin database) to be decoupled.
type BotLoader interface {
	// GetBotDocument retrieves the raw bot document (which the compiler will parse).
	// Returns domain.ErrNotFound if the bot does not exist.
	GetBotDocument(ctx context.Context, botID string) ([]byte, error)

	// ListBots returns the ids of all bots available to the loader.
	ListBots(ctx context.Context) ([]string, error)
}
