package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/botflow/pkg/domain"
)

// Loader implements ports.BotLoader using an in-memory map.
// Safe for concurrent use.
type Loader struct {
	mu   sync.RWMutex
	bots map[string][]byte
}

// NewLoader creates a new Loader with the provided raw documents (JSON or YAML strings).
func NewLoader(data map[string]string) *Loader {
	bots := make(map[string][]byte)
	for k, v := range data {
		bots[k] = []byte(v)
	}
	return &Loader{
		bots: bots,
	}
}

// NewFromGraphs creates a new Loader from domain graphs, keyed by Graph.BotID.
// This handles serialization automatically, improving DX for tests.
func NewFromGraphs(graphs ...*domain.Graph) (*Loader, error) {
	l := &Loader{bots: make(map[string][]byte)}
	for _, g := range graphs {
		if g.BotID == "" {
			return nil, fmt.Errorf("graph missing bot id")
		}
		bytes, err := json.Marshal(g)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal graph %s: %w", g.BotID, err)
		}
		l.bots[g.BotID] = bytes
	}
	return l, nil
}

// Put stores (or replaces) the document of botID.
func (l *Loader) Put(botID string, document []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.bots[botID] = document
}

// GetBotDocument retrieves the raw document of a bot.
func (l *Loader) GetBotDocument(_ context.Context, botID string) ([]byte, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	content, ok := l.bots[botID]
	if !ok {
		return nil, fmt.Errorf("bot '%s': %w", botID, domain.ErrNotFound)
	}
	return content, nil
}

// ListBots returns all available bot ids.
func (l *Loader) ListBots(_ context.Context) ([]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	keys := make([]string, 0, len(l.bots))
	for k := range l.bots {
		keys = append(keys, k)
	}
	sort.Strings(keys) // Deterministic order
	return keys, nil
}
