package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aretw0/botflow/pkg/domain"
	"github.com/patrickmn/go-cache"
)

// DefaultCacheTTL is how long a document read from disk is served from memory.
const DefaultCacheTTL = 30 * time.Second

// botExtensions are tried in order for every bot id.
var botExtensions = []string{".json", ".yaml", ".yml"}

// Loader implements ports.BotLoader over a directory of bot documents
// named bot_<id>.json (or .yaml/.yml), the layout the admin panel writes.
type Loader struct {
	BasePath string

	cache *cache.Cache
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithCacheTTL sets how long documents are cached. Zero disables caching.
func WithCacheTTL(ttl time.Duration) LoaderOption {
	return func(l *Loader) {
		if ttl <= 0 {
			l.cache = nil
			return
		}
		l.cache = cache.New(ttl, 2*ttl)
	}
}

// NewLoader creates a Loader reading from basePath.
// If basePath is empty, it defaults to "data/bots".
func NewLoader(basePath string, opts ...LoaderOption) *Loader {
	if basePath == "" {
		basePath = filepath.Join("data", "bots")
	}
	l := &Loader{
		BasePath: basePath,
		cache:    cache.New(DefaultCacheTTL, 2*DefaultCacheTTL),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// GetBotDocument reads the document of botID.
func (l *Loader) GetBotDocument(_ context.Context, botID string) ([]byte, error) {
	if err := checkID("bot id", botID); err != nil {
		return nil, err
	}
	if l.cache != nil {
		if x, found := l.cache.Get(botID); found {
			return x.([]byte), nil
		}
	}

	for _, ext := range botExtensions {
		data, err := os.ReadFile(filepath.Join(l.BasePath, "bot_"+botID+ext))
		if err == nil {
			if l.cache != nil {
				l.cache.Set(botID, data, cache.DefaultExpiration)
			}
			return data, nil
		}
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read bot document: %w", err)
		}
	}
	return nil, fmt.Errorf("bot '%s': %w", botID, domain.ErrNotFound)
}

// SaveBotDocument writes the document of botID atomically as JSON and drops it from the cache.
func (l *Loader) SaveBotDocument(_ context.Context, botID string, document []byte) error {
	if err := checkID("bot id", botID); err != nil {
		return err
	}
	if err := writeAtomic(filepath.Join(l.BasePath, "bot_"+botID+".json"), document); err != nil {
		return fmt.Errorf("failed to save bot '%s': %w", botID, err)
	}
	l.Invalidate(botID)
	return nil
}

// Invalidate drops botID from the cache so the next read hits the disk.
func (l *Loader) Invalidate(botID string) {
	if l.cache != nil {
		l.cache.Delete(botID)
	}
}

// ListBots returns the ids of all bot documents in the directory.
func (l *Loader) ListBots(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(l.BasePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list bots: %w", err)
	}

	seen := make(map[string]struct{})
	bots := []string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "bot_") {
			continue
		}
		ext := filepath.Ext(name)
		if !isBotExtension(ext) {
			continue
		}
		id := strings.TrimSuffix(strings.TrimPrefix(name, "bot_"), ext)
		if _, dup := seen[id]; id == "" || dup {
			continue
		}
		seen[id] = struct{}{}
		bots = append(bots, id)
	}
	sort.Strings(bots)
	return bots, nil
}

func isBotExtension(ext string) bool {
	for _, e := range botExtensions {
		if e == ext {
			return true
		}
	}
	return false
}
