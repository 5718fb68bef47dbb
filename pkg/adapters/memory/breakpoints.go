package memory

import (
	"context"
	"sort"
	"sync"
)

// BreakpointStore implements ports.BreakpointStore in memory.
// Safe for concurrent use.
type BreakpointStore struct {
	mu   sync.RWMutex
	sets map[string]map[string]struct{}
}

// NewBreakpointStore creates an empty store.
func NewBreakpointStore() *BreakpointStore {
	return &BreakpointStore{sets: make(map[string]map[string]struct{})}
}

func (s *BreakpointStore) Add(_ context.Context, botID, nodeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.sets[botID]
	if !ok {
		set = make(map[string]struct{})
		s.sets[botID] = set
	}
	set[nodeID] = struct{}{}
	return nil
}

func (s *BreakpointStore) Remove(_ context.Context, botID, nodeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.sets[botID]
	if !ok {
		return nil
	}
	delete(set, nodeID)
	if len(set) == 0 {
		delete(s.sets, botID)
	}
	return nil
}

func (s *BreakpointStore) List(_ context.Context, botID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.sets[botID]))
	for id := range s.sets[botID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *BreakpointStore) ListBots(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bots := make([]string, 0, len(s.sets))
	for id := range s.sets {
		bots = append(bots, id)
	}
	sort.Strings(bots)
	return bots, nil
}
