package debug

import (
	"sort"
	"sync"
)

// BreakpointSet is a concurrency-safe set of node ids.
// A registry shares one set per bot between the bot's successive sessions.
type BreakpointSet struct {
	mu  sync.RWMutex
	ids map[string]struct{}

	loadMu sync.Mutex
	loaded bool
}

// NewBreakpointSet creates a set holding ids.
func NewBreakpointSet(ids ...string) *BreakpointSet {
	s := &BreakpointSet{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
	return s
}

// Add inserts id and reports whether it was absent.
func (s *BreakpointSet) Add(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[id]; ok {
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

// Remove deletes id and reports whether it was present.
func (s *BreakpointSet) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[id]; !ok {
		return false
	}
	delete(s.ids, id)
	return true
}

// Contains reports whether id is a breakpoint.
func (s *BreakpointSet) Contains(id string) bool {
	if s == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ids[id]
	return ok
}

// List returns the ids sorted.
func (s *BreakpointSet) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of breakpoints.
func (s *BreakpointSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}

// hydrate merges the ids returned by load once load has succeeded.
// A failed load is retried on the next call.
func (s *BreakpointSet) hydrate(load func() ([]string, error)) error {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()
	if s.loaded {
		return nil
	}
	ids, err := load()
	if err != nil {
		return err
	}
	for _, id := range ids {
		s.Add(id)
	}
	s.loaded = true
	return nil
}
