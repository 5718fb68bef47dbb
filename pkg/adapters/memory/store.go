package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/aretw0/botflow/pkg/domain"
)

// RunStore implements ports.RunStore in memory.
// Safe for concurrent use.
type RunStore struct {
	mu    sync.RWMutex
	data  map[string]*domain.Snapshot
	order map[string][]string // bot id -> run ids, oldest first
}

// NewRunStore creates a new in-memory run archive.
func NewRunStore() *RunStore {
	return &RunStore{
		data:  make(map[string]*domain.Snapshot),
		order: make(map[string][]string),
	}
}

// Save archives a copy of the snapshot.
func (s *RunStore) Save(_ context.Context, snap *domain.Snapshot) error {
	if snap.RunID == "" {
		return fmt.Errorf("snapshot has no run id")
	}
	copied := copySnapshot(snap)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.data[snap.RunID]; !exists {
		s.order[snap.BotID] = append(s.order[snap.BotID], snap.RunID)
	}
	s.data[snap.RunID] = copied
	return nil
}

// Load retrieves a copy of an archived snapshot.
func (s *RunStore) Load(_ context.Context, runID string) (*domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.data[runID]
	if !ok {
		return nil, fmt.Errorf("run '%s': %w", runID, domain.ErrNotFound)
	}
	// Copy on read so callers can't mutate the archive through the pointer
	return copySnapshot(snap), nil
}

// List returns the run ids of botID, oldest first.
func (s *RunStore) List(_ context.Context, botID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string{}, s.order[botID]...), nil
}

// Delete removes an archived run.
func (s *RunStore) Delete(_ context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, ok := s.data[runID]
	if !ok {
		return nil
	}
	delete(s.data, runID)
	ids := s.order[snap.BotID]
	for i, id := range ids {
		if id == runID {
			s.order[snap.BotID] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	return nil
}

func copySnapshot(snap *domain.Snapshot) *domain.Snapshot {
	c := *snap
	c.Variables = snap.Variables.Clone()
	c.History = append([]domain.HistoryEntry(nil), snap.History...)
	return &c
}
