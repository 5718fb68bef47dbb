package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/aretw0/botflow/pkg/domain"
)

// RunStore implements ports.RunStore using the local filesystem.
// Runs are stored as <base>/<botID>/<runID>.json.
type RunStore struct {
	BasePath string
}

// NewRunStore creates a RunStore with the given base path.
// If basePath is empty, it defaults to ".botflow/runs".
func NewRunStore(basePath string) *RunStore {
	if basePath == "" {
		basePath = filepath.Join(".botflow", "runs")
	}
	return &RunStore{BasePath: basePath}
}

// Save persists the snapshot atomically.
func (s *RunStore) Save(_ context.Context, snap *domain.Snapshot) error {
	if err := checkID("run id", snap.RunID); err != nil {
		return err
	}
	if err := checkID("bot id", snap.BotID); err != nil {
		return err
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return writeAtomic(filepath.Join(s.BasePath, snap.BotID, snap.RunID+".json"), data)
}

// Load retrieves an archived snapshot by run id.
func (s *RunStore) Load(_ context.Context, runID string) (*domain.Snapshot, error) {
	path, err := s.find(runID)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read run file: %w", err)
	}
	var snap domain.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run: %w", err)
	}
	return &snap, nil
}

// List returns the run ids of botID ordered by modification time, oldest first.
func (s *RunStore) List(_ context.Context, botID string) ([]string, error) {
	if err := checkID("bot id", botID); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(filepath.Join(s.BasePath, botID))
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	type run struct {
		id    string
		mtime int64
	}
	var runs []run
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		name := entry.Name()
		runs = append(runs, run{id: name[:len(name)-len(".json")], mtime: info.ModTime().UnixNano()})
	}
	sort.SliceStable(runs, func(i, j int) bool {
		if runs[i].mtime == runs[j].mtime {
			return runs[i].id < runs[j].id
		}
		return runs[i].mtime < runs[j].mtime
	})

	ids := make([]string, 0, len(runs))
	for _, r := range runs {
		ids = append(ids, r.id)
	}
	return ids, nil
}

// Delete removes an archived run. Deleting an unknown run is a no-op.
func (s *RunStore) Delete(_ context.Context, runID string) error {
	path, err := s.find(runID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete run file: %w", err)
	}
	return nil
}

func (s *RunStore) find(runID string) (string, error) {
	if err := checkID("run id", runID); err != nil {
		return "", err
	}
	matches, err := filepath.Glob(filepath.Join(s.BasePath, "*", runID+".json"))
	if err != nil {
		return "", fmt.Errorf("failed to locate run: %w", err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("run '%s': %w", runID, domain.ErrNotFound)
	}
	return matches[0], nil
}
