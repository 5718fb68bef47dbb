package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aretw0/botflow/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// RunStore implements ports.RunStore using Redis.
// Each run is a JSON string; a sorted set per bot, scored by save time, orders them.
type RunStore struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// NewRunStore creates a RunStore over client.
func NewRunStore(client *backend.Client, opts ...Option) *RunStore {
	c := newConfig(opts)
	return &RunStore{client: client, prefix: c.prefix, ttl: c.ttl}
}

func (s *RunStore) key(runID string) string {
	return s.prefix + "run:" + runID
}

func (s *RunStore) indexKey(botID string) string {
	return s.prefix + "runs:" + botID
}

// Save persists the snapshot and indexes it under its bot.
func (s *RunStore) Save(ctx context.Context, snap *domain.Snapshot) error {
	if snap.RunID == "" {
		return errors.New("run id cannot be empty")
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	pipe := s.client.TxPipeline()
	// 0 means no expiration.
	pipe.Set(ctx, s.key(snap.RunID), data, s.ttl)
	pipe.ZAdd(ctx, s.indexKey(snap.BotID), backend.Z{
		Score:  float64(time.Now().UnixMicro()),
		Member: snap.RunID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save run to redis: %w", err)
	}
	return nil
}

// Load retrieves an archived run.
func (s *RunStore) Load(ctx context.Context, runID string) (*domain.Snapshot, error) {
	val, err := s.client.Get(ctx, s.key(runID)).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, fmt.Errorf("run '%s': %w", runID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get run from redis: %w", err)
	}

	var snap domain.Snapshot
	if err := json.Unmarshal([]byte(val), &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run: %w", err)
	}
	return &snap, nil
}

// List returns the runs of botID, oldest first. Entries whose run expired are pruned lazily.
func (s *RunStore) List(ctx context.Context, botID string) ([]string, error) {
	if s.ttl > 0 {
		cutoff := time.Now().Add(-s.ttl).UnixMicro()
		err := s.client.ZRemRangeByScore(ctx, s.indexKey(botID), "-inf", strconv.FormatInt(cutoff, 10)).Err()
		if err != nil {
			return nil, fmt.Errorf("failed to prune expired runs: %w", err)
		}
	}

	runs, err := s.client.ZRange(ctx, s.indexKey(botID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// Delete removes an archived run. Deleting an unknown run is a no-op.
func (s *RunStore) Delete(ctx context.Context, runID string) error {
	snap, err := s.Load(ctx, runID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.key(runID))
	pipe.ZRem(ctx, s.indexKey(snap.BotID), runID)
	_, err = pipe.Exec(ctx)
	return err
}
