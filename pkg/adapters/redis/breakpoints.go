package redis

import (
	"context"
	"fmt"
	"sort"

	backend "github.com/redis/go-redis/v9"
)

// BreakpointStore implements ports.BreakpointStore with one Redis set per bot
// plus an index set of the bots that have any breakpoint.
type BreakpointStore struct {
	client *backend.Client
	prefix string
}

// NewBreakpointStore creates a BreakpointStore over client.
func NewBreakpointStore(client *backend.Client, opts ...Option) *BreakpointStore {
	c := newConfig(opts)
	return &BreakpointStore{client: client, prefix: c.prefix}
}

func (s *BreakpointStore) key(botID string) string {
	return s.prefix + "breakpoints:" + botID
}

func (s *BreakpointStore) indexKey() string {
	return s.prefix + "breakpoints:index"
}

// Add persists a breakpoint.
func (s *BreakpointStore) Add(ctx context.Context, botID, nodeID string) error {
	pipe := s.client.TxPipeline()
	pipe.SAdd(ctx, s.key(botID), nodeID)
	pipe.SAdd(ctx, s.indexKey(), botID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to add breakpoint to redis: %w", err)
	}
	return nil
}

// Remove deletes a breakpoint; the bot leaves the index once its set is empty.
func (s *BreakpointStore) Remove(ctx context.Context, botID, nodeID string) error {
	if err := s.client.SRem(ctx, s.key(botID), nodeID).Err(); err != nil {
		return fmt.Errorf("failed to remove breakpoint from redis: %w", err)
	}

	n, err := s.client.SCard(ctx, s.key(botID)).Result()
	if err != nil {
		return fmt.Errorf("failed to count breakpoints: %w", err)
	}
	if n == 0 {
		if err := s.client.SRem(ctx, s.indexKey(), botID).Err(); err != nil {
			return fmt.Errorf("failed to update breakpoint index: %w", err)
		}
	}
	return nil
}

// List returns the breakpoints of botID sorted.
func (s *BreakpointStore) List(ctx context.Context, botID string) ([]string, error) {
	return s.members(ctx, s.key(botID))
}

// ListBots returns the bots that have at least one breakpoint.
func (s *BreakpointStore) ListBots(ctx context.Context) ([]string, error) {
	return s.members(ctx, s.indexKey())
}

func (s *BreakpointStore) members(ctx context.Context, key string) ([]string, error) {
	ids, err := s.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", key, err)
	}
	sort.Strings(ids)
	return ids, nil
}
