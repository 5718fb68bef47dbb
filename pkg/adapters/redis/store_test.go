package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/botflow/pkg/adapters/redis"
	"github.com/aretw0/botflow/pkg/domain"
	"github.com/aretw0/botflow/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisBreakpointStore_Contract(t *testing.T) {
	_, client := setup(t)
	ports.RunBreakpointStoreContract(t, redis.NewBreakpointStore(client))
}

func TestRedisRunStore_Contract(t *testing.T) {
	_, client := setup(t)
	ports.RunRunStoreContract(t, redis.NewRunStore(client))
}

func TestRedisRunStore_TTL_Expiration(t *testing.T) {
	mr, client := setup(t)

	store := redis.NewRunStore(client, redis.WithTTL(1*time.Second))
	ctx := context.Background()

	err := store.Save(ctx, &domain.Snapshot{BotID: "greeter", RunID: "run-ttl", Status: domain.StatusStopped})
	require.NoError(t, err)

	runs, err := store.List(ctx, "greeter")
	assert.NoError(t, err)
	assert.Contains(t, runs, "run-ttl")

	// Key expiration.
	mr.FastForward(2 * time.Second)

	_, err = store.Load(ctx, "run-ttl")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// The index is pruned against the wall clock.
	time.Sleep(1200 * time.Millisecond)

	runs, err = store.List(ctx, "greeter")
	assert.NoError(t, err)
	assert.Empty(t, runs)
}

func TestRedisRunStore_Order(t *testing.T) {
	_, client := setup(t)
	store := redis.NewRunStore(client)
	ctx := context.Background()

	for _, id := range []string{"b", "a", "c"} {
		require.NoError(t, store.Save(ctx, &domain.Snapshot{BotID: "greeter", RunID: id}))
		time.Sleep(2 * time.Millisecond)
	}

	runs, err := store.List(ctx, "greeter")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a", "c"}, runs)
}

func TestRedisStores_Prefix(t *testing.T) {
	mr, client := setup(t)
	ctx := context.Background()

	runs := redis.NewRunStore(client, redis.WithPrefix("custom:app:"))
	require.NoError(t, runs.Save(ctx, &domain.Snapshot{BotID: "greeter", RunID: "r1"}))
	assert.True(t, mr.Exists("custom:app:run:r1"), "Expected run key with custom prefix to exist")
	assert.True(t, mr.Exists("custom:app:runs:greeter"), "Expected run index with custom prefix to exist")

	bps := redis.NewBreakpointStore(client, redis.WithPrefix("custom:app:"))
	require.NoError(t, bps.Add(ctx, "greeter", "welcome"))
	assert.True(t, mr.Exists("custom:app:breakpoints:greeter"))

	members, err := mr.SMembers("custom:app:breakpoints:index")
	require.NoError(t, err)
	assert.Equal(t, []string{"greeter"}, members)
}
