package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/lattice/pkg/adapters/redis"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
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
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStore_Contract(t *testing.T) {
	_, client := setup(t)
	ports.RunOutputStoreContract(t, redis.NewFromClient(client))
}

func TestRedisStore_TTL_Expiration(t *testing.T) {
	mr, client := setup(t)
	store := redis.NewFromClient(client, redis.WithTTL(1*time.Second))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "g", "n", map[string]any{"foo": "bar"}))

	ids, err := store.List(ctx, "g")
	require.NoError(t, err)
	assert.Contains(t, ids, "n")

	// Key expiration in miniredis follows its own clock.
	mr.FastForward(2 * time.Second)
	_, err = store.Load(ctx, "g", "n")
	assert.ErrorIs(t, err, domain.ErrOutputNotFound)

	// The index is pruned against wall-clock time.
	time.Sleep(1200 * time.Millisecond)
	ids, err = store.List(ctx, "g")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestRedisStore_Prefix(t *testing.T) {
	mr, client := setup(t)
	store := redis.NewFromClient(client, redis.WithPrefix("custom:app:"))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "graph", "node", map[string]any{"v": 1}))

	assert.True(t, mr.Exists("custom:app:graph:node"), "Expected key with custom prefix to exist")
	assert.True(t, mr.Exists("custom:app:graph:index"), "Expected index with custom prefix to exist")

	raw, err := mr.Get("custom:app:graph:node")
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":1}`, raw)
}

func TestRedisLocker_Contract(t *testing.T) {
	_, client := setup(t)
	ports.RunLockerContract(t, redis.NewLocker(client, "test:", redis.WithPollInterval(10*time.Millisecond)))
}

func TestRedisLocker_LockUnlock(t *testing.T) {
	mr, client := setup(t)
	locker := redis.NewLocker(client, "test:lock:")
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "resource1", 5*time.Second)
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:lock:lock:resource1"), "Lock key should be set in Redis")

	require.NoError(t, unlock(ctx))
	assert.False(t, mr.Exists("test:lock:lock:resource1"), "Lock key should be removed after unlock")
}

func TestRedisLocker_UnlockKeepsForeignLock(t *testing.T) {
	mr, client := setup(t)
	locker := redis.NewLocker(client, "t:")
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "k", time.Second)
	require.NoError(t, err)

	// The lock expires and another holder takes it.
	mr.FastForward(2 * time.Second)
	require.NoError(t, mr.Set("t:lock:k", "someone-else"))

	require.NoError(t, unlock(ctx))
	got, err := mr.Get("t:lock:k")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}
