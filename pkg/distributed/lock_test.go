package distributed

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("CREATORHUB_TEST_REDIS_ADDRESS")
	if addr == "" {
		t.Skip("CREATORHUB_TEST_REDIS_ADDRESS not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(context.Background()).Err())
	return client
}

func TestLock_MutualExclusion(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	key := "creatorhub:test:lock:" + uuid.NewString()

	first := NewLock(client, key, time.Second)
	second := NewLock(client, key, time.Second)

	ok, err := first.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = second.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, second.Unlock(ctx), ErrLockNotHeld)
	require.NoError(t, first.Unlock(ctx))

	ok, err = second.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, second.Unlock(ctx))
}

func TestLock_RenewedWhileHeld(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	key := "creatorhub:test:lock:" + uuid.NewString()

	l := NewLock(client, key, 200*time.Millisecond)
	require.NoError(t, l.Lock(ctx, 10*time.Millisecond))

	time.Sleep(500 * time.Millisecond)
	exists, err := client.Exists(ctx, key).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), exists)

	require.NoError(t, l.Unlock(ctx))
}

func TestLock_LockTimesOut(t *testing.T) {
	client := newTestClient(t)
	key := "creatorhub:test:lock:" + uuid.NewString()

	holder := NewLock(client, key, time.Second)
	ok, err := holder.TryLock(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	defer holder.Unlock(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = NewLock(client, key, time.Second).Lock(ctx, 10*time.Millisecond)
	assert.ErrorIs(t, err, ErrLockNotAcquired)
}
