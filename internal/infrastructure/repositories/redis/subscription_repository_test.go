package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"creatorhub/internal/core/domain"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient connects to CREATORHUB_TEST_REDIS_ADDRESS and skips when unset.
func newTestClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("CREATORHUB_TEST_REDIS_ADDRESS")
	if addr == "" {
		t.Skip("CREATORHUB_TEST_REDIS_ADDRESS not set")
	}
	client, err := NewRedisClient(addr, "", 15, 2, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = CloseRedisClient(client) })
	return client
}

func TestRedisSubscriptionRepository_Lifecycle(t *testing.T) {
	client := newTestClient(t)
	repo := NewRedisSubscriptionRepository(client)
	ctx := context.Background()

	subscriber := domain.UserID(uuid.NewString())
	creator := domain.UserID(uuid.NewString())
	t.Cleanup(func() {
		client.Del(ctx, subscriptionsKey(subscriber), creatorSubscribersKey(creator))
	})

	_, err := repo.FindOne(ctx, subscriber, creator)
	assert.ErrorIs(t, err, domain.ErrSubscriptionNotFound)

	sub := &domain.Subscription{ID: uuid.NewString(), SubscriberID: subscriber, CreatorID: creator, CreatedAt: time.Now().UTC()}
	require.NoError(t, repo.Create(ctx, sub))
	assert.ErrorIs(t, repo.Create(ctx, sub), domain.ErrSubscriptionExists)

	found, err := repo.FindOne(ctx, subscriber, creator)
	require.NoError(t, err)
	assert.Equal(t, sub.ID, found.ID)

	isMember, err := client.SIsMember(ctx, creatorSubscribersKey(creator), string(subscriber)).Result()
	require.NoError(t, err)
	assert.True(t, isMember)

	count, err := repo.CountSubscribers(ctx, creator)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	require.NoError(t, repo.Delete(ctx, subscriber, creator))
	count, err = repo.CountSubscribers(ctx, creator)
	require.NoError(t, err)
	assert.Zero(t, count)
	_, err = repo.FindOne(ctx, subscriber, creator)
	assert.ErrorIs(t, err, domain.ErrSubscriptionNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, subscriber, creator), domain.ErrSubscriptionNotFound)
}

func TestRedisSubscriptionRepository_FindOneUnreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })
	repo := NewRedisSubscriptionRepository(client)

	_, err := repo.FindOne(context.Background(), "U1", "U2")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrSubscriptionNotFound)
	assert.Error(t, repo.Ping(context.Background()))

	err = repo.Create(context.Background(), &domain.Subscription{ID: "s", SubscriberID: "U1", CreatorID: "U2"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrSubscriptionExists)
}
