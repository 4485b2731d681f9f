package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"creatorhub/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySubscriptionRepository_CreateAndFind(t *testing.T) {
	repo := NewMemorySubscriptionRepository()
	ctx := context.Background()

	sub := &domain.Subscription{ID: "s1", SubscriberID: "U1", CreatorID: "U2", CreatedAt: time.Now()}
	require.NoError(t, repo.Create(ctx, sub))

	found, err := repo.FindOne(ctx, "U1", "U2")
	require.NoError(t, err)
	assert.Equal(t, "s1", found.ID)

	// direction matters
	_, err = repo.FindOne(ctx, "U2", "U1")
	assert.ErrorIs(t, err, domain.ErrSubscriptionNotFound)
}

func TestMemorySubscriptionRepository_PairIsUnique(t *testing.T) {
	repo := NewMemorySubscriptionRepository()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &domain.Subscription{ID: "s1", SubscriberID: "U1", CreatorID: "U2"}))
	err := repo.Create(ctx, &domain.Subscription{ID: "s2", SubscriberID: "U1", CreatorID: "U2"})
	assert.ErrorIs(t, err, domain.ErrSubscriptionExists)

	found, err := repo.FindOne(ctx, "U1", "U2")
	require.NoError(t, err)
	assert.Equal(t, "s1", found.ID)
}

func TestMemorySubscriptionRepository_ReturnsCopies(t *testing.T) {
	repo := NewMemorySubscriptionRepository()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, &domain.Subscription{ID: "s1", SubscriberID: "U1", CreatorID: "U2"}))

	found, err := repo.FindOne(ctx, "U1", "U2")
	require.NoError(t, err)
	found.CreatorID = "U9"

	again, err := repo.FindOne(ctx, "U1", "U2")
	require.NoError(t, err)
	assert.Equal(t, domain.UserID("U2"), again.CreatorID)
}

func TestMemorySubscriptionRepository_Delete(t *testing.T) {
	repo := NewMemorySubscriptionRepository()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, &domain.Subscription{ID: "s1", SubscriberID: "U1", CreatorID: "U2"}))

	require.NoError(t, repo.Delete(ctx, "U1", "U2"))
	_, err := repo.FindOne(ctx, "U1", "U2")
	assert.ErrorIs(t, err, domain.ErrSubscriptionNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, "U1", "U2"), domain.ErrSubscriptionNotFound)
}

func TestMemorySubscriptionRepository_ConcurrentReads(t *testing.T) {
	repo := NewMemorySubscriptionRepository()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, &domain.Subscription{ID: "s1", SubscriberID: "U1", CreatorID: "U2"}))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.FindOne(ctx, "U1", "U2")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}

func TestMemorySubscriptionRepository_PingHonoursContext(t *testing.T) {
	repo := NewMemorySubscriptionRepository()
	ctx, cancel := context.WithCancel(context.Background())
	assert.NoError(t, repo.Ping(ctx))
	cancel()
	assert.ErrorIs(t, repo.Ping(ctx), context.Canceled)
}

func TestMemorySubscriptionRepository_CountSubscribers(t *testing.T) {
	repo := NewMemorySubscriptionRepository()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &domain.Subscription{ID: "s1", SubscriberID: "U1", CreatorID: "C1"}))
	require.NoError(t, repo.Create(ctx, &domain.Subscription{ID: "s2", SubscriberID: "U2", CreatorID: "C1"}))
	require.NoError(t, repo.Create(ctx, &domain.Subscription{ID: "s3", SubscriberID: "U1", CreatorID: "C2"}))

	n, err := repo.CountSubscribers(ctx, "C1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	require.NoError(t, repo.Delete(ctx, "U2", "C1"))
	n, err = repo.CountSubscribers(ctx, "C1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = repo.CountSubscribers(ctx, "nobody")
	require.NoError(t, err)
	assert.Zero(t, n)
}
