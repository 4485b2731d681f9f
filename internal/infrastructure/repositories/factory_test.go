package repositories

import (
	"context"
	"testing"
	"time"

	"creatorhub/internal/core/domain"
	"creatorhub/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRepositoryFactory_MemoryWhenRedisDisabled(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Redis.Enabled = false

	factory, err := NewRepositoryFactory(cfg, zap.NewNop().Sugar())
	require.NoError(t, err)
	defer factory.Close()

	assert.Equal(t, "memory", factory.Backend())
	assert.Nil(t, factory.RedisClient())

	repo := factory.SubscriptionRepository()
	assert.NoError(t, repo.Ping(context.Background()))
	_, err = repo.FindOne(context.Background(), "U1", "U2")
	assert.ErrorIs(t, err, domain.ErrSubscriptionNotFound)
}

func TestRepositoryFactory_SharesOneStore(t *testing.T) {
	factory, err := NewRepositoryFactory(config.DefaultConfig(), zap.NewNop().Sugar())
	require.NoError(t, err)
	defer factory.Close()

	ctx := context.Background()
	require.NoError(t, factory.SubscriptionRepository().Create(ctx, &domain.Subscription{
		ID:           "sub-1",
		SubscriberID: "U1",
		CreatorID:    "U2",
		CreatedAt:    time.Now(),
	}))

	sub, err := factory.SubscriptionRepository().FindOne(ctx, "U1", "U2")
	require.NoError(t, err)
	assert.Equal(t, "sub-1", sub.ID)
}

func TestRepositoryFactory_FallsBackWhenRedisUnreachable(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Redis.Enabled = true
	cfg.Redis.Address = "127.0.0.1:1"

	factory, err := NewRepositoryFactory(cfg, zap.NewNop().Sugar())
	require.NoError(t, err)
	defer factory.Close()

	assert.Equal(t, "memory", factory.Backend())
	assert.Nil(t, factory.RedisClient())
	assert.NotNil(t, factory.SubscriptionRepository())
}
