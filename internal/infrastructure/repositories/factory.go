package repositories

import (
	"creatorhub/internal/core/ports"
	"creatorhub/internal/infrastructure/repositories/memory"
	redisrepo "creatorhub/internal/infrastructure/repositories/redis"
	"creatorhub/pkg/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RepositoryFactory owns the process-wide subscription store and the Redis
// client behind it, if any.
type RepositoryFactory struct {
	redisClient   *redis.Client
	subscriptions ports.SubscriptionRepository
}

// NewRepositoryFactory connects to Redis when enabled; an unreachable Redis
// falls back to the memory store rather than failing startup.
func NewRepositoryFactory(cfg *config.Config, logger *zap.SugaredLogger) (*RepositoryFactory, error) {
	factory := &RepositoryFactory{}

	if cfg.Redis.Enabled {
		client, err := redisrepo.NewRedisClient(
			cfg.Redis.Address,
			cfg.Redis.Password,
			cfg.Redis.DB,
			cfg.Redis.PoolSize,
			logger,
		)
		if err != nil {
			logger.Warnw("failed to connect to Redis, falling back to memory store",
				"address", cfg.Redis.Address,
				"error", err,
			)
		} else {
			factory.redisClient = client
			factory.subscriptions = redisrepo.NewRedisSubscriptionRepository(client)
		}
	}

	if factory.subscriptions == nil {
		factory.subscriptions = memory.NewMemorySubscriptionRepository()
	}
	logger.Infow("subscription store ready", "backend", factory.Backend())

	return factory, nil
}

// SubscriptionRepository returns the shared store; every call yields the same instance.
func (f *RepositoryFactory) SubscriptionRepository() ports.SubscriptionRepository {
	return f.subscriptions
}

// Backend names the active store for logs and metrics.
func (f *RepositoryFactory) Backend() string {
	if f.redisClient != nil {
		return "redis"
	}
	return "memory"
}

// RedisClient returns the shared client, or nil when running on the memory store.
func (f *RepositoryFactory) RedisClient() *redis.Client {
	return f.redisClient
}

func (f *RepositoryFactory) Close() error {
	return redisrepo.CloseRedisClient(f.redisClient)
}
