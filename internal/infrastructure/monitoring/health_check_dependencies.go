package monitoring

import (
	"context"
	"fmt"
	"time"

	"creatorhub/internal/core/ports"
	"creatorhub/pkg/circuitbreaker"

	"github.com/redis/go-redis/v9"
)

// AddRedisCheck adds a Redis health check
func (h *HealthChecker) AddRedisCheck(client *redis.Client, timeout time.Duration) {
	h.AddCheck("redis", func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}, timeout)
}

// AddRepositoryCheck pings the subscription store
func (h *HealthChecker) AddRepositoryCheck(repo ports.SubscriptionRepository, timeout time.Duration) {
	h.AddCheck("subscription_store", repo.Ping, timeout)
}

// AddBreakerCheck reports unhealthy while the store breaker is open
func (h *HealthChecker) AddBreakerCheck(state func() circuitbreaker.State) {
	h.AddCheck("store_breaker", func(ctx context.Context) error {
		if s := state(); s == circuitbreaker.StateOpen {
			return fmt.Errorf("circuit breaker is %s", s)
		}
		return nil
	}, 0)
}
