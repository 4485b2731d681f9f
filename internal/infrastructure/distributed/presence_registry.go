package distributed

import (
	"context"
	"fmt"
	"time"

	"creatorhub/internal/core/domain"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const presencePrefix = "creatorhub:presence:"

var unregisterScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	end
	return 0
`)

// PresenceRegistry records which instance holds each user's chat connection.
// Entries expire unless refreshed, so a crashed instance's users age out.
type PresenceRegistry struct {
	client     *redis.Client
	instanceID string
	ttl        time.Duration
	logger     *zap.SugaredLogger
}

func NewPresenceRegistry(
	client *redis.Client,
	instanceID string,
	ttl time.Duration,
	logger *zap.SugaredLogger,
) *PresenceRegistry {
	return &PresenceRegistry{
		client:     client,
		instanceID: instanceID,
		ttl:        ttl,
		logger:     logger,
	}
}

func (r *PresenceRegistry) key(userID domain.UserID) string {
	return presencePrefix + string(userID)
}

func (r *PresenceRegistry) Register(ctx context.Context, userID domain.UserID) error {
	if err := r.client.Set(ctx, r.key(userID), r.instanceID, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to register presence: %w", err)
	}
	return nil
}

// Unregister removes the entry only while it still points at this instance.
func (r *PresenceRegistry) Unregister(ctx context.Context, userID domain.UserID) error {
	if err := unregisterScript.Run(ctx, r.client, []string{r.key(userID)}, r.instanceID).Err(); err != nil {
		return fmt.Errorf("failed to unregister presence: %w", err)
	}
	return nil
}

// IsOnline reports whether any instance holds a connection for the user.
func (r *PresenceRegistry) IsOnline(ctx context.Context, userID domain.UserID) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to look up presence: %w", err)
	}
	return n > 0, nil
}

// Refresh extends the TTL of every given user registered to this instance.
func (r *PresenceRegistry) Refresh(ctx context.Context, userIDs []domain.UserID) error {
	if len(userIDs) == 0 {
		return nil
	}
	pipe := r.client.Pipeline()
	for _, id := range userIDs {
		pipe.Expire(ctx, r.key(id), r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to refresh presence: %w", err)
	}
	return nil
}
