package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"creatorhub/internal/core/domain"
	"creatorhub/internal/core/ports"
	"creatorhub/pkg/tracing"

	"github.com/redis/go-redis/v9"
)

const (
	subscriptionsPrefix      = "creatorhub:subscriptions:"
	creatorSubscribersPrefix = "creatorhub:creator_subscribers:"
)

// The subscription hash and the creator index change together or not at all.
var (
	createScript = redis.NewScript(`
		if redis.call("hsetnx", KEYS[1], ARGV[1], ARGV[2]) == 0 then
			return 0
		end
		redis.call("sadd", KEYS[2], ARGV[3])
		return 1
	`)
	deleteScript = redis.NewScript(`
		if redis.call("hdel", KEYS[1], ARGV[1]) == 0 then
			return 0
		end
		redis.call("srem", KEYS[2], ARGV[2])
		return 1
	`)
)

// RedisSubscriptionRepository stores one hash per subscriber, keyed by creator ID,
// plus one subscriber set per creator.
type RedisSubscriptionRepository struct {
	client *redis.Client
}

func NewRedisSubscriptionRepository(client *redis.Client) ports.SubscriptionRepository {
	return &RedisSubscriptionRepository{client: client}
}

func subscriptionsKey(subscriberID domain.UserID) string {
	return subscriptionsPrefix + string(subscriberID)
}

func creatorSubscribersKey(creatorID domain.UserID) string {
	return creatorSubscribersPrefix + string(creatorID)
}

func (r *RedisSubscriptionRepository) FindOne(ctx context.Context, subscriberID, creatorID domain.UserID) (*domain.Subscription, error) {
	ctx, span := tracing.TraceStoreOperation(ctx, "find_one", "redis")
	defer span.End()

	data, err := r.client.HGet(ctx, subscriptionsKey(subscriberID), string(creatorID)).Bytes()
	if err == redis.Nil {
		return nil, domain.ErrSubscriptionNotFound
	}
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, fmt.Errorf("failed to get subscription from Redis: %w", err)
	}

	var sub domain.Subscription
	if err := json.Unmarshal(data, &sub); err != nil {
		return nil, fmt.Errorf("failed to unmarshal subscription: %w", err)
	}
	return &sub, nil
}

func (r *RedisSubscriptionRepository) Create(ctx context.Context, sub *domain.Subscription) error {
	ctx, span := tracing.TraceStoreOperation(ctx, "create", "redis")
	defer span.End()

	data, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("failed to marshal subscription: %w", err)
	}

	created, err := createScript.Run(ctx, r.client,
		[]string{subscriptionsKey(sub.SubscriberID), creatorSubscribersKey(sub.CreatorID)},
		string(sub.CreatorID), data, string(sub.SubscriberID),
	).Int64()
	if err != nil {
		tracing.RecordError(ctx, err)
		return fmt.Errorf("failed to store subscription in Redis: %w", err)
	}
	if created == 0 {
		return domain.ErrSubscriptionExists
	}
	return nil
}

func (r *RedisSubscriptionRepository) Delete(ctx context.Context, subscriberID, creatorID domain.UserID) error {
	ctx, span := tracing.TraceStoreOperation(ctx, "delete", "redis")
	defer span.End()

	removed, err := deleteScript.Run(ctx, r.client,
		[]string{subscriptionsKey(subscriberID), creatorSubscribersKey(creatorID)},
		string(creatorID), string(subscriberID),
	).Int64()
	if err != nil {
		tracing.RecordError(ctx, err)
		return fmt.Errorf("failed to delete subscription from Redis: %w", err)
	}
	if removed == 0 {
		return domain.ErrSubscriptionNotFound
	}
	return nil
}

func (r *RedisSubscriptionRepository) CountSubscribers(ctx context.Context, creatorID domain.UserID) (int64, error) {
	ctx, span := tracing.TraceStoreOperation(ctx, "count_subscribers", "redis")
	defer span.End()

	n, err := r.client.SCard(ctx, creatorSubscribersKey(creatorID)).Result()
	if err != nil {
		tracing.RecordError(ctx, err)
		return 0, fmt.Errorf("failed to count subscribers in Redis: %w", err)
	}
	return n, nil
}

func (r *RedisSubscriptionRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
