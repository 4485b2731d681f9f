package ports

import (
	"context"
	"time"

	"creatorhub/internal/core/domain"
)

type SubscriptionRepository interface {
	// FindOne returns domain.ErrSubscriptionNotFound when the pair has no subscription.
	FindOne(ctx context.Context, subscriberID, creatorID domain.UserID) (*domain.Subscription, error)
	Create(ctx context.Context, sub *domain.Subscription) error
	Delete(ctx context.Context, subscriberID, creatorID domain.UserID) error
	CountSubscribers(ctx context.Context, creatorID domain.UserID) (int64, error)
	Ping(ctx context.Context) error
}

// StoreMetrics receives one observation per store call made through the reliability layer.
type StoreMetrics interface {
	RecordStoreOperation(operation string, duration time.Duration, err error)
}
