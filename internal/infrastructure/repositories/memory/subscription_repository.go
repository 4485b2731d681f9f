package memory

import (
	"context"
	"sync"

	"creatorhub/internal/core/domain"
	"creatorhub/internal/core/ports"
)

type pairKey struct {
	subscriber domain.UserID
	creator    domain.UserID
}

type MemorySubscriptionRepository struct {
	subscriptions map[pairKey]domain.Subscription
	mu            sync.RWMutex
}

func NewMemorySubscriptionRepository() ports.SubscriptionRepository {
	return &MemorySubscriptionRepository{
		subscriptions: make(map[pairKey]domain.Subscription),
	}
}

func (r *MemorySubscriptionRepository) FindOne(ctx context.Context, subscriberID, creatorID domain.UserID) (*domain.Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sub, exists := r.subscriptions[pairKey{subscriberID, creatorID}]
	if !exists {
		return nil, domain.ErrSubscriptionNotFound
	}
	// copy so callers cannot mutate stored state
	return &sub, nil
}

func (r *MemorySubscriptionRepository) Create(ctx context.Context, sub *domain.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := pairKey{sub.SubscriberID, sub.CreatorID}
	if _, exists := r.subscriptions[key]; exists {
		return domain.ErrSubscriptionExists
	}
	r.subscriptions[key] = *sub
	return nil
}

func (r *MemorySubscriptionRepository) Delete(ctx context.Context, subscriberID, creatorID domain.UserID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := pairKey{subscriberID, creatorID}
	if _, exists := r.subscriptions[key]; !exists {
		return domain.ErrSubscriptionNotFound
	}
	delete(r.subscriptions, key)
	return nil
}

func (r *MemorySubscriptionRepository) CountSubscribers(ctx context.Context, creatorID domain.UserID) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var n int64
	for key := range r.subscriptions {
		if key.creator == creatorID {
			n++
		}
	}
	return n, nil
}

func (r *MemorySubscriptionRepository) Ping(ctx context.Context) error {
	return ctx.Err()
}
