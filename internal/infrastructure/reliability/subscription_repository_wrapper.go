package reliability

import (
	"context"
	"errors"
	"time"

	"creatorhub/internal/core/domain"
	"creatorhub/internal/core/ports"
	"creatorhub/pkg/circuitbreaker"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

// RetryConfig bounds store retries. Attempts counts retries after the first call.
type RetryConfig struct {
	Attempts int
	Delay    time.Duration
}

// SubscriptionRepositoryWrapper wraps a SubscriptionRepository with retry logic and a circuit breaker.
// Answers (found, not found, already exists) and caller cancellation are never retried.
type SubscriptionRepositoryWrapper struct {
	repo    ports.SubscriptionRepository
	retry   RetryConfig
	breaker *circuitbreaker.CircuitBreaker
	metrics ports.StoreMetrics
	logger  *zap.SugaredLogger
}

func NewSubscriptionRepositoryWrapper(
	repo ports.SubscriptionRepository,
	retryConfig RetryConfig,
	cbConfig circuitbreaker.Config,
	metrics ports.StoreMetrics,
	logger *zap.SugaredLogger,
) *SubscriptionRepositoryWrapper {
	cbConfig.IsFailure = isStoreFailure

	w := &SubscriptionRepositoryWrapper{
		repo:    repo,
		retry:   retryConfig,
		breaker: circuitbreaker.New(cbConfig),
		metrics: metrics,
		logger:  logger,
	}

	w.breaker.OnStateChange(func(from, to circuitbreaker.State) {
		logger.Warnw("store circuit breaker state changed",
			"from", from.String(),
			"to", to.String(),
		)
	})

	return w
}

// isStoreFailure reports whether err means the store misbehaved, as opposed
// to a definite answer or a caller giving up.
func isStoreFailure(err error) bool {
	switch {
	case err == nil,
		errors.Is(err, domain.ErrSubscriptionNotFound),
		errors.Is(err, domain.ErrSubscriptionExists),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}

func (w *SubscriptionRepositoryWrapper) FindOne(ctx context.Context, subscriberID, creatorID domain.UserID) (*domain.Subscription, error) {
	var sub *domain.Subscription
	err := w.do(ctx, "find_one", func(ctx context.Context) error {
		found, err := w.repo.FindOne(ctx, subscriberID, creatorID)
		if err != nil {
			return err
		}
		sub = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func (w *SubscriptionRepositoryWrapper) Create(ctx context.Context, sub *domain.Subscription) error {
	return w.do(ctx, "create", func(ctx context.Context) error {
		return w.repo.Create(ctx, sub)
	})
}

func (w *SubscriptionRepositoryWrapper) Delete(ctx context.Context, subscriberID, creatorID domain.UserID) error {
	return w.do(ctx, "delete", func(ctx context.Context) error {
		return w.repo.Delete(ctx, subscriberID, creatorID)
	})
}

func (w *SubscriptionRepositoryWrapper) CountSubscribers(ctx context.Context, creatorID domain.UserID) (int64, error) {
	var n int64
	err := w.do(ctx, "count_subscribers", func(ctx context.Context) error {
		count, err := w.repo.CountSubscribers(ctx, creatorID)
		n = count
		return err
	})
	return n, err
}

// Ping bypasses the breaker so readiness probes see the real store state.
func (w *SubscriptionRepositoryWrapper) Ping(ctx context.Context) error {
	return w.repo.Ping(ctx)
}

// BreakerState exposes the breaker for health reporting.
func (w *SubscriptionRepositoryWrapper) BreakerState() circuitbreaker.State {
	return w.breaker.State()
}

func (w *SubscriptionRepositoryWrapper) do(ctx context.Context, operation string, fn func(context.Context) error) error {
	start := time.Now()

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := w.breaker.Execute(ctx, fn)
		if err == nil {
			return struct{}{}, nil
		}
		if !isStoreFailure(err) || errors.Is(err, circuitbreaker.ErrOpen) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(w.retry.Delay)),
		backoff.WithMaxTries(uint(w.retry.Attempts+1)),
		backoff.WithNotify(func(err error, next time.Duration) {
			w.logger.Warnw("store operation failed, retrying",
				"operation", operation,
				"error", err,
				"retry_in", next,
			)
		}),
	)

	if w.metrics != nil {
		w.metrics.RecordStoreOperation(operation, time.Since(start), errorForMetrics(err))
	}
	return err
}

// errorForMetrics hides definite answers so they are not counted as store errors.
func errorForMetrics(err error) error {
	if isStoreFailure(err) {
		return err
	}
	return nil
}
