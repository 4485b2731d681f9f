package ports

import (
	"context"
	"time"

	"creatorhub/internal/core/domain"
)

type SubscriptionAuthorizer interface {
	IsAuthorized(ctx context.Context, credential string, targetCreatorID domain.UserID) (bool, error)
	HasAccess(ctx context.Context, callerID, creatorID domain.UserID) (bool, error)
}

// AuthorizationMetrics receives one observation per authorization decision.
type AuthorizationMetrics interface {
	RecordAuthorization(outcome string, duration time.Duration)
}
