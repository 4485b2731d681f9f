package services

import (
	"context"
	"errors"
	"net/http"
	"time"

	"creatorhub/internal/core/domain"
	"creatorhub/internal/core/ports"
	apperrors "creatorhub/pkg/errors"
	"creatorhub/pkg/tracing"
	"creatorhub/pkg/validation"

	"go.uber.org/zap"
)

// Authorization outcomes, used as metric label values.
const (
	OutcomeSelf             = "self"
	OutcomeGranted          = "granted"
	OutcomeDenied           = "denied"
	OutcomeUnauthenticated  = "unauthenticated"
	OutcomeInvalidRequest   = "invalid_request"
	OutcomeStoreUnavailable = "store_unavailable"
)

type subscriptionAuthorizer struct {
	auth    AuthService
	repo    ports.SubscriptionRepository
	metrics ports.AuthorizationMetrics
	logger  *zap.SugaredLogger
}

// NewSubscriptionAuthorizer wires the authorizer. metrics may be nil.
func NewSubscriptionAuthorizer(
	auth AuthService,
	repo ports.SubscriptionRepository,
	metrics ports.AuthorizationMetrics,
	logger *zap.SugaredLogger,
) ports.SubscriptionAuthorizer {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &subscriptionAuthorizer{
		auth:    auth,
		repo:    repo,
		metrics: metrics,
		logger:  logger,
	}
}

// IsAuthorized verifies the credential, validates the target and reports
// whether the caller may read the target creator's gated content.
// The credential is checked first; nothing reaches the store without a
// verified identity.
func (a *subscriptionAuthorizer) IsAuthorized(ctx context.Context, credential string, targetCreatorID domain.UserID) (bool, error) {
	ctx, span := tracing.TraceAuthorization(ctx, string(targetCreatorID))
	defer span.End()
	start := time.Now()

	claims, err := a.auth.ValidateToken(credential)
	if err != nil {
		a.record(ctx, OutcomeUnauthenticated, start)
		return false, apperrors.WrapError(err, apperrors.ErrCodeUnauthorized, "invalid or missing credential", http.StatusUnauthorized)
	}
	span.SetAttributes(tracing.UserIDKey.String(string(claims.UserID)))

	if err := validation.ValidateUserID(string(targetCreatorID), "creatorId"); err != nil {
		a.record(ctx, OutcomeInvalidRequest, start)
		return false, apperrors.NewInvalidInputError(err.Error())
	}

	authorized, outcome, err := a.check(ctx, claims.UserID, targetCreatorID)
	if err != nil {
		a.record(ctx, OutcomeStoreUnavailable, start)
		tracing.RecordError(ctx, err)
		a.logger.Errorw("subscription lookup failed",
			"subscriber_id", claims.UserID,
			"creator_id", targetCreatorID,
			"error", err,
		)
		return false, apperrors.NewStoreUnavailableError(err)
	}

	a.record(ctx, outcome, start)
	return authorized, nil
}

// HasAccess applies the self-access rule and the store lookup to an already
// verified identity. Store errors are returned unwrapped.
func (a *subscriptionAuthorizer) HasAccess(ctx context.Context, callerID, creatorID domain.UserID) (bool, error) {
	authorized, _, err := a.check(ctx, callerID, creatorID)
	return authorized, err
}

func (a *subscriptionAuthorizer) check(ctx context.Context, callerID, creatorID domain.UserID) (bool, string, error) {
	if callerID == creatorID {
		return true, OutcomeSelf, nil
	}

	_, err := a.repo.FindOne(ctx, callerID, creatorID)
	switch {
	case err == nil:
		return true, OutcomeGranted, nil
	case errors.Is(err, domain.ErrSubscriptionNotFound):
		return false, OutcomeDenied, nil
	default:
		return false, "", err
	}
}

func (a *subscriptionAuthorizer) record(ctx context.Context, outcome string, start time.Time) {
	tracing.AddOutcome(ctx, outcome)
	if a.metrics != nil {
		a.metrics.RecordAuthorization(outcome, time.Since(start))
	}
}
