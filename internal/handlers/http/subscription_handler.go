package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"creatorhub/internal/core/domain"
	"creatorhub/internal/core/ports"
	"creatorhub/internal/core/services"
	"creatorhub/internal/infrastructure/middleware"
	apperrors "creatorhub/pkg/errors"
	"creatorhub/pkg/validation"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type SubscriptionHandler struct {
	authorizer  ports.SubscriptionAuthorizer
	repo        ports.SubscriptionRepository
	authService services.AuthService
}

func NewSubscriptionHandler(
	authorizer ports.SubscriptionAuthorizer,
	repo ports.SubscriptionRepository,
	authService services.AuthService,
) *SubscriptionHandler {
	return &SubscriptionHandler{
		authorizer:  authorizer,
		repo:        repo,
		authService: authService,
	}
}

func (h *SubscriptionHandler) SetupRoutes(router *gin.Engine) {
	api := router.Group("/api/v1/subscriptions")
	{
		api.GET("/check", h.CheckQuery)
		api.POST("/check", h.CheckBody)
	}

	admin := router.Group("/api/v1/admin/subscriptions")
	admin.Use(middleware.AuthMiddleware(h.authService, false), middleware.RequireRole(domain.RoleAdmin))
	{
		admin.PUT("", h.Grant)
		admin.DELETE("", h.Revoke)
		admin.GET("/count", h.CountSubscribers)
	}
}

type CheckRequest struct {
	CreatorID string `json:"creatorId"`
}

type CheckResponse struct {
	Authorized bool `json:"authorized"`
}

// CheckQuery handles GET /api/v1/subscriptions/check?creatorId=<id>
func (h *SubscriptionHandler) CheckQuery(c *gin.Context) {
	h.check(c, c.Query("creatorId"))
}

// CheckBody handles POST /api/v1/subscriptions/check with {"creatorId": "<id>"}.
// An unreadable body is treated as a missing target so the credential is
// still verified first.
func (h *SubscriptionHandler) CheckBody(c *gin.Context) {
	var req CheckRequest
	_ = c.ShouldBindJSON(&req)
	h.check(c, req.CreatorID)
}

func (h *SubscriptionHandler) check(c *gin.Context, creatorID string) {
	credential := middleware.ExtractBearerToken(c.GetHeader("Authorization"))

	authorized, err := h.authorizer.IsAuthorized(c.Request.Context(), credential, domain.UserID(strings.TrimSpace(creatorID)))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, CheckResponse{Authorized: authorized})
}

type GrantRequest struct {
	SubscriberID string `json:"subscriberId"`
	CreatorID    string `json:"creatorId"`
}

func (r *GrantRequest) validate() error {
	r.SubscriberID = strings.TrimSpace(r.SubscriberID)
	r.CreatorID = strings.TrimSpace(r.CreatorID)
	if err := validation.ValidateUserID(r.SubscriberID, "subscriberId"); err != nil {
		return err
	}
	return validation.ValidateUserID(r.CreatorID, "creatorId")
}

// Grant records a subscription. Used by operators and purchase webhooks.
func (h *SubscriptionHandler) Grant(c *gin.Context) {
	var req GrantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.NewInvalidInputError("invalid request format"))
		return
	}
	if err := req.validate(); err != nil {
		_ = c.Error(apperrors.NewInvalidInputError(err.Error()))
		return
	}

	sub := &domain.Subscription{
		ID:           uuid.NewString(),
		SubscriberID: domain.UserID(req.SubscriberID),
		CreatorID:    domain.UserID(req.CreatorID),
		CreatedAt:    time.Now().UTC(),
	}
	if err := h.repo.Create(c.Request.Context(), sub); err != nil {
		if errors.Is(err, domain.ErrSubscriptionExists) {
			_ = c.Error(apperrors.NewConflictError("subscription already exists"))
			return
		}
		_ = c.Error(apperrors.NewStoreUnavailableError(err))
		return
	}

	c.JSON(http.StatusCreated, sub)
}

func (h *SubscriptionHandler) Revoke(c *gin.Context) {
	var req GrantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.NewInvalidInputError("invalid request format"))
		return
	}
	if err := req.validate(); err != nil {
		_ = c.Error(apperrors.NewInvalidInputError(err.Error()))
		return
	}

	err := h.repo.Delete(c.Request.Context(), domain.UserID(req.SubscriberID), domain.UserID(req.CreatorID))
	if err != nil {
		if errors.Is(err, domain.ErrSubscriptionNotFound) {
			_ = c.Error(apperrors.NewNotFoundError("subscription"))
			return
		}
		_ = c.Error(apperrors.NewStoreUnavailableError(err))
		return
	}

	c.Status(http.StatusNoContent)
}

type CountResponse struct {
	CreatorID   string `json:"creatorId"`
	Subscribers int64  `json:"subscribers"`
}

// CountSubscribers handles GET /api/v1/admin/subscriptions/count?creatorId=<id>
func (h *SubscriptionHandler) CountSubscribers(c *gin.Context) {
	creatorID := strings.TrimSpace(c.Query("creatorId"))
	if err := validation.ValidateUserID(creatorID, "creatorId"); err != nil {
		_ = c.Error(apperrors.NewInvalidInputError(err.Error()))
		return
	}

	n, err := h.repo.CountSubscribers(c.Request.Context(), domain.UserID(creatorID))
	if err != nil {
		_ = c.Error(apperrors.NewStoreUnavailableError(err))
		return
	}

	c.JSON(http.StatusOK, CountResponse{CreatorID: creatorID, Subscribers: n})
}
