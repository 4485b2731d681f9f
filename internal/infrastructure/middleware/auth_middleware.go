package middleware

import (
	"strings"

	"creatorhub/internal/core/domain"
	"creatorhub/internal/core/services"
	apperrors "creatorhub/pkg/errors"
	"creatorhub/pkg/logger"

	"github.com/gin-gonic/gin"
)

const (
	UserIDKey = "user_id"
	RoleKey   = "role"
)

// ExtractBearerToken returns the token from an "Authorization: Bearer <token>"
// header value, or "" when the header is absent or uses another scheme.
func ExtractBearerToken(header string) string {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// AuthMiddleware requires a valid bearer token. When allowQueryToken is set
// the "token" query parameter is accepted too, since browsers cannot set
// headers on WebSocket upgrades.
func AuthMiddleware(authService services.AuthService, allowQueryToken bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ExtractBearerToken(c.GetHeader("Authorization"))
		if token == "" && allowQueryToken {
			token = c.Query("token")
		}

		claims, err := authService.ValidateToken(token)
		if err != nil {
			_ = c.Error(apperrors.NewUnauthorizedError("invalid or missing credential"))
			c.Abort()
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(RoleKey, claims.Role)
		c.Request = c.Request.WithContext(logger.WithUserID(c.Request.Context(), string(claims.UserID)))
		c.Next()
	}
}

// UserIDFromContext returns the identity set by AuthMiddleware.
func UserIDFromContext(c *gin.Context) (domain.UserID, bool) {
	v, exists := c.Get(UserIDKey)
	if !exists {
		return "", false
	}
	id, ok := v.(domain.UserID)
	return id, ok
}

// RequireRole rejects callers whose credential does not carry role. Must run after AuthMiddleware.
func RequireRole(role domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, _ := c.Get(RoleKey)
		if r, ok := v.(domain.Role); !ok || r != role {
			_ = c.Error(apperrors.NewForbiddenError("insufficient permissions"))
			c.Abort()
			return
		}
		c.Next()
	}
}
