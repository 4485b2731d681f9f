package services

import (
	"testing"
	"time"

	"creatorhub/internal/core/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func TestAuthService_RoundTrip(t *testing.T) {
	svc := NewAuthService(testSecret, time.Hour)

	token, err := svc.GenerateToken("U1", domain.RoleCreator)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, domain.UserID("U1"), claims.UserID)
	assert.Equal(t, domain.RoleCreator, claims.Role)
	assert.Equal(t, "U1", claims.Subject)
}

func TestAuthService_GenerateToken_RejectsUnknownRole(t *testing.T) {
	svc := NewAuthService(testSecret, time.Hour)

	_, err := svc.GenerateToken("U1", domain.Role("SUPERUSER"))
	assert.ErrorIs(t, err, domain.ErrInvalidRole)
}

func TestAuthService_ValidateToken_Failures(t *testing.T) {
	svc := NewAuthService(testSecret, time.Hour)
	other := NewAuthService("another-secret", time.Hour)
	expired := NewAuthService(testSecret, -time.Minute)

	foreign, err := other.GenerateToken("U1", domain.RoleConsumer)
	require.NoError(t, err)
	stale, err := expired.GenerateToken("U1", domain.RoleConsumer)
	require.NoError(t, err)

	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: "U1"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noIdentity, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	cases := []struct {
		name  string
		token string
		want  error
	}{
		{"empty", "", ErrMissingToken},
		{"garbage", "not-a-jwt", ErrInvalidToken},
		{"wrong secret", foreign, ErrInvalidToken},
		{"expired", stale, ErrExpiredToken},
		{"alg none", noneAlg, ErrInvalidToken},
		{"no user id", noIdentity, ErrInvalidToken},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			claims, err := svc.ValidateToken(tc.token)
			assert.Nil(t, claims)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}
