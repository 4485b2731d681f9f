package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	err := NewAppError(ErrCodeInvalidInput, "test error", http.StatusBadRequest)
	assert.Equal(t, "INVALID_INPUT: test error", err.Error())
}

func TestAppError_WithCause(t *testing.T) {
	originalErr := errors.New("original error")
	err := WrapError(originalErr, ErrCodeInternal, "wrapped error", http.StatusInternalServerError)

	assert.Same(t, originalErr, err.Cause)
	assert.Contains(t, err.Error(), "original error")
	assert.ErrorIs(t, err, originalErr)
}

func TestAppError_WithContext(t *testing.T) {
	err := NewInvalidInputError("bad creator id")
	err.WithContext("field", "creatorId").WithContext("max", 128)

	assert.Equal(t, "creatorId", err.Context["field"])
	assert.Equal(t, 128, err.Context["max"])
}

func TestConstructors_StatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    *AppError
		code   ErrorCode
		status int
	}{
		{"invalid input", NewInvalidInputError("x"), ErrCodeInvalidInput, http.StatusBadRequest},
		{"unauthorized", NewUnauthorizedError("x"), ErrCodeUnauthorized, http.StatusUnauthorized},
		{"not found", NewNotFoundError("creator"), ErrCodeNotFound, http.StatusNotFound},
		{"store unavailable", NewStoreUnavailableError(errors.New("dial tcp")), ErrCodeStoreUnavailable, http.StatusInternalServerError},
		{"rate limit", NewRateLimitError(), ErrCodeRateLimit, http.StatusTooManyRequests},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.code, tc.err.Code)
			assert.Equal(t, tc.status, tc.err.HTTPStatus)
		})
	}
}

func TestStoreUnavailable_HidesCauseFromMessage(t *testing.T) {
	err := NewStoreUnavailableError(errors.New("redis: connection refused 10.0.0.3:6379"))
	assert.NotContains(t, err.Message, "10.0.0.3")
	assert.Empty(t, err.Context)
}

func TestIs_MatchesByCode(t *testing.T) {
	err := fmt.Errorf("check failed: %w", NewUnauthorizedError("token expired"))

	assert.ErrorIs(t, err, Unauthenticated)
	assert.NotErrorIs(t, err, InvalidRequest)
	assert.NotErrorIs(t, err, StoreUnavailable)
}

func TestGetAppError(t *testing.T) {
	appErr := NewInvalidInputError("test")
	assert.Same(t, appErr, GetAppError(appErr))

	wrapped := fmt.Errorf("handler: %w", appErr)
	require.NotNil(t, GetAppError(wrapped))
	assert.Same(t, appErr, GetAppError(wrapped))

	assert.Nil(t, GetAppError(errors.New("regular error")))
	assert.Nil(t, GetAppError(nil))
	assert.True(t, IsAppError(wrapped))
	assert.False(t, IsAppError(errors.New("regular error")))
}
