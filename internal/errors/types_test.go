package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		expected string
	}{
		{
			name: "error without cause",
			err: &AppError{
				Code:    ErrCodeValidationFailed,
				Message: "content is required",
			},
			expected: "VALIDATION_FAILED: content is required",
		},
		{
			name: "error with cause",
			err: &AppError{
				Code:    ErrCodeDatabaseConnection,
				Message: "store unavailable",
				Cause:   errors.New("database is locked"),
			},
			expected: "DATABASE_CONNECTION: store unavailable: database is locked",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestAppError_WithContext(t *testing.T) {
	err := New(ErrCodeValidationFailed, "validation failed")

	result := err.WithContext("field", "chatId").WithContext("value", "")

	assert.Same(t, err, result)
	assert.Len(t, err.Context, 2)
	assert.Equal(t, "chatId", err.Context["field"])
}

func TestAs_FindsWrappedAppError(t *testing.T) {
	inner := NewNotFoundError("chat", "c1")
	wrapped := fmt.Errorf("failed to submit message: %w", inner)

	appErr, ok := As(wrapped)
	require.True(t, ok)
	assert.Same(t, inner, appErr)
	assert.Equal(t, ErrCodeNotFound, GetCode(wrapped))
	assert.True(t, HasCode(wrapped, ErrCodeNotFound))
}

func TestGetCode_PlainError(t *testing.T) {
	assert.Equal(t, ErrCodeInternalError, GetCode(errors.New("boom")))
	assert.False(t, HasCode(nil, ErrCodeInternalError))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(Wrap(errors.New("x"), ErrCodeDatabaseConnection, "locked").AsRetryable()))
	assert.True(t, IsRetryable(fmt.Errorf("ctx: %w", NewTransientStoreError("insert", errors.New("locked")))))
	assert.False(t, IsRetryable(NewValidationError("content", "", "content is required")))
	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestWrap_KeepsCauseReachable(t *testing.T) {
	cause := errors.New("database is locked")
	err := fmt.Errorf("submit: %w", Wrap(cause, ErrCodeDatabaseQuery, "insert message"))

	assert.ErrorIs(t, err, cause)
	assert.False(t, IsRetryable(err))
	assert.Equal(t, ErrCodeDatabaseQuery, GetCode(err))
}

func TestGetUserMessage(t *testing.T) {
	assert.Equal(t, "chat not found", GetUserMessage(NewNotFoundError("chat", "c1")))
	assert.Equal(t, "An internal error occurred", GetUserMessage(errors.New("boom")))
}
