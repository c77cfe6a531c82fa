package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationErrorKeepsFirstMessagePerField(t *testing.T) {
	var verr ValidationError
	assert.False(t, verr.HasErrors())

	verr.Add("email", "required")
	verr.Add("email", "invalid")
	verr.Add("password", "required")

	assert.True(t, verr.HasErrors())
	assert.Equal(t, "required", verr.Fields["email"])
	assert.Equal(t, "validation failed: email: required; password: required", verr.Error())
}

func TestTokenErrorsSurviveWrapping(t *testing.T) {
	wrapped := fmt.Errorf("logout: %w", ErrTokenRevoked)

	assert.True(t, IsTokenError(wrapped))
	assert.True(t, errors.Is(wrapped, ErrTokenRevoked))
	assert.False(t, errors.Is(wrapped, ErrTokenExpired))
	assert.False(t, IsTokenError(ErrAuthentication))
}

func TestConflictErrorAs(t *testing.T) {
	err := fmt.Errorf("create user: %w", ErrDuplicatePhone)

	var conflict *ConflictError
	assert.True(t, errors.As(err, &conflict))
	assert.Equal(t, "phone_number", conflict.Field)
}
