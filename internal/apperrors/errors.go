// Package apperrors holds the error taxonomy shared by the services and the
// HTTP boundary.
package apperrors

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrAuthentication is the only error login returns for bad credentials,
	// unknown accounts and inactive accounts alike.
	ErrAuthentication = errors.New("unable to login with provided credentials")

	ErrForbidden = errors.New("you do not have permission to perform this action")
	ErrNotFound  = errors.New("not found")

	// ErrResetTokenInvalid covers malformed, expired and already used reset links.
	ErrResetTokenInvalid = errors.New("invalid or expired token")

	// ErrUnavailable marks failures of the credential store, the revocation
	// ledger or the signing key.
	ErrUnavailable = errors.New("service unavailable")
)

// ValidationError carries field level messages.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, exists := e.Fields[field]; !exists {
		e.Fields[field] = message
	}
}

func (e *ValidationError) HasErrors() bool {
	return e != nil && len(e.Fields) > 0
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// ConflictError reports a uniqueness violation on a single field.
type ConflictError struct {
	Field   string
	Message string
}

func (e *ConflictError) Error() string {
	return e.Field + ": " + e.Message
}

var (
	ErrDuplicateEmail = &ConflictError{Field: "email", Message: "a user with this email already exists"}
	ErrDuplicatePhone = &ConflictError{Field: "phone_number", Message: "a user with this phone number already exists"}
)

// TokenError is what callers see for any token problem. Reason is for logs
// only; the HTTP layer answers with a generic message.
type TokenError struct {
	Reason string
}

func (e *TokenError) Error() string {
	return "token " + e.Reason
}

var (
	ErrTokenInvalid = &TokenError{Reason: "invalid"}
	ErrTokenExpired = &TokenError{Reason: "expired"}
	ErrTokenRevoked = &TokenError{Reason: "revoked"}
)

func IsTokenError(err error) bool {
	var te *TokenError
	return errors.As(err, &te)
}
