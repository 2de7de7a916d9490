package domain

import "errors"

var (
	// ErrValidation marks bad user input. No side effect has been performed.
	ErrValidation = errors.New("validation failed")
	// ErrPermissionDenied is returned when a location or media permission was refused.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrRemoteStore wraps transient/network failures of the document store.
	ErrRemoteStore = errors.New("remote store error")
	// ErrNotFound is returned when a member document does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAuth marks failures reported by the auth provider.
	ErrAuth = errors.New("authentication failed")
	// ErrUnauthenticated is returned when an operation requires a signed-in user.
	ErrUnauthenticated = errors.New("user not authenticated")
)

// ValidationError describes a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError constructs a ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Is lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// AuthError carries the provider message, which is shown to the user verbatim.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}

// Is lets errors.Is(err, ErrAuth) match.
func (e *AuthError) Is(target error) bool {
	return target == ErrAuth
}
