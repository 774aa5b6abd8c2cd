// Package apperror defines the application's error taxonomy.
//
// Services return these errors; the handler layer maps them to HTTP status
// codes in exactly one place (handler/response.go). The sentinels below are
// matched with errors.Is, so services are free to wrap them with fmt.Errorf
// and %w to add context without breaking the mapping.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation error")
	ErrConflict   = errors.New("conflict")
	ErrForbidden  = errors.New("forbidden")

	// ErrInvalidCredentials is deliberately uniform: it covers "no such
	// user", "user has no password", and "wrong password" alike, so the
	// response never leaks which emails are registered.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidProvider means the provider name is not on the allow-list.
	// It is raised before any network call is attempted.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrIdentityUnavailable covers every way the identity provider can
	// fail us: rejected/expired code, network failure, timeout, or a
	// response with no usable profile. The provider API gives no stronger
	// signal, so neither do we.
	ErrIdentityUnavailable = errors.New("identity unavailable")

	// ErrBillingProvider means the external billing system failed to
	// create or return a customer record.
	ErrBillingProvider = errors.New("billing provider error")
)

type AppError struct {
	Err     error  // sentinel, matched with errors.Is
	Message string // human-readable error message
	Field   string // optional: field causing a validation error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, key string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict on %s", resource, key),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// InvalidCredentials returns the single, fixed-message credentials error.
// Never vary the message by cause — see ErrInvalidCredentials.
func InvalidCredentials() *AppError {
	return &AppError{
		Err:     ErrInvalidCredentials,
		Message: "Invalid Credentials",
	}
}

// InvalidProvider reports a provider name outside the allow-list.
// Surfaced as a 422 validation-style failure on the provider field.
func InvalidProvider(name string) *AppError {
	return &AppError{
		Err:     ErrInvalidProvider,
		Message: fmt.Sprintf("unsupported identity provider %q", name),
		Field:   "provider",
	}
}

// IdentityUnavailable wraps a provider-side failure. The cause is kept in
// the chain for logs but the message stays generic for the client.
func IdentityUnavailable(cause error) *AppError {
	err := error(ErrIdentityUnavailable)
	if cause != nil {
		err = fmt.Errorf("%w: %w", ErrIdentityUnavailable, cause)
	}
	return &AppError{
		Err:     err,
		Message: "could not verify identity with the provider",
	}
}

// BillingUnavailable wraps a billing-provider failure.
func BillingUnavailable(cause error) *AppError {
	err := error(ErrBillingProvider)
	if cause != nil {
		err = fmt.Errorf("%w: %w", ErrBillingProvider, cause)
	}
	return &AppError{
		Err:     err,
		Message: "billing provider is unavailable",
	}
}
