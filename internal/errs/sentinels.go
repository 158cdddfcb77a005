// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across gateway/service/transport layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates a missing or incomplete authenticated session.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidCSRF indicates a missing or mismatched CSRF token.
	ErrInvalidCSRF = errors.New("invalid csrf token")

	// ErrValidation indicates a request rejected before any command invocation.
	ErrValidation = errors.New("validation")

	// ErrRateLimited indicates temporary login lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")

	// ErrExecFailed indicates the external process produced no usable output.
	ErrExecFailed = errors.New("execution failed")

	// ErrInvalidResponse indicates the external process output was not a single JSON object.
	ErrInvalidResponse = errors.New("invalid response")

	// ErrArity indicates an invocation whose argument count differs from the command's parameters.
	ErrArity = errors.New("argument count mismatch")

	// ErrUnknownCommand indicates an invocation of a command missing from the command table.
	ErrUnknownCommand = errors.New("unknown command")
)

// DomainError is a structured `{"error": ...}` answer from the external process.
type DomainError struct {
	Msg string
}

func (e *DomainError) Error() string { return e.Msg }

// Domain wraps msg into a *DomainError.
func Domain(msg string) error { return &DomainError{Msg: msg} }

// ValidationError carries a user-facing message and matches ErrValidation.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Is reports ErrValidation as the target.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Invalid returns a validation error with a user-facing message.
func Invalid(msg string) error { return &ValidationError{Msg: msg} }
