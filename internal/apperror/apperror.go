// Package apperror defines the error taxonomy shared by every layer of the client.
//
// Each failure kind is a sentinel error. Constructors return an *AppError that
// wraps the sentinel together with a human-readable message, the offending
// field (for validation problems) and, when there is one, the underlying cause.
//
// Callers branch on the kind with errors.Is and read the details with errors.As:
//
//	if errors.Is(err, apperror.ErrConflict) {
//	    var appErr *apperror.AppError
//	    errors.As(err, &appErr)
//	    fmt.Println(appErr.Message, appErr.Value)
//	}
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrValidation         = errors.New("Validation Error")
	ErrConflict           = errors.New("conflict")
	ErrForbidden          = errors.New("forbidden")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrSessionExpired     = errors.New("session expired")
	ErrTransient          = errors.New("transient network error")
	ErrInvalidServerData  = errors.New("invalid server data")
	ErrMalformedRecord    = errors.New("malformed record")
	ErrUnexpectedResponse = errors.New("unexpected response")
)

type AppError struct {
	Err     error  // sentinel identifying the kind
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
	Value   string // Optional: the rejected input, e.g. the attempted username
	Cause   error  // Optional: lower-level error that triggered this one
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap exposes both the sentinel and the cause, so errors.Is matches
// apperror.ErrTransient as well as context.DeadlineExceeded on the same value.
func (e *AppError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
		Value:   id,
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// DuplicateUsername reports a signup for a username that is already taken.
// The message is the one shown to the user verbatim.
func DuplicateUsername(username string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: "Username already exists.",
		Field:   "username",
		Value:   username,
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthenticated reports rejected credentials or a token the server refused
// for a write.
func Unauthenticated(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthenticated,
		Message: message,
	}
}

// SessionExpired reports that a persisted token no longer identifies a session.
// Whoever persisted the token is expected to clear it.
func SessionExpired(username string) *AppError {
	return &AppError{
		Err:     ErrSessionExpired,
		Message: fmt.Sprintf("session for %s has expired", username),
		Value:   username,
	}
}

// Transient wraps a failure that may succeed if retried: no server reached,
// a timeout, or a 5xx.
func Transient(op string, cause error) *AppError {
	return &AppError{
		Err:     ErrTransient,
		Message: op + " failed, try again",
		Cause:   cause,
	}
}

func InvalidServerData(message string) *AppError {
	return &AppError{
		Err:     ErrInvalidServerData,
		Message: message,
	}
}

func MalformedRecord(field, message string) *AppError {
	return &AppError{
		Err:     ErrMalformedRecord,
		Message: message,
		Field:   field,
	}
}

func UnexpectedResponse(message string) *AppError {
	return &AppError{
		Err:     ErrUnexpectedResponse,
		Message: message,
	}
}

// Retryable reports whether err is worth retrying unchanged.
func Retryable(err error) bool {
	return errors.Is(err, ErrTransient)
}

// Message returns the human-readable message of the first AppError in err's
// chain, or err.Error() when there is none.
func Message(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}
