// GO TESTING BASICS:
// 1. Test files MUST end in _test.go: Go's tooling auto-discovers them
// 2. Test functions MUST start with "Test" and take *testing.T as the only param
// 3. Same package as the code being tested (so we can access unexported stuff)
// 4. Run with: go test ./internal/apperror/ -v  (-v = verbose, shows each test name)
package apperror

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

// TABLE-DRIVEN TESTS:
// Instead of one function per constructor, each case is one struct in a slice
// and the assertion logic is written once.

func TestErrorsIs(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
	}{
		{
			name:      "NotFound wraps ErrNotFound",
			err:       NotFound("story", "abc123"),
			target:    ErrNotFound,
			wantMatch: true,
		},
		{
			name:      "ValidationFailed wraps ErrValidation",
			err:       ValidationFailed("title", "title is required"),
			target:    ErrValidation,
			wantMatch: true,
		},
		{
			name:      "DuplicateUsername wraps ErrConflict",
			err:       DuplicateUsername("alice"),
			target:    ErrConflict,
			wantMatch: true,
		},
		{
			name:      "SessionExpired wraps ErrSessionExpired",
			err:       SessionExpired("alice"),
			target:    ErrSessionExpired,
			wantMatch: true,
		},
		{
			name:      "Transient wraps ErrTransient",
			err:       Transient("fetching stories", errors.New("connection refused")),
			target:    ErrTransient,
			wantMatch: true,
		},
		{
			name:      "Transient also matches its cause",
			err:       Transient("fetching stories", context.DeadlineExceeded),
			target:    context.DeadlineExceeded,
			wantMatch: true,
		},
		{
			name:      "wrapped with fmt.Errorf still matches",
			err:       fmt.Errorf("logging in: %w", Unauthenticated("bad credentials")),
			target:    ErrUnauthenticated,
			wantMatch: true,
		},
		{
			name:      "NotFound does NOT match ErrValidation",
			err:       NotFound("story", "abc123"),
			target:    ErrValidation,
			wantMatch: false,
		},
		{
			name:      "Forbidden does NOT match ErrUnauthenticated",
			err:       Forbidden("not your story"),
			target:    ErrUnauthenticated,
			wantMatch: false,
		},
		{
			name:      "MalformedRecord does NOT match ErrInvalidServerData",
			err:       MalformedRecord("title", "title missing"),
			target:    ErrInvalidServerData,
			wantMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errors.Is(tt.err, tt.target)
			if got != tt.wantMatch {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.wantMatch)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name        string
		err         *AppError
		wantMessage string
	}{
		{
			name:        "NotFound message includes resource and id",
			err:         NotFound("story", "abc123"),
			wantMessage: "story not found with id abc123",
		},
		{
			name:        "ValidationFailed uses custom message",
			err:         ValidationFailed("url", "url must be an http(s) link"),
			wantMessage: "url must be an http(s) link",
		},
		{
			name:        "DuplicateUsername uses the user-facing message",
			err:         DuplicateUsername("alice"),
			wantMessage: "Username already exists.",
		},
		{
			name:        "Transient appends the cause",
			err:         Transient("fetching stories", errors.New("connection refused")),
			wantMessage: "fetching stories failed, try again: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMessage {
				t.Errorf("Error() = %q, want %q", got, tt.wantMessage)
			}
		})
	}
}

func TestUnwrap(t *testing.T) {
	err := NotFound("story", "abc123")
	unwrapped := err.Unwrap()

	if len(unwrapped) != 1 || unwrapped[0] != ErrNotFound {
		t.Errorf("Unwrap() = %v, want [%v]", unwrapped, ErrNotFound)
	}
}

func TestDuplicateUsernameCarriesAttemptedName(t *testing.T) {
	var appErr *AppError
	if !errors.As(fmt.Errorf("signup: %w", DuplicateUsername("alice")), &appErr) {
		t.Fatal("errors.As did not find *AppError")
	}
	if appErr.Value != "alice" {
		t.Errorf("Value = %q, want %q", appErr.Value, "alice")
	}
	if appErr.Field != "username" {
		t.Errorf("Field = %q, want %q", appErr.Field, "username")
	}
}

func TestRetryable(t *testing.T) {
	if !Retryable(Transient("x", nil)) {
		t.Error("Retryable(Transient) = false, want true")
	}
	if Retryable(InvalidServerData("stories missing")) {
		t.Error("Retryable(InvalidServerData) = true, want false")
	}
	if Retryable(errors.New("plain")) {
		t.Error("Retryable(plain error) = true, want false")
	}
}

func TestMessage(t *testing.T) {
	if got := Message(fmt.Errorf("outer: %w", Forbidden("not your story"))); got != "not your story" {
		t.Errorf("Message() = %q, want %q", got, "not your story")
	}
	if got := Message(errors.New("boom")); got != "boom" {
		t.Errorf("Message() = %q, want %q", got, "boom")
	}
}
