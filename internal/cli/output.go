package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/sakif/hackorsnooze/internal/apperror"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // The operation failed (server said no, network down, ...)
	ExitCommandError = 2 // Bad invocation (missing argument, unknown format, ...)
)

// Error codes shown in "Error [E00x]" lines and JSON/YAML error bodies.
const (
	ErrCodeGeneric         = "E001"
	ErrCodeValidation      = "E002"
	ErrCodeConflict        = "E003"
	ErrCodeUnauthenticated = "E004"
	ErrCodeSessionExpired  = "E005"
	ErrCodeForbidden       = "E006"
	ErrCodeNotFound        = "E007"
	ErrCodeNetwork         = "E008"
	ErrCodeServerData      = "E009"
	ErrCodeUsage           = "E010"
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)

	reported bool // already written by an OutputFormatter
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// Reported reports whether err was already shown to the user, so main knows
// not to print it a second time.
func Reported(err error) bool {
	var exitErr *ExitError
	return errors.As(err, &exitErr) && exitErr.reported
}

// errorCode classifies err for output.
func errorCode(err error) string {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return ErrCodeValidation
	case errors.Is(err, apperror.ErrConflict):
		return ErrCodeConflict
	case errors.Is(err, apperror.ErrUnauthenticated):
		return ErrCodeUnauthenticated
	case errors.Is(err, apperror.ErrSessionExpired):
		return ErrCodeSessionExpired
	case errors.Is(err, apperror.ErrForbidden):
		return ErrCodeForbidden
	case errors.Is(err, apperror.ErrNotFound):
		return ErrCodeNotFound
	case errors.Is(err, apperror.ErrTransient):
		return ErrCodeNetwork
	case errors.Is(err, apperror.ErrInvalidServerData),
		errors.Is(err, apperror.ErrMalformedRecord),
		errors.Is(err, apperror.ErrUnexpectedResponse):
		return ErrCodeServerData
	}
	return ErrCodeGeneric
}

// OutputFormatter writes command results as text, JSON or YAML.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the envelope for JSON and YAML output.
type CLIResponse struct {
	Status string    `json:"status"          yaml:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"  yaml:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty" yaml:"error,omitempty"` // error details
}

type CLIError struct {
	Code    string `json:"code"              yaml:"code"`
	Message string `json:"message"           yaml:"message"`
	Field   string `json:"field,omitempty"   yaml:"field,omitempty"`
	Details string `json:"details,omitempty" yaml:"details,omitempty"`
}

// Success outputs data. In text mode text renders it; JSON and YAML encode
// data itself.
func (f *OutputFormatter) Success(data any, text func(w io.Writer)) error {
	switch f.Format {
	case "json":
		return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "ok", Data: data})
	case "yaml":
		return f.encodeYAML(CLIResponse{Status: "ok", Data: data})
	}
	text(f.Writer)
	return nil
}

// Error outputs err and returns the ExitError the command should return.
// The human-readable part is the message a form would flash.
func (f *OutputFormatter) Error(err error) error {
	return f.errorWithMessage(err, apperror.Message(err))
}

// errorWithMessage is Error with the human-readable part supplied by the
// caller, such as the text of a flash notice.
func (f *OutputFormatter) errorWithMessage(err error, message string) error {
	code := errorCode(err)
	var field string
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		field = appErr.Field
	}

	var writeErr error
	switch f.Format {
	case "json":
		writeErr = json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message, Field: field, Details: err.Error()},
		})
	case "yaml":
		writeErr = f.encodeYAML(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message, Field: field, Details: err.Error()},
		})
	default:
		fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
		if f.Verbose {
			fmt.Fprintf(f.GetErrWriter(), "Details: %v\n", err)
		}
	}
	if writeErr != nil {
		return WrapExitError(ExitFailure, "writing output", writeErr)
	}
	exitErr := WrapExitError(ExitFailure, message, err)
	exitErr.reported = true
	return exitErr
}

// UsageError reports a bad invocation with exit code 2.
func (f *OutputFormatter) UsageError(message string) error {
	switch f.Format {
	case "json":
		_ = json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: ErrCodeUsage, Message: message},
		})
	case "yaml":
		_ = f.encodeYAML(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: ErrCodeUsage, Message: message},
		})
	default:
		fmt.Fprintf(f.Writer, "Error [%s]: %s\n", ErrCodeUsage, message)
	}
	exitErr := NewExitError(ExitCommandError, message)
	exitErr.reported = true
	return exitErr
}

// Notice writes a diagnostic line that must not end up in JSON/YAML output.
func (f *OutputFormatter) Notice(format string, args ...any) {
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// VerboseLog outputs a message only if verbose mode is enabled.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	f.Notice(format, args...)
}

// GetErrWriter returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

func (f *OutputFormatter) encodeYAML(v any) error {
	enc := yaml.NewEncoder(f.Writer)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
