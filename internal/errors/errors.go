package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error codes for categorizing errors
const (
	ErrConfig     = "CONFIG"
	ErrValidation = "VALIDATION"
	ErrNotFound   = "NOT_FOUND"
	ErrAuth       = "AUTH"
	ErrProvider   = "PROVIDER"
	ErrTransport  = "TRANSPORT"
	ErrSSH        = "SSH"
	ErrStorage    = "STORAGE"
	// ErrServer is a 5xx answer from a remote nexusnav server.
	ErrServer = "SERVER"
)

// Error represents a structured error with code, message, suggestion, and optional cause.
// Rendered for terminals as:
//
//	✗ <What failed>
//
//	  <Why it failed - technical details>
//
//	  <How to fix it - actionable steps>
//
// API responses use Message only; see Public.
type Error struct {
	Code       string
	Message    string
	Suggestion string
	Cause      error
}

// New creates a new structured error with the given code, message, and suggestion.
func New(code, message, suggestion string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Suggestion: suggestion,
	}
}

// Newf creates a structured error without a suggestion from a format string.
func Newf(code, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with a message, defaulting to ErrTransport code.
func Wrap(err error, message string) *Error {
	return &Error{
		Code:    ErrTransport,
		Message: message,
		Cause:   err,
	}
}

// WrapWithCode wraps an existing error with a specific code, message, and suggestion.
func WrapWithCode(err error, code, message, suggestion string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Suggestion: suggestion,
		Cause:      err,
	}
}

// Error implements the error interface with the terminal layout described on Error.
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("✗ %s\n", e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf("\n  %s\n", e.Cause.Error()))
	}

	if e.Suggestion != "" {
		b.WriteString(fmt.Sprintf("\n  %s\n", e.Suggestion))
	}

	return b.String()
}

// Unwrap returns the underlying cause for use with errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsCode checks if an error is a structured Error with the given code.
func IsCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var navErr *Error
	if errors.As(err, &navErr) {
		return navErr.Code == code
	}
	return false
}

// CodeOf returns the code of the outermost structured Error, or "" when err is not one.
func CodeOf(err error) string {
	var navErr *Error
	if errors.As(err, &navErr) {
		return navErr.Code
	}
	return ""
}

// Public returns a single-line, user-facing message for err.
// Structured errors yield their Message; anything else yields err.Error().
func Public(err error) string {
	if err == nil {
		return ""
	}
	var navErr *Error
	if errors.As(err, &navErr) {
		return navErr.Message
	}
	return err.Error()
}

// Detail is Public plus the first line of the cause, when there is one.
func Detail(err error) string {
	if err == nil {
		return ""
	}
	var navErr *Error
	if errors.As(err, &navErr) && navErr.Cause != nil {
		cause := Public(navErr.Cause)
		if i := strings.IndexByte(cause, '\n'); i >= 0 {
			cause = cause[:i]
		}
		return navErr.Message + ": " + cause
	}
	return Public(err)
}

// HTTPStatus maps an error to the HTTP status used by the API envelope.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case ErrValidation, ErrConfig:
		return http.StatusBadRequest
	case ErrAuth:
		return http.StatusUnauthorized
	case ErrNotFound:
		return http.StatusNotFound
	case ErrProvider, ErrTransport, ErrSSH:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
