package cli

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"strings"

	"github.com/nexusnav/nexusnav/internal/errors"
	"github.com/nexusnav/nexusnav/internal/probe"
)

// Machine mode flag - when true, outputs JSON and suppresses human-friendly decorations
var machineMode bool

// MachineMode returns true if machine-readable output is enabled
func MachineMode() bool {
	return machineMode
}

// JSONEnvelope wraps command output in a consistent structure for machine parsing.
// All --json output should use this envelope.
type JSONEnvelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *JSONError  `json:"error,omitempty"`
}

// JSONError provides structured error information for machine parsing.
type JSONError struct {
	Code       string      `json:"code"`
	Message    string      `json:"message"`
	Suggestion string      `json:"suggestion,omitempty"`
	Details    interface{} `json:"details,omitempty"`
}

// Error codes for machine-readable output.
const (
	ErrCodeConfigNotFound = "CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "CONFIG_INVALID"
	ErrCodeInvalidInput   = "INVALID_INPUT"
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeAuthRequired   = "AUTH_REQUIRED"
	ErrCodeProviderFailed = "PROVIDER_FAILED"
	ErrCodeServerDown     = "SERVER_UNREACHABLE"
	ErrCodeServerError    = "SERVER_ERROR"
	ErrCodeSSHFailed      = "SSH_FAILED"
	ErrCodeStorageFailed  = "STORAGE_FAILED"
	ErrCodeProbeTimeout   = "PROBE_TIMEOUT"
	ErrCodeProbeFailed    = "PROBE_FAILED"
	ErrCodeUnknown        = "UNKNOWN"
)

// WriteJSONSuccess writes a successful response with data to the writer.
func WriteJSONSuccess(w io.Writer, data interface{}) error {
	env := JSONEnvelope{
		Success: true,
		Data:    data,
	}
	return writeJSONEnvelope(w, env)
}

// WriteJSONError writes an error response to the writer.
func WriteJSONError(w io.Writer, code, message, suggestion string, details interface{}) error {
	env := JSONEnvelope{
		Success: false,
		Error: &JSONError{
			Code:       code,
			Message:    message,
			Suggestion: suggestion,
			Details:    details,
		},
	}
	return writeJSONEnvelope(w, env)
}

// WriteJSONFromError converts a Go error to a JSON error response.
func WriteJSONFromError(w io.Writer, err error) error {
	env := JSONEnvelope{
		Success: false,
		Error:   ErrorToJSON(err),
	}
	return writeJSONEnvelope(w, env)
}

// writeJSONEnvelope writes the envelope with consistent formatting.
func writeJSONEnvelope(w io.Writer, env JSONEnvelope) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(env)
}

// ErrorToJSON converts a Go error to a JSONError with appropriate code mapping.
func ErrorToJSON(err error) *JSONError {
	if err == nil {
		return nil
	}

	var probeErr *probe.ProbeError
	if stderrors.As(err, &probeErr) {
		return probeErrorToJSON(probeErr)
	}

	var navErr *errors.Error
	if stderrors.As(err, &navErr) {
		return &JSONError{
			Code:       mapErrorCode(navErr.Code, navErr.Message),
			Message:    navErr.Message,
			Suggestion: navErr.Suggestion,
		}
	}

	return &JSONError{
		Code:    ErrCodeUnknown,
		Message: err.Error(),
	}
}

// mapErrorCode maps internal error codes to machine-readable codes.
func mapErrorCode(internalCode, message string) string {
	switch internalCode {
	case errors.ErrConfig:
		msgLower := strings.ToLower(message)
		if strings.Contains(msgLower, "not found") || strings.Contains(msgLower, "cannot find") {
			return ErrCodeConfigNotFound
		}
		return ErrCodeConfigInvalid
	case errors.ErrValidation:
		return ErrCodeInvalidInput
	case errors.ErrNotFound:
		return ErrCodeNotFound
	case errors.ErrAuth:
		return ErrCodeAuthRequired
	case errors.ErrProvider:
		return ErrCodeProviderFailed
	case errors.ErrTransport:
		return ErrCodeServerDown
	case errors.ErrServer:
		return ErrCodeServerError
	case errors.ErrSSH:
		return ErrCodeSSHFailed
	case errors.ErrStorage:
		return ErrCodeStorageFailed
	}
	return ErrCodeUnknown
}

// probeErrorToJSON keeps the failure reason of a reachability probe.
func probeErrorToJSON(probeErr *probe.ProbeError) *JSONError {
	code := ErrCodeProbeFailed
	suggestion := "Check the service is running and the card URL is right"
	if probeErr.Reason == probe.FailTimeout {
		code = ErrCodeProbeTimeout
		suggestion = "The service did not answer in time; raise probe.timeout or check the network"
	}

	return &JSONError{
		Code:       code,
		Message:    probeErr.Error(),
		Suggestion: suggestion,
		Details: map[string]interface{}{
			"reason": probeErr.Reason.String(),
			"url":    probeErr.URL,
		},
	}
}
