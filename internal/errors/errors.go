// Package errors provides the application-wide error sum type for the mesh
// telemetry consolidator, narrowed from the teacher's general-purpose
// AppError down to the five kinds this pipeline actually raises.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppErrorType classifies an AppError the way spec.md §7 names it: the
// source's boxed dyn Error trait becomes this explicit sum.
type AppErrorType string

const (
	// ConfigError is raised at startup only: a missing required env var.
	ConfigError AppErrorType = "CONFIG_ERROR"
	// NetworkError wraps an outbound HTTP failure (tracing backend or
	// orchestrator API); it fails the whole request.
	NetworkError AppErrorType = "NETWORK_ERROR"
	// DeserializeError wraps malformed JSON from the tracing backend; it
	// fails the whole request. Malformed log lines use ParseLogError
	// instead and are dropped silently rather than failing the request.
	DeserializeError AppErrorType = "DESERIALIZE_ERROR"
	// ParseLogError wraps a malformed sidecar access-log line; only that
	// line is skipped, never the whole request.
	ParseLogError AppErrorType = "PARSE_LOG_ERROR"
	// ParseEnumError wraps an unrecognized HTTP method, log record type, or
	// dependency type string.
	ParseEnumError AppErrorType = "PARSE_ENUM_ERROR"
)

// AppError is the sum type returned by every pipeline component.
type AppError struct {
	Err        error        `json:"-"`
	Type       AppErrorType `json:"type"`
	Message    string       `json:"message"`
	Details    string       `json:"details,omitempty"`
	StatusCode int          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s - %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError mirrors the teacher's NewAppError constructor: the type
// decides the HTTP status, matching its status-code switch.
func NewAppError(errorType AppErrorType, message, details string, err error) *AppError {
	appErr := &AppError{
		Type:    errorType,
		Message: message,
		Details: details,
		Err:     err,
	}

	switch errorType {
	case ConfigError:
		// Only ever surfaced at startup, before the HTTP server exists;
		// the status code is unused but kept for symmetry.
		appErr.StatusCode = http.StatusInternalServerError
	case NetworkError, DeserializeError:
		// Unrecoverable step failures propagate as request failure
		// (spec.md §6: POST / returns 400 with empty body on any
		// pipeline error).
		appErr.StatusCode = http.StatusBadRequest
	case ParseLogError:
		appErr.StatusCode = http.StatusBadRequest
	case ParseEnumError:
		appErr.StatusCode = http.StatusBadRequest
	default:
		appErr.StatusCode = http.StatusInternalServerError
	}

	return appErr
}

func NewConfigError(message string, err error) *AppError {
	return NewAppError(ConfigError, message, "", err)
}

func NewNetworkError(message string, err error) *AppError {
	return NewAppError(NetworkError, message, "", err)
}

func NewDeserializeError(message string, err error) *AppError {
	return NewAppError(DeserializeError, message, "", err)
}

func NewParseLogError(message, details string) *AppError {
	return NewAppError(ParseLogError, message, details, nil)
}

func NewParseEnumError(message, details string) *AppError {
	return NewAppError(ParseEnumError, message, details, nil)
}

// IsAppError unwraps err into an *AppError, matching the teacher's
// errors.As-based helper.
func IsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

