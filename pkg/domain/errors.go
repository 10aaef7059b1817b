package domain

import (
	"errors"
	"fmt"
)

// Error kinds per spec §7. Connectors and the session/command layers raise
// only these; HTTP-framework-specific exceptions never surface from the
// core pipeline. The ingress adapter is the single place that maps these to
// HTTP status codes.

// InvalidRequestError indicates a request failed ingress validation.
// Maps to HTTP 400.
type InvalidRequestError struct {
	Param   string
	Code    string
	Message string
}

func (e *InvalidRequestError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("invalid request (param %q, code %s): %s", e.Param, e.Code, e.Message)
	}
	return fmt.Sprintf("invalid request (code %s): %s", e.Code, e.Message)
}

// AuthenticationError indicates missing or invalid credentials. Maps to 401.
type AuthenticationError struct {
	Message string
	Cause   error
}

func (e *AuthenticationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("authentication error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("authentication error: %s", e.Message)
}

func (e *AuthenticationError) Unwrap() error { return e.Cause }

// BackendError is an upstream non-2xx or unparseable response. StatusCode is
// forwarded to the caller when informative, else the ingress adapter maps it
// to 502.
type BackendError struct {
	Backend    string
	Code       string
	StatusCode int
	Message    string
	Cause      error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend %s error (%d, %s): %s", e.Backend, e.StatusCode, e.Code, e.Message)
}

func (e *BackendError) Unwrap() error { return e.Cause }

// ServiceUnavailableError indicates a network or connect failure. Maps to 503.
type ServiceUnavailableError struct {
	Backend string
	Cause   error
}

func (e *ServiceUnavailableError) Error() string {
	return fmt.Sprintf("backend %s unavailable: %v", e.Backend, e.Cause)
}

func (e *ServiceUnavailableError) Unwrap() error { return e.Cause }

// ToolCallReactorError signals programmer misuse of the reactor's handler
// registry (e.g. duplicate registration). Surfaces as HTTP 500.
type ToolCallReactorError struct {
	Message string
}

func (e *ToolCallReactorError) Error() string {
	return fmt.Sprintf("tool call reactor error: %s", e.Message)
}

// IsRetryableFailover reports whether an error should cause the failover
// router to advance to the next route element (spec §7: only BackendError
// and ServiceUnavailableError are retried by failover).
func IsRetryableFailover(err error) bool {
	var be *BackendError
	var su *ServiceUnavailableError
	return errors.As(err, &be) || errors.As(err, &su)
}

// StatusCode maps a domain error to an HTTP status code for the ingress
// adapter. Unknown errors default to 500.
func StatusCode(err error) int {
	var invalid *InvalidRequestError
	var auth *AuthenticationError
	var be *BackendError
	var su *ServiceUnavailableError
	var reactor *ToolCallReactorError

	switch {
	case errors.As(err, &invalid):
		return 400
	case errors.As(err, &auth):
		return 401
	case errors.As(err, &be):
		if be.StatusCode >= 400 && be.StatusCode < 600 {
			return be.StatusCode
		}
		return 502
	case errors.As(err, &su):
		return 503
	case errors.As(err, &reactor):
		return 500
	default:
		return 500
	}
}
