// Package core provides shared types and the error taxonomy for the
// deck extraction service.
package core

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// ErrorType classifies an APIError for clients and for status mapping.
type ErrorType string

const (
	// ErrorTypeInvalidRequest indicates a client input error (400)
	ErrorTypeInvalidRequest ErrorType = "invalid_request_error"
	// ErrorTypeAuthentication indicates a missing or invalid caller credential (401)
	ErrorTypeAuthentication ErrorType = "authentication_error"
	// ErrorTypeMethod indicates an unsupported HTTP verb (405)
	ErrorTypeMethod ErrorType = "method_error"
	// ErrorTypeUpstream indicates an external API or storage failure (502)
	ErrorTypeUpstream ErrorType = "upstream_error"
	// ErrorTypeTimeout indicates an exhausted polling or deadline wait (504)
	ErrorTypeTimeout ErrorType = "timeout_error"
	// ErrorTypeInternal indicates an unexpected internal failure (500)
	ErrorTypeInternal ErrorType = "internal_error"
)

// APIError is the base error type for every failure the service surfaces.
type APIError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	StatusCode int       `json:"status_code"`
	Upstream   string    `json:"upstream,omitempty"`
	// Original error for debugging (not exposed to clients)
	Err error `json:"-"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.Upstream != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Upstream, e.Type, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements the error unwrapping interface
func (e *APIError) Unwrap() error {
	return e.Err
}

// HTTPStatusCode returns the HTTP status to answer with for this error.
func (e *APIError) HTTPStatusCode() int {
	if e.StatusCode != 0 {
		return e.StatusCode
	}
	switch e.Type {
	case ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case ErrorTypeAuthentication:
		return http.StatusUnauthorized
	case ErrorTypeMethod:
		return http.StatusMethodNotAllowed
	case ErrorTypeUpstream:
		return http.StatusBadGateway
	case ErrorTypeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// ToJSON converts the error to the wire shape { "error": ..., "details": ... }.
func (e *APIError) ToJSON() map[string]interface{} {
	out := map[string]interface{}{
		"error": e.Message,
	}
	if e.Upstream != "" {
		out["details"] = map[string]interface{}{
			"type":     e.Type,
			"upstream": e.Upstream,
		}
	} else {
		out["details"] = map[string]interface{}{
			"type": e.Type,
		}
	}
	return out
}

// NewInvalidRequestError creates a client input error (400)
func NewInvalidRequestError(message string, err error) *APIError {
	return &APIError{
		Type:       ErrorTypeInvalidRequest,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Err:        err,
	}
}

// NewAuthenticationError creates an authentication error (401)
func NewAuthenticationError(message string) *APIError {
	return &APIError{
		Type:       ErrorTypeAuthentication,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

// NewNotFoundError creates a missing-resource error (404). It shares the
// invalid_request type: the caller referenced something that does not exist.
func NewNotFoundError(message string) *APIError {
	return &APIError{
		Type:       ErrorTypeInvalidRequest,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

// NewMethodError creates an unsupported-verb error (405)
func NewMethodError(method string) *APIError {
	return &APIError{
		Type:       ErrorTypeMethod,
		Message:    "method not allowed: " + method,
		StatusCode: http.StatusMethodNotAllowed,
	}
}

// NewUpstreamError creates an upstream failure error carrying the upstream
// name and the status it answered with.
func NewUpstreamError(upstream string, statusCode int, message string, err error) *APIError {
	return &APIError{
		Type:       ErrorTypeUpstream,
		Message:    message,
		StatusCode: statusCode,
		Upstream:   upstream,
		Err:        err,
	}
}

// NewTimeoutError creates a timeout error (504), distinct from upstream
// failure so callers can tell a stuck run from a failed one.
func NewTimeoutError(upstream string, message string) *APIError {
	return &APIError{
		Type:       ErrorTypeTimeout,
		Message:    message,
		StatusCode: http.StatusGatewayTimeout,
		Upstream:   upstream,
	}
}

// NewInternalError creates an internal error (500)
func NewInternalError(message string, err error) *APIError {
	return &APIError{
		Type:       ErrorTypeInternal,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Err:        err,
	}
}

// ParseUpstreamError turns a non-success upstream response into an APIError.
// It extracts the message from OpenAI-style {"error":{"message":...}} bodies
// when present, falling back to the raw body.
func ParseUpstreamError(upstream string, statusCode int, body []byte, originalErr error) *APIError {
	var errorResponse struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    string `json:"code"`
		} `json:"error"`
	}

	message := string(body)
	if err := json.Unmarshal(body, &errorResponse); err == nil && errorResponse.Error.Message != "" {
		message = errorResponse.Error.Message
	}

	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		// Misconfigured credentials on our side surface as a server failure,
		// not as a client auth error.
		return &APIError{
			Type:       ErrorTypeUpstream,
			Message:    "upstream rejected credentials: " + message,
			StatusCode: http.StatusInternalServerError,
			Upstream:   upstream,
			Err:        originalErr,
		}
	case statusCode >= 400 && statusCode < 500:
		return NewUpstreamError(upstream, http.StatusInternalServerError, message, originalErr)
	default:
		return NewUpstreamError(upstream, http.StatusBadGateway, message, originalErr)
	}
}
