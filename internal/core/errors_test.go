package core

import (
	"errors"
	"net/http"
	"testing"
)

func TestAPIError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *APIError
		expected string
	}{
		{
			name: "error with upstream",
			err: &APIError{
				Type:     ErrorTypeUpstream,
				Message:  "model call failed",
				Upstream: "openai",
			},
			expected: "[openai] upstream_error: model call failed",
		},
		{
			name: "error without upstream",
			err: &APIError{
				Type:    ErrorTypeInvalidRequest,
				Message: "missing file",
			},
			expected: "invalid_request_error: missing file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestAPIError_Unwrap(t *testing.T) {
	originalErr := errors.New("original error")
	apiErr := &APIError{
		Type:    ErrorTypeUpstream,
		Message: "wrapped error",
		Err:     originalErr,
	}

	if unwrapped := apiErr.Unwrap(); unwrapped != originalErr {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, originalErr)
	}
}

func TestAPIError_HTTPStatusCode(t *testing.T) {
	tests := []struct {
		name     string
		err      *APIError
		expected int
	}{
		{"explicit status wins", &APIError{Type: ErrorTypeUpstream, StatusCode: http.StatusInternalServerError}, http.StatusInternalServerError},
		{"invalid request defaults to 400", &APIError{Type: ErrorTypeInvalidRequest}, http.StatusBadRequest},
		{"authentication defaults to 401", &APIError{Type: ErrorTypeAuthentication}, http.StatusUnauthorized},
		{"method defaults to 405", &APIError{Type: ErrorTypeMethod}, http.StatusMethodNotAllowed},
		{"upstream defaults to 502", &APIError{Type: ErrorTypeUpstream}, http.StatusBadGateway},
		{"timeout defaults to 504", &APIError{Type: ErrorTypeTimeout}, http.StatusGatewayTimeout},
		{"internal defaults to 500", &APIError{Type: ErrorTypeInternal}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.HTTPStatusCode(); got != tt.expected {
				t.Errorf("HTTPStatusCode() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestNewNotFoundError(t *testing.T) {
	err := NewNotFoundError("no extraction with id abc")

	if err.Type != ErrorTypeInvalidRequest {
		t.Errorf("Type = %v, want %v", err.Type, ErrorTypeInvalidRequest)
	}
	if got := err.HTTPStatusCode(); got != http.StatusNotFound {
		t.Errorf("HTTPStatusCode() = %d, want %d", got, http.StatusNotFound)
	}
}

func TestParseUpstreamError(t *testing.T) {
	tests := []struct {
		name           string
		statusCode     int
		body           string
		expectedType   ErrorType
		expectedStatus int
		expectedMsg    string
	}{
		{
			name:           "openai-style error body",
			statusCode:     http.StatusBadRequest,
			body:           `{"error":{"message":"invalid file format","type":"invalid_request_error"}}`,
			expectedType:   ErrorTypeUpstream,
			expectedStatus: http.StatusInternalServerError,
			expectedMsg:    "invalid file format",
		},
		{
			name:           "plain text body",
			statusCode:     http.StatusServiceUnavailable,
			body:           "service unavailable",
			expectedType:   ErrorTypeUpstream,
			expectedStatus: http.StatusBadGateway,
			expectedMsg:    "service unavailable",
		},
		{
			name:           "credential rejection maps to 500",
			statusCode:     http.StatusUnauthorized,
			body:           `{"error":{"message":"invalid api key"}}`,
			expectedType:   ErrorTypeUpstream,
			expectedStatus: http.StatusInternalServerError,
			expectedMsg:    "upstream rejected credentials: invalid api key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ParseUpstreamError("openai", tt.statusCode, []byte(tt.body), nil)
			if err.Type != tt.expectedType {
				t.Errorf("Type = %v, want %v", err.Type, tt.expectedType)
			}
			if err.HTTPStatusCode() != tt.expectedStatus {
				t.Errorf("HTTPStatusCode() = %d, want %d", err.HTTPStatusCode(), tt.expectedStatus)
			}
			if err.Message != tt.expectedMsg {
				t.Errorf("Message = %q, want %q", err.Message, tt.expectedMsg)
			}
		})
	}
}
