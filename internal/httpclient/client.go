// Package httpclient builds the HTTP clients used for all outbound calls.
package httpclient

import (
	"net"
	"net/http"
	"os"
	"strconv"
	"time"
)

// ClientConfig holds configuration options for creating HTTP clients
type ClientConfig struct {
	// MaxIdleConns controls the maximum number of idle connections across all hosts
	MaxIdleConns int

	// MaxIdleConnsPerHost controls the maximum idle connections kept per host
	MaxIdleConnsPerHost int

	// IdleConnTimeout is how long an idle connection stays open
	IdleConnTimeout time.Duration

	// Timeout is the overall per-request time limit
	Timeout time.Duration

	// DialTimeout bounds connection establishment
	DialTimeout time.Duration

	// KeepAlive is the interval between TCP keep-alive probes
	KeepAlive time.Duration

	// TLSHandshakeTimeout bounds the TLS handshake
	TLSHandshakeTimeout time.Duration

	// ResponseHeaderTimeout bounds the wait for response headers
	ResponseHeaderTimeout time.Duration
}

// getEnvDuration reads a duration from an environment variable, returning the
// default if not set or invalid. Accepts plain integers (seconds) or Go
// duration strings (e.g. "2m30s").
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	if secs, err := strconv.Atoi(val); err == nil {
		return time.Duration(secs) * time.Second
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	return defaultVal
}

// DefaultConfig returns a ClientConfig tuned for document-extraction calls.
// A full deck analysis can take minutes on the model side, so the default
// request ceiling is generous. Overridable via environment variables
// (seconds, or Go duration format):
//   - HTTP_TIMEOUT: overall request timeout (default: 300)
//   - HTTP_RESPONSE_HEADER_TIMEOUT: wait for response headers (default: 300)
func DefaultConfig() ClientConfig {
	return ClientConfig{
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   100,
		IdleConnTimeout:       90 * time.Second,
		Timeout:               getEnvDuration("HTTP_TIMEOUT", 300*time.Second),
		DialTimeout:           30 * time.Second,
		KeepAlive:             30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: getEnvDuration("HTTP_RESPONSE_HEADER_TIMEOUT", 300*time.Second),
	}
}

// New creates a new HTTP client with the provided configuration.
// If config is nil, DefaultConfig() is used.
func New(config *ClientConfig) *http.Client {
	if config == nil {
		cfg := DefaultConfig()
		config = &cfg
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   config.DialTimeout,
			KeepAlive: config.KeepAlive,
		}).DialContext,
		MaxIdleConns:          config.MaxIdleConns,
		MaxIdleConnsPerHost:   config.MaxIdleConnsPerHost,
		IdleConnTimeout:       config.IdleConnTimeout,
		TLSHandshakeTimeout:   config.TLSHandshakeTimeout,
		ResponseHeaderTimeout: config.ResponseHeaderTimeout,
		ForceAttemptHTTP2:     true,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   config.Timeout,
	}
}

// NewDefault creates a new HTTP client with default configuration.
func NewDefault() *http.Client {
	return New(nil)
}
