// Package restclient provides the base HTTP client for external APIs with:
// - Request marshaling/unmarshaling
// - Retries with exponential backoff on transient failures
// - Standardized upstream error parsing
package restclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"time"

	"decklens/internal/core"
	"decklens/internal/httpclient"
)

// Config holds configuration for the REST client
type Config struct {
	// Name identifies the upstream for error messages ("openai", "backend")
	Name string

	// BaseURL is the API base URL
	BaseURL string

	// Retry configuration
	MaxRetries     int           // Maximum number of retry attempts (default: 3)
	InitialBackoff time.Duration // Initial backoff duration (default: 1s)
	MaxBackoff     time.Duration // Maximum backoff duration (default: 30s)
	BackoffFactor  float64       // Backoff multiplier (default: 2.0)
}

// DefaultConfig returns default client configuration
func DefaultConfig(name, baseURL string) Config {
	return Config{
		Name:           name,
		BaseURL:        baseURL,
		MaxRetries:     3,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		BackoffFactor:  2.0,
	}
}

// HeaderSetter is a function that sets headers on an HTTP request
type HeaderSetter func(req *http.Request)

// Client is a base HTTP client for external JSON APIs
type Client struct {
	httpClient   *http.Client
	config       Config
	headerSetter HeaderSetter
}

// New creates a new client with the given configuration
func New(config Config, headerSetter HeaderSetter) *Client {
	return &Client{
		httpClient:   httpclient.NewDefault(),
		config:       config,
		headerSetter: headerSetter,
	}
}

// NewWithHTTPClient creates a new client with a custom HTTP client
func NewWithHTTPClient(httpClient *http.Client, config Config, headerSetter HeaderSetter) *Client {
	return &Client{
		httpClient:   httpClient,
		config:       config,
		headerSetter: headerSetter,
	}
}

// SetBaseURL updates the base URL
func (c *Client) SetBaseURL(url string) {
	c.config.BaseURL = url
}

// BaseURL returns the current base URL
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// Request represents an HTTP request to be made
type Request struct {
	Method   string
	Endpoint string
	Body     interface{} // JSON marshaled when not nil
	Headers  map[string]string
}

// Response represents an HTTP response
type Response struct {
	StatusCode int
	Body       []byte
}

// Do executes a request with retries, then unmarshals the response into result.
func (c *Client) Do(ctx context.Context, req Request, result interface{}) error {
	resp, err := c.DoRaw(ctx, req)
	if err != nil {
		return err
	}

	if result != nil {
		if err := json.Unmarshal(resp.Body, result); err != nil {
			return core.NewUpstreamError(c.config.Name, http.StatusBadGateway, "failed to unmarshal response: "+err.Error(), err)
		}
	}

	return nil
}

// DoRaw executes a request with retries, returning the raw response.
func (c *Client) DoRaw(ctx context.Context, req Request) (*Response, error) {
	var lastErr error
	maxAttempts := c.config.MaxRetries + 1
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.backoff(attempt)):
			}
		}

		resp, err := c.doRequest(ctx, req)
		if err != nil {
			// Network failure: retry unless the context is done.
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}

		if isRetryable(resp.StatusCode) {
			lastErr = core.ParseUpstreamError(c.config.Name, resp.StatusCode, resp.Body, nil)
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, core.ParseUpstreamError(c.config.Name, resp.StatusCode, resp.Body, nil)
		}

		return resp, nil
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, core.NewUpstreamError(c.config.Name, http.StatusBadGateway, "request failed after retries", nil)
}

// DoUnchecked executes a single request and returns the response regardless
// of status code. Callers that need their own status policy (e.g. mapping an
// upstream 401 to a caller authentication failure) use this instead of Do.
func (c *Client) DoUnchecked(ctx context.Context, req Request) (*Response, error) {
	return c.doRequest(ctx, req)
}

// DoMultipart executes a multipart/form-data upload (no retries: the body is
// consumed on send) and unmarshals the response into result.
func (c *Client) DoMultipart(ctx context.Context, endpoint string, fields map[string]string, fileField, filename string, fileData []byte, result interface{}) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return core.NewInternalError("failed to write multipart field", err)
		}
	}
	fw, err := w.CreateFormFile(fileField, filename)
	if err != nil {
		return core.NewInternalError("failed to create multipart file field", err)
	}
	if _, err := fw.Write(fileData); err != nil {
		return core.NewInternalError("failed to write multipart file data", err)
	}
	if err := w.Close(); err != nil {
		return core.NewInternalError("failed to finalize multipart body", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+endpoint, &buf)
	if err != nil {
		return core.NewInternalError("failed to create request", err)
	}
	httpReq.Header.Set("Content-Type", w.FormDataContentType())
	if c.headerSetter != nil {
		c.headerSetter(httpReq)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return core.NewUpstreamError(c.config.Name, http.StatusBadGateway, "failed to send request: "+err.Error(), err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return core.NewUpstreamError(c.config.Name, http.StatusBadGateway, "failed to read response: "+err.Error(), err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return core.ParseUpstreamError(c.config.Name, resp.StatusCode, body, nil)
	}

	if result != nil {
		if err := json.Unmarshal(body, result); err != nil {
			return core.NewUpstreamError(c.config.Name, http.StatusBadGateway, "failed to unmarshal response: "+err.Error(), err)
		}
	}
	return nil
}

// doRequest executes a single HTTP request without retries
func (c *Client) doRequest(ctx context.Context, req Request) (*Response, error) {
	httpReq, err := c.buildRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, core.NewUpstreamError(c.config.Name, http.StatusBadGateway, "failed to send request: "+err.Error(), err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, core.NewUpstreamError(c.config.Name, http.StatusBadGateway, "failed to read response: "+err.Error(), err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       body,
	}, nil
}

// buildRequest creates an HTTP request from a Request
func (c *Client) buildRequest(ctx context.Context, req Request) (*http.Request, error) {
	url := c.config.BaseURL + req.Endpoint

	var bodyReader io.Reader
	if req.Body != nil {
		bodyBytes, err := json.Marshal(req.Body)
		if err != nil {
			return nil, core.NewInternalError("failed to marshal request", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, url, bodyReader)
	if err != nil {
		return nil, core.NewInternalError("failed to create request", err)
	}

	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	// Forward the inbound request ID so upstream logs correlate.
	if requestID := core.GetRequestID(ctx); requestID != "" {
		httpReq.Header.Set("X-Client-Request-Id", requestID)
	}

	if c.headerSetter != nil {
		c.headerSetter(httpReq)
	}

	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	return httpReq, nil
}

// backoff calculates the backoff duration for a given attempt
func (c *Client) backoff(attempt int) time.Duration {
	d := float64(c.config.InitialBackoff) * math.Pow(c.config.BackoffFactor, float64(attempt-1))
	if d > float64(c.config.MaxBackoff) {
		d = float64(c.config.MaxBackoff)
	}
	return time.Duration(d)
}

// isRetryable returns true if the status code indicates a transient failure
func isRetryable(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests ||
		statusCode == http.StatusServiceUnavailable ||
		statusCode == http.StatusBadGateway ||
		statusCode == http.StatusGatewayTimeout
}
