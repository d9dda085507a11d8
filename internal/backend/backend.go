// Package backend is the client for the hosted backend that owns caller
// accounts and deck object storage. Two privilege levels exist: the anon key
// plus a caller token for identity checks, and the service-role key for
// storage operations. The service-role path bypasses per-row access rules, so
// it is only ever exercised after the caller's identity has been verified,
// once per request, never cached.
package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"decklens/internal/core"
	"decklens/internal/restclient"
)

// Config holds hosted backend connection settings.
type Config struct {
	// URL is the backend base URL, e.g. https://project.example.co
	URL string
	// ServiceRoleKey is the elevated-privilege key for storage operations
	ServiceRoleKey string
	// AnonKey is the public key used alongside caller tokens
	AnonKey string
	// Bucket is the storage bucket holding uploaded decks
	Bucket string
}

// Client talks to the hosted backend's auth and storage APIs.
type Client struct {
	rest           *restclient.Client
	serviceRoleKey string
	anonKey        string
	bucket         string
}

// New creates a backend client.
func New(cfg Config) (*Client, error) {
	return NewWithHTTPClient(cfg, nil)
}

// NewWithHTTPClient creates a backend client with a custom HTTP client.
func NewWithHTTPClient(cfg Config, httpClient *http.Client) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("backend URL is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("backend bucket is required")
	}

	rcfg := restclient.DefaultConfig("backend", strings.TrimRight(cfg.URL, "/"))
	var rest *restclient.Client
	if httpClient != nil {
		rest = restclient.NewWithHTTPClient(httpClient, rcfg, nil)
	} else {
		rest = restclient.New(rcfg, nil)
	}

	return &Client{
		rest:           rest,
		serviceRoleKey: cfg.ServiceRoleKey,
		anonKey:        cfg.AnonKey,
		bucket:         cfg.Bucket,
	}, nil
}

// SetBaseURL allows configuring a custom base URL (used by tests).
func (c *Client) SetBaseURL(url string) {
	c.rest.SetBaseURL(strings.TrimRight(url, "/"))
}

// VerifyToken checks a caller's bearer token against the backend's auth
// endpoint. It returns nil only for a live, valid token. Verification runs on
// every request; results are never cached.
func (c *Client) VerifyToken(ctx context.Context, token string) error {
	if token == "" {
		return core.NewAuthenticationError("missing authorization token")
	}

	resp, err := c.rest.DoUnchecked(ctx, restclient.Request{
		Method:   http.MethodGet,
		Endpoint: "/auth/v1/user",
		Headers: map[string]string{
			"Authorization": "Bearer " + token,
			"apikey":        c.anonKey,
		},
	})
	if err != nil {
		return err
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return core.NewAuthenticationError("invalid or expired token")
	default:
		return core.ParseUpstreamError("backend", resp.StatusCode, resp.Body, nil)
	}
}

type signRequest struct {
	ExpiresIn int `json:"expiresIn"`
}

type signResponse struct {
	SignedURL string `json:"signedURL"`
}

// SignObjectURL mints a time-limited signed URL for one storage object using
// the service-role key. Callers must have verified the requester first.
func (c *Client) SignObjectURL(ctx context.Context, filePath string, expiresIn time.Duration) (*core.SignedDownloadLink, error) {
	secs := int(expiresIn.Seconds())
	if secs <= 0 {
		secs = 60
	}

	var resp signResponse
	err := c.rest.Do(ctx, restclient.Request{
		Method:   http.MethodPost,
		Endpoint: "/storage/v1/object/sign/" + c.bucket + "/" + escapePath(filePath),
		Body:     signRequest{ExpiresIn: secs},
		Headers:  c.serviceHeaders(),
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.SignedURL == "" {
		return nil, core.NewUpstreamError("backend", http.StatusBadGateway, "storage returned no signed URL", nil)
	}

	return &core.SignedDownloadLink{
		URL:       c.rest.BaseURL() + "/storage/v1" + resp.SignedURL,
		ExpiresAt: time.Now().Add(time.Duration(secs) * time.Second),
	}, nil
}

// DownloadObject fetches a deck from storage with the service-role key.
func (c *Client) DownloadObject(ctx context.Context, filePath string) (*core.UploadedFile, error) {
	resp, err := c.rest.DoUnchecked(ctx, restclient.Request{
		Method:   http.MethodGet,
		Endpoint: "/storage/v1/object/" + c.bucket + "/" + escapePath(filePath),
		Headers:  c.serviceHeaders(),
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, core.NewInvalidRequestError("no such object: "+filePath, nil)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, core.ParseUpstreamError("backend", resp.StatusCode, resp.Body, nil)
	}

	name := filePath
	if i := strings.LastIndexByte(filePath, '/'); i >= 0 {
		name = filePath[i+1:]
	}
	return &core.UploadedFile{
		Filename:    name,
		ContentType: "application/pdf",
		Data:        resp.Body,
	}, nil
}

func (c *Client) serviceHeaders() map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + c.serviceRoleKey,
		"apikey":        c.serviceRoleKey,
	}
}

// escapePath escapes each path segment while keeping the separators.
func escapePath(p string) string {
	segments := strings.Split(p, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}
