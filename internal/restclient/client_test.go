package restclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"decklens/internal/core"
)

func testConfig(name, baseURL string) Config {
	cfg := DefaultConfig(name, baseURL)
	cfg.InitialBackoff = time.Millisecond
	cfg.MaxBackoff = 5 * time.Millisecond
	return cfg
}

func TestDo_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Test") != "set" {
			t.Errorf("expected header setter to run")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"abc"}`))
	}))
	defer srv.Close()

	client := New(testConfig("openai", srv.URL), func(req *http.Request) {
		req.Header.Set("X-Test", "set")
	})

	var out struct {
		ID string `json:"id"`
	}
	err := client.Do(context.Background(), Request{Method: http.MethodGet, Endpoint: "/thing"}, &out)
	if err != nil {
		t.Fatalf("Do() failed: %v", err)
	}
	if out.ID != "abc" {
		t.Errorf("unexpected response: %+v", out)
	}
}

func TestDoRaw_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := New(testConfig("openai", srv.URL), nil)

	resp, err := client.DoRaw(context.Background(), Request{Method: http.MethodGet, Endpoint: "/"})
	if err != nil {
		t.Fatalf("DoRaw() failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
}

func TestDoRaw_NonRetryableErrorSurfacesOnce(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad deck"}}`))
	}))
	defer srv.Close()

	client := New(testConfig("openai", srv.URL), nil)

	_, err := client.DoRaw(context.Background(), Request{Method: http.MethodPost, Endpoint: "/", Body: map[string]string{"a": "b"}})
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *core.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *core.APIError, got %T", err)
	}
	if apiErr.Message != "bad deck" {
		t.Errorf("expected parsed upstream message, got %q", apiErr.Message)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("expected single attempt for 400, got %d", got)
	}
}

func TestDoRaw_ContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := testConfig("openai", srv.URL)
	// Force the retry wait to block on the context. MaxBackoff must rise too,
	// or backoff() caps the wait below the deadline.
	cfg.InitialBackoff = time.Minute
	cfg.MaxBackoff = time.Minute
	client := New(cfg, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.DoRaw(ctx, Request{Method: http.MethodGet, Endpoint: "/"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context deadline error, got %v", err)
	}
}

func TestDoMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("ParseMultipartForm: %v", err)
		}
		if r.FormValue("purpose") != "assistants" {
			t.Errorf("missing purpose field")
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("FormFile: %v", err)
		}
		defer func() { _ = f.Close() }()
		if hdr.Filename != "deck.pdf" {
			t.Errorf("unexpected filename %q", hdr.Filename)
		}
		_, _ = w.Write([]byte(`{"id":"file-123"}`))
	}))
	defer srv.Close()

	client := New(testConfig("openai", srv.URL), nil)

	var out struct {
		ID string `json:"id"`
	}
	err := client.DoMultipart(context.Background(), "/files",
		map[string]string{"purpose": "assistants"},
		"file", "deck.pdf", []byte("%PDF-1.4 fake"), &out)
	if err != nil {
		t.Fatalf("DoMultipart() failed: %v", err)
	}
	if out.ID != "file-123" {
		t.Errorf("unexpected id %q", out.ID)
	}
}
