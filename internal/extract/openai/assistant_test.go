package openai

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"decklens/internal/core"
	"decklens/internal/extract"
)

// fakeAssistantAPI simulates the assistants surface: file upload, vector
// store, assistant, thread, run polling, messages, and deletions.
type fakeAssistantAPI struct {
	mu            sync.Mutex
	pollsToFinish int
	finalStatus   string
	polls         int
	deleted       []string
}

func (f *fakeAssistantAPI) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()

	// Go 1.21's ServeMux has no method-prefixed patterns, so register by
	// path and check the method inside the handler.
	handle := func(method, path string, h http.HandlerFunc) {
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			if r.Method != method {
				http.NotFound(w, r)
				return
			}
			h(w, r)
		})
	}

	handle(http.MethodPost, "/files", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		require.Equal(t, "assistants", r.FormValue("purpose"))
		_, _ = w.Write([]byte(`{"id":"file-1"}`))
	})
	handle(http.MethodPost, "/vector_stores", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "assistants=v2", r.Header.Get("OpenAI-Beta"))
		_, _ = w.Write([]byte(`{"id":"vs-1"}`))
	})
	handle(http.MethodPost, "/assistants", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"asst-1"}`))
	})
	handle(http.MethodPost, "/threads", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"thread-1"}`))
	})
	handle(http.MethodPost, "/threads/thread-1/runs", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"run-1","status":"queued"}`))
	})
	handle(http.MethodGet, "/threads/thread-1/runs/run-1", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.polls++
		done := f.polls >= f.pollsToFinish
		f.mu.Unlock()
		if done {
			_, _ = w.Write([]byte(`{"id":"run-1","status":"` + f.finalStatus + `"}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"run-1","status":"in_progress"}`))
	})
	handle(http.MethodGet, "/threads/thread-1/messages", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"role":"assistant","content":[{"type":"text","text":{"value":"{\"company_name\":\"Acme\"}"}}]}]}`))
	})
	handle(http.MethodDelete, "/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.deleted = append(f.deleted, r.URL.Path)
		f.mu.Unlock()
		_, _ = w.Write([]byte(`{"deleted":true}`))
	})

	return mux
}

func (f *fakeAssistantAPI) deletedPaths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

func newRunProvider(t *testing.T, api *fakeAssistantAPI, maxAttempts int) *Provider {
	t.Helper()
	srv := httptest.NewServer(api.handler(t))
	t.Cleanup(srv.Close)

	p := New(Config{
		APIKey:          "sk-test",
		PollInterval:    time.Millisecond,
		PollMaxAttempts: maxAttempts,
		Logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	p.SetBaseURL(srv.URL)
	return p
}

func TestExtractWithRun_Completes(t *testing.T) {
	api := &fakeAssistantAPI{pollsToFinish: 2, finalStatus: "completed"}
	p := newRunProvider(t, api, 10)

	out, err := p.ExtractWithRun(context.Background(), testFile(), extract.DefaultOptions("gpt-4o-mini"))
	require.NoError(t, err)
	assert.Equal(t, `{"company_name":"Acme"}`, out)

	// Every transient resource is released, newest first.
	assert.Equal(t, []string{
		"/threads/thread-1",
		"/assistants/asst-1",
		"/vector_stores/vs-1",
		"/files/file-1",
	}, api.deletedPaths())
}

func TestExtractWithRun_PollingBudgetExhausted(t *testing.T) {
	api := &fakeAssistantAPI{pollsToFinish: 1000, finalStatus: "completed"}
	p := newRunProvider(t, api, 3)

	_, err := p.ExtractWithRun(context.Background(), testFile(), extract.DefaultOptions("gpt-4o-mini"))
	require.Error(t, err)

	apiErr := &core.APIError{}
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, core.ErrorTypeTimeout, apiErr.Type, "a stuck run is a timeout, not an upstream failure")
	assert.Equal(t, http.StatusGatewayTimeout, apiErr.HTTPStatusCode())

	// Cleanup still ran despite the timeout.
	assert.Len(t, api.deletedPaths(), 4)
}

func TestExtractWithRun_RunFails(t *testing.T) {
	api := &fakeAssistantAPI{pollsToFinish: 1, finalStatus: "failed"}
	p := newRunProvider(t, api, 10)

	_, err := p.ExtractWithRun(context.Background(), testFile(), extract.DefaultOptions("gpt-4o-mini"))
	require.Error(t, err)

	apiErr := &core.APIError{}
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, core.ErrorTypeUpstream, apiErr.Type)
	assert.Contains(t, apiErr.Message, "failed")
	assert.Len(t, api.deletedPaths(), 4)
}

func TestExtractWithRun_ContextCancellation(t *testing.T) {
	api := &fakeAssistantAPI{pollsToFinish: 1000, finalStatus: "completed"}
	p := newRunProvider(t, api, 1000)
	p.pollInterval = 50 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := p.ExtractWithRun(ctx, testFile(), extract.DefaultOptions("gpt-4o-mini"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	// Cleanup runs on its own deadline, detached from the request context.
	assert.Len(t, api.deletedPaths(), 4)
}
