package openai

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"decklens/internal/core"
	"decklens/internal/extract"
)

func testFile() *core.UploadedFile {
	return &core.UploadedFile{
		Filename:    "deck.pdf",
		ContentType: "application/pdf",
		Data:        []byte("%PDF-1.4 fake deck"),
	}
}

func newTestProvider(t *testing.T, handler http.Handler) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p := New(Config{
		APIKey:          "sk-test",
		PollInterval:    time.Millisecond,
		PollMaxAttempts: 5,
		Logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	p.SetBaseURL(srv.URL)
	return p
}

func TestExtract_ChatCompletion(t *testing.T) {
	var captured map[string]any
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &captured))

		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"company_name\":\"Acme\"}"}}]}`))
	}))

	out, err := p.Extract(context.Background(), testFile(), extract.DefaultOptions("gpt-4o-mini"))
	require.NoError(t, err)
	assert.Equal(t, `{"company_name":"Acme"}`, out)

	// Temperature is pinned to zero and the output format hint is set.
	assert.Equal(t, float64(0), captured["temperature"])
	rf := captured["response_format"].(map[string]any)
	assert.Equal(t, "json_object", rf["type"])

	// The file travels inline as a base64 data URI.
	msgs := captured["messages"].([]any)
	require.Len(t, msgs, 2)
	user := msgs[1].(map[string]any)
	parts := user["content"].([]any)
	filePart := parts[1].(map[string]any)["file"].(map[string]any)
	assert.Equal(t, "deck.pdf", filePart["filename"])
	assert.True(t, strings.HasPrefix(filePart["file_data"].(string), "data:application/pdf;base64,"))
}

func TestExtract_NoChoices(t *testing.T) {
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))

	_, err := p.Extract(context.Background(), testFile(), extract.DefaultOptions("gpt-4o-mini"))
	require.Error(t, err)
	apiErr := &core.APIError{}
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, core.ErrorTypeUpstream, apiErr.Type)
}

func TestExtract_UpstreamFailure(t *testing.T) {
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"file too large"}}`))
	}))

	_, err := p.Extract(context.Background(), testFile(), extract.DefaultOptions("gpt-4o-mini"))
	require.Error(t, err)
	apiErr := &core.APIError{}
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "file too large", apiErr.Message)
}
