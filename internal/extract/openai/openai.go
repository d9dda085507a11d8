// Package openai implements both extraction strategies against the OpenAI
// API: single-shot chat completion and the stateful assistant run.
package openai

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"
	"time"

	"decklens/internal/core"
	"decklens/internal/extract"
	"decklens/internal/restclient"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"

	// assistantsBetaHeader opts the client into the v2 assistants surface.
	assistantsBetaHeader = "assistants=v2"
)

// Provider implements extract.Extractor and extract.RunExtractor.
type Provider struct {
	client          *restclient.Client
	apiKey          string
	log             *slog.Logger
	pollInterval    time.Duration
	pollMaxAttempts int
}

// Config holds provider construction options.
type Config struct {
	APIKey          string
	PollInterval    time.Duration
	PollMaxAttempts int
	Logger          *slog.Logger
}

// New creates a new OpenAI extraction provider.
func New(cfg Config) *Provider {
	return NewWithHTTPClient(cfg, nil)
}

// NewWithHTTPClient creates a provider with a custom HTTP client.
// If httpClient is nil the shared default transport is used.
func NewWithHTTPClient(cfg Config, httpClient *http.Client) *Provider {
	p := &Provider{
		apiKey:          cfg.APIKey,
		log:             cfg.Logger,
		pollInterval:    cfg.PollInterval,
		pollMaxAttempts: cfg.PollMaxAttempts,
	}
	if p.log == nil {
		p.log = slog.Default()
	}
	if p.pollInterval <= 0 {
		p.pollInterval = time.Second
	}
	if p.pollMaxAttempts <= 0 {
		p.pollMaxAttempts = 300
	}

	rcfg := restclient.DefaultConfig("openai", defaultBaseURL)
	if httpClient != nil {
		p.client = restclient.NewWithHTTPClient(httpClient, rcfg, p.setHeaders)
	} else {
		p.client = restclient.New(rcfg, p.setHeaders)
	}
	return p
}

// SetBaseURL allows configuring a custom base URL (used by tests).
func (p *Provider) SetBaseURL(url string) {
	p.client.SetBaseURL(url)
}

// setHeaders sets the required headers for OpenAI API requests
func (p *Provider) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
}

// chatRequest is the outbound chat-completions payload. The deck travels
// inline as a base64 data URI; the payload is built fresh per call and never
// mutated after send.
type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	MaxTokens      int           `json:"max_tokens,omitempty"`
	ResponseFormat *respFormat   `json:"response_format,omitempty"`
}

type respFormat struct {
	Type string `json:"type"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type string    `json:"type"`
	Text string    `json:"text,omitempty"`
	File *filePart `json:"file,omitempty"`
}

type filePart struct {
	Filename string `json:"filename"`
	FileData string `json:"file_data"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Extract runs the synchronous chat-completion strategy.
func (p *Provider) Extract(ctx context.Context, file *core.UploadedFile, opts extract.Options) (string, error) {
	dataURI := "data:" + file.ContentType + ";base64," +
		base64.StdEncoding.EncodeToString(file.Data)

	req := chatRequest{
		Model: opts.Model,
		Messages: []chatMessage{
			{Role: "system", Content: extract.BuildSystemPrompt()},
			{Role: "user", Content: []contentPart{
				{Type: "text", Text: "Extract the structured profile from the attached pitch deck."},
				{Type: "file", File: &filePart{Filename: file.Filename, FileData: dataURI}},
			}},
		},
		Temperature:    opts.Temperature,
		MaxTokens:      opts.MaxTokens,
		ResponseFormat: &respFormat{Type: "json_object"},
	}

	p.log.Info("extract.chat.start",
		"request_id", core.GetRequestID(ctx),
		"model", opts.Model,
		"file", file.Filename,
		"bytes", len(file.Data),
	)

	var resp chatResponse
	if err := p.client.Do(ctx, restclient.Request{
		Method:   http.MethodPost,
		Endpoint: "/chat/completions",
		Body:     req,
	}, &resp); err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", core.NewUpstreamError("openai", http.StatusBadGateway, "model returned no choices", nil)
	}
	return resp.Choices[0].Message.Content, nil
}
