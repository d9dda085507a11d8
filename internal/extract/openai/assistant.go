package openai

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"decklens/internal/core"
	"decklens/internal/extract"
	"decklens/internal/restclient"
)

// Terminal run states. Anything else means the run is still working.
var terminalRunStates = map[string]bool{
	"completed":  true,
	"failed":     true,
	"cancelled":  true,
	"expired":    true,
	"incomplete": true,
}

type fileResponse struct {
	ID string `json:"id"`
}

type vectorStoreResponse struct {
	ID string `json:"id"`
}

type assistantResponse struct {
	ID string `json:"id"`
}

type threadResponse struct {
	ID string `json:"id"`
}

type runResponse struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	LastError *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"last_error"`
}

type messageListResponse struct {
	Data []struct {
		Role    string `json:"role"`
		Content []struct {
			Type string `json:"type"`
			Text struct {
				Value string `json:"value"`
			} `json:"text"`
		} `json:"content"`
	} `json:"data"`
}

// releaser tracks transient remote resources and releases them best-effort in
// reverse acquisition order. Release failures are logged, never escalated.
type releaser struct {
	p       *Provider
	actions []func(context.Context) error
	labels  []string
}

func (r *releaser) add(label string, release func(context.Context) error) {
	r.labels = append(r.labels, label)
	r.actions = append(r.actions, release)
}

// releaseAll runs on its own deadline, detached from the request context, so
// cleanup still happens when the caller's context is already cancelled.
func (r *releaser) releaseAll() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for i := len(r.actions) - 1; i >= 0; i-- {
		if err := r.actions[i](ctx); err != nil {
			r.p.log.Warn("extract.run.cleanup_failed", "resource", r.labels[i], "error", err)
		}
	}
}

// ExtractWithRun runs the stateful assistant strategy: upload the deck,
// index it into a vector store, create an assistant and thread, then poll the
// run to a terminal state. Polling is bounded by pollMaxAttempts and the
// request context; exhaustion surfaces a timeout error distinct from upstream
// failure.
func (p *Provider) ExtractWithRun(ctx context.Context, file *core.UploadedFile, opts extract.Options) (string, error) {
	rel := &releaser{p: p}
	defer rel.releaseAll()

	p.log.Info("extract.run.start",
		"request_id", core.GetRequestID(ctx),
		"model", opts.Model,
		"file", file.Filename,
		"bytes", len(file.Data),
	)

	// 1. Upload the deck.
	var uploaded fileResponse
	if err := p.client.DoMultipart(ctx, "/files",
		map[string]string{"purpose": "assistants"},
		"file", file.Filename, file.Data, &uploaded); err != nil {
		return "", err
	}
	rel.add("file", func(ctx context.Context) error {
		return p.deleteResource(ctx, "/files/"+uploaded.ID)
	})

	// 2. Index it.
	var vs vectorStoreResponse
	if err := p.doAssistants(ctx, http.MethodPost, "/vector_stores", map[string]any{
		"name":     "deck-" + uploaded.ID,
		"file_ids": []string{uploaded.ID},
	}, &vs); err != nil {
		return "", err
	}
	rel.add("vector_store", func(ctx context.Context) error {
		return p.deleteResource(ctx, "/vector_stores/"+vs.ID)
	})

	// 3. Create the assistant bound to the store.
	var asst assistantResponse
	if err := p.doAssistants(ctx, http.MethodPost, "/assistants", map[string]any{
		"model":        opts.Model,
		"instructions": extract.BuildSystemPrompt(),
		"temperature":  opts.Temperature,
		"tools":        []map[string]string{{"type": "file_search"}},
		"tool_resources": map[string]any{
			"file_search": map[string]any{"vector_store_ids": []string{vs.ID}},
		},
	}, &asst); err != nil {
		return "", err
	}
	rel.add("assistant", func(ctx context.Context) error {
		return p.deleteResource(ctx, "/assistants/"+asst.ID)
	})

	// 4. Create the thread with the extraction request.
	var thread threadResponse
	if err := p.doAssistants(ctx, http.MethodPost, "/threads", map[string]any{
		"messages": []map[string]string{
			{"role": "user", "content": "Extract the structured profile from the uploaded pitch deck."},
		},
	}, &thread); err != nil {
		return "", err
	}
	rel.add("thread", func(ctx context.Context) error {
		return p.deleteResource(ctx, "/threads/"+thread.ID)
	})

	// 5. Start the run and poll it to a terminal state.
	var run runResponse
	if err := p.doAssistants(ctx, http.MethodPost, "/threads/"+thread.ID+"/runs", map[string]any{
		"assistant_id": asst.ID,
	}, &run); err != nil {
		return "", err
	}

	run, err := p.pollRun(ctx, thread.ID, run.ID, run.Status)
	if err != nil {
		return "", err
	}
	if run.Status != "completed" {
		detail := run.Status
		if run.LastError != nil {
			detail = fmt.Sprintf("%s (%s: %s)", run.Status, run.LastError.Code, run.LastError.Message)
		}
		return "", core.NewUpstreamError("openai", http.StatusBadGateway, "run ended in state "+detail, nil)
	}

	// 6. Read the assistant's reply.
	var msgs messageListResponse
	if err := p.doAssistants(ctx, http.MethodGet, "/threads/"+thread.ID+"/messages?order=desc&limit=5", nil, &msgs); err != nil {
		return "", err
	}
	for _, m := range msgs.Data {
		if m.Role != "assistant" {
			continue
		}
		for _, part := range m.Content {
			if part.Type == "text" && part.Text.Value != "" {
				return part.Text.Value, nil
			}
		}
	}
	return "", core.NewUpstreamError("openai", http.StatusBadGateway, "run completed without an assistant message", nil)
}

// pollRun checks the run status at a fixed interval until it reaches a
// terminal state, the attempt budget runs out, or the context ends.
func (p *Provider) pollRun(ctx context.Context, threadID, runID, status string) (runResponse, error) {
	run := runResponse{ID: runID, Status: status}

	for attempt := 0; attempt < p.pollMaxAttempts; attempt++ {
		if terminalRunStates[run.Status] {
			return run, nil
		}

		select {
		case <-ctx.Done():
			return run, ctx.Err()
		case <-time.After(p.pollInterval):
		}

		if err := p.doAssistants(ctx, http.MethodGet, "/threads/"+threadID+"/runs/"+runID, nil, &run); err != nil {
			return run, err
		}
	}

	if terminalRunStates[run.Status] {
		return run, nil
	}
	return run, core.NewTimeoutError("openai",
		fmt.Sprintf("run %s still %s after %d polls", runID, run.Status, p.pollMaxAttempts))
}

// doAssistants issues a request against the assistants beta surface.
func (p *Provider) doAssistants(ctx context.Context, method, endpoint string, body any, result any) error {
	return p.client.Do(ctx, restclient.Request{
		Method:   method,
		Endpoint: endpoint,
		Body:     body,
		Headers:  map[string]string{"OpenAI-Beta": assistantsBetaHeader},
	}, result)
}

// deleteResource issues a best-effort DELETE against the assistants surface.
func (p *Provider) deleteResource(ctx context.Context, endpoint string) error {
	return p.client.Do(ctx, restclient.Request{
		Method:   http.MethodDelete,
		Endpoint: endpoint,
		Headers:  map[string]string{"OpenAI-Beta": assistantsBetaHeader},
	}, nil)
}
