// Package extract defines the extraction orchestrator contract: turning a
// validated deck upload into the raw model output that the normalizer shapes.
package extract

import (
	"context"

	"decklens/internal/core"
)

// Options are the generation parameters pinned for extraction. Temperature
// stays at or near zero so the model reads fields off the deck instead of
// inventing them.
type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// DefaultOptions returns the pinned extraction parameters.
func DefaultOptions(model string) Options {
	return Options{
		Model:       model,
		Temperature: 0,
		MaxTokens:   2048,
	}
}

// Extractor obtains the model's raw textual output for an uploaded deck.
// Implementations must honor ctx cancellation on every network wait.
type Extractor interface {
	// Extract runs the synchronous completion strategy: one request, one
	// response, the file inlined in the request payload.
	Extract(ctx context.Context, file *core.UploadedFile, opts Options) (string, error)
}

// RunExtractor obtains model output through a stateful run: the file is
// uploaded to the model side, a run is created and polled to a terminal
// state, and every transient remote resource is released afterwards.
type RunExtractor interface {
	ExtractWithRun(ctx context.Context, file *core.UploadedFile, opts Options) (string, error)
}
