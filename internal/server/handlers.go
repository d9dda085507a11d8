// Package server provides HTTP handlers and server setup for the deck
// extraction service.
package server

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"decklens/config"
	"decklens/internal/backend"
	"decklens/internal/cache"
	"decklens/internal/core"
	"decklens/internal/deckstore"
	"decklens/internal/extract"
	"decklens/internal/normalize"
	"decklens/internal/notify"
	"decklens/internal/observability"
)

const expectedContentType = "application/pdf"

// maxSignExpiry caps signed links at seven days, matching the storage
// backend's own ceiling.
const maxSignExpiry = 7 * 24 * time.Hour

// Deps holds everything the handlers need. Cache and Mailer are optional.
type Deps struct {
	Extractor    extract.Extractor
	RunExtractor extract.RunExtractor
	Store        deckstore.Store
	Backend      *backend.Client
	Cache        cache.Cache
	Mailer       *notify.Mailer
	Options      extract.Options
	Logger       *slog.Logger
}

// Handler holds the HTTP handlers and the extraction pipeline.
type Handler struct {
	deps Deps
	log  *slog.Logger
}

// NewHandler creates a new handler with the given dependencies
func NewHandler(deps Deps) *Handler {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Handler{deps: deps, log: log}
}

// AnalyzeDeck handles POST /v1/decks/analyze: a direct multipart upload,
// extracted synchronously and returned without persistence.
func (h *Handler) AnalyzeDeck(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return handleError(c, core.NewInvalidRequestError("missing required multipart field: file", err))
	}
	contentType := fh.Header.Get("Content-Type")
	if contentType != expectedContentType {
		return handleError(c, core.NewInvalidRequestError("unsupported content type for field file: "+contentType+", expected "+expectedContentType, nil))
	}

	src, err := fh.Open()
	if err != nil {
		return handleError(c, core.NewInvalidRequestError("unreadable multipart field: file", err))
	}
	defer func() {
		_ = src.Close()
	}()

	// Body size is already bounded by the body-limit middleware.
	data, err := io.ReadAll(src)
	if err != nil {
		return handleError(c, core.NewInvalidRequestError("unreadable multipart field: file", err))
	}

	file := &core.UploadedFile{
		Filename:    fh.Filename,
		ContentType: contentType,
		Data:        data,
	}

	outcome, err := h.extractOutcome(c, file, false)
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(http.StatusOK, outcome.Profile)
}

type extractRequest struct {
	FilePath string `json:"file_path"`
}

// ExtractDeck handles POST /v1/decks/extract: the deck is fetched from the
// hosted backend's object storage, extracted through a model run, and the
// normalized result is persisted.
func (h *Handler) ExtractDeck(c echo.Context) error {
	var req extractRequest
	if err := c.Bind(&req); err != nil {
		return handleError(c, core.NewInvalidRequestError("invalid request body: "+err.Error(), err))
	}
	if req.FilePath == "" {
		return handleError(c, core.NewInvalidRequestError("missing required field: file_path", nil))
	}

	ctx := c.Request().Context()

	file, err := h.deps.Backend.DownloadObject(ctx, req.FilePath)
	if err != nil {
		return handleError(c, err)
	}

	outcome, err := h.extractOutcome(c, file, true)
	if err != nil {
		return handleError(c, err)
	}

	record := &core.StoredExtraction{
		ID:        uuid.NewString(),
		FilePath:  req.FilePath,
		Profile:   outcome.Profile,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.deps.Store.Insert(ctx, record); err != nil {
		return handleError(c, core.NewInternalError("failed to persist extraction", err))
	}

	h.deps.Mailer.ExtractionStored(record, string(outcome.Status))

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    record,
	})
}

type signRequest struct {
	FilePath  string `json:"file_path"`
	ExpiresIn int    `json:"expires_in"`
}

// SignDownload handles POST /v1/files/sign. The route sits behind the token
// verification middleware; by the time this runs the caller is authenticated.
func (h *Handler) SignDownload(c echo.Context) error {
	var req signRequest
	if err := c.Bind(&req); err != nil {
		return handleError(c, core.NewInvalidRequestError("invalid request body: "+err.Error(), err))
	}
	if req.FilePath == "" {
		return handleError(c, core.NewInvalidRequestError("missing required field: file_path", nil))
	}

	expiry := time.Duration(req.ExpiresIn) * time.Second
	if expiry <= 0 {
		expiry = config.DefaultSignExpiry
	}
	if expiry > maxSignExpiry {
		expiry = maxSignExpiry
	}

	link, err := h.deps.Backend.SignObjectURL(c.Request().Context(), req.FilePath, expiry)
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    link,
	})
}

// GetExtraction handles GET /v1/decks/extractions/:id.
func (h *Handler) GetExtraction(c echo.Context) error {
	id := c.Param("id")

	record, err := h.deps.Store.Get(c.Request().Context(), id)
	if errors.Is(err, deckstore.ErrNotFound) {
		return handleError(c, core.NewNotFoundError("no extraction with id "+id))
	}
	if err != nil {
		return handleError(c, core.NewInternalError("failed to load extraction", err))
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    record,
	})
}

// GetLatestExtraction handles GET /v1/decks/extractions?file_path=...,
// returning the newest record for a storage object.
func (h *Handler) GetLatestExtraction(c echo.Context) error {
	filePath := c.QueryParam("file_path")
	if filePath == "" {
		return handleError(c, core.NewInvalidRequestError("missing required query parameter: file_path", nil))
	}

	record, err := h.deps.Store.GetByFilePath(c.Request().Context(), filePath)
	if errors.Is(err, deckstore.ErrNotFound) {
		return handleError(c, core.NewNotFoundError("no extraction for file path "+filePath))
	}
	if err != nil {
		return handleError(c, core.NewInternalError("failed to load extraction", err))
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    record,
	})
}

// Health handles GET /health
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// extractOutcome runs the cache-extract-normalize pipeline for one deck.
// Cache hits skip the model entirely; only parseable results are cached.
func (h *Handler) extractOutcome(c echo.Context, file *core.UploadedFile, viaRun bool) (normalize.Outcome, error) {
	ctx := c.Request().Context()
	key := cache.Key(file.Data, h.deps.Options.Model)

	if h.deps.Cache != nil {
		entry, err := h.deps.Cache.Get(ctx, key)
		switch {
		case err != nil:
			observability.ObserveCacheLookup("error")
			h.log.Warn("result cache lookup failed", "error", err)
		case entry != nil:
			observability.ObserveCacheLookup("hit")
			return normalize.Outcome{Status: normalize.Status(entry.Status), Profile: entry.Profile}, nil
		default:
			observability.ObserveCacheLookup("miss")
		}
	}

	start := time.Now()
	var raw string
	var err error
	if viaRun {
		raw, err = h.deps.RunExtractor.ExtractWithRun(ctx, file, h.deps.Options)
	} else {
		raw, err = h.deps.Extractor.Extract(ctx, file, h.deps.Options)
	}
	if err != nil {
		observability.ObserveExtraction("error", time.Since(start))
		return normalize.Outcome{}, err
	}

	outcome := normalize.Normalize(raw)
	observability.ObserveExtraction(string(outcome.Status), time.Since(start))

	if h.deps.Cache != nil && outcome.Status != normalize.StatusFailed {
		entry := &cache.Entry{
			Profile:  outcome.Profile,
			Status:   string(outcome.Status),
			Model:    h.deps.Options.Model,
			CachedAt: time.Now().UTC(),
		}
		if err := h.deps.Cache.Set(ctx, key, entry); err != nil {
			h.log.Warn("result cache write failed", "error", err)
		}
	}

	return outcome, nil
}

// handleError converts service errors to appropriate HTTP responses
func handleError(c echo.Context, err error) error {
	apiErr := &core.APIError{}
	if errors.As(err, &apiErr) {
		return c.JSON(apiErr.HTTPStatusCode(), apiErr.ToJSON())
	}

	// Fallback for unexpected errors
	return c.JSON(http.StatusInternalServerError, map[string]interface{}{
		"error": "an unexpected error occurred",
		"details": map[string]interface{}{
			"type": core.ErrorTypeInternal,
		},
	})
}
