package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"decklens/config"
	"decklens/internal/core"
)

// Server wraps the Echo server
type Server struct {
	echo    *echo.Echo
	handler *Handler
}

// Config holds server configuration options
type Config struct {
	MetricsEnabled  bool   // Whether to expose Prometheus metrics endpoint
	MetricsEndpoint string // HTTP path for metrics endpoint (default: /metrics)
	BodySizeLimit   int64  // Max request body size in bytes (default: 20MB)
}

// New creates a new HTTP server. A nil verifier leaves the signing route
// open; callers are expected to warn loudly when that happens.
func New(handler *Handler, verifier TokenVerifier, cfg *Config) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = errorHandler

	// Global middleware stack (order matters)
	e.Use(requestIDMiddleware())
	e.Use(requestLoggerMiddleware())
	e.Use(middleware.Recover())
	e.Use(corsMiddleware())

	// Body size limit (default: 20MB)
	bodySizeLimit := config.DefaultBodySizeLimit
	if cfg != nil && cfg.BodySizeLimit > 0 {
		bodySizeLimit = cfg.BodySizeLimit
	}
	e.Use(middleware.BodyLimit(strconv.FormatInt(bodySizeLimit, 10)))

	// Public routes
	e.GET("/health", handler.Health)
	if cfg != nil && cfg.MetricsEnabled {
		metricsPath := "/metrics"
		if cfg.MetricsEndpoint != "" {
			// Normalize path to prevent traversal attacks
			metricsPath = path.Clean(cfg.MetricsEndpoint)
		}
		e.GET(metricsPath, echo.WrapHandler(promhttp.Handler()))
	}

	// API routes
	e.POST("/v1/decks/analyze", handler.AnalyzeDeck)
	e.POST("/v1/decks/extract", handler.ExtractDeck)
	e.GET("/v1/decks/extractions", handler.GetLatestExtraction)
	e.GET("/v1/decks/extractions/:id", handler.GetExtraction)

	sign := e.Group("/v1/files")
	if verifier != nil {
		sign.Use(AuthMiddleware(verifier))
	}
	sign.POST("/sign", handler.SignDownload)

	return &Server{
		echo:    e,
		handler: handler,
	}
}

// Start starts the HTTP server on the given address
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// ServeHTTP implements the http.Handler interface, allowing Server to be used with httptest
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// corsMiddleware marks every response as cross-origin readable and answers
// preflight directly with 200. Uploads come from browser clients on
// arbitrary origins.
func corsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set(echo.HeaderAccessControlAllowOrigin, "*")
			h.Set(echo.HeaderAccessControlAllowHeaders, "Authorization, Content-Type")
			h.Set(echo.HeaderAccessControlAllowMethods, "GET, POST, OPTIONS")
			if c.Request().Method == http.MethodOptions {
				return c.NoContent(http.StatusOK)
			}
			return next(c)
		}
	}
}

// requestIDMiddleware assigns each request a UUID (or keeps the inbound one)
// and threads it through the request context so outbound calls can forward it.
func requestIDMiddleware() echo.MiddlewareFunc {
	return middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
		RequestIDHandler: func(c echo.Context, id string) {
			req := c.Request()
			c.SetRequest(req.WithContext(core.WithRequestID(req.Context(), id)))
		},
	})
}

// requestLoggerMiddleware emits one structured line per request.
func requestLoggerMiddleware() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			level := slog.LevelInfo
			if v.Error != nil || v.Status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			slog.LogAttrs(c.Request().Context(), level, "request",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("request_id", core.GetRequestID(c.Request().Context())),
				slog.Any("error", v.Error),
			)
			return nil
		},
	})
}

// errorHandler converts routing-level failures (wrong verb, unknown path,
// oversized body) into the service's wire error shape.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	apiErr := &core.APIError{}
	if !errors.As(err, &apiErr) {
		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			switch httpErr.Code {
			case http.StatusMethodNotAllowed:
				apiErr = core.NewMethodError(c.Request().Method)
			case http.StatusNotFound:
				apiErr = core.NewNotFoundError("no such endpoint: " + c.Request().URL.Path)
			case http.StatusRequestEntityTooLarge:
				apiErr = core.NewInvalidRequestError("request body too large", nil)
				apiErr.StatusCode = http.StatusRequestEntityTooLarge
			default:
				apiErr = core.NewInternalError(fmt.Sprintf("%v", httpErr.Message), err)
			}
		} else {
			apiErr = core.NewInternalError("an unexpected error occurred", err)
		}
	}

	if jsonErr := c.JSON(apiErr.HTTPStatusCode(), apiErr.ToJSON()); jsonErr != nil {
		slog.Error("failed to write error response", "error", jsonErr)
	}
}
