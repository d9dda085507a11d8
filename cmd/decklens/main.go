// Package main is the entry point for the deck extraction server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/lmittmann/tint"

	"decklens/config"
	"decklens/internal/backend"
	"decklens/internal/cache"
	"decklens/internal/deckstore"
	"decklens/internal/extract"
	"decklens/internal/extract/openai"
	"decklens/internal/notify"
	"decklens/internal/server"
	"decklens/internal/version"
)

func main() {
	// Add a version flag check
	versionFlag := flag.Bool("version", false, "Print version information")
	flag.Parse()

	if *versionFlag {
		fmt.Println(version.Info())
		os.Exit(0)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup structured logging
	var handler slog.Handler
	if cfg.Logging.Format == "text" {
		handler = tint.NewHandler(os.Stdout, &tint.Options{TimeFormat: time.TimeOnly})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, nil)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	// Log the version immediately on startup
	slog.Info("starting decklens",
		"version", version.Version,
		"commit", version.Commit,
		"build_date", version.Date,
	)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	if cfg.Backend.URL == "" {
		slog.Error("BACKEND_URL is required: deck downloads and signed links depend on it")
		os.Exit(1)
	}

	ctx := context.Background()

	// Record store
	store, err := deckstore.New(ctx, deckstore.Config{
		Type:          cfg.Store.Type,
		SQLitePath:    cfg.Store.SQLitePath,
		DatabaseURL:   cfg.Store.DatabaseURL,
		MongoDatabase: cfg.Store.MongoDatabase,
	})
	if err != nil {
		slog.Error("failed to initialize record store", "error", err, "type", cfg.Store.Type)
		os.Exit(1)
	}
	defer func() {
		_ = store.Close()
	}()
	slog.Info("record store ready", "type", cfg.Store.Type)

	// Result cache (optional)
	resultCache, err := cache.New(cache.Config{
		Type:     cfg.Cache.Type,
		FilePath: cfg.Cache.FilePath,
		RedisURL: cfg.Cache.RedisURL,
	})
	if err != nil {
		slog.Error("failed to initialize result cache", "error", err, "type", cfg.Cache.Type)
		os.Exit(1)
	}
	if resultCache != nil {
		defer func() {
			_ = resultCache.Close()
		}()
		slog.Info("result cache enabled", "type", cfg.Cache.Type)
	}

	// Hosted backend (auth + object storage)
	backendClient, err := backend.New(backend.Config{
		URL:            cfg.Backend.URL,
		ServiceRoleKey: cfg.Backend.ServiceRoleKey,
		AnonKey:        cfg.Backend.AnonKey,
		Bucket:         cfg.Backend.Bucket,
	})
	if err != nil {
		slog.Error("failed to initialize backend client", "error", err)
		os.Exit(1)
	}

	// Security check: warn if token verification cannot run
	var verifier server.TokenVerifier
	if cfg.Backend.AnonKey != "" {
		verifier = backendClient
		slog.Info("authentication enabled", "mode", "backend_token")
	} else {
		slog.Warn("SECURITY WARNING: BACKEND_ANON_KEY not set - signed download route is UNAUTHENTICATED",
			"security_risk", "anyone can mint signed links",
			"recommendation", "set BACKEND_ANON_KEY so caller tokens can be verified")
	}

	// Extraction provider
	provider := openai.New(openai.Config{
		APIKey:          cfg.OpenAI.APIKey,
		PollInterval:    cfg.OpenAI.PollInterval,
		PollMaxAttempts: cfg.OpenAI.PollMaxAttempts,
		Logger:          logger,
	})
	slog.Info("extraction provider ready",
		"model", cfg.OpenAI.Model,
		"poll_interval", cfg.OpenAI.PollInterval,
		"poll_max_attempts", cfg.OpenAI.PollMaxAttempts,
	)

	// Notifications (optional)
	var recipients []string
	for _, to := range strings.Split(cfg.SMTP.To, ",") {
		if to = strings.TrimSpace(to); to != "" {
			recipients = append(recipients, to)
		}
	}
	mailer := notify.New(notify.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
		To:       recipients,
	}, logger)
	if mailer != nil {
		slog.Info("notifications enabled", "host", cfg.SMTP.Host, "recipients", len(recipients))
	}

	if cfg.Metrics.Enabled {
		slog.Info("prometheus metrics enabled", "endpoint", cfg.Metrics.Endpoint)
	}

	// Create and start server
	handlerDeps := server.Deps{
		Extractor:    provider,
		RunExtractor: provider,
		Store:        store,
		Backend:      backendClient,
		Cache:        resultCache,
		Mailer:       mailer,
		Options:      extract.DefaultOptions(cfg.OpenAI.Model),
		Logger:       logger,
	}
	serverCfg := &server.Config{
		MetricsEnabled:  cfg.Metrics.Enabled,
		MetricsEndpoint: cfg.Metrics.Endpoint,
		BodySizeLimit:   cfg.Server.BodySizeLimit,
	}
	srv := server.New(server.NewHandler(handlerDeps), verifier, serverCfg)

	// Handle graceful shutdown
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		slog.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	addr := ":" + cfg.Server.Port
	slog.Info("starting server", "address", addr)

	if err := srv.Start(addr); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			slog.Info("server stopped gracefully")
		} else {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}
}
