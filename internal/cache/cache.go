// Package cache stores normalized extraction results keyed by deck content
// hash, so re-submitting the same deck does not re-run the model. Supports a
// local file backend for single-instance deployments and Redis for
// multi-instance ones.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"decklens/internal/core"
)

// Entry is one cached extraction result.
type Entry struct {
	Profile  core.DeckProfile `json:"profile"`
	Status   string           `json:"status"`
	Model    string           `json:"model"`
	CachedAt time.Time        `json:"cached_at"`
}

// Cache defines the interface for result cache storage.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get retrieves a cached entry. Returns nil, nil on a miss.
	Get(ctx context.Context, key string) (*Entry, error)

	// Set stores an entry.
	Set(ctx context.Context, key string, entry *Entry) error

	// Close releases any resources held by the cache.
	Close() error
}

// Key derives the cache key for a deck: the content hash plus the model, so
// a model upgrade naturally misses.
func Key(data []byte, model string) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]) + ":" + model
}

// Config selects and configures a cache backend.
type Config struct {
	// Type is "local", "redis", or empty to disable caching
	Type     string
	FilePath string
	RedisURL string
}

// New creates a Cache from config. A nil Cache with nil error means caching
// is disabled.
func New(cfg Config) (Cache, error) {
	switch cfg.Type {
	case "":
		return nil, nil
	case "local":
		return NewLocalCache(cfg.FilePath), nil
	case "redis":
		return NewRedisCache(RedisConfig{URL: cfg.RedisURL})
	default:
		return nil, fmt.Errorf("unknown cache type: %s (valid: local, redis)", cfg.Type)
	}
}
