// Package deckstore persists extracted deck profiles. One interface, three
// backends: SQLite for single-instance deployments, PostgreSQL and MongoDB
// for hosted ones.
package deckstore

import (
	"context"
	"errors"
	"fmt"

	"decklens/internal/core"
)

// Type constants for store backends
const (
	TypeSQLite     = "sqlite"
	TypePostgreSQL = "postgresql"
	TypeMongoDB    = "mongodb"
)

// ErrNotFound is returned when no record matches the lookup.
var ErrNotFound = errors.New("extraction not found")

// Config holds store configuration
type Config struct {
	// Type selects the backend: "sqlite", "postgresql", or "mongodb"
	Type string

	// SQLitePath is the database file path for the sqlite backend
	SQLitePath string

	// DatabaseURL is the connection string for postgresql/mongodb backends
	DatabaseURL string

	// MongoDatabase is the database name for the mongodb backend
	MongoDatabase string
}

// Store persists StoredExtraction records. Implementations must be safe for
// concurrent use. Records are insert-only; nothing here mutates them.
type Store interface {
	// Insert persists a new extraction record.
	Insert(ctx context.Context, rec *core.StoredExtraction) error

	// Get returns the record with the given ID, or ErrNotFound.
	Get(ctx context.Context, id string) (*core.StoredExtraction, error)

	// GetByFilePath returns the most recent record for a storage object
	// path, or ErrNotFound.
	GetByFilePath(ctx context.Context, filePath string) (*core.StoredExtraction, error)

	// Close releases all resources held by the store.
	Close() error
}

// New creates a Store for the configured backend.
func New(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Type {
	case TypeSQLite:
		return NewSQLite(cfg.SQLitePath)
	case TypePostgreSQL:
		return NewPostgreSQL(ctx, cfg.DatabaseURL)
	case TypeMongoDB:
		return NewMongoDB(ctx, cfg.DatabaseURL, cfg.MongoDatabase)
	default:
		return nil, fmt.Errorf("unknown store type: %s (valid: sqlite, postgresql, mongodb)", cfg.Type)
	}
}
