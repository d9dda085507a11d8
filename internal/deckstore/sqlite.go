package deckstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"decklens/internal/core"
)

// sqliteStore implements Store backed by a local SQLite file.
type sqliteStore struct {
	db *sql.DB
}

var sqliteSchema = []string{`
CREATE TABLE IF NOT EXISTS extractions (
	id TEXT PRIMARY KEY,
	file_path TEXT NOT NULL,
	company_name TEXT NOT NULL DEFAULT '',
	industry TEXT NOT NULL DEFAULT '',
	market_size TEXT NOT NULL DEFAULT '',
	country TEXT NOT NULL DEFAULT '',
	key_team_members TEXT NOT NULL DEFAULT '',
	revenue TEXT NOT NULL DEFAULT '',
	valuation TEXT NOT NULL DEFAULT '',
	funding_sought TEXT NOT NULL DEFAULT '',
	parse_error TEXT NOT NULL DEFAULT '',
	raw_text TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_extractions_file_path ON extractions(file_path)`,
}

// NewSQLite opens (and if needed creates) the SQLite record store at path.
// Use ":memory:" for an ephemeral store.
func NewSQLite(path string) (Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only allows one writer at a time
	db.SetMaxIdleConns(1)

	for _, stmt := range sqliteSchema {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to create extractions schema: %w", err)
		}
	}

	return &sqliteStore{db: db}, nil
}

func (s *sqliteStore) Insert(ctx context.Context, rec *core.StoredExtraction) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO extractions (
			id, file_path, company_name, industry, market_size, country,
			key_team_members, revenue, valuation, funding_sought,
			parse_error, raw_text, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.FilePath,
		rec.Profile.CompanyName, rec.Profile.Industry, rec.Profile.MarketSize,
		rec.Profile.Country, rec.Profile.KeyTeamMembers, rec.Profile.Revenue,
		rec.Profile.Valuation, rec.Profile.FundingSought,
		rec.Profile.ParseError, rec.Profile.RawText,
		rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to insert extraction: %w", err)
	}
	return nil
}

func (s *sqliteStore) Get(ctx context.Context, id string) (*core.StoredExtraction, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+" FROM extractions WHERE id = ?", id)
	return scanRow(row)
}

func (s *sqliteStore) GetByFilePath(ctx context.Context, filePath string) (*core.StoredExtraction, error) {
	row := s.db.QueryRowContext(ctx,
		selectColumns+" FROM extractions WHERE file_path = ? ORDER BY created_at DESC LIMIT 1", filePath)
	return scanRow(row)
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}

const selectColumns = `
	SELECT id, file_path, company_name, industry, market_size, country,
	       key_team_members, revenue, valuation, funding_sought,
	       parse_error, raw_text, created_at`

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRow(row rowScanner) (*core.StoredExtraction, error) {
	var rec core.StoredExtraction
	var createdAt string
	err := row.Scan(
		&rec.ID, &rec.FilePath,
		&rec.Profile.CompanyName, &rec.Profile.Industry, &rec.Profile.MarketSize,
		&rec.Profile.Country, &rec.Profile.KeyTeamMembers, &rec.Profile.Revenue,
		&rec.Profile.Valuation, &rec.Profile.FundingSought,
		&rec.Profile.ParseError, &rec.Profile.RawText,
		&createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan extraction: %w", err)
	}
	if t, perr := time.Parse(time.RFC3339Nano, createdAt); perr == nil {
		rec.CreatedAt = t
	}
	return &rec, nil
}
