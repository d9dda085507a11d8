package deckstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"decklens/internal/core"
)

// postgresStore implements Store backed by a PostgreSQL pool.
type postgresStore struct {
	pool *pgxpool.Pool
}

// Statements run one at a time: pgx's extended protocol rejects
// multi-statement strings.
var postgresSchema = []string{`
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
	created_at TIMESTAMPTZ NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_extractions_file_path ON extractions(file_path)`,
}

// NewPostgreSQL creates a PostgreSQL-backed store. It establishes a
// connection pool, verifies connectivity, and ensures the schema exists.
func NewPostgreSQL(ctx context.Context, url string) (Store, error) {
	if url == "" {
		return nil, fmt.Errorf("PostgreSQL URL is required")
	}

	poolCfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse PostgreSQL URL: %w", err)
	}
	poolCfg.MaxConns = 10

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create PostgreSQL connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	for _, stmt := range postgresSchema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to create extractions schema: %w", err)
		}
	}

	return &postgresStore{pool: pool}, nil
}

func (s *postgresStore) Insert(ctx context.Context, rec *core.StoredExtraction) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO extractions (
			id, file_path, company_name, industry, market_size, country,
			key_team_members, revenue, valuation, funding_sought,
			parse_error, raw_text, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		rec.ID, rec.FilePath,
		rec.Profile.CompanyName, rec.Profile.Industry, rec.Profile.MarketSize,
		rec.Profile.Country, rec.Profile.KeyTeamMembers, rec.Profile.Revenue,
		rec.Profile.Valuation, rec.Profile.FundingSought,
		rec.Profile.ParseError, rec.Profile.RawText,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert extraction: %w", err)
	}
	return nil
}

func (s *postgresStore) Get(ctx context.Context, id string) (*core.StoredExtraction, error) {
	return s.selectOne(ctx, selectColumns+" FROM extractions WHERE id = $1", id)
}

func (s *postgresStore) GetByFilePath(ctx context.Context, filePath string) (*core.StoredExtraction, error) {
	return s.selectOne(ctx,
		selectColumns+" FROM extractions WHERE file_path = $1 ORDER BY created_at DESC LIMIT 1", filePath)
}

func (s *postgresStore) selectOne(ctx context.Context, query string, args ...any) (*core.StoredExtraction, error) {
	var rec core.StoredExtraction
	err := s.pool.QueryRow(ctx, query, args...).Scan(
		&rec.ID, &rec.FilePath,
		&rec.Profile.CompanyName, &rec.Profile.Industry, &rec.Profile.MarketSize,
		&rec.Profile.Country, &rec.Profile.KeyTeamMembers, &rec.Profile.Revenue,
		&rec.Profile.Valuation, &rec.Profile.FundingSought,
		&rec.Profile.ParseError, &rec.Profile.RawText,
		&rec.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan extraction: %w", err)
	}
	return &rec, nil
}

func (s *postgresStore) Close() error {
	s.pool.Close()
	return nil
}
