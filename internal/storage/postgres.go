// Package storage persists sources, runs and articles in PostgreSQL and
// manages the on-disk workspace for extracted article text and run artifacts.
package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/briefcast/briefcast/internal/logger"
)

// Store wraps the PostgreSQL connection used by the pipeline.
type Store struct {
	db *sql.DB
}

// New opens a connection to PostgreSQL and verifies it with a ping.
func New(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established")
	return &Store{db: db}, nil
}

// Ping verifies the connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS sources (
	id SERIAL PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	url TEXT NOT NULL,
	category TEXT NOT NULL,
	weight REAL NOT NULL DEFAULT 1.0 CHECK (weight >= 0 AND weight <= 1),
	enabled BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMP NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMP NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS runs (
	id SERIAL PRIMARY KEY,
	run_date DATE NOT NULL,
	started_at TIMESTAMP NOT NULL,
	finished_at TIMESTAMP,
	status TEXT NOT NULL DEFAULT 'running' CHECK (status IN ('running', 'success', 'failed')),
	stats_json JSONB,
	created_at TIMESTAMP NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMP NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS articles (
	id SERIAL PRIMARY KEY,
	source_id INTEGER NOT NULL REFERENCES sources(id),
	canonical_url TEXT NOT NULL UNIQUE,
	title TEXT NOT NULL,
	published_at TIMESTAMP,
	outlet TEXT,
	content_hash TEXT NOT NULL,
	extracted_path TEXT NOT NULL,
	first_seen_at TIMESTAMP NOT NULL,
	last_seen_at TIMESTAMP NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMP NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS run_articles (
	run_id INTEGER NOT NULL REFERENCES runs(id),
	article_id INTEGER NOT NULL REFERENCES articles(id),
	included_in_rank BOOLEAN NOT NULL DEFAULT FALSE,
	score_json JSONB,
	created_at TIMESTAMP NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
	PRIMARY KEY (run_id, article_id)
);

CREATE INDEX IF NOT EXISTS idx_articles_source_id ON articles(source_id);
CREATE INDEX IF NOT EXISTS idx_articles_content_hash ON articles(content_hash);
CREATE INDEX IF NOT EXISTS idx_articles_published_at ON articles(published_at);
CREATE INDEX IF NOT EXISTS idx_articles_first_seen_at ON articles(first_seen_at);
CREATE INDEX IF NOT EXISTS idx_run_articles_run_id ON run_articles(run_id);
CREATE INDEX IF NOT EXISTS idx_run_articles_article_id ON run_articles(article_id);
CREATE INDEX IF NOT EXISTS idx_runs_run_date ON runs(run_date);
`

// InitSchema creates the tables and indexes if they do not exist.
func (s *Store) InitSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	logger.Info("database schema initialized")
	return nil
}
