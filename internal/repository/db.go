// Package repository persists batches and valuation reports through
// database/sql. Two drivers are wired: pgx for postgres DSNs and modernc
// sqlite for everything else (file paths and :memory:), so the same store
// serves server deployments and one-shot CLI runs.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Store owns the database handle shared by the batch and valuation repos.
type Store struct {
	db      *sql.DB
	dialect string
	log     *slog.Logger
}

// Open connects to the database named by cfg.DSN and applies the schema.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dialect := DialectSQLite
	driver := "sqlite"
	if strings.HasPrefix(cfg.DSN, "postgres://") || strings.HasPrefix(cfg.DSN, "postgresql://") {
		dialect = DialectPostgres
		driver = "pgx"
	}

	logger.Info("connecting to database", "dialect", dialect)
	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if dialect == DialectSQLite {
		// in-memory sqlite exists per connection; keep a single one
		db.SetMaxOpenConns(1)
	} else {
		if cfg.MaxOpenConns > 0 {
			db.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			db.SetMaxIdleConns(cfg.MaxIdleConns)
		}
		if cfg.ConnMaxLifetime > 0 {
			db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		}
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db, dialect: dialect, log: logger}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Info("database ready", "dialect", dialect)
	return s, nil
}

// Migrate applies the schema. Idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS batches (
			id              TEXT PRIMARY KEY,
			status          TEXT NOT NULL,
			progress        INTEGER NOT NULL DEFAULT 0,
			total_files     INTEGER NOT NULL,
			files_processed INTEGER NOT NULL DEFAULT 0,
			results         TEXT,
			error_message   TEXT,
			created_at      TEXT NOT NULL,
			updated_at      TEXT NOT NULL,
			completed_at    TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_batches_status_completed
			ON batches (status, completed_at)`,
		`CREATE TABLE IF NOT EXISTS valuations (
			id          TEXT PRIMARY KEY,
			config      TEXT NOT NULL,
			summary     TEXT NOT NULL,
			projections TEXT NOT NULL,
			created_at  TEXT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	s.log.Info("closing database")
	return s.db.Close()
}

// rebind rewrites ? placeholders to $n for postgres. Queries are written in
// sqlite style and rebound on the way out.
func (s *Store) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
