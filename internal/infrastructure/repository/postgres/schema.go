package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	uploader_id TEXT NOT NULL DEFAULT '',
	name TEXT NOT NULL,
	mime_type TEXT NOT NULL,
	storage_path TEXT NOT NULL DEFAULT '',
	doc_type TEXT NOT NULL,
	status TEXT NOT NULL,
	content JSONB NOT NULL DEFAULT '[]'::jsonb,
	extracted_data JSONB,
	applied_rule_id TEXT NOT NULL DEFAULT '',
	error_message TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_project_created ON documents(project_id, created_at DESC);

CREATE TABLE IF NOT EXISTS rules (
	id TEXT PRIMARY KEY,
	doc_type TEXT NOT NULL,
	name TEXT NOT NULL,
	version INTEGER NOT NULL,
	revision INTEGER NOT NULL DEFAULT 0,
	payload JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

ALTER TABLE rules ADD COLUMN IF NOT EXISTS revision INTEGER NOT NULL DEFAULT 0;

CREATE TABLE IF NOT EXISTS rule_versions (
	rule_id TEXT NOT NULL REFERENCES rules(id) ON DELETE CASCADE,
	version INTEGER NOT NULL,
	payload JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (rule_id, version)
);

CREATE TABLE IF NOT EXISTS bad_cases (
	seq BIGSERIAL PRIMARY KEY,
	id TEXT NOT NULL,
	document_id TEXT NOT NULL,
	text TEXT NOT NULL,
	kind TEXT NOT NULL,
	note TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_bad_cases_document ON bad_cases(document_id, seq);
`

// EnsureSchema creates the workbench tables. Safe to call from every process at startup.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101501)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}
	if _, err := tx.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}
