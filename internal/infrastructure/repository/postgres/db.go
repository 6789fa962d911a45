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
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS classification_codes (
	kind TEXT NOT NULL,
	code TEXT NOT NULL,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (kind, code)
);

CREATE INDEX IF NOT EXISTS idx_classification_codes_fts
	ON classification_codes USING GIN (to_tsvector('simple', title || ' ' || description));

CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	year TEXT NOT NULL DEFAULT '',
	source_type TEXT NOT NULL DEFAULT '',
	tags JSONB NOT NULL DEFAULT '[]'::jsonb,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS document_chunks (
	document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	chunk_index INT NOT NULL,
	text TEXT NOT NULL,
	embedding vector,
	PRIMARY KEY (document_id, chunk_index)
);

CREATE TABLE IF NOT EXISTS sessions (
	user_id TEXT PRIMARY KEY,
	phone_number TEXT NOT NULL DEFAULT '',
	current_mode TEXT NOT NULL DEFAULT 'natural',
	mode_activated_at TIMESTAMPTZ,
	last_query TEXT,
	last_message TEXT NOT NULL DEFAULT '',
	message_count INT NOT NULL DEFAULT 0,
	first_interaction TIMESTAMPTZ NOT NULL,
	last_interaction TIMESTAMPTZ NOT NULL,
	is_blocked BOOLEAN NOT NULL DEFAULT false
);

CREATE INDEX IF NOT EXISTS idx_sessions_last_interaction ON sessions(last_interaction);

CREATE TABLE IF NOT EXISTS session_messages (
	id BIGSERIAL PRIMARY KEY,
	user_id TEXT NOT NULL,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_session_messages_user ON session_messages(user_id, id DESC);
`

// EnsureSchema creates every table the bot uses.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2025061501)); err != nil {
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
