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

// EnsureSchema bootstraps all tables. Serialized across api/worker startups
// with an advisory lock so concurrent DDL never races.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082501)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS case_documents (
	id TEXT PRIMARY KEY,
	case_id TEXT NOT NULL,
	doc_type TEXT NOT NULL,
	filename TEXT NOT NULL,
	mime_type TEXT NOT NULL,
	storage_path TEXT NOT NULL,
	content TEXT NOT NULL DEFAULT '',
	doc_date TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_case_documents_case ON case_documents(case_id, created_at);

CREATE TABLE IF NOT EXISTS case_facts (
	id TEXT PRIMARY KEY,
	case_id TEXT NOT NULL,
	fact_type TEXT NOT NULL,
	fact_date TEXT NOT NULL,
	amount_eur DOUBLE PRECISION NOT NULL,
	counterparty TEXT NOT NULL,
	confidence DOUBLE PRECISION NOT NULL,
	fingerprint TEXT NOT NULL UNIQUE,
	evidence JSONB NOT NULL DEFAULT '[]'::jsonb,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_case_facts_case ON case_facts(case_id);

CREATE TABLE IF NOT EXISTS ledger_entries (
	id BIGSERIAL PRIMARY KEY,
	case_id TEXT NOT NULL,
	phase TEXT NOT NULL,
	provider TEXT NOT NULL,
	model TEXT NOT NULL,
	input_tokens INTEGER NOT NULL,
	output_tokens INTEGER NOT NULL,
	cost_usd DOUBLE PRECISION NOT NULL,
	trace_id TEXT NOT NULL,
	pricing_version TEXT NOT NULL,
	pricing_fingerprint TEXT NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_ledger_entries_case ON ledger_entries(case_id, recorded_at);

CREATE TABLE IF NOT EXISTS case_runs (
	id TEXT PRIMARY KEY,
	case_id TEXT NOT NULL,
	status TEXT NOT NULL,
	stage TEXT,
	error_message TEXT,
	state JSONB,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_case_runs_case ON case_runs(case_id, created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}
