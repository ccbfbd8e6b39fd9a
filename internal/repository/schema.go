package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaSQL creates the application tables. River manages its own tables
// through rivermigrate.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS bots (
	id              UUID PRIMARY KEY,
	wallet_address  TEXT NOT NULL UNIQUE,
	name            TEXT NOT NULL,
	description     TEXT NOT NULL DEFAULT '',
	api_key_hash    TEXT NOT NULL UNIQUE,
	api_key_prefix  TEXT NOT NULL,
	skills          JSONB NOT NULL DEFAULT '[]',
	accepted_tokens JSONB NOT NULL DEFAULT '[]',
	min_budgets     JSONB NOT NULL DEFAULT '{}',
	status          TEXT NOT NULL DEFAULT 'online',
	max_concurrent  INTEGER NOT NULL DEFAULT 3,
	auto_accept     BOOLEAN NOT NULL DEFAULT TRUE,
	rating          NUMERIC(2,1) NOT NULL DEFAULT 0,
	rated_count     INTEGER NOT NULL DEFAULT 0,
	completed_tasks INTEGER NOT NULL DEFAULT 0,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS tasks (
	id                   UUID PRIMARY KEY,
	title                TEXT NOT NULL,
	description          TEXT NOT NULL DEFAULT '',
	budget               NUMERIC(18,6) NOT NULL,
	token                TEXT NOT NULL,
	mode                 TEXT NOT NULL DEFAULT 'solo',
	skills               JSONB NOT NULL DEFAULT '[]',
	deadline             TIMESTAMPTZ NOT NULL,
	status               TEXT NOT NULL DEFAULT 'open',
	buyer_address        TEXT NOT NULL,
	bot_id               UUID REFERENCES bots(id),
	delivery_content     TEXT,
	delivery_attachments JSONB,
	delivered_at         TIMESTAMPTZ,
	rating               INTEGER,
	review               TEXT,
	confirmed_at         TIMESTAMPTZ,
	dispute_reason       TEXT,
	dispute_status       TEXT,
	disputed_at          TIMESTAMPTZ,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS tasks_status_idx ON tasks (status);
CREATE INDEX IF NOT EXISTS tasks_buyer_idx ON tasks (buyer_address);
CREATE INDEX IF NOT EXISTS tasks_delivered_at_idx ON tasks (delivered_at) WHERE status = 'delivered';
`

// EnsureSchema creates the bots and tasks tables if they do not exist.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schemaSQL)
	return err
}
