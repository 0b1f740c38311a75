package repository

import (
	"context"
	"database/sql"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS content_drafts (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		text TEXT NOT NULL,
		content_type TEXT NOT NULL DEFAULT 'post',
		status TEXT NOT NULL DEFAULT 'approved',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS scheduled_posts (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		content_ref TEXT NOT NULL,
		text TEXT NOT NULL,
		content_type TEXT NOT NULL DEFAULT 'post',
		scheduled_time TIMESTAMPTZ NOT NULL,
		priority SMALLINT NOT NULL DEFAULT 2,
		status TEXT NOT NULL,
		retry_count INT NOT NULL DEFAULT 0,
		max_retries INT NOT NULL DEFAULT 3,
		force BOOLEAN NOT NULL DEFAULT FALSE,
		posted_at TIMESTAMPTZ,
		posted_external_id TEXT,
		last_error_code TEXT,
		last_error_message TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CHECK (retry_count <= max_retries)
	)`,
	`ALTER TABLE scheduled_posts ADD COLUMN IF NOT EXISTS force BOOLEAN NOT NULL DEFAULT FALSE`,
	`CREATE INDEX IF NOT EXISTS scheduled_posts_due_idx ON scheduled_posts (status, priority DESC, scheduled_time)`,
	`CREATE INDEX IF NOT EXISTS scheduled_posts_owner_idx ON scheduled_posts (owner_id, status)`,
	`CREATE TABLE IF NOT EXISTS posting_rules (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		name TEXT NOT NULL,
		enabled BOOLEAN NOT NULL DEFAULT TRUE,
		priority INT NOT NULL DEFAULT 0,
		rule_type TEXT NOT NULL,
		kind TEXT NOT NULL,
		conditions JSONB NOT NULL DEFAULT '{}',
		action TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS posting_rules_owner_idx ON posting_rules (owner_id, priority)`,
	`CREATE TABLE IF NOT EXISTS scheduling_preferences (
		owner_id TEXT PRIMARY KEY,
		timezone TEXT NOT NULL DEFAULT 'UTC',
		preferred_posting_times TEXT[] NOT NULL DEFAULT '{}',
		max_posts_per_day INT NOT NULL DEFAULT 5,
		min_interval_minutes INT NOT NULL DEFAULT 60,
		avoid_weekends BOOLEAN NOT NULL DEFAULT FALSE,
		quiet_hours_start TEXT,
		quiet_hours_end TEXT,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS posting_history (
		id BIGSERIAL PRIMARY KEY,
		owner_id TEXT NOT NULL,
		post_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		external_id TEXT NOT NULL DEFAULT '',
		error_code TEXT NOT NULL DEFAULT '',
		error_message TEXT NOT NULL DEFAULT '',
		retry_count INT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS posting_history_post_idx ON posting_history (post_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS social_accounts (
		id BIGSERIAL PRIMARY KEY,
		user_id TEXT NOT NULL,
		platform TEXT NOT NULL,
		account_id TEXT NOT NULL,
		account_username TEXT NOT NULL DEFAULT '',
		access_token TEXT NOT NULL,
		refresh_token TEXT NOT NULL DEFAULT '',
		token_expires_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (user_id, platform, account_id)
	)`,
}

// Migrate creates the tables the engine needs if they do not exist yet.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate statement %d: %w", i, err)
		}
	}
	return nil
}
