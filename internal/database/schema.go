package database

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	username      TEXT NOT NULL,
	email         TEXT UNIQUE NOT NULL,
	password_hash TEXT NOT NULL,
	avatar_url    TEXT NOT NULL DEFAULT '',
	longitude     DOUBLE PRECISION,
	latitude      DOUBLE PRECISION,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS conversations (
	id                   TEXT PRIMARY KEY,
	user_id1             TEXT NOT NULL REFERENCES users (id),
	user_id2             TEXT NOT NULL REFERENCES users (id),
	last_message_time    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	last_message_content TEXT NOT NULL DEFAULT '',
	created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (user_id1, user_id2)
);

CREATE TABLE IF NOT EXISTS messages (
	id              TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL REFERENCES conversations (id),
	sender_id       TEXT NOT NULL,
	recipient_id    TEXT NOT NULL,
	content         TEXT NOT NULL,
	sent_time       TIMESTAMPTZ NOT NULL,
	read_status     SMALLINT NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS messages_conversation_sent ON messages (conversation_id, sent_time DESC);

CREATE TABLE IF NOT EXISTS call_records (
	id              TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL REFERENCES conversations (id),
	caller_id       TEXT NOT NULL,
	callee_id       TEXT NOT NULL,
	start_time      TIMESTAMPTZ NOT NULL,
	end_time        TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS follows (
	follower_id TEXT NOT NULL,
	followee_id TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (follower_id, followee_id)
);

CREATE TABLE IF NOT EXISTS blocks (
	blocker_id TEXT NOT NULL,
	blocked_id TEXT NOT NULL,
	PRIMARY KEY (blocker_id, blocked_id)
);

CREATE TABLE IF NOT EXISTS visits (
	visitor_id TEXT NOT NULL,
	user_id    TEXT NOT NULL,
	visited_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (visitor_id, user_id)
);
`

// one table per notification kind, identical shape
const notificationTableSchema = `
CREATE TABLE IF NOT EXISTS %s (
	id          TEXT PRIMARY KEY,
	from_user   TEXT NOT NULL,
	to_user     TEXT NOT NULL,
	content     TEXT NOT NULL DEFAULT '',
	read_status SMALLINT NOT NULL DEFAULT 0,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS %s_unread ON %s (to_user, read_status);
`

// EnsureSchema creates the tables the core reads and writes.
func (db *PostgresDB) EnsureSchema(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schema); err != nil {
		return errors.Wrap(err, "create schema")
	}
	for _, table := range []string{
		"interaction_notifications", "status_notifications", "gift_notifications", "system_notifications",
	} {
		stmt := fmt.Sprintf(notificationTableSchema, table, table, table)
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return errors.Wrapf(err, "create %s", table)
		}
	}
	return nil
}
