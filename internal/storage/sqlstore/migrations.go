package sqlstore

import (
	"context"
	"database/sql"
	"strings"
)

// Schemas run on startup to ensure tables exist. Tables are created in
// foreign key order.
//
// assignment_runs carries the (group_id, year) uniqueness that makes a second
// concurrent run for the same year fail. History rows keep name snapshots and
// do not reference participants, so removing a participant keeps past years.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS users (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    email TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    is_active INTEGER NOT NULL DEFAULT 1,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS groups (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    owner_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    revision INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS participants (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    group_id INTEGER NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    email TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    UNIQUE (group_id, email)
);

CREATE TABLE IF NOT EXISTS participant_restrictions (
    giver_id INTEGER NOT NULL REFERENCES participants(id) ON DELETE CASCADE,
    receiver_id INTEGER NOT NULL REFERENCES participants(id) ON DELETE CASCADE,
    PRIMARY KEY (giver_id, receiver_id),
    CHECK (giver_id <> receiver_id)
);

CREATE TABLE IF NOT EXISTS assignment_runs (
    id TEXT PRIMARY KEY,
    group_id INTEGER NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
    year INTEGER NOT NULL,
    created_at INTEGER NOT NULL,
    UNIQUE (group_id, year)
);

CREATE TABLE IF NOT EXISTS assignment_history (
    run_id TEXT NOT NULL REFERENCES assignment_runs(id) ON DELETE CASCADE,
    group_id INTEGER NOT NULL,
    year INTEGER NOT NULL,
    giver_id INTEGER NOT NULL,
    receiver_id INTEGER NOT NULL,
    giver_name TEXT NOT NULL,
    receiver_name TEXT NOT NULL,
    PRIMARY KEY (group_id, year, giver_id),
    UNIQUE (group_id, year, receiver_id),
    CHECK (giver_id <> receiver_id)
);

CREATE INDEX IF NOT EXISTS idx_groups_owner_id ON groups(owner_id);
CREATE INDEX IF NOT EXISTS idx_participants_group_id ON participants(group_id);
CREATE INDEX IF NOT EXISTS idx_restrictions_receiver_id ON participant_restrictions(receiver_id);
CREATE INDEX IF NOT EXISTS idx_history_run_id ON assignment_history(run_id);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS users (
    id BIGSERIAL PRIMARY KEY,
    email TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS groups (
    id BIGSERIAL PRIMARY KEY,
    owner_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    revision BIGINT NOT NULL DEFAULT 0,
    created_at BIGINT NOT NULL,
    updated_at BIGINT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS participants (
    id BIGSERIAL PRIMARY KEY,
    group_id BIGINT NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    email TEXT NOT NULL,
    created_at BIGINT NOT NULL,
    UNIQUE (group_id, email)
);

CREATE TABLE IF NOT EXISTS participant_restrictions (
    giver_id BIGINT NOT NULL REFERENCES participants(id) ON DELETE CASCADE,
    receiver_id BIGINT NOT NULL REFERENCES participants(id) ON DELETE CASCADE,
    PRIMARY KEY (giver_id, receiver_id),
    CHECK (giver_id <> receiver_id)
);

CREATE TABLE IF NOT EXISTS assignment_runs (
    id TEXT PRIMARY KEY,
    group_id BIGINT NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
    year INTEGER NOT NULL,
    created_at BIGINT NOT NULL,
    UNIQUE (group_id, year)
);

CREATE TABLE IF NOT EXISTS assignment_history (
    run_id TEXT NOT NULL REFERENCES assignment_runs(id) ON DELETE CASCADE,
    group_id BIGINT NOT NULL,
    year INTEGER NOT NULL,
    giver_id BIGINT NOT NULL,
    receiver_id BIGINT NOT NULL,
    giver_name TEXT NOT NULL,
    receiver_name TEXT NOT NULL,
    PRIMARY KEY (group_id, year, giver_id),
    UNIQUE (group_id, year, receiver_id),
    CHECK (giver_id <> receiver_id)
);

CREATE INDEX IF NOT EXISTS idx_groups_owner_id ON groups(owner_id);
CREATE INDEX IF NOT EXISTS idx_participants_group_id ON participants(group_id);
CREATE INDEX IF NOT EXISTS idx_restrictions_receiver_id ON participant_restrictions(receiver_id);
CREATE INDEX IF NOT EXISTS idx_history_run_id ON assignment_history(run_id);
`

// runMigrations executes the schema setup one statement at a time, since
// not every driver accepts multiple statements per Exec.
func runMigrations(ctx context.Context, db *sql.DB, schema string) error {
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
