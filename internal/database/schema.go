// internal/database/schema.go
package database

// postgresSchema creates the session and move history tables.
const postgresSchema = `
CREATE TABLE IF NOT EXISTS game_sessions (
	id           UUID PRIMARY KEY,
	game_id      TEXT NOT NULL,
	participants TEXT[] NOT NULL,
	state        JSONB NOT NULL,
	status       TEXT NOT NULL,
	winner       TEXT NOT NULL DEFAULT '',
	version      INTEGER NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS game_sessions_status_created_idx
	ON game_sessions (status, created_at DESC);

CREATE TABLE IF NOT EXISTS session_moves (
	session_id  UUID NOT NULL,
	version     INTEGER NOT NULL,
	game_id     TEXT NOT NULL,
	participant TEXT NOT NULL,
	move        JSONB NOT NULL,
	status      TEXT NOT NULL,
	winner      TEXT NOT NULL DEFAULT '',
	recorded_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (session_id, version)
);
`

// sqliteSchema mirrors postgresSchema. Participants and JSON columns are stored as text,
// timestamps as unix milliseconds.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS game_sessions (
	id           TEXT PRIMARY KEY,
	game_id      TEXT NOT NULL,
	participants TEXT NOT NULL,
	state        TEXT NOT NULL,
	status       TEXT NOT NULL,
	winner       TEXT NOT NULL DEFAULT '',
	version      INTEGER NOT NULL,
	created_at   INTEGER NOT NULL,
	updated_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS game_sessions_status_created_idx
	ON game_sessions (status, created_at DESC);

CREATE TABLE IF NOT EXISTS session_moves (
	session_id  TEXT NOT NULL,
	version     INTEGER NOT NULL,
	game_id     TEXT NOT NULL,
	participant TEXT NOT NULL,
	move        TEXT NOT NULL,
	status      TEXT NOT NULL,
	winner      TEXT NOT NULL DEFAULT '',
	recorded_at INTEGER NOT NULL,
	PRIMARY KEY (session_id, version)
);
`
