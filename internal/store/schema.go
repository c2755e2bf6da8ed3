package store

// schema is applied on every open; CREATE IF NOT EXISTS keeps it
// idempotent across restarts.
const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id                TEXT PRIMARY KEY,
	name              TEXT NOT NULL,
	gender            TEXT NOT NULL DEFAULT '',
	birth             TEXT NOT NULL DEFAULT '',
	password_hash     TEXT NOT NULL,
	overall_summary   TEXT NOT NULL DEFAULT '',
	diagnosis_summary TEXT NOT NULL DEFAULT '',
	created_at        TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_sessions_name ON sessions(name);

CREATE TABLE IF NOT EXISTS drawings (
	id          TEXT PRIMARY KEY,
	session_id  TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	type        TEXT NOT NULL,
	filename    TEXT NOT NULL,
	path        TEXT NOT NULL,
	erase_count INTEGER NOT NULL DEFAULT 0,
	reset_count INTEGER NOT NULL DEFAULT 0,
	duration    INTEGER NOT NULL DEFAULT 0,
	pen_usage   TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL DEFAULT 'uploaded',
	result      TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_drawings_session ON drawings(session_id);
`
