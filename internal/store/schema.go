package store

const schemaSQL = `
CREATE TABLE IF NOT EXISTS sessions (
    session_id   TEXT PRIMARY KEY,
    created_at   TEXT NOT NULL,
    updated_at   TEXT,
    status       TEXT NOT NULL DEFAULT 'active',
    model        TEXT,
    provider     TEXT,
    display_name TEXT
);

CREATE TABLE IF NOT EXISTS trajectories (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id    TEXT NOT NULL REFERENCES sessions(session_id) ON DELETE CASCADE,
    record_type   TEXT NOT NULL,
    cost          REAL NOT NULL DEFAULT 0,
    input_tokens  INTEGER NOT NULL DEFAULT 0,
    output_tokens INTEGER NOT NULL DEFAULT 0,
    model         TEXT,
    step_data     TEXT,
    created_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS config (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trajectories_session ON trajectories(session_id);
CREATE INDEX IF NOT EXISTS idx_trajectories_type ON trajectories(record_type);
CREATE INDEX IF NOT EXISTS idx_sessions_created ON sessions(created_at);
`
