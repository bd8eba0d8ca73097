package index

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("not found")

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
    id                 TEXT PRIMARY KEY,
    file_path          TEXT NOT NULL,
    session_type       TEXT NOT NULL DEFAULT 'claude',
    workspace          TEXT NOT NULL DEFAULT '',
    started_at         TEXT NOT NULL DEFAULT '',
    last_activity_at   TEXT NOT NULL DEFAULT '',
    title              TEXT NOT NULL DEFAULT '',
    summary            TEXT NOT NULL DEFAULT '',
    summary_updated_at TEXT NOT NULL DEFAULT '',
    total_turns        INTEGER NOT NULL DEFAULT 0,
    mtime              INTEGER NOT NULL DEFAULT 0,
    size               INTEGER NOT NULL DEFAULT 0,
    created_at         TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at         TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS turns (
    id                TEXT PRIMARY KEY,
    session_id        TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
    turn_number       INTEGER NOT NULL,
    user_message      TEXT NOT NULL DEFAULT '',
    assistant_summary TEXT NOT NULL DEFAULT '',
    title             TEXT NOT NULL DEFAULT '',
    description       TEXT NOT NULL DEFAULT '',
    model_name        TEXT NOT NULL DEFAULT '',
    content_hash      TEXT NOT NULL,
    timestamp         TEXT NOT NULL DEFAULT '',
    is_continuation   INTEGER NOT NULL DEFAULT 0,
    satisfaction      TEXT NOT NULL DEFAULT 'fine',
    tool_summary      TEXT NOT NULL DEFAULT '',
    files_modified    TEXT NOT NULL DEFAULT '',
    start_line        INTEGER NOT NULL DEFAULT 0,
    end_line          INTEGER NOT NULL DEFAULT 0,
    summarized        INTEGER NOT NULL DEFAULT 0,
    created_at        TEXT NOT NULL DEFAULT (datetime('now')),
    UNIQUE(session_id, turn_number),
    UNIQUE(session_id, content_hash)
);

CREATE TABLE IF NOT EXISTS turn_content (
    turn_id      TEXT PRIMARY KEY REFERENCES turns(id) ON DELETE CASCADE,
    content      TEXT NOT NULL,
    content_size INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS events (
    id              TEXT PRIMARY KEY,
    title           TEXT NOT NULL,
    description     TEXT NOT NULL DEFAULT '',
    event_type      TEXT NOT NULL DEFAULT 'task',
    status          TEXT NOT NULL DEFAULT 'completed',
    start_timestamp TEXT NOT NULL DEFAULT '',
    end_timestamp   TEXT NOT NULL DEFAULT '',
    metadata        TEXT NOT NULL DEFAULT '',
    created_at      TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at      TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS event_sessions (
    event_id   TEXT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
    session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
    added_at   TEXT NOT NULL DEFAULT (datetime('now')),
    PRIMARY KEY (event_id, session_id)
);

CREATE TABLE IF NOT EXISTS jobs (
    id           TEXT PRIMARY KEY,
    kind         TEXT NOT NULL,
    dedupe_key   TEXT NOT NULL UNIQUE,
    payload      TEXT NOT NULL DEFAULT '',
    status       TEXT NOT NULL DEFAULT 'queued',
    priority     INTEGER NOT NULL DEFAULT 0,
    attempts     INTEGER NOT NULL DEFAULT 0,
    next_run_at  TEXT NOT NULL DEFAULT (datetime('now')),
    locked_until TEXT NOT NULL DEFAULT '',
    locked_by    TEXT NOT NULL DEFAULT '',
    last_error   TEXT NOT NULL DEFAULT '',
    created_at   TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at   TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT);

CREATE VIRTUAL TABLE IF NOT EXISTS turns_fts USING fts5(
    title,
    description,
    user_message,
    assistant_summary,
    content=turns,
    content_rowid=rowid,
    tokenize='unicode61'
);

-- triggers to keep FTS in sync
CREATE TRIGGER IF NOT EXISTS turns_ai AFTER INSERT ON turns BEGIN
    INSERT INTO turns_fts(rowid, title, description, user_message, assistant_summary)
    VALUES (new.rowid, new.title, new.description, new.user_message, new.assistant_summary);
END;

CREATE TRIGGER IF NOT EXISTS turns_ad AFTER DELETE ON turns BEGIN
    INSERT INTO turns_fts(turns_fts, rowid, title, description, user_message, assistant_summary)
    VALUES ('delete', old.rowid, old.title, old.description, old.user_message, old.assistant_summary);
END;

CREATE TRIGGER IF NOT EXISTS turns_au AFTER UPDATE ON turns BEGIN
    INSERT INTO turns_fts(turns_fts, rowid, title, description, user_message, assistant_summary)
    VALUES ('delete', old.rowid, old.title, old.description, old.user_message, old.assistant_summary);
    INSERT INTO turns_fts(rowid, title, description, user_message, assistant_summary)
    VALUES (new.rowid, new.title, new.description, new.user_message, new.assistant_summary);
END;

CREATE VIRTUAL TABLE IF NOT EXISTS events_fts USING fts5(
    title,
    description,
    content=events,
    content_rowid=rowid,
    tokenize='unicode61'
);

CREATE TRIGGER IF NOT EXISTS events_ai AFTER INSERT ON events BEGIN
    INSERT INTO events_fts(rowid, title, description) VALUES (new.rowid, new.title, new.description);
END;

CREATE TRIGGER IF NOT EXISTS events_ad AFTER DELETE ON events BEGIN
    INSERT INTO events_fts(events_fts, rowid, title, description) VALUES ('delete', old.rowid, old.title, old.description);
END;

CREATE TRIGGER IF NOT EXISTS events_au AFTER UPDATE ON events BEGIN
    INSERT INTO events_fts(events_fts, rowid, title, description) VALUES ('delete', old.rowid, old.title, old.description);
    INSERT INTO events_fts(rowid, title, description) VALUES (new.rowid, new.title, new.description);
END;

CREATE INDEX IF NOT EXISTS idx_sessions_workspace ON sessions(workspace);
CREATE INDEX IF NOT EXISTS idx_sessions_activity ON sessions(last_activity_at DESC);
CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session_id);
CREATE INDEX IF NOT EXISTS idx_turns_timestamp ON turns(timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_event_sessions_session ON event_sessions(session_id);
CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status, next_run_at);
`

// DB is the record store handle. Open one per process and pass it to
// whatever needs persistence.
type DB struct {
	db   *sql.DB
	path string
}

func OpenDB(dbPath string) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	d := &DB{db: db, path: dbPath}
	d.migrateSchemaVersion()

	return d, nil
}

// dsn applies the pragmas on every pooled connection.
func dsn(path string) string {
	q := url.Values{}
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "synchronous(NORMAL)")
	q.Add("_pragma", "foreign_keys(1)")
	return "file:" + path + "?" + q.Encode()
}

// schemaVersion should be bumped whenever turn parsing logic changes
// to force a full re-import.
const schemaVersion = "1"

func (d *DB) migrateSchemaVersion() {
	var ver string
	err := d.db.QueryRow("SELECT value FROM meta WHERE key = 'schema_version'").Scan(&ver)
	if err != nil || ver != schemaVersion {
		// force re-import by resetting all session mtime/size to 0
		d.db.Exec("UPDATE sessions SET mtime = 0, size = 0")
		d.db.Exec("INSERT OR REPLACE INTO meta (key, value) VALUES ('schema_version', ?)", schemaVersion)
	}
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) Raw() *sql.DB {
	return d.db
}

func (d *DB) Path() string {
	return d.path
}

// sqlTime matches SQLite's datetime('now') so stored times compare as text.
const sqlTimeLayout = "2006-01-02 15:04:05"

func sqlTime(t time.Time) string {
	return t.UTC().Format(sqlTimeLayout)
}

func now() string {
	return sqlTime(time.Now())
}

type Stats struct {
	DBPath      string  `json:"db_path"`
	DBSizeMB    float64 `json:"db_size_mb"`
	Sessions    int     `json:"sessions"`
	Turns       int     `json:"turns"`
	Summarized  int     `json:"turns_summarized"`
	Events      int     `json:"events"`
	JobsPending int     `json:"jobs_pending"`
	JobsFailed  int     `json:"jobs_failed"`
}

func (d *DB) Stats() (Stats, error) {
	s := Stats{DBPath: d.path}
	counts := []struct {
		dst   *int
		query string
	}{
		{&s.Sessions, "SELECT COUNT(*) FROM sessions"},
		{&s.Turns, "SELECT COUNT(*) FROM turns"},
		{&s.Summarized, "SELECT COUNT(*) FROM turns WHERE summarized = 1"},
		{&s.Events, "SELECT COUNT(*) FROM events"},
		{&s.JobsPending, "SELECT COUNT(*) FROM jobs WHERE status IN ('queued', 'retry')"},
		{&s.JobsFailed, "SELECT COUNT(*) FROM jobs WHERE status = 'failed'"},
	}
	for _, c := range counts {
		if err := d.db.QueryRow(c.query).Scan(c.dst); err != nil {
			return s, err
		}
	}
	if info, err := os.Stat(d.path); err == nil {
		s.DBSizeMB = float64(info.Size()*100/(1024*1024)) / 100
	}
	return s, nil
}
