package index

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

type Session struct {
	ID               string `json:"id"`
	FilePath         string `json:"file_path"`
	SessionType      string `json:"session_type"`
	Workspace        string `json:"workspace"`
	StartedAt        string `json:"started_at"`
	LastActivityAt   string `json:"last_activity_at"`
	Title            string `json:"title,omitempty"`
	Summary          string `json:"summary,omitempty"`
	SummaryUpdatedAt string `json:"summary_updated_at,omitempty"`
	TotalTurns       int    `json:"total_turns"`
	Mtime            int64  `json:"-"`
	Size             int64  `json:"-"`
	CreatedAt        string `json:"created_at,omitempty"`
	UpdatedAt        string `json:"updated_at,omitempty"`
}

const sessionColumns = `id, file_path, session_type, workspace, started_at, last_activity_at,
	title, summary, summary_updated_at, total_turns, mtime, size, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*Session, error) {
	var s Session
	err := row.Scan(&s.ID, &s.FilePath, &s.SessionType, &s.Workspace, &s.StartedAt, &s.LastActivityAt,
		&s.Title, &s.Summary, &s.SummaryUpdatedAt, &s.TotalTurns, &s.Mtime, &s.Size, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// UpsertSession inserts a session or refreshes its location and activity.
// Summaries and counters survive the update.
func (d *DB) UpsertSession(s *Session) error {
	ts := now()
	_, err := d.db.Exec(
		`INSERT INTO sessions (id, file_path, session_type, workspace, started_at, last_activity_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   file_path = excluded.file_path,
		   workspace = excluded.workspace,
		   last_activity_at = MAX(last_activity_at, excluded.last_activity_at),
		   updated_at = excluded.updated_at`,
		s.ID, s.FilePath, s.SessionType, s.Workspace, s.StartedAt, s.LastActivityAt, ts, ts,
	)
	if err != nil {
		return fmt.Errorf("upsert session %s: %w", s.ID, err)
	}
	return nil
}

// TouchSession records the file state the session was last imported from.
func (d *DB) TouchSession(id string, mtime, size int64) error {
	_, err := d.db.Exec("UPDATE sessions SET mtime = ?, size = ? WHERE id = ?", mtime, size, id)
	return err
}

// RefreshSessionStats recomputes the turn count and last activity from the
// stored turns.
func (d *DB) RefreshSessionStats(id string) error {
	_, err := d.db.Exec(
		`UPDATE sessions SET
		   total_turns = (SELECT COUNT(*) FROM turns WHERE session_id = ?),
		   last_activity_at = COALESCE((SELECT MAX(timestamp) FROM turns WHERE session_id = ?), last_activity_at),
		   updated_at = ?
		 WHERE id = ?`,
		id, id, now(), id,
	)
	return err
}

type SessionInfo struct {
	Mtime int64
	Size  int64
}

// GetSessionInfo returns nil when the session has never been imported.
func (d *DB) GetSessionInfo(id string) (*SessionInfo, error) {
	var info SessionInfo
	err := d.db.QueryRow(
		"SELECT mtime, size FROM sessions WHERE id = ?",
		id,
	).Scan(&info.Mtime, &info.Size)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &info, nil
}

func (d *DB) GetSession(id string) (*Session, error) {
	s, err := scanSession(d.db.QueryRow("SELECT "+sessionColumns+" FROM sessions WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return s, err
}

// GetSessionByPrefix resolves an exact id first, then the most recently
// active session whose id starts with prefix.
func (d *DB) GetSessionByPrefix(prefix string) (*Session, error) {
	if s, err := d.GetSession(prefix); err == nil || !errors.Is(err, ErrNotFound) {
		return s, err
	}
	s, err := scanSession(d.db.QueryRow(
		"SELECT "+sessionColumns+" FROM sessions WHERE id LIKE ? ESCAPE '\\' ORDER BY last_activity_at DESC LIMIT 1",
		escapeLike(prefix)+"%",
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return s, err
}

// ListSessions returns sessions by recent activity, optionally limited to
// one workspace.
func (d *DB) ListSessions(workspace string, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 100
	}
	query := "SELECT " + sessionColumns + " FROM sessions"
	args := []any{}
	if workspace != "" {
		query += " WHERE workspace = ?"
		args = append(args, workspace)
	}
	query += " ORDER BY last_activity_at DESC LIMIT ?"
	args = append(args, limit)
	return d.querySessions(query, args...)
}

// TopSessions returns the sessions of a workspace with the most turns.
func (d *DB) TopSessions(workspace string, n int) ([]Session, error) {
	return d.querySessions(
		"SELECT "+sessionColumns+" FROM sessions WHERE workspace = ? ORDER BY total_turns DESC, last_activity_at DESC LIMIT ?",
		workspace, n,
	)
}

func (d *DB) querySessions(query string, args ...any) ([]Session, error) {
	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (d *DB) UpdateSessionSummary(id, title, summary string) error {
	ts := now()
	res, err := d.db.Exec(
		"UPDATE sessions SET title = ?, summary = ?, summary_updated_at = ?, updated_at = ? WHERE id = ?",
		title, summary, ts, ts, id,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteSession removes a session with its turns and event links.
func (d *DB) DeleteSession(id string) error {
	_, err := d.db.Exec("DELETE FROM sessions WHERE id = ?", id)
	return err
}

type Project struct {
	Workspace    string `json:"workspace"`
	Sessions     int    `json:"sessions"`
	Turns        int    `json:"turns"`
	LastActivity string `json:"last_activity_at"`
}

// Projects groups sessions by workspace, most recently active first.
func (d *DB) Projects() ([]Project, error) {
	rows, err := d.db.Query(
		`SELECT workspace, COUNT(*), COALESCE(SUM(total_turns), 0), MAX(last_activity_at)
		 FROM sessions WHERE workspace != ''
		 GROUP BY workspace ORDER BY MAX(last_activity_at) DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.Workspace, &p.Sessions, &p.Turns, &p.LastActivity); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// prefixed qualifies a comma-separated column list with a table alias.
func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
