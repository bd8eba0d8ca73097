package index

import (
	"database/sql"
	"errors"
	"fmt"
)

type Event struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Description    string   `json:"description,omitempty"`
	EventType      string   `json:"event_type"`
	Status         string   `json:"status"`
	StartTimestamp string   `json:"start_timestamp,omitempty"`
	EndTimestamp   string   `json:"end_timestamp,omitempty"`
	Metadata       string   `json:"metadata,omitempty"`
	CreatedAt      string   `json:"created_at,omitempty"`
	UpdatedAt      string   `json:"updated_at,omitempty"`
	SessionIDs     []string `json:"session_ids,omitempty"`
}

const eventColumns = `id, title, description, event_type, status, start_timestamp, end_timestamp,
	metadata, created_at, updated_at`

func scanEvent(row scanner) (*Event, error) {
	var e Event
	err := row.Scan(&e.ID, &e.Title, &e.Description, &e.EventType, &e.Status, &e.StartTimestamp,
		&e.EndTimestamp, &e.Metadata, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// UpsertEvent stores an event and links it to sessionIDs. Existing links
// are kept.
func (d *DB) UpsertEvent(e *Event, sessionIDs []string) error {
	if e.EventType == "" {
		e.EventType = "task"
	}
	if e.Status == "" {
		e.Status = "completed"
	}
	ts := now()

	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO events (id, title, description, event_type, status, start_timestamp, end_timestamp,
		   metadata, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   title = excluded.title,
		   description = excluded.description,
		   status = excluded.status,
		   end_timestamp = excluded.end_timestamp,
		   metadata = excluded.metadata,
		   updated_at = excluded.updated_at`,
		e.ID, e.Title, e.Description, e.EventType, e.Status, e.StartTimestamp, e.EndTimestamp,
		e.Metadata, ts, ts,
	)
	if err != nil {
		return fmt.Errorf("upsert event %s: %w", e.ID, err)
	}

	for _, sid := range sessionIDs {
		if _, err := tx.Exec(
			"INSERT OR IGNORE INTO event_sessions (event_id, session_id) VALUES (?, ?)",
			e.ID, sid,
		); err != nil {
			return fmt.Errorf("link event %s to session %s: %w", e.ID, sid, err)
		}
	}
	return tx.Commit()
}

func (d *DB) GetEvent(id string) (*Event, error) {
	e, err := scanEvent(d.db.QueryRow("SELECT "+eventColumns+" FROM events WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := d.db.Query("SELECT session_id FROM event_sessions WHERE event_id = ? ORDER BY added_at, session_id", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var sid string
		if err := rows.Scan(&sid); err != nil {
			return nil, err
		}
		e.SessionIDs = append(e.SessionIDs, sid)
	}
	return e, rows.Err()
}

func (d *DB) ListEvents(limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.db.Query("SELECT "+eventColumns+" FROM events ORDER BY updated_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func (d *DB) SessionsForEvent(eventID string) ([]Session, error) {
	return d.querySessions(
		`SELECT `+prefixed("s.", sessionColumns)+` FROM sessions s
		 JOIN event_sessions es ON s.id = es.session_id
		 WHERE es.event_id = ?
		 ORDER BY s.last_activity_at DESC`,
		eventID,
	)
}
