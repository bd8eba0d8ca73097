package index

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

const (
	JobTurnSummary    = "turn_summary"
	JobSessionSummary = "session_summary"
	JobEventSummary   = "event_summary"
)

const (
	JobQueued     = "queued"
	JobRetry      = "retry"
	JobProcessing = "processing"
	JobDone       = "done"
	JobFailed     = "failed"
)

// JobLease is how long a claimed job stays invisible to other workers.
const JobLease = 5 * time.Minute

const maxJobError = 2000

type Job struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	DedupeKey string `json:"dedupe_key"`
	Payload   string `json:"payload,omitempty"`
	Status    string `json:"status"`
	Priority  int    `json:"priority"`
	Attempts  int    `json:"attempts"`
	LastError string `json:"last_error,omitempty"`
	CreatedAt string `json:"created_at"`
}

// Decode unmarshals the job payload into v.
func (j *Job) Decode(v any) error {
	if j.Payload == "" {
		return nil
	}
	return json.Unmarshal([]byte(j.Payload), v)
}

const jobColumns = "id, kind, dedupe_key, payload, status, priority, attempts, last_error, created_at"

func scanJob(row scanner) (*Job, error) {
	var j Job
	if err := row.Scan(&j.ID, &j.Kind, &j.DedupeKey, &j.Payload, &j.Status, &j.Priority,
		&j.Attempts, &j.LastError, &j.CreatedAt); err != nil {
		return nil, err
	}
	return &j, nil
}

// EnqueueJob adds a job unless one with the same dedupe key is already
// pending. A finished or failed job with that key is re-armed with the new
// payload. The id of the stored job is returned.
func (d *DB) EnqueueJob(kind, dedupeKey string, payload any, priority int) (string, error) {
	var body string
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return "", fmt.Errorf("encode %s payload: %w", kind, err)
		}
		body = string(b)
	}

	ts := now()
	_, err := d.db.Exec(
		`INSERT INTO jobs (id, kind, dedupe_key, payload, priority, next_run_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(dedupe_key) DO UPDATE SET
		   status = 'queued',
		   payload = excluded.payload,
		   priority = excluded.priority,
		   attempts = 0,
		   last_error = '',
		   next_run_at = excluded.next_run_at,
		   updated_at = excluded.updated_at
		 WHERE jobs.status IN ('done', 'failed')`,
		uuid.NewString(), kind, dedupeKey, body, priority, ts, ts, ts,
	)
	if err != nil {
		return "", fmt.Errorf("enqueue %s: %w", dedupeKey, err)
	}

	var id string
	if err := d.db.QueryRow("SELECT id FROM jobs WHERE dedupe_key = ?", dedupeKey).Scan(&id); err != nil {
		return "", err
	}
	return id, nil
}

// ClaimJob atomically leases the highest-priority runnable job. Jobs whose
// lease ran out while processing are runnable again. It returns nil when
// nothing is due.
func (d *DB) ClaimJob(workerID string, kinds ...string) (*Job, error) {
	at := time.Now()
	ts := sqlTime(at)

	where := `(status IN ('queued', 'retry') OR (status = 'processing' AND locked_until <= ?))
	  AND next_run_at <= ?`
	args := []any{workerID, sqlTime(at.Add(JobLease)), ts, ts, ts}
	if len(kinds) > 0 {
		where += " AND kind IN (?" + strings.Repeat(", ?", len(kinds)-1) + ")"
		for _, k := range kinds {
			args = append(args, k)
		}
	}

	row := d.db.QueryRow(
		`UPDATE jobs SET status = 'processing', locked_by = ?, locked_until = ?,
		   attempts = attempts + 1, updated_at = ?
		 WHERE id = (
		   SELECT id FROM jobs WHERE `+where+`
		   ORDER BY priority DESC, created_at ASC, rowid ASC
		   LIMIT 1
		 )
		 RETURNING `+jobColumns,
		args...,
	)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	return j, nil
}

func (d *DB) CompleteJob(id string) error {
	_, err := d.db.Exec(
		"UPDATE jobs SET status = 'done', locked_by = '', locked_until = '', updated_at = ? WHERE id = ?",
		now(), id,
	)
	return err
}

// FailJob records an error and marks the job failed for good.
func (d *DB) FailJob(id, msg string) error {
	_, err := d.db.Exec(
		`UPDATE jobs SET status = ?, last_error = ?, locked_by = '', locked_until = '', updated_at = ?
		 WHERE id = ?`,
		JobFailed, clipError(msg), now(), id,
	)
	return err
}

// RetryJob records an error and puts the job back in the queue. It is not
// claimable again until after has passed.
func (d *DB) RetryJob(id, msg string, after time.Duration) error {
	at := time.Now()
	_, err := d.db.Exec(
		`UPDATE jobs SET status = ?, last_error = ?, locked_by = '', locked_until = '',
		   next_run_at = ?, updated_at = ?
		 WHERE id = ?`,
		JobRetry, clipError(msg), sqlTime(at.Add(after)), sqlTime(at), id,
	)
	return err
}

func clipError(msg string) string {
	if len(msg) > maxJobError {
		return msg[:maxJobError]
	}
	return msg
}

func (d *DB) GetJob(id string) (*Job, error) {
	j, err := scanJob(d.db.QueryRow("SELECT "+jobColumns+" FROM jobs WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return j, err
}

// JobCounts returns the number of jobs per status.
func (d *DB) JobCounts() (map[string]int, error) {
	rows, err := d.db.Query("SELECT status, COUNT(*) FROM jobs GROUP BY status")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
