package index

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/Zuo-Peng/opencontext/internal/parse"
)

type Turn struct {
	ID               string          `json:"id"`
	SessionID        string          `json:"session_id"`
	TurnNumber       int             `json:"turn_number"`
	UserMessage      string          `json:"user_message"`
	AssistantSummary string          `json:"assistant_summary,omitempty"`
	Title            string          `json:"title"`
	Description      string          `json:"description,omitempty"`
	ModelName        string          `json:"model_name,omitempty"`
	ContentHash      string          `json:"content_hash"`
	Timestamp        string          `json:"timestamp"`
	IsContinuation   bool            `json:"is_continuation"`
	Satisfaction     string          `json:"satisfaction"`
	ToolUses         []parse.ToolUse `json:"tool_uses,omitempty"`
	FilesModified    []string        `json:"files_modified,omitempty"`
	StartLine        int             `json:"start_line"`
	EndLine          int             `json:"end_line"`
	Summarized       bool            `json:"summarized"`
	CreatedAt        string          `json:"created_at,omitempty"`
}

const turnColumns = `id, session_id, turn_number, user_message, assistant_summary, title, description,
	model_name, content_hash, timestamp, is_continuation, satisfaction, tool_summary, files_modified,
	start_line, end_line, summarized, created_at`

func scanTurn(row scanner) (*Turn, error) {
	var t Turn
	var tools, files string
	err := row.Scan(&t.ID, &t.SessionID, &t.TurnNumber, &t.UserMessage, &t.AssistantSummary, &t.Title,
		&t.Description, &t.ModelName, &t.ContentHash, &t.Timestamp, &t.IsContinuation, &t.Satisfaction,
		&tools, &files, &t.StartLine, &t.EndLine, &t.Summarized, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	if tools != "" {
		if err := json.Unmarshal([]byte(tools), &t.ToolUses); err != nil {
			return nil, fmt.Errorf("decode tool_summary of %s: %w", t.ID, err)
		}
	}
	if files != "" {
		if err := json.Unmarshal([]byte(files), &t.FilesModified); err != nil {
			return nil, fmt.Errorf("decode files_modified of %s: %w", t.ID, err)
		}
	}
	return &t, nil
}

func encodeList[T any](v []T) (string, error) {
	if len(v) == 0 {
		return "", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// InsertTurn stores a turn and its raw content. It reports false when the
// session already holds a turn with the same number or content hash.
func (d *DB) InsertTurn(t *Turn, content string) (bool, error) {
	tools, err := encodeList(t.ToolUses)
	if err != nil {
		return false, err
	}
	files, err := encodeList(t.FilesModified)
	if err != nil {
		return false, err
	}
	if t.Satisfaction == "" {
		t.Satisfaction = "fine"
	}

	tx, err := d.db.Begin()
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`INSERT OR IGNORE INTO turns (id, session_id, turn_number, user_message, assistant_summary, title,
		   description, model_name, content_hash, timestamp, is_continuation, satisfaction, tool_summary,
		   files_modified, start_line, end_line, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.SessionID, t.TurnNumber, t.UserMessage, t.AssistantSummary, t.Title,
		t.Description, t.ModelName, t.ContentHash, t.Timestamp, t.IsContinuation, t.Satisfaction, tools,
		files, t.StartLine, t.EndLine, now(),
	)
	if err != nil {
		return false, fmt.Errorf("insert turn %d of %s: %w", t.TurnNumber, t.SessionID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return false, nil
	}

	if content != "" {
		if _, err := tx.Exec(
			"INSERT OR IGNORE INTO turn_content (turn_id, content, content_size) VALUES (?, ?, ?)",
			t.ID, content, len(content),
		); err != nil {
			return false, err
		}
	}
	return true, tx.Commit()
}

func (d *DB) GetTurns(sessionID string) ([]Turn, error) {
	rows, err := d.db.Query(
		"SELECT "+turnColumns+" FROM turns WHERE session_id = ? ORDER BY turn_number",
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Turn
	for rows.Next() {
		t, err := scanTurn(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (d *DB) GetTurn(id string) (*Turn, error) {
	t, err := scanTurn(d.db.QueryRow("SELECT "+turnColumns+" FROM turns WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

func (d *DB) GetTurnByNumber(sessionID string, number int) (*Turn, error) {
	t, err := scanTurn(d.db.QueryRow(
		"SELECT "+turnColumns+" FROM turns WHERE session_id = ? AND turn_number = ?",
		sessionID, number,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

// HasTurnHash reports whether the session already stores a turn with this
// content hash.
func (d *DB) HasTurnHash(sessionID, hash string) (bool, error) {
	var n int
	err := d.db.QueryRow(
		"SELECT COUNT(*) FROM turns WHERE session_id = ? AND content_hash = ?",
		sessionID, hash,
	).Scan(&n)
	return n > 0, err
}

func (d *DB) MaxTurnNumber(sessionID string) (int, error) {
	var n int
	err := d.db.QueryRow(
		"SELECT COALESCE(MAX(turn_number), 0) FROM turns WHERE session_id = ?",
		sessionID,
	).Scan(&n)
	return n, err
}

func (d *DB) TurnContent(turnID string) (string, error) {
	var content string
	err := d.db.QueryRow("SELECT content FROM turn_content WHERE turn_id = ?", turnID).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return content, err
}

type TurnSummary struct {
	Title          string
	Description    string
	IsContinuation bool
	Satisfaction   string
	ModelName      string
}

func (d *DB) UpdateTurnSummary(turnID string, s TurnSummary) error {
	res, err := d.db.Exec(
		`UPDATE turns SET title = ?, description = ?, is_continuation = ?, satisfaction = ?,
		   model_name = ?, summarized = 1
		 WHERE id = ?`,
		s.Title, s.Description, s.IsContinuation, s.Satisfaction, s.ModelName, turnID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
