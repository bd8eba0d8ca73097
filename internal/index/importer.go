package index

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Zuo-Peng/opencontext/internal/parse"
	"github.com/Zuo-Peng/opencontext/internal/scan"
)

// ErrUnknownFormat is returned for files that are not Claude Code
// transcripts.
var ErrUnknownFormat = errors.New("unknown session format")

const (
	StatusImported     = "imported"
	StatusUpToDate     = "up_to_date"
	StatusSkippedEmpty = "skipped_empty"
	StatusUnchanged    = "unchanged"
)

type ImportResult struct {
	SessionID     string `json:"session_id"`
	Status        string `json:"status"`
	TurnsImported int    `json:"turns_imported"`
	TurnsSkipped  int    `json:"turns_skipped"`
}

// TurnJob is the payload of a turn_summary job.
type TurnJob struct {
	SessionID  string `json:"session_id"`
	TurnID     string `json:"turn_id"`
	TurnNumber int    `json:"turn_number"`
}

// SessionJob is the payload of a session_summary job.
type SessionJob struct {
	SessionID string `json:"session_id"`
}

// Importer parses transcripts into the store and queues summarization.
type Importer struct {
	db   *DB
	opts parse.Options
	log  zerolog.Logger
}

func NewImporter(db *DB, opts parse.Options, log zerolog.Logger) *Importer {
	return &Importer{db: db, opts: opts, log: log}
}

// ImportSession imports one transcript. Known sessions are re-parsed only
// past their last stored turn unless force is set; turns whose content hash
// is already stored are skipped either way.
func (im *Importer) ImportSession(path string, force bool) (ImportResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return ImportResult{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if parse.DetectFormat(path) != parse.FormatClaude {
		return ImportResult{}, fmt.Errorf("%s: %w", path, ErrUnknownFormat)
	}

	sid := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	res := ImportResult{SessionID: sid}

	existing, err := im.db.GetSession(sid)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return res, err
	}

	opts := im.opts
	if existing != nil && !force {
		if opts.SinceTurn, err = im.db.MaxTurnNumber(sid); err != nil {
			return res, err
		}
	}

	turns, err := parse.ParseSession(path, opts)
	if err != nil {
		return res, err
	}
	if len(turns) == 0 {
		if existing == nil {
			res.Status = StatusSkippedEmpty
			return res, nil
		}
		res.Status = StatusUpToDate
		return res, im.db.TouchSession(sid, info.ModTime().Unix(), info.Size())
	}

	if err := im.db.UpsertSession(&Session{
		ID:             sid,
		FilePath:       path,
		SessionType:    string(parse.FormatClaude),
		Workspace:      parse.ProjectPath(path),
		StartedAt:      turns[0].Timestamp,
		LastActivityAt: turns[len(turns)-1].Timestamp,
	}); err != nil {
		return res, err
	}

	for _, pt := range turns {
		dup, err := im.db.HasTurnHash(sid, pt.ContentHash)
		if err != nil {
			return res, err
		}
		if dup {
			res.TurnsSkipped++
			continue
		}

		turn := &Turn{
			ID:               uuid.NewString(),
			SessionID:        sid,
			TurnNumber:       pt.TurnNumber,
			UserMessage:      pt.UserMessage,
			AssistantSummary: pt.AssistantSummary,
			Title:            fmt.Sprintf("Turn %d", pt.TurnNumber),
			ContentHash:      pt.ContentHash,
			Timestamp:        pt.Timestamp,
			ToolUses:         pt.ToolUses,
			FilesModified:    pt.FilesModified,
			StartLine:        pt.StartLine,
			EndLine:          pt.EndLine,
		}
		inserted, err := im.db.InsertTurn(turn, pt.RawContent)
		if err != nil {
			return res, err
		}
		if !inserted {
			res.TurnsSkipped++
			continue
		}
		res.TurnsImported++

		if _, err := im.db.EnqueueJob(JobTurnSummary,
			fmt.Sprintf("turn:%s:%d", sid, pt.TurnNumber),
			TurnJob{SessionID: sid, TurnID: turn.ID, TurnNumber: pt.TurnNumber}, 0); err != nil {
			return res, err
		}
	}

	if res.TurnsImported > 0 {
		if _, err := im.db.EnqueueJob(JobSessionSummary, "session:"+sid, SessionJob{SessionID: sid}, 1); err != nil {
			return res, err
		}
	}
	if err := im.db.RefreshSessionStats(sid); err != nil {
		return res, err
	}
	if err := im.db.TouchSession(sid, info.ModTime().Unix(), info.Size()); err != nil {
		return res, err
	}

	res.Status = StatusImported
	if res.TurnsImported == 0 {
		res.Status = StatusUpToDate
	}
	im.log.Debug().Str("session", sid).Int("turns", res.TurnsImported).Int("skipped", res.TurnsSkipped).Msg("imported")
	return res, nil
}

type SyncStats struct {
	Scanned       int `json:"scanned"`
	Imported      int `json:"imported"`
	UpToDate      int `json:"up_to_date"`
	Unchanged     int `json:"unchanged"`
	Empty         int `json:"skipped_empty"`
	Unknown       int `json:"unknown_format"`
	Errors        int `json:"errors"`
	TurnsImported int `json:"turns_imported"`
}

func (s SyncStats) String() string {
	return fmt.Sprintf("scanned=%d imported=%d up_to_date=%d unchanged=%d empty=%d unknown=%d errors=%d turns=%d",
		s.Scanned, s.Imported, s.UpToDate, s.Unchanged, s.Empty, s.Unknown, s.Errors, s.TurnsImported)
}

// Sync imports every file whose size or mtime changed since the last import.
// Per-file failures are logged and counted, not returned.
func (im *Importer) Sync(ctx context.Context, files []scan.SessionFile, force bool) (SyncStats, error) {
	var stats SyncStats
	stats.Scanned = len(files)

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		if !force {
			needs, err := needsUpdate(im.db, f.SessionID, f.Mtime, f.Size)
			if err != nil {
				stats.Errors++
				continue
			}
			if !needs {
				stats.Unchanged++
				continue
			}
		}

		res, err := im.ImportSession(f.Path, force)
		switch {
		case errors.Is(err, ErrUnknownFormat):
			stats.Unknown++
			continue
		case err != nil:
			stats.Errors++
			im.log.Warn().Err(err).Str("path", f.Path).Msg("import failed")
			continue
		}

		stats.TurnsImported += res.TurnsImported
		switch res.Status {
		case StatusImported:
			stats.Imported++
		case StatusUpToDate:
			stats.UpToDate++
		case StatusSkippedEmpty:
			stats.Empty++
		}
	}
	return stats, nil
}

func needsUpdate(db *DB, sessionID string, mtime, size int64) (bool, error) {
	info, err := db.GetSessionInfo(sessionID)
	if err != nil {
		return false, err
	}
	if info == nil {
		return true, nil // new session
	}
	return info.Mtime != mtime || info.Size != size, nil
}
