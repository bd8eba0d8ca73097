// Package summarize turns stored transcripts into model-written titles,
// session summaries, events and project briefs.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Zuo-Peng/opencontext/internal/config"
	"github.com/Zuo-Peng/opencontext/internal/index"
	"github.com/Zuo-Peng/opencontext/internal/llm"
	"github.com/Zuo-Peng/opencontext/internal/parse"
)

var (
	// ErrNoData means there was nothing to summarize.
	ErrNoData = errors.New("nothing to summarize")
	// ErrEmptySummary means the model answered without a title.
	ErrEmptySummary = errors.New("model returned an empty title")
)

const (
	maxTitle            = 200
	maxTurnDescription  = 1000
	maxSessionSummary   = 2000
	maxEventDescription = 3000
	maxToolsPerTurn     = 20
	maxToolLine         = 120
)

// Summarizer runs the summarization tasks against the store.
type Summarizer struct {
	db        *index.DB
	llm       *llm.Client
	cfg       config.SummaryConfig
	briefsDir string
	log       zerolog.Logger
	now       func() time.Time

	retryDelay time.Duration
}

func New(db *index.DB, client *llm.Client, cfg config.SummaryConfig, briefsDir string, log zerolog.Logger) *Summarizer {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Summarizer{
		db:        db,
		llm:       client,
		cfg:       cfg,
		briefsDir: briefsDir,
		log:       log,
		now:       time.Now,

		retryDelay: defaultRetryDelay,
	}
}

type turnPayload struct {
	TurnNumber       int      `json:"turn_number,omitempty"`
	Title            string   `json:"title,omitempty"`
	Description      string   `json:"description,omitempty"`
	UserMessage      string   `json:"user_message"`
	AssistantSummary string   `json:"assistant_summary,omitempty"`
	ToolsUsed        []string `json:"tools_used,omitempty"`
	FilesModified    []string `json:"files_modified,omitempty"`
}

func (s *Summarizer) payloadFor(t *index.Turn) turnPayload {
	return turnPayload{
		UserMessage:      truncate(t.UserMessage, s.cfg.UserMessageMax),
		AssistantSummary: truncate(t.AssistantSummary, s.cfg.MaxChars),
		ToolsUsed:        toolLines(t.ToolUses),
		FilesModified:    t.FilesModified,
	}
}

type turnReply struct {
	Title          string `json:"title"`
	Description    string `json:"description"`
	IsContinuation bool   `json:"is_continuation"`
	Satisfaction   string `json:"satisfaction"`
}

// SummarizeTurn asks for a title, description, continuation flag and
// satisfaction for one turn and stores them.
func (s *Summarizer) SummarizeTurn(ctx context.Context, turnID string) (*index.TurnSummary, error) {
	t, err := s.db.GetTurn(turnID)
	if err != nil {
		return nil, fmt.Errorf("turn %s: %w", turnID, err)
	}

	var reply turnReply
	model, err := s.llm.JSON(ctx, llm.TaskTurnSummary, s.payloadFor(t), &reply)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(reply.Title) == "" {
		return nil, ErrEmptySummary
	}

	sum := index.TurnSummary{
		Title:          truncate(strings.TrimSpace(reply.Title), maxTitle),
		Description:    truncate(strings.TrimSpace(reply.Description), maxTurnDescription),
		IsContinuation: reply.IsContinuation,
		Satisfaction:   normalizeSatisfaction(reply.Satisfaction),
		ModelName:      model,
	}
	if err := s.db.UpdateTurnSummary(t.ID, sum); err != nil {
		return nil, err
	}
	return &sum, nil
}

func normalizeSatisfaction(v string) string {
	switch v = strings.ToLower(strings.TrimSpace(v)); v {
	case "good", "fine", "bad":
		return v
	default:
		return "fine"
	}
}

type SessionSummary struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

// SummarizeSession summarizes a session from its ordered turns.
func (s *Summarizer) SummarizeSession(ctx context.Context, sessionID string) (*SessionSummary, error) {
	turns, err := s.db.GetTurns(sessionID)
	if err != nil {
		return nil, err
	}
	if len(turns) == 0 {
		return nil, fmt.Errorf("session %s: %w", sessionID, ErrNoData)
	}

	payload := struct {
		Turns []turnPayload `json:"turns"`
	}{}
	for i := range turns {
		p := s.payloadFor(&turns[i])
		p.TurnNumber = turns[i].TurnNumber
		p.Title = turns[i].Title
		p.Description = turns[i].Description
		p.AssistantSummary = ""
		payload.Turns = append(payload.Turns, p)
	}

	var reply SessionSummary
	if _, err := s.llm.JSON(ctx, llm.TaskSessionSummary, payload, &reply); err != nil {
		return nil, err
	}
	if strings.TrimSpace(reply.Title) == "" {
		return nil, ErrEmptySummary
	}
	reply.Title = truncate(strings.TrimSpace(reply.Title), maxTitle)
	reply.Summary = truncate(strings.TrimSpace(reply.Summary), maxSessionSummary)

	if err := s.db.UpdateSessionSummary(sessionID, reply.Title, reply.Summary); err != nil {
		return nil, err
	}
	return &reply, nil
}

type eventSession struct {
	SessionID string `json:"session_id"`
	Title     string `json:"title"`
	Summary   string `json:"summary"`
	Workspace string `json:"workspace"`
}

// SummarizeEvent creates or refreshes an event spanning the given sessions.
// Session ids may be prefixes. An empty eventID creates a new event.
func (s *Summarizer) SummarizeEvent(ctx context.Context, sessionIDs []string, eventID string) (*index.Event, error) {
	var (
		sessions []eventSession
		ids      []string
		first    string
		last     string
	)
	for _, id := range sessionIDs {
		sess, err := s.db.GetSessionByPrefix(id)
		if errors.Is(err, index.ErrNotFound) {
			s.log.Warn().Str("session", id).Msg("event: unknown session")
			continue
		}
		if err != nil {
			return nil, err
		}
		ids = append(ids, sess.ID)
		sessions = append(sessions, eventSession{
			SessionID: shortID(sess.ID),
			Title:     orDefault(sess.Title, "Untitled"),
			Summary:   sess.Summary,
			Workspace: sess.Workspace,
		})
		if first == "" || (sess.StartedAt != "" && sess.StartedAt < first) {
			first = sess.StartedAt
		}
		if sess.LastActivityAt > last {
			last = sess.LastActivityAt
		}
	}
	if len(sessions) == 0 {
		return nil, ErrNoData
	}

	var reply struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	payload := struct {
		Sessions []eventSession `json:"sessions"`
	}{sessions}
	if _, err := s.llm.JSON(ctx, llm.TaskEventSummary, payload, &reply); err != nil {
		return nil, err
	}
	if strings.TrimSpace(reply.Title) == "" {
		return nil, ErrEmptySummary
	}

	if eventID == "" {
		eventID = uuid.NewString()
	}
	e := &index.Event{
		ID:             eventID,
		Title:          truncate(strings.TrimSpace(reply.Title), maxTitle),
		Description:    truncate(strings.TrimSpace(reply.Description), maxEventDescription),
		EventType:      "task",
		Status:         "active",
		StartTimestamp: first,
		EndTimestamp:   last,
	}
	if err := s.db.UpsertEvent(e, ids); err != nil {
		return nil, err
	}
	e.SessionIDs = ids
	return e, nil
}

// EventJob is the payload of an event_summary job.
type EventJob struct {
	SessionIDs []string `json:"session_ids"`
	EventID    string   `json:"event_id,omitempty"`
}

// QueueEvent enqueues an event summary over sessionIDs. The same set of
// sessions always maps to the same job.
func (s *Summarizer) QueueEvent(sessionIDs []string, eventID string) (string, error) {
	if len(sessionIDs) == 0 {
		return "", ErrNoData
	}
	key := append([]string(nil), sessionIDs...)
	sort.Strings(key)
	return s.db.EnqueueJob(index.JobEventSummary, "event:"+strings.Join(key, ","),
		EventJob{SessionIDs: sessionIDs, EventID: eventID}, 0)
}

func toolLines(uses []parse.ToolUse) []string {
	var out []string
	for _, u := range uses {
		if len(out) == maxToolsPerTurn {
			break
		}
		out = append(out, truncate(u.String(), maxToolLine))
	}
	return out
}

func truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
