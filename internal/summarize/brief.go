package summarize

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"

	"github.com/Zuo-Peng/opencontext/internal/llm"
)

const (
	maxDocChars      = 4000
	maxDocsDirChars  = 2000
	maxDocsDirFiles  = 5
	maxManifestChars = 1000
	maxGoModChars    = 500
	maxFactText      = 500
	maxFactDesc      = 300
	truncatedMarker  = "\n... (truncated)"
	footerTimeLayout = "2006-01-02 15:04"
)

var (
	docFiles    = []string{"README.md", "CLAUDE.md", "AGENTS.md", "CONTRIBUTING.md", "ARCHITECTURE.md"}
	unsafeSlug  = regexp.MustCompile(`[^a-zA-Z0-9_\-.]`)
	briefFooter = regexp.MustCompile(`\n---\n\*Auto-generated.*\*\n?$`)
)

// Doc is a named excerpt of a project file.
type Doc struct {
	Name    string
	Content string
}

// ScanProjectDocs reads the well-known documentation files of a workspace
// and the first few docs/*.md files, truncated.
func ScanProjectDocs(workspace string) []Doc {
	var docs []Doc
	for _, name := range docFiles {
		if c := readTruncated(filepath.Join(workspace, name), maxDocChars); c != "" {
			docs = append(docs, Doc{Name: name, Content: c})
		}
	}

	matches, _ := filepath.Glob(filepath.Join(workspace, "docs", "*.md"))
	sort.Strings(matches)
	if len(matches) > maxDocsDirFiles {
		matches = matches[:maxDocsDirFiles]
	}
	for _, m := range matches {
		if c := readTruncated(m, maxDocsDirChars); c != "" {
			docs = append(docs, Doc{Name: "docs/" + filepath.Base(m), Content: c})
		}
	}
	return docs
}

// ScanProjectTech reads package manifests that hint at the tech stack.
func ScanProjectTech(workspace string) []Doc {
	var tech []Doc
	add := func(name string, limit int, files ...string) {
		for _, f := range files {
			if c := readTruncated(filepath.Join(workspace, f), limit); c != "" {
				tech = append(tech, Doc{Name: name, Content: c})
				return
			}
		}
	}
	add("python", maxManifestChars, "pyproject.toml", "setup.py")
	add("node", maxManifestChars, "package.json")
	add("rust", maxManifestChars, "Cargo.toml")
	add("go", maxGoModChars, "go.mod")
	return tech
}

func readTruncated(path string, limit int) string {
	b, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	text := strings.TrimSpace(string(b))
	if r := []rune(text); len(r) > limit {
		text = string(r[:limit]) + truncatedMarker
	}
	return text
}

type Decision struct {
	What string `json:"what"`
	Why  string `json:"why"`
}

// SessionFacts is the knowledge extracted from one session.
type SessionFacts struct {
	Decisions   []Decision `json:"decisions"`
	Solved      []string   `json:"solved"`
	Features    []string   `json:"features"`
	TechChanges []string   `json:"tech_changes"`
	OpenThreads []string   `json:"open_threads"`

	SessionID string `json:"-"`
	Date      string `json:"-"`
	Title     string `json:"-"`
}

func (f *SessionFacts) empty() bool {
	return len(f.Decisions)+len(f.Solved)+len(f.Features)+len(f.TechChanges)+len(f.OpenThreads) == 0
}

type factTurn struct {
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	User        string   `json:"user,omitempty"`
	Assistant   string   `json:"assistant,omitempty"`
	ToolsUsed   []string `json:"tools_used,omitempty"`
	Files       []string `json:"files_modified,omitempty"`
}

// ExtractSessionFacts asks the model for decisions, fixes, features, tech
// changes and open threads of one session.
func (s *Summarizer) ExtractSessionFacts(ctx context.Context, sessionID string) (*SessionFacts, error) {
	sess, err := s.db.GetSession(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, err)
	}
	turns, err := s.db.GetTurns(sessionID)
	if err != nil {
		return nil, err
	}
	if len(turns) == 0 {
		return nil, fmt.Errorf("session %s: %w", sessionID, ErrNoData)
	}

	var data []factTurn
	for _, t := range turns {
		var ft factTurn
		// placeholder titles carry no information
		if t.Title != "" && !strings.HasPrefix(t.Title, "Turn ") {
			ft.Title = t.Title
		}
		ft.Description = truncate(t.Description, maxFactDesc)
		ft.User = truncate(t.UserMessage, maxFactText)
		ft.Assistant = truncate(t.AssistantSummary, maxFactText)
		ft.ToolsUsed = toolLines(t.ToolUses)
		ft.Files = t.FilesModified
		data = append(data, ft)
	}

	date := dateOf(sess.StartedAt)
	payload := struct {
		SessionTitle   string     `json:"session_title"`
		SessionSummary string     `json:"session_summary"`
		Workspace      string     `json:"workspace"`
		Date           string     `json:"date"`
		Turns          []factTurn `json:"turns"`
	}{orDefault(sess.Title, "Untitled"), sess.Summary, sess.Workspace, date, data}

	var facts SessionFacts
	if _, err := s.llm.JSON(ctx, llm.TaskSessionExtract, payload, &facts); err != nil {
		return nil, err
	}
	facts.SessionID = sessionID
	facts.Date = date
	facts.Title = orDefault(sess.Title, "Untitled")
	return &facts, nil
}

// extractAll runs ExtractSessionFacts over sessionIDs with a bounded pool.
// Sessions that fail are logged and left out. The result is ordered by date.
func (s *Summarizer) extractAll(ctx context.Context, sessionIDs []string) ([]*SessionFacts, error) {
	results := make([]*SessionFacts, len(sessionIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for i, id := range sessionIDs {
		g.Go(func() error {
			facts, err := s.ExtractSessionFacts(gctx, id)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				s.log.Warn().Err(err).Str("session", shortID(id)).Msg("fact extraction failed")
				return nil
			}
			s.log.Info().Str("session", shortID(id)).Msg("extracted facts")
			results[i] = facts
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []*SessionFacts
	for _, f := range results {
		if f != nil {
			out = append(out, f)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

// SynthesizeBrief builds a project brief from the workspace docs and the
// facts of sessionIDs, or of the workspace's top sessions when none are
// given, and saves it.
func (s *Summarizer) SynthesizeBrief(ctx context.Context, workspace string, sessionIDs []string, top int) (string, error) {
	docs := ScanProjectDocs(workspace)
	tech := ScanProjectTech(workspace)

	if len(sessionIDs) == 0 {
		if top <= 0 {
			top = s.cfg.TopSessions
		}
		sessions, err := s.db.TopSessions(workspace, top)
		if err != nil {
			return "", err
		}
		for _, sess := range sessions {
			sessionIDs = append(sessionIDs, sess.ID)
		}
	}
	if len(sessionIDs) == 0 && len(docs) == 0 {
		return "", fmt.Errorf("%s: %w", workspace, ErrNoData)
	}

	var facts []*SessionFacts
	if len(sessionIDs) > 0 {
		s.log.Info().Int("sessions", len(sessionIDs)).Str("workspace", workspace).Msg("extracting session facts")
		var err error
		if facts, err = s.extractAll(ctx, sessionIDs); err != nil {
			return "", err
		}
	}

	brief, err := s.llm.Text(ctx, llm.TaskBriefSynthesize, synthesisInput(filepath.Base(workspace), docs, tech, facts))
	if err != nil {
		return "", err
	}
	brief += fmt.Sprintf("\n\n---\n*Auto-generated by OpenContext | %d sessions processed | Last updated: %s*\n",
		len(facts), s.now().UTC().Format(footerTimeLayout))

	if err := s.saveBrief(workspace, brief); err != nil {
		return "", err
	}
	return brief, nil
}

// UpdateBrief folds one session into the saved brief, or synthesizes a new
// brief from that session when none exists.
func (s *Summarizer) UpdateBrief(ctx context.Context, workspace, sessionID string) (string, error) {
	existing, err := s.ReadBrief(workspace)
	if err != nil {
		return "", err
	}
	if existing == "" {
		return s.SynthesizeBrief(ctx, workspace, []string{sessionID}, 0)
	}

	facts, err := s.ExtractSessionFacts(ctx, sessionID)
	if errors.Is(err, ErrNoData) {
		return existing, nil
	}
	if err != nil {
		return "", err
	}

	body, err := json.MarshalIndent(facts, "", "  ")
	if err != nil {
		return "", err
	}
	input := fmt.Sprintf("## Current Brief\n\n%s\n\n## New Session Facts\n\nSession: %s (%s)\n%s\n",
		existing, facts.Title, orDefault(facts.Date, "unknown"), body)

	updated, err := s.llm.Text(ctx, llm.TaskBriefUpdate, input)
	if err != nil {
		return "", err
	}
	updated = strings.TrimRight(briefFooter.ReplaceAllString(updated, ""), "\n")
	updated += fmt.Sprintf("\n\n---\n*Auto-generated by OpenContext | Last updated: %s*\n",
		s.now().UTC().Format(footerTimeLayout))

	if err := s.saveBrief(workspace, updated); err != nil {
		return "", err
	}
	return updated, nil
}

type BriefSource string

const (
	BriefCached    BriefSource = "cached"
	BriefGenerated BriefSource = "generated"
	BriefUpdated   BriefSource = "updated"
)

type BriefOptions struct {
	Regenerate    bool   // ignore the saved brief
	UpdateSession string // fold this session into the saved brief
	Top           int    // sessions to extract when synthesizing
}

// Brief returns the project brief of workspace, generating it when there is
// no saved one.
func (s *Summarizer) Brief(ctx context.Context, workspace string, opts BriefOptions) (string, BriefSource, error) {
	if opts.UpdateSession != "" {
		b, err := s.UpdateBrief(ctx, workspace, opts.UpdateSession)
		return b, BriefUpdated, err
	}
	if !opts.Regenerate {
		cached, err := s.ReadBrief(workspace)
		if err != nil {
			return "", "", err
		}
		if cached != "" {
			return cached, BriefCached, nil
		}
	}
	b, err := s.SynthesizeBrief(ctx, workspace, nil, opts.Top)
	return b, BriefGenerated, err
}

// BriefPath is where the brief of workspace is stored.
func BriefPath(dir, workspace string) string {
	slug := strings.ReplaceAll(strings.Trim(workspace, "/"), "/", "-")
	return filepath.Join(dir, unsafeSlug.ReplaceAllString(slug, "-")+".md")
}

func (s *Summarizer) BriefPath(workspace string) string {
	return BriefPath(s.briefsDir, workspace)
}

// ReadBrief returns the saved brief, or "" when there is none.
func (s *Summarizer) ReadBrief(workspace string) (string, error) {
	b, err := os.ReadFile(s.BriefPath(workspace))
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (s *Summarizer) saveBrief(workspace, content string) error {
	if err := os.MkdirAll(s.briefsDir, 0o755); err != nil {
		return fmt.Errorf("create briefs dir: %w", err)
	}
	return os.WriteFile(s.BriefPath(workspace), []byte(content), 0o644)
}

func synthesisInput(project string, docs, tech []Doc, facts []*SessionFacts) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Project: %s\n\n", project)

	if len(docs) > 0 {
		b.WriteString("## Project Documentation\n\n")
		for _, d := range docs {
			fmt.Fprintf(&b, "### %s\n%s\n\n", d.Name, d.Content)
		}
	}
	if len(tech) > 0 {
		b.WriteString("## Detected Tech Stack\n\n")
		for _, d := range tech {
			fmt.Fprintf(&b, "### %s\n%s\n\n", d.Name, d.Content)
		}
	}

	if len(facts) == 0 {
		b.WriteString("## Sessions\nNo session data available.\n")
		return b.String()
	}
	fmt.Fprintf(&b, "## Extracted Knowledge (%d sessions)\n\n", len(facts))
	for _, f := range facts {
		fmt.Fprintf(&b, "### [%s] %s\n", orDefault(f.Date, "?"), f.Title)
		if f.empty() {
			b.WriteString("\n")
			continue
		}
		body, err := json.MarshalIndent(f, "", " ")
		if err == nil {
			b.Write(body)
		}
		b.WriteString("\n\n")
	}
	return b.String()
}

func dateOf(ts string) string {
	if len(ts) >= 10 {
		return ts[:10]
	}
	return ts
}
