// Package tui is the interactive two-panel browser over indexed turns.
package tui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Zuo-Peng/opencontext/internal/index"
	"github.com/Zuo-Peng/opencontext/internal/open"
	"github.com/Zuo-Peng/opencontext/internal/search"
)

const debounceDelay = 200 * time.Millisecond

type tuiMode int

const (
	modeSearch tuiMode = iota
	modeRecent
)

// Action is what the user picked before leaving the browser.
type Action int

const (
	ActionNone   Action = iota
	ActionResume        // copy the resume command
	ActionOpen          // open the transcript in $EDITOR
)

type searchResultMsg struct {
	query   string
	results []search.Result
	err     error
}

type debounceTickMsg struct {
	query string
}

type model struct {
	db    *index.DB
	opts  search.Options
	mode  tuiMode
	query string

	results    []search.Result
	cursor     int
	listOffset int

	input      textinput.Model
	preview    viewport.Model
	previewKey string // sessionID:turn currently shown

	lay   layout
	ready bool
	done  bool

	action Action
	picked *search.Result
}

func newModel(db *index.DB, query string, opts search.Options, mode tuiMode) model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.PromptStyle = styleInputPrompt
	ti.TextStyle = styleInput
	ti.CharLimit = 256
	ti.SetValue(query)
	ti.Focus()

	m := model{
		db:      db,
		opts:    opts,
		mode:    mode,
		query:   query,
		input:   ti,
		preview: viewport.New(0, 0),
		lay:     computeLayout(0, 0),
	}
	m.setPlaceholder()
	return m
}

func (m *model) setPlaceholder() {
	if m.mode == modeRecent {
		m.input.Placeholder = "Filter recent turns..."
	} else {
		m.input.Placeholder = "Search turns..."
	}
}

// Run starts the browser on a search and blocks until it exits.
func Run(db *index.DB, query string, opts search.Options, out io.Writer) error {
	return run(db, newModel(db, query, opts, modeSearch), out)
}

// RunList starts the browser on the most recent turns.
func RunList(db *index.DB, opts search.Options, out io.Writer) error {
	return run(db, newModel(db, "", opts, modeRecent), out)
}

func run(db *index.DB, m model, out io.Writer) error {
	final, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion()).Run()
	if err != nil {
		return fmt.Errorf("tui: %w", err)
	}

	fm := final.(model)
	if fm.picked == nil {
		return nil
	}
	switch fm.action {
	case ActionOpen:
		return open.OpenSession(db, fm.picked.SessionID, fm.picked.TurnNumber)
	case ActionResume:
		session, err := db.GetSession(fm.picked.SessionID)
		if err != nil {
			return fmt.Errorf("get session: %w", err)
		}
		return copyResume(session, out)
	}
	return nil
}

// ResumeCommand is the shell command that resumes a session in its
// workspace.
func ResumeCommand(s *index.Session) string {
	cmd := "claude --resume " + s.ID
	if s.Workspace != "" {
		return fmt.Sprintf("cd %s && %s", shellQuote(s.Workspace), cmd)
	}
	return cmd
}

func shellQuote(s string) string {
	if !strings.ContainsAny(s, " \t'\"$`\\&;|()<>*?") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func copyResume(s *index.Session, out io.Writer) error {
	cmd := ResumeCommand(s)
	if err := clipboard.WriteAll(cmd); err != nil {
		// no clipboard (ssh, headless): print it instead
		fmt.Fprintln(out, cmd)
		return nil
	}
	fmt.Fprintf(out, "Copied to clipboard: %s\n", cmd)
	return nil
}

func (m model) Init() tea.Cmd {
	if m.mode == modeRecent || m.query != "" {
		return tea.Batch(textinput.Blink, m.load(m.query))
	}
	return textinput.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.lay = computeLayout(msg.Width, msg.Height)
		m.ready = true
		m.preview = newViewport(m.lay.previewW, m.lay.panelH)
		m.previewKey = ""
		return m, m.loadCurrentPreview()

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		return m.handleMouse(msg)

	case debounceTickMsg:
		if msg.query != m.query {
			return m, nil // typing continued
		}
		return m, m.load(msg.query)

	case searchResultMsg:
		if msg.query != m.query {
			return m, nil
		}
		m.cursor, m.listOffset = 0, 0
		m.previewKey = ""
		if msg.err != nil {
			m.results = nil
			m.preview.SetContent("Error: " + msg.err.Error())
			return m, nil
		}
		m.results = msg.results
		if len(m.results) == 0 {
			m.preview.SetContent("")
			return m, nil
		}
		return m, m.loadCurrentPreview()

	case previewRenderedMsg:
		return m.applyPreview(msg), nil
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		m.done = true
		return m, tea.Quit

	case key.Matches(msg, keys.Enter), key.Matches(msg, keys.Open):
		r, ok := m.current()
		if !ok {
			return m, nil
		}
		m.picked = &r
		m.action = ActionResume
		if key.Matches(msg, keys.Open) {
			m.action = ActionOpen
		}
		m.done = true
		return m, tea.Quit

	case key.Matches(msg, keys.Toggle):
		if m.mode == modeRecent {
			m.mode = modeSearch
		} else {
			m.mode = modeRecent
		}
		m.setPlaceholder()
		return m, m.load(m.query)

	case key.Matches(msg, keys.PerSession):
		m.opts.PerSession = !m.opts.PerSession
		return m, m.load(m.query)

	case key.Matches(msg, keys.Up):
		return m.moveCursor(m.cursor - 1)

	case key.Matches(msg, keys.Down):
		return m.moveCursor(m.cursor + 1)

	case key.Matches(msg, keys.PreviewUp):
		m.preview.LineUp(m.lay.panelH / 2)
		return m, nil

	case key.Matches(msg, keys.PreviewDn):
		m.preview.LineDown(m.lay.panelH / 2)
		return m, nil

	case key.Matches(msg, keys.PageUp):
		m.preview.LineUp(m.lay.panelH)
		return m, nil

	case key.Matches(msg, keys.PageDown):
		m.preview.LineDown(m.lay.panelH)
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if q := m.input.Value(); q != m.query {
		m.query = q
		return m, tea.Batch(cmd, debounce(q))
	}
	return m, cmd
}

func (m model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if !m.ready || len(m.results) == 0 {
		return m, nil
	}

	region, item := m.lay.hitTest(msg.X, msg.Y, m.listOffset)
	switch region {
	case regionList:
		switch {
		case msg.Button == tea.MouseButtonWheelUp:
			m.listOffset = max(m.listOffset-1, 0)
		case msg.Button == tea.MouseButtonWheelDown:
			limit := max(len(m.results)-m.lay.visibleItems(), 0)
			m.listOffset = min(m.listOffset+1, limit)
		case msg.Button == tea.MouseButtonLeft && msg.Action == tea.MouseActionPress:
			if item < len(m.results) && item != m.cursor {
				return m.moveCursor(item)
			}
		}
	case regionPreview:
		if msg.Button == tea.MouseButtonWheelUp || msg.Button == tea.MouseButtonWheelDown {
			var cmd tea.Cmd
			m.preview, cmd = m.preview.Update(msg)
			return m, cmd
		}
	}
	return m, nil
}

func (m model) moveCursor(to int) (tea.Model, tea.Cmd) {
	if to < 0 || to >= len(m.results) {
		return m, nil
	}
	m.cursor = to
	m.adjustListScroll(m.lay.panelH)
	return m, m.loadCurrentPreview()
}

func (m model) applyPreview(msg previewRenderedMsg) model {
	k := previewCacheKey(msg.sessionID, msg.turn)
	if k == m.previewKey {
		return m
	}
	if r, ok := m.current(); ok && previewCacheKey(r.SessionID, r.TurnNumber) != k {
		return m // stale
	}
	if msg.err != nil {
		m.preview.SetContent("Preview error: " + msg.err.Error())
	} else {
		m.preview.SetContent(msg.content)
		if msg.hitLine > 0 {
			m.preview.SetYOffset(msg.hitLine)
		} else {
			m.preview.GotoTop()
		}
	}
	m.previewKey = k
	return m
}

func (m model) current() (search.Result, bool) {
	if m.cursor < 0 || m.cursor >= len(m.results) {
		return search.Result{}, false
	}
	return m.results[m.cursor], true
}

func (m model) View() string {
	if m.done || !m.ready {
		return ""
	}

	list := stylePanelBorder.
		Width(m.lay.listW).
		Height(m.lay.panelH).
		Render(m.renderList(m.lay.listW, m.lay.panelH))

	m.preview.Width = m.lay.previewW
	m.preview.Height = m.lay.panelH
	preview := styleActiveBorder.
		Width(m.lay.previewW).
		Height(m.lay.panelH).
		Render(m.preview.View())

	return lipgloss.JoinVertical(lipgloss.Left,
		m.input.View(),
		lipgloss.JoinHorizontal(lipgloss.Top, list, preview),
		m.statusBar(),
	)
}

func (m model) statusBar() string {
	what := "results"
	if m.mode == modeRecent && m.query == "" {
		what = "recent turns"
	}
	parts := []string{fmt.Sprintf("%d %s", len(m.results), what)}
	if m.opts.PerSession {
		parts = append(parts, "per session")
	}
	if m.opts.Workspace != "" {
		parts = append(parts, "in "+m.opts.Workspace)
	}
	parts = append(parts,
		"up/dn navigate",
		"C-u/C-d preview",
		"C-r recent/search",
		"C-s per session",
		"Enter resume",
		"C-o editor",
		"Esc quit",
	)
	return styleStatusBar.Render(strings.Join(parts, " | "))
}

// load fetches results for the current mode. Recent mode with an empty
// query lists the latest turns; any query is a search.
func (m model) load(query string) tea.Cmd {
	db, opts, mode := m.db, m.opts, m.mode
	opts.Query = query
	return func() tea.Msg {
		var (
			results []search.Result
			err     error
		)
		switch {
		case strings.TrimSpace(query) != "":
			results, err = search.Search(db, opts)
		case mode == modeRecent:
			results, err = search.Recent(db, opts)
		}
		return searchResultMsg{query: query, results: results, err: err}
	}
}

func debounce(query string) tea.Cmd {
	return tea.Tick(debounceDelay, func(time.Time) tea.Msg {
		return debounceTickMsg{query: query}
	})
}

func (m model) loadCurrentPreview() tea.Cmd {
	r, ok := m.current()
	if !ok || previewCacheKey(r.SessionID, r.TurnNumber) == m.previewKey {
		return nil
	}
	return loadPreviewCmd(m.db, r, m.query, m.lay.previewW)
}

func previewCacheKey(sessionID string, turn int) string {
	return fmt.Sprintf("%s:%d", sessionID, turn)
}
