package tui

import (
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Zuo-Peng/opencontext/internal/index"
	"github.com/Zuo-Peng/opencontext/internal/render"
	"github.com/Zuo-Peng/opencontext/internal/search"
)

type previewRenderedMsg struct {
	sessionID string
	turn      int
	content   string
	hitLine   int
	err       error
}

// loadPreviewCmd renders the whole session off the UI goroutine, with the
// result's turn marked and the query highlighted.
func loadPreviewCmd(db *index.DB, r search.Result, query string, width int) tea.Cmd {
	return func() tea.Msg {
		content, hitLine, err := render.RenderSession(db, r.SessionID, render.Options{
			HitTurn: r.TurnNumber,
			Context: -1,
			Width:   width,
			Query:   query,
		})
		return previewRenderedMsg{r.SessionID, r.TurnNumber, content, hitLine, err}
	}
}

func newViewport(width, height int) viewport.Model {
	vp := viewport.New(width, height)
	vp.Style = lipgloss.NewStyle() // the panel draws the border
	return vp
}
