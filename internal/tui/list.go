package tui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/Zuo-Peng/opencontext/internal/search"
)

const (
	linesPerItem = 2 // title row + snippet row
	projectWidth = 12
	dateWidth    = 5 // MM-DD
)

func (m model) renderList(width, height int) string {
	if len(m.results) == 0 {
		msg := "No results"
		if m.query == "" && m.mode == modeSearch {
			msg = "Type to search"
		}
		return lipgloss.NewStyle().
			Foreground(colorDim).
			Width(width).
			Height(height).
			Align(lipgloss.Center, lipgloss.Center).
			Render(msg)
	}

	lines := make([]string, 0, height)
	for i := m.listOffset; i < len(m.results) && len(lines)+linesPerItem <= height; i++ {
		lines = append(lines, formatResultLine(m.results[i], width, i == m.cursor)...)
	}
	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}
	return strings.Join(lines, "\n")
}

// formatResultLine renders a result as
//
//	> project      03-01 ✓ #3 title
//	    snippet
func formatResultLine(r search.Result, width int, selected bool) []string {
	project := fit(projectName(r.Workspace), projectWidth)

	date := r.Timestamp
	if len(date) >= 10 {
		date = date[5:10]
	}

	// placeholder titles say nothing; prefer the session's
	title := r.Title
	if r.SessionTitle != "" && (title == "" || strings.HasPrefix(title, "Turn ")) {
		title = r.SessionTitle
	}
	turn := fmt.Sprintf("#%d", r.TurnNumber)
	room := width - 2 - projectWidth - 1 - dateWidth - 1 - 2 - len(turn) - 1
	title = truncateTo(flat(title), room)

	cursor := "  "
	if selected {
		cursor = styleCursor.Render("> ")
	}
	line1 := cursor + styleProject.Render(project) + " " + date + " " +
		satisfactionMark(r.Satisfaction) + " " + styleTurn.Render(turn) + " " + title

	snippet := strings.NewReplacer(">>>", "", "<<<", "").Replace(flat(r.Snippet))
	line2 := "    " + styleSnippet.Render(truncateTo(snippet, width-4))

	return []string{line1, line2}
}

func satisfactionMark(s string) string {
	switch s {
	case "good":
		return styleGood.Render("✓")
	case "bad":
		return styleBad.Render("✗")
	}
	return " "
}

func projectName(workspace string) string {
	if workspace == "" {
		return "?"
	}
	return filepath.Base(workspace)
}

func flat(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// fit truncates or pads s to exactly n columns.
func fit(s string, n int) string {
	return runewidth.FillRight(truncateTo(s, n), n)
}

func truncateTo(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= n {
		return s
	}
	return runewidth.Truncate(s, n, "")
}

// adjustListScroll keeps the cursor visible within the list viewport.
func (m *model) adjustListScroll(listHeight int) {
	visible := max(listHeight/linesPerItem, 1)
	if m.cursor < m.listOffset {
		m.listOffset = m.cursor
	}
	if m.cursor >= m.listOffset+visible {
		m.listOffset = m.cursor - visible + 1
	}
}
