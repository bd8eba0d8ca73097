package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorAccent = lipgloss.Color("12")  // bright blue
	colorTurn   = lipgloss.Color("10")  // bright green
	colorDim    = lipgloss.Color("240") // gray
	colorCursor = lipgloss.Color("11")  // bright yellow
	colorBad    = lipgloss.Color("9")   // bright red
	colorFrame  = lipgloss.Color("238") // dark gray

	styleInputPrompt = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
	styleInput       = styleInputPrompt

	styleCursor  = lipgloss.NewStyle().Foreground(colorCursor).Bold(true)
	styleProject = lipgloss.NewStyle().Foreground(colorAccent)
	styleTurn    = lipgloss.NewStyle().Foreground(colorTurn)
	styleSnippet = lipgloss.NewStyle().Foreground(colorDim)
	styleGood    = lipgloss.NewStyle().Foreground(colorTurn)
	styleBad     = lipgloss.NewStyle().Foreground(colorBad).Bold(true)

	stylePanelBorder = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(colorFrame)
	styleActiveBorder = stylePanelBorder.BorderForeground(colorAccent)

	styleStatusBar = lipgloss.NewStyle().Foreground(colorDim).Padding(0, 1)
)
