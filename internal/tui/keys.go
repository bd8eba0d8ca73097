package tui

import "github.com/charmbracelet/bubbles/key"

// Printable keys are left to the text input, so every binding here uses a
// control key or arrows.
type keyMap struct {
	Up, Down             key.Binding
	Enter, Open          key.Binding
	Toggle, PerSession   key.Binding
	PreviewUp, PreviewDn key.Binding
	PageUp, PageDown     key.Binding
	Quit                 key.Binding
}

func binding(help string, keys ...string) key.Binding {
	return key.NewBinding(key.WithKeys(keys...), key.WithHelp(keys[0], help))
}

var keys = keyMap{
	Up:         binding("move up", "up", "ctrl+p", "ctrl+k"),
	Down:       binding("move down", "down", "ctrl+n", "ctrl+j"),
	Enter:      binding("copy resume command", "enter"),
	Open:       binding("open transcript in $EDITOR", "ctrl+o"),
	Toggle:     binding("recent/search", "ctrl+r"),
	PerSession: binding("best hit per session", "ctrl+s"),
	PreviewUp:  binding("scroll preview up", "ctrl+u"),
	PreviewDn:  binding("scroll preview down", "ctrl+d"),
	PageUp:     binding("page preview up", "pgup"),
	PageDown:   binding("page preview down", "pgdown"),
	Quit:       binding("quit", "esc", "ctrl+c"),
}
