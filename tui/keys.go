package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
)

// keyMap holds the app-wide keys. Panel keys (1-8) come from the panel
// registry.
type keyMap struct {
	Quit      key.Binding
	ForceQuit key.Binding
	Play      key.Binding
	TempoUp   key.Binding
	TempoDown key.Binding
	Theme     key.Binding
	Snapshot  key.Binding
}

var keys = keyMap{
	Quit:      key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "quit")),
	ForceQuit: key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
	Play:      key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "play")),
	TempoUp:   key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+/-", "tempo")),
	TempoDown: key.NewBinding(key.WithKeys("-", "_")),
	Theme:     key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "theme")),
	Snapshot:  key.NewBinding(key.WithKeys("P"), key.WithHelp("P", "pad snapshot")),
}

// helpLine renders the short help for the bindings that have help text
func (k keyMap) helpLine() string {
	var parts []string
	for _, b := range []key.Binding{k.Play, k.TempoUp, k.Theme, k.Snapshot, k.Quit} {
		h := b.Help()
		parts = append(parts, h.Key+":"+h.Desc)
	}
	return "1-8:panel  " + strings.Join(parts, "  ")
}
