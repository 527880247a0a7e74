// Package panel holds the focusable screens of the TUI. Each panel is bound
// to one kind of model object, edits it through the sequencer manager and
// announces changes on the bus. Panels never reach into each other; they
// react to each other's bus events.
package panel

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"go-beats/bus"
	"go-beats/sequencer"
	"go-beats/store"
	"go-beats/theme"
	"go-beats/widgets"
)

// Panel is one screen. All methods run on the UI goroutine.
type Panel interface {
	Name() string
	View() string
	HandleKey(msg tea.KeyMsg) tea.Cmd
	HandlePad(row, col int)
	RenderLEDs() []sequencer.LEDState
	HelpLayout() widgets.LaunchpadLayout

	// Capturing is true while the panel owns the keyboard (text entry,
	// popups, confirmations) so global keys must not fire
	Capturing() bool
}

// OutputLister enumerates MIDI output display names
type OutputLister interface {
	Outputs() []string
}

// Context is what every panel gets at construction
type Context struct {
	Manager *sequencer.Manager
	Bus     *bus.Bus
	Theme   *theme.Theme
	Devices OutputLister
	Store   *store.Store

	// Project is the project that saves go to
	Project string

	// Focus moves the TUI to another panel by name
	Focus func(name string)
}

func (c *Context) focus(name string) {
	if c.Focus != nil {
		c.Focus(name)
	}
}

func (c *Context) outputs() []string {
	if c.Devices == nil {
		return nil
	}
	return c.Devices.Outputs()
}

// Entry registers a panel under its name
type Entry struct {
	Name string
	Key  string // global key that focuses the panel
	New  func(ctx *Context) Panel
}

// Registry lists the panels in display order. The index is also the
// Launchpad top-row button that focuses the panel.
func Registry() []Entry {
	return []Entry{
		{Name: "players", Key: "1", New: func(ctx *Context) Panel { return NewPlayers(ctx) }},
		{Name: "rules", Key: "2", New: func(ctx *Context) Panel { return NewRules(ctx) }},
		{Name: "instruments", Key: "3", New: func(ctx *Context) Panel { return NewInstruments(ctx) }},
		{Name: "captions", Key: "4", New: func(ctx *Context) Panel { return NewCaptions(ctx) }},
		{Name: "pads", Key: "5", New: func(ctx *Context) Panel { return NewDrumPads(ctx) }},
		{Name: "steps", Key: "6", New: func(ctx *Context) Panel { return NewStepSeq(ctx) }},
		{Name: "launch", Key: "7", New: func(ctx *Context) Panel { return NewLaunch(ctx) }},
		{Name: "projects", Key: "8", New: func(ctx *Context) Panel { return NewProjects(ctx) }},
	}
}

// Build creates every registered panel
func Build(ctx *Context) []Panel {
	entries := Registry()
	panels := make([]Panel, len(entries))
	for i, e := range entries {
		panels[i] = e.New(ctx)
	}
	return panels
}

// Index returns the registry position of a panel name, or -1
func Index(name string) int {
	for i, e := range Registry() {
		if e.Name == name {
			return i
		}
	}
	return -1
}

// cursor list helpers

func clampIndex(i, n int) int {
	if n == 0 {
		return 0
	}
	return max(0, min(i, n-1))
}

func moveIndex(i, n int, key string) int {
	switch key {
	case "j", "down":
		return clampIndex(i+1, n)
	case "k", "up":
		return clampIndex(i-1, n)
	case "g", "home":
		return 0
	case "G", "end":
		return clampIndex(n-1, n)
	}
	return i
}

// listView renders rows with a selection marker
func listView(th *theme.Theme, rows []string, selected int, empty string) string {
	if len(rows) == 0 {
		return th.Dim("  " + empty)
	}
	var out strings.Builder
	for i, r := range rows {
		if i > 0 {
			out.WriteString("\n")
		}
		if i == selected {
			out.WriteString(th.Highlight(fmt.Sprintf("%c %s", th.Symbols.Selected, r)))
		} else {
			out.WriteString("  " + r)
		}
	}
	return out.String()
}

// listLEDs lights one pad per list entry, top-left first, eight per row
func listLEDs(n, selected int, on, sel, off [3]uint8) []sequencer.LEDState {
	leds := make([]sequencer.LEDState, 0, 64)
	for i := 0; i < 64; i++ {
		c := off
		switch {
		case i == selected && i < n:
			c = sel
		case i < n:
			c = on
		}
		row, col := 7-i/8, i%8
		leds = append(leds, sequencer.LEDState{Row: row, Col: col, Color: c})
	}
	return leds
}

// listPad maps a grid pad to a list index (inverse of listLEDs)
func listPad(row, col int) int {
	if row < 0 || row > 7 || col < 0 || col > 7 {
		return -1
	}
	return (7-row)*8 + col
}

// listLayout describes a list panel's grid for the help widget
func listLayout(n int, color, dim [3]uint8, tip string) widgets.LaunchpadLayout {
	var layout widgets.LaunchpadLayout
	for i := 0; i < 64; i++ {
		row, col := 7-i/8, i%8
		if i < n {
			layout.Grid[row][col] = widgets.PadConfig{Color: color, Tooltip: fmt.Sprintf("%s %d", tip, i+1)}
		} else {
			layout.Grid[row][col] = widgets.PadConfig{Color: dim}
		}
	}
	return layout
}

// keyHelp renders the key list under a panel
func keyHelp(keys ...widgets.KeyBinding) string {
	return widgets.RenderKeyHelp([]widgets.KeySection{{Keys: keys}})
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// ledColors are the pad colors every panel draws with, taken from the theme
type ledColors struct {
	on, sel, dim, cmd, play [3]uint8
}

func paletteLEDs(th *theme.Theme) ledColors {
	return ledColors{
		on:   th.LED(theme.RoleAccent),
		sel:  [3]uint8{255, 255, 255},
		dim:  th.DimLED(theme.RoleMuted, 0.4),
		cmd:  th.LED(theme.RoleWarning),
		play: th.LED(theme.RoleSuccess),
	}
}

// Legend names the pad colors for the on-screen pad help
func Legend(th *theme.Theme) []widgets.Zone {
	c := paletteLEDs(th)
	return []widgets.Zone{
		{Name: "selected", Color: c.sel, Desc: "cursor or current item"},
		{Name: "set", Color: c.on, Desc: "has content"},
		{Name: "playing", Color: c.play, Desc: "sounding now"},
		{Name: "command", Color: c.cmd, Desc: "action pad"},
		{Name: "empty", Color: c.dim, Desc: "free slot"},
	}
}
