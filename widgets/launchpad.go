package widgets

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// PadConfig is what one pad does in the focused panel
type PadConfig struct {
	Color   [3]uint8
	Tooltip string
}

// LaunchpadLayout describes the 9x9 surface: the top button row, the 8x8
// grid (row 0 at the bottom) and the right column of scene buttons
type LaunchpadLayout struct {
	TopRow   [8]PadConfig
	Grid     [8][8]PadConfig
	RightCol [8]PadConfig
}

// Zone is one legend entry
type Zone struct {
	Name  string
	Color [3]uint8
	Desc  string
}

// RenderPad renders a single colored pad
func RenderPad(color [3]uint8) string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color(rgbToHex(color)))
	return style.Render("■")
}

// RenderPadRow renders a row of colored pads with spacing
func RenderPadRow(colors [][3]uint8) string {
	var out strings.Builder
	for i, c := range colors {
		if i > 0 {
			out.WriteString(" ")
		}
		out.WriteString(RenderPad(c))
	}
	return out.String()
}

// RenderLaunchpad renders a layout as it sits on the desk: top row first,
// grid row 7 at the top, scene buttons on the right
func RenderLaunchpad(layout LaunchpadLayout) string {
	lines := make([]string, 0, 9)

	top := make([][3]uint8, 8)
	for i, p := range layout.TopRow {
		top[i] = p.Color
	}
	lines = append(lines, RenderPadRow(top))

	for row := 7; row >= 0; row-- {
		var line strings.Builder
		for col := 0; col < 8; col++ {
			line.WriteString(RenderPad(layout.Grid[row][col].Color))
			line.WriteString(" ")
		}
		line.WriteString(RenderPad(layout.RightCol[row].Color))
		lines = append(lines, line.String())
	}
	return strings.Join(lines, "\n")
}

// RenderLegendItem renders a single legend item: "■ Name - description"
func RenderLegendItem(color [3]uint8, name, desc string) string {
	return fmt.Sprintf("  %s %s - %s", RenderPad(color), name, desc)
}

// RenderLegend renders one legend line per zone
func RenderLegend(zones []Zone) string {
	lines := make([]string, len(zones))
	for i, z := range zones {
		lines[i] = RenderLegendItem(z.Color, z.Name, z.Desc)
	}
	return strings.Join(lines, "\n")
}

// LaunchpadHelp shows the focused panel's pad layout and answers mouse
// hover queries against it
type LaunchpadHelp struct {
	layout LaunchpadLayout
}

func NewLaunchpadHelp() *LaunchpadHelp {
	return &LaunchpadHelp{}
}

func (h *LaunchpadHelp) SetLayout(layout LaunchpadLayout) {
	h.layout = layout
}

func (h *LaunchpadHelp) Layout() LaunchpadLayout {
	return h.layout
}

func (h *LaunchpadHelp) View() string {
	return RenderLaunchpad(h.layout)
}

// HitTest maps a cell relative to the top-left of View to the pad under it.
// Pads sit on even columns; the odd columns are spacing.
func (h *LaunchpadHelp) HitTest(x, y int) (bool, string) {
	if x < 0 || y < 0 || x%2 != 0 {
		return false, ""
	}
	col := x / 2
	switch {
	case y == 0 && col < 8:
		return tooltip(h.layout.TopRow[col])
	case y >= 1 && y <= 8 && col < 8:
		return tooltip(h.layout.Grid[8-y][col])
	case y >= 1 && y <= 8 && col == 8:
		return tooltip(h.layout.RightCol[8-y])
	}
	return false, ""
}

func tooltip(p PadConfig) (bool, string) {
	if p.Tooltip == "" {
		return false, ""
	}
	return true, p.Tooltip
}

// RenderKeyHelp formats key bindings in a friendly way
func RenderKeyHelp(sections []KeySection) string {
	var lines []string
	for _, sec := range sections {
		if sec.Title != "" {
			lines = append(lines, sec.Title)
		}
		for _, k := range sec.Keys {
			lines = append(lines, fmt.Sprintf("  %-12s %s", k.Key, k.Desc))
		}
	}
	return strings.Join(lines, "\n")
}

// KeySection groups related key bindings
type KeySection struct {
	Title string
	Keys  []KeyBinding
}

// KeyBinding is a single key and its description
type KeyBinding struct {
	Key  string
	Desc string
}

func rgbToHex(c [3]uint8) string {
	return fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2])
}
