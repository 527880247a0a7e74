package theme

import (
	"fmt"
	"slices"

	"github.com/charmbracelet/lipgloss"
)

type Theme struct {
	Palette *Palette
	Symbols Symbols
}

type Symbols struct {
	// Launchpad help widget
	Solid rune // ■ active/has function
	Empty rune // □ inactive/no function

	// Grid states (no cursor)
	StepEmpty    rune // · inactive step
	StepActive   rune // ● has hit
	StepPlayhead rune // ▶ current playing
	StepBeyond   rune // - past track length

	// Grid states (with cursor)
	CursorEmpty    rune // ○ cursor on empty
	CursorActive   rune // ◉ cursor on active
	CursorPlayhead rune // ▷ cursor on playhead
	CursorBeyond   rune // □ cursor beyond length

	// Lists
	Selected rune // ▸ selected row
	Muted    rune // ✕ muted player
}

func New(palette *Palette) *Theme {
	if palette == nil || len(palette.Colors) == 0 {
		palette = builtin[DefaultPalette]
	}
	return &Theme{
		Palette: palette,
		Symbols: Symbols{
			Solid: '■',
			Empty: '□',

			StepEmpty:    '·',
			StepActive:   '●',
			StepPlayhead: '▶',
			StepBeyond:   '-',

			CursorEmpty:    '○',
			CursorActive:   '◉',
			CursorPlayhead: '▷',
			CursorBeyond:   '□',

			Selected: '▸',
			Muted:    '✕',
		},
	}
}

// Name is the palette name
func (t *Theme) Name() string {
	return t.Palette.Name
}

// Next returns a theme using the built-in palette after this one
func (t *Theme) Next() *Theme {
	names := BuiltinNames()
	i := slices.Index(names, t.Palette.Name)
	return New(builtin[names[(i+1)%len(names)]])
}

// Color roles mapped to palette positions (0-1)
const (
	RoleBG      = 0.0
	RoleSurface = 0.1
	RoleMuted   = 0.2
	RoleFG      = 0.4
	RoleAccent  = 0.5
	RoleCursor  = 0.6
	RoleActive  = 0.7
	RoleWarning = 0.8
	RoleSuccess = 1.0
)

// Style helpers

func (t *Theme) BG() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleBG))
}

func (t *Theme) Surface() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleSurface))
}

func (t *Theme) FG() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleFG))
}

func (t *Theme) Accent() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleAccent))
}

func (t *Theme) Muted() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleMuted))
}

func (t *Theme) Active() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleActive))
}

func (t *Theme) Cursor() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleCursor))
}

func (t *Theme) Warning() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleWarning))
}

func (t *Theme) Success() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleSuccess))
}

// Color returns lipgloss color for any normalized value 0-1
func (t *Theme) Color(norm float64) lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(norm))
}

// RGB returns raw RGB for any normalized value (for Launchpad)
func (t *Theme) RGB(norm float64) RGB {
	return t.Palette.Lookup(norm)
}

// LED is RGB as the controller wants it
func (t *Theme) LED(norm float64) [3]uint8 {
	return [3]uint8(t.Palette.Lookup(norm))
}

// DimLED is LED at a fraction of its brightness
func (t *Theme) DimLED(norm, f float64) [3]uint8 {
	return [3]uint8(t.Palette.Lookup(norm).Scale(f))
}

// Title renders a panel heading
func (t *Theme) Title(s string) string {
	return lipgloss.NewStyle().Bold(true).Foreground(t.Accent()).Render(s)
}

// Dim renders secondary text
func (t *Theme) Dim(s string) string {
	return lipgloss.NewStyle().Foreground(t.Muted()).Render(s)
}

// Highlight renders the focused row or cell
func (t *Theme) Highlight(s string) string {
	return lipgloss.NewStyle().Foreground(t.Cursor()).Bold(true).Render(s)
}

func rgbToLipgloss(c RGB) lipgloss.Color {
	return lipgloss.Color(Hex(c))
}

// Hex formats c as #rrggbb
func Hex(c RGB) string {
	return fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2])
}
