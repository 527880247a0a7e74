package widgets

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Popup is a modal list of options
type Popup struct {
	Title    string
	Options  []string
	Selected int
}

func NewPopup(title string, options []string, selected int) *Popup {
	p := &Popup{Title: title, Options: options}
	if selected >= 0 && selected < len(options) {
		p.Selected = selected
	}
	return p
}

// HandleKey moves the selection. done is true once the popup should close;
// ok tells whether an option was chosen.
func (p *Popup) HandleKey(key string) (done, ok bool) {
	switch key {
	case "j", "down":
		if p.Selected < len(p.Options)-1 {
			p.Selected++
		}
	case "k", "up":
		if p.Selected > 0 {
			p.Selected--
		}
	case "enter", " ":
		return true, len(p.Options) > 0
	case "esc", "q":
		return true, false
	}
	return false, false
}

// Choice is the selected option
func (p *Popup) Choice() string {
	if p.Selected < 0 || p.Selected >= len(p.Options) {
		return ""
	}
	return p.Options[p.Selected]
}

const popupWidth = 28

func (p *Popup) View() string {
	var out strings.Builder
	out.WriteString(lipgloss.NewStyle().Bold(true).Render(p.Title))
	out.WriteString("\n")

	if len(p.Options) == 0 {
		out.WriteString("  (nothing to choose)")
	}
	for i, opt := range p.Options {
		prefix := "  "
		if i == p.Selected {
			prefix = "> "
		}
		line := prefix + opt
		if len([]rune(line)) > popupWidth {
			line = string([]rune(line)[:popupWidth-1]) + "…"
		}
		out.WriteString(line)
		if i < len(p.Options)-1 {
			out.WriteString("\n")
		}
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Padding(0, 1).
		Width(popupWidth + 2).
		Render(out.String())
}
