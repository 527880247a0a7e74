package panel

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"

	"go-beats/bus"
	"go-beats/theme"
)

// statusTTL is how long a status message stays in the header
const statusTTL = 5 * time.Second

// Status is the header line: transport state, tempo, division, project,
// controller and the latest status message. It is not a focusable panel.
type Status struct {
	ctx        *Context
	message    string
	messageAt  time.Time
	controller string

	now func() time.Time
}

func NewStatus(ctx *Context) *Status {
	s := &Status{ctx: ctx, now: time.Now}
	ctx.Bus.Subscribe(bus.ThemeChanged, func(msg bus.Message) {
		if th, ok := msg.Payload.(*theme.Theme); ok {
			s.SetMessage("theme " + th.Name())
		}
	})
	return s
}

// SetMessage shows text until it expires
func (s *Status) SetMessage(text string) {
	s.message = text
	s.messageAt = s.now()
}

// Message is the current message, "" once expired
func (s *Status) Message() string {
	if s.message == "" || s.now().Sub(s.messageAt) > statusTTL {
		return ""
	}
	return s.message
}

// SetController names the connected grid controller ("" when none)
func (s *Status) SetController(name string) {
	s.controller = name
}

func (s *Status) View(width int) string {
	th := s.ctx.Theme
	m := s.ctx.Manager
	step, playing, tempo := m.GetState()

	state := th.Dim("■ stopped")
	if playing {
		state = lipgloss.NewStyle().Foreground(th.Success()).Bold(true).Render("▶ playing")
	}

	controller := s.controller
	if controller == "" {
		controller = "no controller"
	}
	project := s.ctx.Project
	if project == "" {
		project = "untitled"
	}

	left := fmt.Sprintf("%s  %s  %.0f bpm  %s", th.Title("go-beats"), state, tempo, m.Session().Division)
	if playing && step >= 0 {
		left += fmt.Sprintf("  step %d", step+1)
	}
	left += th.Dim(fmt.Sprintf("  %s  %s", project, controller))

	msg := s.Message()
	if msg == "" {
		return left
	}
	right := lipgloss.NewStyle().Foreground(th.Warning()).Render(msg)
	gap := width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 2 {
		return left + "\n" + right
	}
	return left + fmt.Sprintf("%*s", gap, "") + right
}
