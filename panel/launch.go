package panel

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"go-beats/bus"
	"go-beats/midi"
	"go-beats/sequencer"
	"go-beats/widgets"
)

const (
	launchBase   = 36 // note of the bottom-left pad at octave 0
	launchMaxOct = 2
	launchMinOct = -3
)

// Launch is an 8x8 grid of trigger pads, one note per pad rising from the
// bottom left. Notes go to the selected player's output, or to the drum
// output when no player is selected. The scene column focuses panels.
type Launch struct {
	ctx      *Context
	playerID string
	octave   int
	cursor   int // pad index 0-63
}

func NewLaunch(ctx *Context) *Launch {
	l := &Launch{ctx: ctx}
	ctx.Bus.Subscribe(bus.PlayerSelected, func(msg bus.Message) {
		l.playerID, _ = msg.Payload.(string)
	})
	return l
}

func (l *Launch) Name() string { return "launch" }

func (l *Launch) Capturing() bool { return false }

// note returns the note of pad index i, false when out of MIDI range
func (l *Launch) note(i int) (uint8, bool) {
	n := launchBase + l.octave*12 + i
	if n < 0 || n > 127 {
		return 0, false
	}
	return uint8(n), true
}

// target is where the pads play
func (l *Launch) target() (midi.Event, string) {
	s := l.ctx.Manager.Session()
	if pl := s.Player(l.playerID); pl != nil {
		return playerEvent(s, pl), pl.Name
	}
	return midi.Event{Type: midi.NoteOn, Port: s.DrumPort, Channel: s.DrumChannel, Velocity: 100}, "drums"
}

func (l *Launch) trigger(i int) {
	n, ok := l.note(i)
	if !ok {
		return
	}
	ev, _ := l.target()
	ev.Note = n
	l.ctx.Manager.PlayNote(ev)
}

func (l *Launch) HandleKey(msg tea.KeyMsg) tea.Cmd {
	row, col := l.cursor/8, l.cursor%8
	switch msg.String() {
	case "h", "left":
		col = max(0, col-1)
	case "l", "right":
		col = min(7, col+1)
	case "k", "up":
		row = min(7, row+1)
	case "j", "down":
		row = max(0, row-1)
	case " ", "enter":
		l.trigger(l.cursor)
	case "<":
		l.octave = max(launchMinOct, l.octave-1)
	case ">":
		l.octave = min(launchMaxOct, l.octave+1)
	}
	l.cursor = row*8 + col
	return nil
}

func (l *Launch) HandlePad(row, col int) {
	if col == 8 {
		entries := Registry()
		if i := 7 - row; i >= 0 && i < len(entries) {
			l.ctx.focus(entries[i].Name)
		}
		return
	}
	if row < 0 || row > 7 || col < 0 || col > 7 {
		return
	}
	l.cursor = row*8 + col
	l.trigger(l.cursor)
}

func (l *Launch) View() string {
	th := l.ctx.Theme
	_, target := l.target()

	var out strings.Builder
	out.WriteString(th.Title(fmt.Sprintf("LAUNCH  %s  octave %+d", target, l.octave)))
	out.WriteString("\n\n")

	for row := 7; row >= 0; row-- {
		for col := 0; col < 8; col++ {
			i := row*8 + col
			n, ok := l.note(i)
			cell := "  -- "
			if ok {
				cell = fmt.Sprintf(" %-4s", noteName(n))
			}
			switch {
			case i == l.cursor:
				cell = th.Highlight(cell)
			case ok && l.ctx.Manager.RecentlyFired(n):
				cell = th.Title(cell)
			}
			out.WriteString(cell)
		}
		out.WriteString("\n")
	}

	out.WriteString("\n")
	out.WriteString(keyHelp(
		widgets.KeyBinding{Key: "h j k l", Desc: "move"},
		widgets.KeyBinding{Key: "space", Desc: "trigger"},
		widgets.KeyBinding{Key: "< / >", Desc: "octave"},
	))
	return out.String()
}

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// noteName spells a MIDI note with middle C as C3
func noteName(n uint8) string {
	return fmt.Sprintf("%s%d", noteNames[n%12], int(n)/12-2)
}

func (l *Launch) RenderLEDs() []sequencer.LEDState {
	c := paletteLEDs(l.ctx.Theme)
	leds := make([]sequencer.LEDState, 0, 72)
	for i := 0; i < 64; i++ {
		color := [3]uint8{}
		if n, ok := l.note(i); ok {
			switch {
			case l.ctx.Manager.RecentlyFired(n):
				color = c.play
			case i == l.cursor:
				color = c.sel
			case n%12 == 0:
				color = c.cmd
			default:
				color = c.on
			}
		}
		leds = append(leds, sequencer.LEDState{Row: i / 8, Col: i % 8, Color: color})
	}
	for i := range Registry() {
		leds = append(leds, sequencer.LEDState{Row: 7 - i, Col: 8, Color: c.dim})
	}
	return leds
}

func (l *Launch) HelpLayout() widgets.LaunchpadLayout {
	c := paletteLEDs(l.ctx.Theme)
	var layout widgets.LaunchpadLayout
	for i := 0; i < 64; i++ {
		if n, ok := l.note(i); ok {
			layout.Grid[i/8][i%8] = widgets.PadConfig{Color: c.on, Tooltip: noteName(n)}
		}
	}
	for i, e := range Registry() {
		layout.RightCol[7-i] = widgets.PadConfig{Color: c.dim, Tooltip: "Show " + e.Name}
	}
	return layout
}
