package panel

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"go-beats/bus"
	"go-beats/midi"
	"go-beats/model"
	"go-beats/sequencer"
	"go-beats/widgets"
)

const velocityStep = 10

// command pads in the bottom-right 4x4
var stepCommands = map[[2]int]string{
	{0, 4}: "Clear Track",
	{0, 5}: "Clear Pattern",
	{0, 6}: "Division -",
	{0, 7}: "Division +",
	{1, 6}: "Length -",
	{1, 7}: "Length +",
	{2, 4}: "Velocity -",
	{2, 5}: "Velocity +",
}

// StepSeq edits the drum pattern: 16 tracks by up to 32 steps, each track
// looping at its own length
type StepSeq struct {
	ctx      *Context
	selected int // track 0-15
	cursor   int // step cursor for keyboard nav
}

func NewStepSeq(ctx *Context) *StepSeq {
	d := &StepSeq{ctx: ctx}
	ctx.Bus.Subscribe(bus.DrumPadSelected, func(msg bus.Message) {
		if slot, ok := msg.Payload.(int); ok && slot >= 0 && slot < model.NumTracks {
			d.selected = slot
			d.clampCursor()
		}
	})
	ctx.Bus.Subscribe(bus.SessionChanged, func(bus.Message) {
		d.clampCursor()
	})
	return d
}

func (d *StepSeq) Name() string { return "steps" }

func (d *StepSeq) Capturing() bool { return false }

func (d *StepSeq) pattern() *model.Pattern {
	return &d.ctx.Manager.Session().Pattern
}

func (d *StepSeq) track() *model.Track {
	return &d.pattern().Tracks[d.selected]
}

func (d *StepSeq) clampCursor() {
	d.cursor = max(0, min(d.cursor, d.track().Length-1))
}

// edit changes the pattern under the session lock and announces it
func (d *StepSeq) edit(fn func(p *model.Pattern)) {
	d.ctx.Manager.Update(func(s *model.Session) {
		fn(&s.Pattern)
	})
	d.clampCursor()
	d.ctx.Bus.Publish(bus.DrumSequenceUpdated, d.pattern())
}

func (d *StepSeq) selectTrack(t int) {
	if t < 0 || t >= model.NumTracks || t == d.selected {
		return
	}
	d.selected = t
	d.clampCursor()
	d.ctx.Bus.Publish(bus.DrumPadSelected, t)
}

func (d *StepSeq) cycleDivision(next bool) {
	div := d.ctx.Manager.Session().Division
	if next {
		div = div.Next()
	} else {
		div = div.Prev()
	}
	d.ctx.Manager.SetDivision(div)
}

func (d *StepSeq) nudgeVelocity(delta int) {
	t, s := d.selected, d.cursor
	d.edit(func(p *model.Pattern) {
		p.SetVelocity(t, s, int(p.Tracks[t].Steps[s].Velocity)+delta)
	})
}

func (d *StepSeq) HandleKey(msg tea.KeyMsg) tea.Cmd {
	t := d.selected
	switch msg.String() {
	case "h", "left":
		if d.cursor > 0 {
			d.cursor--
		}
	case "l", "right":
		if d.cursor < d.track().Length-1 {
			d.cursor++
		}
	case "j", "down":
		d.selectTrack(t + 1)
	case "k", "up":
		d.selectTrack(t - 1)
	case " ":
		s := d.cursor
		d.edit(func(p *model.Pattern) { p.Toggle(t, s) })
	case "[":
		d.edit(func(p *model.Pattern) { p.SetLength(t, p.Tracks[t].Length-1) })
	case "]":
		d.edit(func(p *model.Pattern) { p.SetLength(t, p.Tracks[t].Length+1) })
	case "c":
		d.edit(func(p *model.Pattern) { p.ClearTrack(t) })
	case "C":
		d.edit(func(p *model.Pattern) { p.Clear() })
	case ",":
		d.nudgeVelocity(-velocityStep)
	case ".":
		d.nudgeVelocity(velocityStep)
	case "v":
		d.cycleDivision(true)
	case "V":
		d.cycleDivision(false)
	}
	return nil
}

func (d *StepSeq) HandlePad(row, col int) {
	// Top 4 rows (rows 4-7): step toggle
	if row >= 4 && row <= 7 && col >= 0 && col < 8 {
		s := (7-row)*8 + col
		t := d.selected
		if s < d.track().Length {
			d.cursor = s
			d.edit(func(p *model.Pattern) { p.Toggle(t, s) })
		}
		return
	}

	// Bottom-left 4x4 (rows 0-3, cols 0-3): track select
	if row >= 0 && row < 4 && col >= 0 && col < 4 {
		d.selectTrack(row*4 + col)
		return
	}

	t := d.selected
	switch stepCommands[[2]int{row, col}] {
	case "Clear Track":
		d.edit(func(p *model.Pattern) { p.ClearTrack(t) })
	case "Clear Pattern":
		d.edit(func(p *model.Pattern) { p.Clear() })
	case "Division -":
		d.cycleDivision(false)
	case "Division +":
		d.cycleDivision(true)
	case "Length -":
		d.edit(func(p *model.Pattern) { p.SetLength(t, p.Tracks[t].Length-1) })
	case "Length +":
		d.edit(func(p *model.Pattern) { p.SetLength(t, p.Tracks[t].Length+1) })
	case "Velocity -":
		d.nudgeVelocity(-velocityStep)
	case "Velocity +":
		d.nudgeVelocity(velocityStep)
	}
}

// playhead returns the step a track is on, -1 when stopped
func playhead(step int64, tr *model.Track) int {
	if step < 0 {
		return -1
	}
	return int(step % int64(max(1, tr.Length)))
}

func (d *StepSeq) View() string {
	th := d.ctx.Theme
	s := d.ctx.Manager.Session()
	pat := &s.Pattern
	step := d.ctx.Manager.Step()
	kit := sequencer.GetKit(s.Kit)

	sel := &pat.Tracks[d.selected]
	var out strings.Builder
	out.WriteString(th.Title(fmt.Sprintf("STEPS  %s  %s  Track %d %s  Len %d  Vel %d",
		s.Division, kit.Name, d.selected+1, sequencer.SlotNames[d.selected], sel.Length, sel.Steps[d.cursor].Velocity)))
	out.WriteString("\n\n")

	// 16x32 grid - single char per cell
	for t := 0; t < model.NumTracks; t++ {
		tr := &pat.Tracks[t]
		head := playhead(step, tr)
		label := fmt.Sprintf("%2d %-10s ", t+1, sequencer.SlotNames[t])
		if t == d.selected {
			label = th.Highlight(label)
		}
		out.WriteString(label)

		for i := 0; i < model.MaxSteps; i++ {
			isCursor := t == d.selected && i == d.cursor

			var char string
			switch {
			case i >= tr.Length:
				char = "-"
				if isCursor {
					char = "□"
				}
			case i == head:
				char = "▶"
				if isCursor {
					char = "▷"
				}
			case tr.Steps[i].Active:
				char = "●"
				if isCursor {
					char = "◉"
				}
			default:
				char = "·"
				if isCursor {
					char = "○"
				}
			}
			out.WriteString(char)
		}
		out.WriteString("\n")
	}

	out.WriteString("\n")
	out.WriteString(keyHelp(
		widgets.KeyBinding{Key: "h / l", Desc: "move cursor through steps"},
		widgets.KeyBinding{Key: "j / k", Desc: "select track"},
		widgets.KeyBinding{Key: "space", Desc: "toggle step"},
		widgets.KeyBinding{Key: "[ / ]", Desc: "shorten / lengthen track"},
		widgets.KeyBinding{Key: ", / .", Desc: "step velocity"},
		widgets.KeyBinding{Key: "c / C", Desc: "clear track / pattern"},
		widgets.KeyBinding{Key: "v / V", Desc: "next / previous division"},
	))
	return out.String()
}

func (d *StepSeq) RenderLEDs() []sequencer.LEDState {
	c := paletteLEDs(d.ctx.Theme)
	th := d.ctx.Theme
	stepsEmpty := th.DimLED(0.7, 0.3)
	pat := d.pattern()
	tr := &pat.Tracks[d.selected]
	head := playhead(d.ctx.Manager.Step(), tr)

	leds := make([]sequencer.LEDState, 0, 64)

	// Top 4 rows (rows 4-7): steps for selected track
	for i := 0; i < model.MaxSteps; i++ {
		row, col := 7-i/8, i%8
		color := [3]uint8{}
		channel := midi.ChannelStatic
		switch {
		case i >= tr.Length:
		case i == head:
			color = c.sel
			channel = midi.ChannelPulse
		case tr.Steps[i].Active:
			color = c.on
		default:
			color = stepsEmpty
		}
		leds = append(leds, sequencer.LEDState{Row: row, Col: col, Color: color, Channel: channel})
	}

	// Bottom-left 4x4: track select
	for t := 0; t < model.NumTracks; t++ {
		color := c.dim
		switch {
		case t == d.selected:
			color = c.sel
		case pat.TrackHasContent(t):
			color = c.play
		}
		leds = append(leds, sequencer.LEDState{Row: t / 4, Col: t % 4, Color: color})
	}

	// Bottom-right 4x4: commands
	for row := 0; row < 4; row++ {
		for col := 4; col < 8; col++ {
			color := [3]uint8{}
			if _, ok := stepCommands[[2]int{row, col}]; ok {
				color = c.cmd
			}
			leds = append(leds, sequencer.LEDState{Row: row, Col: col, Color: color})
		}
	}
	return leds
}

func (d *StepSeq) HelpLayout() widgets.LaunchpadLayout {
	c := paletteLEDs(d.ctx.Theme)
	var layout widgets.LaunchpadLayout

	for row := 4; row < 8; row++ {
		for col := 0; col < 8; col++ {
			layout.Grid[row][col] = widgets.PadConfig{Color: c.on, Tooltip: "Steps"}
		}
	}
	for t := 0; t < model.NumTracks; t++ {
		layout.Grid[t/4][t%4] = widgets.PadConfig{Color: c.play, Tooltip: sequencer.SlotNames[t]}
	}
	for pos, tip := range stepCommands {
		layout.Grid[pos[0]][pos[1]] = widgets.PadConfig{Color: c.cmd, Tooltip: tip}
	}
	return layout
}
