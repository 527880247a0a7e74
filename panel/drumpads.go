package panel

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"go-beats/bus"
	"go-beats/model"
	"go-beats/sequencer"
	"go-beats/widgets"
)

// kit command pad, bottom right of the grid
const (
	kitPadRow = 0
	kitPadCol = 7
)

// DrumPads plays the 16 kit slots and picks the step sequencer track
type DrumPads struct {
	ctx      *Context
	selected int // kit slot 0-15
	outputs  []string
	popup    *widgets.Popup
}

func NewDrumPads(ctx *Context) *DrumPads {
	d := &DrumPads{ctx: ctx, outputs: ctx.outputs()}
	ctx.Bus.Subscribe(bus.DrumPadSelected, func(msg bus.Message) {
		if slot, ok := msg.Payload.(int); ok && slot >= 0 && slot < model.NumTracks {
			d.selected = slot
		}
	})
	ctx.Bus.Subscribe(bus.DevicesChanged, func(msg bus.Message) {
		if names, ok := msg.Payload.([]string); ok {
			d.outputs = names
		}
	})
	return d
}

func (d *DrumPads) Name() string { return "pads" }

func (d *DrumPads) Capturing() bool { return d.popup != nil }

// hit sounds a slot and makes it the selected track everywhere
func (d *DrumPads) hit(slot int) {
	d.ctx.Manager.Preview(slot)
	d.selected = slot
	d.ctx.Bus.Publish(bus.DrumPadSelected, slot)
}

func (d *DrumPads) cycleKit() {
	var name string
	d.ctx.Manager.Update(func(s *model.Session) {
		s.Kit = sequencer.NextKit(s.Kit)
		name = s.Kit
	})
	d.ctx.Bus.Status("kit: " + sequencer.GetKit(name).Name)
}

func (d *DrumPads) HandleKey(msg tea.KeyMsg) tea.Cmd {
	if d.popup != nil {
		d.handlePopup(msg.String())
		return nil
	}

	// the 4x4 grid is navigated the way it looks: row 3 on top
	row, col := d.selected/4, d.selected%4
	switch msg.String() {
	case "h", "left":
		col = max(0, col-1)
	case "l", "right":
		col = min(3, col+1)
	case "k", "up":
		row = min(3, row+1)
	case "j", "down":
		row = max(0, row-1)
	case " ", "enter":
		d.hit(d.selected)
		return nil
	case "K":
		d.cycleKit()
		return nil
	case "c":
		d.setChannel(1)
		return nil
	case "C":
		d.setChannel(-1)
		return nil
	case "o":
		d.openPorts()
		return nil
	default:
		return nil
	}
	if slot := row*4 + col; slot != d.selected {
		d.selected = slot
		d.ctx.Bus.Publish(bus.DrumPadSelected, slot)
	}
	return nil
}

func (d *DrumPads) setChannel(delta int) {
	var ch uint8
	d.ctx.Manager.Update(func(s *model.Session) {
		s.DrumChannel = uint8(max(1, min(int(s.DrumChannel)+delta, 16)))
		ch = s.DrumChannel
	})
	d.ctx.Bus.Status(fmt.Sprintf("drum channel %d", ch))
}

func (d *DrumPads) openPorts() {
	current := d.ctx.Manager.Session().DrumPort
	options := append([]string{defaultDevice}, d.outputs...)
	selected := 0
	for i, name := range d.outputs {
		if name == current {
			selected = i + 1
		}
	}
	d.popup = widgets.NewPopup("Drum output", options, selected)
}

func (d *DrumPads) handlePopup(key string) {
	done, ok := d.popup.HandleKey(key)
	if !done {
		return
	}
	choice := d.popup.Choice()
	d.popup = nil
	if !ok {
		return
	}
	if choice == defaultDevice {
		choice = ""
	}
	d.ctx.Manager.Update(func(s *model.Session) {
		s.DrumPort = choice
	})
}

func (d *DrumPads) HandlePad(row, col int) {
	if row == kitPadRow && col == kitPadCol {
		d.cycleKit()
		return
	}
	if row >= 0 && row < 4 && col >= 0 && col < 4 {
		d.hit(row*4 + col)
	}
}

func (d *DrumPads) View() string {
	th := d.ctx.Theme
	s := d.ctx.Manager.Session()
	kit := sequencer.GetKit(s.Kit)

	port := s.DrumPort
	if port == "" {
		port = defaultDevice
	}

	var out strings.Builder
	out.WriteString(th.Title(fmt.Sprintf("DRUM PADS  %s", kit.Name)))
	out.WriteString("\n")
	out.WriteString(th.Dim(fmt.Sprintf("  ch %d  %s", s.DrumChannel, port)))
	out.WriteString("\n\n")

	cell := lipgloss.NewStyle().Width(14).Height(2).Border(lipgloss.NormalBorder()).Padding(0, 1)
	for row := 3; row >= 0; row-- {
		cells := make([]string, 4)
		for col := 0; col < 4; col++ {
			slot := row*4 + col
			label := fmt.Sprintf("%s\n%d", sequencer.SlotNames[slot], kit.Notes[slot])
			st := cell.BorderForeground(th.Muted())
			switch {
			case slot == d.selected:
				st = cell.BorderForeground(th.Cursor())
			case d.ctx.Manager.RecentlyFired(kit.Notes[slot]):
				st = cell.BorderForeground(th.Active())
			case s.Pattern.TrackHasContent(slot):
				st = cell.BorderForeground(th.Accent())
			}
			cells[col] = st.Render(label)
		}
		out.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cells...))
		out.WriteString("\n")
	}

	if d.popup != nil {
		out.WriteString("\n")
		out.WriteString(d.popup.View())
		out.WriteString("\n")
	}

	out.WriteString("\n")
	out.WriteString(keyHelp(
		widgets.KeyBinding{Key: "h j k l", Desc: "select pad"},
		widgets.KeyBinding{Key: "space", Desc: "hit pad"},
		widgets.KeyBinding{Key: "K", Desc: "next kit"},
		widgets.KeyBinding{Key: "c / C", Desc: "drum channel up / down"},
		widgets.KeyBinding{Key: "o", Desc: "drum output"},
	))
	return out.String()
}

func (d *DrumPads) RenderLEDs() []sequencer.LEDState {
	c := paletteLEDs(d.ctx.Theme)
	s := d.ctx.Manager.Session()
	kit := sequencer.GetKit(s.Kit)

	leds := make([]sequencer.LEDState, 0, 17)
	for slot := 0; slot < model.NumTracks; slot++ {
		color := c.dim
		switch {
		case d.ctx.Manager.RecentlyFired(kit.Notes[slot]):
			color = c.play
		case slot == d.selected:
			color = c.sel
		case s.Pattern.TrackHasContent(slot):
			color = c.on
		}
		leds = append(leds, sequencer.LEDState{Row: slot / 4, Col: slot % 4, Color: color})
	}
	leds = append(leds, sequencer.LEDState{Row: kitPadRow, Col: kitPadCol, Color: c.cmd})
	return leds
}

func (d *DrumPads) HelpLayout() widgets.LaunchpadLayout {
	c := paletteLEDs(d.ctx.Theme)
	var layout widgets.LaunchpadLayout
	for slot := 0; slot < model.NumTracks; slot++ {
		layout.Grid[slot/4][slot%4] = widgets.PadConfig{Color: c.on, Tooltip: sequencer.SlotNames[slot]}
	}
	layout.Grid[kitPadRow][kitPadCol] = widgets.PadConfig{Color: c.cmd, Tooltip: "Next Kit"}
	return layout
}
