package panel

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"go-beats/bus"
	"go-beats/model"
	"go-beats/sequencer"
	"go-beats/widgets"
)

const defaultDevice = "(default)"

// Instruments manages the sound sources players are routed to
type Instruments struct {
	ctx      *Context
	selected int
	lastID   string
	outputs  []string

	form  *widgets.Form
	popup *widgets.Popup
}

func NewInstruments(ctx *Context) *Instruments {
	in := &Instruments{ctx: ctx, outputs: ctx.outputs()}
	ctx.Bus.Subscribe(bus.SessionChanged, func(bus.Message) {
		in.selected = 0
		in.form = nil
		in.popup = nil
		in.announce()
	})
	ctx.Bus.Subscribe(bus.DevicesChanged, func(msg bus.Message) {
		if names, ok := msg.Payload.([]string); ok {
			in.outputs = names
		}
	})
	in.announce()
	return in
}

func (in *Instruments) Name() string { return "instruments" }

func (in *Instruments) Capturing() bool {
	return in.form != nil || in.popup != nil
}

func (in *Instruments) session() *model.Session {
	return in.ctx.Manager.Session()
}

func (in *Instruments) current() *model.Instrument {
	s := in.session()
	if in.selected < 0 || in.selected >= len(s.Instruments) {
		return nil
	}
	return s.Instruments[in.selected]
}

func (in *Instruments) announce() {
	in.selected = clampIndex(in.selected, len(in.session().Instruments))
	id := ""
	if cur := in.current(); cur != nil {
		id = cur.ID
	}
	if id == in.lastID {
		return
	}
	in.lastID = id
	in.ctx.Bus.Publish(bus.InstrumentSelected, id)
}

func (in *Instruments) HandleKey(msg tea.KeyMsg) tea.Cmd {
	if in.form != nil {
		return in.handleForm(msg)
	}
	if in.popup != nil {
		in.handlePopup(msg.String())
		return nil
	}

	key := msg.String()
	switch key {
	case "j", "down", "k", "up", "g", "home", "G", "end":
		in.selected = moveIndex(in.selected, len(in.session().Instruments), key)
		in.announce()
	case "a":
		var added *model.Instrument
		in.ctx.Manager.Update(func(s *model.Session) {
			added = s.AddInstrument()
		})
		in.selected = len(in.session().Instruments) - 1
		in.ctx.Bus.Publish(bus.InstrumentUpdated, added)
		in.announce()
	case "d", "x":
		cur := in.current()
		if cur == nil {
			return nil
		}
		in.ctx.Manager.Update(func(s *model.Session) {
			s.RemoveInstrument(cur.ID)
		})
		in.ctx.Bus.Publish(bus.InstrumentUpdated, cur)
		in.announce()
	case "enter", "e":
		in.openForm()
	case "o":
		in.openDevices()
	}
	return nil
}

func (in *Instruments) openForm() {
	cur := in.current()
	if cur == nil {
		return
	}
	in.form = widgets.NewForm("Edit "+cur.Name, []widgets.Field{
		{Key: "name", Label: "Name", Value: cur.Name},
		{Key: "channel", Label: "Channel", Value: strconv.Itoa(int(cur.Channel)), Min: 1, Max: 16},
		{Key: "low", Label: "Lowest note", Value: strconv.Itoa(int(cur.LowNote)), Min: 0, Max: 127},
		{Key: "high", Label: "Highest note", Value: strconv.Itoa(int(cur.HighNote)), Min: 0, Max: 127},
	})
}

func (in *Instruments) handleForm(msg tea.KeyMsg) tea.Cmd {
	res, cmd := in.form.HandleKey(msg)
	switch res {
	case widgets.FormCancelled:
		in.form = nil
	case widgets.FormSubmitted:
		f := in.form
		in.form = nil
		cur := in.current()
		if cur == nil {
			return nil
		}
		in.ctx.Manager.Update(func(*model.Session) {
			if name := f.Value("name"); name != "" {
				cur.Name = name
			}
			cur.Channel = uint8(f.Int("channel"))
			cur.LowNote = uint8(f.Int("low"))
			cur.HighNote = uint8(f.Int("high"))
			cur.Normalize()
		})
		in.ctx.Bus.Publish(bus.InstrumentUpdated, cur)
	}
	return cmd
}

func (in *Instruments) openDevices() {
	cur := in.current()
	if cur == nil {
		return
	}
	options := append([]string{defaultDevice}, in.outputs...)
	selected := 0
	for i, name := range in.outputs {
		if name == cur.Device {
			selected = i + 1
		}
	}
	// keep a saved device visible even when it is unplugged
	if cur.Device != "" && selected == 0 {
		options = append(options, cur.Device)
		selected = len(options) - 1
	}
	in.popup = widgets.NewPopup("Output", options, selected)
}

func (in *Instruments) handlePopup(key string) {
	done, ok := in.popup.HandleKey(key)
	if !done {
		return
	}
	choice := in.popup.Choice()
	in.popup = nil
	cur := in.current()
	if !ok || cur == nil {
		return
	}
	if choice == defaultDevice {
		choice = ""
	}
	in.ctx.Manager.Update(func(*model.Session) {
		cur.Device = choice
	})
	in.ctx.Bus.Publish(bus.InstrumentUpdated, cur)
}

func (in *Instruments) HandlePad(row, col int) {
	i := listPad(row, col)
	if i < 0 || i >= len(in.session().Instruments) {
		return
	}
	in.selected = i
	in.announce()
}

func (in *Instruments) View() string {
	th := in.ctx.Theme
	s := in.session()

	var out strings.Builder
	out.WriteString(th.Title(fmt.Sprintf("INSTRUMENTS  %d", len(s.Instruments))))
	out.WriteString("\n\n")

	if in.form != nil {
		out.WriteString(in.form.View())
		return out.String()
	}

	rows := make([]string, len(s.Instruments))
	for i, inst := range s.Instruments {
		device := inst.Device
		if device == "" {
			device = defaultDevice
		}
		users := 0
		for _, pl := range s.Players {
			if pl.InstrumentID == inst.ID {
				users++
			}
		}
		rows[i] = fmt.Sprintf("%-16s ch%-2d %3d-%-3d %-24s %d cc  %d players",
			truncate(inst.Name, 16), inst.Channel, inst.LowNote, inst.HighNote, truncate(device, 24), len(inst.Controls), users)
	}
	out.WriteString(listView(th, rows, in.selected, "no instruments, press a to add one"))
	out.WriteString("\n")

	if in.popup != nil {
		out.WriteString("\n")
		out.WriteString(in.popup.View())
		out.WriteString("\n")
	}

	out.WriteString("\n")
	out.WriteString(keyHelp(
		widgets.KeyBinding{Key: "j / k", Desc: "select instrument"},
		widgets.KeyBinding{Key: "a / d", Desc: "add / remove"},
		widgets.KeyBinding{Key: "enter", Desc: "edit name, channel, range"},
		widgets.KeyBinding{Key: "o", Desc: "choose output"},
	))
	return out.String()
}

func (in *Instruments) RenderLEDs() []sequencer.LEDState {
	c := paletteLEDs(in.ctx.Theme)
	return listLEDs(len(in.session().Instruments), in.selected, c.on, c.sel, [3]uint8{})
}

func (in *Instruments) HelpLayout() widgets.LaunchpadLayout {
	c := paletteLEDs(in.ctx.Theme)
	return listLayout(len(in.session().Instruments), c.on, [3]uint8{}, "Instrument")
}
