package panel

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"go-beats/bus"
	"go-beats/model"
	"go-beats/sequencer"
	"go-beats/widgets"
)

type captionColumn int

const (
	columnControls captionColumn = iota
	columnCaptions
)

// Captions maps the selected instrument's control codes and names the
// value ranges of each
type Captions struct {
	ctx          *Context
	instrumentID string
	column       captionColumn
	control      int
	caption      int

	form    *widgets.Form
	editing bool // form edits the current entry instead of adding one
}

func NewCaptions(ctx *Context) *Captions {
	c := &Captions{ctx: ctx}
	ctx.Bus.Subscribe(bus.InstrumentSelected, func(msg bus.Message) {
		id, _ := msg.Payload.(string)
		if id != c.instrumentID {
			c.instrumentID = id
			c.reset()
		}
	})
	ctx.Bus.Subscribe(bus.SessionChanged, func(bus.Message) {
		c.instrumentID = ""
		c.reset()
	})
	return c
}

func (c *Captions) reset() {
	c.column = columnControls
	c.control = 0
	c.caption = 0
	c.form = nil
}

func (c *Captions) Name() string { return "captions" }

func (c *Captions) Capturing() bool { return c.form != nil }

func (c *Captions) instrument() *model.Instrument {
	return c.ctx.Manager.Session().Instrument(c.instrumentID)
}

func (c *Captions) currentControl() *model.ControlCode {
	in := c.instrument()
	if in == nil || c.control < 0 || c.control >= len(in.Controls) {
		return nil
	}
	return in.Controls[c.control]
}

func (c *Captions) HandleKey(msg tea.KeyMsg) tea.Cmd {
	if c.form != nil {
		return c.handleForm(msg)
	}
	in := c.instrument()
	if in == nil {
		return nil
	}

	key := msg.String()
	switch key {
	case "tab", "h", "l", "left", "right":
		if c.column == columnControls && c.currentControl() != nil {
			c.column = columnCaptions
			c.caption = 0
		} else {
			c.column = columnControls
		}
	case "j", "down", "k", "up", "g", "home", "G", "end":
		if c.column == columnControls {
			c.control = moveIndex(c.control, len(in.Controls), key)
			c.caption = 0
		} else if cc := c.currentControl(); cc != nil {
			c.caption = moveIndex(c.caption, len(cc.Captions), key)
		}
	case "a":
		c.openForm(false)
	case "enter", "e":
		c.openForm(true)
	case "d", "x":
		c.remove()
	}
	return nil
}

func (c *Captions) openForm(edit bool) {
	cc := c.currentControl()
	if c.column == columnControls {
		if edit && cc == nil {
			return
		}
		num, name := "1", ""
		if edit {
			num, name = strconv.Itoa(int(cc.CC)), cc.Name
		}
		c.form = widgets.NewForm("Control code", []widgets.Field{
			{Key: "cc", Label: "CC", Value: num, Min: 0, Max: 127},
			{Key: "name", Label: "Name", Value: name},
		})
		c.editing = edit
		return
	}

	if cc == nil {
		return
	}
	value, desc := "0", ""
	if edit {
		if c.caption >= len(cc.Captions) {
			return
		}
		cp := cc.Captions[c.caption]
		value, desc = strconv.Itoa(int(cp.Value)), cp.Description
	}
	c.form = widgets.NewForm("Caption for "+cc.Name, []widgets.Field{
		{Key: "value", Label: "From value", Value: value, Min: 0, Max: 127},
		{Key: "desc", Label: "Description", Value: desc},
	})
	c.editing = edit
}

func (c *Captions) handleForm(msg tea.KeyMsg) tea.Cmd {
	res, cmd := c.form.HandleKey(msg)
	switch res {
	case widgets.FormCancelled:
		c.form = nil
	case widgets.FormSubmitted:
		f := c.form
		c.form = nil
		if c.column == columnControls {
			c.submitControl(f)
		} else {
			c.submitCaption(f)
		}
	}
	return cmd
}

func (c *Captions) submitControl(f *widgets.Form) {
	in := c.instrument()
	if in == nil {
		return
	}
	num := uint8(f.Int("cc"))
	name := f.Value("name")
	if name == "" {
		name = fmt.Sprintf("CC %d", num)
	}

	var cc *model.ControlCode
	cur := c.currentControl()
	c.ctx.Manager.Update(func(*model.Session) {
		if c.editing && cur != nil {
			if num != cur.CC && in.Control(num) != nil {
				return
			}
			cur.CC = num
			cur.Name = name
			cc = cur
			return
		}
		cc = in.AddControl(num, name)
		cc.Name = name
	})
	if cc == nil {
		c.ctx.Bus.Status(fmt.Sprintf("CC %d is already mapped", num))
		return
	}
	c.ctx.Manager.Update(func(*model.Session) {
		slices.SortStableFunc(in.Controls, func(a, b *model.ControlCode) int {
			return cmp.Compare(a.CC, b.CC)
		})
	})
	for i, x := range in.Controls {
		if x == cc {
			c.control = i
		}
	}
	c.ctx.Bus.Publish(bus.CaptionUpdated, cc)
}

func (c *Captions) submitCaption(f *widgets.Form) {
	cc := c.currentControl()
	if cc == nil {
		return
	}
	value := uint8(f.Int("value"))
	desc := f.Value("desc")
	c.ctx.Manager.Update(func(*model.Session) {
		if c.editing && c.caption < len(cc.Captions) && cc.Captions[c.caption].Value != value {
			cc.RemoveCaption(c.caption)
		}
		cc.SetCaption(value, desc)
	})
	for i, cp := range cc.Captions {
		if cp.Value == value {
			c.caption = i
		}
	}
	c.ctx.Bus.Publish(bus.CaptionUpdated, cc)
}

func (c *Captions) remove() {
	in := c.instrument()
	cc := c.currentControl()
	if in == nil || cc == nil {
		return
	}
	if c.column == columnControls {
		c.ctx.Manager.Update(func(*model.Session) {
			in.RemoveControl(c.control)
		})
		c.control = clampIndex(c.control, len(in.Controls))
		c.ctx.Bus.Publish(bus.CaptionUpdated, cc)
		return
	}
	removed := false
	c.ctx.Manager.Update(func(*model.Session) {
		removed = cc.RemoveCaption(c.caption)
	})
	if removed {
		c.caption = clampIndex(c.caption, len(cc.Captions))
		c.ctx.Bus.Publish(bus.CaptionUpdated, cc)
	}
}

// Pads: the left half lists controls, the right half the captions of the
// selected control, four per row from the top
func (c *Captions) HandlePad(row, col int) {
	in := c.instrument()
	if in == nil || row < 0 || row > 7 || col < 0 || col > 7 {
		return
	}
	i := (7-row)*4 + col%4
	if col < 4 {
		if i < len(in.Controls) {
			c.column = columnControls
			c.control = i
			c.caption = 0
		}
		return
	}
	if cc := c.currentControl(); cc != nil && i < len(cc.Captions) {
		c.column = columnCaptions
		c.caption = i
	}
}

func (c *Captions) View() string {
	th := c.ctx.Theme
	var out strings.Builder

	in := c.instrument()
	if in == nil {
		out.WriteString(th.Title("CAPTIONS"))
		out.WriteString("\n\n")
		out.WriteString(th.Dim("  select an instrument first"))
		return out.String()
	}

	out.WriteString(th.Title("CAPTIONS  " + in.Name))
	out.WriteString("\n\n")

	if c.form != nil {
		out.WriteString(c.form.View())
		return out.String()
	}

	controls := make([]string, len(in.Controls))
	for i, cc := range in.Controls {
		controls[i] = fmt.Sprintf("CC %-3d %s", cc.CC, truncate(cc.Name, 18))
	}
	ctlSel, capSel := c.control, -1
	if c.column == columnCaptions {
		ctlSel, capSel = -1, c.caption
	}
	left := listView(th, controls, ctlSel, "no control codes")

	right := th.Dim("  select a control")
	if cc := c.currentControl(); cc != nil {
		caps := make([]string, len(cc.Captions))
		for i, cp := range cc.Captions {
			caps[i] = fmt.Sprintf("%3d+ %s", cp.Value, truncate(cp.Description, 22))
		}
		right = listView(th, caps, capSel, "no captions")
	}

	colStyle := lipgloss.NewStyle().Width(32)
	out.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		colStyle.Render(th.Dim("CONTROLS")+"\n"+left),
		colStyle.Render(th.Dim("CAPTIONS")+"\n"+right),
	))
	out.WriteString("\n\n")
	out.WriteString(keyHelp(
		widgets.KeyBinding{Key: "tab", Desc: "switch column"},
		widgets.KeyBinding{Key: "j / k", Desc: "select"},
		widgets.KeyBinding{Key: "a / d", Desc: "add / remove"},
		widgets.KeyBinding{Key: "enter", Desc: "edit"},
	))
	return out.String()
}

func (c *Captions) RenderLEDs() []sequencer.LEDState {
	col := paletteLEDs(c.ctx.Theme)
	leds := make([]sequencer.LEDState, 0, 64)
	in := c.instrument()
	cc := c.currentControl()
	for i := 0; i < 32; i++ {
		row, x := 7-i/4, i%4
		left, right := [3]uint8{}, [3]uint8{}
		if in != nil && i < len(in.Controls) {
			left = col.on
			if i == c.control {
				left = col.sel
			}
		}
		if cc != nil && i < len(cc.Captions) {
			right = col.play
			if c.column == columnCaptions && i == c.caption {
				right = col.sel
			}
		}
		leds = append(leds,
			sequencer.LEDState{Row: row, Col: x, Color: left},
			sequencer.LEDState{Row: row, Col: x + 4, Color: right},
		)
	}
	return leds
}

func (c *Captions) HelpLayout() widgets.LaunchpadLayout {
	col := paletteLEDs(c.ctx.Theme)
	var layout widgets.LaunchpadLayout
	in := c.instrument()
	cc := c.currentControl()
	for i := 0; i < 32; i++ {
		row, x := 7-i/4, i%4
		if in != nil && i < len(in.Controls) {
			layout.Grid[row][x] = widgets.PadConfig{Color: col.on, Tooltip: fmt.Sprintf("CC %d", in.Controls[i].CC)}
		}
		if cc != nil && i < len(cc.Captions) {
			layout.Grid[row][x+4] = widgets.PadConfig{Color: col.play, Tooltip: cc.Captions[i].Description}
		}
	}
	return layout
}
