package panel

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"go-beats/bus"
	"go-beats/midi"
	"go-beats/model"
	"go-beats/sequencer"
	"go-beats/widgets"
)

// Players lists the session's players and edits the selected one
type Players struct {
	ctx      *Context
	selected int
	lastID   string

	form  *widgets.Form
	popup *widgets.Popup
}

func NewPlayers(ctx *Context) *Players {
	p := &Players{ctx: ctx}
	ctx.Bus.Subscribe(bus.SessionChanged, func(bus.Message) {
		p.selected = 0
		p.form = nil
		p.popup = nil
		p.announce()
	})
	p.announce()
	return p
}

func (p *Players) Name() string { return "players" }

func (p *Players) Capturing() bool {
	return p.form != nil || p.popup != nil
}

func (p *Players) session() *model.Session {
	return p.ctx.Manager.Session()
}

func (p *Players) current() *model.Player {
	s := p.session()
	if p.selected < 0 || p.selected >= len(s.Players) {
		return nil
	}
	return s.Players[p.selected]
}

// announce publishes PlayerSelected when the selection moved to another
// player
func (p *Players) announce() {
	p.selected = clampIndex(p.selected, len(p.session().Players))
	id := ""
	if pl := p.current(); pl != nil {
		id = pl.ID
	}
	if id == p.lastID {
		return
	}
	p.lastID = id
	p.ctx.Bus.Publish(bus.PlayerSelected, id)
}

func (p *Players) choose(i int) {
	p.selected = i
	p.announce()
}

func (p *Players) HandleKey(msg tea.KeyMsg) tea.Cmd {
	if p.form != nil {
		return p.handleForm(msg)
	}
	if p.popup != nil {
		p.handlePopup(msg.String())
		return nil
	}

	key := msg.String()
	n := len(p.session().Players)
	switch key {
	case "j", "down", "k", "up", "g", "home", "G", "end":
		p.choose(moveIndex(p.selected, n, key))
	case "a":
		p.add()
	case "d", "x":
		p.remove()
	case "enter", "e":
		p.openForm()
	case "i":
		p.openInstruments()
	case "m":
		p.toggleMute()
	case " ":
		p.audition()
	}
	return nil
}

func (p *Players) add() {
	var pl *model.Player
	p.ctx.Manager.Update(func(s *model.Session) {
		pl = s.AddPlayer()
	})
	p.ctx.Bus.Publish(bus.PlayerAdded, pl)
	p.choose(len(p.session().Players) - 1)
}

func (p *Players) remove() {
	pl := p.current()
	if pl == nil {
		return
	}
	p.ctx.Manager.Update(func(s *model.Session) {
		s.RemovePlayer(pl.ID)
	})
	p.ctx.Bus.Publish(bus.PlayerRemoved, pl)
	p.announce()
}

func (p *Players) toggleMute() {
	pl := p.current()
	if pl == nil {
		return
	}
	p.ctx.Manager.Update(func(*model.Session) {
		pl.Muted = !pl.Muted
	})
	p.ctx.Bus.Publish(bus.PlayerUpdated, pl)
}

func (p *Players) audition() {
	if pl := p.current(); pl != nil {
		p.ctx.Manager.PlayNote(playerEvent(p.session(), pl))
	}
}

func (p *Players) openForm() {
	pl := p.current()
	if pl == nil {
		return
	}
	p.form = widgets.NewForm("Edit "+pl.Name, []widgets.Field{
		{Key: "name", Label: "Name", Value: pl.Name},
		{Key: "channel", Label: "Channel", Value: strconv.Itoa(int(pl.Channel)), Min: 1, Max: 16},
		{Key: "note", Label: "Note", Value: strconv.Itoa(int(pl.Note)), Min: 0, Max: 127},
		{Key: "level", Label: "Level", Value: strconv.Itoa(int(pl.Level)), Min: 1, Max: 127},
		{Key: "probability", Label: "Probability", Value: strconv.Itoa(pl.Probability), Min: 0, Max: 100},
		{Key: "gate", Label: "Gate", Value: strconv.Itoa(pl.Gate), Min: 1, Max: 384},
	})
}

func (p *Players) handleForm(msg tea.KeyMsg) tea.Cmd {
	res, cmd := p.form.HandleKey(msg)
	switch res {
	case widgets.FormCancelled:
		p.form = nil
	case widgets.FormSubmitted:
		f := p.form
		p.form = nil
		pl := p.current()
		if pl == nil {
			return nil
		}
		p.ctx.Manager.Update(func(*model.Session) {
			if name := f.Value("name"); name != "" {
				pl.Name = name
			}
			pl.Channel = uint8(f.Int("channel"))
			pl.Note = uint8(f.Int("note"))
			pl.Level = uint8(f.Int("level"))
			pl.Probability = f.Int("probability")
			pl.Gate = f.Int("gate")
			pl.Normalize()
		})
		p.ctx.Bus.Publish(bus.PlayerUpdated, pl)
	}
	return cmd
}

func (p *Players) openInstruments() {
	pl := p.current()
	if pl == nil {
		return
	}
	options := []string{"(none)"}
	selected := 0
	for i, in := range p.session().Instruments {
		options = append(options, in.Name)
		if in.ID == pl.InstrumentID {
			selected = i + 1
		}
	}
	p.popup = widgets.NewPopup("Instrument", options, selected)
}

func (p *Players) handlePopup(key string) {
	done, ok := p.popup.HandleKey(key)
	if !done {
		return
	}
	idx := p.popup.Selected
	p.popup = nil
	pl := p.current()
	if !ok || pl == nil {
		return
	}
	s := p.session()
	id := ""
	if idx > 0 && idx <= len(s.Instruments) {
		id = s.Instruments[idx-1].ID
	}
	p.ctx.Manager.Update(func(*model.Session) {
		pl.InstrumentID = id
	})
	p.ctx.Bus.Publish(bus.PlayerUpdated, pl)
}

func (p *Players) HandlePad(row, col int) {
	i := listPad(row, col)
	if i < 0 || i >= len(p.session().Players) {
		return
	}
	p.choose(i)
	p.audition()
}

func (p *Players) View() string {
	th := p.ctx.Theme
	s := p.session()

	var out strings.Builder
	out.WriteString(th.Title(fmt.Sprintf("PLAYERS  %d", len(s.Players))))
	out.WriteString("\n\n")

	if p.form != nil {
		out.WriteString(p.form.View())
		return out.String()
	}

	rows := make([]string, len(s.Players))
	for i, pl := range s.Players {
		inst := "-"
		if in := s.Instrument(pl.InstrumentID); in != nil {
			inst = in.Name
		}
		mute := " "
		if pl.Muted {
			mute = string(th.Symbols.Muted)
		}
		rows[i] = fmt.Sprintf("%s %-14s ch%-2d n%-3d lvl%-3d %3d%%  gate %-3d %-12s %d rules",
			mute, truncate(pl.Name, 14), pl.Channel, pl.Note, pl.Level, pl.Probability, pl.Gate, truncate(inst, 12), len(pl.Rules))
	}
	out.WriteString(listView(th, rows, p.selected, "no players, press a to add one"))
	out.WriteString("\n")

	if p.popup != nil {
		out.WriteString("\n")
		out.WriteString(p.popup.View())
		out.WriteString("\n")
	}

	out.WriteString("\n")
	out.WriteString(keyHelp(
		widgets.KeyBinding{Key: "j / k", Desc: "select player"},
		widgets.KeyBinding{Key: "a / d", Desc: "add / remove player"},
		widgets.KeyBinding{Key: "enter", Desc: "edit player"},
		widgets.KeyBinding{Key: "i", Desc: "choose instrument"},
		widgets.KeyBinding{Key: "m", Desc: "mute"},
		widgets.KeyBinding{Key: "space", Desc: "audition note"},
	))
	return out.String()
}

func (p *Players) RenderLEDs() []sequencer.LEDState {
	c := paletteLEDs(p.ctx.Theme)
	s := p.session()
	leds := listLEDs(len(s.Players), p.selected, c.on, c.sel, [3]uint8{})
	for i, pl := range s.Players {
		if i >= 64 {
			break
		}
		switch {
		case pl.Muted:
			leds[i].Color = c.dim
		case p.ctx.Manager.RecentlyFired(pl.Note):
			leds[i].Color = c.play
		}
	}
	return leds
}

func (p *Players) HelpLayout() widgets.LaunchpadLayout {
	c := paletteLEDs(p.ctx.Theme)
	return listLayout(len(p.session().Players), c.on, [3]uint8{}, "Player")
}

// playerEvent is the note a player sends, routed to its instrument
func playerEvent(s *model.Session, pl *model.Player) midi.Event {
	ev := midi.Event{Type: midi.NoteOn, Channel: pl.Channel, Note: pl.Note, Velocity: pl.Level}
	if in := s.Instrument(pl.InstrumentID); in != nil {
		ev.Port = in.Device
	}
	return ev
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
