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

const maxRuleValue = 999

// Rules edits the rules of the player picked in the players panel
type Rules struct {
	ctx      *Context
	playerID string
	selected int
	form     *widgets.Form
}

func NewRules(ctx *Context) *Rules {
	r := &Rules{ctx: ctx}
	ctx.Bus.Subscribe(bus.PlayerSelected, func(msg bus.Message) {
		id, _ := msg.Payload.(string)
		if id != r.playerID {
			r.playerID = id
			r.selected = 0
			r.form = nil
		}
	})
	ctx.Bus.Subscribe(bus.PlayerRemoved, func(msg bus.Message) {
		if pl, ok := msg.Payload.(*model.Player); ok && pl.ID == r.playerID {
			r.playerID = ""
			r.form = nil
		}
	})
	return r
}

func (r *Rules) Name() string { return "rules" }

func (r *Rules) Capturing() bool { return r.form != nil }

func (r *Rules) player() *model.Player {
	return r.ctx.Manager.Session().Player(r.playerID)
}

func (r *Rules) current() *model.Rule {
	pl := r.player()
	if pl == nil || r.selected < 0 || r.selected >= len(pl.Rules) {
		return nil
	}
	return pl.Rules[r.selected]
}

// edit applies fn to the selected rule under the session lock and
// publishes RuleUpdated
func (r *Rules) edit(fn func(pl *model.Player, rule *model.Rule)) {
	pl := r.player()
	rule := r.current()
	if pl == nil || rule == nil {
		return
	}
	r.ctx.Manager.Update(func(*model.Session) {
		fn(pl, rule)
		rule.Value = clampRuleValue(rule)
	})
	r.ctx.Bus.Publish(bus.RuleUpdated, pl)
}

func clampRuleValue(rule *model.Rule) int {
	lo := 0
	if rule.Comparison == model.CmpEvery || rule.Operator != model.OpTick {
		lo = 1
	}
	return max(lo, min(rule.Value, maxRuleValue))
}

func (r *Rules) HandleKey(msg tea.KeyMsg) tea.Cmd {
	if r.form != nil {
		return r.handleForm(msg)
	}

	pl := r.player()
	if pl == nil {
		return nil
	}

	key := msg.String()
	switch key {
	case "j", "down", "k", "up", "g", "home", "G", "end":
		r.selected = moveIndex(r.selected, len(pl.Rules), key)
	case "a":
		r.ctx.Manager.Update(func(*model.Session) {
			pl.AddRule()
		})
		r.selected = len(pl.Rules) - 1
		r.ctx.Bus.Publish(bus.RuleUpdated, pl)
	case "d", "x":
		removed := false
		r.ctx.Manager.Update(func(*model.Session) {
			removed = pl.RemoveRule(r.selected)
		})
		if removed {
			r.selected = clampIndex(r.selected, len(pl.Rules))
			r.ctx.Bus.Publish(bus.RuleUpdated, pl)
		}
	case "o":
		r.edit(func(_ *model.Player, rule *model.Rule) { rule.Operator = rule.Operator.Next() })
	case "c":
		r.edit(func(_ *model.Player, rule *model.Rule) { rule.Comparison = rule.Comparison.Next() })
	case "l", "right":
		r.edit(func(_ *model.Player, rule *model.Rule) { rule.Value++ })
	case "h", "left":
		r.edit(func(_ *model.Player, rule *model.Rule) { rule.Value-- })
	case "enter", "e":
		if rule := r.current(); rule != nil {
			r.form = widgets.NewForm(fmt.Sprintf("Value for %s %s", rule.Operator, rule.Comparison), []widgets.Field{
				{Key: "value", Label: "Value", Value: strconv.Itoa(rule.Value), Min: 0, Max: maxRuleValue},
			})
		}
	}
	return nil
}

func (r *Rules) handleForm(msg tea.KeyMsg) tea.Cmd {
	res, cmd := r.form.HandleKey(msg)
	switch res {
	case widgets.FormCancelled:
		r.form = nil
	case widgets.FormSubmitted:
		v := r.form.Int("value")
		r.form = nil
		r.edit(func(_ *model.Player, rule *model.Rule) { rule.Value = v })
	}
	return cmd
}

// Pads: the top four rows list the rules, the bottom row edits the selected
// one
func (r *Rules) HandlePad(row, col int) {
	pl := r.player()
	if pl == nil {
		return
	}
	if row >= 4 && row <= 7 && col < 8 {
		if i := listPad(row, col); i < len(pl.Rules) {
			r.selected = i
		}
		return
	}
	if row != 0 {
		return
	}
	switch col {
	case 0:
		r.edit(func(_ *model.Player, rule *model.Rule) { rule.Operator = rule.Operator.Next() })
	case 1:
		r.edit(func(_ *model.Player, rule *model.Rule) { rule.Comparison = rule.Comparison.Next() })
	case 2:
		r.edit(func(_ *model.Player, rule *model.Rule) { rule.Value-- })
	case 3:
		r.edit(func(_ *model.Player, rule *model.Rule) { rule.Value++ })
	}
}

func (r *Rules) View() string {
	th := r.ctx.Theme
	var out strings.Builder

	pl := r.player()
	if pl == nil {
		out.WriteString(th.Title("RULES"))
		out.WriteString("\n\n")
		out.WriteString(th.Dim("  select a player first"))
		return out.String()
	}

	out.WriteString(th.Title(fmt.Sprintf("RULES  %s", pl.Name)))
	out.WriteString("\n")
	out.WriteString(th.Dim("  plays when every rule matches"))
	out.WriteString("\n\n")

	if r.form != nil {
		out.WriteString(r.form.View())
		return out.String()
	}

	rows := make([]string, len(pl.Rules))
	for i, rule := range pl.Rules {
		rows[i] = fmt.Sprintf("%-5s %-6s %d", rule.Operator, rule.Comparison, rule.Value)
	}
	out.WriteString(listView(th, rows, r.selected, "no rules: this player never plays"))
	out.WriteString("\n\n")
	out.WriteString(keyHelp(
		widgets.KeyBinding{Key: "j / k", Desc: "select rule"},
		widgets.KeyBinding{Key: "a / d", Desc: "add / remove rule"},
		widgets.KeyBinding{Key: "o", Desc: "cycle tick / step / beat / bar"},
		widgets.KeyBinding{Key: "c", Desc: "cycle == / < / > / every"},
		widgets.KeyBinding{Key: "h / l", Desc: "value down / up"},
		widgets.KeyBinding{Key: "enter", Desc: "type a value"},
	))
	return out.String()
}

func (r *Rules) RenderLEDs() []sequencer.LEDState {
	c := paletteLEDs(r.ctx.Theme)
	var leds []sequencer.LEDState
	pl := r.player()
	n := 0
	if pl != nil {
		n = len(pl.Rules)
	}
	for _, led := range listLEDs(n, r.selected, c.on, c.sel, [3]uint8{}) {
		if led.Row >= 4 {
			leds = append(leds, led)
		}
	}
	for col := 0; col < 4; col++ {
		color := c.cmd
		if r.current() == nil {
			color = c.dim
		}
		leds = append(leds, sequencer.LEDState{Row: 0, Col: col, Color: color})
	}
	return leds
}

func (r *Rules) HelpLayout() widgets.LaunchpadLayout {
	c := paletteLEDs(r.ctx.Theme)
	n := 0
	if pl := r.player(); pl != nil {
		n = min(len(pl.Rules), 32)
	}
	layout := listLayout(n, c.on, [3]uint8{}, "Rule")
	for row := 0; row < 4; row++ {
		layout.Grid[row] = [8]widgets.PadConfig{}
	}
	layout.Grid[0][0] = widgets.PadConfig{Color: c.cmd, Tooltip: "Cycle Operator"}
	layout.Grid[0][1] = widgets.PadConfig{Color: c.cmd, Tooltip: "Cycle Comparison"}
	layout.Grid[0][2] = widgets.PadConfig{Color: c.cmd, Tooltip: "Value -"}
	layout.Grid[0][3] = widgets.PadConfig{Color: c.cmd, Tooltip: "Value +"}
	return layout
}
