package panel

import (
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	gomidi "gitlab.com/gomidi/midi/v2"

	"go-beats/bus"
	"go-beats/model"
	"go-beats/sequencer"
	"go-beats/store"
	"go-beats/theme"
	"go-beats/transport"
	"go-beats/widgets"
)

type sent struct {
	port         string
	ch, key, vel uint8
}

// harness is a panel context on a clockless manager with recorded outputs
// and bus traffic
type harness struct {
	ctx     *Context
	panels  []Panel
	focused []string

	mu     sync.Mutex
	notes  []sent
	events []bus.Message
}

type fakeDevices []string

func (d fakeDevices) Outputs() []string { return d }

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{}
	b := bus.New()
	b.SubscribeAll(func(msg bus.Message) {
		h.mu.Lock()
		h.events = append(h.events, msg)
		h.mu.Unlock()
	})
	m := sequencer.NewManager(sequencer.Options{
		Bus:         b,
		DefaultPort: "Synth",
		Open: func(name string) (transport.Receiver, func() error, error) {
			return transport.SenderFunc(func(msg gomidi.Message) error {
				var ch, key, vel uint8
				if msg.GetNoteOn(&ch, &key, &vel) && vel > 0 {
					h.mu.Lock()
					h.notes = append(h.notes, sent{port: name, ch: ch, key: key, vel: vel})
					h.mu.Unlock()
				}
				return nil
			}), nil, nil
		},
	})
	t.Cleanup(m.Close)

	h.ctx = &Context{
		Manager: m,
		Bus:     b,
		Theme:   theme.New(nil),
		Devices: fakeDevices{"Synth", "Drum Machine"},
		Store:   store.New(t.TempDir()),
		Focus:   func(name string) { h.focused = append(h.focused, name) },
	}
	h.panels = Build(h.ctx)
	return h
}

func (h *harness) panel(name string) Panel {
	return h.panels[Index(name)]
}

func (h *harness) press(p Panel, keys ...string) {
	for _, k := range keys {
		p.HandleKey(key(k))
	}
}

// typeInto clears the focused form field and types s
func (h *harness) typeInto(p Panel, s string) {
	p.HandleKey(tea.KeyMsg{Type: tea.KeyCtrlU})
	for _, r := range s {
		p.HandleKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
}

// last returns the payload of the latest ev, false if never published
func (h *harness) last(ev bus.Event) (any, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := len(h.events) - 1; i >= 0; i-- {
		if h.events[i].Event == ev {
			return h.events[i].Payload, true
		}
	}
	return nil, false
}

func (h *harness) count(ev bus.Event) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, m := range h.events {
		if m.Event == ev {
			n++
		}
	}
	return n
}

func (h *harness) sentNotes() []sent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]sent(nil), h.notes...)
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestRegistry(t *testing.T) {
	h := newHarness(t)
	entries := Registry()
	if len(h.panels) != len(entries) {
		t.Fatalf("built %d panels for %d entries", len(h.panels), len(entries))
	}
	seen := map[string]bool{}
	for i, e := range entries {
		if h.panels[i].Name() != e.Name {
			t.Errorf("panel %d is %q, registered as %q", i, h.panels[i].Name(), e.Name)
		}
		if seen[e.Key] {
			t.Errorf("key %q registered twice", e.Key)
		}
		seen[e.Key] = true
		if Index(e.Name) != i {
			t.Errorf("Index(%q)=%d, want %d", e.Name, Index(e.Name), i)
		}
	}
	if Index("nope") != -1 {
		t.Errorf("Index of unknown panel")
	}
}

func TestEveryPanelRenders(t *testing.T) {
	h := newHarness(t)
	for _, p := range h.panels {
		if p.View() == "" {
			t.Errorf("%s: empty view", p.Name())
		}
		for _, led := range p.RenderLEDs() {
			if led.Row < 0 || led.Row > 7 || led.Col < 0 || led.Col > 8 {
				t.Errorf("%s: LED outside the grid %+v", p.Name(), led)
			}
		}
		if layout := p.HelpLayout(); layout.TopRow != [8]widgets.PadConfig{} {
			t.Errorf("%s: panels leave the top row to the app", p.Name())
		}
		if p.Capturing() {
			t.Errorf("%s: capturing at rest", p.Name())
		}
	}
}

func TestPlayersAddSelectRemove(t *testing.T) {
	h := newHarness(t)
	players := h.panel("players")

	h.press(players, "a", "a")
	s := h.ctx.Manager.Session()
	if len(s.Players) != 2 {
		t.Fatalf("players=%d, want 2", len(s.Players))
	}
	if h.count(bus.PlayerAdded) != 2 {
		t.Fatalf("PlayerAdded published %d times", h.count(bus.PlayerAdded))
	}
	if id, _ := h.last(bus.PlayerSelected); id != s.Players[1].ID {
		t.Fatalf("selected %v, want the new player", id)
	}

	h.press(players, "k")
	if id, _ := h.last(bus.PlayerSelected); id != s.Players[0].ID {
		t.Fatalf("k selected %v", id)
	}

	removed := s.Players[0]
	h.press(players, "d")
	if p, _ := h.last(bus.PlayerRemoved); p != removed {
		t.Fatalf("PlayerRemoved payload %v", p)
	}
	if id, _ := h.last(bus.PlayerSelected); id != h.ctx.Manager.Session().Players[0].ID {
		t.Fatalf("selection did not move to the remaining player")
	}
}

func TestPlayerForm(t *testing.T) {
	h := newHarness(t)
	players := h.panel("players")
	h.press(players, "a", "enter")
	if !players.Capturing() {
		t.Fatalf("form not open")
	}

	h.typeInto(players, "bass")
	h.press(players, "tab")
	h.typeInto(players, "3")
	h.press(players, "tab")
	h.typeInto(players, "40")
	h.press(players, "enter")

	if players.Capturing() {
		t.Fatalf("form still open")
	}
	pl := h.ctx.Manager.Session().Players[0]
	if pl.Name != "bass" || pl.Channel != 3 || pl.Note != 40 {
		t.Fatalf("player %+v", pl)
	}
	if p, _ := h.last(bus.PlayerUpdated); p != pl {
		t.Fatalf("PlayerUpdated payload %v", p)
	}
}

func TestPlayerMuteAndAudition(t *testing.T) {
	h := newHarness(t)
	players := h.panel("players")
	h.press(players, "a", "m")
	if !h.ctx.Manager.Session().Players[0].Muted {
		t.Fatalf("m did not mute")
	}

	h.press(players, " ")
	notes := h.sentNotes()
	if len(notes) != 1 || notes[0].port != "Synth" || notes[0].ch != 9 || notes[0].key != 36 {
		t.Fatalf("audition sent %+v", notes)
	}
}

func TestRulesFollowSelectedPlayer(t *testing.T) {
	h := newHarness(t)
	rules := h.panel("rules")

	if !strings.Contains(rules.View(), "select a player") {
		t.Fatalf("rules without a player: %q", rules.View())
	}
	h.press(rules, "a")
	if h.count(bus.RuleUpdated) != 0 {
		t.Fatalf("rule added with no player")
	}

	h.press(h.panel("players"), "a")
	pl := h.ctx.Manager.Session().Players[0]

	h.press(rules, "a")
	if len(pl.Rules) != 1 {
		t.Fatalf("rules=%d", len(pl.Rules))
	}
	if p, _ := h.last(bus.RuleUpdated); p != pl {
		t.Fatalf("RuleUpdated payload %v", p)
	}

	r := pl.Rules[0]
	h.press(rules, "o") // beat -> bar
	h.press(rules, "c") // every -> ==
	h.press(rules, "l", "l")
	if r.Operator != model.OpBar || r.Comparison != model.CmpEqual || r.Value != 3 {
		t.Fatalf("rule %s", r)
	}
	h.press(rules, "h", "h", "h", "h")
	if r.Value != 1 {
		t.Fatalf("bar value went below 1: %d", r.Value)
	}

	h.press(rules, "enter")
	h.typeInto(rules, "4")
	h.press(rules, "enter")
	if r.Value != 4 {
		t.Fatalf("typed value %d", r.Value)
	}

	h.press(rules, "d")
	if len(pl.Rules) != 0 {
		t.Fatalf("d did not remove the rule")
	}
}

func TestRuleValueClamp(t *testing.T) {
	tests := []struct {
		op    model.Operator
		cmp   model.Comparison
		value int
		want  int
	}{
		{model.OpTick, model.CmpEqual, -1, 0},
		{model.OpTick, model.CmpEqual, 0, 0},
		{model.OpTick, model.CmpEvery, 0, 1},
		{model.OpBeat, model.CmpLess, 0, 1},
		{model.OpBar, model.CmpGreater, 5000, maxRuleValue},
	}
	for _, tt := range tests {
		r := &model.Rule{Operator: tt.op, Comparison: tt.cmp, Value: tt.value}
		if got := clampRuleValue(r); got != tt.want {
			t.Errorf("%s: clamp=%d, want %d", r, got, tt.want)
		}
	}
}

func TestInstrumentsOutputPopup(t *testing.T) {
	h := newHarness(t)
	instruments := h.panel("instruments")

	h.press(instruments, "a")
	in := h.ctx.Manager.Session().Instruments[0]
	if id, _ := h.last(bus.InstrumentSelected); id != in.ID {
		t.Fatalf("InstrumentSelected %v", id)
	}

	h.press(instruments, "o", "j", "j", "enter")
	if in.Device != "Drum Machine" {
		t.Fatalf("device %q", in.Device)
	}
	if p, _ := h.last(bus.InstrumentUpdated); p != in {
		t.Fatalf("InstrumentUpdated payload %v", p)
	}

	h.press(instruments, "o", "k", "k", "enter")
	if in.Device != "" {
		t.Fatalf("(default) stored as %q", in.Device)
	}

	h.ctx.Bus.Publish(bus.DevicesChanged, []string{"New Synth"})
	h.press(instruments, "o", "j", "enter")
	if in.Device != "New Synth" {
		t.Fatalf("device list not refreshed: %q", in.Device)
	}
}

func TestInstrumentForm(t *testing.T) {
	h := newHarness(t)
	instruments := h.panel("instruments")
	h.press(instruments, "a", "enter", "tab", "tab")
	h.typeInto(instruments, "90")
	h.press(instruments, "tab")
	h.typeInto(instruments, "30")
	h.press(instruments, "enter")

	in := h.ctx.Manager.Session().Instruments[0]
	if in.LowNote != 30 || in.HighNote != 90 {
		t.Fatalf("range %d-%d, want swapped to 30-90", in.LowNote, in.HighNote)
	}
}

func TestCaptions(t *testing.T) {
	h := newHarness(t)
	captions := h.panel("captions")
	if !strings.Contains(captions.View(), "select an instrument") {
		t.Fatalf("captions without an instrument: %q", captions.View())
	}

	h.press(h.panel("instruments"), "a")
	in := h.ctx.Manager.Session().Instruments[0]

	h.press(captions, "a")
	h.typeInto(captions, "74")
	h.press(captions, "tab")
	h.typeInto(captions, "cutoff")
	h.press(captions, "enter")
	cc := in.Control(74)
	if cc == nil || cc.Name != "cutoff" {
		t.Fatalf("controls %+v", in.Controls)
	}

	h.press(captions, "tab", "a")
	h.typeInto(captions, "64")
	h.press(captions, "tab")
	h.typeInto(captions, "open")
	h.press(captions, "enter")
	if got := cc.CaptionFor(100); got != "open" {
		t.Fatalf("CaptionFor(100)=%q", got)
	}
	if p, _ := h.last(bus.CaptionUpdated); p != cc {
		t.Fatalf("CaptionUpdated payload %v", p)
	}

	h.press(captions, "d")
	if len(cc.Captions) != 0 {
		t.Fatalf("caption not removed")
	}
	h.press(captions, "tab", "d")
	if len(in.Controls) != 0 {
		t.Fatalf("control not removed")
	}
}

func TestDrumPadHit(t *testing.T) {
	h := newHarness(t)
	pads := h.panel("pads")
	steps := h.panel("steps").(*StepSeq)

	pads.HandlePad(0, 1) // snare
	if slot, _ := h.last(bus.DrumPadSelected); slot != 1 {
		t.Fatalf("DrumPadSelected %v", slot)
	}
	if steps.selected != 1 {
		t.Fatalf("step sequencer track %d, want 1", steps.selected)
	}
	notes := h.sentNotes()
	if len(notes) != 1 || notes[0].key != 38 || notes[0].ch != 9 {
		t.Fatalf("preview %+v", notes)
	}

	pads.HandlePad(kitPadRow, kitPadCol)
	if kit := h.ctx.Manager.Session().Kit; kit != "rd8" {
		t.Fatalf("kit %q", kit)
	}
	pads.HandlePad(0, 1)
	if notes := h.sentNotes(); notes[len(notes)-1].key != 40 {
		t.Fatalf("rd8 snare sent %d", notes[len(notes)-1].key)
	}
}

func TestStepSeqEdits(t *testing.T) {
	h := newHarness(t)
	steps := h.panel("steps")
	pat := func() *model.Pattern { return &h.ctx.Manager.Session().Pattern }

	h.press(steps, " ")
	if !pat().Tracks[0].Steps[0].Active {
		t.Fatalf("space did not toggle step 1")
	}
	if p, _ := h.last(bus.DrumSequenceUpdated); p != pat() {
		t.Fatalf("DrumSequenceUpdated payload %v", p)
	}

	h.press(steps, "]")
	if pat().Tracks[0].Length != 17 {
		t.Fatalf("length %d", pat().Tracks[0].Length)
	}
	h.press(steps, ",")
	if v := pat().Tracks[0].Steps[0].Velocity; v != 90 {
		t.Fatalf("velocity %d", v)
	}

	h.press(steps, "v")
	if d := h.ctx.Manager.Session().Division; d != model.DivSixteenthTriplet {
		t.Fatalf("division %s", d)
	}
	if d, _ := h.last(bus.TimingDivisionChanged); d != model.DivSixteenthTriplet {
		t.Fatalf("TimingDivisionChanged %v", d)
	}

	steps.HandlePad(7, 3) // step 4 of the selected track
	if !pat().Tracks[0].Steps[3].Active {
		t.Fatalf("pad did not toggle step 4")
	}
	steps.HandlePad(0, 4) // clear track
	if pat().TrackHasContent(0) {
		t.Fatalf("clear track pad left steps")
	}

	h.press(steps, "j")
	if slot, _ := h.last(bus.DrumPadSelected); slot != 1 {
		t.Fatalf("track change not announced: %v", slot)
	}
}

func TestPlayhead(t *testing.T) {
	tr := &model.Track{Length: 5}
	tests := []struct {
		step int64
		want int
	}{
		{-1, -1},
		{0, 0},
		{4, 4},
		{5, 0},
		{17, 2},
	}
	for _, tt := range tests {
		if got := playhead(tt.step, tr); got != tt.want {
			t.Errorf("playhead(%d)=%d, want %d", tt.step, got, tt.want)
		}
	}
}

func TestLaunch(t *testing.T) {
	h := newHarness(t)
	launch := h.panel("launch")

	launch.HandlePad(0, 0)
	notes := h.sentNotes()
	if len(notes) != 1 || notes[0].key != launchBase || notes[0].ch != 9 {
		t.Fatalf("drum trigger %+v", notes)
	}

	h.press(h.panel("players"), "a")
	h.ctx.Manager.Update(func(s *model.Session) { s.Players[0].Channel = 3 })
	launch.HandlePad(1, 2)
	notes = h.sentNotes()
	if got := notes[len(notes)-1]; got.key != launchBase+10 || got.ch != 2 {
		t.Fatalf("player trigger %+v", got)
	}

	h.press(launch, ">")
	launch.HandlePad(0, 0)
	notes = h.sentNotes()
	if got := notes[len(notes)-1]; got.key != launchBase+12 {
		t.Fatalf("octave up sent %d", got.key)
	}

	launch.HandlePad(7, 8)
	launch.HandlePad(0, 8)
	if len(h.focused) != 2 || h.focused[0] != "players" || h.focused[1] != "projects" {
		t.Fatalf("scene column focused %v", h.focused)
	}
}

func TestNoteName(t *testing.T) {
	tests := map[uint8]string{0: "C-2", 36: "C1", 60: "C3", 61: "C#3", 127: "G8"}
	for n, want := range tests {
		if got := noteName(n); got != want {
			t.Errorf("noteName(%d)=%q, want %q", n, got, want)
		}
	}
}

func TestProjectsSaveAndLoad(t *testing.T) {
	h := newHarness(t)
	projects := h.panel("projects").(*Projects)
	h.ctx.Project = "demo song"
	h.ctx.Manager.Update(func(s *model.Session) { s.Name = "verse" })

	h.press(projects, "s")
	if h.ctx.Project != "demo-song" {
		t.Fatalf("project %q", h.ctx.Project)
	}
	if msg, _ := h.last(bus.StatusUpdate); !strings.HasPrefix(msg.(string), "saved demo-song/") {
		t.Fatalf("status %v", msg)
	}
	if len(projects.projects) != 1 || len(projects.saves) != 1 {
		t.Fatalf("listing %v %v", projects.projects, projects.saves)
	}

	h.ctx.Manager.Update(func(s *model.Session) { s.Name = "changed" })
	h.press(projects, "l", "enter")
	if name := h.ctx.Manager.Session().Name; name != "verse" {
		t.Fatalf("loaded session %q", name)
	}
	if h.count(bus.SessionChanged) != 1 {
		t.Fatalf("SessionChanged published %d times", h.count(bus.SessionChanged))
	}
}

func TestProjectsCreateRenameDelete(t *testing.T) {
	h := newHarness(t)
	projects := h.panel("projects").(*Projects)

	h.press(projects, "n")
	h.typeInto(projects, "first")
	h.press(projects, "enter")
	if h.ctx.Project != "first" || len(projects.projects) != 1 {
		t.Fatalf("create: project %q list %v", h.ctx.Project, projects.projects)
	}

	h.press(projects, "r")
	h.typeInto(projects, "renamed")
	h.press(projects, "enter")
	if h.ctx.Project != "renamed" || projects.projects[0] != "renamed" {
		t.Fatalf("rename: project %q list %v", h.ctx.Project, projects.projects)
	}

	h.press(projects, "d")
	if !projects.Capturing() || !strings.Contains(projects.View(), "Delete project") {
		t.Fatalf("no confirmation")
	}
	h.press(projects, "n")
	if len(projects.projects) != 1 {
		t.Fatalf("n deleted anyway")
	}
	h.press(projects, "d", "y")
	if len(projects.projects) != 0 || h.ctx.Project != "" {
		t.Fatalf("delete: project %q list %v", h.ctx.Project, projects.projects)
	}
}

func TestProjectsLoadEmpty(t *testing.T) {
	h := newHarness(t)
	projects := h.panel("projects").(*Projects)
	if err := h.ctx.Store.CreateProject("empty"); err != nil {
		t.Fatal(err)
	}
	projects.Refresh()
	h.press(projects, "enter")
	if msg, _ := h.last(bus.StatusUpdate); msg != "project empty has no saves yet" {
		t.Fatalf("status %v", msg)
	}
	if h.count(bus.SessionChanged) != 0 {
		t.Fatalf("session replaced")
	}
}

func TestStatusMessageExpires(t *testing.T) {
	h := newHarness(t)
	st := NewStatus(h.ctx)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	st.now = func() time.Time { return now }

	st.SetMessage("saved")
	if !strings.Contains(st.View(120), "saved") {
		t.Fatalf("message missing: %q", st.View(120))
	}
	now = now.Add(statusTTL + time.Second)
	if st.Message() != "" || strings.Contains(st.View(120), "saved") {
		t.Fatalf("message did not expire")
	}

	st.SetController("Launchpad X")
	if !strings.Contains(st.View(120), "Launchpad X") {
		t.Fatalf("controller missing")
	}
}

func TestStatusShowsThemeChange(t *testing.T) {
	h := newHarness(t)
	st := NewStatus(h.ctx)
	th := h.ctx.Theme.Next()
	h.ctx.Bus.Publish(bus.ThemeChanged, th)
	if got, want := st.Message(), "theme "+th.Name(); got != want {
		t.Fatalf("status %q, want %q", got, want)
	}
}
