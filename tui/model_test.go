package tui

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"go-beats/bus"
	"go-beats/midi"
	"go-beats/panel"
	"go-beats/sequencer"
	"go-beats/store"
	"go-beats/theme"
)

type fakePad struct {
	pads chan midi.PadEvent

	mu      sync.Mutex
	batches int
}

func (c *fakePad) ID() string                                { return "lp" }
func (c *fakePad) Type() midi.ControllerType                 { return midi.ControllerLaunchpad }
func (c *fakePad) PadEvents() <-chan midi.PadEvent           { return c.pads }
func (c *fakePad) NoteEvents() <-chan midi.NoteEvent         { return nil }
func (c *fakePad) SetLEDRGB(int, int, [3]uint8, uint8) error { return nil }
func (c *fakePad) Close() error                              { return nil }
func (c *fakePad) SetLEDBatch([]midi.LEDUpdate) error {
	c.mu.Lock()
	c.batches++
	c.mu.Unlock()
	return nil
}

type recorder struct {
	mu     sync.Mutex
	events []bus.Message
}

func (r *recorder) count(ev bus.Event) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, m := range r.events {
		if m.Event == ev {
			n++
		}
	}
	return n
}

func newTestModel(t *testing.T, opts Options) (Model, *recorder) {
	t.Helper()
	rec := &recorder{}
	b := bus.New()
	b.SubscribeAll(func(msg bus.Message) {
		rec.mu.Lock()
		rec.events = append(rec.events, msg)
		rec.mu.Unlock()
	})
	m := sequencer.NewManager(sequencer.Options{Bus: b})
	t.Cleanup(m.Close)

	opts.Context = &panel.Context{
		Manager: m,
		Bus:     b,
		Theme:   theme.New(nil),
		Store:   store.New(t.TempDir()),
	}
	model := NewModel(opts)
	t.Cleanup(model.Close)
	return model, rec
}

func send(m Model, msg tea.Msg) (Model, tea.Cmd) {
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func isQuit(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

func TestStartPanel(t *testing.T) {
	tests := []struct {
		panel string
		want  string
	}{
		{"", "players"},
		{"steps", "steps"},
		{"nope", "players"},
	}
	for _, tt := range tests {
		m, _ := newTestModel(t, Options{Panel: tt.panel})
		if got := m.focused().Name(); got != tt.want {
			t.Errorf("Panel %q: focused %s, want %s", tt.panel, got, tt.want)
		}
	}
}

func TestPanelKeysFocus(t *testing.T) {
	m, _ := newTestModel(t, Options{})
	for i, e := range panel.Registry() {
		m, _ = send(m, keyMsg(e.Key))
		if m.ui.focus != i {
			t.Errorf("key %s: focus %d, want %d", e.Key, m.ui.focus, i)
		}
	}

	// panels move focus through the context
	m.ctx.Focus("launch")
	if got := m.focused().Name(); got != "launch" {
		t.Errorf("Focus(launch): focused %s", got)
	}
}

func TestTopRowSelectsPanel(t *testing.T) {
	m, _ := newTestModel(t, Options{})
	layout := m.layout()
	for i, e := range panel.Registry() {
		if want := "Show " + e.Name; layout.TopRow[i].Tooltip != want {
			t.Errorf("TopRow[%d] = %q, want %q", i, layout.TopRow[i].Tooltip, want)
		}
	}

	ctrl := &fakePad{pads: make(chan midi.PadEvent)}
	m, cmd := send(m, DeviceEventMsg{Type: midi.DeviceConnected, Controller: ctrl, ID: "lp"})
	if cmd == nil {
		t.Fatal("connecting a launchpad should listen for pads")
	}
	if m.ctx.Manager.Controller() != ctrl {
		t.Error("launchpad not attached to the manager")
	}

	m, _ = send(m, PadMsg{ID: "lp", Pad: midi.PadEvent{Row: 8, Col: 5, Velocity: 127}})
	if got := m.focused().Name(); got != "steps" {
		t.Errorf("top pad 5: focused %s, want steps", got)
	}

	// releases are ignored
	m, _ = send(m, PadMsg{ID: "lp", Pad: midi.PadEvent{Row: 8, Col: 0}})
	if got := m.focused().Name(); got != "steps" {
		t.Errorf("release moved focus to %s", got)
	}

	// pads from a controller that is no longer current are dropped
	m, cmd = send(m, PadMsg{ID: "old", Pad: midi.PadEvent{Row: 8, Col: 0, Velocity: 127}})
	if cmd != nil || m.focused().Name() != "steps" {
		t.Error("stale controller pad was handled")
	}

	m, _ = send(m, DeviceEventMsg{Type: midi.DeviceDisconnected, ID: "lp"})
	if m.ctx.Manager.Controller() != nil {
		t.Error("launchpad still attached after disconnect")
	}
}

func TestGridPadsReachFocusedPanel(t *testing.T) {
	m, rec := newTestModel(t, Options{Panel: "pads"})
	ctrl := &fakePad{pads: make(chan midi.PadEvent)}
	m, _ = send(m, DeviceEventMsg{Type: midi.DeviceConnected, Controller: ctrl, ID: "lp"})

	m, _ = send(m, PadMsg{ID: "lp", Pad: midi.PadEvent{Row: 1, Col: 2, Velocity: 100}})
	if rec.count(bus.DrumPadSelected) != 1 {
		t.Errorf("DrumPadSelected published %d times, want 1", rec.count(bus.DrumPadSelected))
	}
}

func TestGlobalKeys(t *testing.T) {
	m, rec := newTestModel(t, Options{})

	_, _, before := m.ctx.Manager.GetState()
	m, _ = send(m, keyMsg("+"))
	m, _ = send(m, keyMsg("+"))
	m, _ = send(m, keyMsg("-"))
	if _, _, got := m.ctx.Manager.GetState(); got != before+tempoStep {
		t.Errorf("tempo = %.0f, want %.0f", got, before+tempoStep)
	}

	name := m.ctx.Theme.Name()
	m, _ = send(m, keyMsg("t"))
	if m.ctx.Theme.Name() == name {
		t.Error("t did not change the theme")
	}
	if rec.count(bus.ThemeChanged) != 1 {
		t.Error("ThemeChanged not published")
	}

	_, cmd := send(m, keyMsg("q"))
	if !isQuit(cmd) {
		t.Error("q should quit")
	}
}

func TestCapturingPanelOwnsKeys(t *testing.T) {
	m, _ := newTestModel(t, Options{Panel: "players"})
	m, _ = send(m, keyMsg("a"))
	m, _ = send(m, keyMsg("e"))
	if !m.focused().Capturing() {
		t.Fatal("player form should capture the keyboard")
	}

	m, cmd := send(m, keyMsg("q"))
	if isQuit(cmd) {
		t.Error("q quit while a form was open")
	}
	m, _ = send(m, keyMsg("3"))
	if got := m.focused().Name(); got != "players" {
		t.Errorf("panel key moved focus to %s while capturing", got)
	}

	_, cmd = send(m, keyMsg("ctrl+c"))
	if !isQuit(cmd) {
		t.Error("ctrl+c should always quit")
	}
}

func TestStatusFromBus(t *testing.T) {
	m, _ := newTestModel(t, Options{})
	m.ctx.Bus.Status("hello")

	msg := <-m.busCh
	m, cmd := send(m, BusMsg(msg))
	if cmd == nil {
		t.Error("bus listener not renewed")
	}
	if got := m.status.Message(); got != "hello" {
		t.Errorf("status = %q, want hello", got)
	}
}

func TestTransportEventsReachStatus(t *testing.T) {
	m, _ := newTestModel(t, Options{})
	m.ctx.Manager.SetTempo(133)

	msg := <-m.busCh
	if msg.Event != bus.TempoChanged {
		t.Fatalf("got %s, want tempo-changed", msg.Event)
	}
	m, _ = send(m, BusMsg(msg))
	if got := m.status.Message(); got != "tempo 133 bpm" {
		t.Errorf("status = %q", got)
	}
}

func TestOutputsChangedPublishesDevices(t *testing.T) {
	m, rec := newTestModel(t, Options{})
	send(m, DeviceEventMsg{Type: midi.OutputsChanged, Outputs: []string{"Synth"}})
	if rec.count(bus.DevicesChanged) != 1 {
		t.Error("DevicesChanged not published")
	}
}

func TestSnapshotKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pads.png")
	m, _ := newTestModel(t, Options{SnapshotPath: path})
	send(m, keyMsg("P"))
	if _, err := os.Stat(path); err != nil {
		t.Errorf("snapshot not written: %v", err)
	}
}

func TestViewRenders(t *testing.T) {
	m, _ := newTestModel(t, Options{})
	m, _ = send(m, tea.WindowSizeMsg{Width: 120, Height: 40})
	for i := range panel.Registry() {
		m.focusPanel(i)
		if m.View() == "" {
			t.Errorf("%s: empty view", m.focused().Name())
		}
	}
}

func TestOverlay(t *testing.T) {
	tests := []struct {
		fg, bg, want string
	}{
		{"ab", "", "ab"},
		{"ab\nc", "xyz\nuvw\nrst", "abz\ncvw\nrst"},
		{"abcd", "xy", "abcd"},
		{"a\nb\nc", "xy", "ay\nb\nc"},
	}
	for _, tt := range tests {
		if got := overlay(tt.fg, tt.bg); got != tt.want {
			t.Errorf("overlay(%q, %q) = %q, want %q", tt.fg, tt.bg, got, tt.want)
		}
	}
}
