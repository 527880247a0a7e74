// Package tui is the bubbletea front end: it routes keys, controller pads
// and bus traffic to the focused panel and draws the screen.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"go-beats/bus"
	"go-beats/debug"
	"go-beats/midi"
	"go-beats/panel"
	"go-beats/render"
	"go-beats/sequencer"
	"go-beats/theme"
	"go-beats/widgets"
)

const tempoStep = 5

// Options configures NewModel
type Options struct {
	Context *panel.Context

	// Devices may be nil when MIDI is unavailable
	Devices *midi.DeviceManager

	Background   string // image path, empty for none
	Panel        string // panel focused at start
	SnapshotPath string // where P writes the pad snapshot
}

// uiState is shared by every copy of the Model
type uiState struct {
	focus    int
	width    int
	height   int
	tooltip  string
	quitting bool

	lpHelpTop    int
	lpHelpHeight int

	launchpad midi.Controller // current LED target (may be nil)

	bgKey string
	bg    string
}

type Model struct {
	ctx     *panel.Context
	devices *midi.DeviceManager
	panels  []panel.Panel
	status  *panel.Status
	lpHelp  *widgets.LaunchpadHelp
	busCh   <-chan bus.Message
	unsub   func()

	background   string
	snapshotPath string
	ui           *uiState
}

type UpdateMsg struct{}

type DeviceEventMsg midi.DeviceEvent

// BusMsg is a bus event forwarded onto the UI goroutine
type BusMsg bus.Message

// PadMsg is a pad press from controller ID
type PadMsg struct {
	ID  string
	Pad midi.PadEvent
}

// NoteMsg is a key from keyboard controller ID
type NoteMsg struct {
	ID   string
	Note midi.NoteEvent
}

func NewModel(opts Options) Model {
	ctx := opts.Context
	m := Model{
		ctx:          ctx,
		devices:      opts.Devices,
		status:       panel.NewStatus(ctx),
		lpHelp:       widgets.NewLaunchpadHelp(),
		background:   opts.Background,
		snapshotPath: opts.SnapshotPath,
		ui:           &uiState{},
	}
	ctx.Focus = func(name string) { m.focusPanel(panel.Index(name)) }
	if opts.Devices != nil && ctx.Devices == nil {
		ctx.Devices = opts.Devices
	}
	m.panels = panel.Build(ctx)

	// these can come from the clock goroutine (output failures, the end of
	// a bar that does not loop)
	m.busCh, m.unsub = ctx.Bus.Channel(32,
		bus.StatusUpdate, bus.TransportStarted, bus.TransportStopped, bus.TempoChanged)

	if i := panel.Index(opts.Panel); i >= 0 {
		m.ui.focus = i
	}
	m.refreshLEDs()
	return m
}

func ListenForUpdates(manager *sequencer.Manager) tea.Cmd {
	return func() tea.Msg {
		<-manager.UpdateChan
		return UpdateMsg{}
	}
}

func ListenForDevices(deviceMgr *midi.DeviceManager) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-deviceMgr.Events()
		if !ok {
			return nil
		}
		return DeviceEventMsg(event)
	}
}

func ListenForBus(ch <-chan bus.Message) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return BusMsg(msg)
	}
}

func ListenForPads(c midi.Controller) tea.Cmd {
	return func() tea.Msg {
		pad, ok := <-c.PadEvents()
		if !ok {
			return nil
		}
		return PadMsg{ID: c.ID(), Pad: pad}
	}
}

func ListenForNotes(c midi.Controller) tea.Cmd {
	return func() tea.Msg {
		n, ok := <-c.NoteEvents()
		if !ok {
			return nil
		}
		return NoteMsg{ID: c.ID(), Note: n}
	}
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		ListenForUpdates(m.ctx.Manager),
		ListenForBus(m.busCh),
	}
	if m.devices != nil {
		cmds = append(cmds, ListenForDevices(m.devices))
	}
	return tea.Batch(cmds...)
}

// Close detaches the model from the bus
func (m Model) Close() {
	if m.unsub != nil {
		m.unsub()
	}
}

func (m Model) focused() panel.Panel {
	return m.panels[m.ui.focus]
}

func (m Model) focusPanel(i int) {
	if i < 0 || i >= len(m.panels) || i == m.ui.focus {
		return
	}
	debug.Log("ui", "focus %s", m.panels[i].Name())
	m.ui.focus = i
	m.ctx.Manager.ResetLEDs()
	m.refreshLEDs()
}

// layout is the focused panel's pad layout plus the panel-select top row
func (m Model) layout() widgets.LaunchpadLayout {
	layout := m.focused().HelpLayout()
	c := m.topRowColors()
	for i, e := range panel.Registry() {
		if i >= len(layout.TopRow) {
			break
		}
		color := c[0]
		if i == m.ui.focus {
			color = c[1]
		}
		layout.TopRow[i] = widgets.PadConfig{Color: color, Tooltip: "Show " + e.Name}
	}
	return layout
}

func (m Model) topRowColors() [2][3]uint8 {
	th := m.ctx.Theme
	return [2][3]uint8{th.DimLED(theme.RoleActive, 0.4), th.LED(theme.RoleActive)}
}

// refreshLEDs renders the focused panel's frame for the LED loop and the
// on-screen pad help
func (m Model) refreshLEDs() {
	layout := m.layout()
	m.lpHelp.SetLayout(layout)

	leds := m.focused().RenderLEDs()
	for col, pad := range layout.TopRow {
		leds = append(leds, sequencer.LEDState{Row: 8, Col: col, Color: pad.Color})
	}
	m.ctx.Manager.SetLEDs(leds)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ui.width, m.ui.height = msg.Width, msg.Height

	case tea.KeyMsg:
		cmd, quit := m.handleKey(msg)
		if quit {
			m.ui.quitting = true
			m.ctx.Manager.Stop()
			return m, tea.Quit
		}
		m.refreshLEDs()
		return m, cmd

	case tea.MouseMsg:
		m.ui.tooltip = m.hitTest(msg.X, msg.Y)

	case UpdateMsg:
		m.refreshLEDs()
		return m, ListenForUpdates(m.ctx.Manager)

	case BusMsg:
		m.handleBus(bus.Message(msg))
		return m, ListenForBus(m.busCh)

	case PadMsg:
		var cmd tea.Cmd
		if c := m.ui.launchpad; c != nil && c.ID() == msg.ID {
			m.handlePad(msg.Pad)
			cmd = ListenForPads(c)
		}
		return m, cmd

	case NoteMsg:
		m.ctx.Manager.HandleNote(msg.Note)
		if c := m.controller(msg.ID); c != nil {
			return m, ListenForNotes(c)
		}

	case DeviceEventMsg:
		cmd := m.handleDevice(midi.DeviceEvent(msg))
		if m.devices != nil {
			cmd = tea.Batch(cmd, ListenForDevices(m.devices))
		}
		return m, cmd
	}

	return m, nil
}

// handleKey routes a key; quit is true when the app should exit
func (m Model) handleKey(msg tea.KeyMsg) (cmd tea.Cmd, quit bool) {
	if key.Matches(msg, keys.ForceQuit) {
		return nil, true
	}
	p := m.focused()
	if p.Capturing() {
		return p.HandleKey(msg), false
	}

	switch {
	case key.Matches(msg, keys.Quit):
		return nil, true
	case key.Matches(msg, keys.Play):
		if m.ctx.Manager.Playing() {
			m.ctx.Manager.Stop()
		} else {
			m.ctx.Manager.Play()
		}
	case key.Matches(msg, keys.TempoUp):
		_, _, tempo := m.ctx.Manager.GetState()
		m.ctx.Manager.SetTempo(tempo + tempoStep)
	case key.Matches(msg, keys.TempoDown):
		_, _, tempo := m.ctx.Manager.GetState()
		m.ctx.Manager.SetTempo(tempo - tempoStep)
	case key.Matches(msg, keys.Theme):
		th := m.ctx.Theme.Next()
		m.ctx.Theme = th
		m.ctx.Bus.Publish(bus.ThemeChanged, th)
	case key.Matches(msg, keys.Snapshot):
		m.snapshot()
	default:
		for i, e := range panel.Registry() {
			if msg.String() == e.Key {
				m.focusPanel(i)
				return nil, false
			}
		}
		return p.HandleKey(msg), false
	}
	return nil, false
}

func (m Model) handleBus(msg bus.Message) {
	switch msg.Event {
	case bus.StatusUpdate:
		if text, ok := msg.Payload.(string); ok {
			m.status.SetMessage(text)
		}
	case bus.TransportStarted, bus.TransportStopped:
		m.refreshLEDs()
	case bus.TempoChanged:
		if bpm, ok := msg.Payload.(float64); ok {
			m.status.SetMessage(fmt.Sprintf("tempo %.0f bpm", bpm))
		}
	}
}

func (m Model) handlePad(pad midi.PadEvent) {
	if pad.Velocity == 0 {
		return
	}
	if pad.Row == 8 {
		if pad.Col < len(m.panels) {
			m.focusPanel(pad.Col)
		}
		return
	}
	m.focused().HandlePad(pad.Row, pad.Col)
	m.refreshLEDs()
}

func (m Model) handleDevice(ev midi.DeviceEvent) tea.Cmd {
	switch ev.Type {
	case midi.DeviceConnected:
		c := ev.Controller
		if c == nil {
			return nil
		}
		m.ctx.Bus.Status("connected " + c.ID())
		if c.Type() == midi.ControllerLaunchpad {
			m.ui.launchpad = c
			m.status.SetController(c.ID())
			m.ctx.Manager.SetController(c)
			m.refreshLEDs()
			return ListenForPads(c)
		}
		return ListenForNotes(c)

	case midi.DeviceDisconnected:
		m.ctx.Bus.Status("disconnected " + ev.ID)
		if c := m.ui.launchpad; c != nil && c.ID() == ev.ID {
			m.ui.launchpad = nil
			m.status.SetController("")
			m.ctx.Manager.SetController(nil)
		}

	case midi.OutputsChanged:
		m.ctx.Bus.Publish(bus.DevicesChanged, ev.Outputs)
	}
	return nil
}

// controller looks up a connected controller by ID
func (m Model) controller(id string) midi.Controller {
	if m.devices == nil {
		return nil
	}
	return m.devices.Controllers()[id]
}

func (m Model) snapshot() {
	if m.snapshotPath == "" {
		return
	}
	if err := render.SnapshotPNG(m.layout(), m.snapshotPath); err != nil {
		debug.Warn("ui", err, "path", m.snapshotPath)
		m.status.SetMessage("snapshot failed: " + err.Error())
		return
	}
	m.status.SetMessage("snapshot written to " + m.snapshotPath)
}

func (m Model) hitTest(x, y int) string {
	if y >= m.ui.lpHelpTop && y < m.ui.lpHelpTop+m.ui.lpHelpHeight {
		if hit, tooltip := m.lpHelp.HitTest(x, y-m.ui.lpHelpTop); hit {
			return tooltip
		}
	}
	return ""
}

func (m Model) View() string {
	if m.ui.quitting {
		return ""
	}
	th := m.ctx.Theme

	dimStyle := lipgloss.NewStyle().Foreground(th.Muted())
	tooltipStyle := lipgloss.NewStyle().
		Foreground(th.FG()).
		Background(th.Muted()).
		Padding(0, 1)

	header := m.status.View(m.ui.width)
	panelView := m.focused().View()
	lpView := lipgloss.JoinHorizontal(lipgloss.Top,
		m.lpHelp.View(), "   ", widgets.RenderLegend(panel.Legend(th)))
	help := dimStyle.Render(keys.helpLine())

	// Compute layout bounds
	m.ui.lpHelpTop = 1 + lipgloss.Height(header) + 1 + lipgloss.Height(panelView) + 1
	m.ui.lpHelpHeight = lipgloss.Height(lpView)

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(header)
	out.WriteString("\n\n")
	out.WriteString(panelView)
	out.WriteString("\n\n")
	out.WriteString(lpView)
	out.WriteString("\n\n")
	out.WriteString(help)

	if m.ui.tooltip != "" {
		out.WriteString("\n")
		out.WriteString(tooltipStyle.Render(m.ui.tooltip))
	}

	return overlay(out.String(), m.backdrop())
}

// backdrop is the background image sized to the window, cached until the
// size or theme changes
func (m Model) backdrop() string {
	if m.background == "" || m.ui.width <= 0 || m.ui.height <= 0 {
		return ""
	}
	k := fmt.Sprintf("%dx%d/%s", m.ui.width, m.ui.height, m.ctx.Theme.Name())
	if k != m.ui.bgKey {
		m.ui.bg = render.Background(m.background, m.ui.width, m.ui.height, m.ctx.Theme)
		m.ui.bgKey = k
	}
	return m.ui.bg
}

// overlay draws fg over bg line by line; bg shows to the right of each fg
// line and below the last one
func overlay(fg, bg string) string {
	if bg == "" {
		return fg
	}
	fgLines := strings.Split(fg, "\n")
	bgLines := strings.Split(bg, "\n")
	n := max(len(fgLines), len(bgLines))

	out := make([]string, n)
	for i := 0; i < n; i++ {
		var f, b string
		if i < len(fgLines) {
			f = fgLines[i]
		}
		if i < len(bgLines) {
			b = bgLines[i]
		}
		w := ansi.StringWidth(f)
		out[i] = f + ansi.TruncateLeft(b, w, "")
	}
	return strings.Join(out, "\n")
}
