// Package sequencer is the playback engine. It is the transport's clock
// sink: on every pulse it advances the drum pattern and evaluates the
// players, then sends the resulting notes to the instrument outputs.
package sequencer

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"go-beats/bus"
	"go-beats/debug"
	"go-beats/midi"
	"go-beats/model"
	"go-beats/transport"
)

// Clock is the timing source the manager drives; *transport.Transport
// satisfies it
type Clock interface {
	OnClock(fn transport.ClockFunc)
	Start()
	Stop()
	Running() bool
	SetTempo(bpm float64)
	Tempo() float64
	PPQ() int
}

// Options configures NewManager
type Options struct {
	Bus         *bus.Bus
	Clock       Clock
	DefaultPort string

	// Open resolves output ports; defaults to transport.OpenPort
	Open transport.Opener

	// Roll returns 0..99 for probability checks; defaults to math/rand
	Roll func() int
}

// previewLength is how long a pad preview sounds
const previewLength = 100 * time.Millisecond

// Manager orchestrates playback, outputs and controller LEDs
type Manager struct {
	bus   *bus.Bus
	clock Clock
	roll  func() int

	// session is written only through Update/SetSession on the UI
	// goroutine and read by the clock goroutine under RLock
	mu      sync.RWMutex
	session *model.Session

	// Multi-port MIDI output
	defaultPort string
	open        transport.Opener
	senders     map[string]transport.Receiver
	closers     []func() error
	sendersMu   sync.RWMutex

	// playing gates note output; pending holds note-offs not yet due
	offMu   sync.Mutex
	playing bool
	pending []pendingOff

	step     atomic.Int64 // current drum step, -1 when stopped
	count    atomic.Int64 // last pulse count
	thru     atomic.Value // player ID for live keyboard notes
	lastFire [128]atomic.Int64
	lastUI   time.Time

	// LED rendering at fixed FPS
	ledMu      sync.Mutex
	controller midi.Controller
	frame      []LEDState
	prevLEDs   map[[2]int]LEDState
	ledDirty   bool

	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	unsubs    []func()

	// Notify TUI of updates
	UpdateChan chan struct{}
}

type pendingOff struct {
	at   int64
	port string
	ev   midi.Event
}

// NewManager wires the manager as the clock's sink
func NewManager(opts Options) *Manager {
	m := &Manager{
		bus:         opts.Bus,
		clock:       opts.Clock,
		roll:        opts.Roll,
		session:     model.NewSession(),
		defaultPort: opts.DefaultPort,
		open:        opts.Open,
		senders:     make(map[string]transport.Receiver),
		prevLEDs:    make(map[[2]int]LEDState),
		stopChan:    make(chan struct{}),
		UpdateChan:  make(chan struct{}, 1),
	}
	if m.open == nil {
		m.open = transport.OpenPort
	}
	if m.roll == nil {
		m.roll = func() int { return rand.Intn(100) }
	}
	m.step.Store(-1)
	m.thru.Store("")
	for i := range m.lastFire {
		m.lastFire[i].Store(-1 << 40)
	}

	if m.clock != nil {
		m.clock.OnClock(m.onPulse)
		m.clock.SetTempo(m.session.Tempo)
	}
	if m.bus != nil {
		m.unsubs = append(m.unsubs,
			m.bus.Subscribe(bus.PlayerSelected, func(msg bus.Message) {
				if id, ok := msg.Payload.(string); ok {
					m.thru.Store(id)
				}
			}),
			m.bus.Subscribe(bus.DevicesChanged, func(bus.Message) {
				m.ResetOutputs()
			}),
		)
	}
	return m
}

// StartRuntime starts the LED loop (called once at startup)
func (m *Manager) StartRuntime() {
	m.wg.Add(1)
	go m.ledLoop()
}

// Close stops playback, the LED loop and releases the outputs
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		m.Stop()
		close(m.stopChan)
		m.wg.Wait()
		for _, u := range m.unsubs {
			u()
		}
		m.sendersMu.Lock()
		m.closeOutputsLocked()
		m.sendersMu.Unlock()
	})
}

// Session returns the live session. Only the UI goroutine may read it
// without a lock, and every write must go through Update.
func (m *Manager) Session() *model.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session
}

// Update runs fn with the session write-locked
func (m *Manager) Update(fn func(s *model.Session)) {
	m.mu.Lock()
	fn(m.session)
	m.mu.Unlock()
	m.notifyUpdate()
}

// SetSession replaces the session (after a load) and publishes
// SessionChanged
func (m *Manager) SetSession(s *model.Session) {
	s.Normalize()
	m.mu.Lock()
	m.session = s
	m.mu.Unlock()
	if m.clock != nil {
		m.clock.SetTempo(s.Tempo)
	}
	m.bus.Publish(bus.SessionChanged, s)
	m.notifyUpdate()
}

// Play starts playback from the top
func (m *Manager) Play() {
	if m.clock == nil || m.clock.Running() {
		return
	}
	m.offMu.Lock()
	m.playing = true
	m.offMu.Unlock()
	m.step.Store(-1)

	m.clock.Start()
	if !m.clock.Running() {
		m.offMu.Lock()
		m.playing = false
		m.offMu.Unlock()
		m.bus.Status("transport unavailable")
		return
	}
	debug.Log("seq", "play at %.1f bpm", m.clock.Tempo())
	m.bus.Publish(bus.TransportStarted, nil)
	m.notifyUpdate()
}

// Stop halts playback and releases every sounding note
func (m *Manager) Stop() {
	m.offMu.Lock()
	wasPlaying := m.playing
	m.playing = false
	pending := m.pending
	m.pending = nil
	m.offMu.Unlock()

	if m.clock != nil {
		m.clock.Stop()
	}
	for _, p := range pending {
		m.send(p.port, p.ev.Message())
	}
	m.step.Store(-1)

	if wasPlaying {
		debug.Log("seq", "stop, released %d notes", len(pending))
		m.bus.Publish(bus.TransportStopped, nil)
		m.notifyUpdate()
	}
}

// Playing reports whether playback is on
func (m *Manager) Playing() bool {
	m.offMu.Lock()
	defer m.offMu.Unlock()
	return m.playing
}

// SetTempo sets the BPM (clamped like the transport) and publishes
// TempoChanged
func (m *Manager) SetTempo(bpm float64) {
	bpm = transport.ClampTempo(bpm)
	m.mu.Lock()
	m.session.Tempo = bpm
	m.mu.Unlock()
	if m.clock != nil {
		m.clock.SetTempo(bpm)
	}
	m.bus.Publish(bus.TempoChanged, bpm)
	m.notifyUpdate()
}

// SetDivision changes the drum step length and publishes
// TimingDivisionChanged
func (m *Manager) SetDivision(d model.Division) {
	if !d.Valid() {
		return
	}
	m.mu.Lock()
	m.session.Division = d
	m.mu.Unlock()
	m.bus.Publish(bus.TimingDivisionChanged, d)
	m.notifyUpdate()
}

// GetState returns the current step, play state and tempo
func (m *Manager) GetState() (step int64, playing bool, tempo float64) {
	m.mu.RLock()
	tempo = m.session.Tempo
	m.mu.RUnlock()
	return m.step.Load(), m.Playing(), tempo
}

// Step is the current global drum step, -1 when stopped
func (m *Manager) Step() int64 {
	return m.step.Load()
}

// RecentlyFired reports whether note was sent within the last beat
func (m *Manager) RecentlyFired(note uint8) bool {
	if note > 127 || !m.Playing() {
		return false
	}
	ppq := int64(transport.DefaultPPQ)
	if m.clock != nil {
		ppq = int64(m.clock.PPQ())
	}
	return m.count.Load()-m.lastFire[note].Load() < ppq
}

// onPulse is the clock sink. It runs on the transport goroutine.
func (m *Manager) onPulse(p transport.Pulse) {
	count := p.Count
	m.count.Store(count)

	var fire []pendingOff // note-ons, with port
	var offs []pendingOff

	m.mu.RLock()
	s := m.session

	// Drum pattern: one step per division
	pps := int64(s.Division.PulsesPerStep(p.PPQ))
	if count%pps == 0 {
		step := count / pps
		m.step.Store(step)
		kit := GetKit(s.Kit)
		gate := max(1, pps/2)
		for t := 0; t < model.NumTracks; t++ {
			_, st := s.Pattern.StepAt(t, step)
			if !st.Active {
				continue
			}
			ev := midi.Event{Type: midi.NoteOn, Channel: s.DrumChannel, Note: kit.Notes[t], Velocity: st.Velocity}
			fire = append(fire, pendingOff{port: s.DrumPort, ev: ev})
			offs = append(offs, pendingOff{at: count + gate, port: s.DrumPort, ev: ev.Off()})
		}
	}

	// Players
	pos := model.PositionAt(count, p.PPQ)
	for _, pl := range s.Players {
		if !pl.Plays(pos, m.roll()) {
			continue
		}
		port := ""
		if in := s.Instrument(pl.InstrumentID); in != nil {
			if !in.InRange(pl.Note) {
				continue
			}
			port = in.Device
		}
		ev := midi.Event{Type: midi.NoteOn, Channel: pl.Channel, Note: pl.Note, Velocity: pl.Level}
		fire = append(fire, pendingOff{port: port, ev: ev})
		offs = append(offs, pendingOff{at: count + int64(pl.Gate), port: port, ev: ev.Off()})
	}
	m.mu.RUnlock()

	m.offMu.Lock()
	if !m.playing {
		m.offMu.Unlock()
		return
	}
	// note-offs first so a retrigger on the same pulse is not cut
	keep := m.pending[:0]
	for _, po := range m.pending {
		if po.at <= count {
			m.send(po.port, po.ev.Message())
		} else {
			keep = append(keep, po)
		}
	}
	m.pending = append(keep, offs...)
	for _, f := range fire {
		m.send(f.port, f.ev.Message())
		m.lastFire[f.ev.Note].Store(count)
	}
	m.offMu.Unlock()

	if len(fire) > 0 {
		debug.Log("dispatch", "pulse=%d %s fired=%d", count, pos, len(fire))
	}

	// a bar that does not loop has ended: release what is still held
	if p.Last {
		m.Stop()
		return
	}

	if now := time.Now(); now.Sub(m.lastUI) >= time.Second/ledFPS {
		m.lastUI = now
		m.notifyUpdate()
	}
}

// Preview sounds a drum slot immediately, for pad hits
func (m *Manager) Preview(slot int) {
	if slot < 0 || slot >= model.NumTracks {
		return
	}
	m.mu.RLock()
	s := m.session
	ev := midi.Event{Type: midi.NoteOn, Port: s.DrumPort, Channel: s.DrumChannel, Note: GetKit(s.Kit).Notes[slot], Velocity: 100}
	m.mu.RUnlock()
	m.PlayNote(ev)
}

// PlayNote sends a note-on now and its note-off after the preview length
func (m *Manager) PlayNote(ev midi.Event) {
	ev.Type = midi.NoteOn
	m.send(ev.Port, ev.Message())
	off := ev.Off()
	time.AfterFunc(previewLength, func() {
		m.send(off.Port, off.Message())
	})
}

// HandleNote echoes live keyboard input to the selected player's output.
// Velocity 0 is a release.
func (m *Manager) HandleNote(ev midi.NoteEvent) {
	id, _ := m.thru.Load().(string)

	m.mu.RLock()
	pl := m.session.Player(id)
	if pl == nil {
		m.mu.RUnlock()
		return
	}
	out := midi.Event{Type: midi.NoteOn, Channel: pl.Channel, Note: ev.Note, Velocity: ev.Velocity}
	if in := m.session.Instrument(pl.InstrumentID); in != nil {
		out.Port = in.Device
	}
	m.mu.RUnlock()

	if ev.Velocity == 0 {
		out = out.Off()
	}
	m.send(out.Port, out.Message())
}

// notifyUpdate refreshes LEDs and notifies TUI
func (m *Manager) notifyUpdate() {
	m.ledMu.Lock()
	m.ledDirty = true
	m.ledMu.Unlock()
	select {
	case m.UpdateChan <- struct{}{}:
	default:
	}
}
