// Package transport drives playback timing. It builds a one-bar reference
// track (clock pulses plus a metronome click), loops it at the configured
// tempo, forwards every clock pulse to a single registered sink and routes
// the metronome notes to an audio destination.
package transport

import (
	"fmt"
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// Options configures Setup
type Options struct {
	PPQ       int
	Tempo     float64
	Loop      bool
	Metronome Metronome

	// Notes receives metronome note-on/off. When nil and Output is set,
	// Output is opened by display name. When both are empty the click is
	// silent.
	Notes  Receiver
	Output string

	// ClockOut mirrors clock pulses and start/stop to another port
	ClockOut string

	// Open resolves port names; defaults to OpenPort
	Open Opener

	Logger *log.Logger
}

// DefaultOptions is 24 PPQ, 120 BPM, looping
func DefaultOptions() Options {
	return Options{
		PPQ:       DefaultPPQ,
		Tempo:     DefaultTempo,
		Loop:      true,
		Metronome: DefaultMetronome,
	}
}

// Pulse is passed to the clock sink once per clock tick
type Pulse struct {
	Index int       // pulse within the bar, 0..PPQ*4-1
	Count int64     // pulses since Start
	PPQ   int       // resolution
	Time  time.Time // scheduled time of the pulse

	// Last is set on the final pulse of a run that does not loop; playback
	// stops by itself after it
	Last bool
}

// ClockFunc receives clock pulses. It runs on the transport's goroutine, never
// concurrently with itself; UI work must be redispatched by the caller.
type ClockFunc func(Pulse)

// Transport is a looping MIDI timing source
type Transport struct {
	opts   Options
	logger *log.Logger

	seq      Sequence
	notes    Receiver
	clockOut Receiver
	closers  []func() error
	ready    bool
	err      error

	mu      sync.Mutex
	running bool
	gen     uint64
	stop    chan struct{}
	done    chan struct{}
	tempo   float64
	sink    ClockFunc
	pos     int
	count   int64

	// serialises sink calls across an old and a new playback goroutine
	dispatchMu sync.Mutex

	cleanupOnce sync.Once
}

// Setup builds the reference bar and opens the destinations. Failures are
// logged and absorbed: the returned transport is then inert, and Err reports
// why.
func Setup(opts Options) *Transport {
	t := &Transport{
		opts:   opts,
		logger: opts.Logger,
		tempo:  ClampTempo(opts.Tempo),
	}
	if t.logger == nil {
		t.logger = log.New(io.Discard)
	}
	if t.opts.Open == nil {
		t.opts.Open = OpenPort
	}

	seq, err := BuildReferenceBar(opts.PPQ, opts.Metronome)
	if err != nil {
		t.fail(fmt.Errorf("build reference bar: %w", err))
		return t
	}

	notes := opts.Notes
	if notes == nil && opts.Output != "" {
		r, closeFn, err := t.opts.Open(opts.Output)
		if err != nil {
			t.fail(fmt.Errorf("metronome output: %w", err))
			return t
		}
		notes = r
		t.closers = append(t.closers, closeFn)
	}

	var clockOut Receiver
	if opts.ClockOut != "" {
		r, closeFn, err := t.opts.Open(opts.ClockOut)
		if err != nil {
			t.fail(fmt.Errorf("clock output: %w", err))
			return t
		}
		clockOut = r
		t.closers = append(t.closers, closeFn)
	}

	t.seq = seq
	t.notes = notes
	t.clockOut = clockOut
	t.ready = true
	t.logger.Debug("transport ready", "ppq", seq.PPQ, "tempo", t.tempo, "events", len(seq.Events))
	return t
}

func (t *Transport) fail(err error) {
	t.err = err
	t.logger.Error("transport setup failed", "err", err)
}

// Err is the setup error, if any
func (t *Transport) Err() error {
	if t == nil {
		return nil
	}
	return t.err
}

// Sequence returns the reference bar
func (t *Transport) Sequence() Sequence {
	if t == nil {
		return Sequence{}
	}
	return t.seq
}

// PPQ returns the clock resolution, DefaultPPQ when setup failed
func (t *Transport) PPQ() int {
	if t == nil || t.seq.PPQ == 0 {
		return DefaultPPQ
	}
	return t.seq.PPQ
}

// OnClock registers the clock sink, replacing any previous one
func (t *Transport) OnClock(fn ClockFunc) {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.sink = fn
	t.mu.Unlock()
}

// Running reports whether playback is active
func (t *Transport) Running() bool {
	if t == nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Position is the index of the next pulse within the bar
func (t *Transport) Position() int {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pos
}

// Tempo returns the BPM
func (t *Transport) Tempo() float64 {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tempo
}

// SetTempo sets the BPM (clamped); a running transport picks it up at the
// next pulse.
func (t *Transport) SetTempo(bpm float64) {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.tempo = ClampTempo(bpm)
	t.mu.Unlock()
}

// Start begins playback from the top of the bar. No effect if running.
func (t *Transport) Start() {
	if t == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.ready || t.running {
		return
	}

	t.running = true
	t.gen++
	t.stop = make(chan struct{})
	t.done = make(chan struct{})
	t.pos = 0
	t.count = 0

	if t.clockOut != nil {
		t.send(t.clockOut, gomidi.Start())
	}

	go t.run(t.gen, t.stop, t.done)
	t.logger.Debug("transport started", "tempo", t.tempo)
}

// Stop halts playback and rewinds to the top of the bar. No effect if not
// running. Safe to call from the clock sink.
func (t *Transport) Stop() {
	if t == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.ready || !t.running {
		return
	}

	t.running = false
	close(t.stop)
	t.pos = 0
	t.logger.Debug("transport stopped")
}

// Cleanup stops playback and releases the opened devices. Safe after a failed
// setup and safe to call more than once.
func (t *Transport) Cleanup() {
	if t == nil {
		return
	}

	t.Stop()

	// no playback after teardown; the ports below are about to close
	t.mu.Lock()
	t.ready = false
	done := t.done
	t.mu.Unlock()
	if done != nil {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.logger.Warn("transport goroutine did not finish")
		}
	}

	t.cleanupOnce.Do(func() {
		for _, closeFn := range t.closers {
			if closeFn == nil {
				continue
			}
			if err := closeFn(); err != nil {
				t.logger.Warn("close output", "err", err)
			}
		}
		t.closers = nil
	})
}

// run plays the bar until stopped. Each event time is derived from the
// previous scheduled time, so tempo changes apply from the next event and
// timer lateness does not accumulate.
func (t *Transport) run(gen uint64, stop <-chan struct{}, done chan<- struct{}) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(done)

	ticks := smf.MetricTicks(t.seq.PPQ)
	barTicks := int64(t.seq.Length())

	next := time.Now()
	var lastAbs int64

	for bar := int64(0); ; bar++ {
		for _, ev := range t.seq.Events {
			abs := bar*barTicks + int64(ev.Tick)
			if delta := abs - lastAbs; delta > 0 {
				next = next.Add(ticks.Duration(t.Tempo(), uint32(delta)))
			}
			lastAbs = abs

			if wait := time.Until(next); wait > 0 {
				timer := time.NewTimer(wait)
				select {
				case <-stop:
					timer.Stop()
					t.finish(gen)
					return
				case <-timer.C:
				}
			} else {
				select {
				case <-stop:
					t.finish(gen)
					return
				default:
				}
			}

			if !t.dispatch(gen, ev, next) {
				t.finish(gen)
				return
			}
		}

		if !t.opts.Loop {
			t.mu.Lock()
			if t.gen == gen && t.running {
				t.running = false
				t.pos = 0
			}
			t.mu.Unlock()
			t.finish(gen)
			t.logger.Debug("transport reached end of bar")
			return
		}
	}
}

// dispatch delivers one event if this goroutine's generation is still the
// current one.
func (t *Transport) dispatch(gen uint64, ev Event, at time.Time) bool {
	t.dispatchMu.Lock()
	defer t.dispatchMu.Unlock()

	t.mu.Lock()
	if t.gen != gen || !t.running {
		t.mu.Unlock()
		return false
	}
	sink := t.sink
	var pulse Pulse
	if ev.Kind == Clock {
		pulse = Pulse{Index: int(ev.Tick), Count: t.count, PPQ: t.seq.PPQ, Time: at}
		pulse.Last = !t.opts.Loop && ev.Tick == t.seq.Length()-1
		t.count++
		t.pos = (int(ev.Tick) + 1) % int(t.seq.Length())
	}
	t.mu.Unlock()

	switch ev.Kind {
	case Clock:
		if t.clockOut != nil {
			t.send(t.clockOut, ev.Msg)
		}
		if sink != nil {
			sink(pulse)
		}
	default:
		if t.notes != nil {
			t.send(t.notes, ev.Msg)
		}
	}
	return true
}

// finish silences the click and tells clock out we stopped, unless a newer
// Start has already taken over.
func (t *Transport) finish(gen uint64) {
	t.dispatchMu.Lock()
	defer t.dispatchMu.Unlock()

	t.mu.Lock()
	stale := t.gen != gen
	t.mu.Unlock()
	if stale {
		return
	}

	m := t.opts.Metronome
	if t.notes != nil {
		t.send(t.notes, gomidi.NoteOff(m.Channel, m.Note))
	}
	if t.clockOut != nil {
		t.send(t.clockOut, gomidi.Stop())
	}
}

func (t *Transport) send(r Receiver, msg gomidi.Message) {
	if err := r.Send(msg); err != nil {
		t.logger.Warn("send failed", "msg", msg.String(), "err", err)
	}
}

// ClampTempo limits bpm to MinTempo..MaxTempo. A non-positive tempo means
// unset and becomes DefaultTempo.
func ClampTempo(bpm float64) float64 {
	if bpm <= 0 {
		return DefaultTempo
	}
	if bpm < MinTempo {
		return MinTempo
	}
	if bpm > MaxTempo {
		return MaxTempo
	}
	return bpm
}
