package transport

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	gomidi "gitlab.com/gomidi/midi/v2"
)

type recorder struct {
	mu   sync.Mutex
	msgs []gomidi.Message
}

func (r *recorder) Send(msg gomidi.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return nil
}

func (r *recorder) count(match func(gomidi.Message) bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, m := range r.msgs {
		if match(m) {
			n++
		}
	}
	return n
}

func isNoteOn(m gomidi.Message) bool {
	var ch, key, vel uint8
	return m.GetNoteOn(&ch, &key, &vel)
}

func fastOptions(notes Receiver) Options {
	opts := DefaultOptions()
	opts.Tempo = MaxTempo
	opts.Notes = notes
	return opts
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestStartDeliversPulsesInOrder(t *testing.T) {
	notes := &recorder{}
	tr := Setup(fastOptions(notes))
	defer tr.Cleanup()
	if err := tr.Err(); err != nil {
		t.Fatalf("Setup: %v", err)
	}

	var mu sync.Mutex
	var pulses []Pulse
	tr.OnClock(func(p Pulse) {
		mu.Lock()
		pulses = append(pulses, p)
		mu.Unlock()
	})

	tr.Start()
	tr.Start() // already running: no second playback
	if !tr.Running() {
		t.Fatalf("Running()=false after Start")
	}

	waitFor(t, "30 pulses", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(pulses) >= 30
	})
	tr.Stop()

	mu.Lock()
	defer mu.Unlock()
	for i, p := range pulses {
		if p.Count != int64(i) {
			t.Fatalf("pulse %d has Count %d", i, p.Count)
		}
		if p.Index != i%96 {
			t.Fatalf("pulse %d has Index %d", i, p.Index)
		}
		if p.PPQ != 24 {
			t.Fatalf("pulse PPQ=%d", p.PPQ)
		}
		if i > 0 && p.Time.Before(pulses[i-1].Time) {
			t.Fatalf("pulse %d scheduled before pulse %d", i, i-1)
		}
	}
	if notes.count(isNoteOn) < 1 {
		t.Fatalf("metronome note-on never reached the note destination")
	}
}

func TestStopIsIdempotentAndRewinds(t *testing.T) {
	tr := Setup(fastOptions(&recorder{}))
	defer tr.Cleanup()

	tr.Stop() // not running: no effect
	if tr.Running() {
		t.Fatalf("Running()=true before Start")
	}

	var n atomic.Int64
	tr.OnClock(func(Pulse) { n.Add(1) })
	tr.Start()
	waitFor(t, "pulses", func() bool { return n.Load() >= 5 })

	tr.Stop()
	tr.Stop()
	if tr.Running() {
		t.Fatalf("Running()=true after Stop")
	}
	if pos := tr.Position(); pos != 0 {
		t.Fatalf("Position()=%d after Stop, want 0", pos)
	}

	stopped := n.Load()
	time.Sleep(60 * time.Millisecond)
	if got := n.Load(); got != stopped {
		t.Fatalf("pulses kept arriving after Stop: %d -> %d", stopped, got)
	}
}

func TestRestartBeginsAtTopOfBar(t *testing.T) {
	tr := Setup(fastOptions(nil))
	defer tr.Cleanup()

	first := make(chan Pulse, 256)
	tr.OnClock(func(p Pulse) {
		select {
		case first <- p:
		default:
		}
	})

	tr.Start()
	waitFor(t, "pulses", func() bool { return len(first) >= 10 })
	tr.Stop()
	for len(first) > 0 {
		<-first
	}

	tr.Start()
	p := <-first
	tr.Stop()
	if p.Index != 0 || p.Count != 0 {
		t.Fatalf("first pulse after restart = %+v, want index 0 count 0", p)
	}
}

func TestSinkNeverRunsConcurrently(t *testing.T) {
	tr := Setup(fastOptions(nil))
	defer tr.Cleanup()

	var inFlight, overlaps, calls atomic.Int64
	tr.OnClock(func(Pulse) {
		if inFlight.Add(1) > 1 {
			overlaps.Add(1)
		}
		time.Sleep(2 * time.Millisecond)
		inFlight.Add(-1)
		calls.Add(1)
	})

	for i := 0; i < 5; i++ {
		tr.Start()
		time.Sleep(15 * time.Millisecond)
		tr.Stop()
	}
	tr.Start()
	waitFor(t, "calls", func() bool { return calls.Load() >= 10 })
	tr.Stop()

	if overlaps.Load() != 0 {
		t.Fatalf("sink overlapped %d times", overlaps.Load())
	}
}

func TestStopFromInsideSink(t *testing.T) {
	tr := Setup(fastOptions(nil))
	defer tr.Cleanup()

	var calls atomic.Int64
	tr.OnClock(func(p Pulse) {
		calls.Add(1)
		if p.Count == 3 {
			tr.Stop()
		}
	})
	tr.Start()
	waitFor(t, "stop from sink", func() bool { return !tr.Running() })

	time.Sleep(40 * time.Millisecond)
	if got := calls.Load(); got != 4 {
		t.Fatalf("sink calls=%d, want 4", got)
	}
}

func TestStopSilencesMetronome(t *testing.T) {
	notes := &recorder{}
	tr := Setup(fastOptions(notes))
	tr.Start()
	waitFor(t, "note-on", func() bool { return notes.count(isNoteOn) >= 1 })
	tr.Cleanup()

	notes.mu.Lock()
	last := notes.msgs[len(notes.msgs)-1]
	notes.mu.Unlock()
	var ch, key, vel uint8
	if !last.GetNoteOff(&ch, &key, &vel) || key != DefaultMetronome.Note {
		t.Fatalf("last message %v, want metronome note-off", last)
	}
}

func TestNoLoopStopsAfterOneBar(t *testing.T) {
	opts := fastOptions(nil)
	opts.Loop = false
	tr := Setup(opts)
	defer tr.Cleanup()

	var n, last atomic.Int64
	last.Store(-1)
	tr.OnClock(func(p Pulse) {
		n.Add(1)
		if p.Last {
			last.Store(int64(p.Index))
		}
	})
	tr.Start()
	waitFor(t, "end of bar", func() bool { return !tr.Running() })

	if got := n.Load(); got != 96 {
		t.Fatalf("pulses=%d, want one bar of 96", got)
	}
	if got := last.Load(); got != 95 {
		t.Fatalf("Last set on pulse %d, want 95", got)
	}
}

func TestLoopingPulsesAreNeverLast(t *testing.T) {
	tr := Setup(fastOptions(nil))
	defer tr.Cleanup()

	var n, last atomic.Int64
	tr.OnClock(func(p Pulse) {
		n.Add(1)
		if p.Last {
			last.Add(1)
		}
	})
	tr.Start()
	waitFor(t, "second bar", func() bool { return n.Load() > 100 })
	tr.Stop()

	if last.Load() != 0 {
		t.Fatalf("looping run marked %d pulses Last", last.Load())
	}
}

func TestStartAfterCleanupIsNoop(t *testing.T) {
	synth := &recorder{}
	opts := fastOptions(nil)
	opts.Output = "Synth"
	opts.Open = func(name string) (Receiver, func() error, error) {
		return synth, func() error { return nil }, nil
	}
	tr := Setup(opts)
	tr.Cleanup()

	var n atomic.Int64
	tr.OnClock(func(Pulse) { n.Add(1) })
	tr.Start()
	if tr.Running() {
		t.Fatalf("transport running after Cleanup")
	}
	time.Sleep(50 * time.Millisecond)
	if n.Load() != 0 {
		t.Fatalf("sink got %d pulses after Cleanup", n.Load())
	}
	if got := synth.count(func(gomidi.Message) bool { return true }); got != 0 {
		t.Fatalf("%d messages sent to a released port", got)
	}
	tr.Stop()
}

func TestClockOutMirrorsTransport(t *testing.T) {
	clock := &recorder{}
	opts := fastOptions(nil)
	opts.ClockOut = "Clock Port"
	opts.Open = func(name string) (Receiver, func() error, error) {
		return clock, func() error { return nil }, nil
	}
	tr := Setup(opts)
	tr.Start()
	waitFor(t, "clock out", func() bool {
		return clock.count(func(m gomidi.Message) bool { return bytes.Equal(m, gomidi.TimingClock()) }) >= 5
	})
	tr.Cleanup()

	isMsg := func(want gomidi.Message) func(gomidi.Message) bool {
		return func(m gomidi.Message) bool { return bytes.Equal(m, want) }
	}
	if clock.count(isMsg(gomidi.Start())) != 1 {
		t.Fatalf("clock out did not get exactly one Start")
	}
	if clock.count(isMsg(gomidi.Stop())) != 1 {
		t.Fatalf("clock out did not get exactly one Stop")
	}
}

func TestFailedSetupIsInert(t *testing.T) {
	var logBuf bytes.Buffer
	opts := DefaultOptions()
	opts.Output = "Missing Synth"
	opts.Open = func(name string) (Receiver, func() error, error) {
		return nil, nil, errors.New("device unavailable")
	}
	opts.Logger = log.New(&logBuf)

	tr := Setup(opts)
	if tr.Err() == nil {
		t.Fatalf("Err()=nil, want setup failure")
	}
	if !strings.Contains(logBuf.String(), "device unavailable") {
		t.Fatalf("failure not logged: %q", logBuf.String())
	}

	tr.OnClock(func(Pulse) { t.Errorf("sink called on failed transport") })
	tr.Start()
	if tr.Running() {
		t.Fatalf("failed transport is running")
	}
	tr.Stop()
	tr.Cleanup()
	tr.Cleanup()
}

func TestCleanupReleasesPartialSetup(t *testing.T) {
	closed := 0
	opts := DefaultOptions()
	opts.Output = "Synth"
	opts.ClockOut = "Broken Clock"
	opts.Open = func(name string) (Receiver, func() error, error) {
		if name == "Broken Clock" {
			return nil, nil, errors.New("busy")
		}
		return &recorder{}, func() error { closed++; return nil }, nil
	}

	tr := Setup(opts)
	if tr.Err() == nil {
		t.Fatalf("Err()=nil, want clock output failure")
	}
	tr.Cleanup()
	tr.Cleanup()
	if closed != 1 {
		t.Fatalf("closed=%d, want the opened synth port released once", closed)
	}
}

func TestInvalidResolutionFailsSetup(t *testing.T) {
	opts := DefaultOptions()
	opts.PPQ = 0
	tr := Setup(opts)
	if tr.Err() == nil {
		t.Fatalf("Err()=nil for ppq 0")
	}
	tr.Start()
	if tr.PPQ() != DefaultPPQ {
		t.Fatalf("PPQ()=%d after failed setup, want %d", tr.PPQ(), DefaultPPQ)
	}
	tr.Cleanup()
}

func TestNilTransportIsSafe(t *testing.T) {
	var tr *Transport
	tr.Start()
	tr.Stop()
	tr.Cleanup()
	tr.OnClock(nil)
	if tr.Running() {
		t.Fatalf("nil transport running")
	}
	if tr.PPQ() != DefaultPPQ || len(tr.Sequence().Events) != 0 {
		t.Fatalf("nil transport PPQ=%d events=%d", tr.PPQ(), len(tr.Sequence().Events))
	}
}

func TestSetTempoClamps(t *testing.T) {
	tr := Setup(DefaultOptions())
	defer tr.Cleanup()

	tests := []struct {
		in, want float64
	}{
		{in: 90, want: 90},
		{in: 5, want: MinTempo},
		{in: 999, want: MaxTempo},
		{in: 0, want: DefaultTempo},
	}
	for _, tt := range tests {
		tr.SetTempo(tt.in)
		if got := tr.Tempo(); got != tt.want {
			t.Fatalf("SetTempo(%v) -> %v, want %v", tt.in, got, tt.want)
		}
	}
}
