package transport

import (
	"fmt"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

const (
	DefaultPPQ   = 24
	DefaultTempo = 120.0
	BeatsPerBar  = 4

	MinTempo = 20.0
	MaxTempo = 300.0
)

// EventKind tells the dispatcher where an event goes
type EventKind int

const (
	Clock   EventKind = iota // to the clock sink (and clock out)
	NoteOn                   // to the note destination
	NoteOff                  // to the note destination
)

func (k EventKind) String() string {
	switch k {
	case Clock:
		return "clock"
	case NoteOn:
		return "note-on"
	case NoteOff:
		return "note-off"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Event is one entry of the reference bar, at an absolute tick
type Event struct {
	Tick uint32
	Kind EventKind
	Msg  gomidi.Message
}

// Metronome describes the click note. Channel is 0-based.
type Metronome struct {
	Channel  uint8
	Note     uint8
	Velocity uint8
}

// DefaultMetronome is a hi wood block on the GM drum channel
var DefaultMetronome = Metronome{Channel: 9, Note: 76, Velocity: 100}

// Sequence is the one-bar reference track
type Sequence struct {
	PPQ    int
	Events []Event
}

// BuildReferenceBar builds one 4/4 bar: PPQ clock pulses per beat, plus a
// metronome note-on on each beat and its note-off half a beat later. Events
// are ordered by tick; at equal ticks the clock pulse comes first.
func BuildReferenceBar(ppq int, m Metronome) (Sequence, error) {
	if ppq < 2 || ppq > 960 {
		return Sequence{}, fmt.Errorf("invalid resolution %d ppq", ppq)
	}
	if m.Channel > 15 || m.Note > 127 || m.Velocity > 127 {
		return Sequence{}, fmt.Errorf("invalid metronome ch=%d note=%d vel=%d", m.Channel, m.Note, m.Velocity)
	}

	events := make([]Event, 0, BeatsPerBar*(ppq+2))
	half := uint32(ppq / 2)

	for beat := 0; beat < BeatsPerBar; beat++ {
		start := uint32(beat * ppq)
		for i := 0; i < ppq; i++ {
			tick := start + uint32(i)
			events = append(events, Event{Tick: tick, Kind: Clock, Msg: gomidi.TimingClock()})

			switch uint32(i) {
			case 0:
				events = append(events, Event{Tick: tick, Kind: NoteOn, Msg: gomidi.NoteOn(m.Channel, m.Note, m.Velocity)})
			case half:
				events = append(events, Event{Tick: tick, Kind: NoteOff, Msg: gomidi.NoteOff(m.Channel, m.Note)})
			}
		}
	}

	return Sequence{PPQ: ppq, Events: events}, nil
}

// Length is the bar length in ticks
func (s Sequence) Length() uint32 {
	return uint32(s.PPQ * BeatsPerBar)
}

// Count returns how many events of a kind the bar holds
func (s Sequence) Count(kind EventKind) int {
	n := 0
	for _, ev := range s.Events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

// Ticks returns the ticks of all events of a kind, in order
func (s Sequence) Ticks(kind EventKind) []uint32 {
	var out []uint32
	for _, ev := range s.Events {
		if ev.Kind == kind {
			out = append(out, ev.Tick)
		}
	}
	return out
}

// SMF exports the metronome part of the bar as a standard MIDI file. Clock
// pulses are realtime messages and have no place in a file, so they are left
// out; the file's resolution carries the PPQ instead.
func (s Sequence) SMF(tempo float64) (*smf.SMF, error) {
	sm := smf.New()
	sm.TimeFormat = smf.MetricTicks(s.PPQ)

	var track smf.Track
	track.Add(0, smf.MetaMeter(4, 4))
	track.Add(0, smf.MetaTempo(tempo))

	var last uint32
	for _, ev := range s.Events {
		if ev.Kind == Clock {
			continue
		}
		track.Add(ev.Tick-last, ev.Msg)
		last = ev.Tick
	}
	track.Close(s.Length() - last)

	if err := sm.Add(track); err != nil {
		return nil, fmt.Errorf("add reference track: %w", err)
	}
	return sm, nil
}
