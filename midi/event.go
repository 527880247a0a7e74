package midi

import (
	"fmt"

	gomidi "gitlab.com/gomidi/midi/v2"
)

// EventType is the kind of an outgoing Event
type EventType uint8

const (
	NoteOn  EventType = 0x90
	NoteOff EventType = 0x80
	CC      EventType = 0xB0
)

// Event is a note or controller change the sequencer sends to an output.
// Channel is 1-16 as shown to the user.
type Event struct {
	Type     EventType
	Port     string // output display name, empty for the default output
	Channel  uint8
	Note     uint8 // note number, or controller number for CC
	Velocity uint8 // velocity, or value for CC
}

// Message converts the event to wire form
func (e Event) Message() gomidi.Message {
	ch := max(1, min(e.Channel, 16)) - 1
	switch e.Type {
	case NoteOn:
		return gomidi.NoteOn(ch, e.Note, e.Velocity)
	case NoteOff:
		return gomidi.NoteOff(ch, e.Note)
	case CC:
		return gomidi.ControlChange(ch, e.Note, e.Velocity)
	}
	return nil
}

// Off returns the note-off matching a note-on
func (e Event) Off() Event {
	e.Type = NoteOff
	e.Velocity = 0
	return e
}

func (e Event) String() string {
	switch e.Type {
	case NoteOn:
		return fmt.Sprintf("on ch%d n%d v%d", e.Channel, e.Note, e.Velocity)
	case NoteOff:
		return fmt.Sprintf("off ch%d n%d", e.Channel, e.Note)
	case CC:
		return fmt.Sprintf("cc ch%d #%d=%d", e.Channel, e.Note, e.Velocity)
	}
	return fmt.Sprintf("event(%#x)", uint8(e.Type))
}
