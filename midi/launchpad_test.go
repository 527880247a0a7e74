package midi

import (
	"bytes"
	"testing"

	gomidi "gitlab.com/gomidi/midi/v2"
)

type sent struct {
	msgs []gomidi.Message
}

func (s *sent) send(msg gomidi.Message) error {
	s.msgs = append(s.msgs, msg)
	return nil
}

func TestPadNoteMapping(t *testing.T) {
	tests := []struct {
		row, col int
		note     uint8
	}{
		{0, 0, 11},
		{0, 7, 18},
		{7, 0, 81},
		{7, 7, 88},
		{3, 8, 49}, // scene button
		{8, 0, 91}, // top row
		{8, 7, 98},
	}
	for _, tt := range tests {
		if got := rowColToNote(tt.row, tt.col); got != tt.note {
			t.Errorf("rowColToNote(%d,%d)=%d, want %d", tt.row, tt.col, got, tt.note)
		}
		row, col := noteToRowCol(tt.note)
		if row != tt.row || col != tt.col {
			t.Errorf("noteToRowCol(%d)=%d,%d, want %d,%d", tt.note, row, col, tt.row, tt.col)
		}
	}

	for _, note := range []uint8{0, 10, 20, 90, 99, 127} {
		if row, _ := noteToRowCol(note); row != -1 {
			t.Errorf("noteToRowCol(%d) accepted", note)
		}
	}
}

func TestNearestPaletteColor(t *testing.T) {
	tests := []struct {
		rgb  [3]uint8
		want uint8
	}{
		{[3]uint8{0, 0, 0}, 0},
		{[3]uint8{250, 5, 5}, 5},
		{[3]uint8{0, 250, 0}, 21},
		{[3]uint8{10, 90, 250}, 45},
		{[3]uint8{8, 8, 8}, 0},
	}
	for _, tt := range tests {
		if got := nearestPaletteColor(tt.rgb); got != tt.want {
			t.Errorf("nearestPaletteColor(%v)=%d, want %d", tt.rgb, got, tt.want)
		}
	}
}

func TestLaunchpadProgrammerMode(t *testing.T) {
	tests := []struct {
		id    string
		model byte
	}{
		{"Launchpad X LPX MIDI", modelLaunchpadX},
		{"Launchpad Mini MK3 LPMiniMK3 MIDI", modelLaunchpadMini},
	}
	for _, tt := range tests {
		var s sent
		lp := newLaunchpad(tt.id, s.send)
		lp.programmerMode()
		if len(s.msgs) != 3 {
			t.Fatalf("%s: %d sysex messages, want 3", tt.id, len(s.msgs))
		}
		want := gomidi.SysEx([]byte{0x00, 0x20, 0x29, 0x02, tt.model, 0x00, 0x7F})
		if !bytes.Equal(s.msgs[0], want) {
			t.Fatalf("%s: first sysex % X, want % X", tt.id, []byte(s.msgs[0]), []byte(want))
		}
	}
}

func TestLaunchpadPadInput(t *testing.T) {
	lp := newLaunchpad("Launchpad X LPX MIDI", nil)

	lp.handle(gomidi.NoteOn(0, 34, 90))         // row 2 col 3
	lp.handle(gomidi.NoteOn(0, 34, 0))          // release, ignored
	lp.handle(gomidi.ControlChange(0, 93, 127)) // top row col 2
	lp.handle(gomidi.ControlChange(0, 20, 127)) // not a pad
	lp.handle(gomidi.NoteOn(0, 5, 100))         // off the grid

	want := []PadEvent{{Row: 2, Col: 3, Velocity: 90}, {Row: 8, Col: 2, Velocity: 127}}
	for _, w := range want {
		select {
		case got := <-lp.PadEvents():
			if got != w {
				t.Fatalf("pad event %+v, want %+v", got, w)
			}
		default:
			t.Fatalf("missing pad event %+v", w)
		}
	}
	select {
	case ev := <-lp.PadEvents():
		t.Fatalf("unexpected pad event %+v", ev)
	default:
	}

	lp.Close()
	lp.handle(gomidi.NoteOn(0, 11, 100)) // after close: no panic
	lp.Close()
}

func TestLaunchpadLEDBatch(t *testing.T) {
	var s sent
	lp := newLaunchpad("Launchpad X LPX MIDI", s.send)

	err := lp.SetLEDBatch([]LEDUpdate{
		{Row: 0, Col: 0, Color: [3]uint8{255, 0, 0}},
		{Row: 7, Col: 7, Color: [3]uint8{255, 255, 255}, Channel: ChannelPulse},
		{Row: 8, Col: 1, Color: [3]uint8{0, 255, 0}},
	})
	if err != nil {
		t.Fatalf("SetLEDBatch: %v", err)
	}
	want := []gomidi.Message{
		gomidi.NoteOn(0, 11, 5),
		gomidi.NoteOn(2, 88, 3),
		gomidi.ControlChange(0, 92, 21),
	}
	if len(s.msgs) != len(want) {
		t.Fatalf("sent %d messages, want %d", len(s.msgs), len(want))
	}
	for i := range want {
		if !bytes.Equal(s.msgs[i], want[i]) {
			t.Errorf("message %d = %v, want %v", i, s.msgs[i], want[i])
		}
	}
}

func TestLaunchpadCloseBlanksLEDs(t *testing.T) {
	var s sent
	lp := newLaunchpad("Launchpad X LPX MIDI", s.send)
	lp.Close()
	if len(s.msgs) != 80 {
		t.Fatalf("Close sent %d messages, want 80", len(s.msgs))
	}
	if _, ok := <-lp.PadEvents(); ok {
		t.Fatal("pad channel still open")
	}
}
