package midi

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"go-beats/debug"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

var ledSendCount atomic.Uint64

// Novation SysEx device IDs
const (
	modelLaunchpadX    byte = 0x0C
	modelLaunchpadMini byte = 0x0D
)

// LaunchpadController drives a Launchpad X or Mini MK3 in programmer mode
type LaunchpadController struct {
	id       string
	model    byte
	send     func(msg gomidi.Message) error
	stopFunc func()

	mu       sync.Mutex
	closed   bool
	padChan  chan PadEvent
	noteChan chan NoteEvent
}

// NewLaunchpadController opens both ports and switches the device to
// programmer mode. Either port may be nil.
func NewLaunchpadController(id string, inPort drivers.In, outPort drivers.Out) (*LaunchpadController, error) {
	var send func(gomidi.Message) error
	if outPort != nil {
		s, err := gomidi.SendTo(outPort)
		if err != nil {
			return nil, fmt.Errorf("open output: %w", err)
		}
		send = s
	}

	lp := newLaunchpad(id, send)
	lp.programmerMode()

	if inPort != nil {
		stop, err := gomidi.ListenTo(inPort, func(msg gomidi.Message, timestampms int32) {
			lp.handle(msg)
		})
		if err != nil {
			return nil, fmt.Errorf("open input: %w", err)
		}
		lp.stopFunc = stop
	}

	return lp, nil
}

func newLaunchpad(id string, send func(gomidi.Message) error) *LaunchpadController {
	model := modelLaunchpadX
	if strings.Contains(strings.ToLower(id), "mini") {
		model = modelLaunchpadMini
	}
	return &LaunchpadController{
		id:       id,
		model:    model,
		send:     send,
		padChan:  make(chan PadEvent, 32),
		noteChan: make(chan NoteEvent, 32),
	}
}

func (lp *LaunchpadController) sysex(data ...byte) {
	msg := append([]byte{0x00, 0x20, 0x29, 0x02, lp.model}, data...)
	if err := lp.send(gomidi.SysEx(msg)); err != nil {
		debug.Log("lp", "sysex %x: %v", data, err)
	}
}

// programmerMode selects the programmer layout, full brightness and
// external LED feedback
func (lp *LaunchpadController) programmerMode() {
	if lp.send == nil {
		return
	}
	lp.sysex(0x00, 0x7F)
	lp.sysex(0x08, 0x7F)
	lp.sysex(0x0A, 0x01, 0x01)
}

// handle turns an incoming message into a pad event. Grid and scene pads
// arrive as notes, the top row as CC 91-98.
func (lp *LaunchpadController) handle(msg gomidi.Message) {
	var channel, key, value uint8
	row, col := -1, -1
	switch {
	case msg.GetNoteOn(&channel, &key, &value) && value > 0:
		row, col = noteToRowCol(key)
	case msg.GetControlChange(&channel, &key, &value) && value > 0:
		row, col = ccToRowCol(key)
	}
	if row < 0 {
		return
	}

	lp.mu.Lock()
	defer lp.mu.Unlock()
	if lp.closed {
		return
	}
	select {
	case lp.padChan <- PadEvent{Row: row, Col: col, Velocity: value}:
	default:
		debug.LogEvery(50, "lp", "pad channel full, dropped %d,%d", row, col)
	}
}

func (lp *LaunchpadController) ID() string {
	return lp.id
}

func (lp *LaunchpadController) Type() ControllerType {
	return ControllerLaunchpad
}

func (lp *LaunchpadController) PadEvents() <-chan PadEvent {
	return lp.padChan
}

// NoteEvents never delivers; pads come through PadEvents
func (lp *LaunchpadController) NoteEvents() <-chan NoteEvent {
	return lp.noteChan
}

func (lp *LaunchpadController) SetLEDRGB(row, col int, rgb [3]uint8, channel uint8) error {
	return lp.SetLEDBatch([]LEDUpdate{{Row: row, Col: col, Color: rgb, Channel: channel}})
}

// SetLEDBatch sends one note per pad. The caller diffs frames, so batches
// are small.
func (lp *LaunchpadController) SetLEDBatch(updates []LEDUpdate) error {
	if lp.send == nil || len(updates) == 0 {
		return nil
	}

	var firstErr error
	for _, u := range updates {
		msg := gomidi.NoteOn(u.Channel, rowColToNote(u.Row, u.Col), nearestPaletteColor(u.Color))
		if u.Row == 8 {
			msg = gomidi.ControlChange(u.Channel, rowColToNote(u.Row, u.Col), nearestPaletteColor(u.Color))
		}
		if err := lp.send(msg); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	count := ledSendCount.Add(uint64(len(updates)))
	if count%100 < uint64(len(updates)) {
		debug.Log("lp-send", "batch count=%d (this batch=%d)", count, len(updates))
	}
	return firstErr
}

// Close blanks every LED and stops listening
func (lp *LaunchpadController) Close() error {
	var updates []LEDUpdate
	for row := 0; row < 9; row++ {
		for col := 0; col < 9; col++ {
			if row == 8 && col == 8 {
				continue // logo LED
			}
			updates = append(updates, LEDUpdate{Row: row, Col: col})
		}
	}
	err := lp.SetLEDBatch(updates)

	if lp.stopFunc != nil {
		lp.stopFunc()
	}

	lp.mu.Lock()
	defer lp.mu.Unlock()
	if !lp.closed {
		lp.closed = true
		close(lp.padChan)
		close(lp.noteChan)
	}
	return err
}

// Programmer layout:
//   grid     row 0 (bottom) = notes 11-18 ... row 7 = notes 81-88
//   scene    col 8 = notes 19, 29 ... 89
//   top row  row 8 = CC 91-98

func rowColToNote(row, col int) uint8 {
	if row == 8 {
		return uint8(91 + col)
	}
	return uint8((row+1)*10 + col + 1)
}

func noteToRowCol(note uint8) (row, col int) {
	if note >= 91 && note <= 98 {
		return 8, int(note - 91)
	}
	row = int(note/10) - 1
	col = int(note%10) - 1
	if row < 0 || row > 7 || col < 0 || col > 8 {
		return -1, -1
	}
	return row, col
}

func ccToRowCol(cc uint8) (row, col int) {
	if cc >= 91 && cc <= 98 {
		return 8, int(cc - 91)
	}
	return -1, -1
}

// approximate RGB of Launchpad palette entries: {velocity, r, g, b}
var launchpadPalette = [][4]uint8{
	{0, 0, 0, 0},
	{3, 255, 255, 255},
	{5, 255, 0, 0},
	{6, 255, 80, 80},
	{7, 180, 60, 60},
	{9, 255, 100, 0},
	{11, 180, 80, 40},
	{13, 255, 200, 0},
	{17, 0, 180, 0},
	{19, 0, 100, 0},
	{21, 0, 255, 0},
	{37, 0, 200, 200},
	{43, 40, 60, 120},
	{45, 0, 100, 255},
	{47, 80, 150, 255},
	{49, 150, 0, 200},
	{53, 255, 80, 180},
	{78, 100, 100, 255},
	{84, 255, 150, 50},
	{87, 150, 255, 100},
	{97, 180, 180, 60},
	{119, 255, 255, 255},
}

// nearestPaletteColor maps an RGB color to the closest palette velocity
func nearestPaletteColor(rgb [3]uint8) uint8 {
	best := uint8(0)
	bestDist := 1 << 30
	r, g, b := int(rgb[0]), int(rgb[1]), int(rgb[2])
	for _, p := range launchpadPalette {
		dr, dg, db := r-int(p[1]), g-int(p[2]), b-int(p[3])
		if d := dr*dr + dg*dg + db*db; d < bestDist {
			bestDist = d
			best = p[0]
		}
	}
	return best
}
