package midi

import (
	"fmt"
	"sync"

	"go-beats/debug"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// KeyboardController is an input-only note source
type KeyboardController struct {
	id       string
	channel  int // 1-16, 0 for omni
	stopFunc func()

	mu       sync.Mutex
	closed   bool
	padChan  chan PadEvent
	noteChan chan NoteEvent
}

// NewKeyboardController listens on inPort. channel filters input to one MIDI
// channel (1-16); 0 accepts all.
func NewKeyboardController(id string, inPort drivers.In, channel int) (*KeyboardController, error) {
	kb := newKeyboard(id, channel)
	if inPort != nil {
		stop, err := gomidi.ListenTo(inPort, func(msg gomidi.Message, timestampms int32) {
			kb.handle(msg)
		})
		if err != nil {
			return nil, fmt.Errorf("open input: %w", err)
		}
		kb.stopFunc = stop
	}
	return kb, nil
}

func newKeyboard(id string, channel int) *KeyboardController {
	if channel < 0 || channel > 16 {
		channel = 0
	}
	return &KeyboardController{
		id:       id,
		channel:  channel,
		padChan:  make(chan PadEvent, 32),
		noteChan: make(chan NoteEvent, 32),
	}
}

// handle forwards note-on and note-off (as velocity 0) on the input channel
func (kb *KeyboardController) handle(msg gomidi.Message) {
	var ch, note, vel uint8
	var ev NoteEvent
	switch {
	case msg.GetNoteOn(&ch, &note, &vel):
		ev = NoteEvent{Note: note, Velocity: vel, Channel: ch + 1}
	case msg.GetNoteOff(&ch, &note, &vel):
		ev = NoteEvent{Note: note, Velocity: 0, Channel: ch + 1}
	default:
		return
	}
	if kb.channel != 0 && int(ev.Channel) != kb.channel {
		return
	}

	kb.mu.Lock()
	defer kb.mu.Unlock()
	if kb.closed {
		return
	}
	select {
	case kb.noteChan <- ev:
	default:
		debug.LogEvery(50, "kbd", "note channel full, dropped %d", ev.Note)
	}
}

func (kb *KeyboardController) ID() string {
	return kb.id
}

func (kb *KeyboardController) Type() ControllerType {
	return ControllerKeyboard
}

// PadEvents never delivers; keyboards have no pads
func (kb *KeyboardController) PadEvents() <-chan PadEvent {
	return kb.padChan
}

func (kb *KeyboardController) NoteEvents() <-chan NoteEvent {
	return kb.noteChan
}

func (kb *KeyboardController) SetLEDRGB(row, col int, rgb [3]uint8, channel uint8) error {
	return nil
}

func (kb *KeyboardController) SetLEDBatch(updates []LEDUpdate) error {
	return nil
}

func (kb *KeyboardController) Close() error {
	if kb.stopFunc != nil {
		kb.stopFunc()
	}
	kb.mu.Lock()
	defer kb.mu.Unlock()
	if !kb.closed {
		kb.closed = true
		close(kb.padChan)
		close(kb.noteChan)
	}
	return nil
}
