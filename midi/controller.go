// Package midi talks to hardware controllers: hot-plug detection, Launchpad
// pad input and LED output, keyboard note input.
package midi

// ControllerType identifies the kind of controller
type ControllerType int

const (
	ControllerUnknown ControllerType = iota
	ControllerLaunchpad
	ControllerKeyboard
)

func (t ControllerType) String() string {
	switch t {
	case ControllerLaunchpad:
		return "launchpad"
	case ControllerKeyboard:
		return "keyboard"
	}
	return "unknown"
}

// PadEvent is a pad press on a grid controller. Row 0 is the bottom row of
// the 8x8 grid, row 8 the top control row; col 8 is the scene column.
type PadEvent struct {
	Row, Col int
	Velocity uint8
}

// NoteEvent is a key on a keyboard. Velocity 0 is a release.
type NoteEvent struct {
	Note     uint8
	Velocity uint8
	Channel  uint8
}

// LEDUpdate is one pad color change
type LEDUpdate struct {
	Row, Col int
	Color    [3]uint8
	Channel  uint8 // ChannelStatic, ChannelFlash or ChannelPulse
}

// Controller is a connected MIDI input device
type Controller interface {
	ID() string
	Type() ControllerType

	PadEvents() <-chan PadEvent
	NoteEvents() <-chan NoteEvent

	SetLEDRGB(row, col int, rgb [3]uint8, channel uint8) error
	SetLEDBatch(updates []LEDUpdate) error

	Close() error
}

// LED channel modes on the Launchpad
const (
	ChannelStatic uint8 = 0
	ChannelFlash  uint8 = 1
	ChannelPulse  uint8 = 2
)
