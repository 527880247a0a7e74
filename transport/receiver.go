package transport

import (
	"fmt"

	gomidi "gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver
)

// Receiver is a destination for MIDI messages: a synth port, the clock out
// port, or the internal click.
type Receiver interface {
	Send(msg gomidi.Message) error
}

// SenderFunc adapts gomidi.SendTo's func to a Receiver
type SenderFunc func(msg gomidi.Message) error

func (f SenderFunc) Send(msg gomidi.Message) error {
	return f(msg)
}

// Opener resolves an output by display name and returns the receiver plus a
// function releasing the device.
type Opener func(name string) (Receiver, func() error, error)

// OpenPort opens a MIDI output port by its display name
func OpenPort(name string) (Receiver, func() error, error) {
	out, err := gomidi.FindOutPort(name)
	if err != nil {
		return nil, nil, fmt.Errorf("find output %q: %w", name, err)
	}
	send, err := gomidi.SendTo(out)
	if err != nil {
		return nil, nil, fmt.Errorf("open output %q: %w", name, err)
	}
	return SenderFunc(send), out.Close, nil
}
