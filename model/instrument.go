package model

import (
	"sort"

	"github.com/google/uuid"
)

// Caption describes what a control value means on the instrument
type Caption struct {
	Value       uint8  `yaml:"value"`
	Description string `yaml:"description"`
}

// ControlCode is one CC the instrument responds to
type ControlCode struct {
	CC       uint8     `yaml:"cc"`
	Name     string    `yaml:"name"`
	Captions []Caption `yaml:"captions,omitempty"`
}

// CaptionFor returns the description of the highest caption at or below v.
// Captions mark the start of a value range.
func (c *ControlCode) CaptionFor(v uint8) string {
	desc := ""
	for _, cp := range c.Captions {
		if cp.Value <= v {
			desc = cp.Description
		}
	}
	return desc
}

// SetCaption adds or replaces the caption at value, keeping them sorted
func (c *ControlCode) SetCaption(value uint8, desc string) {
	for i := range c.Captions {
		if c.Captions[i].Value == value {
			c.Captions[i].Description = desc
			return
		}
	}
	c.Captions = append(c.Captions, Caption{Value: value, Description: desc})
	sort.Slice(c.Captions, func(i, j int) bool {
		return c.Captions[i].Value < c.Captions[j].Value
	})
}

// RemoveCaption deletes caption i
func (c *ControlCode) RemoveCaption(i int) bool {
	if i < 0 || i >= len(c.Captions) {
		return false
	}
	c.Captions = append(c.Captions[:i], c.Captions[i+1:]...)
	return true
}

// Instrument is a sound source reached through a MIDI output
type Instrument struct {
	ID       string         `yaml:"id"`
	Name     string         `yaml:"name"`
	Device   string         `yaml:"device,omitempty"` // output port display name, empty for default
	Channel  uint8          `yaml:"channel"`
	LowNote  uint8          `yaml:"low_note"`
	HighNote uint8          `yaml:"high_note"`
	Controls []*ControlCode `yaml:"controls,omitempty"`
}

// NewInstrument covers the full note range on channel 1
func NewInstrument(name string) *Instrument {
	return &Instrument{
		ID:       uuid.NewString(),
		Name:     name,
		Channel:  1,
		LowNote:  0,
		HighNote: 127,
	}
}

// InRange reports whether the instrument can play note
func (in *Instrument) InRange(note uint8) bool {
	return note >= in.LowNote && note <= in.HighNote
}

// Control returns the control code with the given CC number
func (in *Instrument) Control(cc uint8) *ControlCode {
	for _, c := range in.Controls {
		if c.CC == cc {
			return c
		}
	}
	return nil
}

// AddControl adds a control code unless the CC is already mapped
func (in *Instrument) AddControl(cc uint8, name string) *ControlCode {
	if c := in.Control(cc); c != nil {
		return c
	}
	c := &ControlCode{CC: min(cc, 127), Name: name}
	in.Controls = append(in.Controls, c)
	sort.Slice(in.Controls, func(i, j int) bool {
		return in.Controls[i].CC < in.Controls[j].CC
	})
	return c
}

// RemoveControl deletes control i
func (in *Instrument) RemoveControl(i int) bool {
	if i < 0 || i >= len(in.Controls) {
		return false
	}
	in.Controls = append(in.Controls[:i], in.Controls[i+1:]...)
	return true
}

// Normalize clamps channel and range and fills a missing ID
func (in *Instrument) Normalize() {
	if _, err := uuid.Parse(in.ID); err != nil {
		in.ID = uuid.NewString()
	}
	in.Channel = clampChannel(in.Channel)
	in.LowNote = min(in.LowNote, 127)
	in.HighNote = min(in.HighNote, 127)
	if in.LowNote > in.HighNote {
		in.LowNote, in.HighNote = in.HighNote, in.LowNote
	}
}
