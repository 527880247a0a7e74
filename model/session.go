package model

import "fmt"

const (
	DefaultKit         = "gm"
	DefaultDrumChannel = 10
	DefaultTempo       = 120.0
)

// Session is everything a project file holds
type Session struct {
	Name        string        `yaml:"name"`
	Tempo       float64       `yaml:"tempo"`
	Division    Division      `yaml:"division"`
	Kit         string        `yaml:"kit"`
	DrumPort    string        `yaml:"drum_port,omitempty"` // empty for the default output
	DrumChannel uint8         `yaml:"drum_channel"`
	Pattern     Pattern       `yaml:"pattern"`
	Players     []*Player     `yaml:"players"`
	Instruments []*Instrument `yaml:"instruments"`
}

// NewSession returns an empty session at 120 BPM, 16ths, GM kit
func NewSession() *Session {
	return &Session{
		Name:        "untitled",
		Tempo:       DefaultTempo,
		Division:    DefaultDivision,
		Kit:         DefaultKit,
		DrumChannel: DefaultDrumChannel,
		Pattern:     NewPattern(),
	}
}

// Player returns the player with the given ID
func (s *Session) Player(id string) *Player {
	for _, p := range s.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// AddPlayer appends a new player named after its position
func (s *Session) AddPlayer() *Player {
	p := NewPlayer(fmt.Sprintf("player %d", len(s.Players)+1))
	s.Players = append(s.Players, p)
	return p
}

// RemovePlayer deletes a player by ID
func (s *Session) RemovePlayer(id string) bool {
	for i, p := range s.Players {
		if p.ID == id {
			s.Players = append(s.Players[:i], s.Players[i+1:]...)
			return true
		}
	}
	return false
}

// Instrument returns the instrument with the given ID
func (s *Session) Instrument(id string) *Instrument {
	if id == "" {
		return nil
	}
	for _, in := range s.Instruments {
		if in.ID == id {
			return in
		}
	}
	return nil
}

// AddInstrument appends a new instrument named after its position
func (s *Session) AddInstrument() *Instrument {
	in := NewInstrument(fmt.Sprintf("instrument %d", len(s.Instruments)+1))
	s.Instruments = append(s.Instruments, in)
	return in
}

// RemoveInstrument deletes an instrument and detaches its players
func (s *Session) RemoveInstrument(id string) bool {
	for i, in := range s.Instruments {
		if in.ID != id {
			continue
		}
		s.Instruments = append(s.Instruments[:i], s.Instruments[i+1:]...)
		for _, p := range s.Players {
			if p.InstrumentID == id {
				p.InstrumentID = ""
			}
		}
		return true
	}
	return false
}

// Normalize repairs a loaded session: clamps ranges, fills IDs and drops
// references to instruments that no longer exist.
func (s *Session) Normalize() {
	if s.Name == "" {
		s.Name = "untitled"
	}
	if s.Tempo < 20 || s.Tempo > 300 {
		s.Tempo = DefaultTempo
	}
	if !s.Division.Valid() {
		s.Division = DefaultDivision
	}
	if s.Kit == "" {
		s.Kit = DefaultKit
	}
	if s.DrumChannel == 0 {
		s.DrumChannel = DefaultDrumChannel
	}
	s.DrumChannel = clampChannel(s.DrumChannel)
	s.Pattern.normalize()

	for _, in := range s.Instruments {
		in.Normalize()
	}
	for _, p := range s.Players {
		p.Normalize()
		if s.Instrument(p.InstrumentID) == nil {
			p.InstrumentID = ""
		}
	}
}
