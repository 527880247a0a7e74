package model

import (
	"fmt"

	"github.com/google/uuid"
)

// Player fires one note when all of its rules match
type Player struct {
	ID           string  `yaml:"id"`
	Name         string  `yaml:"name"`
	InstrumentID string  `yaml:"instrument,omitempty"`
	Channel      uint8   `yaml:"channel"`     // 1-16
	Note         uint8   `yaml:"note"`        // 0-127
	Level        uint8   `yaml:"level"`       // velocity 1-127
	Probability  int     `yaml:"probability"` // 0-100
	Muted        bool    `yaml:"muted,omitempty"`
	Gate         int     `yaml:"gate"` // pulses until note-off
	Rules        []*Rule `yaml:"rules"`
}

// NewPlayer returns a player on the drum channel with no rules
func NewPlayer(name string) *Player {
	return &Player{
		ID:          uuid.NewString(),
		Name:        name,
		Channel:     10,
		Note:        36,
		Level:       100,
		Probability: 100,
		Gate:        6,
	}
}

// Plays decides whether the player fires at p. roll is a random number in
// 0..99; the player fires when roll is below its probability. The pulse must
// start a unit of the finest operator among the rules, so "beat == 2" fires
// once per bar rather than on every pulse of beat two. A player with no
// rules never plays.
func (pl *Player) Plays(p Position, roll int) bool {
	if pl.Muted || len(pl.Rules) == 0 {
		return false
	}
	if !p.OnBoundary(pl.finestOperator()) {
		return false
	}
	for _, r := range pl.Rules {
		if !r.Matches(p) {
			return false
		}
	}
	return roll < pl.Probability
}

func (pl *Player) finestOperator() Operator {
	op := pl.Rules[0].Operator
	for _, r := range pl.Rules[1:] {
		if r.Operator.finer(op) {
			op = r.Operator
		}
	}
	return op
}

// Rule returns the rule with the given ID
func (pl *Player) Rule(id string) *Rule {
	for _, r := range pl.Rules {
		if r.ID == id {
			return r
		}
	}
	return nil
}

// AddRule appends a default rule and returns it
func (pl *Player) AddRule() *Rule {
	r := NewRule()
	pl.Rules = append(pl.Rules, r)
	return r
}

// RemoveRule deletes the rule at index i
func (pl *Player) RemoveRule(i int) bool {
	if i < 0 || i >= len(pl.Rules) {
		return false
	}
	pl.Rules = append(pl.Rules[:i], pl.Rules[i+1:]...)
	return true
}

// Normalize clamps every field into its MIDI range and fills missing IDs
func (pl *Player) Normalize() {
	if _, err := uuid.Parse(pl.ID); err != nil {
		pl.ID = uuid.NewString()
	}
	pl.Channel = clampChannel(pl.Channel)
	pl.Note = min(pl.Note, 127)
	pl.Level = max(1, min(pl.Level, 127))
	pl.Probability = max(0, min(pl.Probability, 100))
	pl.Gate = max(1, pl.Gate)
	for _, r := range pl.Rules {
		if _, err := uuid.Parse(r.ID); err != nil {
			r.ID = uuid.NewString()
		}
	}
}

func (pl *Player) String() string {
	return fmt.Sprintf("%s ch%d n%d", pl.Name, pl.Channel, pl.Note)
}

func clampChannel(ch uint8) uint8 {
	return max(1, min(ch, 16))
}
