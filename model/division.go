package model

import "fmt"

// Division is the step length of the drum sequencer
type Division int

const (
	DivQuarter Division = iota
	DivEighth
	DivEighthTriplet
	DivSixteenth
	DivSixteenthTriplet
	DivThirtySecond
)

// DefaultDivision is one step per 16th
const DefaultDivision = DivSixteenth

var divisionNames = []string{"1/4", "1/8", "1/8T", "1/16", "1/16T", "1/32"}

// steps per quarter note
var divisionSteps = []int{1, 2, 3, 4, 6, 8}

func (d Division) String() string {
	if d < 0 || int(d) >= len(divisionNames) {
		return fmt.Sprintf("div(%d)", int(d))
	}
	return divisionNames[d]
}

// Valid reports whether d is one of the known divisions
func (d Division) Valid() bool {
	return d >= 0 && int(d) < len(divisionNames)
}

// PulsesPerStep is how many clock pulses one step lasts. Never less than 1.
func (d Division) PulsesPerStep(ppq int) int {
	if !d.Valid() {
		d = DefaultDivision
	}
	return max(1, ppq/divisionSteps[d])
}

// Next cycles 1/4 -> 1/8 -> ... -> 1/32 -> 1/4
func (d Division) Next() Division {
	return (d + 1) % Division(len(divisionNames))
}

// Prev cycles the other way
func (d Division) Prev() Division {
	n := Division(len(divisionNames))
	return (d + n - 1) % n
}

// ParseDivision accepts the display names ("1/16", "1/8T", ...)
func ParseDivision(s string) (Division, error) {
	i, ok := lookupName(divisionNames, s)
	if !ok {
		return DefaultDivision, fmt.Errorf("unknown division %q", s)
	}
	return Division(i), nil
}
