// Package model holds the session data edited by the panels and played by
// the sequencer: players and their rules, instruments, the drum pattern.
package model

import "fmt"

const (
	BeatsPerBar  = 4
	StepsPerBeat = 4
	StepsPerBar  = BeatsPerBar * StepsPerBeat
)

// Position locates a clock pulse musically. Indices are 0-based.
type Position struct {
	Count int64 // pulses since start
	PPQ   int

	Pulse int   // pulse within the bar
	Tick  int   // pulse within the beat
	Beat  int   // 0..3
	Bar   int64 // bars since start
	Step  int   // 16th within the bar, 0..15
}

// PositionAt derives a Position from an absolute pulse count
func PositionAt(count int64, ppq int) Position {
	if ppq < 1 {
		ppq = 1
	}
	barPulses := int64(ppq * BeatsPerBar)
	pulse := int(count % barPulses)
	return Position{
		Count: count,
		PPQ:   ppq,
		Pulse: pulse,
		Tick:  pulse % ppq,
		Beat:  pulse / ppq,
		Bar:   count / barPulses,
		Step:  pulse / stepPulses(ppq),
	}
}

func stepPulses(ppq int) int {
	return max(1, ppq/StepsPerBeat)
}

// Index returns the 0-based counter the operator looks at
func (p Position) Index(op Operator) int64 {
	switch op {
	case OpTick:
		return int64(p.Tick)
	case OpBeat:
		return int64(p.Beat)
	case OpBar:
		return p.Bar
	case OpStep:
		return int64(p.Step)
	}
	return 0
}

// OnBoundary reports whether this pulse starts a new unit of op
func (p Position) OnBoundary(op Operator) bool {
	switch op {
	case OpTick:
		return true
	case OpStep:
		return p.Pulse%stepPulses(p.PPQ) == 0
	case OpBeat:
		return p.Tick == 0
	case OpBar:
		return p.Pulse == 0
	}
	return false
}

// String is bar.beat.step, 1-based like a DAW counter
func (p Position) String() string {
	return fmt.Sprintf("%d.%d.%d", p.Bar+1, p.Beat+1, p.Step%StepsPerBeat+1)
}
