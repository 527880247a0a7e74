package model

import (
	"fmt"

	"github.com/google/uuid"
)

// Operator selects which counter of the position a rule looks at
type Operator int

const (
	OpTick Operator = iota
	OpStep
	OpBeat
	OpBar
)

var operatorNames = []string{"tick", "step", "beat", "bar"}

func (o Operator) String() string {
	if o < 0 || int(o) >= len(operatorNames) {
		return fmt.Sprintf("op(%d)", int(o))
	}
	return operatorNames[o]
}

// Next cycles tick -> step -> beat -> bar -> tick
func (o Operator) Next() Operator {
	return (o + 1) % Operator(len(operatorNames))
}

// finer reports whether o has a smaller unit than other
func (o Operator) finer(other Operator) bool {
	return o < other
}

// Comparison is how a rule's value is checked against the counter
type Comparison int

const (
	CmpEqual Comparison = iota
	CmpLess
	CmpGreater
	CmpEvery
)

var comparisonNames = []string{"==", "<", ">", "every"}

func (c Comparison) String() string {
	if c < 0 || int(c) >= len(comparisonNames) {
		return fmt.Sprintf("cmp(%d)", int(c))
	}
	return comparisonNames[c]
}

// Next cycles through the comparisons
func (c Comparison) Next() Comparison {
	return (c + 1) % Comparison(len(comparisonNames))
}

// Rule is one condition of a player. Values for beat, bar and step are
// 1-based as displayed; tick values are 0-based. Every N fires on the first
// unit and each Nth after it.
type Rule struct {
	ID         string     `yaml:"id"`
	Operator   Operator   `yaml:"operator"`
	Comparison Comparison `yaml:"comparison"`
	Value      int        `yaml:"value"`
}

// NewRule returns "beat every 1", which fires on every beat
func NewRule() *Rule {
	return &Rule{
		ID:         uuid.NewString(),
		Operator:   OpBeat,
		Comparison: CmpEvery,
		Value:      1,
	}
}

// Matches compares the rule's value with the position's counter
func (r *Rule) Matches(p Position) bool {
	idx := p.Index(r.Operator)
	if r.Comparison == CmpEvery {
		if r.Value <= 0 {
			return false
		}
		return idx%int64(r.Value) == 0
	}

	v := idx
	if r.Operator != OpTick {
		v++
	}
	switch r.Comparison {
	case CmpEqual:
		return v == int64(r.Value)
	case CmpLess:
		return v < int64(r.Value)
	case CmpGreater:
		return v > int64(r.Value)
	}
	return false
}

func (r *Rule) String() string {
	return fmt.Sprintf("%s %s %d", r.Operator, r.Comparison, r.Value)
}
