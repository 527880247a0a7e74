package model

import "testing"

func TestRuleMatches(t *testing.T) {
	at := func(bar, beat, step int) Position {
		return PositionAt(int64(bar*96+beat*24+step*6), 24)
	}

	tests := []struct {
		name string
		rule Rule
		pos  Position
		want bool
	}{
		{"beat == 1 on beat 1", Rule{Operator: OpBeat, Comparison: CmpEqual, Value: 1}, at(0, 0, 0), true},
		{"beat == 1 on beat 2", Rule{Operator: OpBeat, Comparison: CmpEqual, Value: 1}, at(0, 1, 0), false},
		{"beat < 3 on beat 2", Rule{Operator: OpBeat, Comparison: CmpLess, Value: 3}, at(0, 1, 0), true},
		{"beat < 3 on beat 3", Rule{Operator: OpBeat, Comparison: CmpLess, Value: 3}, at(0, 2, 0), false},
		{"beat > 2 on beat 4", Rule{Operator: OpBeat, Comparison: CmpGreater, Value: 2}, at(0, 3, 0), true},
		{"bar every 2 on bar 1", Rule{Operator: OpBar, Comparison: CmpEvery, Value: 2}, at(0, 0, 0), true},
		{"bar every 2 on bar 2", Rule{Operator: OpBar, Comparison: CmpEvery, Value: 2}, at(1, 0, 0), false},
		{"bar every 2 on bar 3", Rule{Operator: OpBar, Comparison: CmpEvery, Value: 2}, at(2, 0, 0), true},
		{"bar == 2 on bar 2", Rule{Operator: OpBar, Comparison: CmpEqual, Value: 2}, at(1, 2, 0), true},
		{"step every 4 on step 5", Rule{Operator: OpStep, Comparison: CmpEvery, Value: 4}, at(0, 1, 0), true},
		{"step every 4 on step 6", Rule{Operator: OpStep, Comparison: CmpEvery, Value: 4}, at(0, 1, 1), false},
		{"step == 16", Rule{Operator: OpStep, Comparison: CmpEqual, Value: 16}, at(0, 3, 3), true},
		{"tick == 0", Rule{Operator: OpTick, Comparison: CmpEqual, Value: 0}, at(0, 2, 0), true},
		{"tick > 12", Rule{Operator: OpTick, Comparison: CmpGreater, Value: 12}, PositionAt(18, 24), true},
		{"tick every 12 on 12", Rule{Operator: OpTick, Comparison: CmpEvery, Value: 12}, PositionAt(12, 24), true},
		{"every 0 never", Rule{Operator: OpBeat, Comparison: CmpEvery, Value: 0}, at(0, 0, 0), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rule.Matches(tt.pos); got != tt.want {
				t.Fatalf("%v at %v: got %v, want %v", &tt.rule, tt.pos, got, tt.want)
			}
		})
	}
}

func TestOperatorAndComparisonCycle(t *testing.T) {
	op := OpTick
	for _, want := range []Operator{OpStep, OpBeat, OpBar, OpTick} {
		op = op.Next()
		if op != want {
			t.Fatalf("Next()=%v, want %v", op, want)
		}
	}
	c := CmpEqual
	for i := 0; i < 4; i++ {
		c = c.Next()
	}
	if c != CmpEqual {
		t.Fatalf("comparison did not cycle back: %v", c)
	}
}

func TestNewRuleFiresEveryBeat(t *testing.T) {
	r := NewRule()
	if r.ID == "" {
		t.Fatal("rule has no ID")
	}
	for beat := 0; beat < 4; beat++ {
		if !r.Matches(PositionAt(int64(beat*24), 24)) {
			t.Fatalf("default rule missed beat %d", beat+1)
		}
	}
}
