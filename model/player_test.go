package model

import "testing"

func TestPlayerWithoutRulesNeverPlays(t *testing.T) {
	p := NewPlayer("kick")
	for count := int64(0); count < 96; count++ {
		if p.Plays(PositionAt(count, 24), 0) {
			t.Fatalf("player with no rules played at %d", count)
		}
	}
}

func TestPlayerFiresOncePerUnit(t *testing.T) {
	p := NewPlayer("snare")
	p.Rules = []*Rule{{Operator: OpBeat, Comparison: CmpEqual, Value: 2}}

	var fired []int64
	for count := int64(0); count < 192; count++ {
		if p.Plays(PositionAt(count, 24), 0) {
			fired = append(fired, count)
		}
	}
	if len(fired) != 2 || fired[0] != 24 || fired[1] != 120 {
		t.Fatalf("fired at %v, want [24 120]", fired)
	}
}

func TestPlayerAllRulesMustMatch(t *testing.T) {
	p := NewPlayer("hat")
	p.Rules = []*Rule{
		{Operator: OpBar, Comparison: CmpEvery, Value: 2},
		{Operator: OpStep, Comparison: CmpEqual, Value: 3},
	}

	var fired []int64
	for count := int64(0); count < 4*96; count++ {
		if p.Plays(PositionAt(count, 24), 0) {
			fired = append(fired, count)
		}
	}
	// step 3 of bars 1 and 3
	if len(fired) != 2 || fired[0] != 12 || fired[1] != 2*96+12 {
		t.Fatalf("fired at %v", fired)
	}
}

func TestPlayerMuteAndProbability(t *testing.T) {
	pos := PositionAt(0, 24)

	tests := []struct {
		name  string
		muted bool
		prob  int
		roll  int
		want  bool
	}{
		{"full probability", false, 100, 99, true},
		{"zero probability", false, 0, 0, false},
		{"roll under", false, 50, 49, true},
		{"roll at", false, 50, 50, false},
		{"muted", true, 100, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPlayer("x")
			p.AddRule()
			p.Muted = tt.muted
			p.Probability = tt.prob
			if got := p.Plays(pos, tt.roll); got != tt.want {
				t.Fatalf("Plays=%v, want %v", got, tt.want)
			}
		})
	}
}

func TestPlayerRuleEditing(t *testing.T) {
	p := NewPlayer("x")
	a := p.AddRule()
	b := p.AddRule()
	if p.Rule(b.ID) != b {
		t.Fatal("Rule lookup failed")
	}
	if !p.RemoveRule(0) || len(p.Rules) != 1 || p.Rules[0] != b {
		t.Fatalf("RemoveRule(0) left %v", p.Rules)
	}
	if p.Rule(a.ID) != nil {
		t.Fatal("removed rule still found")
	}
	if p.RemoveRule(5) {
		t.Fatal("RemoveRule out of range succeeded")
	}
}

func TestPlayerNormalize(t *testing.T) {
	p := &Player{ID: "not-a-uuid", Channel: 0, Note: 200, Level: 0, Probability: 150, Gate: 0,
		Rules: []*Rule{{ID: ""}}}
	p.Normalize()
	if p.ID == "not-a-uuid" || p.Rules[0].ID == "" {
		t.Fatalf("IDs not regenerated: %q %q", p.ID, p.Rules[0].ID)
	}
	if p.Channel != 1 || p.Note != 127 || p.Level != 1 || p.Probability != 100 || p.Gate != 1 {
		t.Fatalf("not clamped: %+v", p)
	}
}
