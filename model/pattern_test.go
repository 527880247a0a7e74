package model

import "testing"

func TestNewPatternIsEmpty(t *testing.T) {
	p := NewPattern()
	if p.HasContent() {
		t.Fatal("new pattern has content")
	}
	if p.MasterLength() != 16 {
		t.Fatalf("MasterLength()=%d", p.MasterLength())
	}
	if p.Tracks[3].Steps[7].Velocity != 100 {
		t.Fatalf("default velocity %d", p.Tracks[3].Steps[7].Velocity)
	}
}

func TestPatternToggle(t *testing.T) {
	p := NewPattern()
	if !p.Toggle(0, 4) {
		t.Fatal("Toggle did not activate")
	}
	if !p.HasContent() || !p.TrackHasContent(0) || p.TrackHasContent(1) {
		t.Fatal("content flags wrong after toggle")
	}
	if p.Toggle(0, 4) {
		t.Fatal("second Toggle did not deactivate")
	}
	if p.Toggle(0, 20) {
		t.Fatal("Toggle beyond track length activated")
	}
	if p.Tracks[0].Steps[20].Active {
		t.Fatal("step beyond length changed")
	}
}

func TestPatternPolymeter(t *testing.T) {
	p := NewPattern()
	p.SetLength(0, 3)
	p.SetLength(1, 40)
	p.SetLength(2, 0)
	if p.Tracks[0].Length != 3 || p.Tracks[1].Length != 32 || p.Tracks[2].Length != 1 {
		t.Fatalf("lengths %d %d %d", p.Tracks[0].Length, p.Tracks[1].Length, p.Tracks[2].Length)
	}
	if p.MasterLength() != 32 {
		t.Fatalf("MasterLength()=%d", p.MasterLength())
	}

	p.Toggle(0, 0)
	var hits []int64
	for n := int64(0); n < 10; n++ {
		if idx, st := p.StepAt(0, n); st.Active {
			if idx != 0 {
				t.Fatalf("active step index %d", idx)
			}
			hits = append(hits, n)
		}
	}
	if len(hits) != 4 || hits[1] != 3 || hits[3] != 9 {
		t.Fatalf("3-step track hit at %v", hits)
	}
}

func TestPatternClear(t *testing.T) {
	p := NewPattern()
	p.Toggle(0, 0)
	p.Toggle(5, 5)
	p.ClearTrack(0)
	if p.TrackHasContent(0) || !p.TrackHasContent(5) {
		t.Fatal("ClearTrack cleared the wrong track")
	}
	p.Clear()
	if p.HasContent() {
		t.Fatal("Clear left content")
	}
}

func TestPatternVelocityClamp(t *testing.T) {
	p := NewPattern()
	p.SetVelocity(0, 0, 300)
	p.SetVelocity(0, 1, -5)
	if p.Tracks[0].Steps[0].Velocity != 127 || p.Tracks[0].Steps[1].Velocity != 1 {
		t.Fatalf("velocities %d %d", p.Tracks[0].Steps[0].Velocity, p.Tracks[0].Steps[1].Velocity)
	}
}
