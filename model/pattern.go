package model

const (
	NumTracks = 16
	MaxSteps  = 32

	defaultTrackLength = 16
	defaultVelocity    = 100
)

// Step is a single cell of the drum grid
type Step struct {
	Active   bool  `yaml:"active"`
	Velocity uint8 `yaml:"velocity"`
}

// Track is one row of the grid. Length is 1-32 and each track loops at its
// own length.
type Track struct {
	Steps  [MaxSteps]Step `yaml:"steps,flow"`
	Length int            `yaml:"length"`
}

// Pattern is the drum step sequence: 16 kit slots by 32 steps
type Pattern struct {
	Tracks [NumTracks]Track `yaml:"tracks"`
}

// NewPattern returns an empty pattern, 16 steps per track
func NewPattern() Pattern {
	var p Pattern
	for t := range p.Tracks {
		p.Tracks[t].Length = defaultTrackLength
		for s := range p.Tracks[t].Steps {
			p.Tracks[t].Steps[s].Velocity = defaultVelocity
		}
	}
	return p
}

// MasterLength returns the longest track length
func (p *Pattern) MasterLength() int {
	longest := 1
	for i := range p.Tracks {
		if p.Tracks[i].Length > longest {
			longest = p.Tracks[i].Length
		}
	}
	return longest
}

// HasContent reports whether any step within a track's length is active
func (p *Pattern) HasContent() bool {
	for i := range p.Tracks {
		if p.TrackHasContent(i) {
			return true
		}
	}
	return false
}

// TrackHasContent reports whether track t has an active step within its length
func (p *Pattern) TrackHasContent(t int) bool {
	if t < 0 || t >= NumTracks {
		return false
	}
	tr := &p.Tracks[t]
	for s := 0; s < tr.Length; s++ {
		if tr.Steps[s].Active {
			return true
		}
	}
	return false
}

// StepAt returns the step that plays on global step n for track t
func (p *Pattern) StepAt(t int, n int64) (int, Step) {
	tr := &p.Tracks[t]
	idx := int(n % int64(max(1, tr.Length)))
	return idx, tr.Steps[idx]
}

// Toggle flips a step inside the track's length and returns the new state
func (p *Pattern) Toggle(t, s int) bool {
	if t < 0 || t >= NumTracks || s < 0 || s >= p.Tracks[t].Length {
		return false
	}
	st := &p.Tracks[t].Steps[s]
	st.Active = !st.Active
	return st.Active
}

// SetLength sets a track's length, clamped to 1-32
func (p *Pattern) SetLength(t, n int) {
	if t < 0 || t >= NumTracks {
		return
	}
	p.Tracks[t].Length = max(1, min(n, MaxSteps))
}

// SetVelocity sets a step's velocity, clamped to 1-127
func (p *Pattern) SetVelocity(t, s, v int) {
	if t < 0 || t >= NumTracks || s < 0 || s >= MaxSteps {
		return
	}
	p.Tracks[t].Steps[s].Velocity = uint8(max(1, min(v, 127)))
}

// ClearTrack deactivates every step of track t
func (p *Pattern) ClearTrack(t int) {
	if t < 0 || t >= NumTracks {
		return
	}
	for s := range p.Tracks[t].Steps {
		p.Tracks[t].Steps[s].Active = false
	}
}

// Clear deactivates every step
func (p *Pattern) Clear() {
	for t := range p.Tracks {
		p.ClearTrack(t)
	}
}

func (p *Pattern) normalize() {
	for t := range p.Tracks {
		tr := &p.Tracks[t]
		if tr.Length < 1 || tr.Length > MaxSteps {
			tr.Length = defaultTrackLength
		}
		for s := range tr.Steps {
			if tr.Steps[s].Velocity == 0 || tr.Steps[s].Velocity > 127 {
				tr.Steps[s].Velocity = defaultVelocity
			}
		}
	}
}
