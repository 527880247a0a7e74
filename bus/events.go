package bus

// Event names an event on the bus
type Event string

// Payload types are noted next to each event.
const (
	// Sequencer
	DrumSequenceUpdated   Event = "drum-sequence-updated"   // *model.Pattern
	TimingDivisionChanged Event = "timing-division-changed" // model.Division
	DrumPadSelected       Event = "drum-pad-selected"       // int, kit slot 0-15

	// Players and rules
	PlayerSelected Event = "player-selected" // string player ID ("" when none)
	PlayerAdded    Event = "player-added"    // *model.Player
	PlayerRemoved  Event = "player-removed"  // *model.Player
	PlayerUpdated  Event = "player-updated"  // *model.Player
	RuleUpdated    Event = "rule-updated"    // *model.Player owning the rules

	// Instruments and captions
	InstrumentSelected Event = "instrument-selected" // string instrument ID ("" when none)
	InstrumentUpdated  Event = "instrument-updated"  // *model.Instrument
	CaptionUpdated     Event = "caption-updated"     // *model.ControlCode

	// Transport. TransportStopped may be published on the clock goroutine
	// when a bar that does not loop ends.
	TransportStarted Event = "transport-started" // nil
	TransportStopped Event = "transport-stopped" // nil
	TempoChanged     Event = "tempo-changed"     // float64 BPM

	// Application
	StatusUpdate   Event = "status-update"   // string
	ThemeChanged   Event = "theme-changed"   // *theme.Theme
	SessionChanged Event = "session-changed" // *model.Session
	DevicesChanged Event = "devices-changed" // []string output port names
)
