package sequencer

import "slices"

// DrumKit maps the 16 drum slots to the notes a drum machine expects
type DrumKit struct {
	Name  string
	Notes [16]uint8
}

// SlotNames label the drum slots in pad order
var SlotNames = [16]string{
	"Kick", "Snare", "Closed HH", "Open HH",
	"Low Tom", "Mid Tom", "High Tom", "Crash",
	"Ride", "Clap", "Rimshot", "Cowbell",
	"Clave", "Maracas", "Low Conga", "High Conga",
}

// Kits contains all available drum kit mappings
var Kits = map[string]DrumKit{
	"gm": {
		Name:  "General MIDI",
		Notes: [16]uint8{36, 38, 42, 46, 41, 43, 45, 49, 51, 39, 37, 56, 75, 70, 64, 63},
	},
	"rd8": {
		// RD-8 snare is on 40
		Name:  "Behringer RD-8",
		Notes: [16]uint8{36, 40, 42, 46, 45, 48, 50, 49, 51, 39, 37, 56, 75, 70, 64, 63},
	},
	"tr8s": {
		Name:  "Roland TR-8S",
		Notes: [16]uint8{36, 38, 42, 46, 41, 43, 45, 49, 51, 39, 37, 56, 75, 70, 62, 63},
	},
	"er1": {
		// slots past the clap are unused on the ER-1
		Name:  "Korg ER-1",
		Notes: [16]uint8{36, 38, 42, 46, 40, 41, 43, 49, 45, 39, 37, 56, 75, 70, 64, 63},
	},
}

// DefaultKit is the default kit name
const DefaultKit = "gm"

// KitNames returns the kit keys in cycling order
func KitNames() []string {
	return []string{"gm", "rd8", "tr8s", "er1"}
}

// GetKit returns a kit by name, defaulting to GM if not found
func GetKit(name string) DrumKit {
	if kit, ok := Kits[name]; ok {
		return kit
	}
	return Kits[DefaultKit]
}

// NextKit returns the kit after name, wrapping around
func NextKit(name string) string {
	names := KitNames()
	i := slices.Index(names, name)
	return names[(i+1)%len(names)]
}
