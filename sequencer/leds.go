package sequencer

import (
	"time"

	"go-beats/debug"
	"go-beats/midi"
)

// LEDState describes the state of a single LED
type LEDState struct {
	Row, Col int
	Color    [3]uint8 // RGB color - controller maps to its palette
	Channel  uint8    // midi.ChannelStatic, ChannelFlash or ChannelPulse
}

// LED refresh rate
const ledFPS = 30

// SetController sets the controller that receives LED frames (nil to detach)
func (m *Manager) SetController(c midi.Controller) {
	m.ledMu.Lock()
	defer m.ledMu.Unlock()
	debug.Log("ctrl", "SetController, resetting diff state")
	m.controller = c
	m.prevLEDs = make(map[[2]int]LEDState)
	m.ledDirty = true
}

// Controller returns the attached controller
func (m *Manager) Controller() midi.Controller {
	m.ledMu.Lock()
	defer m.ledMu.Unlock()
	return m.controller
}

// SetLEDs stores the focused panel's latest frame. Frames are rendered on
// the UI goroutine; the LED loop only diffs and sends.
func (m *Manager) SetLEDs(frame []LEDState) {
	m.ledMu.Lock()
	m.frame = frame
	m.ledDirty = true
	m.ledMu.Unlock()
}

// ResetLEDs forgets what the controller shows, so the next flush repaints
// everything. Used when focus moves to another panel.
func (m *Manager) ResetLEDs() {
	m.ledMu.Lock()
	m.prevLEDs = make(map[[2]int]LEDState)
	m.ledDirty = true
	m.ledMu.Unlock()
}

// ledLoop runs at fixed FPS and flushes LED updates
func (m *Manager) ledLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(time.Second / ledFPS)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopChan:
			return
		case <-ticker.C:
			m.flushLEDs()
		}
	}
}

// flushLEDs sends only changed LEDs to the controller (diffing + batching)
func (m *Manager) flushLEDs() {
	m.ledMu.Lock()
	if !m.ledDirty || m.controller == nil {
		m.ledMu.Unlock()
		return
	}
	m.ledDirty = false
	ctrl := m.controller
	updates := m.diffLocked()
	m.ledMu.Unlock()

	if len(updates) > 0 {
		debug.Log("led", "flushLEDs: batch=%d", len(updates))
		if err := ctrl.SetLEDBatch(updates); err != nil {
			debug.Log("led", "SetLEDBatch: %v", err)
		}
	}
}

// diffLocked compares the current frame with the previous one. Caller
// holds ledMu.
func (m *Manager) diffLocked() []midi.LEDUpdate {
	next := make(map[[2]int]LEDState, len(m.frame))
	var updates []midi.LEDUpdate

	for _, led := range m.frame {
		key := [2]int{led.Row, led.Col}
		next[key] = led
		if prev, ok := m.prevLEDs[key]; !ok || prev != led {
			updates = append(updates, midi.LEDUpdate{
				Row:     led.Row,
				Col:     led.Col,
				Color:   led.Color,
				Channel: led.Channel,
			})
		}
	}

	// Clear LEDs that are no longer present
	for key := range m.prevLEDs {
		if _, ok := next[key]; !ok {
			updates = append(updates, midi.LEDUpdate{Row: key[0], Col: key[1]})
		}
	}

	m.prevLEDs = next
	return updates
}
