package midi

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"go-beats/debug"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver
)

// DeviceEvent is emitted when controllers come and go or the output list
// changes
type DeviceEvent struct {
	Type       DeviceEventType
	Controller Controller
	ID         string
	Outputs    []string // set for OutputsChanged
}

type DeviceEventType int

const (
	DeviceConnected DeviceEventType = iota
	DeviceDisconnected
	OutputsChanged
)

// KeyboardPort is an input to open as a keyboard when it appears
type KeyboardPort struct {
	Name    string
	Channel int // 1-16, 0 for omni
}

// DeviceManager handles hot-plug detection of MIDI controllers and keeps
// the list of output ports current
type DeviceManager struct {
	controllers map[string]Controller
	keyboards   []KeyboardPort
	outputs     []string
	mu          sync.RWMutex

	events      chan DeviceEvent
	pollRate    time.Duration
	scanTimeout time.Duration
	listPorts   func() ([]drivers.In, []drivers.Out)
}

// NewDeviceManager creates a new device manager
func NewDeviceManager() *DeviceManager {
	return &DeviceManager{
		controllers: make(map[string]Controller),
		events:      make(chan DeviceEvent, 16),
		pollRate:    time.Second,
		scanTimeout: 3 * time.Second,
		listPorts: func() ([]drivers.In, []drivers.Out) {
			return gomidi.GetInPorts(), gomidi.GetOutPorts()
		},
	}
}

// AddKeyboard opens the named input as a keyboard whenever it is present.
// Call before Run.
func (dm *DeviceManager) AddKeyboard(name string, channel int) {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	dm.keyboards = append(dm.keyboards, KeyboardPort{Name: name, Channel: channel})
}

// Events returns a channel of device events. It is closed when Run returns.
func (dm *DeviceManager) Events() <-chan DeviceEvent {
	return dm.events
}

// Outputs returns the display names of the output ports seen on the last scan
func (dm *DeviceManager) Outputs() []string {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	return slices.Clone(dm.outputs)
}

// Controllers returns a snapshot of connected controllers
func (dm *DeviceManager) Controllers() map[string]Controller {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	snapshot := make(map[string]Controller, len(dm.controllers))
	for k, v := range dm.controllers {
		snapshot[k] = v
	}
	return snapshot
}

// GetLaunchpad returns the first connected Launchpad (or nil)
func (dm *DeviceManager) GetLaunchpad() Controller {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	for _, c := range dm.controllers {
		if c.Type() == ControllerLaunchpad {
			return c
		}
	}
	return nil
}

// Run polls for port changes until ctx is done (blocking - run in goroutine)
func (dm *DeviceManager) Run(ctx context.Context) {
	ticker := time.NewTicker(dm.pollRate)
	defer ticker.Stop()
	defer close(dm.events)
	defer dm.closeAll()

	dm.scan(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			dm.scan(ctx)
		}
	}
}

func (dm *DeviceManager) emit(ctx context.Context, ev DeviceEvent) {
	select {
	case dm.events <- ev:
	case <-ctx.Done():
	}
}

func (dm *DeviceManager) scan(ctx context.Context) {
	type portsResult struct {
		ins  []drivers.In
		outs []drivers.Out
	}

	// CoreMIDI can hang; give up on this scan rather than block the loop
	ch := make(chan portsResult, 1)
	go func() {
		ins, outs := dm.listPorts()
		ch <- portsResult{ins: ins, outs: outs}
	}()

	var inPorts []drivers.In
	var outPorts []drivers.Out
	select {
	case r := <-ch:
		inPorts, outPorts = r.ins, r.outs
	case <-time.After(dm.scanTimeout):
		debug.Log("devices", "port scan timed out (try: sudo killall coreaudiod midiserver)")
		return
	case <-ctx.Done():
		return
	}

	names := make([]string, len(outPorts))
	for i, op := range outPorts {
		names[i] = op.String()
	}
	if dm.setOutputs(names) {
		dm.emit(ctx, DeviceEvent{Type: OutputsChanged, Outputs: slices.Clone(names)})
	}

	seen := make(map[string]bool)
	for _, inPort := range inPorts {
		id := inPort.String()

		dm.mu.RLock()
		_, exists := dm.controllers[id]
		kb, isKeyboard := dm.keyboardFor(id)
		dm.mu.RUnlock()

		if !isLaunchpad(id) && !isKeyboard {
			continue
		}
		seen[id] = true
		if exists {
			continue
		}

		var ctrl Controller
		var err error
		if isLaunchpad(id) {
			ctrl, err = NewLaunchpadController(id, inPort, matchOutput(id, outPorts))
		} else {
			ctrl, err = NewKeyboardController(id, inPort, kb.Channel)
		}
		if err != nil {
			debug.Log("devices", "open %s: %v", id, err)
			continue
		}

		dm.mu.Lock()
		dm.controllers[id] = ctrl
		dm.mu.Unlock()
		debug.Log("devices", "connected %s (%s)", id, ctrl.Type())
		dm.emit(ctx, DeviceEvent{Type: DeviceConnected, Controller: ctrl, ID: id})
	}

	dm.mu.Lock()
	var gone []string
	for id, c := range dm.controllers {
		if !seen[id] {
			c.Close()
			delete(dm.controllers, id)
			gone = append(gone, id)
		}
	}
	dm.mu.Unlock()

	for _, id := range gone {
		debug.Log("devices", "disconnected %s", id)
		dm.emit(ctx, DeviceEvent{Type: DeviceDisconnected, ID: id})
	}
}

// setOutputs records the output names and reports whether they changed
func (dm *DeviceManager) setOutputs(names []string) bool {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if dm.outputs != nil && slices.Equal(dm.outputs, names) {
		return false
	}
	dm.outputs = slices.Clone(names)
	if dm.outputs == nil {
		dm.outputs = []string{}
	}
	return true
}

// keyboardFor matches an input name against the configured keyboards by
// prefix, case-insensitive. Caller holds mu.
func (dm *DeviceManager) keyboardFor(name string) (KeyboardPort, bool) {
	lower := strings.ToLower(name)
	for _, kb := range dm.keyboards {
		if kb.Name != "" && strings.HasPrefix(lower, strings.ToLower(kb.Name)) {
			return kb, true
		}
	}
	return KeyboardPort{}, false
}

func (dm *DeviceManager) closeAll() {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	for _, c := range dm.controllers {
		c.Close()
	}
	dm.controllers = make(map[string]Controller)
}

// matchOutput finds the output with the same name as an input
func matchOutput(name string, outs []drivers.Out) drivers.Out {
	lower := strings.ToLower(name)
	for _, op := range outs {
		if strings.ToLower(op.String()) == lower {
			return op
		}
	}
	return nil
}

func isLaunchpad(name string) bool {
	name = strings.ToLower(name)
	return strings.Contains(name, "launchpad") && strings.Contains(name, "midi")
}
