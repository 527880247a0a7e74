package sequencer

import (
	"go-beats/debug"
	"go-beats/transport"

	gomidi "gitlab.com/gomidi/midi/v2"
)

// SetDefaultPort sets the output used when an instrument names none
func (m *Manager) SetDefaultPort(portName string) {
	m.sendersMu.Lock()
	m.defaultPort = portName
	m.sendersMu.Unlock()
}

// DefaultPort returns the fallback output name
func (m *Manager) DefaultPort() string {
	m.sendersMu.RLock()
	defer m.sendersMu.RUnlock()
	return m.defaultPort
}

// getSender returns the receiver for a port, opening it on first use. An
// empty name means the default port. Ports that failed to open are not
// retried until ResetOutputs.
func (m *Manager) getSender(portName string) transport.Receiver {
	m.sendersMu.RLock()
	if portName == "" {
		portName = m.defaultPort
	}
	if portName == "" {
		m.sendersMu.RUnlock()
		return nil
	}
	if r, ok := m.senders[portName]; ok {
		m.sendersMu.RUnlock()
		return r
	}
	m.sendersMu.RUnlock()

	m.sendersMu.Lock()
	defer m.sendersMu.Unlock()

	// Double-check after acquiring write lock
	if r, ok := m.senders[portName]; ok {
		return r
	}

	r, closeFn, err := m.open(portName)
	if err != nil {
		debug.Log("output", "open %q: %v", portName, err)
		m.bus.Status("output unavailable: " + portName)
		m.senders[portName] = nil
		return nil
	}
	m.senders[portName] = r
	if closeFn != nil {
		m.closers = append(m.closers, closeFn)
	}
	return r
}

func (m *Manager) send(portName string, msg gomidi.Message) {
	r := m.getSender(portName)
	if r == nil {
		return
	}
	if err := r.Send(msg); err != nil {
		debug.LogEvery(20, "output", "send to %q failed: %v", portName, err)
	}
}

// ResetOutputs closes every opened output so the next send reopens it.
// Called when the port list changes.
func (m *Manager) ResetOutputs() {
	m.sendersMu.Lock()
	defer m.sendersMu.Unlock()
	m.closeOutputsLocked()
}

func (m *Manager) closeOutputsLocked() {
	for _, closeFn := range m.closers {
		if err := closeFn(); err != nil {
			debug.Log("output", "close: %v", err)
		}
	}
	m.closers = nil
	m.senders = make(map[string]transport.Receiver)
}
