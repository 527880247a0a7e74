// Package audio renders the metronome click through the system audio device.
package audio

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/ebitengine/oto/v3"
	gomidi "gitlab.com/gomidi/midi/v2"

	"go-beats/debug"
)

// voice is one playing click; *oto.Player satisfies it
type voice interface {
	Play()
	IsPlaying() bool
	Close() error
}

// Click plays a short tone for every note-on it receives. It implements
// transport.Receiver so it can stand in for a MIDI output.
type Click struct {
	sampleRate int
	newVoice   func(pcm []byte) voice

	mu     sync.Mutex
	voices []voice
	closed bool
}

// NewClick opens the audio device. oto allows one context per process, so
// create a single Click and share it.
func NewClick(sampleRate int) (*Click, error) {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 1,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return nil, fmt.Errorf("open audio context: %w", err)
	}
	<-ready

	return &Click{
		sampleRate: sampleRate,
		newVoice: func(pcm []byte) voice {
			return ctx.NewPlayer(bytes.NewReader(pcm))
		},
	}, nil
}

// Send plays note-ons and ignores everything else
func (c *Click) Send(msg gomidi.Message) error {
	var ch, key, vel uint8
	if !msg.GetNoteOn(&ch, &key, &vel) {
		return nil
	}

	pcm := To16BitLE(Tone(key, vel, c.sampleRate), nil)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("click closed")
	}
	c.reap()
	v := c.newVoice(pcm)
	v.Play()
	c.voices = append(c.voices, v)
	return nil
}

// reap closes voices that have finished. Caller holds mu.
func (c *Click) reap() {
	live := c.voices[:0]
	for _, v := range c.voices {
		if v.IsPlaying() {
			live = append(live, v)
			continue
		}
		if err := v.Close(); err != nil {
			debug.Log("audio", "close voice: %v", err)
		}
	}
	c.voices = live
}

// Active is the number of voices not yet reaped
func (c *Click) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.voices)
}

// Close stops all voices. Further Sends fail.
func (c *Click) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	var firstErr error
	for _, v := range c.voices {
		if err := v.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	c.voices = nil
	return firstErr
}
