package audio

import (
	"encoding/binary"
	"math"
)

const (
	// DefaultSampleRate is used when NewClick is given 0
	DefaultSampleRate = 44100

	clickLength = 60  // ms
	clickDecay  = 9.0 // envelope falls to e^-9 over the click
)

// NoteFrequency returns the equal-tempered frequency of a MIDI note, A4=440Hz
func NoteFrequency(note uint8) float64 {
	return 440 * math.Pow(2, (float64(note)-69)/12)
}

// Tone renders a decaying sine for a note as mono float samples in [-1, 1].
// Velocity scales the peak linearly; velocity 0 renders silence.
func Tone(note, velocity uint8, sampleRate int) []float32 {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	n := sampleRate * clickLength / 1000
	buf := make([]float32, n)
	if velocity == 0 {
		return buf
	}

	freq := NoteFrequency(note)
	amp := float64(velocity) / 127
	for i := range buf {
		t := float64(i) / float64(sampleRate)
		env := math.Exp(-clickDecay * float64(i) / float64(n))
		buf[i] = float32(amp * env * math.Sin(2*math.Pi*freq*t))
	}
	return buf
}

// To16BitLE converts float samples to signed 16-bit little-endian PCM,
// clipping anything outside [-1, 1]. The result is appended to dst.
func To16BitLE(samples []float32, dst []byte) []byte {
	for _, v := range samples {
		var s int16
		switch {
		case v <= -1:
			s = -math.MaxInt16
		case v >= 1:
			s = math.MaxInt16
		default:
			s = int16(v * math.MaxInt16)
		}
		dst = binary.LittleEndian.AppendUint16(dst, uint16(s))
	}
	return dst
}
