package testsupport

import (
	"encoding/binary"
	"math"

	"cliparr/internal/fingerprint"
)

// TonePCM synthesizes little-endian 16-bit mono PCM containing a sequence of
// equal-length tones at the given frequencies. Each tone lasts toneSeconds.
func TonePCM(sampleRate int, toneSeconds float64, frequencies ...float64) []byte {
	samplesPerTone := int(float64(sampleRate) * toneSeconds)
	out := make([]byte, 0, 2*samplesPerTone*len(frequencies))
	for _, freq := range frequencies {
		for i := 0; i < samplesPerTone; i++ {
			sample := 0.6 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
			value := int16(sample * math.MaxInt16)
			out = binary.LittleEndian.AppendUint16(out, uint16(value))
		}
	}
	return out
}

// Landmarks builds a synthetic landmark run: count landmarks spaced stepMS
// apart starting at startMS, with hashes drawn from the seed so distinct seeds
// produce disjoint hash sets.
func Landmarks(startMS int64, count int, stepMS int64, seed uint32) []fingerprint.Landmark {
	marks := make([]fingerprint.Landmark, count)
	for i := range marks {
		marks[i] = fingerprint.Landmark{
			T:        startMS + int64(i)*stepMS,
			Hash:     seed + uint32(i),
			Strength: 1,
		}
	}
	return marks
}

// Sequence wraps landmarks in a fingerprint sequence of the given duration.
func Sequence(durationMS int64, marks []fingerprint.Landmark) *fingerprint.Sequence {
	return &fingerprint.Sequence{DurationMS: durationMS, Landmarks: marks}
}
