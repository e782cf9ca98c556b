package fingerprint

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"time"
)

const (
	numBands = 32
	// Landmark hashes pair the anchor window's dominant band with the bands
	// of the windows pairSpanA and pairSpanB hops later.
	pairSpanA = 3
	pairSpanB = 6
	// minFrequencyHz anchors the lowest analysis band above mains hum.
	minFrequencyHz = 100.0
	// silenceFloor is the per-window energy below which no landmark is emitted.
	silenceFloor = 1e-6
)

type windowPeak struct {
	band     int
	strength float64
	silent   bool
}

// Extract reads mono 16-bit little-endian PCM from r and returns the landmark
// sequence. Timestamps are strictly increasing: at most one landmark is
// emitted per analysis window.
func Extract(r io.Reader, p Params) (*Sequence, error) {
	if err := p.validate(); err != nil {
		return nil, fmt.Errorf("extraction params: %w", err)
	}

	peaks, totalSamples, err := analyzeWindows(r, p)
	if err != nil {
		return nil, err
	}

	duration := time.Duration(totalSamples) * time.Second / time.Duration(p.SampleRate)
	if duration < p.MinDuration {
		return nil, fmt.Errorf("%w: decoded %s, minimum %s", ErrEmptyAudio, duration.Round(time.Millisecond), p.MinDuration)
	}
	if p.ExpectedDuration > 0 && p.MinCoverage > 0 {
		coverage := float64(duration) / float64(p.ExpectedDuration)
		if coverage < p.MinCoverage {
			return nil, fmt.Errorf("%w: decoded %.0f%% of expected %s", ErrTruncated, coverage*100, p.ExpectedDuration.Round(time.Second))
		}
	}

	seq := &Sequence{DurationMS: duration.Milliseconds()}
	hopMS := int64(p.HopSize) * 1000 / int64(p.SampleRate)
	for i := 0; i+pairSpanB < len(peaks); i++ {
		anchor := peaks[i]
		midway := peaks[i+pairSpanA]
		tail := peaks[i+pairSpanB]
		if anchor.silent || midway.silent || tail.silent {
			continue
		}
		if anchor.strength < p.MinStrength {
			continue
		}
		seq.Landmarks = append(seq.Landmarks, Landmark{
			T:        int64(i) * hopMS,
			Hash:     uint32(anchor.band)<<10 | uint32(midway.band)<<5 | uint32(tail.band),
			Strength: anchor.strength,
		})
	}

	if len(seq.Landmarks) == 0 {
		return nil, fmt.Errorf("%w: no landmarks above strength threshold", ErrEmptyAudio)
	}
	return seq, nil
}

// analyzeWindows slides a window over the PCM stream and reduces each window
// to its dominant frequency band.
func analyzeWindows(r io.Reader, p Params) ([]windowPeak, int64, error) {
	br := bufio.NewReaderSize(r, 64*1024)

	window := make([]float64, 0, p.WindowSize)
	hop := make([]byte, p.HopSize*2)
	bands := newBandAnalyzer(p.SampleRate, p.WindowSize)

	var peaks []windowPeak
	var totalSamples int64

	for {
		n, err := io.ReadFull(br, hop)
		samples := n / 2
		totalSamples += int64(samples)
		for i := 0; i < samples; i++ {
			raw := int16(binary.LittleEndian.Uint16(hop[i*2:]))
			window = append(window, float64(raw)/32768.0)
		}
		if len(window) > p.WindowSize {
			window = window[len(window)-p.WindowSize:]
		}
		if len(window) == p.WindowSize {
			peaks = append(peaks, bands.peak(window))
		}
		if err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return peaks, totalSamples, nil
			}
			return nil, totalSamples, fmt.Errorf("read pcm stream: %w", err)
		}
	}
}

// bandAnalyzer computes per-band energy with Goertzel filters at fixed
// center frequencies, which keeps extraction deterministic and dependency
// free.
type bandAnalyzer struct {
	coeffs []float64
}

func newBandAnalyzer(sampleRate, windowSize int) *bandAnalyzer {
	maxFrequency := 0.45 * float64(sampleRate)
	step := (maxFrequency - minFrequencyHz) / float64(numBands)
	coeffs := make([]float64, numBands)
	for k := 0; k < numBands; k++ {
		freq := minFrequencyHz + (float64(k)+0.5)*step
		omega := 2 * math.Pi * freq / float64(sampleRate)
		coeffs[k] = 2 * math.Cos(omega)
	}
	return &bandAnalyzer{coeffs: coeffs}
}

func (b *bandAnalyzer) peak(window []float64) windowPeak {
	var best int
	var bestEnergy, total float64
	for k, coeff := range b.coeffs {
		var s0, s1, s2 float64
		for _, sample := range window {
			s0 = sample + coeff*s1 - s2
			s2 = s1
			s1 = s0
		}
		energy := s1*s1 + s2*s2 - coeff*s1*s2
		if energy < 0 {
			energy = 0
		}
		total += energy
		if energy > bestEnergy {
			bestEnergy = energy
			best = k
		}
	}
	normalized := total / float64(len(window))
	if normalized < silenceFloor {
		return windowPeak{silent: true}
	}
	return windowPeak{band: best, strength: bestEnergy / total}
}
