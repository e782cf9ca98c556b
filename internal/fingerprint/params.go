package fingerprint

import (
	"errors"
	"time"

	"cliparr/internal/config"
)

// Params controls landmark extraction.
type Params struct {
	// SampleRate is the PCM sample rate the decoder produces.
	SampleRate int
	// WindowSize is the number of samples per analysis window.
	WindowSize int
	// HopSize is the number of samples between consecutive windows.
	HopSize int
	// MinStrength drops landmarks whose dominant band carries less than this
	// fraction of the window's energy.
	MinStrength float64
	// MinDuration rejects streams shorter than this as empty audio.
	MinDuration time.Duration
	// ExpectedDuration is the catalog's duration for the episode; zero
	// disables truncation checks.
	ExpectedDuration time.Duration
	// MinCoverage is the fraction of ExpectedDuration that must decode before
	// a short read is accepted as a partial result.
	MinCoverage float64
}

// DefaultParams returns extraction parameters suitable for spoken/TV audio.
func DefaultParams() Params {
	return Params{
		SampleRate:  16000,
		WindowSize:  4096,
		HopSize:     2048,
		MinStrength: 0.05,
		MinDuration: 5 * time.Second,
		MinCoverage: 0.8,
	}
}

// ParamsFromConfig maps the analysis config section onto extraction params.
func ParamsFromConfig(cfg *config.Config) Params {
	p := DefaultParams()
	if cfg == nil {
		return p
	}
	p.SampleRate = cfg.Analysis.SampleRate
	p.WindowSize = cfg.Analysis.WindowSize
	p.HopSize = cfg.Analysis.HopSize
	p.MinStrength = cfg.Analysis.MinLandmarkStrength
	p.MinDuration = time.Duration(cfg.Analysis.MinAudioSeconds) * time.Second
	return p
}

// HopInterval returns the wall-clock spacing between analysis windows.
func (p Params) HopInterval() time.Duration {
	if p.SampleRate <= 0 || p.HopSize <= 0 {
		return 0
	}
	return time.Duration(p.HopSize) * time.Second / time.Duration(p.SampleRate)
}

func (p Params) validate() error {
	if p.SampleRate <= 0 {
		return errors.New("sample rate must be positive")
	}
	if p.WindowSize <= 0 {
		return errors.New("window size must be positive")
	}
	if p.HopSize <= 0 || p.HopSize > p.WindowSize {
		return errors.New("hop size must be positive and no larger than window size")
	}
	return nil
}
