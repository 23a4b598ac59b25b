package audio

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Strategy selects how the final waveform is normalized before it is
// written out.
type Strategy string

// Supported normalization strategies.
const (
	StrategyLoudness Strategy = "loudness"
	StrategyClip     Strategy = "clip"
	StrategyPeak     Strategy = "peak"
	StrategyRMS      Strategy = "rms"
)

// Normalization constants, expressed in decibels below full scale.
const (
	loudnessHeadroomDB = 16.0
	rmsHeadroomDB      = 18.0
)

// ErrUnknownStrategy is returned for a strategy outside the supported set.
var ErrUnknownStrategy = errors.New("unknown normalization strategy")

// Valid reports whether the strategy is one of the supported values.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyLoudness, StrategyClip, StrategyPeak, StrategyRMS:
		return true
	default:
		return false
	}
}

// Normalize rescales the waveform in place according to the strategy.
func Normalize(w *Waveform, strategy Strategy) error {
	validateErr := w.Validate()
	if validateErr != nil {
		return validateErr
	}

	switch strategy {
	case StrategyClip:
		normalizeClip(w)
	case StrategyPeak:
		normalizePeak(w)
	case StrategyRMS:
		normalizeRMS(w)
	case StrategyLoudness:
		normalizeLoudness(w)
	default:
		return fmt.Errorf("%w: '%s'", ErrUnknownStrategy, strategy)
	}

	return nil
}

// normalizeClip hard-clamps every sample to [-1.0, 1.0].
func normalizeClip(w *Waveform) {
	for _, channel := range w.Samples {
		for i, sample := range channel {
			if sample > 1.0 {
				channel[i] = 1.0
			} else if sample < -1.0 {
				channel[i] = -1.0
			}
		}
	}
}

// normalizePeak scales the waveform so its largest absolute sample reaches
// full scale.
func normalizePeak(w *Waveform) {
	peak := peakAmplitude(w)
	if peak == 0 {
		return
	}

	applyGain(w, 1.0/peak)
}

// normalizeRMS scales the waveform to a fixed RMS level sitting
// rmsHeadroomDB below full scale.
func normalizeRMS(w *Waveform) {
	rms := rmsAmplitude(w)
	if rms == 0 {
		return
	}

	target := dbToGain(-rmsHeadroomDB)
	applyGain(w, target/rms)
}

// normalizeLoudness applies an RMS-derived gain with loudnessHeadroomDB of
// headroom and then runs a tanh soft compressor over the result, so that
// outliers the gain pushes past full scale saturate instead of clipping.
func normalizeLoudness(w *Waveform) {
	rms := rmsAmplitude(w)
	if rms > 0 {
		target := dbToGain(-loudnessHeadroomDB)
		applyGain(w, target/rms)
	}

	for _, channel := range w.Samples {
		for i, sample := range channel {
			channel[i] = float32(math.Tanh(float64(sample)))
		}
	}
}

// peakAmplitude returns the maximum absolute sample across all channels.
func peakAmplitude(w *Waveform) float64 {
	peak := 0.0
	for _, channel := range w.Samples {
		if len(channel) == 0 {
			continue
		}

		peak = math.Max(peak, floats.Norm(toFloat64(channel), math.Inf(1)))
	}

	return peak
}

// rmsAmplitude returns the RMS level over all channels.
func rmsAmplitude(w *Waveform) float64 {
	sumSquares := 0.0
	count := 0

	for _, channel := range w.Samples {
		if len(channel) == 0 {
			continue
		}

		norm := floats.Norm(toFloat64(channel), 2)
		sumSquares += norm * norm
		count += len(channel)
	}

	if count == 0 {
		return 0
	}

	return math.Sqrt(sumSquares / float64(count))
}

func applyGain(w *Waveform, gain float64) {
	for _, channel := range w.Samples {
		for i, sample := range channel {
			channel[i] = float32(float64(sample) * gain)
		}
	}
}

func dbToGain(db float64) float64 {
	return math.Pow(10, db/20.0)
}

func toFloat64(samples []float32) []float64 {
	out := make([]float64, len(samples))
	for i, sample := range samples {
		out[i] = float64(sample)
	}

	return out
}
