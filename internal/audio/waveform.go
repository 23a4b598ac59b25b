// Package audio provides the waveform data model, lossless file I/O, and
// normalization used by the music generation pipeline.
package audio

import (
	"errors"
	"fmt"
)

// Static errors.
var (
	ErrNoChannels       = errors.New("waveform must have at least one channel")
	ErrRaggedChannels   = errors.New("waveform channels must be equal length")
	ErrSampleRateRange  = errors.New("sample rate must be positive")
	ErrChannelMismatch  = errors.New("waveforms have different channel counts")
	ErrSampleRateDiffer = errors.New("waveforms have different sample rates")
)

// Waveform is a planar (per-channel) float32 audio buffer at a fixed sample
// rate. Samples are expected to stay within [-1.0, 1.0]; values outside that
// range are clamped when the waveform is encoded to PCM.
type Waveform struct {
	Samples    [][]float32
	SampleRate int
}

// NewWaveform allocates a silent waveform with the given shape.
func NewWaveform(channels, frames, sampleRate int) *Waveform {
	samples := make([][]float32, channels)
	for channel := range samples {
		samples[channel] = make([]float32, frames)
	}

	return &Waveform{
		Samples:    samples,
		SampleRate: sampleRate,
	}
}

// Channels returns the number of audio channels.
func (w *Waveform) Channels() int {
	return len(w.Samples)
}

// Frames returns the number of sample frames per channel.
func (w *Waveform) Frames() int {
	if len(w.Samples) == 0 {
		return 0
	}

	return len(w.Samples[0])
}

// Duration returns the waveform length in seconds.
func (w *Waveform) Duration() float64 {
	if w.SampleRate <= 0 {
		return 0
	}

	return float64(w.Frames()) / float64(w.SampleRate)
}

// Validate checks the structural invariants of the waveform.
func (w *Waveform) Validate() error {
	if len(w.Samples) == 0 {
		return ErrNoChannels
	}

	if w.SampleRate <= 0 {
		return fmt.Errorf("%w: got %d", ErrSampleRateRange, w.SampleRate)
	}

	frames := len(w.Samples[0])
	for channel, data := range w.Samples {
		if len(data) != frames {
			return fmt.Errorf(
				"%w: channel 0 has %d frames, channel %d has %d",
				ErrRaggedChannels, frames, channel, len(data),
			)
		}
	}

	return nil
}

// Clone returns a deep copy of the waveform.
func (w *Waveform) Clone() *Waveform {
	out := &Waveform{
		Samples:    make([][]float32, len(w.Samples)),
		SampleRate: w.SampleRate,
	}

	for channel, data := range w.Samples {
		out.Samples[channel] = make([]float32, len(data))
		copy(out.Samples[channel], data)
	}

	return out
}

// Tail returns a copy of the last frames of the waveform. When the waveform
// is shorter than the requested length the whole waveform is returned.
func (w *Waveform) Tail(frames int) *Waveform {
	total := w.Frames()
	if frames > total {
		frames = total
	}

	if frames < 0 {
		frames = 0
	}

	out := NewWaveform(w.Channels(), frames, w.SampleRate)
	for channel, data := range w.Samples {
		copy(out.Samples[channel], data[total-frames:])
	}

	return out
}

// TrimTail returns a copy of the waveform with the last frames removed.
// Trimming more frames than exist yields an empty waveform.
func (w *Waveform) TrimTail(frames int) *Waveform {
	total := w.Frames()

	keep := total - frames
	if keep < 0 {
		keep = 0
	}

	out := NewWaveform(w.Channels(), keep, w.SampleRate)
	for channel, data := range w.Samples {
		copy(out.Samples[channel], data[:keep])
	}

	return out
}

// Append concatenates next onto the end of the waveform in place. Both
// waveforms must share channel count and sample rate.
func (w *Waveform) Append(next *Waveform) error {
	if w.Channels() != next.Channels() {
		return fmt.Errorf(
			"%w: %d vs %d",
			ErrChannelMismatch, w.Channels(), next.Channels(),
		)
	}

	if w.SampleRate != next.SampleRate {
		return fmt.Errorf(
			"%w: %d vs %d",
			ErrSampleRateDiffer, w.SampleRate, next.SampleRate,
		)
	}

	for channel := range w.Samples {
		w.Samples[channel] = append(w.Samples[channel], next.Samples[channel]...)
	}

	return nil
}
