package core

import (
	"github.com/book-expert/musicgen-service/internal/audio"
)

// Variant names one of the pretrained model presets.
type Variant string

// Supported model variants.
const (
	VariantStereoMelodyLarge Variant = "stereo-melody-large"
	VariantStereoLarge       Variant = "stereo-large"
	VariantMelodyLarge       Variant = "melody-large"
	VariantLarge             Variant = "large"
)

// Valid reports whether the variant is one of the supported presets.
func (v Variant) Valid() bool {
	switch v {
	case VariantStereoMelodyLarge, VariantStereoLarge, VariantMelodyLarge, VariantLarge:
		return true
	default:
		return false
	}
}

// Stereo reports whether the variant produces two-channel output.
func (v Variant) Stereo() bool {
	return v == VariantStereoMelodyLarge || v == VariantStereoLarge
}

// SupportsMelody reports whether the variant accepts conditioning audio.
func (v Variant) SupportsMelody() bool {
	return v == VariantStereoMelodyLarge || v == VariantMelodyLarge
}

// OutputFormat selects the container of the returned audio file.
type OutputFormat string

// Supported output formats.
const (
	FormatWAV OutputFormat = "wav"
	FormatMP3 OutputFormat = "mp3"
)

// Valid reports whether the format is one of the supported containers.
func (f OutputFormat) Valid() bool {
	return f == FormatWAV || f == FormatMP3
}

// NoSeed marks a request that wants a seed drawn from entropy and reported
// back in the result.
const NoSeed int64 = -1

// GenerationRequest holds the immutable parameters of one end-to-end
// prediction. ConditioningAudio, when set, switches generation to the
// melody-conditioned single-call path.
type GenerationRequest struct {
	Variant                Variant
	Prompt                 string
	ConditioningAudio      *audio.Waveform
	Duration               int
	MultiBandDiffusion     bool
	Normalization          audio.Strategy
	TopK                   int
	TopP                   float64
	Temperature            float64
	ClassifierFreeGuidance float64
	OutputFormat           OutputFormat
	Seed                   int64
}

// DefaultRequest returns a request populated with the model defaults. The
// caller still has to supply a prompt or conditioning audio.
func DefaultRequest() GenerationRequest {
	return GenerationRequest{
		Variant:                VariantStereoMelodyLarge,
		Prompt:                 "",
		ConditioningAudio:      nil,
		Duration:               8,
		MultiBandDiffusion:     false,
		Normalization:          audio.StrategyLoudness,
		TopK:                   250,
		TopP:                   0.0,
		Temperature:            1.0,
		ClassifierFreeGuidance: 3.0,
		OutputFormat:           FormatWAV,
		Seed:                   NoSeed,
	}
}

// PredictionResult describes the produced audio file. Seed is always the
// seed actually used, so any run can be reproduced.
type PredictionResult struct {
	Path       string
	Seed       int64
	Duration   float64
	SampleRate int
	Channels   int
}
