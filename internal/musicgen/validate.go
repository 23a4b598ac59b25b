// Package musicgen implements the prediction pipeline around the external
// MusicGen inference binary: request validation, model loading and caching,
// segmented long-form generation, and the output stage.
package musicgen

import (
	"errors"
	"fmt"

	"github.com/book-expert/musicgen-service/internal/audio"
	"github.com/book-expert/musicgen-service/internal/core"
)

// Static validation errors. All of them describe a request that is rejected
// before any model work begins.
var (
	// ErrMissingPromptAndAudio indicates that neither a prompt nor
	// conditioning audio was supplied.
	ErrMissingPromptAndAudio = errors.New("must provide either a prompt or conditioning audio")
	// ErrUnknownVariant indicates an unrecognized model variant.
	ErrUnknownVariant = errors.New("unknown model variant")
	// ErrMelodyNotSupported indicates conditioning audio was supplied for a
	// variant that cannot condition on it.
	ErrMelodyNotSupported = errors.New(
		"model variant does not support conditioning audio; use a melody variant",
	)
	// ErrDiffusionStereo indicates multi-band diffusion was requested with a
	// stereo variant.
	ErrDiffusionStereo = errors.New(
		"multi-band diffusion is only available with non-stereo variants",
	)
	// ErrDurationRange indicates a non-positive requested duration.
	ErrDurationRange = errors.New("duration must be positive")
	// ErrTopKNegative indicates a negative top-k.
	ErrTopKNegative = errors.New("top_k must be non-negative")
	// ErrTopPRange indicates top-p outside [0.0, 1.0].
	ErrTopPRange = errors.New("top_p must be between 0.0 and 1.0")
	// ErrTemperatureRange indicates a negative temperature.
	ErrTemperatureRange = errors.New("temperature must be >= 0.0")
	// ErrGuidanceRange indicates a classifier-free guidance coefficient below 1.
	ErrGuidanceRange = errors.New("classifier_free_guidance must be >= 1.0")
	// ErrUnknownFormat indicates an unrecognized output format.
	ErrUnknownFormat = errors.New("unknown output format")
)

// ValidateRequest checks a generation request for the invalid combinations
// rejected synchronously before any model work.
func ValidateRequest(req core.GenerationRequest) error {
	if req.Prompt == "" && req.ConditioningAudio == nil {
		return ErrMissingPromptAndAudio
	}

	if !req.Variant.Valid() {
		return fmt.Errorf("%w: '%s'", ErrUnknownVariant, req.Variant)
	}

	if req.ConditioningAudio != nil && !req.Variant.SupportsMelody() {
		return fmt.Errorf("%w: got '%s'", ErrMelodyNotSupported, req.Variant)
	}

	if req.MultiBandDiffusion && req.Variant.Stereo() {
		return fmt.Errorf("%w: got '%s'", ErrDiffusionStereo, req.Variant)
	}

	if req.ConditioningAudio != nil {
		audioErr := req.ConditioningAudio.Validate()
		if audioErr != nil {
			return fmt.Errorf("invalid conditioning audio: %w", audioErr)
		}
	}

	if !req.Normalization.Valid() {
		return fmt.Errorf("%w: '%s'", audio.ErrUnknownStrategy, req.Normalization)
	}

	if !req.OutputFormat.Valid() {
		return fmt.Errorf("%w: '%s'", ErrUnknownFormat, req.OutputFormat)
	}

	return validateSamplingParams(req)
}

// validateSamplingParams checks the numeric sampling parameters.
func validateSamplingParams(req core.GenerationRequest) error {
	if req.Duration <= 0 {
		return fmt.Errorf("%w: got %d", ErrDurationRange, req.Duration)
	}

	if req.TopK < 0 {
		return fmt.Errorf("%w: got %d", ErrTopKNegative, req.TopK)
	}

	if req.TopP < 0.0 || req.TopP > 1.0 {
		return fmt.Errorf("%w: got %f", ErrTopPRange, req.TopP)
	}

	if req.Temperature < 0.0 {
		return fmt.Errorf("%w: got %f", ErrTemperatureRange, req.Temperature)
	}

	if req.ClassifierFreeGuidance < 1.0 {
		return fmt.Errorf("%w: got %f", ErrGuidanceRange, req.ClassifierFreeGuidance)
	}

	return nil
}
