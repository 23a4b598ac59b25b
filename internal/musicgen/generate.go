package musicgen

import (
	"context"
	"fmt"

	"github.com/book-expert/musicgen-service/internal/audio"
	"github.com/book-expert/musicgen-service/internal/core"
)

// Fixed constants of the underlying model's effective context window.
const (
	// MaxSegmentSeconds is the longest audio one model call can produce.
	MaxSegmentSeconds = 30
	// OverlapSeconds is the continuation context fed back between segments.
	OverlapSeconds = 5
)

// generateLongForm produces audio of the requested duration by stitching
// bounded-length segments. Each continuation re-generates the last
// OverlapSeconds of the accumulated waveform as context; that overlap is
// trimmed from the accumulation before the new segment is appended, so it
// appears exactly once in the result.
//
// The remaining-duration bookkeeping deliberately matches the original
// model wrapper: the first call decrements by a full MaxSegmentSeconds even
// when less was generated, so short requests finish in one call and long
// requests land within OverlapSeconds of the target.
func (p *Predictor) generateLongForm(
	ctx context.Context,
	model core.MusicModel,
	decoder core.TokenDecoder,
	req core.GenerationRequest,
	seed int64,
) (*audio.Waveform, error) {
	segmentSeconds := MaxSegmentSeconds

	initialSeconds := req.Duration
	if initialSeconds > segmentSeconds {
		initialSeconds = segmentSeconds
	}

	configureErr := configureModel(model, req, initialSeconds, seed)
	if configureErr != nil {
		return nil, configureErr
	}

	wave, tokens, generateErr := model.Generate(ctx, req.Prompt)
	if generateErr != nil {
		return nil, fmt.Errorf("failed to generate first segment: %w", generateErr)
	}

	wave, decodeErr := decodeSegment(ctx, decoder, wave, tokens)
	if decodeErr != nil {
		return nil, decodeErr
	}

	remaining := req.Duration - MaxSegmentSeconds
	overlapFrames := OverlapSeconds * model.SampleRate()

	for remaining > 0 {
		tail := wave.Tail(overlapFrames)

		next, tokens, continueErr := model.GenerateContinuation(ctx, tail, req.Prompt)
		if continueErr != nil {
			return nil, fmt.Errorf("failed to generate continuation: %w", continueErr)
		}

		next, decodeErr = decodeSegment(ctx, decoder, next, tokens)
		if decodeErr != nil {
			return nil, decodeErr
		}

		wave = wave.TrimTail(overlapFrames)

		appendErr := wave.Append(next)
		if appendErr != nil {
			return nil, fmt.Errorf("failed to stitch segment: %w", appendErr)
		}

		// Only segmentSeconds-OverlapSeconds of the new segment is net new
		// audio; the rest re-generated the trimmed overlap.
		remaining -= segmentSeconds - OverlapSeconds

		if remaining > 0 && remaining < segmentSeconds {
			segmentSeconds = remaining + OverlapSeconds

			configureErr = configureModel(model, req, segmentSeconds, seed)
			if configureErr != nil {
				return nil, configureErr
			}
		}
	}

	return wave, nil
}

// generateWithMelody runs the single-call conditioning-audio path for the
// full requested duration.
func (p *Predictor) generateWithMelody(
	ctx context.Context,
	model core.MusicModel,
	decoder core.TokenDecoder,
	req core.GenerationRequest,
	seed int64,
) (*audio.Waveform, error) {
	configureErr := configureModel(model, req, req.Duration, seed)
	if configureErr != nil {
		return nil, configureErr
	}

	wave, tokens, generateErr := model.GenerateWithChroma(
		ctx, req.Prompt, req.ConditioningAudio,
	)
	if generateErr != nil {
		return nil, fmt.Errorf("failed to generate with conditioning audio: %w", generateErr)
	}

	return decodeSegment(ctx, decoder, wave, tokens)
}

// decodeSegment substitutes the diffusion-decoded waveform for the model's
// default decode when a decoder is active. This only changes how a segment's
// samples are produced, never the stitching around it.
func decodeSegment(
	ctx context.Context,
	decoder core.TokenDecoder,
	wave *audio.Waveform,
	tokens core.Tokens,
) (*audio.Waveform, error) {
	if decoder == nil {
		return wave, nil
	}

	decoded, err := decoder.TokensToWav(ctx, tokens)
	if err != nil {
		return nil, fmt.Errorf("failed to decode tokens: %w", err)
	}

	return decoded, nil
}

// configureModel applies the request's sampling parameters and a segment
// duration to the model.
func configureModel(
	model core.MusicModel,
	req core.GenerationRequest,
	durationSeconds int,
	seed int64,
) error {
	err := model.Configure(core.GenerationParams{
		Duration:    durationSeconds,
		TopK:        req.TopK,
		TopP:        req.TopP,
		Temperature: req.Temperature,
		CFGCoef:     req.ClassifierFreeGuidance,
		Seed:        seed,
	})
	if err != nil {
		return fmt.Errorf("failed to configure model: %w", err)
	}

	return nil
}
