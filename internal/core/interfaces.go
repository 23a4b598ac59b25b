// Package core defines the core business logic and interfaces for the
// music generation service.
package core

import (
	"context"

	"github.com/book-expert/musicgen-service/internal/audio"
)

// ObjectStore defines the interface for interacting with a key-value blob store.
type ObjectStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, data []byte) error
}

// WeightsFetcher ensures a named weight bundle is present under a destination
// directory before a model that needs it is loaded.
type WeightsFetcher interface {
	Ensure(ctx context.Context, bundle, destDir string) error
}

// Tokens is the opaque discrete-code output of a token-returning generation
// call. It is only ever produced by a MusicModel and consumed by a
// TokenDecoder; this service never inspects it.
type Tokens []byte

// GenerationParams configures the underlying model for subsequent generation
// calls. Duration is in seconds and bounds a single call.
type GenerationParams struct {
	Duration    int
	TopK        int
	TopP        float64
	Temperature float64
	CFGCoef     float64
	Seed        int64
}

// MusicModel is the surface of the underlying generative model consumed by
// the predictor. Configure is stateful: it applies to every generation call
// that follows it on the same handle.
type MusicModel interface {
	Configure(params GenerationParams) error
	SampleRate() int
	Channels() int
	Generate(ctx context.Context, prompt string) (*audio.Waveform, Tokens, error)
	GenerateContinuation(
		ctx context.Context,
		tail *audio.Waveform,
		prompt string,
	) (*audio.Waveform, Tokens, error)
	GenerateWithChroma(
		ctx context.Context,
		prompt string,
		melody *audio.Waveform,
	) (*audio.Waveform, Tokens, error)
}

// TokenDecoder turns the discrete codes of a generation call into a waveform.
// It is the surface of the secondary multi-band diffusion decoder.
type TokenDecoder interface {
	TokensToWav(ctx context.Context, tokens Tokens) (*audio.Waveform, error)
}

// MusicPredictor is the single end-to-end prediction operation exposed by
// this service.
type MusicPredictor interface {
	Predict(ctx context.Context, req GenerationRequest) (*PredictionResult, error)
}
