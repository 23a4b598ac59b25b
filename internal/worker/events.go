// Package worker provides a NATS worker that processes music generation jobs.
package worker

import (
	"github.com/book-expert/events"
)

// GenerationRequestedEvent asks the service to generate one piece of music.
// InputAudioKey, when set, points at conditioning audio in the object store.
// The shared events module only defines the book-pipeline schemas, so the
// music payloads live here; the header is reused so workflow correlation
// works across services.
type GenerationRequestedEvent struct {
	Header                 events.EventHeader `json:"header"`
	ModelVersion           string             `json:"model_version"`
	Prompt                 string             `json:"prompt"`
	InputAudioKey          string             `json:"input_audio_key,omitempty"`
	Duration               int                `json:"duration"`
	MultiBandDiffusion     bool               `json:"multi_band_diffusion"`
	NormalizationStrategy  string             `json:"normalization_strategy"`
	TopK                   int                `json:"top_k"`
	TopP                   float64            `json:"top_p"`
	Temperature            float64            `json:"temperature"`
	ClassifierFreeGuidance float64            `json:"classifier_free_guidance"`
	OutputFormat           string             `json:"output_format"`
	Seed                   int64              `json:"seed"`
}

// MusicGeneratedEvent reports a finished generation. Seed is the seed that
// was actually used, so the result can be reproduced.
type MusicGeneratedEvent struct {
	Header   events.EventHeader `json:"header"`
	AudioKey string             `json:"audio_key"`
	Seed     int64              `json:"seed"`
	Duration float64            `json:"duration"`
}
