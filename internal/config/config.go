// Package config provides the configuration structure for the
// musicgen-service.
package config

import (
	"fmt"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
)

// NATSConfig holds the configuration for NATS.
type NATSConfig struct {
	URL                        string `toml:"url"`
	MusicStreamName            string `toml:"music_stream_name"`
	MusicConsumerName          string `toml:"music_consumer_name"`
	GenerationRequestedSubject string `toml:"generation_requested_subject"`
	MusicGeneratedSubject      string `toml:"music_generated_subject"`
	AudioObjectStoreBucket     string `toml:"audio_object_store_bucket"`
}

// MusicGenConfig holds the specific configuration for the generation
// pipeline.
type MusicGenConfig struct {
	BinaryPath     string `toml:"binary_path"`
	ModelDir       string `toml:"model_dir"`
	WeightsBaseURL string `toml:"weights_base_url"`
	DefaultVariant string `toml:"default_variant"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	BaseLogsDir string `toml:"base_logs_dir"`
	OutputDir   string `toml:"output_dir"`
}

// Config is the root configuration structure.
type Config struct {
	NATS     NATSConfig     `toml:"nats"`
	MusicGen MusicGenConfig `toml:"musicgen_service"`
	Paths    PathsConfig    `toml:"paths"`
}

// Load loads the configuration for the musicgen-service.
func Load(log *logger.Logger) (*Config, error) {
	var cfg Config

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	return &cfg, nil
}
