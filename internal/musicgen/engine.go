package musicgen

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/book-expert/logger"
	"github.com/book-expert/musicgen-service/internal/audio"
	"github.com/book-expert/musicgen-service/internal/core"
)

// The effective context window of the underlying model.
const (
	// ModelSampleRate is the fixed output sample rate of the model family.
	ModelSampleRate = 32000

	monoChannels   = 1
	stereoChannels = 2
)

// Static engine errors.
var (
	ErrBinaryPathEmpty = errors.New("inference binary path cannot be empty")
	ErrModelDirEmpty   = errors.New("model directory cannot be empty")
	ErrNoOutput        = errors.New("inference binary produced no output file")
	ErrNoTokens        = errors.New("inference binary produced no token file")
)

// EngineConfig configures a BinaryEngine.
type EngineConfig struct {
	BinaryPath string
	ModelDir   string
	Variant    core.Variant
}

// BinaryEngine implements core.MusicModel by invoking the external musicgen
// inference binary. Generation parameters set via Configure are carried into
// every subsequent call, mirroring the stateful configuration of the
// underlying model.
type BinaryEngine struct {
	config EngineConfig
	params core.GenerationParams
	log    *logger.Logger
}

// NewBinaryEngine creates an engine for one model variant.
func NewBinaryEngine(cfg EngineConfig, log *logger.Logger) (*BinaryEngine, error) {
	if cfg.BinaryPath == "" {
		return nil, ErrBinaryPathEmpty
	}

	if cfg.ModelDir == "" {
		return nil, ErrModelDirEmpty
	}

	if !cfg.Variant.Valid() {
		return nil, fmt.Errorf("%w: '%s'", ErrUnknownVariant, cfg.Variant)
	}

	return &BinaryEngine{
		config: cfg,
		params: core.GenerationParams{
			Duration:    0,
			TopK:        0,
			TopP:        0,
			Temperature: 0,
			CFGCoef:     0,
			Seed:        0,
		},
		log: log,
	}, nil
}

// Configure stores the generation parameters for subsequent calls.
func (e *BinaryEngine) Configure(params core.GenerationParams) error {
	e.params = params

	return nil
}

// SampleRate returns the fixed model sample rate.
func (e *BinaryEngine) SampleRate() int {
	return ModelSampleRate
}

// Channels returns the channel count of the variant's output.
func (e *BinaryEngine) Channels() int {
	if e.config.Variant.Stereo() {
		return stereoChannels
	}

	return monoChannels
}

// Generate produces a waveform conditioned only on the prompt.
func (e *BinaryEngine) Generate(
	ctx context.Context,
	prompt string,
) (*audio.Waveform, core.Tokens, error) {
	return e.invoke(ctx, prompt, nil, "")
}

// GenerateContinuation produces a waveform that continues the supplied tail.
func (e *BinaryEngine) GenerateContinuation(
	ctx context.Context,
	tail *audio.Waveform,
	prompt string,
) (*audio.Waveform, core.Tokens, error) {
	return e.invoke(ctx, prompt, tail, flagContinuation)
}

// GenerateWithChroma produces a waveform guided by the melody of the
// supplied conditioning audio.
func (e *BinaryEngine) GenerateWithChroma(
	ctx context.Context,
	prompt string,
	melody *audio.Waveform,
) (*audio.Waveform, core.Tokens, error) {
	return e.invoke(ctx, prompt, melody, flagMelody)
}

// Inference binary flags.
const (
	flagContinuation = "--continuation"
	flagMelody       = "--melody"
)

// invoke runs one generation call against the inference binary. The
// reference waveform, when present, is written to a temp WAV and passed
// under refFlag.
func (e *BinaryEngine) invoke(
	ctx context.Context,
	prompt string,
	reference *audio.Waveform,
	refFlag string,
) (*audio.Waveform, core.Tokens, error) {
	workDir, err := os.MkdirTemp("", "musicgen-*")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create work directory: %w", err)
	}

	defer func() {
		removeErr := os.RemoveAll(workDir)
		if removeErr != nil {
			e.log.Warn("Failed to remove work directory '%s': %v", workDir, removeErr)
		}
	}()

	outputPath := filepath.Join(workDir, "segment.wav")
	tokensPath := filepath.Join(workDir, "segment.tokens")

	args := e.buildArgs(prompt, outputPath, tokensPath)

	if reference != nil {
		referencePath := filepath.Join(workDir, "reference.wav")

		writeErr := audio.WriteWAVFile(referencePath, reference)
		if writeErr != nil {
			return nil, nil, fmt.Errorf("failed to write reference audio: %w", writeErr)
		}

		args = append(args, refFlag, referencePath)
	}

	runErr := runBinary(ctx, e.config.BinaryPath, args)
	if runErr != nil {
		return nil, nil, runErr
	}

	return collectOutput(outputPath, tokensPath)
}

// buildArgs assembles the common flag set for one generation call.
func (e *BinaryEngine) buildArgs(prompt, outputPath, tokensPath string) []string {
	return []string{
		"--model", string(e.config.Variant),
		"--model_dir", e.config.ModelDir,
		"--prompt", prompt,
		"--duration", strconv.Itoa(e.params.Duration),
		"--top_k", strconv.Itoa(e.params.TopK),
		"--top_p", fmt.Sprintf("%.2f", e.params.TopP),
		"--temp", fmt.Sprintf("%.2f", e.params.Temperature),
		"--cfg_coef", fmt.Sprintf("%.2f", e.params.CFGCoef),
		"--seed", strconv.FormatInt(e.params.Seed, 10),
		"--output", outputPath,
		"--export_tokens", tokensPath,
	}
}

// collectOutput reads the waveform and token blob a successful run left
// behind. A missing token file is fatal only for callers that need tokens,
// so it is reported as empty tokens rather than an error.
func collectOutput(outputPath, tokensPath string) (*audio.Waveform, core.Tokens, error) {
	stat, statErr := os.Stat(outputPath)
	if statErr != nil || stat.Size() == 0 {
		return nil, nil, fmt.Errorf("%w: %s", ErrNoOutput, outputPath)
	}

	wave, readErr := audio.ReadWAVFile(outputPath)
	if readErr != nil {
		return nil, nil, fmt.Errorf("failed to read generated segment: %w", readErr)
	}

	tokens, tokensErr := os.ReadFile(tokensPath)
	if tokensErr != nil {
		tokens = nil
	}

	return wave, core.Tokens(tokens), nil
}
