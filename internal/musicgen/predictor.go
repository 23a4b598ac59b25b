package musicgen

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/musicgen-service/internal/audio"
	"github.com/book-expert/musicgen-service/internal/core"
	"github.com/google/uuid"
)

// Directory permissions for the output directory.
const outputDirPermissions = 0o750

// Named weight bundles and their locations under the model directory.
const (
	bundleDiffusionDecoder = "models--facebook--multiband-diffusion"
	hubSubDir              = "hub"
)

// sharedWeightBundles are required regardless of the selected variant:
// the decoder checkpoint, the small reference model, the compression model,
// and the text encoder.
var sharedWeightBundles = []struct {
	bundle string
	subDir string
}{
	{bundle: "955717e8-8726e21a.th", subDir: "hub/checkpoints"},
	{bundle: "models--facebook--musicgen-small", subDir: hubSubDir},
	{bundle: "models--facebook--encodec_32khz", subDir: hubSubDir},
	{bundle: "models--t5-base", subDir: hubSubDir},
}

// variantBundle names the weight bundle of a model variant.
func variantBundle(variant core.Variant) string {
	return "models--facebook--musicgen-" + string(variant)
}

// DecoderLoader loads the optional multi-band diffusion decoder.
type DecoderLoader func(ctx context.Context) (core.TokenDecoder, error)

// PredictorConfig configures a Predictor.
type PredictorConfig struct {
	BinaryPath string
	ModelDir   string
	OutputDir  string
}

// Predictor implements core.MusicPredictor. Models are cached per variant
// and the diffusion decoder is loaded once on first need; both follow the
// same mutex-guarded load-once discipline.
type Predictor struct {
	config        PredictorConfig
	weights       core.WeightsFetcher
	cache         *ModelCache
	decoderMu     sync.Mutex
	decoder       core.TokenDecoder
	decoderLoader DecoderLoader
	log           *logger.Logger
}

// NewPredictor creates a predictor backed by the external inference binary.
func NewPredictor(
	cfg PredictorConfig,
	weights core.WeightsFetcher,
	log *logger.Logger,
) *Predictor {
	modelLoader := func(ctx context.Context, variant core.Variant) (core.MusicModel, error) {
		ensureErr := weights.Ensure(
			ctx,
			variantBundle(variant),
			filepath.Join(cfg.ModelDir, hubSubDir),
		)
		if ensureErr != nil {
			return nil, fmt.Errorf("failed to ensure weights for '%s': %w", variant, ensureErr)
		}

		return NewBinaryEngine(EngineConfig{
			BinaryPath: cfg.BinaryPath,
			ModelDir:   cfg.ModelDir,
			Variant:    variant,
		}, log)
	}

	decoderLoader := func(ctx context.Context) (core.TokenDecoder, error) {
		ensureErr := weights.Ensure(
			ctx,
			bundleDiffusionDecoder,
			filepath.Join(cfg.ModelDir, hubSubDir),
		)
		if ensureErr != nil {
			return nil, fmt.Errorf("failed to ensure diffusion weights: %w", ensureErr)
		}

		return NewBinaryDiffusionDecoder(cfg.BinaryPath, cfg.ModelDir, log)
	}

	return NewPredictorWithLoaders(cfg, weights, modelLoader, decoderLoader, log)
}

// NewPredictorWithLoaders creates a predictor with injected model and
// decoder loaders. This constructor is primarily for testing, allowing fake
// models while keeping the orchestration behavior identical.
func NewPredictorWithLoaders(
	cfg PredictorConfig,
	weights core.WeightsFetcher,
	modelLoader ModelLoader,
	decoderLoader DecoderLoader,
	log *logger.Logger,
) *Predictor {
	return &Predictor{
		config:        cfg,
		weights:       weights,
		cache:         NewModelCache(modelLoader),
		decoderMu:     sync.Mutex{},
		decoder:       nil,
		decoderLoader: decoderLoader,
		log:           log,
	}
}

// Setup pre-fetches the weight bundles shared by all variants, so the first
// prediction does not pay for them.
func (p *Predictor) Setup(ctx context.Context) error {
	start := time.Now()

	for _, entry := range sharedWeightBundles {
		destDir := filepath.Join(p.config.ModelDir, entry.subDir)

		ensureErr := p.weights.Ensure(ctx, entry.bundle, destDir)
		if ensureErr != nil {
			return fmt.Errorf("failed to ensure bundle '%s': %w", entry.bundle, ensureErr)
		}
	}

	p.log.Info("Setup time: %.2fs", time.Since(start).Seconds())

	return nil
}

// Predict runs one end-to-end generation and returns the path of the
// produced audio file along with the seed that was used.
func (p *Predictor) Predict(
	ctx context.Context,
	req core.GenerationRequest,
) (*core.PredictionResult, error) {
	validationErr := ValidateRequest(req)
	if validationErr != nil {
		return nil, validationErr
	}

	seed, seedErr := resolveSeed(req.Seed)
	if seedErr != nil {
		return nil, seedErr
	}

	p.log.Info("Using seed %d", seed)

	model, loadErr := p.cache.GetOrLoad(ctx, req.Variant)
	if loadErr != nil {
		return nil, loadErr
	}

	var decoder core.TokenDecoder

	if req.MultiBandDiffusion {
		var decoderErr error

		decoder, decoderErr = p.diffusionDecoder(ctx)
		if decoderErr != nil {
			return nil, decoderErr
		}
	}

	wave, generateErr := p.generate(ctx, model, decoder, req, seed)
	if generateErr != nil {
		return nil, generateErr
	}

	path, writeErr := p.writeOutput(ctx, wave, req)
	if writeErr != nil {
		return nil, writeErr
	}

	return &core.PredictionResult{
		Path:       path,
		Seed:       seed,
		Duration:   wave.Duration(),
		SampleRate: wave.SampleRate,
		Channels:   wave.Channels(),
	}, nil
}

// generate dispatches between the conditioning-audio single call and the
// segmented long-form loop.
func (p *Predictor) generate(
	ctx context.Context,
	model core.MusicModel,
	decoder core.TokenDecoder,
	req core.GenerationRequest,
	seed int64,
) (*audio.Waveform, error) {
	if req.ConditioningAudio != nil {
		return p.generateWithMelody(ctx, model, decoder, req, seed)
	}

	return p.generateLongForm(ctx, model, decoder, req, seed)
}

// diffusionDecoder returns the lazily loaded multi-band diffusion decoder.
func (p *Predictor) diffusionDecoder(ctx context.Context) (core.TokenDecoder, error) {
	p.decoderMu.Lock()
	defer p.decoderMu.Unlock()

	if p.decoder != nil {
		return p.decoder, nil
	}

	p.log.Info("Loading multi-band diffusion decoder...")

	decoder, err := p.decoderLoader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load diffusion decoder: %w", err)
	}

	p.decoder = decoder
	p.log.Info("Multi-band diffusion decoder loaded.")

	return decoder, nil
}

// writeOutput normalizes the waveform, writes the lossless intermediate
// file, and transcodes it when a lossy format was requested. The WAV is
// removed only after a successful transcode.
func (p *Predictor) writeOutput(
	ctx context.Context,
	wave *audio.Waveform,
	req core.GenerationRequest,
) (string, error) {
	dirErr := os.MkdirAll(p.config.OutputDir, outputDirPermissions)
	if dirErr != nil {
		return "", fmt.Errorf("failed to create output directory: %w", dirErr)
	}

	normalizeErr := audio.Normalize(wave, req.Normalization)
	if normalizeErr != nil {
		return "", fmt.Errorf("failed to normalize output: %w", normalizeErr)
	}

	base := uuid.NewString()
	wavPath := filepath.Join(p.config.OutputDir, base+".wav")

	writeErr := audio.WriteWAVFile(wavPath, wave)
	if writeErr != nil {
		return "", writeErr
	}

	if req.OutputFormat != core.FormatMP3 {
		return wavPath, nil
	}

	mp3Path := filepath.Join(p.config.OutputDir, base+".mp3")

	transcodeErr := audio.TranscodeToMP3(ctx, wavPath, mp3Path)
	if transcodeErr != nil {
		// The intermediate WAV stays behind on purpose; its path is in the error.
		return "", fmt.Errorf("failed to transcode '%s': %w", wavPath, transcodeErr)
	}

	removeErr := os.Remove(wavPath)
	if removeErr != nil {
		p.log.Warn("Failed to remove intermediate WAV '%s': %v", wavPath, removeErr)
	}

	return mp3Path, nil
}
