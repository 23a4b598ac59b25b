// main package for the musicgen CLI, which runs one prediction locally
// without going through NATS.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/musicgen-service/internal/audio"
	"github.com/book-expert/musicgen-service/internal/config"
	"github.com/book-expert/musicgen-service/internal/core"
	"github.com/book-expert/musicgen-service/internal/musicgen"
	"github.com/book-expert/musicgen-service/internal/weights"
)

// Flag names.
const (
	flagPrompt       = "prompt"
	flagInputAudio   = "input-audio"
	flagDuration     = "duration"
	flagModelVersion = "model-version"
	flagMBD          = "multi-band-diffusion"
	flagNorm         = "normalization-strategy"
	flagTopK         = "top-k"
	flagTopP         = "top-p"
	flagTemperature  = "temperature"
	flagGuidance     = "classifier-free-guidance"
	flagFormat       = "output-format"
	flagSeed         = "seed"
	flagOutputDir    = "output-dir"
)

// Flag descriptions.
const (
	flagPromptDesc       = "A description of the music to generate"
	flagInputAudioDesc   = "Audio file whose melody guides generation (wav or mp3)"
	flagDurationDesc     = "Duration of the generated audio in seconds"
	flagModelVersionDesc = "Model variant: stereo-melody-large, stereo-large, melody-large, large"
	flagMBDDesc          = "Decode tokens with multi-band diffusion (non-stereo variants only)"
	flagNormDesc         = "Normalization strategy: loudness, clip, peak, rms"
	flagTopKDesc         = "Reduce sampling to the k most likely tokens"
	flagTopPDesc         = "Reduce sampling to tokens with cumulative probability p (0 = use top-k)"
	flagTemperatureDesc  = "Sampling temperature"
	flagGuidanceDesc     = "Classifier-free guidance coefficient"
	flagFormatDesc       = "Output format: wav or mp3"
	flagSeedDesc         = "Seed for the random number generator (-1 = random)"
	flagOutputDirDesc    = "Directory for generated audio (defaults to configured output dir)"
)

// cliFlags holds the parsed command-line flag values.
type cliFlags struct {
	prompt       string
	inputAudio   string
	duration     int
	modelVersion string
	mbd          bool
	norm         string
	topK         int
	topP         float64
	temperature  float64
	guidance     float64
	format       string
	seed         int64
	outputDir    string
}

func main() {
	err := run()
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func run() error {
	flags := parseFlags()

	bootstrapLog, err := logger.New(os.TempDir(), "musicgen-cli.log")
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	defer func() {
		closeErr := bootstrapLog.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing logger: %v\n", closeErr)
		}
	}()

	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	req, err := buildRequest(flags)
	if err != nil {
		return err
	}

	result, err := predict(cfg, bootstrapLog, flags, req)
	if err != nil {
		return err
	}

	fmt.Printf("Generated: %s (seed %d, %.1fs)\n", result.Path, result.Seed, result.Duration)

	return nil
}

func parseFlags() cliFlags {
	defaults := core.DefaultRequest()

	var flags cliFlags

	flag.StringVar(&flags.prompt, flagPrompt, "", flagPromptDesc)
	flag.StringVar(&flags.inputAudio, flagInputAudio, "", flagInputAudioDesc)
	flag.IntVar(&flags.duration, flagDuration, defaults.Duration, flagDurationDesc)
	flag.StringVar(
		&flags.modelVersion, flagModelVersion,
		string(defaults.Variant), flagModelVersionDesc,
	)
	flag.BoolVar(&flags.mbd, flagMBD, defaults.MultiBandDiffusion, flagMBDDesc)
	flag.StringVar(&flags.norm, flagNorm, string(defaults.Normalization), flagNormDesc)
	flag.IntVar(&flags.topK, flagTopK, defaults.TopK, flagTopKDesc)
	flag.Float64Var(&flags.topP, flagTopP, defaults.TopP, flagTopPDesc)
	flag.Float64Var(&flags.temperature, flagTemperature, defaults.Temperature, flagTemperatureDesc)
	flag.Float64Var(&flags.guidance, flagGuidance, defaults.ClassifierFreeGuidance, flagGuidanceDesc)
	flag.StringVar(&flags.format, flagFormat, string(defaults.OutputFormat), flagFormatDesc)
	flag.Int64Var(&flags.seed, flagSeed, defaults.Seed, flagSeedDesc)
	flag.StringVar(&flags.outputDir, flagOutputDir, "", flagOutputDirDesc)
	flag.Parse()

	return flags
}

// buildRequest maps the CLI flags onto a generation request, loading the
// conditioning audio file when one was given.
func buildRequest(flags cliFlags) (core.GenerationRequest, error) {
	req := core.GenerationRequest{
		Variant:                core.Variant(flags.modelVersion),
		Prompt:                 flags.prompt,
		ConditioningAudio:      nil,
		Duration:               flags.duration,
		MultiBandDiffusion:     flags.mbd,
		Normalization:          audio.Strategy(flags.norm),
		TopK:                   flags.topK,
		TopP:                   flags.topP,
		Temperature:            flags.temperature,
		ClassifierFreeGuidance: flags.guidance,
		OutputFormat:           core.OutputFormat(flags.format),
		Seed:                   flags.seed,
	}

	if flags.inputAudio != "" {
		wave, err := audio.ReadFile(flags.inputAudio)
		if err != nil {
			return req, fmt.Errorf("failed to load conditioning audio: %w", err)
		}

		req.ConditioningAudio = wave
	}

	validationErr := musicgen.ValidateRequest(req)
	if validationErr != nil {
		flag.Usage()

		return req, validationErr
	}

	return req, nil
}

func predict(
	cfg *config.Config,
	log *logger.Logger,
	flags cliFlags,
	req core.GenerationRequest,
) (*core.PredictionResult, error) {
	fetcher, err := weights.New(cfg.MusicGen.WeightsBaseURL, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create weights downloader: %w", err)
	}

	outputDir := flags.outputDir
	if outputDir == "" {
		outputDir = cfg.Paths.OutputDir
	}

	predictor := musicgen.NewPredictor(musicgen.PredictorConfig{
		BinaryPath: cfg.MusicGen.BinaryPath,
		ModelDir:   cfg.MusicGen.ModelDir,
		OutputDir:  outputDir,
	}, fetcher, log)

	ctx := context.Background()

	if cfg.MusicGen.TimeoutSeconds > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(
			ctx, time.Duration(cfg.MusicGen.TimeoutSeconds)*time.Second,
		)
		defer cancel()
	}

	setupErr := predictor.Setup(ctx)
	if setupErr != nil {
		return nil, fmt.Errorf("failed to set up predictor: %w", setupErr)
	}

	result, predictErr := predictor.Predict(ctx, req)
	if predictErr != nil {
		return nil, fmt.Errorf("failed to generate music: %w", predictErr)
	}

	return result, nil
}
