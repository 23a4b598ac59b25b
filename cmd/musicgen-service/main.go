// main package for the musicgen-service
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/book-expert/logger"
	"github.com/book-expert/musicgen-service/internal/config"
	"github.com/book-expert/musicgen-service/internal/musicgen"
	"github.com/book-expert/musicgen-service/internal/objectstore"
	"github.com/book-expert/musicgen-service/internal/weights"
	"github.com/book-expert/musicgen-service/internal/worker"
	"github.com/nats-io/nats.go"
)

func setupLogger(logPath string) (*logger.Logger, error) {
	log, err := logger.New(logPath, "musicgen-service.log")
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return log, nil
}

func run() error {
	bootstrapLog, err := setupLogger(os.TempDir())
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to create bootstrap logger: %v\n", err)

		return err
	}

	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return fmt.Errorf("failed to load configuration: %w", err)
	}

	finalLog, err := setupLogger(cfg.Paths.BaseLogsDir)
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return fmt.Errorf("failed to create final logger: %w", err)
	}

	defer func() {
		closeErr := finalLog.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing final logger: %v\n", closeErr)
		}
	}()

	return serve(cfg, finalLog)
}

// serve wires the predictor, NATS, and the worker, then blocks until the
// process is signalled to stop.
func serve(cfg *config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(
		context.Background(), os.Interrupt, syscall.SIGTERM,
	)
	defer stop()

	fetcher, err := weights.New(cfg.MusicGen.WeightsBaseURL, log)
	if err != nil {
		return fmt.Errorf("failed to create weights downloader: %w", err)
	}

	predictor := musicgen.NewPredictor(musicgen.PredictorConfig{
		BinaryPath: cfg.MusicGen.BinaryPath,
		ModelDir:   cfg.MusicGen.ModelDir,
		OutputDir:  cfg.Paths.OutputDir,
	}, fetcher, log)

	setupErr := predictor.Setup(ctx)
	if setupErr != nil {
		return fmt.Errorf("failed to set up predictor: %w", setupErr)
	}

	natsConnection, err := nats.Connect(cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS at '%s': %w", cfg.NATS.URL, err)
	}

	defer natsConnection.Close()

	jetstreamContext, err := natsConnection.JetStream()
	if err != nil {
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	store, err := objectstore.New(jetstreamContext, cfg.NATS.AudioObjectStoreBucket)
	if err != nil {
		return fmt.Errorf("failed to create object store: %w", err)
	}

	natsWorker, err := worker.NewNatsWorker(
		natsConnection, cfg.NATS.GenerationRequestedSubject, store, predictor, log,
	)
	if err != nil {
		return fmt.Errorf("failed to create worker: %w", err)
	}

	log.System(
		"MusicGen-Service successfully initialized. Listening for jobs on subject: %s",
		cfg.NATS.GenerationRequestedSubject,
	)

	runErr := natsWorker.Run(ctx)
	if runErr != nil {
		return fmt.Errorf("worker stopped with error: %w", runErr)
	}

	return nil
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Service exited with error: %v\n", err)
		os.Exit(1)
	}
}
