package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/musicgen-service/internal/audio"
	"github.com/book-expert/musicgen-service/internal/core"
	"github.com/book-expert/musicgen-service/internal/musicgen"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// Long-form generation is slow; jobs get a generous deadline.
const handleMessageTimeout = 30 * time.Minute

// NatsWorker listens for generation jobs on a NATS subject and processes
// them one at a time, which also serializes access to the model cache.
type NatsWorker struct {
	natsConnection *nats.Conn
	subject        string
	store          core.ObjectStore
	predictor      core.MusicPredictor
	log            *logger.Logger
}

// NewNatsWorker creates a new instance of a NATS worker.
func NewNatsWorker(
	natsConnection *nats.Conn,
	subject string,
	store core.ObjectStore,
	predictor core.MusicPredictor,
	log *logger.Logger,
) (*NatsWorker, error) {
	return &NatsWorker{
		natsConnection: natsConnection,
		subject:        subject,
		store:          store,
		predictor:      predictor,
		log:            log,
	}, nil
}

// Run starts the worker and begins listening for messages.
func (w *NatsWorker) Run(ctx context.Context) error {
	sub, err := w.natsConnection.Subscribe(w.subject, w.handleMessage)
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", w.subject, err)
	}

	<-ctx.Done()

	drainErr := sub.Drain()
	if drainErr != nil {
		return fmt.Errorf("failed to drain subscription: %w", drainErr)
	}

	return nil
}

func (w *NatsWorker) handleMessage(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), handleMessageTimeout)
	defer cancel()

	var event GenerationRequestedEvent

	err := json.Unmarshal(msg.Data, &event)
	if err != nil {
		w.log.Error("Failed to unmarshal event: %v", err)

		return
	}

	result, processErr := w.processJob(ctx, &event)
	if processErr != nil {
		w.log.Error(
			"Failed to process generation job for workflow %s: %v",
			event.Header.WorkflowID, processErr,
		)

		return
	}

	replyEvent := &MusicGeneratedEvent{
		Header:   event.Header,
		AudioKey: result.audioKey,
		Seed:     result.seed,
		Duration: result.duration,
	}

	replyErr := w.publishReplyEvent(msg, replyEvent)
	if replyErr != nil {
		w.log.Error(
			"Failed to publish reply event for workflow %s: %v",
			event.Header.WorkflowID, replyErr,
		)
	}
}

type jobResult struct {
	audioKey string
	seed     int64
	duration float64
}

// processJob builds the generation request, runs the predictor, and uploads
// the produced file to the object store.
func (w *NatsWorker) processJob(
	ctx context.Context,
	event *GenerationRequestedEvent,
) (*jobResult, error) {
	req, buildErr := w.buildRequest(ctx, event)
	if buildErr != nil {
		return nil, buildErr
	}

	validationErr := musicgen.ValidateRequest(req)
	if validationErr != nil {
		w.log.Error(
			"Invalid generation request for workflow %s: %v",
			event.Header.WorkflowID, validationErr,
		)

		return nil, validationErr
	}

	result, predictErr := w.predictor.Predict(ctx, req)
	if predictErr != nil {
		return nil, fmt.Errorf("failed to generate music: %w", predictErr)
	}

	audioData, readErr := os.ReadFile(result.Path)
	if readErr != nil {
		return nil, fmt.Errorf("failed to read generated file '%s': %w", result.Path, readErr)
	}

	audioKey := uuid.NewString() + filepath.Ext(result.Path)

	uploadErr := w.store.Upload(ctx, audioKey, audioData)
	if uploadErr != nil {
		return nil, fmt.Errorf("failed to upload audio data for key '%s': %w", audioKey, uploadErr)
	}

	return &jobResult{
		audioKey: audioKey,
		seed:     result.Seed,
		duration: result.Duration,
	}, nil
}

// buildRequest maps the wire event onto a generation request, downloading
// and decoding conditioning audio when the event references any.
func (w *NatsWorker) buildRequest(
	ctx context.Context,
	event *GenerationRequestedEvent,
) (core.GenerationRequest, error) {
	req := core.DefaultRequest()
	req.Variant = core.Variant(event.ModelVersion)
	req.Prompt = event.Prompt
	req.MultiBandDiffusion = event.MultiBandDiffusion
	req.Seed = event.Seed

	if event.Duration != 0 {
		req.Duration = event.Duration
	}

	if event.NormalizationStrategy != "" {
		req.Normalization = audio.Strategy(event.NormalizationStrategy)
	}

	if event.OutputFormat != "" {
		req.OutputFormat = core.OutputFormat(event.OutputFormat)
	}

	if event.TopK != 0 {
		req.TopK = event.TopK
	}

	req.TopP = event.TopP

	if event.Temperature != 0 {
		req.Temperature = event.Temperature
	}

	if event.ClassifierFreeGuidance != 0 {
		req.ClassifierFreeGuidance = event.ClassifierFreeGuidance
	}

	if event.InputAudioKey == "" {
		return req, nil
	}

	audioData, downloadErr := w.store.Download(ctx, event.InputAudioKey)
	if downloadErr != nil {
		return req, fmt.Errorf(
			"failed to download conditioning audio '%s': %w",
			event.InputAudioKey, downloadErr,
		)
	}

	wave, decodeErr := decodeConditioningAudio(event.InputAudioKey, audioData)
	if decodeErr != nil {
		return req, decodeErr
	}

	req.ConditioningAudio = wave

	return req, nil
}

// decodeConditioningAudio picks the decoder from the object key extension.
func decodeConditioningAudio(key string, data []byte) (*audio.Waveform, error) {
	var (
		wave *audio.Waveform
		err  error
	)

	if strings.EqualFold(filepath.Ext(key), ".mp3") {
		wave, err = audio.DecodeMP3(bytes.NewReader(data))
	} else {
		wave, err = audio.DecodeWAV(bytes.NewReader(data))
	}

	if err != nil {
		return nil, fmt.Errorf("failed to decode conditioning audio '%s': %w", key, err)
	}

	return wave, nil
}

// publishReplyEvent marshals and responds with the MusicGeneratedEvent.
func (w *NatsWorker) publishReplyEvent(msg *nats.Msg, replyEvent *MusicGeneratedEvent) error {
	replyData, err := json.Marshal(replyEvent)
	if err != nil {
		return fmt.Errorf("failed to marshal reply event: %w", err)
	}

	err = msg.Respond(replyData)
	if err != nil {
		return fmt.Errorf("failed to publish reply event: %w", err)
	}

	return nil
}
