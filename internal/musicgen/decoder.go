package musicgen

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/book-expert/logger"
	"github.com/book-expert/musicgen-service/internal/audio"
	"github.com/book-expert/musicgen-service/internal/core"
)

// ErrEmptyTokens indicates a diffusion decode was requested with no token
// data to decode.
var ErrEmptyTokens = errors.New("no tokens to decode")

// BinaryDiffusionDecoder implements core.TokenDecoder by invoking the
// inference binary in token-decoding mode. It replaces the model's default
// waveform decoder with the multi-band diffusion decoder.
type BinaryDiffusionDecoder struct {
	binaryPath string
	modelDir   string
	log        *logger.Logger
}

// NewBinaryDiffusionDecoder creates a decoder backed by the inference binary.
func NewBinaryDiffusionDecoder(
	binaryPath, modelDir string,
	log *logger.Logger,
) (*BinaryDiffusionDecoder, error) {
	if binaryPath == "" {
		return nil, ErrBinaryPathEmpty
	}

	if modelDir == "" {
		return nil, ErrModelDirEmpty
	}

	return &BinaryDiffusionDecoder{
		binaryPath: binaryPath,
		modelDir:   modelDir,
		log:        log,
	}, nil
}

// TokensToWav decodes the discrete codes of one segment into a waveform.
func (d *BinaryDiffusionDecoder) TokensToWav(
	ctx context.Context,
	tokens core.Tokens,
) (*audio.Waveform, error) {
	if len(tokens) == 0 {
		return nil, ErrEmptyTokens
	}

	workDir, err := os.MkdirTemp("", "musicgen-mbd-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create work directory: %w", err)
	}

	defer func() {
		removeErr := os.RemoveAll(workDir)
		if removeErr != nil {
			d.log.Warn("Failed to remove work directory '%s': %v", workDir, removeErr)
		}
	}()

	tokensPath := filepath.Join(workDir, "segment.tokens")
	outputPath := filepath.Join(workDir, "segment.wav")

	writeErr := os.WriteFile(tokensPath, tokens, 0o600)
	if writeErr != nil {
		return nil, fmt.Errorf("failed to write token file: %w", writeErr)
	}

	args := []string{
		"--model_dir", d.modelDir,
		"--decode_tokens", tokensPath,
		"--output", outputPath,
	}

	runErr := runBinary(ctx, d.binaryPath, args)
	if runErr != nil {
		return nil, runErr
	}

	wave, _, collectErr := collectOutput(outputPath, tokensPath)
	if collectErr != nil {
		return nil, collectErr
	}

	return wave, nil
}

// runBinary executes the inference binary and wraps a failure with its
// combined output, which is where the underlying library reports its errors.
func runBinary(ctx context.Context, binaryPath string, args []string) error {
	// #nosec G204 -- binary path comes from validated service configuration
	cmd := exec.CommandContext(ctx, binaryPath, args...)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf(
			"inference binary execution failed: %w - output: %s",
			err, string(output),
		)
	}

	return nil
}
