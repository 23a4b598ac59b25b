package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
)

// ErrTranscodeFailed indicates the external encoder exited with an error.
// The lossless intermediate file is deliberately left in place when this
// happens, so the result of an expensive generation run is not lost.
var ErrTranscodeFailed = errors.New("transcode failed")

// TranscodeToMP3 converts a lossless WAV file to MP3 using the external
// ffmpeg binary. The conversion is not retried.
func TranscodeToMP3(ctx context.Context, wavPath, mp3Path string) error {
	// ffmpeg refuses to overwrite without -y; remove a stale target instead
	// so a leftover file never masks the fresh output.
	removeErr := os.Remove(mp3Path)
	if removeErr != nil && !os.IsNotExist(removeErr) {
		return fmt.Errorf("failed to remove stale mp3 '%s': %w", mp3Path, removeErr)
	}

	cmd := exec.CommandContext(ctx, "ffmpeg", "-i", wavPath, mp3Path)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf(
			"%w: %s -> %s: %v - output: %s",
			ErrTranscodeFailed, wavPath, mp3Path, err, string(output),
		)
	}

	return nil
}
