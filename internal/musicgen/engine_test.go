// Package musicgen_test tests the external inference binary engine.
package musicgen_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/book-expert/logger"
	"github.com/book-expert/musicgen-service/internal/audio"
	"github.com/book-expert/musicgen-service/internal/core"
	"github.com/book-expert/musicgen-service/internal/musicgen"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()

	testLogger, err := logger.New(t.TempDir(), "test-log.log")
	require.NoError(t, err)

	return testLogger
}

// stubBinary writes a shell script that mimics the inference binary: it
// copies a fixture WAV to the --output path and writes a token file.
func stubBinary(t *testing.T, fixturePath string) string {
	t.Helper()

	script := `#!/bin/sh
out=""
tok=""
while [ $# -gt 0 ]; do
	if [ "$1" = "--output" ]; then out="$2"; fi
	if [ "$1" = "--export_tokens" ]; then tok="$2"; fi
	shift
done
cp "` + fixturePath + `" "$out"
if [ -n "$tok" ]; then printf 'tokens' > "$tok"; fi
`

	path := filepath.Join(t.TempDir(), "musicgen-stub")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o700))

	return path
}

func writeFixtureWAV(t *testing.T) string {
	t.Helper()

	wave := audio.NewWaveform(1, 64, musicgen.ModelSampleRate)
	for i := range wave.Samples[0] {
		wave.Samples[0][i] = float32(i) / 64.0
	}

	path := filepath.Join(t.TempDir(), "fixture.wav")
	require.NoError(t, audio.WriteWAVFile(path, wave))

	return path
}

func TestNewBinaryEngineValidatesConfig(t *testing.T) {
	t.Parallel()

	log := newTestLogger(t)

	_, err := musicgen.NewBinaryEngine(musicgen.EngineConfig{
		BinaryPath: "",
		ModelDir:   "/models",
		Variant:    core.VariantLarge,
	}, log)
	require.ErrorIs(t, err, musicgen.ErrBinaryPathEmpty)

	_, err = musicgen.NewBinaryEngine(musicgen.EngineConfig{
		BinaryPath: "/usr/bin/musicgen",
		ModelDir:   "",
		Variant:    core.VariantLarge,
	}, log)
	require.ErrorIs(t, err, musicgen.ErrModelDirEmpty)

	_, err = musicgen.NewBinaryEngine(musicgen.EngineConfig{
		BinaryPath: "/usr/bin/musicgen",
		ModelDir:   "/models",
		Variant:    core.Variant("medium"),
	}, log)
	require.ErrorIs(t, err, musicgen.ErrUnknownVariant)
}

func TestBinaryEngineChannelsFollowVariant(t *testing.T) {
	t.Parallel()

	log := newTestLogger(t)

	mono, err := musicgen.NewBinaryEngine(musicgen.EngineConfig{
		BinaryPath: "/usr/bin/musicgen",
		ModelDir:   "/models",
		Variant:    core.VariantMelodyLarge,
	}, log)
	require.NoError(t, err)
	assert.Equal(t, 1, mono.Channels())
	assert.Equal(t, musicgen.ModelSampleRate, mono.SampleRate())

	stereo, err := musicgen.NewBinaryEngine(musicgen.EngineConfig{
		BinaryPath: "/usr/bin/musicgen",
		ModelDir:   "/models",
		Variant:    core.VariantStereoLarge,
	}, log)
	require.NoError(t, err)
	assert.Equal(t, 2, stereo.Channels())
}

func TestBinaryEngineGenerateCollectsOutput(t *testing.T) {
	t.Parallel()

	fixture := writeFixtureWAV(t)
	engine, err := musicgen.NewBinaryEngine(musicgen.EngineConfig{
		BinaryPath: stubBinary(t, fixture),
		ModelDir:   t.TempDir(),
		Variant:    core.VariantLarge,
	}, newTestLogger(t))
	require.NoError(t, err)

	require.NoError(t, engine.Configure(core.GenerationParams{
		Duration:    8,
		TopK:        250,
		TopP:        0,
		Temperature: 1.0,
		CFGCoef:     3.0,
		Seed:        42,
	}))

	wave, tokens, err := engine.Generate(context.Background(), "calm piano")
	require.NoError(t, err)

	assert.Equal(t, 64, wave.Frames())
	assert.Equal(t, musicgen.ModelSampleRate, wave.SampleRate)
	assert.Equal(t, core.Tokens("tokens"), tokens)
}

func TestBinaryEngineContinuationPassesReferenceAudio(t *testing.T) {
	t.Parallel()

	fixture := writeFixtureWAV(t)
	engine, err := musicgen.NewBinaryEngine(musicgen.EngineConfig{
		BinaryPath: stubBinary(t, fixture),
		ModelDir:   t.TempDir(),
		Variant:    core.VariantLarge,
	}, newTestLogger(t))
	require.NoError(t, err)

	tail := audio.NewWaveform(1, 32, musicgen.ModelSampleRate)

	wave, _, err := engine.GenerateContinuation(context.Background(), tail, "calm piano")
	require.NoError(t, err)
	assert.Equal(t, 64, wave.Frames())
}

func TestBinaryEngineReportsBinaryFailure(t *testing.T) {
	t.Parallel()

	script := "#!/bin/sh\necho 'CUDA out of memory' >&2\nexit 1\n"
	binaryPath := filepath.Join(t.TempDir(), "musicgen-fail")
	require.NoError(t, os.WriteFile(binaryPath, []byte(script), 0o700))

	engine, err := musicgen.NewBinaryEngine(musicgen.EngineConfig{
		BinaryPath: binaryPath,
		ModelDir:   t.TempDir(),
		Variant:    core.VariantLarge,
	}, newTestLogger(t))
	require.NoError(t, err)

	_, _, err = engine.Generate(context.Background(), "calm piano")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CUDA out of memory")
}

func TestBinaryEngineReportsMissingOutput(t *testing.T) {
	t.Parallel()

	// A binary that succeeds without producing the output file.
	script := "#!/bin/sh\nexit 0\n"
	binaryPath := filepath.Join(t.TempDir(), "musicgen-silent")
	require.NoError(t, os.WriteFile(binaryPath, []byte(script), 0o700))

	engine, err := musicgen.NewBinaryEngine(musicgen.EngineConfig{
		BinaryPath: binaryPath,
		ModelDir:   t.TempDir(),
		Variant:    core.VariantLarge,
	}, newTestLogger(t))
	require.NoError(t, err)

	_, _, err = engine.Generate(context.Background(), "calm piano")
	require.ErrorIs(t, err, musicgen.ErrNoOutput)
}

func TestBinaryDiffusionDecoderValidatesInput(t *testing.T) {
	t.Parallel()

	log := newTestLogger(t)

	_, err := musicgen.NewBinaryDiffusionDecoder("", "/models", log)
	require.ErrorIs(t, err, musicgen.ErrBinaryPathEmpty)

	decoder, err := musicgen.NewBinaryDiffusionDecoder("/usr/bin/musicgen", "/models", log)
	require.NoError(t, err)

	_, err = decoder.TokensToWav(context.Background(), nil)
	require.ErrorIs(t, err, musicgen.ErrEmptyTokens)
}
