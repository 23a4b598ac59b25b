// Package audio_test tests the normalization strategies.
package audio_test

import (
	"math"
	"testing"

	"github.com/book-expert/musicgen-service/internal/audio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waveWithSamples(samples []float32) *audio.Waveform {
	wave := audio.NewWaveform(1, len(samples), testSampleRate)
	copy(wave.Samples[0], samples)

	return wave
}

func TestStrategyValid(t *testing.T) {
	t.Parallel()

	assert.True(t, audio.StrategyLoudness.Valid())
	assert.True(t, audio.StrategyClip.Valid())
	assert.True(t, audio.StrategyPeak.Valid())
	assert.True(t, audio.StrategyRMS.Valid())
	assert.False(t, audio.Strategy("lufs").Valid())
}

func TestNormalizeClip(t *testing.T) {
	t.Parallel()

	wave := waveWithSamples([]float32{1.5, -2.0, 0.5})

	require.NoError(t, audio.Normalize(wave, audio.StrategyClip))
	assert.Equal(t, float32(1.0), wave.Samples[0][0])
	assert.Equal(t, float32(-1.0), wave.Samples[0][1])
	assert.Equal(t, float32(0.5), wave.Samples[0][2])
}

func TestNormalizePeak(t *testing.T) {
	t.Parallel()

	wave := waveWithSamples([]float32{0.25, -0.5, 0.1})

	require.NoError(t, audio.Normalize(wave, audio.StrategyPeak))
	assert.InDelta(t, 0.5, wave.Samples[0][0], 1e-6)
	assert.InDelta(t, -1.0, wave.Samples[0][1], 1e-6)
}

func TestNormalizePeakSilence(t *testing.T) {
	t.Parallel()

	wave := waveWithSamples([]float32{0, 0, 0})

	require.NoError(t, audio.Normalize(wave, audio.StrategyPeak))
	assert.Equal(t, float32(0), wave.Samples[0][1])
}

func TestNormalizeRMSReachesTargetLevel(t *testing.T) {
	t.Parallel()

	samples := make([]float32, 1024)
	for i := range samples {
		samples[i] = 0.01 * float32(math.Sin(float64(i)/16.0))
	}

	wave := waveWithSamples(samples)
	require.NoError(t, audio.Normalize(wave, audio.StrategyRMS))

	sum := 0.0
	for _, sample := range wave.Samples[0] {
		sum += float64(sample) * float64(sample)
	}

	rms := math.Sqrt(sum / float64(len(wave.Samples[0])))
	target := math.Pow(10, -18.0/20.0)

	assert.InDelta(t, target, rms, 1e-3)
}

func TestNormalizeLoudnessStaysInRange(t *testing.T) {
	t.Parallel()

	samples := make([]float32, 1024)
	for i := range samples {
		samples[i] = 0.9 * float32(math.Sin(float64(i)/8.0))
	}

	wave := waveWithSamples(samples)
	require.NoError(t, audio.Normalize(wave, audio.StrategyLoudness))

	for _, sample := range wave.Samples[0] {
		assert.LessOrEqual(t, float64(sample), 1.0)
		assert.GreaterOrEqual(t, float64(sample), -1.0)
	}
}

func TestNormalizeUnknownStrategy(t *testing.T) {
	t.Parallel()

	wave := waveWithSamples([]float32{0.1})

	require.ErrorIs(
		t,
		audio.Normalize(wave, audio.Strategy("lufs")),
		audio.ErrUnknownStrategy,
	)
}
