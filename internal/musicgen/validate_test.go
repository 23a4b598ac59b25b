// Package musicgen_test tests request validation.
package musicgen_test

import (
	"testing"

	"github.com/book-expert/musicgen-service/internal/audio"
	"github.com/book-expert/musicgen-service/internal/core"
	"github.com/book-expert/musicgen-service/internal/musicgen"
	"github.com/stretchr/testify/require"
)

func validRequest() core.GenerationRequest {
	req := core.DefaultRequest()
	req.Prompt = "calm piano"

	return req
}

func conditioning() *audio.Waveform {
	return audio.NewWaveform(1, 32000, 32000)
}

func TestValidateRequestAcceptsDefaults(t *testing.T) {
	t.Parallel()

	require.NoError(t, musicgen.ValidateRequest(validRequest()))
}

func TestValidateRequestRejectsMissingPromptAndAudio(t *testing.T) {
	t.Parallel()

	req := core.DefaultRequest()

	require.ErrorIs(t, musicgen.ValidateRequest(req), musicgen.ErrMissingPromptAndAudio)
}

func TestValidateRequestRejectsMelodyOnNonMelodyVariant(t *testing.T) {
	t.Parallel()

	for _, variant := range []core.Variant{core.VariantLarge, core.VariantStereoLarge} {
		req := validRequest()
		req.Variant = variant
		req.ConditioningAudio = conditioning()

		require.ErrorIs(t, musicgen.ValidateRequest(req), musicgen.ErrMelodyNotSupported)
	}
}

func TestValidateRequestAcceptsMelodyOnMelodyVariants(t *testing.T) {
	t.Parallel()

	for _, variant := range []core.Variant{
		core.VariantMelodyLarge, core.VariantStereoMelodyLarge,
	} {
		req := validRequest()
		req.Variant = variant
		req.ConditioningAudio = conditioning()

		require.NoError(t, musicgen.ValidateRequest(req))
	}
}

func TestValidateRequestRejectsDiffusionWithStereoVariants(t *testing.T) {
	t.Parallel()

	for _, variant := range []core.Variant{
		core.VariantStereoLarge, core.VariantStereoMelodyLarge,
	} {
		req := validRequest()
		req.Variant = variant
		req.MultiBandDiffusion = true

		require.ErrorIs(t, musicgen.ValidateRequest(req), musicgen.ErrDiffusionStereo)
	}
}

func TestValidateRequestAcceptsDiffusionWithMonoVariant(t *testing.T) {
	t.Parallel()

	req := validRequest()
	req.Variant = core.VariantLarge
	req.MultiBandDiffusion = true

	require.NoError(t, musicgen.ValidateRequest(req))
}

func TestValidateRequestRejectsUnknownVariant(t *testing.T) {
	t.Parallel()

	req := validRequest()
	req.Variant = core.Variant("medium")

	require.ErrorIs(t, musicgen.ValidateRequest(req), musicgen.ErrUnknownVariant)
}

func TestValidateRequestRejectsBadNumericParams(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		mutate  func(*core.GenerationRequest)
		wantErr error
	}{
		{
			name:    "zero duration",
			mutate:  func(r *core.GenerationRequest) { r.Duration = 0 },
			wantErr: musicgen.ErrDurationRange,
		},
		{
			name:    "negative duration",
			mutate:  func(r *core.GenerationRequest) { r.Duration = -3 },
			wantErr: musicgen.ErrDurationRange,
		},
		{
			name:    "negative top_k",
			mutate:  func(r *core.GenerationRequest) { r.TopK = -1 },
			wantErr: musicgen.ErrTopKNegative,
		},
		{
			name:    "top_p above one",
			mutate:  func(r *core.GenerationRequest) { r.TopP = 1.5 },
			wantErr: musicgen.ErrTopPRange,
		},
		{
			name:    "negative temperature",
			mutate:  func(r *core.GenerationRequest) { r.Temperature = -0.1 },
			wantErr: musicgen.ErrTemperatureRange,
		},
		{
			name:    "guidance below one",
			mutate:  func(r *core.GenerationRequest) { r.ClassifierFreeGuidance = 0.5 },
			wantErr: musicgen.ErrGuidanceRange,
		},
	}

	for _, testCase := range cases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			req := validRequest()
			testCase.mutate(&req)

			require.ErrorIs(t, musicgen.ValidateRequest(req), testCase.wantErr)
		})
	}
}

func TestValidateRequestRejectsUnknownStrategyAndFormat(t *testing.T) {
	t.Parallel()

	req := validRequest()
	req.Normalization = audio.Strategy("lufs")
	require.ErrorIs(t, musicgen.ValidateRequest(req), audio.ErrUnknownStrategy)

	req = validRequest()
	req.OutputFormat = core.OutputFormat("ogg")
	require.ErrorIs(t, musicgen.ValidateRequest(req), musicgen.ErrUnknownFormat)
}
