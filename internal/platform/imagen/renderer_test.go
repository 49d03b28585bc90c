package imagen

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/fableworks/storyforge/internal/config"
	"github.com/fableworks/storyforge/internal/generation"
	"github.com/fableworks/storyforge/internal/platform/gemini"
)

type fakeCaller struct {
	resp *genai.GenerateImagesResponse
	err  error

	calls      int
	lastModel  string
	lastPrompt string
	lastCfg    *genai.GenerateImagesConfig
}

func (f *fakeCaller) generateImages(
	_ context.Context,
	model string,
	prompt string,
	cfg *genai.GenerateImagesConfig,
) (*genai.GenerateImagesResponse, error) {
	f.calls++
	f.lastModel = model
	f.lastPrompt = prompt
	f.lastCfg = cfg
	return f.resp, f.err
}

func newTestRenderer(caller *fakeCaller) *Renderer {
	return &Renderer{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		model:  "imagen-test",
		caller: caller,
	}
}

func imageResponse(data []byte) *genai.GenerateImagesResponse {
	return &genai.GenerateImagesResponse{
		GeneratedImages: []*genai.GeneratedImage{
			{Image: &genai.Image{ImageBytes: data}},
		},
	}
}

func TestGenerateImageReturnsBytes(t *testing.T) {
	t.Parallel()

	caller := &fakeCaller{resp: imageResponse([]byte("png-bytes"))}
	r := newTestRenderer(caller)

	data, err := r.GenerateImage(context.Background(), "a fox at golden hour")

	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), data)
	assert.Equal(t, 1, caller.calls)
	assert.Equal(t, "imagen-test", caller.lastModel)
	assert.Equal(t, "a fox at golden hour", caller.lastPrompt)
	require.NotNil(t, caller.lastCfg)
	assert.EqualValues(t, 1, caller.lastCfg.NumberOfImages)
}

func TestGenerateImageClassifiesProviderErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name            string
		err             error
		wantRateLimited bool
	}{
		{name: "rate_limited", err: errors.New("429 Too Many Requests"), wantRateLimited: true},
		{name: "quota_exhausted", err: errors.New("RESOURCE_EXHAUSTED: quota exceeded"), wantRateLimited: true},
		{name: "generic", err: errors.New("internal provider fault"), wantRateLimited: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := newTestRenderer(&fakeCaller{err: tt.err})

			_, err := r.GenerateImage(context.Background(), "prompt")

			require.Error(t, err)
			var pe *generation.ProviderError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.wantRateLimited, pe.RateLimited)
			assert.Equal(t, tt.wantRateLimited, generation.IsRateLimited(err))
		})
	}
}

func TestGenerateImageEmptyResult(t *testing.T) {
	t.Parallel()

	r := newTestRenderer(&fakeCaller{resp: &genai.GenerateImagesResponse{}})

	_, err := r.GenerateImage(context.Background(), "prompt")

	assert.ErrorIs(t, err, generation.ErrEmptyResult)
}

func TestGenerateImageFilteredResult(t *testing.T) {
	t.Parallel()

	r := newTestRenderer(&fakeCaller{resp: &genai.GenerateImagesResponse{
		GeneratedImages: []*genai.GeneratedImage{
			{RAIFilteredReason: "flagged by responsible AI checks"},
		},
	}})

	_, err := r.GenerateImage(context.Background(), "prompt")

	require.Error(t, err)
	assert.ErrorIs(t, err, generation.ErrContentBlocked)
	assert.Contains(t, err.Error(), "responsible AI")
}

func TestGenerateImageEmptyPayload(t *testing.T) {
	t.Parallel()

	r := newTestRenderer(&fakeCaller{resp: &genai.GenerateImagesResponse{
		GeneratedImages: []*genai.GeneratedImage{{Image: &genai.Image{}}},
	}})

	_, err := r.GenerateImage(context.Background(), "prompt")

	assert.ErrorIs(t, err, generation.ErrEmptyResult)
}

func TestGenerateImageRejectsEmptyPrompt(t *testing.T) {
	t.Parallel()

	caller := &fakeCaller{resp: imageResponse([]byte("x"))}
	r := newTestRenderer(caller)

	_, err := r.GenerateImage(context.Background(), "")

	require.Error(t, err)
	assert.Zero(t, caller.calls)
}

func TestNewRendererValidation(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client, err := gemini.NewClient(context.Background(), "test-api-key")
	require.NoError(t, err)

	tests := []struct {
		name     string
		logger   *slog.Logger
		cfg      config.GenerationConfig
		client   *genai.Client
		errorMsg string
	}{
		{name: "nil_logger", cfg: config.GenerationConfig{ImageModel: "imagen-test"}, client: client, errorMsg: "logger cannot be nil"},
		{name: "nil_client", logger: logger, cfg: config.GenerationConfig{ImageModel: "imagen-test"}, errorMsg: "client cannot be nil"},
		{name: "empty_model", logger: logger, client: client, errorMsg: "image model cannot be empty"},
		{name: "valid", logger: logger, cfg: config.GenerationConfig{ImageModel: "imagen-test"}, client: client},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r, err := NewRenderer(tt.logger, tt.cfg, tt.client)

			if tt.errorMsg != "" {
				require.Error(t, err)
				assert.Nil(t, r)
				assert.Contains(t, err.Error(), tt.errorMsg)
				return
			}
			require.NoError(t, err)
			assert.Implements(t, (*generation.ImageGenerator)(nil), r)
		})
	}
}
