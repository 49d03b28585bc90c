package imagen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"google.golang.org/genai"

	"github.com/fableworks/storyforge/internal/config"
	"github.com/fableworks/storyforge/internal/generation"
)

type imageCaller interface {
	generateImages(
		ctx context.Context,
		model string,
		prompt string,
		cfg *genai.GenerateImagesConfig,
	) (*genai.GenerateImagesResponse, error)
}

type sdkCaller struct {
	client *genai.Client
}

func (s sdkCaller) generateImages(
	ctx context.Context,
	model string,
	prompt string,
	cfg *genai.GenerateImagesConfig,
) (*genai.GenerateImagesResponse, error) {
	return s.client.Models.GenerateImages(ctx, model, prompt, cfg)
}

// Renderer implements the generation.ImageGenerator interface using the
// Imagen models behind the Gemini API. It makes exactly one provider call per
// invocation; retries, backoff, and rate-limit handling belong to the
// pipeline executor.
type Renderer struct {
	logger *slog.Logger
	model  string
	caller imageCaller
}

// NewRenderer creates a Renderer backed by the given client.
func NewRenderer(
	logger *slog.Logger,
	cfg config.GenerationConfig,
	client *genai.Client,
) (*Renderer, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if client == nil {
		return nil, fmt.Errorf("%w: gemini client cannot be nil", generation.ErrInvalidConfig)
	}
	if cfg.ImageModel == "" {
		return nil, fmt.Errorf("%w: image model cannot be empty", generation.ErrInvalidConfig)
	}

	return &Renderer{
		logger: logger.With("component", "image_renderer"),
		model:  cfg.ImageModel,
		caller: sdkCaller{client: client},
	}, nil
}

// GenerateImage renders one image for the prompt and returns its raw bytes.
// Provider failures come back wrapped in a generation.ProviderError so the
// caller can tell rate limiting from generic faults.
func (r *Renderer) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	if prompt == "" {
		return nil, errors.New("prompt cannot be empty")
	}

	resp, err := r.caller.generateImages(ctx, r.model, prompt, &genai.GenerateImagesConfig{
		NumberOfImages: 1,
	})
	if err != nil {
		return nil, generation.NewProviderError(err)
	}

	if resp == nil || len(resp.GeneratedImages) == 0 {
		return nil, generation.ErrEmptyResult
	}

	img := resp.GeneratedImages[0]
	if img.RAIFilteredReason != "" {
		return nil, fmt.Errorf("%w: %s", generation.ErrContentBlocked, img.RAIFilteredReason)
	}
	if img.Image == nil || len(img.Image.ImageBytes) == 0 {
		return nil, fmt.Errorf("%w: image payload was empty", generation.ErrEmptyResult)
	}

	r.logger.DebugContext(ctx, "image rendered",
		"model", r.model,
		"bytes", len(img.Image.ImageBytes))

	return img.Image.ImageBytes, nil
}
