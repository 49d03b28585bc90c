package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/fableworks/storyforge/internal/config"
	"github.com/fableworks/storyforge/internal/domain"
	"github.com/fableworks/storyforge/internal/generation"
)

// contentCaller abstracts the single SDK call the scripter makes so tests can
// substitute a canned model.
type contentCaller interface {
	generate(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		cfg *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

type sdkCaller struct {
	client *genai.Client
}

func (s sdkCaller) generate(
	ctx context.Context,
	model string,
	contents []*genai.Content,
	cfg *genai.GenerateContentConfig,
) (*genai.GenerateContentResponse, error) {
	return s.client.Models.GenerateContent(ctx, model, contents, cfg)
}

// ScriptGenerator implements the generation.ScriptGenerator interface using
// Google's Gemini API to expand quiz answers into scene descriptions and to
// rewrite those scenes as standardized image prompts.
type ScriptGenerator struct {
	logger *slog.Logger
	config config.GenerationConfig
	caller contentCaller
}

// NewScriptGenerator creates a ScriptGenerator backed by the given client.
func NewScriptGenerator(
	logger *slog.Logger,
	cfg config.GenerationConfig,
	client *genai.Client,
) (*ScriptGenerator, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if client == nil {
		return nil, fmt.Errorf("%w: gemini client cannot be nil", generation.ErrInvalidConfig)
	}
	if cfg.ScriptModel == "" {
		return nil, fmt.Errorf("%w: script model cannot be empty", generation.ErrInvalidConfig)
	}
	if cfg.ExpectedScenes <= 0 {
		return nil, fmt.Errorf("%w: expected scene count must be positive", generation.ErrInvalidConfig)
	}

	return &ScriptGenerator{
		logger: logger.With("component", "script_generator"),
		config: cfg,
		caller: sdkCaller{client: client},
	}, nil
}

// GenerateScript expands the quiz answers into the configured number of scene
// descriptions.
func (g *ScriptGenerator) GenerateScript(ctx context.Context, answers domain.Answers) ([]string, error) {
	if err := answers.Validate(); err != nil {
		return nil, err
	}

	system := buildScriptPrompt(answers, g.config.ExpectedScenes)
	user := fmt.Sprintf(
		"Generate the %d scenes. Return your response as a JSON object with keys Scene1, Scene2, and so on.",
		g.config.ExpectedScenes)

	g.logger.InfoContext(ctx, "generating story script",
		"model", g.config.ScriptModel,
		"scene_count", g.config.ExpectedScenes,
		"opening_style", answers.OpeningStyle)

	text, err := g.callModelWithRetry(ctx, system, user)
	if err != nil {
		return nil, fmt.Errorf("script generation: %w", err)
	}

	scenes, err := decodeNumberedJSON(text, "Scene", g.config.ExpectedScenes)
	if err != nil {
		return nil, fmt.Errorf("script generation: %w", err)
	}

	return scenes, nil
}

// StandardizePrompts rewrites scene descriptions into hyper-detailed image
// prompts that all open with the same art style block.
func (g *ScriptGenerator) StandardizePrompts(ctx context.Context, scenes []string) ([]string, error) {
	if len(scenes) == 0 {
		return nil, domain.ErrNoScenes
	}

	payload, err := json.Marshal(map[string][]string{"scenes": scenes})
	if err != nil {
		return nil, fmt.Errorf("encode scenes: %w", err)
	}
	user := fmt.Sprintf(
		"%s Return your response as a JSON object with keys Prompt1 through Prompt%d.",
		payload, len(scenes))

	g.logger.InfoContext(ctx, "standardizing image prompts",
		"model", g.config.ScriptModel,
		"scene_count", len(scenes))

	text, err := g.callModelWithRetry(ctx, standardizeSystemPrompt, user)
	if err != nil {
		return nil, fmt.Errorf("prompt standardization: %w", err)
	}

	prompts, err := decodeNumberedJSON(text, "Prompt", len(scenes))
	if err != nil {
		return nil, fmt.Errorf("prompt standardization: %w", err)
	}

	return prompts, nil
}

// callModelWithRetry makes the model call, retrying transient failures with
// exponential backoff and jitter. Malformed and safety-blocked responses are
// permanent and returned immediately.
func (g *ScriptGenerator) callModelWithRetry(ctx context.Context, system, user string) (string, error) {
	maxRetries := g.config.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	baseDelay := g.config.RetryDelay
	if baseDelay <= 0 {
		baseDelay = 2 * time.Second
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	genCfg := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: system}}},
		ResponseMIMEType:  "application/json",
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		resp, err := g.caller.generate(ctx, g.config.ScriptModel, genai.Text(user), genCfg)
		if err == nil {
			return extractText(resp)
		}
		lastErr = err

		g.logger.WarnContext(ctx, "model call failed",
			"attempt", attempt+1,
			"max_attempts", maxRetries+1,
			"error", err)

		if attempt >= maxRetries {
			break
		}

		// delay = baseDelay * 2^attempt * (0.5 + rand(0, 0.5))
		backoff := float64(baseDelay) * math.Pow(2, float64(attempt))
		delay := time.Duration(backoff * (0.5 + rng.Float64()*0.5))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %v", generation.ErrTransientFailure, ctx.Err())
		}
	}

	return "", fmt.Errorf("%w: exceeded %d attempts: %v",
		generation.ErrTransientFailure, maxRetries+1, lastErr)
}

// extractText pulls the concatenated text parts out of a model response,
// rejecting empty and safety-blocked results.
func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: no content generated", generation.ErrInvalidResponse)
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return "", fmt.Errorf("%w: response stopped by safety filters", generation.ErrContentBlocked)
	}
	if candidate.Content == nil {
		return "", fmt.Errorf("%w: empty content in response", generation.ErrInvalidResponse)
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil {
			sb.WriteString(part.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("%w: empty response text", generation.ErrInvalidResponse)
	}

	return sb.String(), nil
}

// decodeNumberedJSON parses a {"Scene1": "...", "Scene2": "..."} style object
// into a slice ordered by key number. Every key from 1 through count must be
// present and non-blank.
func decodeNumberedJSON(raw, keyPrefix string, count int) ([]string, error) {
	var fields map[string]string
	if err := json.Unmarshal([]byte(stripCodeFences(raw)), &fields); err != nil {
		return nil, fmt.Errorf("%w: failed to parse JSON response: %v", generation.ErrInvalidResponse, err)
	}

	out := make([]string, 0, count)
	for i := 1; i <= count; i++ {
		key := fmt.Sprintf("%s%d", keyPrefix, i)
		value, ok := fields[key]
		if !ok || strings.TrimSpace(value) == "" {
			return nil, fmt.Errorf("%w: missing %q", generation.ErrInvalidResponse, key)
		}
		out = append(out, strings.TrimSpace(value))
	}

	return out, nil
}

// stripCodeFences removes a surrounding markdown code fence. Models sometimes
// add one even when asked for raw JSON.
func stripCodeFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	trimmed = strings.TrimPrefix(trimmed, "```")
	if i := strings.IndexByte(trimmed, '\n'); i >= 0 {
		// Drop the opening fence line together with its language tag.
		trimmed = trimmed[i+1:]
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")

	return strings.TrimSpace(trimmed)
}
