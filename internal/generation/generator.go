package generation

import (
	"context"

	"github.com/fableworks/storyforge/internal/domain"
)

// ScriptGenerator defines the interface for turning a quiz-derived story
// configuration into an ordered list of scene descriptions. This interface
// serves as a boundary between the application core and the external LLM
// service, following the hexagonal architecture pattern.
type ScriptGenerator interface {
	// GenerateScript produces the scene descriptions for a story.
	//
	// Parameters:
	//   - ctx: Context for the operation, which can be used for cancellation
	//   - answers: The quiz answers that configure the story
	//
	// Returns:
	//   - An ordered slice of scene descriptions, one per scene
	//   - An error if scripting fails for any reason (see errors.go)
	GenerateScript(ctx context.Context, answers domain.Answers) ([]string, error)

	// StandardizePrompts converts scene descriptions into image-generation
	// prompts that share a consistent visual style. The returned slice has
	// the same length and ordering as the input.
	StandardizePrompts(ctx context.Context, scenes []string) ([]string, error)
}

// ImageGenerator defines the interface for rendering a single image from a
// prompt. Implementations must classify provider failures with ProviderError
// so the retry layer can distinguish rate limiting from generic faults.
type ImageGenerator interface {
	// GenerateImage renders one image for the prompt and returns its bytes.
	GenerateImage(ctx context.Context, prompt string) ([]byte, error)
}

// Uploader defines the interface for persisting image bytes to object storage
// and returning a publicly reachable URL.
type Uploader interface {
	// Upload writes data under the given object key and returns its URL.
	Upload(ctx context.Context, objectKey string, data []byte) (string, error)
}

// VideoSynthesizer defines the interface for the optional post-image video
// stage. Implementations submit a generation job for a rendered scene image
// and block until the job finishes or its deadline passes.
type VideoSynthesizer interface {
	// Synthesize animates the image behind imageURL with the given motion
	// prompt and returns the finished video's URL.
	Synthesize(ctx context.Context, prompt, imageURL string) (string, error)
}
