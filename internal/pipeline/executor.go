package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fableworks/storyforge/internal/generation"
	"github.com/fableworks/storyforge/internal/metrics"
	"github.com/fableworks/storyforge/internal/sanitize"
)

// Executor settles a single task: bounded-retry image generation followed by
// bounded-retry upload. It runs entirely on the calling goroutine; the
// scheduler gives each task its own.
type Executor struct {
	generator generation.ImageGenerator
	uploader  generation.Uploader
	sanitizer *sanitize.Sanitizer
	flag      *RateLimitFlag
	cfg       Config
	logger    *slog.Logger
	recorder  *metrics.Recorder
}

// NewExecutor creates an Executor, validating its collaborators.
func NewExecutor(
	gen generation.ImageGenerator,
	up generation.Uploader,
	san *sanitize.Sanitizer,
	flag *RateLimitFlag,
	cfg Config,
	logger *slog.Logger,
	recorder *metrics.Recorder,
) (*Executor, error) {
	if gen == nil {
		return nil, fmt.Errorf("image generator is required")
	}
	if up == nil {
		return nil, fmt.Errorf("uploader is required")
	}
	if san == nil {
		return nil, fmt.Errorf("sanitizer is required")
	}
	if flag == nil {
		return nil, fmt.Errorf("rate limit flag is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Executor{
		generator: gen,
		uploader:  up,
		sanitizer: san,
		flag:      flag,
		cfg:       cfg,
		logger:    logger.With("component", "pipeline_executor"),
		recorder:  recorder,
	}, nil
}

// Execute runs the task to a settled Outcome. Failures are folded into the
// Outcome rather than returned, so one scene cannot abort its siblings.
func (e *Executor) Execute(ctx context.Context, task Task) Outcome {
	start := time.Now()

	data, attempts, err := e.generate(ctx, task)
	if err != nil {
		e.recorder.TaskFailed(string(StageGeneration))
		return Outcome{
			Index:    task.Index,
			Err:      &TaskError{Index: task.Index, Stage: StageGeneration, Err: err},
			Attempts: attempts,
			Elapsed:  time.Since(start),
		}
	}

	url, err := e.upload(ctx, task, data)
	if err != nil {
		e.recorder.TaskFailed(string(StageUpload))
		return Outcome{
			Index:    task.Index,
			Err:      &TaskError{Index: task.Index, Stage: StageUpload, Err: err},
			Attempts: attempts,
			Elapsed:  time.Since(start),
		}
	}

	return Outcome{
		Index:    task.Index,
		URL:      url,
		Attempts: attempts,
		Elapsed:  time.Since(start),
	}
}

// generate calls the provider with escalating prompt treatment: the raw
// prompt first, the sanitized prompt on the second attempt, the sanitized and
// truncated prompt from the third. It returns the image bytes and the number
// of provider calls made.
func (e *Executor) generate(ctx context.Context, task Task) ([]byte, int, error) {
	var lastErr error
	var rateLimited bool

	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		prompt := e.promptForAttempt(task.Prompt, attempt)

		genStart := time.Now()
		data, err := e.generator.GenerateImage(ctx, prompt)
		e.recorder.ObserveGeneration(time.Since(genStart))
		e.recorder.GenerationAttempt()

		if err == nil {
			if attempt > 1 {
				e.logger.InfoContext(ctx, "generation recovered on retry",
					"task_index", task.Index,
					"attempt", attempt)
			}
			return data, attempt, nil
		}

		lastErr = err
		rateLimited = generation.IsRateLimited(err)
		if rateLimited {
			e.flag.Trip()
			e.recorder.RateLimitTrip()
		}

		e.logger.WarnContext(ctx, "generation attempt failed",
			"task_index", task.Index,
			"attempt", attempt,
			"max_attempts", e.cfg.MaxAttempts,
			"rate_limited", rateLimited,
			"error", err)

		if attempt == e.cfg.MaxAttempts {
			break
		}
		if serr := ctxSleep(ctx, e.backoffFor(attempt, rateLimited)); serr != nil {
			return nil, attempt, &GenerationError{
				RateLimited: rateLimited,
				Attempts:    attempt,
				Err:         fmt.Errorf("backoff interrupted: %w", serr),
			}
		}
	}

	return nil, e.cfg.MaxAttempts, &GenerationError{
		RateLimited: rateLimited,
		Attempts:    e.cfg.MaxAttempts,
		Err:         lastErr,
	}
}

// upload stores the rendered image under the task's destination tag. Upload
// faults are infrastructure faults, so every retry waits on the generic
// backoff curve regardless of how the failure looked.
func (e *Executor) upload(ctx context.Context, task Task, data []byte) (string, error) {
	var lastErr error

	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		upStart := time.Now()
		url, err := e.uploader.Upload(ctx, task.DestinationTag, data)
		e.recorder.ObserveUpload(time.Since(upStart))

		if err == nil {
			return url, nil
		}
		lastErr = err

		e.logger.WarnContext(ctx, "upload attempt failed",
			"task_index", task.Index,
			"destination", task.DestinationTag,
			"attempt", attempt,
			"max_attempts", e.cfg.MaxAttempts,
			"error", err)

		if attempt == e.cfg.MaxAttempts {
			break
		}
		if serr := ctxSleep(ctx, time.Duration(attempt)*e.cfg.GenericBackoff); serr != nil {
			return "", &UploadError{
				Attempts: attempt,
				Err:      fmt.Errorf("backoff interrupted: %w", serr),
			}
		}
	}

	return "", &UploadError{Attempts: e.cfg.MaxAttempts, Err: lastErr}
}

func (e *Executor) promptForAttempt(raw string, attempt int) string {
	if attempt <= 1 {
		return raw
	}
	prompt := e.sanitizer.Sanitize(raw)
	if attempt >= 3 && e.cfg.PromptMaxLen > 0 {
		prompt = sanitize.Truncate(prompt, e.cfg.PromptMaxLen)
	}
	return prompt
}

// backoffFor scales the base delay linearly with the attempt number. Rate
// limit failures wait on a much longer curve because provider quota windows
// are measured in minutes.
func (e *Executor) backoffFor(attempt int, rateLimited bool) time.Duration {
	base := e.cfg.GenericBackoff
	if rateLimited {
		base = e.cfg.RateLimitBackoff
	}
	return time.Duration(attempt) * base
}

// ctxSleep waits for d or until ctx is done, whichever comes first.
func ctxSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
