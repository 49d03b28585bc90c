package pipeline

import (
	"context"
	"fmt"
	"time"
)

// Skipped is the ledger entry for a scene whose task failed permanently.
// Callers can detect and re-request just the missing scenes.
const Skipped = "skipped"

// Task is one scene's image-generation-and-upload unit of work. Index is the
// 1-based scene number; DestinationTag is the storage object key the rendered
// image is uploaded under. Tasks are immutable once created.
type Task struct {
	Index          int
	Prompt         string
	DestinationTag string
}

// Outcome is the settled result of one Task. URL and Err are mutually
// exclusive. Index always matches the originating Task so out-of-order
// completion can be re-sorted. Attempts counts provider generation calls.
type Outcome struct {
	Index    int
	URL      string
	Err      error
	Attempts int
	Elapsed  time.Duration
}

// OK reports whether the task settled successfully.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// ProgressStatus is the per-scene status carried by progress events.
type ProgressStatus string

// Progress statuses emitted by the reporter.
const (
	StatusPendingApproval ProgressStatus = "pending_approval"
	StatusCompleted       ProgressStatus = "completed"
	StatusFailed          ProgressStatus = "failed"
)

// ProgressEvent is the per-task progress notification handed to the
// notification channel. Completed is the cumulative count of successful
// scenes so far in this run.
type ProgressEvent struct {
	Index     int            `json:"index"`
	Status    ProgressStatus `json:"status"`
	URL       string         `json:"url,omitempty"`
	Completed int            `json:"completed"`
	Total     int            `json:"total"`
}

// Notifier is the push-notification channel consumed by the reporter. It is
// bound to one story's session by the caller. Failures are best effort: the
// reporter logs and continues.
type Notifier interface {
	Notify(ctx context.Context, event ProgressEvent) error
}

// Config tunes the pipeline core. The zero value is not usable; start from
// DefaultConfig.
type Config struct {
	// MaxConcurrent caps simultaneously running tasks.
	MaxConcurrent int
	// BatchSize is the number of tasks launched per batch. Must not exceed
	// MaxConcurrent or a batch would deadlock waiting on its own siblings.
	BatchSize int
	// MaxImagesPerMin is the provider's published images-per-minute budget,
	// enforced by the inter-batch pacing sleep.
	MaxImagesPerMin int
	// MaxAttempts bounds generation and upload tries per task.
	MaxAttempts int
	// OverallDeadline caps one concurrent run of a whole story.
	OverallDeadline time.Duration
	// RunRetries is how many times a failed concurrent run is retried before
	// the sequential fallback takes over.
	RunRetries int
	// RunRetryDelay is the fixed wait between whole-run retries.
	RunRetryDelay time.Duration
	// GenericBackoff is multiplied by the attempt number to pace retries
	// after ordinary failures.
	GenericBackoff time.Duration
	// RateLimitBackoff is multiplied by the attempt number to pace retries
	// after provider rate-limit failures. Provider rate windows are minutes,
	// not seconds, hence the order-of-magnitude difference.
	RateLimitBackoff time.Duration
	// PromptMaxLen is the hard prompt cap applied from the third attempt.
	PromptMaxLen int
	// RequireApproval reports successful scenes as pending_approval instead
	// of completed.
	RequireApproval bool
}

// DefaultConfig returns the production tuning.
func DefaultConfig() Config {
	return Config{
		MaxConcurrent:    10,
		BatchSize:        5,
		MaxImagesPerMin:  15,
		MaxAttempts:      3,
		OverallDeadline:  10 * time.Minute,
		RunRetries:       2,
		RunRetryDelay:    5 * time.Second,
		GenericBackoff:   5 * time.Second,
		RateLimitBackoff: 30 * time.Second,
		PromptMaxLen:     900,
	}
}

// Validate checks the tuning for values that would stall or deadlock a run.
func (c Config) Validate() error {
	if c.MaxConcurrent < 1 {
		return fmt.Errorf("%w: max concurrent %d", ErrInvalidPipelineConfig, c.MaxConcurrent)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("%w: batch size %d", ErrInvalidPipelineConfig, c.BatchSize)
	}
	if c.BatchSize > c.MaxConcurrent {
		return fmt.Errorf("%w: batch size %d exceeds concurrency cap %d",
			ErrBatchExceedsCap, c.BatchSize, c.MaxConcurrent)
	}
	if c.MaxImagesPerMin < 1 {
		return fmt.Errorf("%w: images per minute %d", ErrInvalidPipelineConfig, c.MaxImagesPerMin)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("%w: max attempts %d", ErrInvalidPipelineConfig, c.MaxAttempts)
	}
	if c.GenericBackoff < 0 || c.RateLimitBackoff < 0 || c.RunRetryDelay < 0 {
		return fmt.Errorf("%w: negative backoff", ErrInvalidPipelineConfig)
	}
	return nil
}

// pacingDelay is the inter-batch sleep that keeps aggregate throughput under
// the provider budget: (60 / MaxImagesPerMin) seconds per image, for a full
// batch of images. The configured batch size is used even for a short final
// batch; there is no sleep after the final batch at all.
func (c Config) pacingDelay() time.Duration {
	return time.Duration(c.BatchSize) * (time.Minute / time.Duration(c.MaxImagesPerMin))
}
