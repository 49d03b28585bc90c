package pipeline

import (
	"errors"
	"fmt"
)

// Sentinel errors for pipeline construction and run control.
var (
	// ErrInvalidPipelineConfig indicates a tuning value outside its legal range.
	ErrInvalidPipelineConfig = errors.New("invalid pipeline config")

	// ErrBatchExceedsCap indicates BatchSize > MaxConcurrent, a configuration
	// that would deadlock a batch against the concurrency gate.
	ErrBatchExceedsCap = errors.New("batch size exceeds concurrency cap")

	// ErrSchedulerTimeout indicates the run's overall deadline expired before
	// all batches settled.
	ErrSchedulerTimeout = errors.New("scheduler deadline exceeded")

	// ErrNoTasks indicates Run was invoked with an empty task slice.
	ErrNoTasks = errors.New("no tasks to schedule")
)

// Stage labels where in a task's lifecycle an error arose.
type Stage string

// Task lifecycle stages.
const (
	StageGeneration Stage = "generation"
	StageUpload     Stage = "upload"
	StageScheduling Stage = "scheduling"
)

// GenerationError reports that a task exhausted its generation attempts.
// RateLimited carries the classification of the final failure so callers can
// distinguish provider throttling from ordinary faults.
type GenerationError struct {
	RateLimited bool
	Attempts    int
	Err         error
}

func (e *GenerationError) Error() string {
	if e.RateLimited {
		return fmt.Sprintf("generation rate limited after %d attempts: %v", e.Attempts, e.Err)
	}
	return fmt.Sprintf("generation failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// UploadError reports that a task's rendered image could not be stored after
// exhausting upload attempts.
type UploadError struct {
	Attempts int
	Err      error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// TaskError wraps a stage failure with the task it belongs to. It is the
// error carried by failed Outcomes.
type TaskError struct {
	Index int
	Stage Stage
	Err   error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %d %s: %v", e.Index, e.Stage, e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}
