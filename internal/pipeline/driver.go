package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fableworks/storyforge/internal/metrics"
)

// Driver is the pipeline entry point: it turns a story's scene prompts into
// a result ledger, one entry per scene, either an image URL or Skipped.
// Each run attempt gets its own deadline; after the retries are spent the
// driver degrades to a strictly sequential pass instead of giving up.
type Driver struct {
	scheduler *BatchScheduler
	exec      *Executor
	cfg       Config
	logger    *slog.Logger
	recorder  *metrics.Recorder

	// sleep is swapped out by tests to observe retry pacing without waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewDriver creates a Driver, validating its collaborators.
func NewDriver(
	scheduler *BatchScheduler,
	exec *Executor,
	cfg Config,
	logger *slog.Logger,
	recorder *metrics.Recorder,
) (*Driver, error) {
	if scheduler == nil {
		return nil, fmt.Errorf("scheduler is required")
	}
	if exec == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Driver{
		scheduler: scheduler,
		exec:      exec,
		cfg:       cfg,
		logger:    logger.With("component", "pipeline_driver"),
		recorder:  recorder,
		sleep:     ctxSleep,
	}, nil
}

// RunStory generates and stores one image per scene prompt and returns the
// ledger in scene order: ledger[i] is the URL for prompts[i], or Skipped if
// that scene failed permanently. The whole concurrent run is bounded by the
// overall deadline and retried on scheduler failure; if every concurrent
// attempt fails, the scenes are retried one at a time with no deadline beyond
// the caller's own context.
func (d *Driver) RunStory(ctx context.Context, storyID string, prompts []string, notifier Notifier) ([]string, error) {
	if storyID == "" {
		return nil, fmt.Errorf("story id is required")
	}
	if len(prompts) == 0 {
		return []string{}, nil
	}

	tasks := buildTasks(storyID, prompts)
	logger := d.logger.With("story_id", storyID, "scenes", len(tasks))

	attempts := d.cfg.RunRetries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("story run aborted: %w", err)
		}

		reporter := NewProgressReporter(notifier, len(tasks), d.cfg.RequireApproval, d.logger)
		runCtx, cancel := context.WithTimeout(ctx, d.cfg.OverallDeadline)
		outcomes, err := d.scheduler.Run(runCtx, tasks, reporter)
		cancel()

		if err == nil {
			ledger := ledgerFrom(len(prompts), outcomes)
			logger.InfoContext(ctx, "story run settled",
				"attempt", attempt,
				"completed", reporter.Completed(),
				"skipped", len(tasks)-reporter.Completed())
			d.recorder.AddSceneResults(reporter.Completed(), len(tasks)-reporter.Completed())
			return ledger, nil
		}

		logger.WarnContext(ctx, "concurrent run failed",
			"attempt", attempt,
			"attempts", attempts,
			"error", err)

		if attempt == attempts {
			break
		}
		d.recorder.RunRetry()
		if serr := d.sleep(ctx, d.cfg.RunRetryDelay); serr != nil {
			return nil, fmt.Errorf("story run aborted: %w", serr)
		}
	}

	logger.WarnContext(ctx, "concurrent runs exhausted, degrading to sequential")
	d.recorder.SequentialFallback()
	return d.runSequential(ctx, tasks, notifier)
}

// runSequential is the last-resort pass: one task at a time, no gate, no
// batching, no run deadline. Task failures still settle as Skipped entries;
// only caller cancellation aborts the pass.
func (d *Driver) runSequential(ctx context.Context, tasks []Task, notifier Notifier) ([]string, error) {
	reporter := NewProgressReporter(notifier, len(tasks), d.cfg.RequireApproval, d.logger)
	outcomes := make([]Outcome, 0, len(tasks))

	for _, t := range tasks {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("sequential pass aborted at task %d: %w", t.Index, err)
		}
		out := d.exec.Execute(ctx, t)
		reporter.Report(ctx, out)
		outcomes = append(outcomes, out)
	}

	d.logger.InfoContext(ctx, "sequential pass settled",
		"completed", reporter.Completed(),
		"skipped", len(tasks)-reporter.Completed())
	d.recorder.AddSceneResults(reporter.Completed(), len(tasks)-reporter.Completed())
	return ledgerFrom(len(tasks), outcomes), nil
}

// buildTasks numbers the prompts and derives each scene's storage key.
func buildTasks(storyID string, prompts []string) []Task {
	tasks := make([]Task, len(prompts))
	for i, p := range prompts {
		tasks[i] = Task{
			Index:          i + 1,
			Prompt:         p,
			DestinationTag: fmt.Sprintf("%s/scene-%02d.png", storyID, i+1),
		}
	}
	return tasks
}

// ledgerFrom folds outcomes into a dense ledger of n entries. Every entry
// starts as Skipped so the ledger is complete even if an outcome is missing.
func ledgerFrom(n int, outcomes []Outcome) []string {
	ledger := make([]string, n)
	for i := range ledger {
		ledger[i] = Skipped
	}
	for _, o := range outcomes {
		if o.OK() && o.Index >= 1 && o.Index <= n {
			ledger[o.Index-1] = o.URL
		}
	}
	return ledger
}
