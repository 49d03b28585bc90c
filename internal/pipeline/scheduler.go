package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/fableworks/storyforge/internal/metrics"
)

// BatchScheduler runs tasks in contiguous batches. Tasks inside a batch run
// concurrently behind the gate; batches run strictly one after another with a
// pacing sleep between them so aggregate throughput stays under the provider
// budget.
type BatchScheduler struct {
	exec     *Executor
	flag     *RateLimitFlag
	cfg      Config
	logger   *slog.Logger
	recorder *metrics.Recorder

	// sleep is swapped out by tests to observe pacing without waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewBatchScheduler creates a scheduler, validating its collaborators.
func NewBatchScheduler(
	exec *Executor,
	flag *RateLimitFlag,
	cfg Config,
	logger *slog.Logger,
	recorder *metrics.Recorder,
) (*BatchScheduler, error) {
	if exec == nil {
		return nil, fmt.Errorf("executor is required")
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
	return &BatchScheduler{
		exec:     exec,
		flag:     flag,
		cfg:      cfg,
		logger:   logger.With("component", "batch_scheduler"),
		recorder: recorder,
		sleep:    ctxSleep,
	}, nil
}

// Run settles every task and returns one Outcome per task, sorted back into
// input order. The returned error is non-nil only when the run was cut short
// by ctx; even then the outcome slice is complete, with the unreached tasks
// marked failed. Individual task failures never produce a run error.
func (s *BatchScheduler) Run(ctx context.Context, tasks []Task, reporter *ProgressReporter) ([]Outcome, error) {
	if len(tasks) == 0 {
		return nil, ErrNoTasks
	}

	batches := partitionTasks(tasks, s.cfg.BatchSize)
	outcomes := make([]Outcome, 0, len(tasks))
	var runErr error

	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			outcomes = append(outcomes, failBatches(batches[i:], err)...)
			runErr = fmt.Errorf("run aborted before batch %d/%d: %w", i+1, len(batches), ErrSchedulerTimeout)
			break
		}

		capacity := s.effectiveConcurrency()
		gate := NewGate(capacity)

		batchStart := time.Now()
		batchOutcomes := s.runBatch(ctx, batch, gate, reporter)
		outcomes = append(outcomes, batchOutcomes...)

		succeeded := 0
		for _, o := range batchOutcomes {
			if o.OK() {
				succeeded++
			}
		}
		s.logger.InfoContext(ctx, "batch settled",
			"batch", i+1,
			"batches", len(batches),
			"size", len(batch),
			"succeeded", succeeded,
			"failed", len(batchOutcomes)-succeeded,
			"capacity", capacity,
			"elapsed", time.Since(batchStart))
		s.recorder.ObserveBatch(time.Since(batchStart), len(batchOutcomes)-succeeded)

		if i == len(batches)-1 {
			break
		}
		if err := s.sleep(ctx, s.cfg.pacingDelay()); err != nil {
			outcomes = append(outcomes, failBatches(batches[i+1:], err)...)
			runErr = fmt.Errorf("run aborted during pacing after batch %d/%d: %w", i+1, len(batches), ErrSchedulerTimeout)
			break
		}
	}

	// A deadline that expired mid-batch leaves runErr unset but poisons every
	// outcome it touched; surface it so the caller's retry path engages.
	if runErr == nil && ctx.Err() != nil {
		runErr = fmt.Errorf("run deadline expired: %w", ErrSchedulerTimeout)
	}

	sort.Slice(outcomes, func(a, b int) bool { return outcomes[a].Index < outcomes[b].Index })
	return outcomes, runErr
}

// runBatch launches every task in its own goroutine and joins them all,
// reporting each outcome as it lands. A fault in the join itself fails the
// whole batch rather than the run.
func (s *BatchScheduler) runBatch(ctx context.Context, batch []Task, gate *Gate, reporter *ProgressReporter) []Outcome {
	// Buffered to the batch size so workers can always deliver and exit,
	// even if the join bails early.
	results := make(chan Outcome, len(batch))
	var wg sync.WaitGroup

	for _, t := range batch {
		wg.Add(1)
		go func(task Task) {
			defer wg.Done()
			results <- s.runTask(ctx, task, gate)
		}(t)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(results)
		close(done)
	}()

	collected, joinErr := s.joinBatch(ctx, results, reporter)
	<-done

	if joinErr != nil {
		s.logger.ErrorContext(ctx, "batch aggregation failed",
			"size", len(batch),
			"error", joinErr)
		return failBatch(batch, joinErr)
	}
	return collected
}

// joinBatch drains the results channel until every worker has delivered.
// A panic while aggregating or reporting is converted to an error so the
// scheduler survives faults in its own bookkeeping.
func (s *BatchScheduler) joinBatch(ctx context.Context, results <-chan Outcome, reporter *ProgressReporter) (collected []Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("batch join panicked: %v", r)
		}
	}()

	for outcome := range results {
		collected = append(collected, outcome)
		if reporter != nil {
			reporter.Report(ctx, outcome)
		}
	}
	return collected, nil
}

// runTask holds a gate slot for the duration of one task. The slot is
// released on every exit path, including panics, so a crashing task cannot
// poison the gate for its siblings.
func (s *BatchScheduler) runTask(ctx context.Context, task Task, gate *Gate) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.ErrorContext(ctx, "task panicked",
				"task_index", task.Index,
				"panic", r)
			out = Outcome{
				Index: task.Index,
				Err:   &TaskError{Index: task.Index, Stage: StageScheduling, Err: fmt.Errorf("panic: %v", r)},
			}
		}
	}()

	if err := gate.Acquire(ctx); err != nil {
		return Outcome{
			Index: task.Index,
			Err:   &TaskError{Index: task.Index, Stage: StageScheduling, Err: fmt.Errorf("acquire concurrency slot: %w", err)},
		}
	}
	defer gate.Release()

	return s.exec.Execute(ctx, task)
}

// effectiveConcurrency is the gate capacity for the next batch: the
// configured cap, halved while the rate limit flag is tripped, never below
// one.
func (s *BatchScheduler) effectiveConcurrency() int {
	capacity := s.cfg.MaxConcurrent
	if s.flag.Tripped() {
		capacity /= 2
		if capacity < 1 {
			capacity = 1
		}
	}
	return capacity
}

// partitionTasks splits tasks into contiguous batches of at most size each.
// Order is preserved; the final batch may be short.
func partitionTasks(tasks []Task, size int) [][]Task {
	var batches [][]Task
	for len(tasks) > size {
		batches = append(batches, tasks[:size])
		tasks = tasks[size:]
	}
	return append(batches, tasks)
}

func failBatch(batch []Task, cause error) []Outcome {
	outs := make([]Outcome, 0, len(batch))
	for _, t := range batch {
		outs = append(outs, Outcome{
			Index: t.Index,
			Err:   &TaskError{Index: t.Index, Stage: StageScheduling, Err: cause},
		})
	}
	return outs
}

func failBatches(batches [][]Task, cause error) []Outcome {
	var outs []Outcome
	for _, batch := range batches {
		outs = append(outs, failBatch(batch, cause)...)
	}
	return outs
}
