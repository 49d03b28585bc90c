package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Common errors returned by the Runner
var (
	ErrQueueClosed = errors.New("task queue is closed")
	ErrQueueFull   = errors.New("task queue is full")
)

// RunnerConfig holds configuration for the task runner
type RunnerConfig struct {
	// WorkerCount determines how many concurrent workers process tasks
	WorkerCount int

	// QueueSize determines the buffer size for the in-memory task queue
	QueueSize int
}

// DefaultRunnerConfig returns a RunnerConfig with reasonable defaults
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		WorkerCount: 2,
		QueueSize:   16,
	}
}

// Runner manages background task processing: a bounded in-memory queue
// drained by a fixed pool of worker goroutines. Submissions never block;
// a full queue is reported to the caller instead.
type Runner struct {
	taskChan    chan Task
	workerCount int
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	logger      *slog.Logger

	mu     sync.Mutex
	closed bool
}

// NewRunner creates a new Runner. Invalid config values fall back to the
// defaults.
func NewRunner(config RunnerConfig, logger *slog.Logger) *Runner {
	if config.WorkerCount <= 0 {
		logger.Warn("invalid worker count specified, using default",
			"specified_count", config.WorkerCount,
			"default_count", 1)
		config.WorkerCount = 1
	}
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultRunnerConfig().QueueSize
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Runner{
		taskChan:    make(chan Task, config.QueueSize),
		workerCount: config.WorkerCount,
		ctx:         ctx,
		cancel:      cancel,
		logger:      logger.With("component", "task_runner"),
	}
}

// Submit adds a new task to the queue. It returns ErrQueueFull when the
// queue's buffer is exhausted and ErrQueueClosed after Stop.
func (r *Runner) Submit(task Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrQueueClosed
	}

	select {
	case r.taskChan <- task:
		r.logger.Debug("task enqueued",
			"task_id", task.ID(),
			"task_type", task.Type(),
			"queue_len", len(r.taskChan),
			"queue_cap", cap(r.taskChan))
		return nil
	default:
		return fmt.Errorf("%w: queue capacity %d reached", ErrQueueFull, cap(r.taskChan))
	}
}

// Start launches the worker pool.
func (r *Runner) Start() {
	for i := 0; i < r.workerCount; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}

	r.logger.Info("task runner started",
		"workers", r.workerCount,
		"queue_cap", cap(r.taskChan))
}

// Stop shuts the runner down: no new submissions are accepted, in-flight
// tasks see their context cancelled, and Stop returns once every worker has
// exited. Tasks still waiting in the queue are dropped.
func (r *Runner) Stop() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.mu.Unlock()

	r.cancel()
	r.wg.Wait()
	close(r.taskChan)

	r.logger.Info("task runner stopped")
}

// worker processes tasks from the queue
func (r *Runner) worker(id int) {
	defer r.wg.Done()

	r.logger.Debug("starting worker", "worker_id", id)

	for {
		select {
		case <-r.ctx.Done():
			r.logger.Debug("stopping worker", "worker_id", id)
			return

		case task, ok := <-r.taskChan:
			if !ok {
				r.logger.Debug("task channel closed, stopping worker", "worker_id", id)
				return
			}
			r.processTask(task, id)
		}
	}
}

// processTask handles execution of a single task. A panicking task must not
// take its worker down with it.
func (r *Runner) processTask(task Task, workerID int) {
	logger := r.logger.With(
		"task_id", task.ID(),
		"task_type", task.Type(),
		"worker_id", workerID,
	)

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("task panicked", "panic", rec)
		}
	}()

	logger.Info("processing task")
	start := time.Now()

	if err := task.Execute(r.ctx); err != nil {
		logger.Error("task execution failed",
			"error", err,
			"elapsed", time.Since(start))
		return
	}

	logger.Info("task completed successfully", "elapsed", time.Since(start))
}
