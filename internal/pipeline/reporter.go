package pipeline

import (
	"context"
	"log/slog"
)

// ProgressReporter pushes fire-and-forget progress events as tasks settle.
// A failing notification channel is logged and otherwise ignored; progress
// reporting must never alter task results or stall the run.
//
// Report is not safe for concurrent use. The scheduler calls it from the
// batch join loop only, and each run gets its own reporter so cumulative
// counts never leak across runs.
type ProgressReporter struct {
	notifier        Notifier
	total           int
	requireApproval bool
	logger          *slog.Logger

	completed int
}

// NewProgressReporter creates a reporter for a run of total tasks. A nil
// notifier disables delivery while keeping the bookkeeping.
func NewProgressReporter(notifier Notifier, total int, requireApproval bool, logger *slog.Logger) *ProgressReporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProgressReporter{
		notifier:        notifier,
		total:           total,
		requireApproval: requireApproval,
		logger:          logger.With("component", "progress_reporter"),
	}
}

// Report emits one event for a settled task. Successful tasks advance the
// cumulative completed count and are reported as pending_approval when the
// run requires human review, completed otherwise.
func (r *ProgressReporter) Report(ctx context.Context, outcome Outcome) {
	status := StatusFailed
	if outcome.OK() {
		r.completed++
		status = StatusCompleted
		if r.requireApproval {
			status = StatusPendingApproval
		}
	}

	if r.notifier == nil {
		return
	}
	event := ProgressEvent{
		Index:     outcome.Index,
		Status:    status,
		URL:       outcome.URL,
		Completed: r.completed,
		Total:     r.total,
	}
	if err := r.notifier.Notify(ctx, event); err != nil {
		r.logger.WarnContext(ctx, "progress notification failed",
			"task_index", outcome.Index,
			"status", string(status),
			"error", err)
	}
}

// Completed returns the cumulative count of successful tasks reported so far.
func (r *ProgressReporter) Completed() int {
	return r.completed
}
