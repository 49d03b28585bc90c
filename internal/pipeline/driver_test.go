package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDriverHappyPath(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testConfig(), nil, nil)
	notifier := &recordingNotifier{}

	ledger, err := h.driver.RunStory(context.Background(), "story123", makePrompts(3), notifier)

	require.NoError(t, err)
	require.Equal(t, []string{
		"https://img.test/story123/scene-01.png",
		"https://img.test/story123/scene-02.png",
		"https://img.test/story123/scene-03.png",
	}, ledger)

	assert.Equal(t, 3, h.gen.callCount(), "no retries on a clean run")
	assert.Empty(t, h.recordedRetrySleeps())
	assert.False(t, h.flag.Tripped())

	events := notifier.recorded()
	require.Len(t, events, 3)
	for i, ev := range events {
		assert.Equal(t, StatusCompleted, ev.Status)
		assert.Equal(t, i+1, ev.Completed, "completed count must grow monotonically")
		assert.Equal(t, 3, ev.Total)
		assert.NotEmpty(t, ev.URL)
	}
}

func TestDriverLedgerMarksFailuresSkipped(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{
		respond: func(call int, prompt string) ([]byte, error) {
			if prompt == "two" {
				return nil, errors.New("model refused")
			}
			return []byte("png"), nil
		},
	}
	h := newHarness(t, testConfig(), gen, nil)
	notifier := &recordingNotifier{}

	ledger, err := h.driver.RunStory(context.Background(), "sid", []string{"one", "two", "three"}, notifier)

	require.NoError(t, err, "scene failures settle into the ledger, not into an error")
	require.Len(t, ledger, 3)
	assert.Equal(t, "https://img.test/sid/scene-01.png", ledger[0])
	assert.Equal(t, Skipped, ledger[1])
	assert.Equal(t, "https://img.test/sid/scene-03.png", ledger[2])

	// Scene two burned all its attempts; its siblings each took one.
	assert.Equal(t, 5, h.gen.callCount())
	assert.Empty(t, h.recordedRetrySleeps(), "task failures alone never retrigger the run")

	failed := 0
	for _, ev := range notifier.recorded() {
		if ev.Status == StatusFailed {
			failed++
			assert.Empty(t, ev.URL)
		}
	}
	assert.Equal(t, 1, failed)
}

func TestDriverRateLimitedEverywhere(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{
		respond: func(call int, prompt string) ([]byte, error) {
			return nil, errors.New("429 resource_exhausted")
		},
	}
	h := newHarness(t, testConfig(), gen, nil)

	ledger, err := h.driver.RunStory(context.Background(), "sid", makePrompts(3), nil)

	require.NoError(t, err)
	assert.Equal(t, []string{Skipped, Skipped, Skipped}, ledger)
	assert.True(t, h.flag.Tripped())
}

func TestDriverRequireApprovalStatuses(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.RequireApproval = true
	h := newHarness(t, cfg, nil, nil)
	notifier := &recordingNotifier{}

	_, err := h.driver.RunStory(context.Background(), "sid", makePrompts(2), notifier)

	require.NoError(t, err)
	events := notifier.recorded()
	require.Len(t, events, 2)
	for _, ev := range events {
		assert.Equal(t, StatusPendingApproval, ev.Status)
	}
}

func TestDriverRetriesRunThenFallsBackSequential(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.OverallDeadline = 30 * time.Millisecond
	cfg.RunRetries = 2
	gen := &fakeGenerator{delay: 100 * time.Millisecond}
	h := newHarness(t, cfg, gen, nil)

	ledger, err := h.driver.RunStory(context.Background(), "sid", makePrompts(3), nil)

	require.NoError(t, err)
	require.Len(t, ledger, 3)
	for i, entry := range ledger {
		assert.NotEqual(t, Skipped, entry, "scene %d must succeed in the sequential pass", i+1)
	}

	// Three concurrent attempts timed out, with a pause between each.
	assert.Equal(t,
		[]time.Duration{cfg.RunRetryDelay, cfg.RunRetryDelay},
		h.recordedRetrySleeps())
}

// cancelOnSuccessNotifier kills the run's caller context as soon as one scene
// completes. Only the sequential fallback produces completed scenes in the
// tests that use it.
type cancelOnSuccessNotifier struct {
	cancel context.CancelFunc
}

func (n *cancelOnSuccessNotifier) Notify(ctx context.Context, event ProgressEvent) error {
	if event.Status == StatusCompleted {
		n.cancel()
	}
	return nil
}

func TestDriverSequentialFallbackHonorsCallerContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The concurrent attempt always times out; every scene only ever
	// completes in the sequential pass.
	cfg := testConfig()
	cfg.OverallDeadline = 10 * time.Millisecond
	cfg.RunRetries = 0
	gen := &fakeGenerator{delay: 40 * time.Millisecond}
	h := newHarness(t, cfg, gen, nil)

	ledger, err := h.driver.RunStory(ctx, "sid", makePrompts(3), &cancelOnSuccessNotifier{cancel: cancel})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, ledger)
}

func TestDriverRejectsBadInput(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testConfig(), nil, nil)

	_, err := h.driver.RunStory(context.Background(), "", makePrompts(1), nil)
	require.Error(t, err)

	ledger, err := h.driver.RunStory(context.Background(), "sid", nil, nil)
	require.NoError(t, err)
	assert.Empty(t, ledger)
	assert.Equal(t, 0, h.gen.callCount())
}

func TestDriverAbortsOnDeadCallerContext(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testConfig(), nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ledger, err := h.driver.RunStory(ctx, "sid", makePrompts(2), nil)

	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, ledger)
	assert.Equal(t, 0, h.gen.callCount())
}

func TestBuildTasks(t *testing.T) {
	t.Parallel()

	tasks := buildTasks("abc", []string{"first", "second", "third"})

	require.Len(t, tasks, 3)
	assert.Equal(t, Task{Index: 1, Prompt: "first", DestinationTag: "abc/scene-01.png"}, tasks[0])
	assert.Equal(t, Task{Index: 2, Prompt: "second", DestinationTag: "abc/scene-02.png"}, tasks[1])
	assert.Equal(t, Task{Index: 3, Prompt: "third", DestinationTag: "abc/scene-03.png"}, tasks[2])
}

func TestLedgerFrom(t *testing.T) {
	t.Parallel()

	outcomes := []Outcome{
		{Index: 1, URL: "u1"},
		{Index: 2, Err: errors.New("failed")},
		{Index: 4, URL: "u4"},
		{Index: 9, URL: "ignored"}, // out of range
	}

	ledger := ledgerFrom(4, outcomes)

	assert.Equal(t, []string{"u1", Skipped, Skipped, "u4"}, ledger)
}

func TestNewDriverValidation(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testConfig(), nil, nil)

	_, err := NewDriver(nil, h.exec, testConfig(), testLogger(), nil)
	require.Error(t, err)

	_, err = NewDriver(h.sched, nil, testConfig(), testLogger(), nil)
	require.Error(t, err)

	_, err = NewDriver(h.sched, h.exec, testConfig(), nil, nil)
	require.Error(t, err)

	bad := testConfig()
	bad.MaxAttempts = 0
	_, err = NewDriver(h.sched, h.exec, bad, testLogger(), nil)
	require.ErrorIs(t, err, ErrInvalidPipelineConfig)
}
