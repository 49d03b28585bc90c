package pipeline

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fableworks/storyforge/internal/sanitize"
)

// fakeGenerator is a scriptable ImageGenerator that records every call and
// tracks how many calls overlap.
type fakeGenerator struct {
	mu          sync.Mutex
	calls       int
	prompts     []string
	inFlight    int
	maxInFlight int

	delay   time.Duration
	respond func(call int, prompt string) ([]byte, error)
}

func (g *fakeGenerator) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	g.mu.Lock()
	g.calls++
	call := g.calls
	g.prompts = append(g.prompts, prompt)
	g.inFlight++
	if g.inFlight > g.maxInFlight {
		g.maxInFlight = g.inFlight
	}
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		g.inFlight--
		g.mu.Unlock()
	}()

	if g.delay > 0 {
		select {
		case <-time.After(g.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if g.respond != nil {
		return g.respond(call, prompt)
	}
	return []byte("png"), nil
}

func (g *fakeGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func (g *fakeGenerator) promptAt(i int) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.prompts[i]
}

func (g *fakeGenerator) peakConcurrency() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.maxInFlight
}

// fakeUploader mirrors fakeGenerator for the storage side.
type fakeUploader struct {
	mu          sync.Mutex
	calls       int
	keys        []string
	inFlight    int
	maxInFlight int

	delay   time.Duration
	respond func(call int, key string) (string, error)
}

func (u *fakeUploader) Upload(ctx context.Context, objectKey string, data []byte) (string, error) {
	u.mu.Lock()
	u.calls++
	call := u.calls
	u.keys = append(u.keys, objectKey)
	u.inFlight++
	if u.inFlight > u.maxInFlight {
		u.maxInFlight = u.inFlight
	}
	u.mu.Unlock()

	defer func() {
		u.mu.Lock()
		u.inFlight--
		u.mu.Unlock()
	}()

	if u.delay > 0 {
		select {
		case <-time.After(u.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if u.respond != nil {
		return u.respond(call, objectKey)
	}
	return "https://img.test/" + objectKey, nil
}

func (u *fakeUploader) callCount() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.calls
}

func (u *fakeUploader) peakConcurrency() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.maxInFlight
}

// recordingNotifier captures progress events. It can be told to fail every
// call or to panic exactly once, which is how join-level faults are injected.
type recordingNotifier struct {
	mu        sync.Mutex
	events    []ProgressEvent
	err       error
	panicOnce bool
}

func (n *recordingNotifier) Notify(ctx context.Context, event ProgressEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.panicOnce {
		n.panicOnce = false
		panic("notifier exploded")
	}
	n.events = append(n.events, event)
	return n.err
}

func (n *recordingNotifier) recorded() []ProgressEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]ProgressEvent, len(n.events))
	copy(out, n.events)
	return out
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testConfig shrinks every delay so retry and pacing paths run in
// milliseconds.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.GenericBackoff = 2 * time.Millisecond
	cfg.RateLimitBackoff = 10 * time.Millisecond
	cfg.RunRetryDelay = time.Millisecond
	cfg.OverallDeadline = 5 * time.Second
	cfg.PromptMaxLen = 120
	return cfg
}

// harness wires a full pipeline around fakes. Pacing and retry sleeps are
// recorded instead of slept.
type harness struct {
	gen    *fakeGenerator
	up     *fakeUploader
	flag   *RateLimitFlag
	exec   *Executor
	sched  *BatchScheduler
	driver *Driver

	mu          sync.Mutex
	paceSleeps  []time.Duration
	retrySleeps []time.Duration
}

func newHarness(t *testing.T, cfg Config, gen *fakeGenerator, up *fakeUploader) *harness {
	t.Helper()

	if gen == nil {
		gen = &fakeGenerator{}
	}
	if up == nil {
		up = &fakeUploader{}
	}

	h := &harness{gen: gen, up: up, flag: NewRateLimitFlag()}

	exec, err := NewExecutor(gen, up, sanitize.Default(), h.flag, cfg, testLogger(), nil)
	require.NoError(t, err)
	h.exec = exec

	sched, err := NewBatchScheduler(exec, h.flag, cfg, testLogger(), nil)
	require.NoError(t, err)
	sched.sleep = func(ctx context.Context, d time.Duration) error {
		h.mu.Lock()
		h.paceSleeps = append(h.paceSleeps, d)
		h.mu.Unlock()
		return ctx.Err()
	}
	h.sched = sched

	driver, err := NewDriver(sched, exec, cfg, testLogger(), nil)
	require.NoError(t, err)
	driver.sleep = func(ctx context.Context, d time.Duration) error {
		h.mu.Lock()
		h.retrySleeps = append(h.retrySleeps, d)
		h.mu.Unlock()
		return ctx.Err()
	}
	h.driver = driver

	return h
}

func (h *harness) recordedPaceSleeps() []time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]time.Duration, len(h.paceSleeps))
	copy(out, h.paceSleeps)
	return out
}

func (h *harness) recordedRetrySleeps() []time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]time.Duration, len(h.retrySleeps))
	copy(out, h.retrySleeps)
	return out
}

func makeTasks(n int) []Task {
	tasks := make([]Task, n)
	for i := range tasks {
		tasks[i] = Task{
			Index:          i + 1,
			Prompt:         "scene prompt",
			DestinationTag: "story/scene.png",
		}
	}
	return tasks
}

func makePrompts(n int) []string {
	prompts := make([]string, n)
	for i := range prompts {
		prompts[i] = "a quiet meadow at dawn"
	}
	return prompts
}
