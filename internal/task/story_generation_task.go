package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/fableworks/storyforge/internal/domain"
	"github.com/fableworks/storyforge/internal/generation"
	"github.com/fableworks/storyforge/internal/metrics"
	"github.com/fableworks/storyforge/internal/notify"
	"github.com/fableworks/storyforge/internal/pipeline"
	"github.com/fableworks/storyforge/internal/store"
)

// Common errors
var (
	ErrNilStore        = errors.New("story store cannot be nil")
	ErrNilStandardizer = errors.New("prompt standardizer cannot be nil")
	ErrNilDriver       = errors.New("pipeline driver cannot be nil")
	ErrNilPublisher    = errors.New("event publisher cannot be nil")
	ErrNilLogger       = errors.New("logger cannot be nil")
	ErrEmptyStoryID    = errors.New("story ID cannot be empty")
)

// defaultMotionPrompt animates scene images in the optional video stage. The
// original flow collected a motion prompt per scene from an operator; the
// service uses one neutral prompt instead.
const defaultMotionPrompt = "Gentle cinematic camera push-in with soft ambient motion, keeping the subject centered."

// StoryStore is the slice of the session store the generation task needs.
type StoryStore interface {
	// Get retrieves a story snapshot by its ID
	Get(id uuid.UUID) (store.StorySnapshot, error)

	// UpdateScene records one scene's reportable progress
	UpdateScene(id uuid.UUID, scene domain.SceneState) error

	// Complete finalizes a story with its result ledger and terminal status
	Complete(id uuid.UUID, results []string, status domain.StoryStatus) error

	// Fail marks a story failed with a reason
	Fail(id uuid.UUID, reason string) error
}

// PromptStandardizer rewrites scene descriptions into image prompts that
// share one visual style.
type PromptStandardizer interface {
	StandardizePrompts(ctx context.Context, scenes []string) ([]string, error)
}

// PipelineDriver runs the concurrent image generation pipeline for a story.
type PipelineDriver interface {
	RunStory(ctx context.Context, storyID string, prompts []string, notifier pipeline.Notifier) ([]string, error)
}

// StoryGenerationTask implements the Task interface for generating all of a
// story's scene images: standardize the scene prompts, run the pipeline,
// optionally animate the results, then finalize the story.
type StoryGenerationTask struct {
	id           uuid.UUID
	storyID      uuid.UUID
	store        StoryStore
	standardizer PromptStandardizer
	driver       PipelineDriver
	video        generation.VideoSynthesizer
	publisher    notify.Publisher
	recorder     *metrics.Recorder
	logger       *slog.Logger
}

// NewStoryGenerationTask creates a new story generation task. The video
// synthesizer may be nil when the video stage is disabled; the metrics
// recorder may be nil.
func NewStoryGenerationTask(
	storyID uuid.UUID,
	storyStore StoryStore,
	standardizer PromptStandardizer,
	driver PipelineDriver,
	video generation.VideoSynthesizer,
	publisher notify.Publisher,
	recorder *metrics.Recorder,
	logger *slog.Logger,
) (*StoryGenerationTask, error) {
	if storyStore == nil {
		return nil, ErrNilStore
	}
	if standardizer == nil {
		return nil, ErrNilStandardizer
	}
	if driver == nil {
		return nil, ErrNilDriver
	}
	if publisher == nil {
		return nil, ErrNilPublisher
	}
	if logger == nil {
		return nil, ErrNilLogger
	}
	if storyID == uuid.Nil {
		return nil, ErrEmptyStoryID
	}

	return &StoryGenerationTask{
		id:           uuid.New(),
		storyID:      storyID,
		store:        storyStore,
		standardizer: standardizer,
		driver:       driver,
		video:        video,
		publisher:    publisher,
		recorder:     recorder,
		logger:       logger.With("task_type", TaskTypeStoryGeneration, "story_id", storyID),
	}, nil
}

// ID returns the task's unique identifier
func (t *StoryGenerationTask) ID() uuid.UUID {
	return t.id
}

// Type returns the task type identifier
func (t *StoryGenerationTask) Type() string {
	return TaskTypeStoryGeneration
}

// Execute runs the story generation task, handling the complete lifecycle:
// loading the story, standardizing its scene prompts, running the image
// pipeline, the optional video stage, and finalizing status, ledger, and
// notifications. The story ends failed only when the whole run fails;
// individual scene failures degrade the result instead.
func (t *StoryGenerationTask) Execute(ctx context.Context) error {
	t.logger.InfoContext(ctx, "starting story generation task")

	if err := ctx.Err(); err != nil {
		t.fail(ctx, fmt.Sprintf("task cancelled: %v", err))
		return fmt.Errorf("task cancelled by context: %w", err)
	}

	// 1. Load the story
	snap, err := t.store.Get(t.storyID)
	if err != nil {
		return fmt.Errorf("failed to load story: %w", err)
	}
	scenes := snap.Story.Scenes

	t.recorder.StoryStarted()

	// 2. Standardize the scene descriptions into image prompts
	t.logger.InfoContext(ctx, "standardizing scene prompts", "scene_count", len(scenes))
	prompts, err := t.standardizer.StandardizePrompts(ctx, scenes)
	if err != nil {
		t.fail(ctx, fmt.Sprintf("prompt standardization failed: %v", err))
		t.recorder.StoryFinished(string(domain.StoryStatusFailed))
		return fmt.Errorf("failed to standardize prompts: %w", err)
	}

	// 3. Run the image pipeline
	notifier := &progressNotifier{storyID: t.storyID, store: t.store, publisher: t.publisher}
	results, err := t.driver.RunStory(ctx, t.storyID.String(), prompts, notifier)
	if err != nil {
		t.fail(ctx, fmt.Sprintf("image pipeline failed: %v", err))
		t.recorder.StoryFinished(string(domain.StoryStatusFailed))
		return fmt.Errorf("story run failed: %w", err)
	}

	completed := 0
	for _, r := range results {
		if r != pipeline.Skipped {
			completed++
		}
	}
	skipped := len(results) - completed

	// 4. Optional video stage; failures never fail the story
	if t.video != nil && completed > 0 {
		t.synthesizeVideos(ctx, results)
	}

	// 5. Finalize status, ledger, and notifications
	status := domain.StoryStatusCompleted
	if skipped > 0 {
		status = domain.StoryStatusCompletedWithErrors
	}
	if err := t.store.Complete(t.storyID, results, status); err != nil {
		// The images exist and were reported; losing the final status
		// transition is not worth failing the task over.
		t.logger.ErrorContext(ctx, "failed to finalize story", "error", err)
	}

	t.recorder.AddSceneResults(completed, skipped)
	t.recorder.StoryFinished(string(status))

	t.publish(ctx, notify.Event{
		Type:            notify.EventStoryComplete,
		Status:          string(status),
		CompletedScenes: completed,
		TotalScenes:     len(results),
	})

	t.logger.InfoContext(ctx, "story generation task completed",
		"status", status,
		"completed_scenes", completed,
		"skipped_scenes", skipped)
	return nil
}

// synthesizeVideos animates each completed scene image. Scenes whose video
// job fails keep their image and simply have no video.
func (t *StoryGenerationTask) synthesizeVideos(ctx context.Context, results []string) {
	t.logger.InfoContext(ctx, "starting video stage")

	for i, imageURL := range results {
		if imageURL == pipeline.Skipped {
			continue
		}

		videoURL, err := t.video.Synthesize(ctx, defaultMotionPrompt, imageURL)
		if err != nil {
			t.logger.WarnContext(ctx, "video synthesis failed",
				"scene", i+1,
				"error", err)
			continue
		}

		state := domain.SceneState{
			Index:    i + 1,
			Status:   domain.SceneStatusCompleted,
			ImageURL: imageURL,
			VideoURL: videoURL,
		}
		if err := t.store.UpdateScene(t.storyID, state); err != nil {
			t.logger.WarnContext(ctx, "failed to record scene video",
				"scene", i+1,
				"error", err)
		}
	}
}

// fail marks the story failed and announces it. Used for whole-run faults
// only.
func (t *StoryGenerationTask) fail(ctx context.Context, reason string) {
	if err := t.store.Fail(t.storyID, reason); err != nil {
		t.logger.ErrorContext(ctx, "failed to mark story failed", "error", err)
	}

	t.publish(ctx, notify.Event{
		Type:   notify.EventStoryError,
		Status: string(domain.StoryStatusFailed),
		Error:  reason,
	})
}

func (t *StoryGenerationTask) publish(ctx context.Context, event notify.Event) {
	event.StoryID = t.storyID
	event.Timestamp = time.Now().UTC()

	if err := t.publisher.Publish(ctx, event); err != nil {
		t.logger.WarnContext(ctx, "failed to publish story event",
			"event_type", event.Type,
			"error", err)
	}
}

// progressNotifier adapts pipeline progress events into scene-state updates
// and client notifications. The pipeline treats notification as
// fire-and-forget, so errors returned here are logged there and never affect
// the run.
type progressNotifier struct {
	storyID   uuid.UUID
	store     StoryStore
	publisher notify.Publisher
}

func (n *progressNotifier) Notify(ctx context.Context, event pipeline.ProgressEvent) error {
	state := domain.SceneState{
		Index:    event.Index,
		Status:   sceneStatusFor(event.Status),
		ImageURL: event.URL,
	}
	if err := n.store.UpdateScene(n.storyID, state); err != nil {
		return fmt.Errorf("failed to update scene state: %w", err)
	}

	return n.publisher.Publish(ctx, notify.Event{
		StoryID:         n.storyID,
		Type:            notify.EventImageReady,
		SceneNumber:     event.Index,
		Status:          string(event.Status),
		ImageURL:        event.URL,
		CompletedScenes: event.Completed,
		TotalScenes:     event.Total,
		Timestamp:       time.Now().UTC(),
	})
}

func sceneStatusFor(status pipeline.ProgressStatus) domain.SceneStatus {
	switch status {
	case pipeline.StatusPendingApproval:
		return domain.SceneStatusPendingApproval
	case pipeline.StatusCompleted:
		return domain.SceneStatusCompleted
	default:
		return domain.SceneStatusFailed
	}
}
