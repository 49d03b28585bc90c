package task

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/fableworks/storyforge/internal/generation"
	"github.com/fableworks/storyforge/internal/metrics"
	"github.com/fableworks/storyforge/internal/notify"
)

// StoryGenerationTaskFactory creates StoryGenerationTask instances with the
// shared service dependencies pre-bound.
type StoryGenerationTaskFactory struct {
	store        StoryStore
	standardizer PromptStandardizer
	driver       PipelineDriver
	video        generation.VideoSynthesizer
	publisher    notify.Publisher
	recorder     *metrics.Recorder
	logger       *slog.Logger
}

// NewStoryGenerationTaskFactory creates a new factory for
// StoryGenerationTasks. The video synthesizer may be nil when the video
// stage is disabled.
func NewStoryGenerationTaskFactory(
	storyStore StoryStore,
	standardizer PromptStandardizer,
	driver PipelineDriver,
	video generation.VideoSynthesizer,
	publisher notify.Publisher,
	recorder *metrics.Recorder,
	logger *slog.Logger,
) *StoryGenerationTaskFactory {
	return &StoryGenerationTaskFactory{
		store:        storyStore,
		standardizer: standardizer,
		driver:       driver,
		video:        video,
		publisher:    publisher,
		recorder:     recorder,
		logger:       logger.With("component", "story_generation_task_factory"),
	}
}

// CreateTask creates a new StoryGenerationTask for the specified story
func (f *StoryGenerationTaskFactory) CreateTask(storyID uuid.UUID) (Task, error) {
	task, err := NewStoryGenerationTask(
		storyID,
		f.store,
		f.standardizer,
		f.driver,
		f.video,
		f.publisher,
		f.recorder,
		f.logger,
	)
	if err != nil {
		return nil, err
	}
	return task, nil
}
