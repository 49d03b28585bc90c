package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventType labels what happened to a story.
type EventType string

// Event types published over the notification channel.
const (
	// EventImageReady fires once per scene as its task settles, success or
	// failure.
	EventImageReady EventType = "image_ready"

	// EventStoryComplete fires once when the whole story run settles.
	EventStoryComplete EventType = "story_complete"

	// EventStoryError fires when the run aborts before producing a ledger.
	EventStoryError EventType = "story_error"
)

// Event is the wire shape shared by the in-process hub and the Redis
// channel. Scene-scoped fields are zero for story-scoped events.
type Event struct {
	StoryID         uuid.UUID `json:"story_id"`
	Type            EventType `json:"type"`
	SceneNumber     int       `json:"scene_number,omitempty"`
	Status          string    `json:"status,omitempty"`
	ImageURL        string    `json:"image_url,omitempty"`
	VideoURL        string    `json:"video_url,omitempty"`
	CompletedScenes int       `json:"completed_scenes"`
	TotalScenes     int       `json:"total_scenes"`
	Error           string    `json:"error,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// Publisher pushes events toward subscribers. Implementations must be safe
// for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Fanout publishes to every sink, attempting all of them before returning
// the first error encountered.
type Fanout struct {
	sinks []Publisher
}

// NewFanout combines sinks into one Publisher. Nil sinks are skipped so
// optional channels wire in cleanly.
func NewFanout(sinks ...Publisher) *Fanout {
	f := &Fanout{}
	for _, s := range sinks {
		if s != nil {
			f.sinks = append(f.sinks, s)
		}
	}
	return f
}

// Publish delivers the event to all sinks.
func (f *Fanout) Publish(ctx context.Context, event Event) error {
	var firstErr error
	for _, s := range f.sinks {
		if err := s.Publish(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
