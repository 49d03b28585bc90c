package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// subscriberBuffer is how many events a subscriber may lag before the hub
// starts dropping its events.
const subscriberBuffer = 32

// Hub fans events out to in-process subscribers keyed by story. A slow
// subscriber loses events rather than blocking the publisher: progress
// notifications are fire and forget.
type Hub struct {
	mu     sync.RWMutex
	subs   map[uuid.UUID]map[int]chan Event
	nextID int
	logger *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		subs:   make(map[uuid.UUID]map[int]chan Event),
		logger: logger.With("component", "notify_hub"),
	}
}

// Subscribe registers for one story's events. The returned cancel function
// must be called when done; it closes the channel.
func (h *Hub) Subscribe(storyID uuid.UUID) (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	ch := make(chan Event, subscriberBuffer)

	if h.subs[storyID] == nil {
		h.subs[storyID] = make(map[int]chan Event)
	}
	h.subs[storyID][id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		story := h.subs[storyID]
		if story == nil {
			return
		}
		if existing, ok := story[id]; ok {
			delete(story, id)
			close(existing)
		}
		if len(story) == 0 {
			delete(h.subs, storyID)
		}
	}
	return ch, cancel
}

// Publish delivers the event to every subscriber of its story. Never blocks
// and never fails; events to full buffers are dropped with a warning.
func (h *Hub) Publish(ctx context.Context, event Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, ch := range h.subs[event.StoryID] {
		select {
		case ch <- event:
		default:
			h.logger.WarnContext(ctx, "dropping event for slow subscriber",
				"story_id", event.StoryID,
				"subscriber", id,
				"event_type", string(event.Type))
		}
	}
	return nil
}

// SubscriberCount reports active subscriptions for a story.
func (h *Hub) SubscriberCount(storyID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[storyID])
}
