package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/fableworks/storyforge/internal/api/shared"
	"github.com/fableworks/storyforge/internal/domain"
	"github.com/fableworks/storyforge/internal/generation"
	"github.com/fableworks/storyforge/internal/notify"
	"github.com/fableworks/storyforge/internal/store"
	"github.com/fableworks/storyforge/internal/task"
)

// heartbeatInterval keeps idle SSE connections from being reaped by proxies.
const heartbeatInterval = 30 * time.Second

// StorySessions is the slice of the session store the handlers need.
type StorySessions interface {
	Create(story domain.Story) error
	Get(id uuid.UUID) (store.StorySnapshot, error)
	Begin(id uuid.UUID) error
	SetStatus(id uuid.UUID, status domain.StoryStatus) error
	ReplaceScenes(id uuid.UUID, scenes []string) error
}

// StoryTaskFactory builds the background task that generates one story's
// images.
type StoryTaskFactory interface {
	CreateTask(storyID uuid.UUID) (task.Task, error)
}

// TaskScheduler enqueues background tasks.
type TaskScheduler interface {
	Submit(t task.Task) error
}

// EventSource delivers one story's progress events to a subscriber. The
// cancel function releases the subscription.
type EventSource interface {
	Subscribe(storyID uuid.UUID) (<-chan notify.Event, func())
}

// StoryHandler handles story-related HTTP requests.
type StoryHandler struct {
	sessions  StorySessions
	scripter  generation.ScriptGenerator
	factory   StoryTaskFactory
	scheduler TaskScheduler
	events    EventSource
	logger    *slog.Logger
	validator *validator.Validate
}

// NewStoryHandler creates a new StoryHandler.
func NewStoryHandler(
	sessions StorySessions,
	scripter generation.ScriptGenerator,
	factory StoryTaskFactory,
	scheduler TaskScheduler,
	events EventSource,
	logger *slog.Logger,
) *StoryHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StoryHandler{
		sessions:  sessions,
		scripter:  scripter,
		factory:   factory,
		scheduler: scheduler,
		events:    events,
		logger:    logger.With("component", "story_handler"),
		validator: validator.New(),
	}
}

// CreateStory handles POST /api/stories requests. Scripting runs
// synchronously so the client gets the drafted scenes back for review before
// committing to image generation.
func (h *StoryHandler) CreateStory(w http.ResponseWriter, r *http.Request) {
	var req CreateStoryRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
		return
	}

	// Quiz answers have conditional requirements the struct tags cannot
	// express, so the domain check runs as well. Its messages are written
	// for users and safe to return.
	answers := req.Answers()
	if err := answers.Validate(); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	scenes, err := h.scripter.GenerateScript(r.Context(), answers)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	story, err := domain.NewStory(req.Title, answers, scenes)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "Failed to create story", err)
		return
	}
	if err := h.sessions.Create(*story); err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	h.logger.InfoContext(r.Context(), "story drafted",
		"story_id", story.ID,
		"scene_count", len(scenes))

	shared.RespondWithJSON(w, r, http.StatusAccepted, StoryCreatedResponse{
		StoryID: story.ID.String(),
		Status:  string(story.Status),
		Scenes:  scenes,
	})
}

// StartStory handles POST /api/stories/{id}/start requests. Winning the
// drafted-to-generating transition is the double-start guard, so it happens
// before anything else; every later failure rolls the story back to drafted
// so the client can retry.
func (h *StoryHandler) StartStory(w http.ResponseWriter, r *http.Request) {
	storyID, err := getPathUUID(r, "id")
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid story ID")
		return
	}

	var req StartStoryRequest
	if err := shared.DecodeJSON(r, &req); err != nil && !errors.Is(err, shared.ErrEmptyBody) {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
		return
	}

	if err := h.sessions.Begin(storyID); err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	if len(req.Scenes) > 0 {
		if err := h.sessions.ReplaceScenes(storyID, req.Scenes); err != nil {
			h.rollback(r.Context(), storyID)
			shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid scene list", err)
			return
		}
	}

	storyTask, err := h.factory.CreateTask(storyID)
	if err != nil {
		h.rollback(r.Context(), storyID)
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Failed to schedule story generation", err)
		return
	}
	if err := h.scheduler.Submit(storyTask); err != nil {
		h.rollback(r.Context(), storyID)
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	h.logger.InfoContext(r.Context(), "story generation scheduled", "story_id", storyID)

	shared.RespondWithJSON(w, r, http.StatusAccepted, StoryStartedResponse{
		StoryID: storyID.String(),
		Status:  string(domain.StoryStatusGenerating),
	})
}

// GetStory handles GET /api/stories/{id} requests.
func (h *StoryHandler) GetStory(w http.ResponseWriter, r *http.Request) {
	storyID, err := getPathUUID(r, "id")
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid story ID")
		return
	}

	snap, err := h.sessions.Get(storyID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, storyToResponse(snap))
}

// StreamEvents handles GET /api/stories/{id}/events requests, streaming
// progress as Server-Sent Events until the story settles or the client
// disconnects.
func (h *StoryHandler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	storyID, err := getPathUUID(r, "id")
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid story ID")
		return
	}
	if _, err := h.sessions.Get(storyID); err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	// Subscribe before writing headers so no event published between the
	// two is missed.
	events, cancel := h.events.Subscribe(storyID)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if _, err := fmt.Fprintf(w, "event: connected\ndata: {\"story_id\":%q}\n\n", storyID); err != nil {
		return
	}
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case <-heartbeat.C:
			if _, err := io.WriteString(w, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()

		case event, open := <-events:
			if !open {
				return
			}
			if err := writeServerSentEvent(w, event); err != nil {
				h.logger.WarnContext(r.Context(), "failed to write progress event",
					"story_id", storyID,
					"error", err)
				return
			}
			flusher.Flush()
			if event.Type == notify.EventStoryComplete || event.Type == notify.EventStoryError {
				return
			}
		}
	}
}

// writeServerSentEvent renders one event in SSE framing.
func writeServerSentEvent(w io.Writer, event notify.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, payload)
	return err
}

// rollback returns a story to drafted after a failed start attempt.
func (h *StoryHandler) rollback(ctx context.Context, storyID uuid.UUID) {
	if err := h.sessions.SetStatus(storyID, domain.StoryStatusDrafted); err != nil {
		h.logger.ErrorContext(ctx, "failed to roll back story to drafted",
			"story_id", storyID,
			"error", err)
	}
}

// getPathUUID extracts and parses a UUID path parameter.
func getPathUUID(r *http.Request, param string) (uuid.UUID, error) {
	raw := chi.URLParam(r, param)
	if raw == "" {
		return uuid.Nil, fmt.Errorf("missing %s path parameter", param)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s path parameter: %w", param, err)
	}
	return id, nil
}
