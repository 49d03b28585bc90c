package store

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/fableworks/storyforge/internal/domain"
)

// Story-specific errors, layered on the generic store sentinels.
var (
	// ErrStoryNotFound indicates that the requested story does not exist in the store.
	ErrStoryNotFound = fmt.Errorf("%w: story", ErrNotFound)

	// ErrStoryExists indicates that a story with the given ID is already stored.
	ErrStoryExists = fmt.Errorf("%w: story", ErrDuplicate)

	// ErrStoryNotStartable indicates that the story is not in the drafted state.
	ErrStoryNotStartable = errors.New("story is not in a startable state")
)

// StorySnapshot is a point-in-time copy of one story session. Snapshots are
// detached from the store; mutating one never affects stored state.
type StorySnapshot struct {
	Story   domain.Story
	Scenes  []domain.SceneState
	Results []string
	Failure string
}

// record is the live session state for one story. All access goes through
// SessionStore methods under its lock.
type record struct {
	story   domain.Story
	scenes  []domain.SceneState
	results []string
	failure string
}

func (r *record) snapshot() StorySnapshot {
	snap := StorySnapshot{
		Story:   r.story,
		Failure: r.failure,
	}
	snap.Story.Scenes = append([]string(nil), r.story.Scenes...)
	snap.Scenes = append([]domain.SceneState(nil), r.scenes...)
	if r.results != nil {
		snap.Results = append([]string(nil), r.results...)
	}
	return snap
}

// SessionStore keeps story sessions in process memory. Stories being worked
// on live in a plain map; terminal stories move to a bounded TTL cache so
// clients can still read results for a while without the store growing
// without bound.
type SessionStore struct {
	mu       sync.RWMutex
	active   map[uuid.UUID]*record
	finished *expirable.LRU[uuid.UUID, *record]
	logger   *slog.Logger
}

// NewSessionStore creates a store retaining at most capacity finished
// stories, each for at most retention. Non-positive values fall back to
// 512 stories and 24 hours.
func NewSessionStore(capacity int, retention time.Duration, logger *slog.Logger) *SessionStore {
	if capacity <= 0 {
		capacity = 512
	}
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionStore{
		active:   make(map[uuid.UUID]*record),
		finished: expirable.NewLRU[uuid.UUID, *record](capacity, nil, retention),
		logger:   logger.With("component", "session_store"),
	}
}

// Create stores a validated story in the drafted state with one pending
// scene slot per prompt.
func (s *SessionStore) Create(story domain.Story) error {
	if err := story.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEntity, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.active[story.ID]; ok {
		return ErrStoryExists
	}
	if _, ok := s.finished.Get(story.ID); ok {
		return ErrStoryExists
	}

	now := time.Now().UTC()
	scenes := make([]domain.SceneState, len(story.Scenes))
	for i := range scenes {
		scenes[i] = domain.SceneState{
			Index:     i + 1,
			Status:    domain.SceneStatusPending,
			UpdatedAt: now,
		}
	}
	s.active[story.ID] = &record{story: story, scenes: scenes}

	s.logger.Debug("story session created",
		"story_id", story.ID,
		"scenes", len(scenes))
	return nil
}

// Get returns a snapshot of the story, looking through both the active map
// and the finished cache.
func (s *SessionStore) Get(id uuid.UUID) (StorySnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec := s.locate(id)
	if rec == nil {
		return StorySnapshot{}, ErrStoryNotFound
	}
	return rec.snapshot(), nil
}

// Begin transitions a drafted story to generating. It is the concurrency
// guard against double starts: exactly one caller wins.
func (s *SessionStore) Begin(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.active[id]
	if !ok {
		if _, finished := s.finished.Get(id); finished {
			return ErrStoryNotStartable
		}
		return ErrStoryNotFound
	}
	if rec.story.Status != domain.StoryStatusDrafted {
		return ErrStoryNotStartable
	}
	return rec.story.UpdateStatus(domain.StoryStatusGenerating)
}

// SetStatus overwrites the story status of an active story. Terminal
// transitions go through Complete or Fail instead so retention kicks in.
func (s *SessionStore) SetStatus(id uuid.UUID, status domain.StoryStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.active[id]
	if !ok {
		return ErrStoryNotFound
	}
	return rec.story.UpdateStatus(status)
}

// ReplaceScenes swaps in the standardized prompts and resets every scene
// slot to pending.
func (s *SessionStore) ReplaceScenes(id uuid.UUID, scenes []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.active[id]
	if !ok {
		return ErrStoryNotFound
	}
	if err := rec.story.ReplaceScenes(scenes); err != nil {
		return err
	}

	now := time.Now().UTC()
	states := make([]domain.SceneState, len(scenes))
	for i := range states {
		states[i] = domain.SceneState{
			Index:     i + 1,
			Status:    domain.SceneStatusPending,
			UpdatedAt: now,
		}
	}
	rec.scenes = states
	return nil
}

// UpdateScene overwrites one scene slot. The index must address an existing
// slot; scene counts only change through ReplaceScenes.
func (s *SessionStore) UpdateScene(id uuid.UUID, scene domain.SceneState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.locate(id)
	if rec == nil {
		return ErrStoryNotFound
	}
	if scene.Index < 1 || scene.Index > len(rec.scenes) {
		return fmt.Errorf("scene index %d out of range 1..%d", scene.Index, len(rec.scenes))
	}
	scene.UpdatedAt = time.Now().UTC()
	rec.scenes[scene.Index-1] = scene
	return nil
}

// Complete stores the result ledger, marks the story with its terminal
// status, and moves it to the finished cache.
func (s *SessionStore) Complete(id uuid.UUID, results []string, status domain.StoryStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.active[id]
	if !ok {
		return ErrStoryNotFound
	}
	if err := rec.story.UpdateStatus(status); err != nil {
		return err
	}
	rec.results = append([]string(nil), results...)

	delete(s.active, id)
	s.finished.Add(id, rec)
	return nil
}

// Fail marks the story failed with a reason and moves it to the finished
// cache.
func (s *SessionStore) Fail(id uuid.UUID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.active[id]
	if !ok {
		return ErrStoryNotFound
	}
	if err := rec.story.UpdateStatus(domain.StoryStatusFailed); err != nil {
		return err
	}
	rec.failure = reason

	delete(s.active, id)
	s.finished.Add(id, rec)
	return nil
}

// ActiveCount reports how many stories are drafted or generating.
func (s *SessionStore) ActiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.active)
}

// FinishedCount reports how many terminal stories remain queryable.
func (s *SessionStore) FinishedCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.finished.Len()
}

// locate must be called with the lock held.
func (s *SessionStore) locate(id uuid.UUID) *record {
	if rec, ok := s.active[id]; ok {
		return rec
	}
	if rec, ok := s.finished.Get(id); ok {
		return rec
	}
	return nil
}
