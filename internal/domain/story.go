package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// StoryStatus represents the lifecycle state of a story
type StoryStatus string

// Possible story status values
const (
	StoryStatusDrafted             StoryStatus = "drafted"
	StoryStatusGenerating          StoryStatus = "generating"
	StoryStatusCompleted           StoryStatus = "completed"
	StoryStatusCompletedWithErrors StoryStatus = "completed_with_errors"
	StoryStatusFailed              StoryStatus = "failed"
)

// SceneStatus represents the per-scene progress reported to clients
type SceneStatus string

// Possible scene status values
const (
	SceneStatusPending         SceneStatus = "pending"
	SceneStatusGenerating      SceneStatus = "generating"
	SceneStatusPendingApproval SceneStatus = "pending_approval"
	SceneStatusCompleted       SceneStatus = "completed"
	SceneStatusFailed          SceneStatus = "failed"
)

// Common validation errors for Story
var (
	ErrEmptyStoryID       = errors.New("story ID cannot be empty")
	ErrEmptyStoryTitle    = errors.New("story title cannot be empty")
	ErrNoScenes           = errors.New("story must have at least one scene")
	ErrEmptyScene         = errors.New("scene description cannot be empty")
	ErrInvalidStoryStatus = errors.New("invalid story status")
	ErrInvalidAnswers     = errors.New("invalid answers")
)

// Answers is the quiz-derived story configuration. The fields parameterize
// the fixed narrative template the scripting stage expands.
type Answers struct {
	Protagonist  string `json:"protagonist"`
	OpeningStyle string `json:"opening_style"`
	Humiliation  string `json:"humiliation,omitempty"`
	OfferingWho  string `json:"offering_who,omitempty"`
	OfferingWhat string `json:"offering_what,omitempty"`
	Discovery    string `json:"discovery"`
	DiscoveryUse string `json:"discovery_use"`
	VillainCrime string `json:"villain_crime,omitempty"`
}

// Opening styles recognized by the scripting template.
const (
	OpeningHumiliation = "humiliation"
	OpeningOffering    = "offering"
)

// Validate checks that the answers carry every field the chosen opening
// style needs to expand the narrative template.
func (a Answers) Validate() error {
	if a.Protagonist == "" {
		return fmt.Errorf("%w: protagonist is required", ErrInvalidAnswers)
	}

	switch a.OpeningStyle {
	case OpeningHumiliation:
		if a.Humiliation == "" {
			return fmt.Errorf("%w: humiliation opening requires a humiliation description", ErrInvalidAnswers)
		}
	case OpeningOffering:
		if a.OfferingWho == "" || a.OfferingWhat == "" {
			return fmt.Errorf("%w: offering opening requires both who and what", ErrInvalidAnswers)
		}
	default:
		return fmt.Errorf("%w: unknown opening style %q", ErrInvalidAnswers, a.OpeningStyle)
	}

	if a.Discovery == "" {
		return fmt.Errorf("%w: discovery is required", ErrInvalidAnswers)
	}
	if a.DiscoveryUse == "" {
		return fmt.Errorf("%w: discovery use is required", ErrInvalidAnswers)
	}

	return nil
}

// Story is one quiz-configured visual narrative: the scene descriptions
// produced by the scripting stage plus the story's lifecycle status. Scene
// image results live in the session store, not here.
type Story struct {
	ID        uuid.UUID   `json:"id"`
	Title     string      `json:"title"`
	Answers   Answers     `json:"answers"`
	Scenes    []string    `json:"scenes"`
	Status    StoryStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// NewStory creates a Story in the drafted state with a fresh ID and the given
// scene descriptions. Returns an error if validation fails.
func NewStory(title string, answers Answers, scenes []string) (*Story, error) {
	story := &Story{
		ID:        uuid.New(),
		Title:     title,
		Answers:   answers,
		Scenes:    scenes,
		Status:    StoryStatusDrafted,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	if err := story.Validate(); err != nil {
		return nil, err
	}

	return story, nil
}

// Validate checks if the Story has valid data.
// Returns an error if any field fails validation.
func (s *Story) Validate() error {
	if s.ID == uuid.Nil {
		return ErrEmptyStoryID
	}

	if s.Title == "" {
		return ErrEmptyStoryTitle
	}

	if len(s.Scenes) == 0 {
		return ErrNoScenes
	}

	for i, scene := range s.Scenes {
		if scene == "" {
			return fmt.Errorf("%w: scene %d", ErrEmptyScene, i+1)
		}
	}

	if !isValidStoryStatus(s.Status) {
		return ErrInvalidStoryStatus
	}

	return nil
}

// UpdateStatus updates the story's status and the UpdatedAt timestamp.
// Returns an error if the new status is invalid.
func (s *Story) UpdateStatus(status StoryStatus) error {
	if !isValidStoryStatus(status) {
		return ErrInvalidStoryStatus
	}

	s.Status = status
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// ReplaceScenes swaps in an edited scene list, typically the client's revision
// of the drafted script. Returns an error if the new list fails validation.
func (s *Story) ReplaceScenes(scenes []string) error {
	if len(scenes) == 0 {
		return ErrNoScenes
	}
	for i, scene := range scenes {
		if scene == "" {
			return fmt.Errorf("%w: scene %d", ErrEmptyScene, i+1)
		}
	}

	s.Scenes = scenes
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// isValidStoryStatus checks if the given status is a valid StoryStatus.
func isValidStoryStatus(status StoryStatus) bool {
	switch status {
	case StoryStatusDrafted, StoryStatusGenerating, StoryStatusCompleted,
		StoryStatusCompletedWithErrors, StoryStatusFailed:
		return true
	default:
		return false
	}
}

// SceneState is the reportable progress of one scene's image task.
type SceneState struct {
	Index     int         `json:"index"`
	Status    SceneStatus `json:"status"`
	ImageURL  string      `json:"image_url,omitempty"`
	VideoURL  string      `json:"video_url,omitempty"`
	Attempts  int         `json:"attempts,omitempty"`
	UpdatedAt time.Time   `json:"updated_at"`
}
