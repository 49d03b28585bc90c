package api

import (
	"time"

	"github.com/fableworks/storyforge/internal/domain"
	"github.com/fableworks/storyforge/internal/store"
)

// CreateStoryRequest is the quiz payload that seeds a story draft. The
// conditional fields (humiliation vs offering) are checked by the domain
// answer validation, not by struct tags.
type CreateStoryRequest struct {
	Title        string `json:"title"         validate:"required,min=1,max=200"`
	Protagonist  string `json:"protagonist"   validate:"required,min=1,max=200"`
	OpeningStyle string `json:"opening_style" validate:"required,oneof=humiliation offering"`
	Humiliation  string `json:"humiliation,omitempty"`
	OfferingWho  string `json:"offering_who,omitempty"`
	OfferingWhat string `json:"offering_what,omitempty"`
	Discovery    string `json:"discovery"     validate:"required"`
	DiscoveryUse string `json:"discovery_use" validate:"required"`
	VillainCrime string `json:"villain_crime,omitempty"`
}

// Answers converts the request into domain quiz answers.
func (r CreateStoryRequest) Answers() domain.Answers {
	return domain.Answers{
		Protagonist:  r.Protagonist,
		OpeningStyle: r.OpeningStyle,
		Humiliation:  r.Humiliation,
		OfferingWho:  r.OfferingWho,
		OfferingWhat: r.OfferingWhat,
		Discovery:    r.Discovery,
		DiscoveryUse: r.DiscoveryUse,
		VillainCrime: r.VillainCrime,
	}
}

// StartStoryRequest optionally replaces the drafted scenes before generation
// begins. An empty body starts the story with its drafted scenes.
type StartStoryRequest struct {
	Scenes []string `json:"scenes,omitempty" validate:"omitempty,min=1,dive,required"`
}

// StoryCreatedResponse returns the drafted scenes for client review.
type StoryCreatedResponse struct {
	StoryID string   `json:"story_id"`
	Status  string   `json:"status"`
	Scenes  []string `json:"scenes"`
}

// StoryStartedResponse acknowledges a scheduled generation run.
type StoryStartedResponse struct {
	StoryID string `json:"story_id"`
	Status  string `json:"status"`
}

// SceneImageResponse is one scene's progress within a status snapshot.
type SceneImageResponse struct {
	Index     int       `json:"index"`
	Status    string    `json:"status"`
	ImageURL  string    `json:"image_url,omitempty"`
	VideoURL  string    `json:"video_url,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StoryResponse is the full status snapshot of one story.
type StoryResponse struct {
	StoryID         string               `json:"story_id"`
	Title           string               `json:"title"`
	Status          string               `json:"status"`
	Scenes          []string             `json:"scenes"`
	Images          []SceneImageResponse `json:"images"`
	Results         []string             `json:"results,omitempty"`
	CompletedScenes int                  `json:"completed_scenes"`
	TotalScenes     int                  `json:"total_scenes"`
	Error           string               `json:"error,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
}

// storyToResponse converts a store snapshot into the API shape.
func storyToResponse(snap store.StorySnapshot) StoryResponse {
	images := make([]SceneImageResponse, len(snap.Scenes))
	completed := 0
	for i, scene := range snap.Scenes {
		images[i] = SceneImageResponse{
			Index:     scene.Index,
			Status:    string(scene.Status),
			ImageURL:  scene.ImageURL,
			VideoURL:  scene.VideoURL,
			UpdatedAt: scene.UpdatedAt,
		}
		if scene.Status == domain.SceneStatusCompleted {
			completed++
		}
	}

	return StoryResponse{
		StoryID:         snap.Story.ID.String(),
		Title:           snap.Story.Title,
		Status:          string(snap.Story.Status),
		Scenes:          snap.Story.Scenes,
		Images:          images,
		Results:         snap.Results,
		CompletedScenes: completed,
		TotalScenes:     len(snap.Story.Scenes),
		Error:           snap.Failure,
		CreatedAt:       snap.Story.CreatedAt,
		UpdatedAt:       snap.Story.UpdatedAt,
	}
}
