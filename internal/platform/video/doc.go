// Package video provides the generation.VideoSynthesizer implementation for
// the optional post-image stage. It talks to a submit-and-poll video
// generation API and is disabled unless an endpoint is configured; video
// failures degrade the story's video list but never fail the story.
package video
