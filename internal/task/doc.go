// Package task manages background job queuing, processing, and lifecycle.
// It provides the bounded in-memory runner that executes story generation
// off the HTTP request path, and the StoryGenerationTask that walks one
// story through prompt standardization, the image pipeline, the optional
// video stage, and finalization.
package task
