package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/fableworks/storyforge/internal/domain"
	"github.com/fableworks/storyforge/internal/generation"
	"github.com/fableworks/storyforge/internal/store"
	"github.com/fableworks/storyforge/internal/task"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	// Not found errors
	case errors.Is(err, store.ErrStoryNotFound):
		return http.StatusNotFound

	// Conflict errors
	case errors.Is(err, store.ErrStoryNotStartable),
		errors.Is(err, store.ErrStoryExists):
		return http.StatusConflict

	// Backpressure: the runner cannot take more work right now
	case errors.Is(err, task.ErrQueueFull),
		errors.Is(err, task.ErrQueueClosed):
		return http.StatusServiceUnavailable

	// Bad request errors
	case errors.Is(err, domain.ErrInvalidAnswers),
		errors.Is(err, domain.ErrNoScenes),
		errors.Is(err, store.ErrInvalidEntity):
		return http.StatusBadRequest

	// Provider refused the content outright
	case errors.Is(err, generation.ErrContentBlocked):
		return http.StatusUnprocessableEntity

	// Provider throttling and outages
	case generation.IsRateLimited(err):
		return http.StatusTooManyRequests
	case errors.Is(err, generation.ErrTransientFailure):
		return http.StatusServiceUnavailable
	case errors.Is(err, generation.ErrInvalidResponse):
		return http.StatusBadGateway

	// Default: internal server error
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, store.ErrStoryNotFound):
		return "Story not found"

	case errors.Is(err, store.ErrStoryNotStartable):
		return "Story has already been started"

	case errors.Is(err, store.ErrStoryExists):
		return "Story already exists"

	case errors.Is(err, task.ErrQueueFull):
		return "Generation queue is full, try again shortly"

	case errors.Is(err, task.ErrQueueClosed):
		return "Service is shutting down"

	case errors.Is(err, domain.ErrInvalidAnswers):
		return "Invalid quiz answers"

	case errors.Is(err, domain.ErrNoScenes):
		return "Story has no scenes"

	case errors.Is(err, generation.ErrContentBlocked):
		return "The request was declined by the provider's content filter"

	case generation.IsRateLimited(err):
		return "The provider is rate limiting requests, try again shortly"

	case errors.Is(err, generation.ErrTransientFailure):
		return "The model provider is temporarily unavailable"

	case errors.Is(err, generation.ErrInvalidResponse):
		return "The model returned an unusable response"

	default:
		return "An unexpected error occurred"
	}
}

// SanitizeValidationError converts a validator error into a client-safe
// message naming the first failing field and its constraint, without echoing
// the submitted values back.
func SanitizeValidationError(err error) string {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return fmt.Sprintf("Invalid %s: %s", fe.Field(), getValidationTagMessage(fe.Tag()))
	}
	return "Validation error"
}

// getValidationTagMessage maps validation tags to user-friendly error messages
func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "min":
		return "too short"
	case "max":
		return "too long"
	case "oneof":
		return "invalid value"
	default:
		return "validation failed"
	}
}
