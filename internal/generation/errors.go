package generation

import (
	"errors"
	"fmt"
	"strings"
)

// Common errors returned by the generation package
var (
	// ErrInvalidResponse is returned when the model response cannot be parsed or is malformed
	ErrInvalidResponse = errors.New("invalid response from model")

	// ErrContentBlocked is returned when the model blocks the content due to safety filters
	ErrContentBlocked = errors.New("content blocked by model safety filters")

	// ErrEmptyResult is returned when the provider reports success but delivers no candidates
	ErrEmptyResult = errors.New("provider returned no candidates")

	// ErrInvalidConfig is returned when a generator configuration is invalid
	ErrInvalidConfig = errors.New("invalid generator configuration")

	// ErrTransientFailure is returned when a call fails after exhausting its
	// transient-error retries
	ErrTransientFailure = errors.New("transient failure calling model")
)

// ProviderError carries a provider failure together with its rate-limit
// classification. Adapters wrap every provider failure in a ProviderError so
// the retry layer never needs to inspect vendor SDK types.
type ProviderError struct {
	// RateLimited marks a too-many-requests signal from the provider.
	RateLimited bool
	// Err is the underlying provider error.
	Err error
}

func (e *ProviderError) Error() string {
	if e.RateLimited {
		return fmt.Sprintf("provider rate limited: %v", e.Err)
	}
	return fmt.Sprintf("provider error: %v", e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError classifies err and wraps it. A nil err returns nil.
func NewProviderError(err error) error {
	if err == nil {
		return nil
	}
	return &ProviderError{RateLimited: looksRateLimited(err), Err: err}
}

// IsRateLimited reports whether err (or anything it wraps) is a provider
// rate-limit signal.
func IsRateLimited(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.RateLimited
	}
	return looksRateLimited(err)
}

// rateLimitMarkers are the substrings provider SDKs and raw HTTP responses use
// to signal a too-many-requests condition. Matching on message text is the
// portable classification across vendor SDK versions.
var rateLimitMarkers = []string{
	"429",
	"rate limit",
	"rate_limit",
	"ratelimit",
	"too many requests",
	"resource_exhausted",
	"resource exhausted",
	"quota",
}

func looksRateLimited(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range rateLimitMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
