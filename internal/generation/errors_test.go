package generation_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/fableworks/storyforge/internal/generation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProviderErrorClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		err         error
		rateLimited bool
	}{
		{
			name:        "http 429 status",
			err:         errors.New("googleapi: Error 429: Resource has been exhausted"),
			rateLimited: true,
		},
		{
			name:        "rate limit message",
			err:         errors.New("Rate limit exceeded, retry after 60s"),
			rateLimited: true,
		},
		{
			name:        "grpc resource exhausted",
			err:         errors.New("rpc error: code = ResourceExhausted desc = RESOURCE_EXHAUSTED"),
			rateLimited: true,
		},
		{
			name:        "quota message",
			err:         errors.New("quota exceeded for model"),
			rateLimited: true,
		},
		{
			name:        "generic server error",
			err:         errors.New("connection reset by peer"),
			rateLimited: false,
		},
		{
			name:        "http 500",
			err:         errors.New("Error 500: internal error"),
			rateLimited: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			wrapped := generation.NewProviderError(tc.err)
			require.Error(t, wrapped)

			var pe *generation.ProviderError
			require.ErrorAs(t, wrapped, &pe)
			assert.Equal(t, tc.rateLimited, pe.RateLimited)
			assert.Equal(t, tc.rateLimited, generation.IsRateLimited(wrapped))
			assert.ErrorIs(t, wrapped, tc.err)
		})
	}
}

func TestNewProviderErrorNil(t *testing.T) {
	t.Parallel()
	assert.NoError(t, generation.NewProviderError(nil))
}

func TestIsRateLimitedThroughWrapping(t *testing.T) {
	t.Parallel()

	inner := generation.NewProviderError(errors.New("429 too many requests"))
	outer := fmt.Errorf("attempt 2: %w", inner)
	assert.True(t, generation.IsRateLimited(outer))

	plain := fmt.Errorf("attempt 1: %w", errors.New("boom"))
	assert.False(t, generation.IsRateLimited(plain))
}

func TestIsRateLimitedNil(t *testing.T) {
	t.Parallel()
	assert.False(t, generation.IsRateLimited(nil))
}
