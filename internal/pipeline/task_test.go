package pipeline

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"defaults are valid", func(c *Config) {}, nil},
		{"batch equals cap is valid", func(c *Config) { c.BatchSize = c.MaxConcurrent }, nil},
		{"zero concurrency", func(c *Config) { c.MaxConcurrent = 0 }, ErrInvalidPipelineConfig},
		{"zero batch", func(c *Config) { c.BatchSize = 0 }, ErrInvalidPipelineConfig},
		{"batch above cap", func(c *Config) { c.BatchSize = c.MaxConcurrent + 1 }, ErrBatchExceedsCap},
		{"zero rate budget", func(c *Config) { c.MaxImagesPerMin = 0 }, ErrInvalidPipelineConfig},
		{"zero attempts", func(c *Config) { c.MaxAttempts = 0 }, ErrInvalidPipelineConfig},
		{"negative backoff", func(c *Config) { c.GenericBackoff = -time.Second }, ErrInvalidPipelineConfig},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := DefaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestConfigPacingDelay(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig() // 5 per batch, 15 per minute
	assert.Equal(t, 20*time.Second, cfg.pacingDelay())

	cfg.BatchSize = 3
	cfg.MaxImagesPerMin = 60
	assert.Equal(t, 3*time.Second, cfg.pacingDelay())
}

func TestOutcomeOK(t *testing.T) {
	t.Parallel()

	assert.True(t, Outcome{Index: 1, URL: "u"}.OK())
	assert.False(t, Outcome{Index: 1, Err: errors.New("boom")}.OK())
}

func TestTaskErrorChain(t *testing.T) {
	t.Parallel()

	cause := errors.New("disk full")
	err := &TaskError{
		Index: 3,
		Stage: StageUpload,
		Err:   &UploadError{Attempts: 3, Err: cause},
	}

	assert.ErrorIs(t, err, cause)

	var upErr *UploadError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, 3, upErr.Attempts)
	assert.Contains(t, err.Error(), "task 3 upload")
}

func TestGenerationErrorMessage(t *testing.T) {
	t.Parallel()

	limited := &GenerationError{RateLimited: true, Attempts: 3, Err: errors.New("429")}
	assert.Contains(t, limited.Error(), "rate limited after 3 attempts")

	generic := &GenerationError{Attempts: 2, Err: errors.New("boom")}
	assert.Contains(t, generic.Error(), "failed after 2 attempts")
}
