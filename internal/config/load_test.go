package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupEnv sets up environment variables for testing
func setupEnv(t *testing.T, envVars map[string]string) func() {
	// Save current environment values
	originalValues := make(map[string]string)
	for name := range envVars {
		originalValues[name] = os.Getenv(name)
	}

	// Set new environment variables
	for name, value := range envVars {
		err := os.Setenv(name, value)
		require.NoError(t, err, "Failed to set environment variable %s", name)
	}

	// Return cleanup function
	return func() {
		// Restore original environment
		for name, value := range originalValues {
			if value == "" {
				os.Unsetenv(name)
			} else {
				os.Setenv(name, value)
			}
		}
	}
}

// requiredEnv returns the minimal environment for a loadable configuration.
func requiredEnv() map[string]string {
	return map[string]string{
		"STORYFORGE_GENERATION_GEMINI_API_KEY": "test-api-key",
		"STORYFORGE_STORAGE_BUCKET":            "test-bucket",
	}
}

// TestLoadDefaults verifies that Load fills in the documented defaults when
// only the required fields are supplied.
func TestLoadDefaults(t *testing.T) {
	cleanup := setupEnv(t, requiredEnv())
	defer cleanup()

	cfg, err := Load()

	require.NoError(t, err, "Load() should not return an error with default values")
	require.NotNil(t, cfg, "Load() should return a non-nil config")

	assert.Equal(t, 8080, cfg.Server.Port, "Default server port should be 8080")
	assert.Equal(t, "info", cfg.Server.LogLevel, "Default log level should be 'info'")

	assert.Equal(t, 10, cfg.Pipeline.MaxConcurrent)
	assert.Equal(t, 5, cfg.Pipeline.BatchSize)
	assert.Equal(t, 15, cfg.Pipeline.MaxImagesPerMin)
	assert.Equal(t, 3, cfg.Pipeline.MaxAttempts)
	assert.Equal(t, 10*time.Minute, cfg.Pipeline.OverallDeadline)
	assert.Equal(t, 2, cfg.Pipeline.RunRetries)
	assert.Equal(t, 5*time.Second, cfg.Pipeline.RunRetryDelay)
	assert.Equal(t, 5*time.Second, cfg.Pipeline.GenericBackoff)
	assert.Equal(t, 30*time.Second, cfg.Pipeline.RateLimitBackoff)
	assert.False(t, cfg.Pipeline.RequireApproval)

	assert.Equal(t, 20, cfg.Generation.ExpectedScenes)
	assert.Equal(t, 900, cfg.Generation.PromptMaxLen)
	assert.Equal(t, 2, cfg.Generation.MaxRetries)
	assert.Equal(t, 2*time.Second, cfg.Generation.RetryDelay)
	assert.Equal(t, "stories", cfg.Storage.ObjectPrefix)
	assert.Equal(t, "story.", cfg.Notify.ChannelPrefix)
	assert.False(t, cfg.Video.Enabled)
	assert.Equal(t, 512, cfg.Store.FinishedCapacity)
	assert.Equal(t, 24*time.Hour, cfg.Store.FinishedRetention)
}

// TestLoadFromEnv verifies that Load reads values from environment variables.
func TestLoadFromEnv(t *testing.T) {
	env := requiredEnv()
	env["STORYFORGE_SERVER_PORT"] = "9090"
	env["STORYFORGE_SERVER_LOG_LEVEL"] = "debug"
	env["STORYFORGE_PIPELINE_MAX_CONCURRENT"] = "6"
	env["STORYFORGE_PIPELINE_BATCH_SIZE"] = "3"
	env["STORYFORGE_PIPELINE_OVERALL_DEADLINE"] = "2m"
	env["STORYFORGE_NOTIFY_REDIS_ADDR"] = "localhost:6379"
	cleanup := setupEnv(t, env)
	defer cleanup()

	cfg, err := Load()

	require.NoError(t, err, "Load() should not return an error with valid environment variables")
	require.NotNil(t, cfg, "Load() should return a non-nil config")
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
	assert.Equal(t, 6, cfg.Pipeline.MaxConcurrent)
	assert.Equal(t, 3, cfg.Pipeline.BatchSize)
	assert.Equal(t, 2*time.Minute, cfg.Pipeline.OverallDeadline)
	assert.Equal(t, "localhost:6379", cfg.Notify.RedisAddr)
	assert.Equal(t, "test-api-key", cfg.Generation.GeminiAPIKey)
	assert.Equal(t, "test-bucket", cfg.Storage.Bucket)
}

// TestLoadFromFile verifies that a YAML config file is honored.
func TestLoadFromFile(t *testing.T) {
	cleanup := setupEnv(t, requiredEnv())
	defer cleanup()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 7070
pipeline:
  batch_size: 8
  max_concurrent: 12
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadFrom(path)

	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, 8, cfg.Pipeline.BatchSize)
	assert.Equal(t, 12, cfg.Pipeline.MaxConcurrent)
	// Untouched keys keep their defaults.
	assert.Equal(t, "info", cfg.Server.LogLevel)
}

// TestLoadValidationErrors verifies that Load rejects invalid configurations.
func TestLoadValidationErrors(t *testing.T) {
	testCases := []struct {
		name    string
		envVars map[string]string
	}{
		{
			name: "Missing required fields",
			envVars: map[string]string{
				"STORYFORGE_GENERATION_GEMINI_API_KEY": "",
				"STORYFORGE_STORAGE_BUCKET":            "",
			},
		},
		{
			name: "Invalid port number",
			envVars: func() map[string]string {
				env := requiredEnv()
				env["STORYFORGE_SERVER_PORT"] = "999999"
				return env
			}(),
		},
		{
			name: "Invalid log level",
			envVars: func() map[string]string {
				env := requiredEnv()
				env["STORYFORGE_SERVER_LOG_LEVEL"] = "chatty"
				return env
			}(),
		},
		{
			name: "Batch size exceeding concurrency cap",
			envVars: func() map[string]string {
				env := requiredEnv()
				env["STORYFORGE_PIPELINE_MAX_CONCURRENT"] = "4"
				env["STORYFORGE_PIPELINE_BATCH_SIZE"] = "8"
				return env
			}(),
		},
		{
			name: "Video enabled without endpoint",
			envVars: func() map[string]string {
				env := requiredEnv()
				env["STORYFORGE_VIDEO_ENABLED"] = "true"
				return env
			}(),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cleanup := setupEnv(t, tc.envVars)
			defer cleanup()

			cfg, err := Load()

			assert.Error(t, err, "Load() should return an error with invalid configuration")
			if err != nil {
				assert.Contains(t, err.Error(), "invalid configuration")
			}
			assert.Nil(t, cfg, "Config should be nil when an error occurs")
		})
	}
}
