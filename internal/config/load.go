package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from an optional config.yaml and from environment
// variables with the STORYFORGE_ prefix (e.g. STORYFORGE_SERVER_PORT).
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom behaves like Load but reads the config file at the given path
// instead of searching the working directory. An empty path searches for
// config.yaml in "." and "./config".
func LoadFrom(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		if err := v.ReadInConfig(); err != nil {
			// A missing config file is fine; env vars and defaults cover it.
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	v.SetEnvPrefix("STORYFORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the config against its struct validation tags.
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// setDefaults registers every known key with viper so that environment
// variable lookups work even for keys absent from the config file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("pipeline.max_concurrent", 10)
	v.SetDefault("pipeline.batch_size", 5)
	v.SetDefault("pipeline.max_images_per_min", 15)
	v.SetDefault("pipeline.max_attempts", 3)
	v.SetDefault("pipeline.overall_deadline", 10*time.Minute)
	v.SetDefault("pipeline.run_retries", 2)
	v.SetDefault("pipeline.run_retry_delay", 5*time.Second)
	v.SetDefault("pipeline.generic_backoff", 5*time.Second)
	v.SetDefault("pipeline.rate_limit_backoff", 30*time.Second)
	v.SetDefault("pipeline.require_approval", false)
	v.SetDefault("pipeline.story_workers", 2)
	v.SetDefault("pipeline.story_queue_size", 16)

	v.SetDefault("generation.gemini_api_key", "")
	v.SetDefault("generation.script_model", "gemini-2.0-flash")
	v.SetDefault("generation.image_model", "imagen-3.0-generate-002")
	v.SetDefault("generation.expected_scenes", 20)
	v.SetDefault("generation.prompt_max_len", 900)
	v.SetDefault("generation.max_retries", 2)
	v.SetDefault("generation.retry_delay", 2*time.Second)

	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.object_prefix", "stories")

	v.SetDefault("notify.redis_addr", "")
	v.SetDefault("notify.channel_prefix", "story.")

	v.SetDefault("video.enabled", false)
	v.SetDefault("video.endpoint", "")
	v.SetDefault("video.api_key", "")
	v.SetDefault("video.model", "kling")
	v.SetDefault("video.poll_interval", 30*time.Second)
	v.SetDefault("video.deadline", 10*time.Minute)

	v.SetDefault("sanitizer.rules_file", "")

	v.SetDefault("store.finished_capacity", 512)
	v.SetDefault("store.finished_retention", 24*time.Hour)
}
