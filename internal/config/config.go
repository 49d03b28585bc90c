package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server     ServerConfig     `mapstructure:"server" validate:"required"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline" validate:"required"`
	Generation GenerationConfig `mapstructure:"generation" validate:"required"`
	Storage    StorageConfig    `mapstructure:"storage" validate:"required"`
	Notify     NotifyConfig     `mapstructure:"notify"`
	Video      VideoConfig      `mapstructure:"video"`
	Sanitizer  SanitizerConfig  `mapstructure:"sanitizer"`
	Store      StoreConfig      `mapstructure:"store"`
}

// ServerConfig contains all HTTP server related settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// PipelineConfig tunes the concurrent image-generation core. BatchSize must
// never exceed MaxConcurrent: a batch whose tasks wait on permits held only by
// sibling tasks in the same batch would deadlock.
type PipelineConfig struct {
	MaxConcurrent    int           `mapstructure:"max_concurrent" validate:"required,gt=0"`
	BatchSize        int           `mapstructure:"batch_size" validate:"required,gt=0,ltefield=MaxConcurrent"`
	MaxImagesPerMin  int           `mapstructure:"max_images_per_min" validate:"required,gt=0"`
	MaxAttempts      int           `mapstructure:"max_attempts" validate:"required,gte=1"`
	OverallDeadline  time.Duration `mapstructure:"overall_deadline" validate:"required,gt=0"`
	RunRetries       int           `mapstructure:"run_retries" validate:"gte=0"`
	RunRetryDelay    time.Duration `mapstructure:"run_retry_delay" validate:"gte=0"`
	GenericBackoff   time.Duration `mapstructure:"generic_backoff" validate:"required,gt=0"`
	RateLimitBackoff time.Duration `mapstructure:"rate_limit_backoff" validate:"required,gt=0"`
	RequireApproval  bool          `mapstructure:"require_approval"`
	StoryWorkers     int           `mapstructure:"story_workers" validate:"required,gt=0"`
	StoryQueueSize   int           `mapstructure:"story_queue_size" validate:"required,gt=0"`
}

// GenerationConfig contains the model integration settings. MaxRetries and
// RetryDelay apply to the scripting calls only; image generation retries are
// owned by the pipeline.
type GenerationConfig struct {
	GeminiAPIKey   string        `mapstructure:"gemini_api_key" validate:"required"`
	ScriptModel    string        `mapstructure:"script_model" validate:"required"`
	ImageModel     string        `mapstructure:"image_model" validate:"required"`
	ExpectedScenes int           `mapstructure:"expected_scenes" validate:"required,gt=0"`
	PromptMaxLen   int           `mapstructure:"prompt_max_len" validate:"required,gt=0"`
	MaxRetries     int           `mapstructure:"max_retries" validate:"gte=0"`
	RetryDelay     time.Duration `mapstructure:"retry_delay" validate:"gte=0"`
}

// StorageConfig contains the object storage settings for rendered images.
type StorageConfig struct {
	Bucket       string `mapstructure:"bucket" validate:"required"`
	ObjectPrefix string `mapstructure:"object_prefix"`
}

// NotifyConfig contains the progress notification settings. An empty
// RedisAddr keeps progress fan-out in-process only.
type NotifyConfig struct {
	RedisAddr     string `mapstructure:"redis_addr"`
	ChannelPrefix string `mapstructure:"channel_prefix"`
}

// VideoConfig contains the optional video synthesis settings.
type VideoConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Endpoint     string        `mapstructure:"endpoint" validate:"required_if=Enabled true"`
	APIKey       string        `mapstructure:"api_key"`
	Model        string        `mapstructure:"model"`
	PollInterval time.Duration `mapstructure:"poll_interval" validate:"gte=0"`
	Deadline     time.Duration `mapstructure:"deadline" validate:"gte=0"`
}

// SanitizerConfig points at an optional YAML replacement-rule override.
type SanitizerConfig struct {
	RulesFile string `mapstructure:"rules_file"`
}

// StoreConfig bounds how many finished stories stay queryable and for how
// long before they are evicted from memory.
type StoreConfig struct {
	FinishedCapacity  int           `mapstructure:"finished_capacity" validate:"required,gt=0"`
	FinishedRetention time.Duration `mapstructure:"finished_retention" validate:"required,gt=0"`
}
