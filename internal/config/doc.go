// Package config handles configuration loading, parsing, and validation from
// environment variables (STORYFORGE_ prefix) and an optional YAML file. It
// provides type-safe access to the server, pipeline, and provider settings
// while keeping configuration details separate from business logic.
package config
