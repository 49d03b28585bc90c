// Package gemini provides the generation.ScriptGenerator implementation
// backed by Google's Gemini API, plus the shared client constructor used by
// the imagen package.
//
// This package is an infrastructure adapter in the hexagonal architecture,
// connecting the application's domain logic to Google's external AI services.
// It translates between the application's domain models and the Gemini API
// without exposing the details of the external service to the core
// application.
//
// Key components:
//
// 1. ScriptGenerator:
//   - Expands quiz answers into a fixed-length list of scene descriptions
//   - Rewrites scene descriptions into standardized image prompts
//   - Retries transient API failures with exponential backoff
//
// 2. Response processing:
//   - Parses structured Scene1..N / Prompt1..N JSON responses
//   - Strips the markdown code fences models occasionally emit
//   - Rejects incomplete or safety-blocked responses before any result
//     reaches the application core
package gemini
