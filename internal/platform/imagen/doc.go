// Package imagen provides the generation.ImageGenerator implementation
// backed by the Imagen models behind Google's Gemini API. The renderer makes
// exactly one provider call per invocation and classifies failures with
// generation.ProviderError; retry and rate-limit policy belong to the
// pipeline.
package imagen
