// Package gcs provides the generation.Uploader implementation backed by
// Google Cloud Storage. Rendered scene images are written as PNG objects
// under a configurable prefix and served through their public object URLs.
package gcs
