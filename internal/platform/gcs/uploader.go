package gcs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"cloud.google.com/go/storage"

	"github.com/fableworks/storyforge/internal/config"
)

// Uploader implements the generation.Uploader interface on top of a Google
// Cloud Storage bucket. Objects are written with a public-read cache policy
// and addressed by their canonical storage.googleapis.com URL.
type Uploader struct {
	logger *slog.Logger
	bucket *storage.BucketHandle
	name   string
	prefix string
}

// NewUploader creates an Uploader for the configured bucket. The client is
// shared and owned by the caller.
func NewUploader(client *storage.Client, cfg config.StorageConfig, logger *slog.Logger) (*Uploader, error) {
	if client == nil {
		return nil, errors.New("storage client cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("bucket name cannot be empty")
	}

	return &Uploader{
		logger: logger.With("component", "gcs_uploader"),
		bucket: client.Bucket(cfg.Bucket),
		name:   cfg.Bucket,
		prefix: strings.Trim(cfg.ObjectPrefix, "/"),
	}, nil
}

// Upload writes data under the given object key and returns the object's
// public URL. The pipeline executor owns retries; this makes one attempt.
func (u *Uploader) Upload(ctx context.Context, objectKey string, data []byte) (string, error) {
	if objectKey == "" {
		return "", errors.New("object key cannot be empty")
	}
	if len(data) == 0 {
		return "", errors.New("image data cannot be empty")
	}

	name := u.objectName(objectKey)
	w := u.bucket.Object(name).NewWriter(ctx)
	w.ContentType = "image/png"
	w.CacheControl = "public, max-age=86400"

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("failed to write object %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize object %s: %w", name, err)
	}

	u.logger.DebugContext(ctx, "object uploaded",
		"object", name,
		"bytes", len(data))

	return u.publicURL(name), nil
}

func (u *Uploader) objectName(key string) string {
	key = strings.TrimPrefix(key, "/")
	if u.prefix == "" {
		return key
	}
	return u.prefix + "/" + key
}

func (u *Uploader) publicURL(objectName string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", u.name, objectName)
}
