// Package storage unifies the interchangeable file-upload backends
// behind a single capability interface. Callers depend only on
// receiving back a dereferenceable URL string.
package storage

import (
	"context"
	"fmt"
)

// FileStore saves uploaded files and deletes them by the URL it
// previously returned.
type FileStore interface {
	// Save persists the file content and returns its URL.
	Save(ctx context.Context, filename, contentType string, data []byte) (string, error)
	// Delete removes the file previously saved under url. Deleting a
	// URL the store does not recognize is an error.
	Delete(ctx context.Context, url string) error
}

// Config selects and configures a backend.
type Config struct {
	// Backend is "local", "inline", or "s3".
	Backend string
	// Dir is the upload directory for the local backend.
	Dir string
	// BaseURL prefixes URLs returned by the local backend.
	BaseURL string
	// Bucket is the bucket name for the s3 backend.
	Bucket string
	// Prefix is the object key prefix for the s3 backend.
	Prefix string
}

// FromConfig builds the configured FileStore.
func FromConfig(ctx context.Context, cfg Config) (FileStore, error) {
	switch cfg.Backend {
	case "local":
		return NewLocalStore(cfg.Dir, cfg.BaseURL)
	case "inline":
		return NewInlineStore(), nil
	case "s3":
		return NewS3Store(ctx, cfg.Bucket, cfg.Prefix)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
