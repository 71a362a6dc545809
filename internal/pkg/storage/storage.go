package storage

import (
	"context"
	"io"
	"time"
)

// Storage defines the interface for blob storage backends.
// Keys are opaque slash-separated paths; payloads are opaque bytes.
type Storage interface {
	// Put stores a blob at the given key.
	Put(ctx context.Context, key string, reader io.Reader, contentType string) error

	// Get retrieves a blob by key.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes a blob by key. Returns nil if the blob doesn't exist.
	Delete(ctx context.Context, key string) error

	// Exists checks whether a blob is present at the given key.
	Exists(ctx context.Context, key string) (bool, error)

	// ListStale returns keys under prefix whose blobs were written before
	// the given age. Used by the sweeper to find unreferenced leftovers.
	ListStale(ctx context.Context, prefix string, olderThan time.Duration) ([]string, error)

	// GetURL returns the public URL for a blob given its key.
	GetURL(key string) string
}
