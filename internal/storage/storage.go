// Package storage defines the blob storage abstraction shared by the document
// store and the index artifact. Backends live in the local, memory and gcs
// subpackages.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned (possibly wrapped) when an object does not exist.
var ErrNotFound = errors.New("object not found")

// BlobStore persists and retrieves whole objects by path.
type BlobStore interface {
	// PutObject writes the object and returns a backend-specific URI.
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
	// GetObject reads the whole object. Missing objects yield ErrNotFound.
	GetObject(ctx context.Context, path string) ([]byte, error)
}
