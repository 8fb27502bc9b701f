// Package blobstore persists uploaded document bytes, behind two
// interchangeable backends: a local filesystem tree for single-node
// deployments, and an S3-compatible object store (via minio-go) for
// anything else. Both are selected once at process start from
// config.StorageBackend and never switched at runtime.
package blobstore

import (
	"context"
	"fmt"
	"io"
)

// Store persists and retrieves document bytes by storage_uri, the opaque
// string recorded on the Document row.
type Store interface {
	// Put writes content under a URI the store derives from space and
	// documentID, returning that URI for persistence on the Document row.
	Put(ctx context.Context, space string, documentID int64, filename string, content io.Reader, size int64, contentType string) (storageURI string, err error)
	// Get opens the content at storageURI for reading. Callers must Close it.
	Get(ctx context.Context, storageURI string) (io.ReadCloser, error)
	// Delete removes the content at storageURI. Missing objects are not an error.
	Delete(ctx context.Context, storageURI string) error
}

// ErrUnsupportedScheme is returned when a storage_uri doesn't match any
// configured backend's scheme.
var ErrUnsupportedScheme = fmt.Errorf("blobstore: unsupported storage_uri scheme")
