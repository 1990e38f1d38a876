// Package storage provides object storage for pipeline input and output
// files. Pipelines reference objects by key; the store resolves keys to
// transient local paths for the analytical engine to read.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested object does not exist in the store.
var ErrNotFound = errors.New("object not found")

// ObjectStore exposes the operations node handlers need: fetch an object to
// a local scratch file, persist a local file under a key, and mint download
// URLs for external consumers.
type ObjectStore interface {
	// Fetch downloads the object to a fresh temporary file and returns
	// its path. The caller owns the file and its deletion.
	Fetch(ctx context.Context, key string) (string, error)

	// Store uploads the local file under the given key, overwriting any
	// existing object.
	Store(ctx context.Context, localPath, key string) error

	// Presign returns a URL from which the object can be downloaded
	// without credentials until expiry.
	Presign(ctx context.Context, key string, expiry time.Duration) (string, error)

	// Delete removes the object. Deleting a missing object returns
	// ErrNotFound.
	Delete(ctx context.Context, key string) error
}
