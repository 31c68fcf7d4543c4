// Package store defines where category payloads live and how they are
// updated: every write is conditional on the version the writer last read.
package store

import (
	"context"

	"github.com/unkn0wn-root/idgen/idset"
)

// Version is an opaque token identifying one committed payload of a category.
// Zero is never a committed version.
type Version uint64

// Blob is a payload together with the version it was read at.
type Blob struct {
	Version Version
	Payload []byte
}

// VersionedStore abstracts the shared coordination store.
// Use Memory for a single process, or the redis and sqlite packages for
// inventories shared across processes.
type VersionedStore interface {
	// Name identifies the backend in logs.
	Name() string
	// Open prepares the store for use.
	Open(ctx context.Context) error
	// Get returns the current payload; a missing category yields ErrNotFound.
	Get(ctx context.Context, cat idset.Category) (Blob, error)
	// Set replaces the payload iff the stored version still equals expected
	// and returns the new version. A stale expected yields a *ConflictError.
	Set(ctx context.Context, cat idset.Category, expected Version, payload []byte) (Version, error)
	// Create stores the first payload of a category; ErrExists if present.
	Create(ctx context.Context, cat idset.Category, payload []byte) (Version, error)
	// Close releases resources (no-op ok).
	Close(ctx context.Context) error
}
