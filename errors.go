package idgen

import (
	"errors"

	"github.com/unkn0wn-root/idgen/idset"
	"github.com/unkn0wn-root/idgen/store"
)

// ErrClosed is returned by every operation on an allocator that is not open.
var ErrClosed = errors.New("idgen: allocator is closed")

// Re-exported so callers can match errors without importing idset and store.
var (
	ErrInvalid  = idset.ErrInvalid
	ErrEmpty    = idset.ErrEmpty
	ErrReadOnly = idset.ErrReadOnly
	ErrOverlap  = idset.ErrOverlap
	ErrParse    = idset.ErrParse

	ErrConflict = store.ErrConflict
	ErrNotFound = store.ErrNotFound
	ErrExists   = store.ErrExists
)
