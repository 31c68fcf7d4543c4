package store

import (
	"errors"
	"fmt"

	"github.com/unkn0wn-root/idgen/idset"
)

var (
	// ErrNotFound is returned when a category has never been created.
	ErrNotFound = errors.New("store: category not found")
	// ErrExists is returned by Create for a category that already exists.
	ErrExists = errors.New("store: category already exists")
	// ErrConflict matches any *ConflictError.
	ErrConflict = errors.New("store: version conflict")
)

// ConflictError reports a conditional write whose expected version was stale.
// It is the only error the allocator retries.
type ConflictError struct {
	Category idset.Category
	Expected Version
	Actual   Version
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("store: version conflict on %s: expected %d, found %d",
		e.Category, e.Expected, e.Actual)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// Error wraps a backend failure with the operation and category involved.
type Error struct {
	Op       string
	Category idset.Category
	Err      error
}

func (e *Error) Error() string {
	if e.Category == "" {
		return "store: " + e.Op + ": " + e.Err.Error()
	}
	return "store: " + e.Op + " " + string(e.Category) + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap returns err as an *Error unless it is nil or already carries the store
// taxonomy (not found, exists, conflict or *Error).
func Wrap(op string, cat idset.Category, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrExists) ||
		errors.Is(err, ErrConflict) || errors.As(err, &se) {
		return err
	}
	return &Error{Op: op, Category: cat, Err: err}
}
