package idset

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalid reports malformed construction arguments or requests.
	ErrInvalid = errors.New("idset: invalid argument")
	// ErrEmpty is returned when IDs are requested from an exhausted range or set.
	ErrEmpty = errors.New("idset: no ids remaining")
	// ErrReadOnly is returned when a read-only range or set would be mutated.
	ErrReadOnly = errors.New("idset: read-only")
	// ErrParse matches any *ParseError.
	ErrParse = errors.New("idset: parse error")
	// ErrOverlap matches any *OverlapError.
	ErrOverlap = errors.New("idset: overlapping ranges")

	errMissingSep    = errors.New("missing '-' separator")
	errStartAfterEnd = errors.New("start is greater than end")
	errFullDomain    = errors.New("range covers every int64 id")
)

// ParseError describes textual input that is not a valid range or range list.
type ParseError struct {
	Input string
	Line  int // 1-based line of a persisted payload; 0 when not applicable
	Err   error
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("idset: cannot parse %q", e.Input)
	if e.Line > 0 {
		msg = fmt.Sprintf("idset: line %d: cannot parse %q", e.Line, e.Input)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrParse }

// OverlapError is returned when a pushed range intersects a range already held by the set.
type OverlapError struct {
	Pushed   string
	Existing string
	Set      string
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("idset: pushed range %s overlaps with range %s in id set %s",
		e.Pushed, e.Existing, e.Set)
}

func (e *OverlapError) Is(target error) bool { return target == ErrOverlap }

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...)
}
