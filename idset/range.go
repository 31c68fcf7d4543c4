package idset

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync/atomic"
)

const (
	rangeValuesSep = '-'
	rangeSep       = ','
)

// Range is a contiguous, inclusive interval of IDs with a consumption cursor.
// IDs are taken from the low end; the cursor only moves forward and stops at
// end+1, wrapping to math.MinInt64 when end is math.MaxInt64. Remaining
// counts are computed in uint64; a range may not cover every int64.
//
// A Range is safe for concurrent use. It must not be copied after first use;
// use Copy for an independent snapshot.
type Range struct {
	start    atomic.Int64 // next unconsumed id
	end      int64
	readOnly atomic.Bool
}

// NewRange returns the range [start, end]. end must not be below start and
// the range must not cover every int64.
func NewRange(start, end int64) (*Range, error) {
	if end < start {
		return nil, invalidf("invalid start/end values for range: %d, %d", start, end)
	}
	if fullDomain(start, end) {
		return nil, invalidf("range %d-%d covers every int64 id", start, end)
	}
	return newRange(start, end), nil
}

func fullDomain(start, end int64) bool {
	return start == math.MinInt64 && end == math.MaxInt64
}

func newRange(start, end int64) *Range {
	r := &Range{end: end}
	r.start.Store(start)
	return r
}

// Start returns the next unconsumed id.
func (r *Range) Start() int64 { return r.start.Load() }

// End returns the last id of the range.
func (r *Range) End() int64 { return r.end }

// Size returns the number of unconsumed ids; 0 means exhausted. Ranges
// holding more than math.MaxInt64 ids report math.MaxInt64.
func (r *Range) Size() int64 {
	return saturate(r.remaining(r.start.Load()))
}

// remaining counts the ids from cur through end. An exhausted cursor sits at
// end+1 and yields 0.
func (r *Range) remaining(cur int64) uint64 {
	return uint64(r.end) - uint64(cur) + 1
}

func saturate(n uint64) int64 {
	if n > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(n)
}

func (r *Range) ReadOnly() bool { return r.readOnly.Load() }

// TakeIDs consumes up to n ids from the front of the range and returns them
// as a new range. Requests larger than Size are clamped rather than rejected.
func (r *Range) TakeIDs(n int64) (*Range, error) {
	if r.ReadOnly() {
		return nil, r.readOnlyErr()
	}
	if n < 1 {
		return nil, invalidf("cannot take %d ids from range %s", n, r)
	}
	for {
		cur := r.start.Load()
		rem := r.remaining(cur)
		if rem == 0 {
			return nil, invalidf("cannot take ids; range %s is empty", r)
		}
		take := min(uint64(n), rem)
		last := int64(uint64(cur) + take - 1)
		// last+1 wraps to math.MinInt64 when the take reaches math.MaxInt64
		if r.start.CompareAndSwap(cur, last+1) {
			return newRange(cur, last), nil
		}
	}
}

// TakeID consumes and returns the next id.
func (r *Range) TakeID() (int64, error) {
	if r.ReadOnly() {
		return 0, r.readOnlyErr()
	}
	for {
		cur := r.start.Load()
		if r.remaining(cur) == 0 {
			return 0, ErrEmpty
		}
		if r.start.CompareAndSwap(cur, cur+1) {
			return cur, nil
		}
	}
}

// PeekNextID returns the id the next take would return, without consuming it.
// On an exhausted range this is End()+1, wrapped if End is math.MaxInt64.
func (r *Range) PeekNextID() int64 { return r.start.Load() }

func (r *Range) HasMoreIDs() bool { return r.remaining(r.start.Load()) != 0 }

// TryMerge returns a range spanning r and next when next begins right after r
// ends. It returns nil for overlapping or non-adjacent ranges, and when the
// merged range would cover every int64.
func (r *Range) TryMerge(next *Range) *Range {
	start := r.Start()
	if !r.adjacent(next) || fullDomain(start, next.end) {
		return nil
	}
	return newRange(start, next.end)
}

func (r *Range) adjacent(next *Range) bool {
	return r.end != math.MaxInt64 && r.end+1 == next.Start()
}

// Copy returns an independent range with the same remaining ids.
func (r *Range) Copy(readOnly bool) *Range {
	c := newRange(r.Start(), r.end)
	c.readOnly.Store(readOnly)
	return c
}

// Equal reports whether both ranges hold the same remaining ids.
func (r *Range) Equal(other *Range) bool {
	if r == nil || other == nil {
		return r == other
	}
	return r.end == other.end && r.Start() == other.Start()
}

func (r *Range) setReadOnly() { r.readOnly.Store(true) }

func (r *Range) readOnlyErr() error {
	return fmt.Errorf("%w: range %s", ErrReadOnly, r)
}

func (r *Range) String() string {
	var b strings.Builder
	r.appendTo(&b)
	return b.String()
}

func (r *Range) appendTo(b *strings.Builder) {
	b.WriteString(strconv.FormatInt(r.Start(), 10))
	b.WriteByte(rangeValuesSep)
	b.WriteString(strconv.FormatInt(r.end, 10))
}

// ParseRange parses the "<start>-<end>" form produced by String.
func ParseRange(s string) (*Range, error) {
	// search after the first byte so a leading minus sign stays with start
	i := -1
	if len(s) > 1 {
		if j := strings.IndexByte(s[1:], rangeValuesSep); j >= 0 {
			i = j + 1
		}
	}
	if i < 0 {
		return nil, &ParseError{Input: s, Err: errMissingSep}
	}
	start, err := strconv.ParseInt(s[:i], 10, 64)
	if err != nil {
		return nil, &ParseError{Input: s, Err: err}
	}
	end, err := strconv.ParseInt(s[i+1:], 10, 64)
	if err != nil {
		return nil, &ParseError{Input: s, Err: err}
	}
	if end < start {
		return nil, &ParseError{Input: s, Err: errStartAfterEnd}
	}
	if fullDomain(start, end) {
		return nil, &ParseError{Input: s, Err: errFullDomain}
	}
	return newRange(start, end), nil
}

// ParseRanges parses the compact "<start>-<end>,<start>-<end>" form.
// An empty string yields no ranges.
func ParseRanges(s string) ([]*Range, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, string(rangeSep))
	out := make([]*Range, 0, len(parts))
	for _, p := range parts {
		r, err := ParseRange(p)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}
