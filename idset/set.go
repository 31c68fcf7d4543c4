package idset

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
)

// setSeq orders set mutexes globally so two sets pushed into each other
// concurrently always lock in the same order.
var setSeq atomic.Uint64

// Set is a possibly non-contiguous set of IDs for one Category, held as
// disjoint, non-adjacent ranges sorted ascending by end.
//
// IDs are taken from the lowest range first; unused IDs can be pushed back.
// The internal ranges are never handed out: PeekRanges returns read-only
// copies, and a set returned by TakeIDs owns its ranges exclusively.
//
// A Set is safe for concurrent use.
type Set struct {
	category Category
	seq      uint64

	mu       sync.Mutex
	ranges   []*Range // sorted by end; guarded by mu
	readOnly atomic.Bool
}

// New builds a set from the given ranges. The ranges are copied, so later
// changes to them do not affect the set. Adjacent ranges are merged;
// overlapping ranges are rejected with an *OverlapError.
func New(category Category, ranges ...*Range) (*Set, error) {
	s := Empty(category)
	for _, r := range ranges {
		if r == nil {
			return nil, invalidf("nil range in id set %s", category)
		}
		if r.Size() == 0 {
			continue
		}
		c := r.Copy(false)
		if err := s.validateNoOverlap(c); err != nil {
			return nil, err
		}
		s.insert(c)
	}
	return s, nil
}

// Empty returns a set holding no IDs.
func Empty(category Category) *Set {
	return &Set{category: category, seq: setSeq.Add(1)}
}

// NewSpan returns a set holding the single range [start, end].
func NewSpan(category Category, start, end int64) (*Set, error) {
	r, err := NewRange(start, end)
	if err != nil {
		return nil, err
	}
	return New(category, r)
}

// Parse builds a set from the compact "<start>-<end>,<start>-<end>" form.
func Parse(category Category, s string) (*Set, error) {
	ranges, err := ParseRanges(s)
	if err != nil {
		return nil, err
	}
	return New(category, ranges...)
}

// fromOwned builds a set that takes ownership of ranges already known to be
// disjoint and sorted (the spans cut off by a take).
func fromOwned(category Category, ranges []*Range) *Set {
	s := Empty(category)
	for _, r := range ranges {
		s.insert(r)
	}
	return s
}

func (s *Set) Category() Category { return s.category }

// Size returns the total number of IDs in the set.
func (s *Set) Size() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sizeLocked()
}

// sizeLocked saturates at math.MaxInt64.
func (s *Set) sizeLocked() int64 {
	var n uint64
	for _, r := range s.ranges {
		rem := r.remaining(r.Start())
		if rem > math.MaxInt64-n {
			return math.MaxInt64
		}
		n += rem
	}
	return int64(n)
}

// TakeIDs removes up to n IDs from the front of the set and returns them as a
// new, independently owned set. Requests larger than Size are clamped.
func (s *Set) TakeIDs(n int64) (*Set, error) {
	if s.ReadOnly() {
		return nil, s.readOnlyErr()
	}
	if n < 1 {
		return nil, invalidf("cannot take %d ids from id set %s", n, s.category)
	}

	s.mu.Lock()
	if s.readOnly.Load() {
		err := s.readOnlyLockedErr()
		s.mu.Unlock()
		return nil, err
	}
	size := s.sizeLocked()
	if size == 0 {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: cannot take ids; id set %s is empty", ErrEmpty, s.category)
	}
	n = min(n, size)

	var taken []*Range
	for got := int64(0); got < n; {
		first := s.ranges[0]
		part, err := first.TakeIDs(min(n-got, first.Size()))
		if err != nil {
			// members are never read-only or empty while we hold mu
			s.mu.Unlock()
			return nil, err
		}
		taken = append(taken, part)
		got += part.Size()
		if !first.HasMoreIDs() {
			s.ranges = slices.Delete(s.ranges, 0, 1)
		}
	}
	s.mu.Unlock()

	return fromOwned(s.category, taken), nil
}

// TakeID removes and returns the lowest ID in the set.
func (s *Set) TakeID() (int64, error) {
	if s.ReadOnly() {
		return 0, s.readOnlyErr()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readOnly.Load() {
		return 0, s.readOnlyLockedErr()
	}
	if len(s.ranges) == 0 {
		return 0, fmt.Errorf("%w: no more ids remaining in id set %s", ErrEmpty, s.category)
	}
	first := s.ranges[0]
	id, err := first.TakeID()
	if err != nil {
		return 0, err
	}
	if !first.HasMoreIDs() {
		s.ranges = slices.Delete(s.ranges, 0, 1)
	}
	return id, nil
}

// PeekNextID returns the ID the next TakeID would return.
func (s *Set) PeekNextID() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.ranges) == 0 {
		return 0, fmt.Errorf("%w: no more ids remaining in id set %s", ErrEmpty, s.category)
	}
	return s.ranges[0].PeekNextID(), nil
}

func (s *Set) HasMoreIDs() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ranges) > 0 && s.ranges[0].HasMoreIDs()
}

// Push moves every range of other into s, merging adjacent ranges. If any
// range of other overlaps a range of s, nothing is moved and an
// *OverlapError is returned. On success other is left empty.
func (s *Set) Push(other *Set) error {
	if other == nil {
		return invalidf("cannot push nil id set to id set %s", s.category)
	}
	if other == s {
		return invalidf("cannot push id set %s into itself", s.category)
	}
	if other.category != s.category {
		return invalidf("cannot push id set %s to id set %s; categories do not match", other, s)
	}
	if other.ReadOnly() {
		return other.readOnlyErr()
	}
	if s.ReadOnly() {
		return s.readOnlyErr()
	}

	first, second := s, other
	if other.seq < s.seq {
		first, second = other, s
	}
	first.mu.Lock()
	defer first.mu.Unlock()
	second.mu.Lock()
	defer second.mu.Unlock()

	// SetReadOnly may have run since the checks above
	if other.readOnly.Load() {
		return other.readOnlyLockedErr()
	}
	if s.readOnly.Load() {
		return s.readOnlyLockedErr()
	}
	for _, r := range other.ranges {
		if err := s.validateNoOverlap(r); err != nil {
			return err
		}
	}
	for _, r := range other.ranges {
		s.insert(r)
	}
	other.ranges = nil
	return nil
}

// Clear drops every ID from the set.
func (s *Set) Clear() error {
	if s.ReadOnly() {
		return s.readOnlyErr()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readOnly.Load() {
		return s.readOnlyLockedErr()
	}
	s.ranges = nil
	return nil
}

// PeekRanges returns read-only copies of the set's ranges in ascending order.
// The result is a snapshot; it does not follow later changes to the set.
func (s *Set) PeekRanges() []*Range {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Range, len(s.ranges))
	for i, r := range s.ranges {
		out[i] = r.Copy(true)
	}
	return out
}

// Copy returns an independent, mutable set with the same IDs.
func (s *Set) Copy() *Set {
	return s.copy(false)
}

// Snapshot returns an independent copy that refuses every mutation.
func (s *Set) Snapshot() *Set {
	return s.copy(true)
}

func (s *Set) copy(readOnly bool) *Set {
	c := Empty(s.category)
	s.mu.Lock()
	c.ranges = make([]*Range, len(s.ranges))
	for i, r := range s.ranges {
		c.ranges[i] = r.Copy(readOnly)
	}
	s.mu.Unlock()
	c.readOnly.Store(readOnly)
	return c
}

// SetReadOnly makes the set and every range in it refuse mutation.
func (s *Set) SetReadOnly() {
	s.mu.Lock()
	for _, r := range s.ranges {
		r.setReadOnly()
	}
	s.readOnly.Store(true)
	s.mu.Unlock()
}

func (s *Set) ReadOnly() bool { return s.readOnly.Load() }

func (s *Set) readOnlyErr() error {
	return fmt.Errorf("%w: id set %s", ErrReadOnly, s)
}

// readOnlyLockedErr is readOnlyErr for callers holding mu.
func (s *Set) readOnlyLockedErr() error {
	var b strings.Builder
	b.WriteString(s.category.Name())
	b.WriteByte(':')
	s.appendRanges(&b)
	return fmt.Errorf("%w: id set %s", ErrReadOnly, b.String())
}

// String renders "<category>:<start>-<end>,<start>-<end>".
func (s *Set) String() string {
	var b strings.Builder
	b.WriteString(s.category.Name())
	b.WriteByte(':')
	s.mu.Lock()
	s.appendRanges(&b)
	s.mu.Unlock()
	return b.String()
}

// RangesString renders the compact "<start>-<end>,<start>-<end>" form
// accepted by Parse.
func (s *Set) RangesString() string {
	var b strings.Builder
	s.mu.Lock()
	s.appendRanges(&b)
	s.mu.Unlock()
	return b.String()
}

func (s *Set) appendRanges(b *strings.Builder) {
	for i, r := range s.ranges {
		if i > 0 {
			b.WriteByte(rangeSep)
		}
		r.appendTo(b)
	}
}

// WriteTo writes the persisted form: one "<start>-<end>" line per range,
// ascending, each newline-terminated.
func (s *Set) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var n int64
	s.mu.Lock()
	for _, r := range s.ranges {
		var line strings.Builder
		r.appendTo(&line)
		line.WriteByte('\n')
		m, err := bw.WriteString(line.String())
		n += int64(m)
		if err != nil {
			s.mu.Unlock()
			return n, err
		}
	}
	s.mu.Unlock()
	return n, bw.Flush()
}

// search returns the index of the first range whose end is >= end.
func (s *Set) search(end int64) int {
	i, _ := slices.BinarySearchFunc(s.ranges, end, func(r *Range, end int64) int {
		switch {
		case r.end < end:
			return -1
		case r.end > end:
			return 1
		}
		return 0
	})
	return i
}

// insert adds r, merging it with adjacent neighbours until no neighbour is
// adjacent. Callers hold mu (or own s exclusively) and have checked overlap.
func (s *Set) insert(r *Range) {
	for merged := true; merged; {
		merged = false
		i := s.search(r.end)
		if i > 0 {
			if m := s.ranges[i-1].TryMerge(r); m != nil {
				s.ranges = slices.Delete(s.ranges, i-1, i)
				r = m
				merged = true
				i--
			}
		}
		if i < len(s.ranges) {
			if m := r.TryMerge(s.ranges[i]); m != nil {
				s.ranges = slices.Delete(s.ranges, i, i+1)
				r = m
				merged = true
			}
		}
	}
	s.ranges = slices.Insert(s.ranges, s.search(r.end), r)
}

// validateNoOverlap checks r against its neighbours by end: the predecessor
// must end before r starts and the successor (or a range sharing r's end)
// must start after r ends.
func (s *Set) validateNoOverlap(r *Range) error {
	if len(s.ranges) == 0 {
		return nil
	}
	i := s.search(r.end)
	if i > 0 {
		if prev := s.ranges[i-1]; prev.end >= r.Start() {
			return s.overlapErr(r, prev)
		}
	}
	if i < len(s.ranges) {
		if next := s.ranges[i]; next.Start() <= r.end {
			return s.overlapErr(r, next)
		}
	}
	return nil
}

func (s *Set) overlapErr(pushed, existing *Range) error {
	var b strings.Builder
	b.WriteString(s.category.Name())
	b.WriteByte(':')
	s.appendRanges(&b)
	return &OverlapError{Pushed: pushed.String(), Existing: existing.String(), Set: b.String()}
}
