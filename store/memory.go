package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/unkn0wn-root/idgen/idset"
)

type memoryEntry struct {
	Version   Version
	Payload   []byte
	UpdatedAt time.Time
}

// Memory keeps payloads in-process. It shares nothing across processes and
// is meant for single-process use and tests.
// Optional cleanup loop prunes categories not written for longer than retention.
type Memory struct {
	mu      sync.RWMutex
	entries map[idset.Category]memoryEntry
	ticker  *time.Ticker
	stopCh  chan struct{}
	wg      sync.WaitGroup
	once    sync.Once

	retention time.Duration
}

var _ VersionedStore = (*Memory)(nil)

func NewMemory() *Memory { return NewMemoryWithCleanup(0, 0) }

// NewMemoryWithCleanup starts a background loop pruning categories idle for
// longer than retention. Either argument <= 0 disables the loop.
func NewMemoryWithCleanup(cleanupInterval, retention time.Duration) *Memory {
	s := &Memory{
		entries:   make(map[idset.Category]memoryEntry),
		retention: retention,
	}
	if cleanupInterval > 0 && retention > 0 {
		s.ticker = time.NewTicker(cleanupInterval)
		s.stopCh = make(chan struct{})
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for {
				select {
				case <-s.ticker.C:
					s.Cleanup(retention)
				case <-s.stopCh:
					return
				}
			}
		}()
	}
	return s
}

func (s *Memory) Name() string { return "memory" }

func (s *Memory) Open(context.Context) error { return nil }

func (s *Memory) Get(_ context.Context, cat idset.Category) (Blob, error) {
	s.mu.RLock()
	e, ok := s.entries[cat]
	s.mu.RUnlock()
	if !ok {
		return Blob{}, ErrNotFound
	}
	return Blob{Version: e.Version, Payload: slices.Clone(e.Payload)}, nil
}

func (s *Memory) Set(_ context.Context, cat idset.Category, expected Version, payload []byte) (Version, error) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[cat]
	if !ok {
		return 0, ErrNotFound
	}
	if e.Version != expected {
		return 0, &ConflictError{Category: cat, Expected: expected, Actual: e.Version}
	}
	e.Version++
	e.Payload = slices.Clone(payload)
	e.UpdatedAt = now
	s.entries[cat] = e
	return e.Version, nil
}

func (s *Memory) Create(_ context.Context, cat idset.Category, payload []byte) (Version, error) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[cat]; ok {
		return 0, ErrExists
	}
	s.entries[cat] = memoryEntry{Version: 1, Payload: slices.Clone(payload), UpdatedAt: now}
	return 1, nil
}

// Delete removes a category. Deleting a missing category is a no-op.
func (s *Memory) Delete(_ context.Context, cat idset.Category) {
	s.mu.Lock()
	delete(s.entries, cat)
	s.mu.Unlock()
}

// Cleanup prunes categories whose last write is older than retention.
func (s *Memory) Cleanup(retention time.Duration) {
	if retention <= 0 {
		return
	}
	cutoff := time.Now().Add(-retention)

	s.mu.Lock()
	for k, e := range s.entries {
		if e.UpdatedAt.Before(cutoff) {
			delete(s.entries, k)
		}
	}
	s.mu.Unlock()
}

func (s *Memory) Close(context.Context) error {
	s.once.Do(func() {
		if s.stopCh != nil {
			close(s.stopCh)
			s.ticker.Stop() // stop ticker before waiting
			s.wg.Wait()
		}
	})
	return nil
}
