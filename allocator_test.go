package idgen

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/unkn0wn-root/idgen/codec"
	"github.com/unkn0wn-root/idgen/idset"
	"github.com/unkn0wn-root/idgen/store"
)

const users idset.Category = "users"

// raceStore holds the first `parties` Gets until all of them have read, so
// every party starts from the same version and all but one lose the write.
type raceStore struct {
	store.VersionedStore
	parties int32
	gets    atomic.Int32
	ready   chan struct{}
	once    sync.Once
}

func newRaceStore(inner store.VersionedStore, parties int) *raceStore {
	return &raceStore{VersionedStore: inner, parties: int32(parties), ready: make(chan struct{})}
}

func (s *raceStore) Get(ctx context.Context, cat idset.Category) (store.Blob, error) {
	b, err := s.VersionedStore.Get(ctx, cat)
	if n := s.gets.Add(1); n <= s.parties {
		if n == s.parties {
			s.once.Do(func() { close(s.ready) })
		}
		<-s.ready
	}
	return b, err
}

// conflictStore fails the first `fail` writes with a conflict.
type conflictStore struct {
	store.VersionedStore
	fail   atomic.Int32
	writes atomic.Int32
}

func (s *conflictStore) Set(ctx context.Context, cat idset.Category, expected store.Version, payload []byte) (store.Version, error) {
	s.writes.Add(1)
	if s.fail.Add(-1) >= 0 {
		return 0, &store.ConflictError{Category: cat, Expected: expected, Actual: expected + 1}
	}
	return s.VersionedStore.Set(ctx, cat, expected, payload)
}

type countingHooks struct {
	NopHooks
	mu        sync.Mutex
	conflicts int
	exhausted int
	committed int
	moved     int64
}

func (h *countingHooks) WriteConflict(string, idset.Category, int) {
	h.mu.Lock()
	h.conflicts++
	h.mu.Unlock()
}

func (h *countingHooks) RetriesExhausted(string, idset.Category, int) {
	h.mu.Lock()
	h.exhausted++
	h.mu.Unlock()
}

func (h *countingHooks) Committed(_ string, _ idset.Category, _ int, ids int64) {
	h.mu.Lock()
	h.committed++
	h.moved += ids
	h.mu.Unlock()
}

func mustSet(t *testing.T, cat idset.Category, ranges string) *idset.Set {
	t.Helper()
	s, err := idset.Parse(cat, ranges)
	if err != nil {
		t.Fatalf("Parse(%q): %v", ranges, err)
	}
	return s
}

func newTestAllocator(t *testing.T, st store.VersionedStore, optsOpt func(*Options)) Allocator {
	t.Helper()
	opts := Options{Store: st}
	if optsOpt != nil {
		optsOpt(&opts)
	}
	a, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := a.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = a.Close(context.Background()) })
	return a
}

func seed(t *testing.T, a Allocator, cat idset.Category, ranges string) {
	t.Helper()
	if err := a.Init(context.Background(), cat, mustSet(t, cat, ranges)); err != nil {
		t.Fatalf("Init: %v", err)
	}
}

func TestNewRequiresStore(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Fatal("expected error without store")
	}
	if _, err := New(Options{Store: store.NewMemory(), DefaultTries: -1}); !errors.Is(err, ErrInvalid) {
		t.Fatalf("want ErrInvalid, got %v", err)
	}
}

func TestLifecycle(t *testing.T) {
	ctx := context.Background()
	a, err := New(Options{Store: store.NewMemory()})
	if err != nil {
		t.Fatal(err)
	}
	if a.IsOpen() {
		t.Fatal("new allocator reports open")
	}
	if _, err := a.Take(ctx, users, 1); !errors.Is(err, ErrClosed) {
		t.Fatalf("Take before Open: want ErrClosed, got %v", err)
	}

	if err := a.Open(ctx); err != nil {
		t.Fatal(err)
	}
	if err := a.Open(ctx); err != nil {
		t.Fatalf("second Open: %v", err)
	}
	if !a.IsOpen() {
		t.Fatal("not open after Open")
	}

	if err := a.Close(ctx); err != nil {
		t.Fatal(err)
	}
	if err := a.Close(ctx); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if err := a.Open(ctx); !errors.Is(err, ErrClosed) {
		t.Fatalf("reopen: want ErrClosed, got %v", err)
	}

	s := mustSet(t, users, "1-10")
	checks := map[string]error{}
	_, checks["take"] = a.Take(ctx, users, 1)
	checks["push"] = a.Push(ctx, s)
	_, checks["peek"] = a.Peek(ctx, users)
	checks["init"] = a.Init(ctx, users, s)
	for op, err := range checks {
		if !errors.Is(err, ErrClosed) {
			t.Fatalf("%s after Close: want ErrClosed, got %v", op, err)
		}
	}
}

func TestTakeSequence(t *testing.T) {
	ctx := context.Background()
	a := newTestAllocator(t, store.NewMemory(), nil)
	seed(t, a, users, "1-10000")

	got, err := a.Take(ctx, users, 1000)
	if err != nil {
		t.Fatal(err)
	}
	if got.RangesString() != "1-1000" || got.Category() != users {
		t.Fatalf("first take = %s", got)
	}

	got, err = a.Take(ctx, users, 10000)
	if err != nil {
		t.Fatal(err)
	}
	if got.Size() != 9000 || got.RangesString() != "1001-10000" {
		t.Fatalf("clamped take = %s (size %d)", got, got.Size())
	}

	if _, err := a.Take(ctx, users, 1); !errors.Is(err, ErrEmpty) {
		t.Fatalf("take from exhausted: want ErrEmpty, got %v", err)
	}
	if _, err := a.Take(ctx, users, 0); !errors.Is(err, ErrInvalid) {
		t.Fatalf("take 0: want ErrInvalid, got %v", err)
	}
	if _, err := a.TakeWithTries(ctx, users, 1, 0); !errors.Is(err, ErrInvalid) {
		t.Fatalf("maxTries 0: want ErrInvalid, got %v", err)
	}
	if _, err := a.Take(ctx, "nope", 1); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("unknown category: want ErrNotFound, got %v", err)
	}
}

func TestPushMakesIDsAvailableAgain(t *testing.T) {
	ctx := context.Background()
	a := newTestAllocator(t, store.NewMemory(), nil)
	seed(t, a, users, "1-100")

	taken, err := a.Take(ctx, users, 30)
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Push(ctx, taken); err != nil {
		t.Fatal(err)
	}
	if taken.Size() != 0 {
		t.Fatalf("pushed set not drained: %s", taken)
	}

	inv, err := a.Peek(ctx, users)
	if err != nil {
		t.Fatal(err)
	}
	if inv.RangesString() != "1-100" {
		t.Fatalf("inventory = %s, want merged 1-100", inv)
	}
}

func TestPushThreeRangesStayOrdered(t *testing.T) {
	ctx := context.Background()
	a := newTestAllocator(t, store.NewMemory(), nil)
	seed(t, a, users, "1001-10000")

	for _, r := range []string{"11000-12000", "1-100"} {
		if err := a.Push(ctx, mustSet(t, users, r)); err != nil {
			t.Fatalf("push %s: %v", r, err)
		}
	}
	inv, _ := a.Peek(ctx, users)
	if inv.RangesString() != "1-100,1001-10000,11000-12000" {
		t.Fatalf("inventory = %s", inv)
	}

	// 10001-... touches the end of 1001-10000 and merges into it
	if err := a.Push(ctx, mustSet(t, users, "10001-10999")); err != nil {
		t.Fatal(err)
	}
	inv, _ = a.Peek(ctx, users)
	if inv.RangesString() != "1-100,1001-12000" {
		t.Fatalf("inventory after adjacent push = %s", inv)
	}
}

func TestPushValidation(t *testing.T) {
	ctx := context.Background()
	a := newTestAllocator(t, store.NewMemory(), nil)
	seed(t, a, users, "1-100")

	ro := mustSet(t, users, "200-300").Snapshot()
	if err := a.Push(ctx, ro); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("read-only push: want ErrReadOnly, got %v", err)
	}
	other := mustSet(t, "orders", "200-300")
	if err := a.PushWithTries(ctx, users, other, 3); !errors.Is(err, ErrInvalid) {
		t.Fatalf("category mismatch: want ErrInvalid, got %v", err)
	}
	if err := a.Push(ctx, nil); !errors.Is(err, ErrInvalid) {
		t.Fatalf("nil push: want ErrInvalid, got %v", err)
	}

	overlap := mustSet(t, users, "50-150")
	if err := a.Push(ctx, overlap); !errors.Is(err, ErrOverlap) {
		t.Fatalf("overlapping push: want ErrOverlap, got %v", err)
	}
	if overlap.RangesString() != "50-150" {
		t.Fatalf("failed push changed the caller's set: %s", overlap)
	}
	inv, _ := a.Peek(ctx, users)
	if inv.RangesString() != "1-100" {
		t.Fatalf("failed push changed the inventory: %s", inv)
	}

	if err := a.Push(ctx, idset.Empty(users)); err != nil {
		t.Fatalf("empty push: %v", err)
	}
}

func TestPeekIsReadOnlySnapshot(t *testing.T) {
	ctx := context.Background()
	a := newTestAllocator(t, store.NewMemory(), nil)
	seed(t, a, users, "1-10")

	inv, err := a.Peek(ctx, users)
	if err != nil {
		t.Fatal(err)
	}
	if !inv.ReadOnly() {
		t.Fatal("peeked set is mutable")
	}
	if _, err := inv.TakeIDs(1); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("want ErrReadOnly, got %v", err)
	}
	if _, err := a.Take(ctx, users, 5); err != nil {
		t.Fatal(err)
	}
	if inv.RangesString() != "1-10" {
		t.Fatalf("snapshot followed the store: %s", inv)
	}
}

func TestInitRejectsExistingAndMismatch(t *testing.T) {
	ctx := context.Background()
	a := newTestAllocator(t, store.NewMemory(), nil)
	seed(t, a, users, "1-10")

	if err := a.Init(ctx, users, mustSet(t, users, "20-30")); !errors.Is(err, ErrExists) {
		t.Fatalf("want ErrExists, got %v", err)
	}
	if err := a.Init(ctx, "orders", mustSet(t, users, "20-30")); !errors.Is(err, ErrInvalid) {
		t.Fatalf("want ErrInvalid, got %v", err)
	}
	if err := a.Init(ctx, "orders", nil); !errors.Is(err, ErrInvalid) {
		t.Fatalf("want ErrInvalid, got %v", err)
	}
}

func TestDefaultTries(t *testing.T) {
	a := newTestAllocator(t, store.NewMemory(), nil)
	if a.DefaultTries() != 3 {
		t.Fatalf("default tries = %d", a.DefaultTries())
	}
	if err := a.SetDefaultTries(0); !errors.Is(err, ErrInvalid) {
		t.Fatalf("want ErrInvalid, got %v", err)
	}
	if err := a.SetDefaultTries(7); err != nil || a.DefaultTries() != 7 {
		t.Fatalf("SetDefaultTries(7): %v, now %d", err, a.DefaultTries())
	}
}

func TestConcurrentTakesSingleTryOneConflicts(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	a := newTestAllocator(t, newRaceStore(mem, 2), nil)
	seed(t, a, users, "1-1000")

	var (
		wg   sync.WaitGroup
		errs [2]error
		sets [2]*idset.Set
	)
	for i := range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sets[i], errs[i] = a.TakeWithTries(ctx, users, 10, 1)
		}()
	}
	wg.Wait()

	var ok, conflicts int
	for i := range 2 {
		var ce *store.ConflictError
		switch {
		case errs[i] == nil:
			ok++
		case errors.As(errs[i], &ce):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", errs[i])
		}
	}
	if ok != 1 || conflicts != 1 {
		t.Fatalf("ok=%d conflicts=%d, want 1 and 1", ok, conflicts)
	}
}

func TestConcurrentTakesWithRetriesAreDisjoint(t *testing.T) {
	ctx := context.Background()
	const parties = 4
	mem := store.NewMemory()
	hooks := &countingHooks{}
	a := newTestAllocator(t, newRaceStore(mem, parties), func(o *Options) {
		o.Hooks = hooks
		o.DefaultTries = parties
	})
	seed(t, a, users, "1-1000")

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		took []*idset.Range
	)
	for range parties {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := a.Take(ctx, users, 10)
			if err != nil {
				t.Errorf("Take: %v", err)
				return
			}
			mu.Lock()
			took = append(took, s.PeekRanges()...)
			mu.Unlock()
		}()
	}
	wg.Wait()

	sort.Slice(took, func(i, j int) bool { return took[i].Start() < took[j].Start() })
	var total int64
	for i, r := range took {
		if i > 0 && took[i-1].End() >= r.Start() {
			t.Fatalf("allocations overlap: %s and %s", took[i-1], r)
		}
		total += r.Size()
	}
	if total != parties*10 {
		t.Fatalf("took %d ids, want %d", total, parties*10)
	}
	if hooks.committed != parties || hooks.exhausted != 0 || hooks.conflicts == 0 {
		t.Fatalf("hooks: committed=%d exhausted=%d conflicts=%d", hooks.committed, hooks.exhausted, hooks.conflicts)
	}

	inv, _ := a.Peek(ctx, users)
	if inv.Size() != 1000-parties*10 {
		t.Fatalf("inventory size = %d", inv.Size())
	}
}

func TestConflictedPushStillCommitsEveryID(t *testing.T) {
	ctx := context.Background()
	cs := &conflictStore{VersionedStore: store.NewMemory()}
	hooks := &countingHooks{}
	a := newTestAllocator(t, cs, func(o *Options) { o.Hooks = hooks })
	seed(t, a, users, "1001-2000")

	cs.fail.Store(2)
	pushed := mustSet(t, users, "1-100,300-400")
	if err := a.Push(ctx, pushed); err != nil {
		t.Fatal(err)
	}
	if cs.writes.Load() != 3 {
		t.Fatalf("writes = %d, want 3", cs.writes.Load())
	}
	if pushed.Size() != 0 {
		t.Fatalf("pushed set not drained: %s", pushed)
	}
	inv, _ := a.Peek(ctx, users)
	if inv.RangesString() != "1-100,300-400,1001-2000" {
		t.Fatalf("inventory = %s", inv)
	}
	if hooks.conflicts != 2 || hooks.committed != 1 || hooks.moved != 201 {
		t.Fatalf("hooks: conflicts=%d committed=%d moved=%d", hooks.conflicts, hooks.committed, hooks.moved)
	}
}

func TestRetriesExhaustedReturnsConflictUnchanged(t *testing.T) {
	ctx := context.Background()
	cs := &conflictStore{VersionedStore: store.NewMemory()}
	hooks := &countingHooks{}
	a := newTestAllocator(t, cs, func(o *Options) { o.Hooks = hooks })
	seed(t, a, users, "1-100")

	cs.fail.Store(100)
	pushed := mustSet(t, users, "200-300")
	err := a.PushWithTries(ctx, users, pushed, 2)
	var ce *store.ConflictError
	if !errors.As(err, &ce) || ce.Category != users {
		t.Fatalf("want *store.ConflictError, got %v", err)
	}
	if cs.writes.Load() != 2 || hooks.exhausted != 1 {
		t.Fatalf("writes=%d exhausted=%d", cs.writes.Load(), hooks.exhausted)
	}
	if pushed.RangesString() != "200-300" {
		t.Fatalf("failed push drained the caller's set: %s", pushed)
	}
}

func TestCanceledContextStopsRetrying(t *testing.T) {
	cs := &conflictStore{VersionedStore: store.NewMemory()}
	a := newTestAllocator(t, cs, nil)
	seed(t, a, users, "1-100")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := a.TakeWithTries(ctx, users, 1, 5); !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
	if cs.writes.Load() != 0 {
		t.Fatalf("writes after cancel = %d", cs.writes.Load())
	}
}

func TestCorruptPayloadAborts(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	if _, err := mem.Create(ctx, users, []byte("1-10\nbogus\n")); err != nil {
		t.Fatal(err)
	}
	a := newTestAllocator(t, mem, nil)
	if _, err := a.Take(ctx, users, 1); !errors.Is(err, ErrParse) {
		t.Fatalf("want ErrParse, got %v", err)
	}
}

func TestAlternateCodec(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	a := newTestAllocator(t, mem, func(o *Options) { o.Codec = codec.JSON{} })
	seed(t, a, users, "1-10")

	if _, err := a.Take(ctx, users, 3); err != nil {
		t.Fatal(err)
	}
	b, _ := mem.Get(ctx, users)
	if string(b.Payload) != `[{"start":4,"end":10}]` {
		t.Fatalf("payload = %s", b.Payload)
	}
}
