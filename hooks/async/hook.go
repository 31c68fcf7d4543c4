// usage:
//
// import (
//
//	"log/slog"
//
//	"github.com/unkn0wn-root/idgen"
//	"github.com/unkn0wn-root/idgen/hooks/async"
//	"github.com/unkn0wn-root/idgen/sloghooks"
//
// )
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{
//	    ConflictEvery: 10, // sample logs: ~every 10th write conflict
//	})
//
// hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
// defer hooks.Close()
//
//	alloc, _ := idgen.New(idgen.Options{
//	    Store: st,
//	    Hooks: hooks, // or `raw` if you don’t want async
//	})
package asynchook

import (
	"sync"
	"sync/atomic"

	"github.com/unkn0wn-root/idgen"
	"github.com/unkn0wn-root/idgen/idset"
)

// Hooks forwards events to inner on a bounded worker queue. Events are
// dropped, never blocked on, when the queue is full or after Close.
type Hooks struct {
	inner idgen.Hooks
	q     chan func()
	wg    sync.WaitGroup
	once  sync.Once

	mu      sync.RWMutex // guards q sends against close
	closed  bool
	dropped atomic.Uint64
}

var _ idgen.Hooks = (*Hooks)(nil)

func New(inner idgen.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		close(h.q)
		h.mu.Unlock()
		h.wg.Wait()
	})
}

// Dropped reports how many events were discarded.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		h.dropped.Add(1)
		return
	}
	select {
	case h.q <- f:
	default: // drop
		h.dropped.Add(1)
	}
}

func (h *Hooks) WriteConflict(op string, cat idset.Category, attempt int) {
	h.try(func() { h.inner.WriteConflict(op, cat, attempt) })
}
func (h *Hooks) RetriesExhausted(op string, cat idset.Category, tries int) {
	h.try(func() { h.inner.RetriesExhausted(op, cat, tries) })
}
func (h *Hooks) Committed(op string, cat idset.Category, attempt int, ids int64) {
	h.try(func() { h.inner.Committed(op, cat, attempt, ids) })
}
func (h *Hooks) CacheSelfHeal(k, r string) { h.try(func() { h.inner.CacheSelfHeal(k, r) }) }
func (h *Hooks) CacheSetRejected(k string) { h.try(func() { h.inner.CacheSetRejected(k) }) }
