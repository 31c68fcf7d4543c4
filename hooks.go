package idgen

import "github.com/unkn0wn-root/idgen/idset"

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// The allocator calls them on every attempt.
type Hooks interface {
	// A conditional write lost to another writer. op ∈ {"take", "push"}.
	WriteConflict(op string, cat idset.Category, attempt int)

	// A call returned the conflict after tries attempts.
	RetriesExhausted(op string, cat idset.Category, tries int)

	// A call committed on attempt; ids is the number of IDs moved.
	Committed(op string, cat idset.Category, attempt int, ids int64)

	// The cached store deleted an unreadable entry.
	// reason ∈ {"corrupt", "category_mismatch"}
	CacheSelfHeal(storageKey, reason string)

	// The cache provider returned ok=false on Set (backpressure/eviction).
	CacheSetRejected(storageKey string)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) WriteConflict(string, idset.Category, int)    {}
func (NopHooks) RetriesExhausted(string, idset.Category, int) {}
func (NopHooks) Committed(string, idset.Category, int, int64) {}
func (NopHooks) CacheSelfHeal(string, string)                 {}
func (NopHooks) CacheSetRejected(string)                      {}
