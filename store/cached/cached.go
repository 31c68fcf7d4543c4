// Package cached puts a byte cache in front of any store.VersionedStore.
//
// Reads are served from the cache when possible. Entries are wire envelopes
// carrying the version they were read at, so a stale entry only costs the
// allocator one conflicting write: the conflict evicts the entry and the
// retry reads through to the authoritative store.
package cached

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/unkn0wn-root/idgen"
	"github.com/unkn0wn-root/idgen/idset"
	"github.com/unkn0wn-root/idgen/internal/util"
	"github.com/unkn0wn-root/idgen/internal/wire"
	"github.com/unkn0wn-root/idgen/provider"
	"github.com/unkn0wn-root/idgen/store"
)

// keyPrefix keeps cache entries apart from store/redis keys on a shared instance.
const keyPrefix = "idgen:cache"

type Store struct {
	inner    store.VersionedStore
	provider provider.Provider
	ns       string
	ttl      time.Duration
	log      idgen.Logger
	hooks    idgen.Hooks
}

var _ store.VersionedStore = (*Store)(nil)

// Options tune the cache. Only Inner and Provider are required.
type Options struct {
	Inner    store.VersionedStore
	Provider provider.Provider

	Namespace string        // cache key namespace
	TTL       time.Duration // 0 => 1m
	Logger    idgen.Logger  // nil => NopLogger
	Hooks     idgen.Hooks   // nil => NopHooks
}

func New(opts Options) (*Store, error) {
	if opts.Inner == nil {
		return nil, errors.New("cached store: inner store is required")
	}
	if opts.Provider == nil {
		return nil, errors.New("cached store: provider is required")
	}
	s := &Store{
		inner:    opts.Inner,
		provider: opts.Provider,
		ns:       opts.Namespace,
		ttl:      time.Minute,
		log:      idgen.NopLogger{},
		hooks:    idgen.NopHooks{},
	}
	if opts.TTL > 0 {
		s.ttl = opts.TTL
	}
	if opts.Logger != nil {
		s.log = opts.Logger
	}
	if opts.Hooks != nil {
		s.hooks = opts.Hooks
	}
	return s, nil
}

func (s *Store) Name() string { return "cached(" + s.inner.Name() + ")" }

func (s *Store) Open(ctx context.Context) error { return s.inner.Open(ctx) }

func (s *Store) key(cat idset.Category) string { return util.Key(keyPrefix, s.ns, cat.Name()) }

func (s *Store) Get(ctx context.Context, cat idset.Category) (store.Blob, error) {
	k := s.key(cat)
	if b, ok := s.lookup(ctx, k, cat); ok {
		return b, nil
	}

	b, err := s.inner.Get(ctx, cat)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.evict(ctx, k)
		}
		return store.Blob{}, err
	}
	s.fill(ctx, k, cat, b.Version, b.Payload)
	return b, nil
}

func (s *Store) Set(ctx context.Context, cat idset.Category, expected store.Version, payload []byte) (store.Version, error) {
	k := s.key(cat)
	ver, err := s.inner.Set(ctx, cat, expected, payload)
	if err != nil {
		// the cached version is stale or unknown now
		s.evict(ctx, k)
		return 0, err
	}
	s.fill(ctx, k, cat, ver, payload)
	return ver, nil
}

func (s *Store) Create(ctx context.Context, cat idset.Category, payload []byte) (store.Version, error) {
	k := s.key(cat)
	ver, err := s.inner.Create(ctx, cat, payload)
	if err != nil {
		s.evict(ctx, k)
		return 0, err
	}
	s.fill(ctx, k, cat, ver, payload)
	return ver, nil
}

// Close closes the cache provider and the inner store.
func (s *Store) Close(ctx context.Context) error {
	return errors.Join(s.provider.Close(ctx), s.inner.Close(ctx))
}

func (s *Store) lookup(ctx context.Context, k string, cat idset.Category) (store.Blob, bool) {
	raw, ok, err := s.provider.Get(ctx, k)
	if err != nil {
		s.log.Warn("cache get failed; reading through", errFields(k, err))
		return store.Blob{}, false
	}
	if !ok {
		return store.Blob{}, false
	}
	e, err := wire.Decode(raw)
	if err != nil {
		s.selfHeal(ctx, k, "corrupt")
		return store.Blob{}, false
	}
	if e.Category != cat.Name() {
		s.selfHeal(ctx, k, "category_mismatch")
		return store.Blob{}, false
	}
	// payload aliases the provider's buffer
	return store.Blob{Version: store.Version(e.Version), Payload: slices.Clone(e.Payload)}, true
}

func (s *Store) fill(ctx context.Context, k string, cat idset.Category, ver store.Version, payload []byte) {
	raw, err := wire.Encode(wire.Entry{Category: cat.Name(), Version: uint64(ver), Payload: payload})
	if err != nil {
		s.evict(ctx, k)
		return
	}
	ok, err := s.provider.Set(ctx, k, raw, int64(len(raw)), s.ttl)
	if err != nil {
		s.log.Warn("cache set failed", errFields(k, err))
		s.evict(ctx, k)
		return
	}
	if !ok {
		s.log.Debug("cache set rejected by provider (pressure)", idgen.Fields{"key": k})
		s.hooks.CacheSetRejected(k)
		// an older entry may survive a rejected write
		s.evict(ctx, k)
	}
}

func (s *Store) selfHeal(ctx context.Context, k, reason string) {
	s.evict(ctx, k)
	s.log.Debug("dropped unreadable cache entry", idgen.Fields{"key": k, "reason": reason})
	s.hooks.CacheSelfHeal(k, reason)
}

func (s *Store) evict(ctx context.Context, k string) {
	if err := s.provider.Del(ctx, k); err != nil {
		s.log.Warn("cache delete failed", errFields(k, err))
	}
}

// errFields builds the log fields for a cache key and error.
func errFields(k string, err error) idgen.Fields {
	return idgen.Fields{"key": k, "err": err}
}
