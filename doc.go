// Package idgen allocates unique int64 IDs from named categories shared by
// many processes.
//
// Each category's free inventory is an idset.Set persisted in a
// store.VersionedStore. Take and Push read the inventory, change it in memory
// and write it back conditioned on the version they read; a write that loses
// to another allocator is retried from a fresh read.
//
// Components:
//   - idset: Range and Set, the compact free-space representation.
//   - codec: payload formats; Text is the persisted default.
//   - store: VersionedStore with memory, redis, sqlite and cached backends.
//   - provider: byte caches (ristretto, bigcache, redis) for store/cached.
//
// Keys:
//
//	idgen:<ns>:<category>  - redis inventories and cache entries
//
// Usage:
//
//	a, _ := idgen.New(idgen.Options{Store: store.NewMemory()})
//	_ = a.Open(ctx)
//	_ = a.Init(ctx, "users", mustSpan("users", 1, 10_000))
//	ids, _ := a.Take(ctx, "users", 100) // 1-100
//	_ = a.Push(ctx, ids)                // give them back
package idgen
