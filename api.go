package idgen

import (
	"context"

	"github.com/unkn0wn-root/idgen/codec"
	"github.com/unkn0wn-root/idgen/idset"
	"github.com/unkn0wn-root/idgen/store"
)

// Allocator hands out IDs from per-category inventories kept in a shared
// VersionedStore. Every mutating call is a read-modify-write that commits
// exactly once; write conflicts with other allocators are retried.
//
// Every method other than Open and Close returns ErrClosed unless the
// allocator is open.
type Allocator interface {
	// Open opens the underlying store. Opening an open allocator is a no-op;
	// reopening a closed one returns ErrClosed.
	Open(ctx context.Context) error
	// Close closes the store. Close is final and idempotent.
	Close(ctx context.Context) error
	IsOpen() bool

	// Take reserves up to n IDs (clamped to what is left) from cat.
	Take(ctx context.Context, cat idset.Category, n int64) (*idset.Set, error)
	TakeWithTries(ctx context.Context, cat idset.Category, n int64, maxTries int) (*idset.Set, error)

	// Push returns unused IDs to the inventory of set's category. After a
	// successful push set is empty.
	Push(ctx context.Context, set *idset.Set) error
	PushWithTries(ctx context.Context, cat idset.Category, set *idset.Set, maxTries int) error

	// Peek returns a read-only snapshot of cat's remaining inventory.
	Peek(ctx context.Context, cat idset.Category) (*idset.Set, error)

	// Init creates cat with set as its initial inventory. It fails with
	// store.ErrExists if the category already exists.
	Init(ctx context.Context, cat idset.Category, set *idset.Set) error

	SetDefaultTries(n int) error
	DefaultTries() int
}

// Options configure an Allocator. Only Store is required.
type Options struct {
	Store store.VersionedStore

	Codec        codec.Codec // nil => codec.Text
	Logger       Logger      // nil => NopLogger
	Hooks        Hooks       // nil => NopHooks
	DefaultTries int         // 0 => 3
	Name         string      // instance name in logs; "" => random uuid
}

func New(opts Options) (Allocator, error) {
	return newAllocator(opts)
}
