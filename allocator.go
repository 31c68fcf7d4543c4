package idgen

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/unkn0wn-root/idgen/codec"
	"github.com/unkn0wn-root/idgen/idset"
	"github.com/unkn0wn-root/idgen/store"
)

const (
	stateIdle int32 = iota
	stateOpen
	stateClosed
)

const (
	opTake = "take"
	opPush = "push"
)

type allocator struct {
	name  string
	store store.VersionedStore
	codec codec.Codec
	log   Logger
	hooks Hooks

	tries atomic.Int64

	mu    sync.Mutex // serialises Open/Close
	state atomic.Int32
}

var _ Allocator = (*allocator)(nil)

func newAllocator(opts Options) (*allocator, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("idgen: store is required")
	}
	if opts.DefaultTries < 0 {
		return nil, fmt.Errorf("%w: default tries must be positive, got %d", ErrInvalid, opts.DefaultTries)
	}

	a := &allocator{
		store: opts.Store,
		codec: coalesce[codec.Codec](opts.Codec, codec.Text{}),
		log:   coalesce[Logger](opts.Logger, NopLogger{}),
		hooks: coalesce[Hooks](opts.Hooks, NopHooks{}),
		name:  coalesce(opts.Name, uuid.NewString()),
	}
	a.tries.Store(int64(coalesce(opts.DefaultTries, defaultTries)))
	return a, nil
}

func (a *allocator) Open(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch a.state.Load() {
	case stateOpen:
		return nil
	case stateClosed:
		return ErrClosed
	}
	if err := a.store.Open(ctx); err != nil {
		return err
	}
	a.state.Store(stateOpen)
	a.log.Info("allocator opened", Fields{"name": a.name, "store": a.store.Name()})
	return nil
}

func (a *allocator) Close(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	prev := a.state.Swap(stateClosed)
	if prev != stateOpen {
		return nil
	}
	err := a.store.Close(ctx)
	a.log.Info("allocator closed", Fields{"name": a.name, "store": a.store.Name(), "err": err})
	return err
}

func (a *allocator) IsOpen() bool { return a.state.Load() == stateOpen }

func (a *allocator) DefaultTries() int { return int(a.tries.Load()) }

func (a *allocator) SetDefaultTries(n int) error {
	if n < 1 {
		return fmt.Errorf("%w: tries must be positive, got %d", ErrInvalid, n)
	}
	old := a.tries.Swap(int64(n))
	a.log.Info("default tries changed", Fields{"name": a.name, "from": old, "to": n})
	return nil
}

func (a *allocator) Take(ctx context.Context, cat idset.Category, n int64) (*idset.Set, error) {
	return a.TakeWithTries(ctx, cat, n, a.DefaultTries())
}

func (a *allocator) TakeWithTries(ctx context.Context, cat idset.Category, n int64, maxTries int) (*idset.Set, error) {
	if !a.IsOpen() {
		return nil, ErrClosed
	}
	if n < 1 {
		return nil, fmt.Errorf("%w: cannot take %d ids from %s", ErrInvalid, n, cat)
	}
	return update(ctx, a, opTake, cat, maxTries, func(inv *idset.Set) (*idset.Set, int64, error) {
		taken, err := inv.TakeIDs(n)
		if err != nil {
			return nil, 0, err
		}
		return taken, taken.Size(), nil
	})
}

func (a *allocator) Push(ctx context.Context, set *idset.Set) error {
	if set == nil {
		return fmt.Errorf("%w: cannot push nil id set", ErrInvalid)
	}
	return a.PushWithTries(ctx, set.Category(), set, a.DefaultTries())
}

// PushWithTries pushes a private copy of set on every attempt and drains set
// only once a write has committed, so a retried push never loses IDs.
func (a *allocator) PushWithTries(ctx context.Context, cat idset.Category, set *idset.Set, maxTries int) error {
	if !a.IsOpen() {
		return ErrClosed
	}
	if set == nil {
		return fmt.Errorf("%w: cannot push nil id set to %s", ErrInvalid, cat)
	}
	if set.ReadOnly() {
		return fmt.Errorf("%w: cannot push id set %s", ErrReadOnly, set)
	}
	if set.Category() != cat {
		return fmt.Errorf("%w: cannot push id set %s to category %s", ErrInvalid, set, cat)
	}
	if set.Size() == 0 {
		a.log.Debug("push of empty id set skipped", Fields{"name": a.name, "category": cat.Name()})
		return nil
	}

	_, err := update(ctx, a, opPush, cat, maxTries, func(inv *idset.Set) (struct{}, int64, error) {
		pending := set.Copy()
		n := pending.Size()
		return struct{}{}, n, inv.Push(pending)
	})
	if err != nil {
		return err
	}
	return set.Clear()
}

func (a *allocator) Peek(ctx context.Context, cat idset.Category) (*idset.Set, error) {
	if !a.IsOpen() {
		return nil, ErrClosed
	}
	blob, err := a.store.Get(ctx, cat)
	if err != nil {
		return nil, err
	}
	inv, err := a.codec.Decode(cat, blob.Payload)
	if err != nil {
		return nil, err
	}
	inv.SetReadOnly()
	return inv, nil
}

func (a *allocator) Init(ctx context.Context, cat idset.Category, set *idset.Set) error {
	if !a.IsOpen() {
		return ErrClosed
	}
	if set == nil {
		return fmt.Errorf("%w: cannot init %s from nil id set", ErrInvalid, cat)
	}
	if set.Category() != cat {
		return fmt.Errorf("%w: cannot init category %s from id set %s", ErrInvalid, cat, set)
	}
	payload, err := a.codec.Encode(set)
	if err != nil {
		return err
	}
	ver, err := a.store.Create(ctx, cat, payload)
	if err != nil {
		return err
	}
	a.log.Info("category created", Fields{
		"name": a.name, "category": cat.Name(), "ids": set.Size(), "version": ver,
	})
	return nil
}

// mutateFunc changes the freshly decoded inventory in place and reports the
// call's result and how many IDs moved. It runs once per attempt.
type mutateFunc[T any] func(inv *idset.Set) (T, int64, error)

// update runs fetch, decode, mutate, encode and conditional write until the
// write commits. Only *store.ConflictError is retried, up to maxTries
// attempts in total; after that the conflict is returned unchanged. Every
// other error, including ctx ending between attempts, aborts.
func update[T any](ctx context.Context, a *allocator, op string, cat idset.Category, maxTries int, mutate mutateFunc[T]) (T, error) {
	var zero T
	if maxTries < 1 {
		return zero, fmt.Errorf("%w: tries must be positive, got %d", ErrInvalid, maxTries)
	}

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		blob, err := a.store.Get(ctx, cat)
		if err != nil {
			return zero, err
		}
		inv, err := a.codec.Decode(cat, blob.Payload)
		if err != nil {
			return zero, err
		}
		res, moved, err := mutate(inv)
		if err != nil {
			return zero, err
		}
		payload, err := a.codec.Encode(inv)
		if err != nil {
			return zero, err
		}

		ver, err := a.store.Set(ctx, cat, blob.Version, payload)
		if err == nil {
			a.log.Debug("write committed", Fields{
				"name": a.name, "op": op, "category": cat.Name(),
				"attempt": attempt, "ids": moved, "version": ver,
			})
			a.hooks.Committed(op, cat, attempt, moved)
			return res, nil
		}

		var ce *store.ConflictError
		if !errors.As(err, &ce) {
			return zero, err
		}
		a.hooks.WriteConflict(op, cat, attempt)
		if attempt >= maxTries {
			a.log.Error("write conflict; retries exhausted", Fields{
				"name": a.name, "op": op, "category": cat.Name(),
				"tries": maxTries, "expected": ce.Expected, "actual": ce.Actual,
			})
			a.hooks.RetriesExhausted(op, cat, maxTries)
			return zero, err
		}
		a.log.Debug("write conflict; retrying", Fields{
			"name": a.name, "op": op, "category": cat.Name(), "attempt": attempt,
		})
	}
}
