// Package redis stores category payloads in Redis hashes so allocators in
// different processes share one inventory.
//
// Each category lives at "idgen:<namespace>:<category>" as a hash with the
// fields "ver" and "data". Conditional writes run as Lua scripts, so the
// version check and the write are one atomic step on the server.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/idgen/idset"
	"github.com/unkn0wn-root/idgen/internal/util"
	"github.com/unkn0wn-root/idgen/store"
)

const (
	keyPrefix = "idgen"
	fieldVer  = "ver"
	fieldData = "data"

	statusMissing  = 0
	statusOK       = 1
	statusConflict = -1
)

var ErrNilClient = errors.New("redis store: nil client")

// casScript replaces data iff ver equals ARGV[1].
// Returns {status, version}: {1, new} on success, {-1, actual} on conflict,
// {0, "0"} when the category does not exist.
var casScript = goredis.NewScript(`
local v = redis.call('HGET', KEYS[1], 'ver')
if not v then
  return {0, '0'}
end
if v ~= ARGV[1] then
  return {-1, v}
end
local nv = redis.call('HINCRBY', KEYS[1], 'ver', 1)
redis.call('HSET', KEYS[1], 'data', ARGV[2])
return {1, tostring(nv)}
`)

// createScript initialises a category at version 1 unless it exists.
var createScript = goredis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
redis.call('HSET', KEYS[1], 'ver', '1', 'data', ARGV[1])
return 1
`)

// Store is a store.VersionedStore backed by Redis.
type Store struct {
	rdb         goredis.UniversalClient
	ns          string
	closeClient bool
}

var _ store.VersionedStore = (*Store)(nil)

type Config struct {
	Client goredis.UniversalClient
	// Namespace separates inventories sharing one Redis; may be empty.
	Namespace string
	// CloseClient set true only if this store exclusively owns the client.
	CloseClient bool
}

func New(cfg Config) (*Store, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	return &Store{rdb: cfg.Client, ns: cfg.Namespace, closeClient: cfg.CloseClient}, nil
}

func (s *Store) Name() string { return "redis" }

func (s *Store) key(cat idset.Category) string { return util.Key(keyPrefix, s.ns, cat.Name()) }

// Open checks that the server is reachable.
func (s *Store) Open(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return store.Wrap("open", "", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, cat idset.Category) (store.Blob, error) {
	vals, err := s.rdb.HMGet(ctx, s.key(cat), fieldVer, fieldData).Result()
	if err != nil {
		return store.Blob{}, store.Wrap("get", cat, err)
	}
	if len(vals) != 2 || vals[0] == nil {
		return store.Blob{}, store.ErrNotFound
	}
	ver, err := parseVersion(vals[0])
	if err != nil {
		return store.Blob{}, store.Wrap("get", cat, err)
	}
	var payload []byte
	switch d := vals[1].(type) {
	case nil:
	case string:
		payload = []byte(d)
	case []byte:
		payload = d
	default:
		return store.Blob{}, store.Wrap("get", cat, fmt.Errorf("unexpected data type %T", d))
	}
	return store.Blob{Version: ver, Payload: payload}, nil
}

func (s *Store) Set(ctx context.Context, cat idset.Category, expected store.Version, payload []byte) (store.Version, error) {
	res, err := casScript.Run(ctx, s.rdb, []string{s.key(cat)},
		strconv.FormatUint(uint64(expected), 10), payload).Slice()
	if err != nil {
		return 0, store.Wrap("set", cat, err)
	}
	if len(res) != 2 {
		return 0, store.Wrap("set", cat, fmt.Errorf("unexpected script reply %v", res))
	}
	status, ok := res[0].(int64)
	if !ok {
		return 0, store.Wrap("set", cat, fmt.Errorf("unexpected script status %v", res[0]))
	}
	ver, err := parseVersion(res[1])
	if err != nil {
		return 0, store.Wrap("set", cat, err)
	}
	switch status {
	case statusOK:
		return ver, nil
	case statusConflict:
		return 0, &store.ConflictError{Category: cat, Expected: expected, Actual: ver}
	case statusMissing:
		return 0, store.ErrNotFound
	}
	return 0, store.Wrap("set", cat, fmt.Errorf("unexpected script status %d", status))
}

func (s *Store) Create(ctx context.Context, cat idset.Category, payload []byte) (store.Version, error) {
	created, err := createScript.Run(ctx, s.rdb, []string{s.key(cat)}, payload).Int64()
	if err != nil {
		return 0, store.Wrap("create", cat, err)
	}
	if created == 0 {
		return 0, store.ErrExists
	}
	return 1, nil
}

// Delete removes a category and its inventory.
func (s *Store) Delete(ctx context.Context, cat idset.Category) error {
	return store.Wrap("delete", cat, s.rdb.Del(ctx, s.key(cat)).Err())
}

// Close releases the underlying redis client only when this store owns it.
// Safe to call multiple times; repeated calls become no-ops.
func (s *Store) Close(context.Context) error {
	if s.closeClient {
		if err := s.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}

func parseVersion(v any) (store.Version, error) {
	var str string
	switch vv := v.(type) {
	case string:
		str = vv
	case []byte:
		str = string(vv)
	case int64:
		return store.Version(vv), nil
	default:
		str = fmt.Sprint(vv)
	}
	u, err := strconv.ParseUint(str, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("redis version parse: %w", err)
	}
	return store.Version(u), nil
}
