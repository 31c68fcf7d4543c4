package cli

import (
	"context"
	"fmt"
	"io"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/unkn0wn-root/idgen"
	"github.com/unkn0wn-root/idgen/codec"
	lr "github.com/unkn0wn-root/idgen/log/logrus"
	"github.com/unkn0wn-root/idgen/provider"
	"github.com/unkn0wn-root/idgen/provider/bigcache"
	rprov "github.com/unkn0wn-root/idgen/provider/redis"
	"github.com/unkn0wn-root/idgen/provider/ristretto"
	"github.com/unkn0wn-root/idgen/store"
	"github.com/unkn0wn-root/idgen/store/cached"
	rstore "github.com/unkn0wn-root/idgen/store/redis"
	"github.com/unkn0wn-root/idgen/store/sqlite"
)

// newLogger builds the logrus logger all CLI diagnostics go through.
func newLogger(cfg LogConfig, w io.Writer) (*logrus.Logger, error) {
	l := logrus.New()
	l.SetOutput(w)
	lvl, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	l.SetLevel(lvl)
	if cfg.Format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	}
	return l, nil
}

func newStore(cfg Config, log idgen.Logger) (store.VersionedStore, error) {
	var (
		st  store.VersionedStore
		err error
	)
	switch cfg.Backend {
	case "sqlite":
		st, err = sqlite.New(sqlite.Config{Path: cfg.SQLite.Path, BusyTimeout: cfg.SQLite.BusyTimeout})
	case "redis":
		st, err = rstore.New(rstore.Config{
			Client:      newRedisClient(cfg.Redis),
			Namespace:   cfg.Redis.Namespace,
			CloseClient: true,
		})
	default:
		err = fmt.Errorf("unknown backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	p, err := newProvider(cfg)
	if err != nil {
		_ = st.Close(context.Background())
		return nil, err
	}
	if p == nil {
		return st, nil
	}
	return cached.New(cached.Options{
		Inner:     st,
		Provider:  p,
		Namespace: cfg.Redis.Namespace,
		TTL:       cfg.Cache.TTL,
		Logger:    log,
	})
}

func newRedisClient(cfg RedisConfig) goredis.UniversalClient {
	return goredis.NewUniversalClient(&goredis.UniversalOptions{
		Addrs:    cfg.Addrs,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// newProvider returns nil when caching is off. The redis cache tier reuses
// the redis connection settings with its own client.
func newProvider(cfg Config) (provider.Provider, error) {
	switch cfg.Cache.Kind {
	case "":
		return nil, nil
	case "ristretto":
		return ristretto.New(ristretto.Config{NumCounters: 10_000, MaxCost: 64 << 20, BufferItems: 64})
	case "bigcache":
		return bigcache.New(bigcache.Config{LifeWindow: cfg.Cache.TTL, MaxEntriesInWindow: 1024})
	case "redis":
		return rprov.New(rprov.Config{Client: newRedisClient(cfg.Redis), CloseClient: true})
	}
	return nil, fmt.Errorf("unknown cache kind %q", cfg.Cache.Kind)
}

// buildStore is replaced in tests.
var buildStore = newStore

// openAllocator wires store, codec and logging from cfg and opens the
// allocator. Callers must Close it.
func openAllocator(ctx context.Context, cfg Config, logOut io.Writer) (idgen.Allocator, error) {
	ll, err := newLogger(cfg.Log, logOut)
	if err != nil {
		return nil, err
	}
	log := lr.LogrusLogger{E: logrus.NewEntry(ll).WithField("component", "idgen")}

	c, err := codec.ByName(cfg.Codec)
	if err != nil {
		return nil, err
	}
	st, err := buildStore(cfg, log)
	if err != nil {
		return nil, err
	}
	a, err := idgen.New(idgen.Options{
		Store:        st,
		Codec:        c,
		Logger:       log,
		DefaultTries: cfg.Tries,
	})
	if err != nil {
		_ = st.Close(ctx)
		return nil, err
	}
	if err := a.Open(ctx); err != nil {
		_ = st.Close(ctx)
		return nil, err
	}
	return a, nil
}
