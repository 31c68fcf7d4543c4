package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/unkn0wn-root/idgen/codec"
)

// Config is the on-disk CLI configuration. Flags override file values.
type Config struct {
	Backend string       `yaml:"backend"` // "sqlite" | "redis"
	SQLite  SQLiteConfig `yaml:"sqlite"`
	Redis   RedisConfig  `yaml:"redis"`
	Cache   CacheConfig  `yaml:"cache"`
	Codec   string       `yaml:"codec"`
	Tries   int          `yaml:"tries"`
	Log     LogConfig    `yaml:"log"`
}

type SQLiteConfig struct {
	Path        string        `yaml:"path"`
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

type RedisConfig struct {
	Addrs     []string `yaml:"addrs"`
	Username  string   `yaml:"username"`
	Password  string   `yaml:"password"`
	DB        int      `yaml:"db"`
	Namespace string   `yaml:"namespace"`
}

type CacheConfig struct {
	Kind string        `yaml:"kind"` // "" | "ristretto" | "bigcache" | "redis"
	TTL  time.Duration `yaml:"ttl"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" | "json"
}

var (
	validBackends   = []string{"sqlite", "redis"}
	validCacheKinds = []string{"", "ristretto", "bigcache", "redis"}
	validLogFormats = []string{"text", "json"}
)

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Backend: "sqlite",
		SQLite:  SQLiteConfig{Path: "idgen.db", BusyTimeout: 5 * time.Second},
		Redis:   RedisConfig{Addrs: []string{"localhost:6379"}},
		Cache:   CacheConfig{TTL: time.Minute},
		Codec:   "text",
		Tries:   3,
		Log:     LogConfig{Level: "warn", Format: "text"},
	}
}

// LoadConfig reads a YAML file over DefaultConfig. Unknown keys are errors.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if !slices.Contains(validBackends, c.Backend) {
		return fmt.Errorf("invalid backend %q: must be one of %v", c.Backend, validBackends)
	}
	switch c.Backend {
	case "sqlite":
		if c.SQLite.Path == "" {
			return errors.New("sqlite.path is required")
		}
	case "redis":
		if len(c.Redis.Addrs) == 0 {
			return errors.New("redis.addrs is required")
		}
	}
	if !slices.Contains(validCacheKinds, c.Cache.Kind) {
		return fmt.Errorf("invalid cache kind %q: must be one of %v", c.Cache.Kind, validCacheKinds)
	}
	if _, err := codec.ByName(c.Codec); err != nil {
		return err
	}
	if c.Tries < 1 {
		return fmt.Errorf("tries must be positive, got %d", c.Tries)
	}
	if !slices.Contains(validLogFormats, c.Log.Format) {
		return fmt.Errorf("invalid log format %q: must be one of %v", c.Log.Format, validLogFormats)
	}
	return nil
}
