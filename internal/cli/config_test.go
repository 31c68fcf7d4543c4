package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "idgen.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestLoadConfigOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
backend: redis
redis:
  addrs: ["10.0.0.1:6379", "10.0.0.2:6379"]
  namespace: prod
cache:
  kind: ristretto
  ttl: 30s
codec: msgpack
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "redis", cfg.Backend)
	assert.Equal(t, []string{"10.0.0.1:6379", "10.0.0.2:6379"}, cfg.Redis.Addrs)
	assert.Equal(t, "prod", cfg.Redis.Namespace)
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL)
	assert.Equal(t, "msgpack", cfg.Codec)
	// untouched keys keep their defaults
	assert.Equal(t, 3, cfg.Tries)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoadConfigEmptyFile(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigRejectsUnknownKeys(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "backend: sqlite\nbakcend: redis\n"))
	require.Error(t, err)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"backend":    func(c *Config) { c.Backend = "etcd" },
		"sqlite":     func(c *Config) { c.SQLite.Path = "" },
		"redis":      func(c *Config) { c.Backend = "redis"; c.Redis.Addrs = nil },
		"cache":      func(c *Config) { c.Cache.Kind = "memcached" },
		"codec":      func(c *Config) { c.Codec = "yaml" },
		"tries":      func(c *Config) { c.Tries = 0 },
		"log format": func(c *Config) { c.Log.Format = "xml" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}
