package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Verbose    bool
	Format     string // "json" | "text"

	// flag overrides; applied only when set on the command line
	Backend    string
	SQLitePath string
	RedisAddr  string
	Namespace  string
	Codec      string
	Cache      string
	Tries      int
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the idgen CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "idgen",
		Short: "idgen - distributed range-based ID allocation",
		Long: `Allocate unique IDs from named categories shared through SQLite or Redis.

Each category holds a free inventory of ID ranges. take reserves IDs from it,
push returns unused IDs, peek shows what is left.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	// Global flags
	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.ConfigPath, "config", "c", "", "YAML config file")
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output (debug logs on stderr)")
	pf.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	pf.StringVar(&opts.Backend, "backend", "", "store backend (sqlite|redis)")
	pf.StringVar(&opts.SQLitePath, "db", "", "sqlite database path")
	pf.StringVar(&opts.RedisAddr, "redis", "", "redis address host:port")
	pf.StringVar(&opts.Namespace, "namespace", "", "redis key namespace")
	pf.StringVar(&opts.Codec, "codec", "", "payload codec (text|json|msgpack|cbor|protobuf)")
	pf.StringVar(&opts.Cache, "cache", "", "read cache in front of the store (ristretto|bigcache|redis)")
	pf.IntVar(&opts.Tries, "tries", 0, "attempts per call on write conflicts")

	// Add subcommands
	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewTakeCommand(opts))
	cmd.AddCommand(NewPushCommand(opts))
	cmd.AddCommand(NewPeekCommand(opts))

	return cmd
}

// config loads the config file (if any) and applies flags set on cmd.
func (o *RootOptions) config(cmd *cobra.Command) (Config, error) {
	cfg := DefaultConfig()
	if o.ConfigPath != "" {
		var err error
		if cfg, err = LoadConfig(o.ConfigPath); err != nil {
			return cfg, err
		}
	}

	changed := cmd.Flags().Changed
	if changed("backend") {
		cfg.Backend = o.Backend
	}
	if changed("db") {
		cfg.SQLite.Path = o.SQLitePath
	}
	if changed("redis") {
		cfg.Redis.Addrs = []string{o.RedisAddr}
	}
	if changed("namespace") {
		cfg.Redis.Namespace = o.Namespace
	}
	if changed("codec") {
		cfg.Codec = o.Codec
	}
	if changed("cache") {
		cfg.Cache.Kind = o.Cache
	}
	if changed("tries") {
		cfg.Tries = o.Tries
	}
	if o.Verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, cfg.Validate()
}
