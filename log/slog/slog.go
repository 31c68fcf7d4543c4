//go:build go1.23

package slog

import (
	"context"
	stdslog "log/slog"
	"maps"
	"slices"

	"github.com/unkn0wn-root/idgen"
)

var _ idgen.Logger = Logger{}

// Logger adapts a *slog.Logger. Fields are emitted in key order so text
// output is stable across runs.
type Logger struct{ L *stdslog.Logger }

func (s Logger) Debug(msg string, f idgen.Fields) { s.log(stdslog.LevelDebug, msg, f) }
func (s Logger) Info(msg string, f idgen.Fields)  { s.log(stdslog.LevelInfo, msg, f) }
func (s Logger) Warn(msg string, f idgen.Fields)  { s.log(stdslog.LevelWarn, msg, f) }
func (s Logger) Error(msg string, f idgen.Fields) { s.log(stdslog.LevelError, msg, f) }

func (s Logger) log(level stdslog.Level, msg string, f idgen.Fields) {
	ctx := context.Background()
	if !s.L.Enabled(ctx, level) {
		return
	}
	s.L.LogAttrs(ctx, level, msg, attrs(f)...)
}

func attrs(f idgen.Fields) []stdslog.Attr {
	if len(f) == 0 {
		return nil
	}
	out := make([]stdslog.Attr, 0, len(f))
	for _, k := range slices.Sorted(maps.Keys(f)) {
		out = append(out, stdslog.Any(k, f[k]))
	}
	return out
}
