//go:build go1.21

package slog

import (
	"bytes"
	stdslog "log/slog"
	"strings"
	"testing"

	"github.com/unkn0wn-root/idgen"
)

func TestAdapterCarriesFields(t *testing.T) {
	var buf bytes.Buffer
	h := stdslog.NewTextHandler(&buf, &stdslog.HandlerOptions{Level: stdslog.LevelDebug})
	var log idgen.Logger = Logger{L: stdslog.New(h)}

	log.Error("write conflict; retries exhausted", idgen.Fields{"tries": 3})
	log.Debug("bare", nil)

	out := buf.String()
	for _, want := range []string{"level=ERROR", "tries=3", "level=DEBUG", "msg=bare"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
}
