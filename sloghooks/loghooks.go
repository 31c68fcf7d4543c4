package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/idgen"
	"github.com/unkn0wn-root/idgen/idset"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	ConflictEvery uint64
	CommitEvery   uint64
	SelfHealEvery uint64
	// Optional key redactor for cache keys. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	conflictCtr atomic.Uint64
	commitCtr   atomic.Uint64
	selfHealCtr atomic.Uint64
}

var _ idgen.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) WriteConflict(op string, cat idset.Category, attempt int) {
	if h.l == nil || !sample(h.opts.ConflictEvery, &h.conflictCtr) {
		return
	}
	h.l.Debug("idgen.write_conflict",
		"op", op,
		"category", cat.Name(),
		"attempt", attempt)
}

func (h *Hooks) RetriesExhausted(op string, cat idset.Category, tries int) {
	if h.l == nil {
		return
	}
	h.l.Warn("idgen.retries_exhausted",
		"op", op,
		"category", cat.Name(),
		"tries", tries)
}

func (h *Hooks) Committed(op string, cat idset.Category, attempt int, ids int64) {
	if h.l == nil || !sample(h.opts.CommitEvery, &h.commitCtr) {
		return
	}
	h.l.Debug("idgen.committed",
		"op", op,
		"category", cat.Name(),
		"attempt", attempt,
		"ids", ids)
}

func (h *Hooks) CacheSelfHeal(storageKey, reason string) {
	if h.l == nil || !sample(h.opts.SelfHealEvery, &h.selfHealCtr) {
		return
	}
	h.l.Debug("idgen.cache_self_heal",
		"key", h.redact(storageKey),
		"reason", reason)
}

func (h *Hooks) CacheSetRejected(storageKey string) {
	if h.l == nil {
		return
	}
	h.l.Warn("idgen.cache_set_rejected",
		"key", h.redact(storageKey))
}
