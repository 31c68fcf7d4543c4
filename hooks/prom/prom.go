// Package prom exports allocator and cache events as Prometheus metrics.
package prom

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/unkn0wn-root/idgen"
	"github.com/unkn0wn-root/idgen/idset"
)

const (
	namespace     = "idgen"
	labelOp       = "op"
	labelCategory = "category"
	labelReason   = "reason"
)

// Hooks counts conflicts, commits and cache events. Category labels are
// unbounded only if the set of categories is; pass Options.NoCategoryLabel
// when categories are generated dynamically.
type Hooks struct {
	conflicts   *prometheus.CounterVec
	exhausted   *prometheus.CounterVec
	committed   *prometheus.CounterVec
	ids         *prometheus.CounterVec
	attempts    *prometheus.HistogramVec
	selfHeals   *prometheus.CounterVec
	setRejected prometheus.Counter

	noCategory bool
}

var _ idgen.Hooks = (*Hooks)(nil)

type Options struct {
	// ConstLabels are attached to every metric, e.g. the service name.
	ConstLabels prometheus.Labels
	// NoCategoryLabel reports every category as "all".
	NoCategoryLabel bool
}

// New creates the metrics and registers them with reg.
func New(reg prometheus.Registerer, opts Options) (*Hooks, error) {
	h := &Hooks{
		noCategory: opts.NoCategoryLabel,
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "write_conflicts_total",
			Help:        "Conditional writes lost to another writer.",
			ConstLabels: opts.ConstLabels,
		}, []string{labelOp, labelCategory}),
		exhausted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "retries_exhausted_total",
			Help:        "Calls that returned a write conflict after their last attempt.",
			ConstLabels: opts.ConstLabels,
		}, []string{labelOp, labelCategory}),
		committed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "commits_total",
			Help:        "Committed take and push calls.",
			ConstLabels: opts.ConstLabels,
		}, []string{labelOp, labelCategory}),
		ids: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "ids_total",
			Help:        "IDs moved by committed calls.",
			ConstLabels: opts.ConstLabels,
		}, []string{labelOp, labelCategory}),
		attempts: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "attempts",
			Help:        "Attempts needed by committed calls.",
			Buckets:     []float64{1, 2, 3, 5, 8, 13},
			ConstLabels: opts.ConstLabels,
		}, []string{labelOp}),
		selfHeals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "self_heals_total",
			Help:        "Unreadable cache entries deleted on read.",
			ConstLabels: opts.ConstLabels,
		}, []string{labelReason}),
		setRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "set_rejected_total",
			Help:        "Cache writes rejected by the provider.",
			ConstLabels: opts.ConstLabels,
		}),
	}
	for _, c := range []prometheus.Collector{
		h.conflicts, h.exhausted, h.committed, h.ids, h.attempts, h.selfHeals, h.setRejected,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return h, nil
}

func (h *Hooks) category(cat idset.Category) string {
	if h.noCategory {
		return "all"
	}
	return cat.Name()
}

func (h *Hooks) WriteConflict(op string, cat idset.Category, _ int) {
	h.conflicts.WithLabelValues(op, h.category(cat)).Inc()
}

func (h *Hooks) RetriesExhausted(op string, cat idset.Category, _ int) {
	h.exhausted.WithLabelValues(op, h.category(cat)).Inc()
}

func (h *Hooks) Committed(op string, cat idset.Category, attempt int, ids int64) {
	c := h.category(cat)
	h.committed.WithLabelValues(op, c).Inc()
	h.ids.WithLabelValues(op, c).Add(float64(ids))
	h.attempts.WithLabelValues(op).Observe(float64(attempt))
}

func (h *Hooks) CacheSelfHeal(_, reason string) {
	h.selfHeals.WithLabelValues(reason).Inc()
}

func (h *Hooks) CacheSetRejected(string) { h.setRejected.Inc() }
