package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// ReloadsTotal counts live board reloads by outcome: applied, stale or error.
	ReloadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "board",
		Name:      "reloads_total",
		Help:      "Full report reloads triggered by change notifications, labeled by result.",
	}, []string{"result"})

	// ReconcileTotal counts pending reports handled by photo reconciliation.
	ReconcileTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "intake",
		Name:      "reconcile_total",
		Help:      "Pending photo attachments processed by reconciliation, labeled by result.",
	}, []string{"result"})

	// CollabPollsTotal counts collaborator polls by source and result.
	CollabPollsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "collab",
		Name:      "polls_total",
		Help:      "Weather and outage polls, labeled by source and result.",
	}, []string{"source", "result"})

	// LastReloadSeconds is the unix timestamp of the last applied reload.
	LastReloadSeconds = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Subsystem: "board",
		Name:      "last_reload_timestamp_seconds",
		Help:      "Unix timestamp (seconds) of the last applied reload.",
	})
)

// Register registers the operation metrics and c with the default registry.
// Safe to call multiple times; only the first collector is registered.
func Register(c prometheus.Collector) {
	once.Do(func() {
		prometheus.MustRegister(
			ReloadsTotal,
			ReconcileTotal,
			CollabPollsTotal,
			LastReloadSeconds,
		)
		if c != nil {
			prometheus.MustRegister(c)
		}
	})
}

// Result labels shared by the counters.
const (
	ResultOK        = "ok"
	ResultError     = "error"
	ResultStale     = "stale"
	ResultAttached  = "attached"
	ResultRetry     = "retry"
	ResultAbandoned = "abandoned"
)
