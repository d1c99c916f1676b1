// Package metrics exposes the prometheus collectors the control plane
// serves on /metrics, grounded on the registration pattern used for
// long-lived worker pools elsewhere in the corpus.
package metrics

import "github.com/prometheus/client_golang/prometheus"

type Collectors struct {
	Reconnects       prometheus.Counter
	ActiveTopics     prometheus.Gauge
	ActiveConnections prometheus.Gauge
	BetsPlaced       prometheus.Counter
	BetsSkipped      *prometheus.CounterVec
	AnalyticsWrites  *prometheus.CounterVec
	LivePolls        prometheus.Counter
}

// New constructs and registers every collector against reg. Passing a
// fresh prometheus.NewRegistry() in tests keeps collector registration
// idempotent across repeated construction.
func New(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pointskeeper",
			Subsystem: "wspool",
			Name:      "reconnects_total",
			Help:      "Number of connection reconnect cycles completed.",
		}),
		ActiveTopics: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pointskeeper",
			Subsystem: "wspool",
			Name:      "active_topics",
			Help:      "Number of topics currently subscribed across the pool.",
		}),
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pointskeeper",
			Subsystem: "wspool",
			Name:      "active_connections",
			Help:      "Number of open pub/sub connections.",
		}),
		BetsPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pointskeeper",
			Subsystem: "prediction",
			Name:      "bets_placed_total",
			Help:      "Number of bet RPCs that succeeded.",
		}),
		BetsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pointskeeper",
			Subsystem: "prediction",
			Name:      "bets_skipped_total",
			Help:      "Number of try-bet evaluations that aborted, by reason.",
		}, []string{"reason"}),
		AnalyticsWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pointskeeper",
			Subsystem: "analytics",
			Name:      "work_units_total",
			Help:      "Number of analytics work units processed, by kind and outcome.",
		}, []string{"kind", "outcome"}),
		LivePolls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pointskeeper",
			Subsystem: "livepoller",
			Name:      "poll_cycles_total",
			Help:      "Number of liveness poll cycles completed.",
		}),
	}

	reg.MustRegister(
		c.Reconnects,
		c.ActiveTopics,
		c.ActiveConnections,
		c.BetsPlaced,
		c.BetsSkipped,
		c.AnalyticsWrites,
		c.LivePolls,
	)
	return c
}
