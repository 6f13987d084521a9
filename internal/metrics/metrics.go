// Package metrics holds the prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "studio_session"

var (
	Registry = prometheus.NewRegistry()

	RecordsSaved = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "records_saved_total",
		Help:      "Draft and open-card records written, by kind.",
	}, []string{"kind"})

	RecordsEvicted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "records_evicted_total",
		Help:      "Expired or corrupt records removed, by kind and reason.",
	}, []string{"kind", "reason"})

	SessionsStarted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_started_total",
		Help:      "Activity sessions started at login.",
	})

	SessionsEnded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_ended_total",
		Help:      "Activity sessions ended, by reason.",
	}, []string{"reason"})

	WarningsShown = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "timeout_warnings_total",
		Help:      "Transitions into the timeout warning state.",
	})

	ActivitySyncs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "activity_syncs_total",
		Help:      "Activity sync attempts, by result.",
	}, []string{"result"})

	ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_sessions",
		Help:      "Sessions currently tracked.",
	})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		RecordsSaved,
		RecordsEvicted,
		SessionsStarted,
		SessionsEnded,
		WarningsShown,
		ActivitySyncs,
		ActiveSessions,
	)
}

func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
