// Package metrics exposes Prometheus counters for dictation sessions.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dictation_sessions_created_total",
			Help: "Total number of dictation sessions constructed",
		},
	)

	sessionsDisposedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dictation_sessions_disposed_total",
			Help: "Total number of dictation sessions torn down",
		},
	)

	sessionStartsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dictation_session_starts_total",
			Help: "Total number of recognition starts by audio source",
		},
		[]string{"source"},
	)

	eventsRelayedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dictation_events_relayed_total",
			Help: "Total number of recognition events relayed to subscribers by channel",
		},
		[]string{"channel"},
	)

	engineFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dictation_engine_failures_total",
			Help: "Total number of recognition engine failures by operation",
		},
		[]string{"op"},
	)
)

func RecordSessionCreated() {
	sessionsCreatedTotal.Inc()
}

func RecordSessionDisposed() {
	sessionsDisposedTotal.Inc()
}

// RecordStart counts a successful start for source ("device" or "file").
func RecordStart(source string) {
	sessionStartsTotal.WithLabelValues(source).Inc()
}

// RecordEvent counts one relayed event on channel.
func RecordEvent(channel string) {
	eventsRelayedTotal.WithLabelValues(channel).Inc()
}

func RecordEngineFailure(op string) {
	engineFailuresTotal.WithLabelValues(op).Inc()
}
