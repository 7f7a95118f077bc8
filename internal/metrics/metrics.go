// Package metrics adapts icegreg-chat-smpl/pkg/metrics's promauto
// constructor style to the handful of gauges/counters/histograms this
// client runtime can actually drive: connection lifecycle, command
// latency, and background-job queue depth. There is no HTTP or gRPC
// surface here, so those metric families from the teacher pack are not
// reproduced.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ClientMetrics holds the Prometheus collectors for one client facade
// instance. Construct with NewClientMetrics and pass it into client.New,
// connection.DialInbound or connection.ListenOutbound; the zero value
// (via NewNop) is safe to hold
// when metrics are not wired up, e.g. in tests.
type ClientMetrics struct {
	ActiveConnections  prometheus.Gauge
	Reconnects         prometheus.Counter
	CommandDuration    prometheus.Histogram
	CommandErrors      prometheus.Counter
	PendingJobs        prometheus.Gauge
	EventsDelivered    *prometheus.CounterVec
	BackgroundJobTotal prometheus.Counter
}

// NewClientMetrics registers a fresh set of collectors under the given
// namespace (typically the module/service name) on reg. With a nil reg
// the collectors are created but not registered anywhere.
func NewClientMetrics(namespace string, reg prometheus.Registerer) *ClientMetrics {
	factory := promauto.With(reg)
	return &ClientMetrics{
		ActiveConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "esl_active_connections",
			Help:      "Number of live ESL connections held by the client facade.",
		}),
		Reconnects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "esl_reconnects_total",
			Help:      "Total number of reconnect attempts after an unexpected disconnect.",
		}),
		CommandDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "esl_command_duration_seconds",
			Help:      "Time from writing an api/bgapi command to its reply being correlated.",
			Buckets:   prometheus.DefBuckets,
		}),
		CommandErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "esl_command_errors_total",
			Help:      "Total number of command replies that carried -ERR or timed out.",
		}),
		PendingJobs: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "esl_pending_background_jobs",
			Help:      "Number of bgapi jobs awaiting their BACKGROUND_JOB completion event.",
		}),
		EventsDelivered: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "esl_events_delivered_total",
			Help:      "Total number of events handed to the listener, by event name.",
		}, []string{"event_name"}),
		BackgroundJobTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "esl_background_jobs_total",
			Help:      "Total number of BACKGROUND_JOB events correlated to a pending bgapi call.",
		}),
	}
}

// NewNop returns metrics backed by an isolated, never-scraped registry so
// callers that don't care about metrics (tests, short-lived CLI runs) can
// still call into code that assumes a non-nil *ClientMetrics.
func NewNop() *ClientMetrics {
	return NewClientMetrics("", prometheus.NewRegistry())
}
