// Package metrics holds the Prometheus collectors shared by the dispatcher,
// the session controller and the backend server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	BatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bilingua_batches_total",
			Help: "Batches dispatched to the translation backend, labeled by outcome class.",
		},
		[]string{"outcome"},
	)
	BatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bilingua_batch_duration_seconds",
			Help:    "Duration of one backend request in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service"},
	)
	UnitsInjected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bilingua_units_injected_total",
			Help: "Translations inserted into documents.",
		},
	)
	SessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bilingua_sessions_total",
			Help: "Translation sessions settled, labeled by final status.",
		},
		[]string{"status"},
	)
	ServerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bilingua_server_requests_total",
			Help: "Requests served by the translate endpoint, labeled by status code.",
		},
		[]string{"status_code"},
	)
	ServerSegments = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bilingua_server_segments_total",
			Help: "Segments received by the translate endpoint.",
		},
	)
)

func init() {
	prometheus.MustRegister(BatchesTotal)
	prometheus.MustRegister(BatchDuration)
	prometheus.MustRegister(UnitsInjected)
	prometheus.MustRegister(SessionsTotal)
	prometheus.MustRegister(ServerRequests)
	prometheus.MustRegister(ServerSegments)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
