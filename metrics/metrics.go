package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ReservationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genie_reservations_total",
			Help: "Total processed reservation requests",
		},
		[]string{"recommendation", "status"},
	)

	ProcessingDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "genie_processing_duration_seconds",
			Help:    "Duration of reservation request processing",
			Buckets: prometheus.DefBuckets,
		},
	)

	AIFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genie_ai_fallbacks_total",
			Help: "AI-path failures that fell back to the deterministic path",
		},
		[]string{"stage"}, // interpret|evaluate
	)
)

func init() {
	prometheus.MustRegister(ReservationsTotal)
	prometheus.MustRegister(ProcessingDuration)
	prometheus.MustRegister(AIFallbacksTotal)
}

func Register(mux *http.ServeMux) {
	mux.Handle("/metrics", promhttp.Handler())
}
