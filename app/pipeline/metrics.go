package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "press_relay_runs_total",
		Help: "Pipeline runs by final status.",
	}, []string{"status"})

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "press_relay_run_duration_seconds",
		Help:    "Wall time of a full pipeline run.",
		Buckets: []float64{1, 2.5, 5, 10, 20, 40, 80, 160},
	})

	itemsMatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "press_relay_items_matched_total",
		Help: "Items that passed identity and window filtering, by source.",
	}, []string{"source"})

	unitsDegraded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "press_relay_units_degraded_total",
		Help: "Fetch units that failed and contributed no items, by source.",
	}, []string{"source"})

	messagesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "press_relay_messages_total",
		Help: "Rendered messages by delivery result.",
	}, []string{"result"})
)
