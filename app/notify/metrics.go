package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sinkSendTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "press_relay_sink_send_total",
		Help: "Notification sink deliveries by sink and result.",
	}, []string{"sink", "result"})

	sinkSendDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "press_relay_sink_send_duration_seconds",
		Help:    "Duration of single notification delivery attempts.",
		Buckets: prometheus.DefBuckets,
	}, []string{"sink", "result"})
)
