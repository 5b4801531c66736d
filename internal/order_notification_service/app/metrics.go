package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	deliveryAttemptsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "order_notification",
			Name:      "delivery_attempts_total",
			Help:      "Delivery attempts by channel, outcome and failure reason.",
		},
		[]string{"channel", "outcome", "reason", "fallback"},
	)

	deliveryDurationHist = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "order_notification",
			Name:      "delivery_duration_seconds",
			Help:      "Duration of a single channel delivery.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"channel"},
	)

	dispatchQueueDepthGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "order_notification",
			Name:      "dispatch_queue_depth",
			Help:      "Events waiting in a dispatcher shard.",
		},
		[]string{"shard"},
	)

	pendingQueriesCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "order_notification",
			Name:      "pending_queries_total",
			Help:      "Catch-up queries by result.",
		},
		[]string{"result"},
	)
)
