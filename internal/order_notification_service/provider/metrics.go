package provider

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	providerRequestDurationHist = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "order_notification",
			Name:      "provider_request_duration_seconds",
			Help:      "Duration of HTTP requests to messaging providers.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider_kind"},
	)

	providerRateLimitedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "order_notification",
			Name:      "provider_local_rate_limited_total",
			Help:      "Sends rejected by the local rate limiter.",
		},
		[]string{"provider_kind"},
	)
)
