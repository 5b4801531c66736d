package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	providerStateGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "order_notification",
			Name:      "provider_session_state",
			Help:      "Current provider session state (0 uninitialized, 1 awaiting_authentication, 2 ready, 3 degraded, 4 failed).",
		},
		[]string{"provider_kind"},
	)

	providerTransitionsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "order_notification",
			Name:      "provider_session_transitions_total",
			Help:      "Provider session state transitions.",
		},
		[]string{"provider_kind", "from", "to"},
	)

	providerReconnectAttemptsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "order_notification",
			Name:      "provider_reconnect_attempts_total",
			Help:      "Automatic reconnect attempts by result.",
		},
		[]string{"provider_kind", "result"},
	)
)
