package changefeed

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	changeNotificationsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "order_notification",
			Name:      "change_notifications_total",
			Help:      "Change notifications received, by adapter result.",
		},
		[]string{"result"}, // emitted, ignored_table, not_notifiable, malformed
	)

	listenerReconnectsCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "order_notification",
			Name:      "change_feed_listener_reconnects_total",
			Help:      "Times the LISTEN connection was re-established.",
		},
	)
)
