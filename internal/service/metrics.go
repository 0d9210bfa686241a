package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cartOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_cart_operations_total",
			Help: "Cart mutations by operation",
		},
		[]string{"operation"},
	)

	flowEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_flow_events_total",
			Help: "Checkout flow events by event and whether they changed the state",
		},
		[]string{"event", "result"},
	)

	checkouts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_checkouts_total",
			Help: "Checkout submissions by result",
		},
		[]string{"result"},
	)

	orderValue = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "storefront_order_value_rubles",
			Help:    "Total of submitted orders in rubles",
			Buckets: prometheus.ExponentialBuckets(10_000, 2.5, 10),
		},
	)

	sessionsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "storefront_sessions_created_total",
			Help: "Sessions created on first mutation",
		},
	)
)
