package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	activeConnectionsGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "notification",
			Name:      "active_connections",
			Help:      "Number of live push connections registered on this instance.",
		},
	)
	pushesDeliveredCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "notification",
			Name:      "pushes_delivered_total",
			Help:      "Total payload writes delivered to live connections.",
		},
		[]string{"path"}, // "local" (dispatcher direct) or "fanout" (bus echo)
	)
	connectionsEvictedCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "notification",
			Name:      "connections_evicted_total",
			Help:      "Connections evicted after a failed or timed-out write.",
		},
	)
	dispatchQueueDepthGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "notification",
			Name:      "dispatch_queue_depth",
			Help:      "Envelopes currently waiting in the dispatcher queue.",
		},
	)
	callerRunsCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "notification",
			Name:      "dispatch_caller_runs_total",
			Help:      "Enqueue attempts that ran on the submitting goroutine because the queue was full.",
		},
	)
	busPublishFailuresCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "notification",
			Name:      "bus_publish_failures_total",
			Help:      "Envelopes that could not be published on the fan-out bus.",
		},
	)
	recipientsExpiredCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "notification",
			Name:      "recipients_expired_total",
			Help:      "Recipient rows transitioned to expired by the sweeper.",
		},
		[]string{"scene"},
	)
)
