package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// RiskComputations counts risk computations by kind (metrics, montecarlo,
// stress) and outcome (ok, error, timeout, busy).
var RiskComputations = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "riskstream_computations_total",
		Help: "Total number of risk computations by kind and outcome",
	},
	[]string{"kind", "outcome"},
)

// ComputeLatency records latency distribution for risk computations
var ComputeLatency = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "riskstream_compute_latency_seconds",
		Help:    "Latency in seconds of individual risk computations",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"kind"},
)

// Streaming layer metrics
var (
	ActiveSubscriptions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "riskstream_active_subscriptions",
			Help: "Number of live risk stream subscriptions",
		},
	)

	PushesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskstream_pushes_sent_total",
			Help: "Total messages pushed to stream clients by type",
		},
		[]string{"type"},
	)

	TicksSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "riskstream_ticks_skipped_total",
			Help: "Scheduled recomputes skipped because the previous one was still running",
		},
	)

	PoolQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "riskstream_worker_queue_depth",
			Help: "Number of jobs waiting in the simulation worker pool queue",
		},
	)
)

func init() {
	prometheus.MustRegister(RiskComputations, ComputeLatency)
	prometheus.MustRegister(ActiveSubscriptions, PushesSent, TicksSkipped, PoolQueueDepth)
}
