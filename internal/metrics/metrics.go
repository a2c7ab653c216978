// Package metrics registers the server's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "aetharia",
		Name:      "sessions_open",
		Help:      "Currently connected sessions.",
	})

	MessagesInbound = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aetharia",
		Name:      "messages_inbound_total",
		Help:      "Accepted inbound messages by wire type.",
	}, []string{"type"})

	MessagesRateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "aetharia",
		Name:      "messages_rate_limited_total",
		Help:      "Inbound messages dropped by the per-session rate limit.",
	})

	FramesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "aetharia",
		Name:      "frames_dropped_total",
		Help:      "Outbound frames dropped on closed or saturated sessions.",
	})

	BroadcastFanout = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "aetharia",
		Name:      "broadcast_fanout",
		Help:      "Recipients reached per zone broadcast.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 8),
	})

	TickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "aetharia",
		Name:      "physics_tick_seconds",
		Help:      "Wall time of one physics tick across all players.",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
	})

	BlockMutations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "aetharia",
		Name:      "block_mutations_total",
		Help:      "Accepted block placements and removals.",
	})
)
