// Package metrics exposes Prometheus collectors for the streaming
// pipeline's health: jitter buffer depth and sync corrections, session
// queue depth, and clock-sync quality, grounded on the ambient metrics
// surface (§9).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JitterBufferDepth reports the jitter buffer's queued chunk count,
	// labeled by client id.
	JitterBufferDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "airwave",
		Subsystem: "jitterbuffer",
		Name:      "depth_chunks",
		Help:      "Number of chunks currently queued in the jitter buffer.",
	}, []string{"client_id"})

	// HardSyncTotal counts hard-sync corrections (buffer flush/refill).
	HardSyncTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "airwave",
		Subsystem: "jitterbuffer",
		Name:      "hard_sync_total",
		Help:      "Total hard-sync corrections performed.",
	}, []string{"client_id"})

	// SoftSyncTotal counts soft-sync corrections (single-frame insert/drop).
	SoftSyncTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "airwave",
		Subsystem: "jitterbuffer",
		Name:      "soft_sync_total",
		Help:      "Total soft-sync single-frame corrections performed.",
	}, []string{"client_id", "direction"})

	// SessionQueueDepth reports a broadcaster session's pending outbound
	// chunk count.
	SessionQueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "airwave",
		Subsystem: "broadcaster",
		Name:      "session_queue_depth",
		Help:      "Number of chunks queued for delivery to a session.",
	}, []string{"client_id", "stream_id"})

	// SessionsConnected tracks currently connected sessions per stream.
	SessionsConnected = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "airwave",
		Subsystem: "broadcaster",
		Name:      "sessions_connected",
		Help:      "Number of sessions currently subscribed to a stream.",
	}, []string{"stream_id"})

	// ClockOffsetMicros reports the client-observed clock offset to the
	// server, in microseconds.
	ClockOffsetMicros = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "airwave",
		Subsystem: "timesync",
		Name:      "clock_offset_microseconds",
		Help:      "Estimated offset between local and server clocks.",
	}, []string{"client_id"})

	// RoundTripMicros reports the most recent time-sync round trip time.
	RoundTripMicros = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "airwave",
		Subsystem: "timesync",
		Name:      "round_trip_microseconds",
		Help:      "Most recent time-sync round trip time.",
	}, []string{"client_id"})

	// ChunksDroppedTotal counts chunks dropped from a session's outbound
	// queue for exceeding the buffer-ahead staleness window.
	ChunksDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "airwave",
		Subsystem: "broadcaster",
		Name:      "chunks_dropped_total",
		Help:      "Total chunks dropped from a session queue as stale.",
	}, []string{"client_id", "stream_id"})

	// RequestTimeoutsTotal counts pending requests that expired without a
	// matching reply.
	RequestTimeoutsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "airwave",
		Subsystem: "client",
		Name:      "request_timeouts_total",
		Help:      "Total pending requests that expired without a reply.",
	}, []string{"client_id"})
)
