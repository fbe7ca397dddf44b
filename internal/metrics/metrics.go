// Leasing Velocity Backend - Leasing Analytics Sync and Dashboard Service
// Copyright 2026 Stoa Group Engineering
// SPDX-License-Identifier: MIT

// Package metrics provides Prometheus instrumentation for the sync
// pipeline, snapshot builds, and the dashboard read path.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Sync pipeline metrics

	SyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "leasing_sync_duration_seconds",
			Help:    "Duration of per-dataset sync attempts in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"dataset", "outcome"}, // outcome: synced, skipped, error
	)

	SyncRowsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leasing_sync_rows_written_total",
			Help: "Total rows written to raw tables by the batched writer",
		},
		[]string{"dataset"},
	)

	SyncChunksWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leasing_sync_chunks_written_total",
			Help: "Total chunks committed by the batched writer",
		},
		[]string{"dataset"},
	)

	SyncErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leasing_sync_errors_total",
			Help: "Total sync errors by kind",
		},
		[]string{"dataset", "kind"}, // kind: fetch, write, parse
	)

	SyncSkips = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leasing_sync_skips_total",
			Help: "Total datasets skipped as unchanged by the change detector",
		},
		[]string{"dataset"},
	)

	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "leasing_domo_request_duration_seconds",
			Help:    "Duration of Domo API requests in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 180, 300},
		},
		[]string{"operation"}, // token, metadata, export
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "leasing_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leasing_circuit_breaker_requests_total",
			Help: "Circuit breaker request outcomes",
		},
		[]string{"name", "result"}, // success, failure, rejected
	)

	// Snapshot metrics

	SnapshotBuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "leasing_snapshot_build_duration_seconds",
			Help:    "Duration of dashboard snapshot builds in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	SnapshotBuilds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leasing_snapshot_builds_total",
			Help: "Total snapshot builds by trigger",
		},
		[]string{"trigger"}, // post_sync, manual, startup, cold_read
	)

	SnapshotSignalsCoalesced = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "leasing_snapshot_signals_coalesced_total",
			Help: "Rebuild signals absorbed by debounce or the pending queue",
		},
	)

	// Dashboard read path metrics

	DashboardRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leasing_dashboard_requests_total",
			Help: "Dashboard reads by result (hit, not_modified, cold_build)",
		},
		[]string{"result"},
	)

	// Mapping diagnostics

	MappingGaps = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "leasing_mapping_gaps",
			Help: "Destination columns left unpopulated after the last sync",
		},
		[]string{"dataset"},
	)
)

// ObserveSync records a completed sync attempt for a dataset.
func ObserveSync(dataset, outcome string, duration time.Duration) {
	SyncDuration.WithLabelValues(dataset, outcome).Observe(duration.Seconds())
}
