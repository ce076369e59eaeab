// Staywatch - Hotel Reservation Sync and Notification Engine
// Copyright 2026 Staywatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/staywatch/staywatch

// Package metrics provides Prometheus instrumentation for the Staywatch
// engine: poll cycles, diff detection, notification policy decisions and
// WebSocket fan-out.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Poll engine metrics

	PollCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "staywatch_poll_cycles_total",
			Help: "Total number of completed poll cycles per loop",
		},
		[]string{"loop", "outcome"}, // outcome: ok, fetch_error, discarded
	)

	PollCycleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "staywatch_poll_cycle_duration_seconds",
			Help:    "Duration of a single poll cycle including the fetch",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"loop"},
	)

	DiffEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "staywatch_diff_events_total",
			Help: "Total number of diff events emitted per loop",
		},
		[]string{"loop", "first_seen"},
	)

	SnapshotSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "staywatch_snapshot_records",
			Help: "Current number of records held in each snapshot store",
		},
		[]string{"loop"},
	)

	ActiveLoops = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "staywatch_active_poll_loops",
			Help: "Number of polling loops in the current poll session",
		},
	)

	IdentityChanges = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "staywatch_identity_changes_total",
			Help: "Total number of identity signal emissions processed",
		},
	)

	// Notification policy metrics

	NotificationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "staywatch_notifications_created_total",
			Help: "Total number of notifications created, by level",
		},
		[]string{"level"},
	)

	StaleDiffEvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "staywatch_stale_diff_events_total",
			Help: "Total number of diff events dropped because their poll session was superseded",
		},
	)

	NotificationsSuppressed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "staywatch_notifications_suppressed_total",
			Help: "Total number of diff events suppressed as noise",
		},
		[]string{"reason"}, // first_seen, unchanged, stale_backfill
	)

	InboxSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "staywatch_inbox_entries",
			Help: "Current number of entries in the notification inbox",
		},
	)

	ToastEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "staywatch_toast_evictions_total",
			Help: "Total number of toasts evicted because the queue was full",
		},
	)

	StoreWriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "staywatch_store_write_failures_total",
			Help: "Total number of swallowed notification persistence failures",
		},
	)

	// Backend client metrics

	BackendRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "staywatch_backend_requests_total",
			Help: "Total number of booking API requests",
		},
		[]string{"endpoint", "outcome"}, // outcome: success, failure, rejected
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "staywatch_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// WebSocket metrics

	WebSocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "staywatch_websocket_clients",
			Help: "Current number of connected WebSocket clients",
		},
	)

	WebSocketDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "staywatch_websocket_dropped_total",
			Help: "Total number of messages dropped because a send buffer was full",
		},
		[]string{"type"},
	)
)
