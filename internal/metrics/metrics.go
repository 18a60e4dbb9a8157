// FloorSync - Multi-Tenant Restaurant Floor Coordination
// Copyright 2026 Mohammed Siddiqui (mohammedsiddiqui6872)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mohammedsiddiqui6872/backend-sub009

// Package metrics provides Prometheus instrumentation for the coordination
// core: websocket connection counts, event traffic, broadcast drops,
// assignment operations, and circuit breaker state.
//
// Metrics are exposed at /metrics in Prometheus text format.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WebSocket connection metrics
	ConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "floorsync_websocket_connections",
			Help: "Current number of connected websocket clients",
		},
	)

	TenantGroups = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "floorsync_tenant_groups",
			Help: "Current number of tenant broadcast groups with at least one member",
		},
	)

	ConnectionsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "floorsync_websocket_connections_rejected_total",
			Help: "Connections closed before joining a tenant group",
		},
		[]string{"reason"}, // "missing_token", "invalid_token"
	)

	// Event traffic metrics
	EventsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "floorsync_events_received_total",
			Help: "Inbound commands received from clients",
		},
		[]string{"event"},
	)

	EventsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "floorsync_events_sent_total",
			Help: "Events delivered to client send buffers",
		},
		[]string{"event"},
	)

	BroadcastsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "floorsync_broadcasts_dropped_total",
			Help: "Broadcasts dropped because the hub channel was full",
		},
	)

	SlowClientsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "floorsync_slow_clients_evicted_total",
			Help: "Clients disconnected because their send buffer overflowed",
		},
	)

	HandlerErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "floorsync_handler_errors_total",
			Help: "Command handler failures reported to the originating client",
		},
		[]string{"event"},
	)

	// Domain metrics
	AssignmentOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "floorsync_assignment_operations_total",
			Help: "Assignment store operations",
		},
		[]string{"operation"}, // "create", "end"
	)

	// Circuit breaker state: 0=closed, 1=open, 2=half-open
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "floorsync_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"name"},
	)

	// HTTP API metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "floorsync_http_requests_total",
			Help: "HTTP API requests by method, path, and status",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "floorsync_http_request_duration_seconds",
			Help:    "HTTP API request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "floorsync_http_requests_in_flight",
			Help: "HTTP API requests currently being served",
		},
	)
)
