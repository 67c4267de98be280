// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides metrics and instrumentation for the chat
// service.
//
// # Description
//
// Prometheus metrics for the streaming chat pipeline:
//   - Request counters (by endpoint, status)
//   - Latency histograms (time to first token, total stream duration)
//   - Active stream gauge, disconnect and persistence counters
//
// # Integration
//
// Metrics are exposed via the /metrics endpoint. Use with Prometheus +
// Grafana for dashboards and alerting.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics
const metricsNamespace = "aleutian"

// Subsystem for chat metrics
const chatSubsystem = "chat"

// Endpoint label values.
const (
	EndpointChatStream    = "chat_stream"
	EndpointHistory       = "history"
	EndpointConversations = "conversations"
)

// Status label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// ChatMetrics holds all Prometheus metrics for the chat service.
//
// Initialize once at startup via InitMetrics(); handlers read the
// DefaultMetrics singleton.
type ChatMetrics struct {
	// RequestsTotal counts API requests.
	// Labels: endpoint, status (success, error)
	RequestsTotal *prometheus.CounterVec

	// TokensStreamedTotal counts token events relayed to clients.
	// Labels: backend
	TokensStreamedTotal *prometheus.CounterVec

	// TimeToFirstTokenSeconds measures latency to the first upstream byte.
	// Labels: backend
	TimeToFirstTokenSeconds *prometheus.HistogramVec

	// StreamDurationSeconds measures total stream duration.
	// Labels: backend, status (success, error)
	StreamDurationSeconds *prometheus.HistogramVec

	// ActiveStreams tracks currently open streaming responses.
	ActiveStreams prometheus.Gauge

	// ClientDisconnectsTotal counts clients that dropped mid-stream.
	ClientDisconnectsTotal prometheus.Counter

	// MalformedEventsTotal counts upstream data lines that failed to
	// decode and were skipped.
	MalformedEventsTotal prometheus.Counter

	// PersistsTotal counts deferred conversation writes.
	// Labels: outcome (success, error)
	PersistsTotal *prometheus.CounterVec
}

// DefaultMetrics is the singleton instance, set by InitMetrics().
var DefaultMetrics *ChatMetrics

var initOnce sync.Once

// InitMetrics initializes and registers the default metrics instance.
//
// Safe to call more than once; registration happens on the first call
// only (promauto panics on duplicate registration otherwise).
func InitMetrics() *ChatMetrics {
	initOnce.Do(func() {
		DefaultMetrics = &ChatMetrics{
			RequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: metricsNamespace,
					Subsystem: chatSubsystem,
					Name:      "requests_total",
					Help:      "Total API requests by endpoint and status",
				},
				[]string{"endpoint", "status"},
			),

			TokensStreamedTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: metricsNamespace,
					Subsystem: chatSubsystem,
					Name:      "tokens_streamed_total",
					Help:      "Token events relayed to clients by backend",
				},
				[]string{"backend"},
			),

			TimeToFirstTokenSeconds: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: metricsNamespace,
					Subsystem: chatSubsystem,
					Name:      "time_to_first_token_seconds",
					Help:      "Latency from request to first upstream byte",
					Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
				},
				[]string{"backend"},
			),

			StreamDurationSeconds: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: metricsNamespace,
					Subsystem: chatSubsystem,
					Name:      "stream_duration_seconds",
					Help:      "Total stream duration by backend and status",
					Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
				},
				[]string{"backend", "status"},
			),

			ActiveStreams: promauto.NewGauge(
				prometheus.GaugeOpts{
					Namespace: metricsNamespace,
					Subsystem: chatSubsystem,
					Name:      "active_streams",
					Help:      "Currently open streaming responses",
				},
			),

			ClientDisconnectsTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: metricsNamespace,
					Subsystem: chatSubsystem,
					Name:      "client_disconnects_total",
					Help:      "Clients that dropped mid-stream",
				},
			),

			MalformedEventsTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: metricsNamespace,
					Subsystem: chatSubsystem,
					Name:      "malformed_events_total",
					Help:      "Upstream data lines that failed to decode",
				},
			),

			PersistsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: metricsNamespace,
					Subsystem: chatSubsystem,
					Name:      "persists_total",
					Help:      "Deferred conversation writes by outcome",
				},
				[]string{"outcome"},
			),
		}
	})
	return DefaultMetrics
}
