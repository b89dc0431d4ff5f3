// Copyright (C) 2026 RegDelta AI (contact@regdelta.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the RegDelta
// pipeline: request counters, detected-change counters, analyzer call
// latency, stream duration and active-stream gauges.
//
// Metrics are exposed via the /metrics endpoint. All operations are
// thread-safe via Prometheus's internal locking.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "regdelta"
const analysisSubsystem = "analysis"

// Endpoint labels an HTTP surface for metrics.
type Endpoint string

const (
	// EndpointAnalyzeStream is the streaming analyze endpoint.
	EndpointAnalyzeStream Endpoint = "analyze_stream"

	// EndpointDetect is the pure change-detection endpoint.
	EndpointDetect Endpoint = "detect"
)

// PipelineMetrics holds all Prometheus metrics for the change pipeline.
// Initialize once at startup via InitMetrics().
type PipelineMetrics struct {
	// RequestsTotal counts pipeline requests by endpoint and status.
	RequestsTotal *prometheus.CounterVec

	// ChangesDetectedTotal counts detected changes by kind.
	ChangesDetectedTotal *prometheus.CounterVec

	// AnalyzerCallsTotal counts external analyzer calls by status.
	AnalyzerCallsTotal *prometheus.CounterVec

	// AnalyzerDurationSeconds measures analyzer call latency.
	AnalyzerDurationSeconds prometheus.Histogram

	// StreamDurationSeconds measures total stream duration by endpoint and status.
	StreamDurationSeconds *prometheus.HistogramVec

	// ActiveStreams tracks currently open streaming responses.
	ActiveStreams *prometheus.GaugeVec

	// ClientDisconnectsTotal counts consumer disconnects during streaming.
	ClientDisconnectsTotal *prometheus.CounterVec
}

// DefaultMetrics is the singleton instance, nil until InitMetrics runs.
// All helpers below tolerate a nil singleton so pure-library callers and
// tests need no metrics setup.
var DefaultMetrics *PipelineMetrics

// InitMetrics creates and registers all pipeline metrics. Call once at
// application startup; a second call panics on duplicate registration.
func InitMetrics() *PipelineMetrics {
	DefaultMetrics = &PipelineMetrics{
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: analysisSubsystem,
				Name:      "requests_total",
				Help:      "Total pipeline requests by endpoint and status",
			},
			[]string{"endpoint", "status"},
		),

		ChangesDetectedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: analysisSubsystem,
				Name:      "changes_detected_total",
				Help:      "Total detected section changes by kind",
			},
			[]string{"kind"},
		),

		AnalyzerCallsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: analysisSubsystem,
				Name:      "analyzer_calls_total",
				Help:      "Total external analyzer calls by status",
			},
			[]string{"status"},
		),

		AnalyzerDurationSeconds: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: analysisSubsystem,
				Name:      "analyzer_duration_seconds",
				Help:      "External analyzer call latency in seconds",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
		),

		StreamDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: analysisSubsystem,
				Name:      "stream_duration_seconds",
				Help:      "Total stream duration in seconds",
				Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
			},
			[]string{"endpoint", "status"},
		),

		ActiveStreams: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: analysisSubsystem,
				Name:      "active_streams",
				Help:      "Number of currently open streaming responses",
			},
			[]string{"endpoint"},
		),

		ClientDisconnectsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: analysisSubsystem,
				Name:      "client_disconnects_total",
				Help:      "Total consumer disconnects during streaming",
			},
			[]string{"endpoint"},
		),
	}

	return DefaultMetrics
}

// RecordRequest records a completed pipeline request.
func RecordRequest(endpoint Endpoint, success bool) {
	if DefaultMetrics == nil {
		return
	}
	status := "success"
	if !success {
		status = "error"
	}
	DefaultMetrics.RequestsTotal.WithLabelValues(string(endpoint), status).Inc()
}

// RecordChanges records detected changes by kind.
func RecordChanges(kinds []string) {
	if DefaultMetrics == nil {
		return
	}
	for _, kind := range kinds {
		DefaultMetrics.ChangesDetectedTotal.WithLabelValues(kind).Inc()
	}
}

// RecordAnalyzerCall records one external analyzer call.
func RecordAnalyzerCall(success bool, elapsed time.Duration) {
	if DefaultMetrics == nil {
		return
	}
	status := "success"
	if !success {
		status = "error"
	}
	DefaultMetrics.AnalyzerCallsTotal.WithLabelValues(status).Inc()
	DefaultMetrics.AnalyzerDurationSeconds.Observe(elapsed.Seconds())
}

// StreamStarted increments the active-streams gauge.
func StreamStarted(endpoint Endpoint) {
	if DefaultMetrics == nil {
		return
	}
	DefaultMetrics.ActiveStreams.WithLabelValues(string(endpoint)).Inc()
}

// StreamEnded records stream completion and decrements the gauge.
func StreamEnded(endpoint Endpoint, elapsed time.Duration, success bool) {
	if DefaultMetrics == nil {
		return
	}
	status := "success"
	if !success {
		status = "error"
	}
	DefaultMetrics.ActiveStreams.WithLabelValues(string(endpoint)).Dec()
	DefaultMetrics.StreamDurationSeconds.WithLabelValues(string(endpoint), status).Observe(elapsed.Seconds())
}

// RecordClientDisconnect counts a consumer disconnect.
func RecordClientDisconnect(endpoint Endpoint) {
	if DefaultMetrics == nil {
		return
	}
	DefaultMetrics.ClientDisconnectsTotal.WithLabelValues(string(endpoint)).Inc()
}
