// Copyright (c) 2026 bodhi contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "bodhi"

// Metrics holds the request- and inference-level Prometheus series
// exposed at /metrics.
type Metrics struct {
	RequestsTotal     *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec
	ActiveStreams      prometheus.Gauge
	DownloadsInFlight  prometheus.Gauge
	LlamaServerRestarts prometheus.Counter
}

// NewMetrics registers bodhi's metrics against the default registerer.
func NewMetrics() *Metrics {
	return &Metrics{
		RequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "status"}),
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
		}, []string{"route"}),
		ActiveStreams: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "active_sse_streams",
			Help:      "Number of chat-completion SSE streams currently open.",
		}),
		DownloadsInFlight: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "downloads_in_flight",
			Help:      "Number of download requests currently InProgress.",
		}),
		LlamaServerRestarts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "llama_server_restarts_total",
			Help:      "Number of times the shared llama-server subprocess was reloaded.",
		}),
	}
}
