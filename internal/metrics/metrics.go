// Package metrics exposes the prometheus collectors of the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP Metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameHTTPRequestsTotal,
			Help: HelpTextHTTPRequestsTotal,
		},
		[]string{LabelMethod, LabelPath, LabelStatus},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    MetricNameHTTPRequestDuration,
			Help:    HelpTextHTTPRequestDuration,
			Buckets: HTTPLatencyBuckets,
		},
		[]string{LabelMethod, LabelPath},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: MetricNameHTTPRequestsInFlight,
			Help: HelpTextHTTPRequestsInFlight,
		},
	)
)

// Unbox Metrics
var (
	UnboxesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameUnboxesTotal,
			Help: HelpTextUnboxesTotal,
		},
		[]string{LabelRarity},
	)

	UnboxPersistFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameUnboxPersistFailures,
			Help: HelpTextUnboxPersistFailures,
		},
		[]string{LabelStage},
	)

	UnboxesRateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: MetricNameUnboxesRateLimited,
			Help: HelpTextUnboxesRateLimited,
		},
	)
)
