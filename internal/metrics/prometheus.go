// Package metrics exposes the service's prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts HTTP requests by outcome.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// RequestDuration observes HTTP request latency.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// ReadingsScored counts successfully scored readings.
	ReadingsScored = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "readings_scored_total",
			Help: "Total number of sensor readings scored",
		},
	)

	// AnomaliesDetected counts readings classified as ALERT.
	AnomaliesDetected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "anomalies_detected_total",
			Help: "Total number of readings classified as anomalous",
		},
	)

	// ValidationFailures counts rejected scoring requests.
	ValidationFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "validation_failures_total",
			Help: "Total number of scoring requests rejected by validation",
		},
	)

	// ScoringLatency observes model inference latency.
	ScoringLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scoring_latency_seconds",
			Help:    "Model scoring latency in seconds",
			Buckets: []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .025, .05, .1},
		},
	)

	// ModelLoaded reports whether the service holds a ready model.
	ModelLoaded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "model_loaded",
			Help: "1 when the anomaly model is loaded and ready",
		},
	)

	// LastScore reports the most recent raw anomaly score.
	LastScore = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "last_anomaly_score",
			Help: "Raw anomaly score of the most recently scored reading",
		},
	)
)
