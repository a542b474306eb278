// AccessMate - Accessible Place Recommendations
// Copyright 2026 TudorG03
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/TudorG03/accessmate-sub003

// Package metrics provides Prometheus instrumentation for the
// recommendation pipeline: API latency, cache efficiency, provider
// health, and feedback throughput.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of in-flight API requests",
		},
	)

	// Recommendation Cache Metrics
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recommendation_cache_hits_total",
			Help: "Total number of recommendation cache hits",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recommendation_cache_misses_total",
			Help: "Total number of recommendation cache misses",
		},
	)

	CacheStaleServed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recommendation_cache_stale_served_total",
			Help: "Total number of expired entries served because the provider was unavailable",
		},
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommendation_cache_evictions_total",
			Help: "Total number of cache evictions",
		},
		[]string{"reason"}, // "expired", "capacity", "invalidated"
	)

	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "recommendation_cache_entries",
			Help: "Current number of cached recommendation entries",
		},
	)

	CacheFlightCollapses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recommendation_cache_flight_collapses_total",
			Help: "Total number of concurrent misses collapsed into an in-flight computation",
		},
	)

	// Recommendation Pipeline Metrics
	RecommendationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recommendation_duration_seconds",
			Help:    "End-to-end recommendation computation duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"source"}, // "cache", "computed", "stale"
	)

	CandidatesGathered = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recommendation_candidates_gathered",
			Help:    "Number of candidates gathered per recommendation request",
			Buckets: []float64{0, 5, 10, 25, 50, 100, 250, 500},
		},
	)

	// Place Provider Metrics
	ProviderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_requests_total",
			Help: "Total number of place provider requests",
		},
		[]string{"outcome"}, // "success", "error", "timeout", "rate_limited"
	)

	ProviderRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "provider_request_duration_seconds",
			Help:    "Place provider request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	ProviderBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "provider_breaker_state",
			Help: "Provider circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)

	// Feedback Metrics
	FeedbackRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedback_recorded_total",
			Help: "Total number of feedback events recorded",
		},
		[]string{"type"}, // "visit", "rating", "report"
	)

	FeedbackInvalidations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feedback_invalidations_total",
			Help: "Total number of cache invalidations triggered by feedback",
		},
	)

	ProfileUpdates = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feedback_profile_updates_total",
			Help: "Total number of user preference profile updates",
		},
	)
)

// RecordAPIRequest records metrics for an API request.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest increments or decrements the active request gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordProviderRequest records a place provider request outcome.
func RecordProviderRequest(outcome string, duration time.Duration) {
	ProviderRequests.WithLabelValues(outcome).Inc()
	ProviderRequestDuration.Observe(duration.Seconds())
}

// RecordRecommendation records an end-to-end recommendation computation.
func RecordRecommendation(source string, duration time.Duration) {
	RecommendationDuration.WithLabelValues(source).Observe(duration.Seconds())
}
