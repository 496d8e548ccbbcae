// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits counts live cache entries served, per region.
	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "discovarr",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Number of cache hits per region",
	}, []string{"region"})

	// CacheMisses counts lookups that required an upstream compute, per region.
	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "discovarr",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Number of cache misses per region",
	}, []string{"region"})

	// UpstreamRequests counts TMDB API calls by endpoint and outcome.
	UpstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "discovarr",
		Subsystem: "tmdb",
		Name:      "requests_total",
		Help:      "Number of upstream TMDB requests by endpoint and status",
	}, []string{"endpoint", "status"})

	// UpstreamDuration observes TMDB request latency by endpoint.
	UpstreamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "discovarr",
		Subsystem: "tmdb",
		Name:      "request_duration_seconds",
		Help:      "Upstream TMDB request duration by endpoint",
		Buckets:   prometheus.DefBuckets,
	}, []string{"endpoint"})
)
