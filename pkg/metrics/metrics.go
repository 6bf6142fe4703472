// Package metrics registers the admission pipeline's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// IAMFetches counts upstream IAM refreshes by cache and outcome (ok, error, empty, stale).
	IAMFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bldgate_iam_fetch_total",
		Help: "IAM refreshes by cache and outcome.",
	}, []string{"cache", "outcome"})

	IAMFetchSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bldgate_iam_fetch_seconds",
		Help:    "Latency of IAM refreshes.",
		Buckets: prometheus.DefBuckets,
	}, []string{"cache"})

	// Admissions counts gate outcomes: unprotected, skipped, granted, denied, unauthenticated, unavailable.
	Admissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bldgate_admission_total",
		Help: "Admission gate outcomes.",
	}, []string{"outcome"})

	TenantResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bldgate_tenant_resolution_total",
		Help: "Tenant resolution outcomes.",
	}, []string{"outcome"})
)
