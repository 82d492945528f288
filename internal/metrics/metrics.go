// Package metrics holds the prometheus collectors for token and query activity.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "d365_odata"

var (
	// TokenAcquisitionsTotal counts token requests sent to the identity provider.
	TokenAcquisitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "token_acquisitions_total",
		Help:      "Count of token requests sent to the identity provider.",
	}, []string{"auth_type", "status"})

	// QueryAttemptsTotal counts HTTP attempts against the data endpoint.
	QueryAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "query_attempts_total",
		Help:      "Count of HTTP attempts against the D365 data endpoint.",
	}, []string{"product", "outcome"})

	// QueryRetriesTotal counts retries scheduled after transient failures.
	QueryRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "query_retries_total",
		Help:      "Count of retries scheduled after transient failures.",
	}, []string{"product", "reason"})

	// QueryDuration observes end-to-end tool query latency.
	QueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "query_duration_seconds",
		Help:      "Time taken for a query invocation including pagination and retries.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
	}, []string{"operation", "status"})
)
