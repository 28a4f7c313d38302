// Package metrics holds the prometheus collectors shared by the synchronizer
// and the reference backend.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values.
const (
	OutcomeOK     = "ok"
	OutcomeError  = "error"
	OutcomeCached = "cached"
)

var (
	// ReplyFetches counts reply bucket loads by outcome (ok, error, cached).
	ReplyFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "forumsync",
		Subsystem: "thread",
		Name:      "reply_fetches_total",
		Help:      "Reply bucket loads by outcome.",
	}, []string{"outcome"})

	// FetchesShared counts callers that joined an in-flight fetch instead of issuing one.
	FetchesShared = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "forumsync",
		Subsystem: "thread",
		Name:      "fetches_shared_total",
		Help:      "Reply fetches served by an already in-flight request.",
	})

	// Mutations counts coordinator operations by op and outcome.
	Mutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "forumsync",
		Subsystem: "thread",
		Name:      "mutations_total",
		Help:      "Comment mutations by operation and outcome.",
	}, []string{"op", "outcome"})

	// ReactionRollbacks counts optimistic reaction toggles reverted after a failure.
	ReactionRollbacks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "forumsync",
		Subsystem: "thread",
		Name:      "reaction_rollbacks_total",
		Help:      "Optimistic reaction toggles reverted after a failed call.",
	})

	// HTTPRequests counts backend requests by route template, method and status.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "forumsync",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Backend HTTP requests by route, method and status.",
	}, []string{"route", "method", "status"})

	// HTTPDuration observes backend request latency by route template.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "forumsync",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Backend HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})

	// ReportsQueued counts reports taken off the moderation queue by target type.
	ReportsQueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "forumsync",
		Subsystem: "moderation",
		Name:      "reports_queued_total",
		Help:      "Reports consumed from the moderation queue.",
	}, []string{"target_type"})
)
