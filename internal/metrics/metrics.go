// Package metrics holds the service's prometheus collectors. They register
// with the default registry, which the /metrics route serves.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// SheetTransitions counts lifecycle events by the status entered
	// (DRAFT on create, PENDING_SIGNATURES, COMPLETED).
	SheetTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "splitsheets",
		Name:      "sheet_transitions_total",
		Help:      "Split sheet lifecycle transitions by target status.",
	}, []string{"status"})

	// Signatures counts recorded collaborator signatures.
	Signatures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "splitsheets",
		Name:      "signatures_total",
		Help:      "Collaborator signatures recorded.",
	})

	// Notifications counts outbox events by kind and outcome
	// (enqueued, sent, retry, failed).
	Notifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "splitsheets",
		Name:      "notifications_total",
		Help:      "Notification outbox events by kind and outcome.",
	}, []string{"kind", "outcome"})
)

func init() {
	prometheus.MustRegister(SheetTransitions, Signatures, Notifications)
}
