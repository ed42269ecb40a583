package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// CacheRequests counts read-through lookups by backend and result (hit, miss, error).
	CacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pos",
		Subsystem: "cache",
		Name:      "requests_total",
		Help:      "Read-through cache lookups.",
	}, []string{"backend", "result"})

	CacheInvalidations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pos",
		Subsystem: "cache",
		Name:      "invalidations_total",
		Help:      "Cache invalidations by kind (key, prefix).",
	}, []string{"backend", "kind"})

	// TableTransitions counts Reserve/Release attempts by outcome (applied, rejected).
	TableTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pos",
		Subsystem: "table",
		Name:      "transitions_total",
		Help:      "Table state transition attempts.",
	}, []string{"action", "outcome"})

	OrderTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pos",
		Subsystem: "order",
		Name:      "transitions_total",
		Help:      "Order status changes by target status.",
	}, []string{"status"})

	Payments = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pos",
		Subsystem: "payment",
		Name:      "operations_total",
		Help:      "Payment operations by kind and outcome.",
	}, []string{"operation", "outcome"})

	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pos",
		Subsystem: "events",
		Name:      "published_total",
		Help:      "Domain events handed to the publisher, by outcome.",
	}, []string{"type", "outcome"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pos",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route pattern and status code.",
	}, []string{"method", "route", "code"})
)

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
