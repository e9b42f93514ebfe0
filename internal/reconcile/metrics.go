package reconcile

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/uebliche/dockbridge/internal/metrics"
)

const component = "reconciler"

var (
	passesTotal = metrics.MustRegisterCounterVec(component, "passes_total",
		"Reconciliation passes by result (applied, skipped, dropped).", "result")

	mutationsTotal = metrics.MustRegisterCounterVec(component, "mutations_total",
		"Registry changes by status (registered, updated, unregistered, apply_failed).", "status")

	capabilityUnavailableTotal = metrics.MustRegisterCounter(component, "capability_unavailable_total",
		"Times the preferred connection order could not be changed.")

	matchedContainers = metrics.MustRegisterGauge(component, "matched_containers",
		"Containers returned by the last successful scan.")

	registeredServers = metrics.MustRegisterGauge(component, "registered_servers",
		"Servers registered after the last applied pass.")

	passDuration = metrics.MustRegisterHistogram(component, "pass_duration_seconds",
		"Duration of applied reconciliation passes.", prometheus.DefBuckets)
)
