// Package telemetry exposes Prometheus metrics for the server.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the collectors registered by the server.
type Metrics struct {
	// HTTPRequests counts handled requests by method and status class.
	HTTPRequests *prometheus.CounterVec
	// VisitsLogged counts visits recorded through the analytics service.
	VisitsLogged prometheus.Counter
	// ActivityEntries counts activity-log rows appended.
	ActivityEntries prometheus.Counter
}

// New registers the application collectors on reg and returns them.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "driverhub_http_requests_total",
			Help: "Handled HTTP requests by method and status class.",
		}, []string{"method", "class"}),
		VisitsLogged: factory.NewCounter(prometheus.CounterOpts{
			Name: "driverhub_visits_total",
			Help: "Visits recorded through the analytics service.",
		}),
		ActivityEntries: factory.NewCounter(prometheus.CounterOpts{
			Name: "driverhub_activity_entries_total",
			Help: "Activity log entries appended.",
		}),
	}
}
