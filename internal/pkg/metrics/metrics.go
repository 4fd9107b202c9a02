package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's prometheus collectors on a private registry
type Metrics struct {
	registry *prometheus.Registry

	IDsAllocated        *prometheus.CounterVec
	AllocationConflicts prometheus.Counter
	AllocationFailures  *prometheus.CounterVec
	Renewals            prometheus.Counter
	StatusRefreshes     *prometheus.CounterVec
	Uploads             *prometheus.CounterVec
}

// New creates and registers all collectors
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		IDsAllocated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "membership_ids_allocated_total",
			Help: "Membership identifiers issued, by year.",
		}, []string{"year"}),
		AllocationConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "membership_id_allocation_conflicts_total",
			Help: "Inserts rejected because a concurrent writer took the identifier first.",
		}),
		AllocationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "membership_id_allocation_failures_total",
			Help: "Registrations that surfaced an allocation error, by reason.",
		}, []string{"reason"}),
		Renewals: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "membership_renewals_total",
			Help: "Membership intervals appended by renewal.",
		}),
		StatusRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "member_status_changes_total",
			Help: "Persisted status caches rewritten after recomputation, by new status.",
		}, []string{"status"}),
		Uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "member_asset_uploads_total",
			Help: "Stored logo and signature files, by kind.",
		}, []string{"kind"}),
	}

	reg.MustRegister(
		m.IDsAllocated,
		m.AllocationConflicts,
		m.AllocationFailures,
		m.Renewals,
		m.StatusRefreshes,
		m.Uploads,
	)
	return m
}

// Registry exposes the underlying registry (tests gather from it)
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
