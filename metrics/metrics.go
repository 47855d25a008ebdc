// Package metrics exposes Prometheus counters for the redirect path.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gaslink"

// Metrics is safe to use as a nil pointer; every recorder is then a no-op.
type Metrics struct {
	registry *prometheus.Registry

	resolutions  *prometheus.CounterVec
	cacheLookups *prometheus.CounterVec
	cacheWrites  *prometheus.CounterVec
	usageTasks   *prometheus.CounterVec
	usageQueued  *prometheus.CounterVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		resolutions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolutions_total",
			Help:      "Redirect requests by outcome.",
		}, []string{"outcome"}),
		cacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Cache reads by result (hit, miss, error).",
		}, []string{"result"}),
		cacheWrites: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_writes_total",
			Help:      "Cache writes by operation and result.",
		}, []string{"op", "result"}),
		usageTasks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "usage_tasks_total",
			Help:      "Completed usage tasks by task and result.",
		}, []string{"task", "result"}),
		usageQueued: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "usage_submissions_total",
			Help:      "Usage task submissions by path (queued, overflow, rejected).",
		}, []string{"path"}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Resolution(outcome string) {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) CacheLookup(result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) CacheWrite(op string, err error) {
	if m == nil {
		return
	}
	m.cacheWrites.WithLabelValues(op, result(err)).Inc()
}

func (m *Metrics) UsageTask(task string, err error) {
	if m == nil {
		return
	}
	m.usageTasks.WithLabelValues(task, result(err)).Inc()
}

func (m *Metrics) UsageSubmission(path string) {
	if m == nil {
		return
	}
	m.usageQueued.WithLabelValues(path).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
