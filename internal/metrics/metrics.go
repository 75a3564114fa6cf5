// Package metrics registers the Prometheus collectors for the service and
// serves them over promhttp.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles the service collectors on a dedicated Prometheus
// registry so tests can construct isolated instances.
type Registry struct {
	reg *prometheus.Registry

	CompileDuration  *prometheus.HistogramVec
	CompileIssues    *prometheus.CounterVec
	Validations      *prometheus.CounterVec
	CacheLookups     *prometheus.CounterVec
	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
	StoreFailures    prometheus.Counter
	ActiveStrategies prometheus.Gauge
}

// New creates and registers all collectors.
func New() *Registry {
	r := &Registry{reg: prometheus.NewRegistry()}

	r.CompileDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "stratdeck",
		Name:      "compile_duration_seconds",
		Help:      "Strategy compile latency.",
		Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"status_hint"})

	r.CompileIssues = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stratdeck",
		Name:      "compile_issues_total",
		Help:      "Issues produced by compilation, by severity.",
	}, []string{"severity"})

	r.Validations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stratdeck",
		Name:      "slot_validations_total",
		Help:      "Slot validation passes, by outcome.",
	}, []string{"outcome"})

	r.CacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stratdeck",
		Name:      "compile_cache_lookups_total",
		Help:      "Compile cache lookups, by result.",
	}, []string{"result"})

	r.HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stratdeck",
		Name:      "http_requests_total",
		Help:      "HTTP requests, by route and status class.",
	}, []string{"route", "method", "status"})

	r.HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "stratdeck",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency, by route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})

	r.StoreFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "stratdeck",
		Name:      "store_failures_total",
		Help:      "Storage operations that returned a non-business error.",
	})

	r.ActiveStrategies = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "stratdeck",
		Name:      "active_strategies",
		Help:      "Strategies currently in running status.",
	})

	r.reg.MustRegister(
		r.CompileDuration, r.CompileIssues, r.Validations, r.CacheLookups,
		r.HTTPRequests, r.HTTPDuration, r.StoreFailures, r.ActiveStrategies,
	)
	return r
}

// Gatherer exposes the underlying registry for tests.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// Handler serves the /metrics endpoint for this registry.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
