package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for finplan.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	externalErrors  *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	projections     *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. A private registry lets tests call NewMetrics
// repeatedly without duplicate-collector panics.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "finplan_operation_duration_seconds",
				Help:    "Duration of operations (projection runs, plan loads).",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finplan_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finplan_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finplan_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		projections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finplan_projections_total",
				Help: "Total projection runs by outcome.",
			},
			[]string{"outcome"},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrProjection counts a projection run. Outcome is "funded", "shortfall" or "error".
func (m *Metrics) IncrProjection(outcome string) {
	m.projections.WithLabelValues(outcome).Inc()
}

// Stats is a point-in-time view of the counters, served by GET /v1/stats.
type Stats struct {
	Projections      float64  `json:"projections"`
	FundedRuns       float64  `json:"funded_runs"`
	ShortfallRuns    float64  `json:"shortfall_runs"`
	FailedRuns       float64  `json:"failed_runs"`
	CacheHits        float64  `json:"cache_hits"`
	CacheMisses      float64  `json:"cache_misses"`
	CacheHitRate     float64  `json:"cache_hit_rate"`
	ExternalErrors   float64  `json:"external_errors"`
	ShortfallRate    float64  `json:"shortfall_rate"`
	CollectedAt      string   `json:"collected_at"`
	CacheName        string   `json:"cache_name"`
	ExternalServices []string `json:"external_services,omitempty"`
}

// Snapshot reads the current counter values for the given cache and external services.
func (m *Metrics) Snapshot(cacheName string, services ...string) Stats {
	s := Stats{
		FundedRuns:       getCounterValue(m.projections, "funded"),
		ShortfallRuns:    getCounterValue(m.projections, "shortfall"),
		FailedRuns:       getCounterValue(m.projections, "error"),
		CacheHits:        getCounterValue(m.cacheHits, cacheName),
		CacheMisses:      getCounterValue(m.cacheMisses, cacheName),
		CollectedAt:      time.Now().UTC().Format(time.RFC3339),
		CacheName:        cacheName,
		ExternalServices: services,
	}
	for _, svc := range services {
		s.ExternalErrors += getCounterValue(m.externalErrors, svc)
	}
	s.Projections = s.FundedRuns + s.ShortfallRuns + s.FailedRuns
	if lookups := s.CacheHits + s.CacheMisses; lookups > 0 {
		s.CacheHitRate = s.CacheHits / lookups
	}
	if completed := s.FundedRuns + s.ShortfallRuns; completed > 0 {
		s.ShortfallRate = s.ShortfallRuns / completed
	}
	return s
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
