package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the scraper.
type Metrics struct {
	Registry        *prometheus.Registry
	RequestsTotal   *prometheus.CounterVec
	RequestDuration prometheus.Histogram
	DropsResolved   prometheus.Counter
	DropsUnresolved prometheus.Counter
	RetriesTotal    prometheus.Counter
	ErrorsTotal     *prometheus.CounterVec
	MonstersTotal   *prometheus.CounterVec
	CacheHitsTotal  prometheus.Counter
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_requests_total",
			Help: "Total HTTP requests issued by the scraper.",
		},
		[]string{"phase"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scraper_request_duration_seconds",
			Help:    "HTTP request latency for monster pages.",
			Buckets: prometheus.DefBuckets,
		},
	)
	resolved := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_drops_resolved_total",
			Help: "Total number of drops resolved to an item id.",
		},
	)
	unresolved := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_drops_unresolved_total",
			Help: "Total number of drops left out because no item matched.",
		},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_retries_total",
			Help: "Total number of retry attempts.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_errors_total",
			Help: "Total number of scraper errors by type.",
		},
		[]string{"error_type"},
	)
	monsters := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_monsters_total",
			Help: "Monsters processed by outcome.",
		},
		[]string{"status"},
	)
	cacheHits := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_cache_hits_total",
			Help: "Monster pages served from the page cache.",
		},
	)

	registry.MustRegister(requests, requestDuration, resolved, unresolved, retries, errorsTotal, monsters, cacheHits)

	return &Metrics{
		Registry:        registry,
		RequestsTotal:   requests,
		RequestDuration: requestDuration,
		DropsResolved:   resolved,
		DropsUnresolved: unresolved,
		RetriesTotal:    retries,
		ErrorsTotal:     errorsTotal,
		MonstersTotal:   monsters,
		CacheHitsTotal:  cacheHits,
	}
}

// IncRequest increments the requests total counter.
func (m *Metrics) IncRequest(phase string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(phase).Inc()
}

// ObserveDuration records an HTTP request duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// AddDrops records the resolution outcome of one monster.
func (m *Metrics) AddDrops(resolved, unresolved int) {
	if m == nil {
		return
	}
	m.DropsResolved.Add(float64(resolved))
	m.DropsUnresolved.Add(float64(unresolved))
}

// IncRetries increments the retries counter.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// IncMonster counts a processed monster: "ok", "empty" or "failed".
func (m *Metrics) IncMonster(status string) {
	if m == nil {
		return
	}
	m.MonstersTotal.WithLabelValues(status).Inc()
}

// IncCacheHit increments the page cache hit counter.
func (m *Metrics) IncCacheHit() {
	if m == nil {
		return
	}
	m.CacheHitsTotal.Inc()
}
