package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the scraper.
type Metrics struct {
	Registry          *prometheus.Registry
	RequestsTotal     *prometheus.CounterVec
	RequestDuration   prometheus.Histogram
	ItemsScrapedTotal *prometheus.CounterVec
	DuplicatesTotal   *prometheus.CounterVec
	ErrorsTotal       *prometheus.CounterVec
	RunsTotal         *prometheus.CounterVec
	RunDuration       prometheus.Histogram
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
			Help:    "HTTP request latency for scraper requests.",
			Buckets: prometheus.DefBuckets,
		},
	)
	itemsScraped := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_items_scraped_total",
			Help: "Total number of records collected, by kind.",
		},
		[]string{"kind"},
	)
	duplicates := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_duplicates_total",
			Help: "Total number of records dropped as duplicates, by kind.",
		},
		[]string{"kind"},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_errors_total",
			Help: "Total number of scraper errors by type.",
		},
		[]string{"error_type"},
	)
	runs := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_runs_total",
			Help: "Total number of scrape runs by outcome.",
		},
		[]string{"outcome"},
	)
	runDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scraper_run_duration_seconds",
			Help:    "Wall time of complete scrape runs.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
	)

	registry.MustRegister(requests, requestDuration, itemsScraped, duplicates, errorsTotal, runs, runDuration)

	return &Metrics{
		Registry:          registry,
		RequestsTotal:     requests,
		RequestDuration:   requestDuration,
		ItemsScrapedTotal: itemsScraped,
		DuplicatesTotal:   duplicates,
		ErrorsTotal:       errorsTotal,
		RunsTotal:         runs,
		RunDuration:       runDuration,
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

// AddItems adds n collected records of a kind.
func (m *Metrics) AddItems(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ItemsScrapedTotal.WithLabelValues(kind).Add(float64(n))
}

// AddDuplicates adds n dropped duplicates of a kind.
func (m *Metrics) AddDuplicates(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.DuplicatesTotal.WithLabelValues(kind).Add(float64(n))
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// ObserveRun records a finished run.
func (m *Metrics) ObserveRun(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(outcome).Inc()
	m.RunDuration.Observe(d.Seconds())
}
