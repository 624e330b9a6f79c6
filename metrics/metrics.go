// metrics/metrics.go
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gewnthar/pharmascrape/models"
)

// Collector holds the scrape metrics. A nil *Collector is valid and
// records nothing.
type Collector struct {
	gatherer prometheus.Gatherer

	sourceRuns     *prometheus.CounterVec
	records        *prometheus.CounterVec
	itemsFailed    *prometheus.CounterVec
	sourceDuration *prometheus.SummaryVec
	runDuration    prometheus.Summary
	lastRecords    *prometheus.GaugeVec
	lastSuccessTS  *prometheus.GaugeVec
	runsInProgress prometheus.Gauge
}

// New registers the metrics on a fresh registry.
func New() *Collector {
	return NewWithRegistry(prometheus.NewRegistry())
}

func NewWithRegistry(reg *prometheus.Registry) *Collector {
	c := &Collector{gatherer: reg}
	c.sourceRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pharmascrape",
		Name:      "source_runs_total",
		Help:      "Source fetches by terminal status",
	}, []string{"source", "status"})
	c.records = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pharmascrape",
		Name:      "records_total",
		Help:      "Standardized records produced per source",
	}, []string{"source"})
	c.itemsFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pharmascrape",
		Name:      "items_failed_total",
		Help:      "Locations dropped because their fetch or extraction failed",
	}, []string{"source"})
	c.sourceDuration = prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Namespace: "pharmascrape",
		Name:      "source_duration_seconds",
		Help:      "Time spent on one source",
	}, []string{"source"})
	c.runDuration = prometheus.NewSummary(prometheus.SummaryOpts{
		Namespace: "pharmascrape",
		Name:      "run_duration_seconds",
		Help:      "Time spent on a whole run",
	})
	c.lastRecords = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "pharmascrape",
		Name:      "last_run_records",
		Help:      "Records produced per source in the latest run",
	}, []string{"source"})
	c.lastSuccessTS = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "pharmascrape",
		Name:      "last_success_timestamp_seconds",
		Help:      "Unix time of the last successful fetch per source",
	}, []string{"source"})
	c.runsInProgress = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "pharmascrape",
		Name:      "runs_in_progress",
		Help:      "1 while a run is executing",
	})

	reg.MustRegister(
		c.sourceRuns, c.records, c.itemsFailed, c.sourceDuration,
		c.runDuration, c.lastRecords, c.lastSuccessTS, c.runsInProgress,
	)
	return c
}

// ObserveSource records one source's terminal result.
func (c *Collector) ObserveSource(r models.FetchResult) {
	if c == nil {
		return
	}
	c.sourceRuns.WithLabelValues(r.Source, string(r.Status)).Inc()
	c.records.WithLabelValues(r.Source).Add(float64(r.Count))
	c.itemsFailed.WithLabelValues(r.Source).Add(float64(r.ItemsFailed))
	c.sourceDuration.WithLabelValues(r.Source).Observe(float64(r.DurationMS) / 1000)
	c.lastRecords.WithLabelValues(r.Source).Set(float64(r.Count))
	if r.Status == models.StatusSucceeded {
		c.lastSuccessTS.WithLabelValues(r.Source).Set(float64(time.Now().Unix()))
	}
}

// RunStarted marks a run as executing and returns the func that ends it.
func (c *Collector) RunStarted() func() {
	if c == nil {
		return func() {}
	}
	start := time.Now()
	c.runsInProgress.Set(1)
	return func() {
		c.runsInProgress.Set(0)
		c.runDuration.Observe(time.Since(start).Seconds())
	}
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}
