// Package metrics exposes crawl counters on a dedicated Prometheus registry.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/Carbocoon/SteelPriceCrawler/walker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles Prometheus collectors for the crawler. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	Registry         *prometheus.Registry
	PagesTotal       *prometheus.CounterVec
	RecordsTotal     *prometheus.CounterVec
	RowsSkippedTotal *prometheus.CounterVec
	FallbacksTotal   *prometheus.CounterVec
	LayoutDriftTotal *prometheus.CounterVec
	StopsTotal       *prometheus.CounterVec
	CrawlDuration    *prometheus.HistogramVec
	ActiveCrawls     prometheus.Gauge
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	pages := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "steelcrawl_pages_extracted_total",
			Help: "Pages extracted, by site.",
		},
		[]string{"site"},
	)
	records := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "steelcrawl_records_total",
			Help: "Records extracted, by site.",
		},
		[]string{"site"},
	)
	skipped := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "steelcrawl_rows_skipped_total",
			Help: "Rows skipped by the mapper, by site and reason.",
		},
		[]string{"site", "reason"},
	)
	fallbacks := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "steelcrawl_text_fallbacks_total",
			Help: "Pages where no table was located and the text scanner ran.",
		},
		[]string{"site"},
	)
	drift := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "steelcrawl_layout_drift_total",
			Help: "Consecutive pages whose DOM structure differed beyond the threshold.",
		},
		[]string{"site"},
	)
	stops := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "steelcrawl_walks_total",
			Help: "Finished walks, by site and stop reason.",
		},
		[]string{"site", "stop_reason"},
	)
	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "steelcrawl_crawl_duration_seconds",
			Help:    "Wall time of a crawl job.",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1200, 3600},
		},
		[]string{"site"},
	)
	active := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "steelcrawl_active_crawls",
			Help: "Crawl jobs currently running.",
		},
	)

	registry.MustRegister(pages, records, skipped, fallbacks, drift, stops, duration, active)

	return &Metrics{
		Registry:         registry,
		PagesTotal:       pages,
		RecordsTotal:     records,
		RowsSkippedTotal: skipped,
		FallbacksTotal:   fallbacks,
		LayoutDriftTotal: drift,
		StopsTotal:       stops,
		CrawlDuration:    duration,
		ActiveCrawls:     active,
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// CrawlStarted increments the active gauge.
func (m *Metrics) CrawlStarted() {
	if m == nil {
		return
	}
	m.ActiveCrawls.Inc()
}

// CrawlFinished decrements the active gauge and records the duration.
func (m *Metrics) CrawlFinished(site string, d time.Duration) {
	if m == nil {
		return
	}
	m.ActiveCrawls.Dec()
	m.CrawlDuration.WithLabelValues(site).Observe(d.Seconds())
}

// Emit implements walker.Sink.
func (m *Metrics) Emit(_ context.Context, ev walker.Event) {
	if m == nil {
		return
	}
	switch ev.Kind {
	case walker.EventPageExtracted:
		m.PagesTotal.WithLabelValues(ev.Site).Inc()
		m.RecordsTotal.WithLabelValues(ev.Site).Add(float64(ev.Records))
	case walker.EventRowSkipped:
		m.RowsSkippedTotal.WithLabelValues(ev.Site, ev.Reason).Inc()
	case walker.EventTextFallback:
		m.FallbacksTotal.WithLabelValues(ev.Site).Inc()
	case walker.EventLayoutDrift:
		m.LayoutDriftTotal.WithLabelValues(ev.Site).Inc()
	case walker.EventStopped, walker.EventInterrupted:
		m.StopsTotal.WithLabelValues(ev.Site, string(ev.Stop)).Inc()
	}
}
