// Package metrics exposes Prometheus collectors for the crawler.
package metrics

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	crawlerPagesTotal       *prometheus.CounterVec
	crawlerBytesTotal       *prometheus.CounterVec
	crawlerRunsTotal        *prometheus.CounterVec
	crawlerActiveWorkers    prometheus.Gauge
	politenessDelaySeconds  *prometheus.HistogramVec
	documentsEmbeddedTotal  prometheus.Counter
	vectorUpsertsTotal      *prometheus.CounterVec
	ingestBatchFlushSeconds prometheus.Histogram
	documentsPublishedTotal prometheus.Counter
	documentsArchivedTotal  prometheus.Counter
	storeRetryAttemptsTotal prometheus.Counter

	once sync.Once
)

// Init registers the collectors. It is safe to call multiple times.
func Init() {
	once.Do(func() {
		crawlerPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taxcrawler_pages_total",
				Help: "Total pages handled, labeled by site and outcome.",
			},
			[]string{"site", "outcome"},
		)
		crawlerBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taxcrawler_bytes_total",
				Help: "Total bytes fetched, labeled by site.",
			},
			[]string{"site"},
		)
		crawlerRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taxcrawler_runs_total",
				Help: "Total crawl runs, labeled by final state.",
			},
			[]string{"state"},
		)
		crawlerActiveWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "taxcrawler_active_workers",
				Help: "Workers currently processing a task.",
			},
		)
		politenessDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "taxcrawler_politeness_delay_seconds",
				Help:    "Histogram of politeness gate wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
		)
		documentsEmbeddedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "taxcrawler_documents_embedded_total",
				Help: "Total document chunks embedded.",
			},
		)
		vectorUpsertsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taxcrawler_vector_upserts_total",
				Help: "Total vector store upsert calls, labeled by outcome.",
			},
			[]string{"outcome"},
		)
		ingestBatchFlushSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "taxcrawler_ingest_batch_flush_seconds",
				Help:    "Histogram of ingest batch flush durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
		)
		documentsPublishedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "taxcrawler_documents_published_total",
				Help: "Total ingestion events published.",
			},
		)
		documentsArchivedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "taxcrawler_documents_archived_total",
				Help: "Total raw page snapshots archived.",
			},
		)
		storeRetryAttemptsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "taxcrawler_store_retry_attempts_total",
				Help: "Total retried vector store writes.",
			},
		)
	})
}

// SanitizeSite extracts a lowercase hostname label, or "unknown".
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns the http.Handler exposing the collectors.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveCrawlPage records one handled page.
func ObserveCrawlPage(site, outcome string, bytesFetched int) {
	Init()
	s := SanitizeSite(site)
	crawlerPagesTotal.WithLabelValues(s, outcome).Inc()
	if bytesFetched > 0 {
		crawlerBytesTotal.WithLabelValues(s).Add(float64(bytesFetched))
	}
}

// ObserveRun records a finished run.
func ObserveRun(state string) {
	Init()
	crawlerRunsTotal.WithLabelValues(state).Inc()
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	Init()
	crawlerActiveWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	Init()
	crawlerActiveWorkers.Dec()
}

// ObservePolitenessDelay records how long a task waited at the gate.
func ObservePolitenessDelay(domain string, d time.Duration) {
	Init()
	if domain == "" {
		domain = "unknown"
	}
	politenessDelaySeconds.WithLabelValues(domain).Observe(d.Seconds())
}

// AddDocumentsEmbedded records embedded chunks.
func AddDocumentsEmbedded(n int) {
	Init()
	documentsEmbeddedTotal.Add(float64(n))
}

// ObserveVectorUpsert records one upsert call.
func ObserveVectorUpsert(outcome string) {
	Init()
	vectorUpsertsTotal.WithLabelValues(outcome).Inc()
}

// ObserveBatchFlush records an ingest flush duration.
func ObserveBatchFlush(d time.Duration) {
	Init()
	ingestBatchFlushSeconds.Observe(d.Seconds())
}

// IncDocumentsPublished records one published ingestion event.
func IncDocumentsPublished() {
	Init()
	documentsPublishedTotal.Inc()
}

// IncDocumentsArchived records one archived raw page.
func IncDocumentsArchived() {
	Init()
	documentsArchivedTotal.Inc()
}

// IncStoreRetry records one retried store write.
func IncStoreRetry() {
	Init()
	storeRetryAttemptsTotal.Inc()
}
