package observability

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
)

// Metrics tracks operational counters across the crawl and pipeline
// stages.
type Metrics struct {
	// Crawl metrics
	PagesFetched    atomic.Int64
	FetchFailures   atomic.Int64
	ArticlesFound   atomic.Int64
	LinksEnqueued   atomic.Int64
	BytesDownloaded atomic.Int64

	// Pipeline metrics
	ArticlesIngested  atomic.Int64
	ArticlesProcessed atomic.Int64
	ArticlesSkipped   atomic.Int64
	ArticlesFailed    atomic.Int64
	MetricsCreated    atomic.Int64
	RcmdsGenerated    atomic.Int64

	// Runtime metrics
	ActiveWorkers atomic.Int32
	QueueDepth    atomic.Int64

	logger *slog.Logger
}

// NewMetrics creates a new Metrics instance.
func NewMetrics(logger *slog.Logger) *Metrics {
	return &Metrics{
		logger: logger.With("component", "metrics"),
	}
}

// ServeHTTP serves metrics in Prometheus text exposition format.
func (m *Metrics) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	metrics := []struct {
		name  string
		help  string
		value int64
	}{
		{"marketpulse_pages_fetched_total", "Total pages fetched", m.PagesFetched.Load()},
		{"marketpulse_fetch_failures_total", "Total fetch failures", m.FetchFailures.Load()},
		{"marketpulse_articles_found_total", "Total article pages identified", m.ArticlesFound.Load()},
		{"marketpulse_links_enqueued_total", "Total links enqueued", m.LinksEnqueued.Load()},
		{"marketpulse_bytes_downloaded_total", "Total bytes downloaded", m.BytesDownloaded.Load()},
		{"marketpulse_articles_ingested_total", "Total articles stored by ingestion", m.ArticlesIngested.Load()},
		{"marketpulse_articles_processed_total", "Total articles enriched", m.ArticlesProcessed.Load()},
		{"marketpulse_articles_skipped_total", "Total articles skipped as duplicates", m.ArticlesSkipped.Load()},
		{"marketpulse_articles_failed_total", "Total per-record failures", m.ArticlesFailed.Load()},
		{"marketpulse_calc_metrics_created_total", "Total metric rows written", m.MetricsCreated.Load()},
		{"marketpulse_rcmds_generated_total", "Total recommendation rows written", m.RcmdsGenerated.Load()},
		{"marketpulse_active_workers", "Currently active crawl workers", int64(m.ActiveWorkers.Load())},
		{"marketpulse_queue_depth", "Current frontier depth", m.QueueDepth.Load()},
	}

	for _, metric := range metrics {
		fmt.Fprintf(w, "# HELP %s %s\n", metric.name, metric.help)
		fmt.Fprintf(w, "# TYPE %s counter\n", metric.name)
		fmt.Fprintf(w, "%s %d\n", metric.name, metric.value)
	}
}

// StartServer starts the metrics HTTP server.
func (m *Metrics) StartServer(port int, path string) error {
	mux := http.NewServeMux()
	mux.Handle(path, m)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	addr := fmt.Sprintf(":%d", port)
	m.logger.Info("metrics server starting", "addr", addr, "path", path)

	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			m.logger.Error("metrics server error", "error", err)
		}
	}()

	return nil
}

// ObserveBatch folds a stage summary into the counters.
func (m *Metrics) ObserveBatch(processed, skipped, failed, created int) {
	m.ArticlesProcessed.Add(int64(processed))
	m.ArticlesSkipped.Add(int64(skipped))
	m.ArticlesFailed.Add(int64(failed))
	m.MetricsCreated.Add(int64(created))
}

// Snapshot returns all metrics as a map.
func (m *Metrics) Snapshot() map[string]int64 {
	return map[string]int64{
		"pages_fetched":      m.PagesFetched.Load(),
		"fetch_failures":     m.FetchFailures.Load(),
		"articles_found":     m.ArticlesFound.Load(),
		"links_enqueued":     m.LinksEnqueued.Load(),
		"bytes_downloaded":   m.BytesDownloaded.Load(),
		"articles_ingested":  m.ArticlesIngested.Load(),
		"articles_processed": m.ArticlesProcessed.Load(),
		"articles_skipped":   m.ArticlesSkipped.Load(),
		"articles_failed":    m.ArticlesFailed.Load(),
		"calc_metrics":       m.MetricsCreated.Load(),
		"rcmds_generated":    m.RcmdsGenerated.Load(),
		"active_workers":     int64(m.ActiveWorkers.Load()),
		"queue_depth":        m.QueueDepth.Load(),
	}
}
