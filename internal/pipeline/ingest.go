package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/marketpulse/marketpulse/internal/crawl"
	"github.com/marketpulse/marketpulse/internal/parser"
	"github.com/marketpulse/marketpulse/internal/store"
	"github.com/marketpulse/marketpulse/internal/types"
)

// Ingestor drives the crawl stage: it walks seed URLs, parses the
// article pages the crawler yields, and writes InArticle rows.
type Ingestor struct {
	crawler *crawl.Crawler
	parser  *parser.ArticleParser
	store   store.Store
	logger  *slog.Logger
}

func NewIngestor(crawler *crawl.Crawler, articleParser *parser.ArticleParser, st store.Store, logger *slog.Logger) *Ingestor {
	return &Ingestor{
		crawler: crawler,
		parser:  articleParser,
		store:   st,
		logger:  logger.With("component", "ingestor"),
	}
}

// Run crawls the seeds and persists every parsed article. Parse and
// store failures are collected per record; the crawl keeps going.
func (g *Ingestor) Run(ctx context.Context, seeds []string, baseYmd string) types.BatchSummary {
	var summary types.BatchSummary
	batchID := uuid.NewString()

	for page := range g.crawler.DiscoverPages(ctx, seeds) {
		art, err := g.parser.Parse(page.Resp)
		if err != nil {
			summary.Failed++
			summary.Errors = append(summary.Errors, &types.StageError{Stage: "ingest", RecordID: page.URL, Err: err})
			continue
		}

		rec := &types.InArticle{
			NewsID:        NewsIDFor(art.URL),
			Title:         art.Title,
			Content:       art.Content,
			URL:           art.URL,
			BaseYmd:       baseYmd,
			IngestBatchID: batchID,
			PublishDt:     art.PublishedAt,
		}
		if rec.PublishDt.IsZero() {
			rec.PublishDt = time.Now().UTC()
		}

		err = g.store.InsertInArticle(ctx, rec)
		switch {
		case errors.Is(err, types.ErrDuplicate):
			summary.Skipped++
		case err != nil:
			summary.Failed++
			summary.Errors = append(summary.Errors, &types.StageError{Stage: "ingest", RecordID: rec.NewsID, Err: err})
		default:
			summary.Processed++
		}
	}

	g.logger.Info("ingest complete",
		"batch_id", batchID,
		"stored", summary.Processed,
		"duplicates", summary.Skipped,
		"failed", summary.Failed,
	)
	return summary
}

// NewsIDFor derives a stable article identifier from its canonical URL,
// so re-crawling the same page maps to the same row.
func NewsIDFor(rawURL string) string {
	canonical := crawl.Canonicalize(rawURL)
	if canonical == "" {
		canonical = rawURL
	}
	sum := sha256.Sum256([]byte(canonical))
	return fmt.Sprintf("news-%s", hex.EncodeToString(sum[:])[:20])
}
