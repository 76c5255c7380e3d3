package crawl

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/marketpulse/marketpulse/internal/classify"
	"github.com/marketpulse/marketpulse/internal/config"
)

// Article is a discovered article URL with its crawl depth.
type Article struct {
	URL   string
	Depth int
}

// ParallelCrawler is the worker-pool variant of Crawler. All frontier
// mutations go through the Frontier's single mutex, so the seen-once
// guarantee holds unchanged; discovery order is breadth-first per worker
// but interleaved across workers.
type ParallelCrawler struct {
	base    *Crawler
	workers int
	logger  *slog.Logger
}

// NewParallelCrawler creates a ParallelCrawler with cfg.Concurrency workers.
func NewParallelCrawler(cfg config.CrawlerConfig, classifier *classify.Classifier, fetcher Fetcher, logger *slog.Logger) *ParallelCrawler {
	workers := cfg.Concurrency
	if workers < 1 {
		workers = 1
	}
	return &ParallelCrawler{
		base:    NewCrawler(cfg, classifier, fetcher, logger),
		workers: workers,
		logger:  logger.With("component", "parallel_crawler"),
	}
}

// Stats returns the crawl counters.
func (p *ParallelCrawler) Stats() *Stats { return p.base.stats }

// Run crawls from the seeds with the worker pool and returns every
// discovered article, bounded by the configured article budget.
func (p *ParallelCrawler) Run(ctx context.Context, seeds []string) ([]Article, error) {
	frontier := NewFrontier()
	for _, seed := range seeds {
		if p.base.cfg.RespectRobots && !p.base.robots.IsAllowed(seed) {
			p.logger.Warn("seed blocked by robots.txt", "url", seed)
			continue
		}
		frontier.Push(seed, 0, "")
	}

	prefixes := seedPathPrefixes(seeds)

	var (
		mu       sync.Mutex
		articles []Article
		total    atomic.Int64
		inFlight atomic.Int64
	)
	maxTotal := int64(p.base.cfg.MaxTotal)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < p.workers; i++ {
		g.Go(func() error {
			for {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				if total.Load() >= maxTotal {
					return nil
				}

				entry := frontier.Pop()
				if entry == nil {
					// Idle: done only when no worker holds an entry that
					// could still push children.
					if inFlight.Load() == 0 {
						return nil
					}
					select {
					case <-gctx.Done():
						return gctx.Err()
					case <-time.After(25 * time.Millisecond):
					}
					continue
				}

				inFlight.Add(1)
				p.step(gctx, frontier, entry, prefixes, func(a Article) bool {
					n := total.Add(1)
					if n > maxTotal {
						return false
					}
					mu.Lock()
					articles = append(articles, a)
					mu.Unlock()
					return true
				})
				inFlight.Add(-1)
			}
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = nil // partial results on cancellation
	}
	return articles, err
}

// step processes one frontier entry: fetch, classify, record, expand.
func (p *ParallelCrawler) step(ctx context.Context, frontier *Frontier, entry *Entry, prefixes []string, record func(Article) bool) {
	c := p.base

	resp := c.fetchPage(ctx, entry)
	if resp == nil {
		return
	}

	doc, err := resp.Document()
	if err != nil {
		doc = nil
	}

	if c.classifier.ClassifyPage(entry.URL, doc) == classify.LabelArticle {
		c.stats.addArticle(domainOf(entry.URL))
		if !record(Article{URL: entry.URL, Depth: entry.Depth}) {
			return
		}
	}

	if entry.Depth >= c.cfg.MaxDepth || doc == nil {
		return
	}
	c.expand(frontier, entry, doc, prefixes)
}
