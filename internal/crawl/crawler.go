package crawl

import (
	"context"
	"iter"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/PuerkitoBio/goquery"

	"github.com/marketpulse/marketpulse/internal/classify"
	"github.com/marketpulse/marketpulse/internal/config"
	"github.com/marketpulse/marketpulse/internal/types"
)

// Fetcher is the interface the crawler fetches pages through.
type Fetcher interface {
	Fetch(ctx context.Context, req *types.Request) (*types.Response, error)
	Close() error
}

// ArticlePage is a fetched page the classifier labeled as an article.
type ArticlePage struct {
	URL     string
	Depth   int
	Referer string
	Resp    *types.Response
	Doc     *goquery.Document // nil when the body did not parse
}

// Stats tracks crawl counters.
type Stats struct {
	PagesFetched    atomic.Int64
	FetchFailures   atomic.Int64
	ArticlesFound   atomic.Int64
	LinksEnqueued   atomic.Int64
	LinksFiltered   atomic.Int64
	BytesDownloaded atomic.Int64

	mu        sync.Mutex
	perDomain map[string]int64
}

func newStats() *Stats {
	return &Stats{perDomain: make(map[string]int64)}
}

func (s *Stats) addArticle(domain string) {
	s.ArticlesFound.Add(1)
	s.mu.Lock()
	s.perDomain[domain]++
	s.mu.Unlock()
}

// PerDomain returns a copy of the per-domain article counts.
func (s *Stats) PerDomain() map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int64, len(s.perDomain))
	for k, v := range s.perDomain {
		out[k] = v
	}
	return out
}

// Snapshot returns the counters as a loggable map.
func (s *Stats) Snapshot() map[string]any {
	return map[string]any{
		"pages_fetched":    s.PagesFetched.Load(),
		"fetch_failures":   s.FetchFailures.Load(),
		"articles_found":   s.ArticlesFound.Load(),
		"links_enqueued":   s.LinksEnqueued.Load(),
		"links_filtered":   s.LinksFiltered.Load(),
		"bytes_downloaded": s.BytesDownloaded.Load(),
	}
}

// Crawler drives BFS discovery of article URLs from seed URLs, bounded
// by a total-article budget and a depth limit.
type Crawler struct {
	cfg        config.CrawlerConfig
	classifier *classify.Classifier
	fetcher    Fetcher
	robots     *RobotsManager
	logger     *slog.Logger
	stats      *Stats
}

// NewCrawler creates a Crawler. The robots manager is consulted only
// when cfg.RespectRobots is set.
func NewCrawler(cfg config.CrawlerConfig, classifier *classify.Classifier, fetcher Fetcher, logger *slog.Logger) *Crawler {
	return &Crawler{
		cfg:        cfg,
		classifier: classifier,
		fetcher:    fetcher,
		robots:     NewRobotsManager(cfg.RespectRobots),
		logger:     logger.With("component", "crawler"),
		stats:      newStats(),
	}
}

// Stats returns the crawl counters.
func (c *Crawler) Stats() *Stats { return c.stats }

// Discover walks the frontier breadth-first from the seeds and yields
// (url, depth) for every page classified as an article. The sequence is
// lazy: the consumer drives each pull, and abandoning it stops the crawl.
func (c *Crawler) Discover(ctx context.Context, seeds []string) iter.Seq2[string, int] {
	return func(yield func(string, int) bool) {
		c.walk(ctx, seeds, func(p *ArticlePage) bool {
			return yield(p.URL, p.Depth)
		})
	}
}

// DiscoverPages is Discover with the fetched page attached, so consumers
// can parse article content without a second fetch.
func (c *Crawler) DiscoverPages(ctx context.Context, seeds []string) iter.Seq[*ArticlePage] {
	return func(yield func(*ArticlePage) bool) {
		c.walk(ctx, seeds, yield)
	}
}

// walk is the BFS loop shared by the discover variants. visit is called
// for each article page; returning false stops the crawl.
func (c *Crawler) walk(ctx context.Context, seeds []string, visit func(*ArticlePage) bool) {
	frontier := NewFrontier()
	for _, seed := range seeds {
		if c.cfg.RespectRobots && !c.robots.IsAllowed(seed) {
			c.logger.Warn("seed blocked by robots.txt", "url", seed)
			continue
		}
		frontier.Push(seed, 0, "")
	}

	prefixes := seedPathPrefixes(seeds)
	total := 0

	for total < c.cfg.MaxTotal {
		entry := frontier.Pop()
		if entry == nil {
			break
		}
		if ctx.Err() != nil {
			return
		}

		resp := c.fetchPage(ctx, entry)
		if resp == nil {
			// Fetch failures are non-fatal: the URL stays seen and is
			// never retried within this crawl.
			continue
		}

		doc, err := resp.Document()
		if err != nil {
			c.logger.Debug("body parse failed", "url", entry.URL, "error", err)
			doc = nil
		}

		if c.classifier.ClassifyPage(entry.URL, doc) == classify.LabelArticle {
			total++
			c.stats.addArticle(domainOf(entry.URL))
			page := &ArticlePage{
				URL:     entry.URL,
				Depth:   entry.Depth,
				Referer: entry.Referer,
				Resp:    resp,
				Doc:     doc,
			}
			if !visit(page) {
				return
			}
		}

		// Depth cutoff applies to articles and hub pages alike.
		if entry.Depth >= c.cfg.MaxDepth {
			continue
		}
		if doc == nil {
			continue
		}

		c.expand(frontier, entry, doc, prefixes)
	}
}

// expand pushes the page's outbound links that survive the link filters.
func (c *Crawler) expand(frontier *Frontier, entry *Entry, doc *goquery.Document, prefixes []string) {
	base, err := url.Parse(entry.URL)
	if err != nil {
		return
	}

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		href = strings.TrimSpace(href)
		if skipHref(href) {
			c.stats.LinksFiltered.Add(1)
			return
		}

		ref, err := url.Parse(href)
		if err != nil {
			c.stats.LinksFiltered.Add(1)
			return
		}
		child := base.ResolveReference(ref)

		if c.cfg.SameDomainOnly && !strings.EqualFold(child.Hostname(), base.Hostname()) {
			c.stats.LinksFiltered.Add(1)
			return
		}
		// Path confinement: stay under the site sections the seeds
		// pointed at.
		if !pathConfined(child.Path, prefixes) {
			c.stats.LinksFiltered.Add(1)
			return
		}
		if c.cfg.RespectRobots && !c.robots.IsAllowed(child.String()) {
			c.stats.LinksFiltered.Add(1)
			return
		}

		if frontier.Push(child.String(), entry.Depth+1, entry.URL) {
			c.stats.LinksEnqueued.Add(1)
		}
	})
}

// fetchPage fetches one frontier entry. Any failure (transport error,
// bad status, non-HTML content, empty body) yields nil; the crawler
// does not distinguish transient from permanent failure.
func (c *Crawler) fetchPage(ctx context.Context, entry *Entry) *types.Response {
	req, err := types.NewRequest(entry.URL)
	if err != nil {
		c.stats.FetchFailures.Add(1)
		return nil
	}
	req.Depth = entry.Depth
	req.Referer = entry.Referer
	req.Timeout = c.cfg.TimeoutGet
	if entry.Referer != "" {
		req.Headers.Set("Referer", entry.Referer)
	}

	fetchCtx := ctx
	if c.cfg.TimeoutGet > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, c.cfg.TimeoutGet)
		defer cancel()
	}

	resp, err := c.fetcher.Fetch(fetchCtx, req)
	if err != nil {
		c.stats.FetchFailures.Add(1)
		c.logger.Debug("fetch failed", "url", entry.URL, "error", err)
		return nil
	}
	if resp.StatusCode >= 400 || !resp.IsHTML() || len(resp.Body) == 0 {
		c.stats.FetchFailures.Add(1)
		c.logger.Debug("fetch rejected",
			"url", entry.URL,
			"status", resp.StatusCode,
			"content_type", resp.ContentType,
		)
		return nil
	}

	c.stats.PagesFetched.Add(1)
	c.stats.BytesDownloaded.Add(int64(len(resp.Body)))
	return resp
}

// seedPathPrefixes computes the confinement prefixes: each seed's path
// with its trailing slash stripped. A root seed contributes the empty
// prefix, which admits everything.
func seedPathPrefixes(seeds []string) []string {
	prefixes := make([]string, 0, len(seeds))
	for _, seed := range seeds {
		u, err := url.Parse(seed)
		if err != nil {
			continue
		}
		prefixes = append(prefixes, strings.TrimSuffix(u.Path, "/"))
	}
	return prefixes
}

// pathConfined reports whether a candidate path starts with any seed
// prefix. An empty prefix list (no seeds parsed) admits everything.
func pathConfined(path string, prefixes []string) bool {
	if len(prefixes) == 0 {
		return true
	}
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// skipHref filters hrefs that can never lead to an article page.
func skipHref(href string) bool {
	if href == "" || strings.HasPrefix(href, "#") {
		return true
	}
	lower := strings.ToLower(href)
	if strings.HasPrefix(lower, "mailto:") ||
		strings.HasPrefix(lower, "javascript:") ||
		strings.HasPrefix(lower, "tel:") ||
		strings.HasPrefix(lower, "data:") {
		return true
	}
	if strings.HasSuffix(strings.SplitN(lower, "?", 2)[0], ".pdf") {
		return true
	}
	return false
}

func domainOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
