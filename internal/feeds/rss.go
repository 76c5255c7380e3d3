package feeds

import (
	"context"
	"log/slog"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/marketpulse/marketpulse/internal/config"
)

// Item is one feed entry worth crawling.
type Item struct {
	URL         string
	Title       string
	PublishedAt time.Time
}

// Source pulls article URLs out of RSS and Atom feeds. Feed items are
// an additional seed supply next to the configured crawl seeds.
type Source struct {
	parser *gofeed.Parser
	cfg    *config.FeedsConfig
	logger *slog.Logger
}

func NewSource(cfg *config.FeedsConfig, logger *slog.Logger) *Source {
	return &Source{
		parser: gofeed.NewParser(),
		cfg:    cfg,
		logger: logger.With("component", "feed_source"),
	}
}

// Fetch reads all configured feeds and returns their items, newest
// first within each feed. A broken feed is logged and skipped.
func (s *Source) Fetch(ctx context.Context) []Item {
	var items []Item
	for _, feedURL := range s.cfg.URLs {
		feedCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
		feed, err := s.parser.ParseURLWithContext(feedURL, feedCtx)
		cancel()
		if err != nil {
			s.logger.Warn("feed fetch failed", "url", feedURL, "error", err)
			continue
		}
		items = append(items, itemsOf(feed)...)
		s.logger.Debug("feed fetched", "url", feedURL, "items", len(feed.Items))
	}
	return items
}

// SeedURLs returns just the links, for handing to the crawler.
func (s *Source) SeedURLs(ctx context.Context) []string {
	items := s.Fetch(ctx)
	urls := make([]string, 0, len(items))
	for _, it := range items {
		urls = append(urls, it.URL)
	}
	return urls
}

func itemsOf(feed *gofeed.Feed) []Item {
	out := make([]Item, 0, len(feed.Items))
	for _, it := range feed.Items {
		if it.Link == "" {
			continue
		}
		item := Item{URL: it.Link, Title: it.Title}
		if it.PublishedParsed != nil {
			item.PublishedAt = *it.PublishedParsed
		}
		out = append(out, item)
	}
	return out
}
