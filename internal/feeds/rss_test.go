package feeds

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/marketpulse/marketpulse/internal/config"
)

const sampleRSS = `<?xml version="1.0"?>
<rss version="2.0">
<channel>
<title>Example Markets Wire</title>
<item>
<title>Apple Surges After Earnings Beat</title>
<link>https://news.example.com/apple-surges-after-earnings</link>
<pubDate>Mon, 16 Mar 2026 09:30:00 GMT</pubDate>
</item>
<item>
<title>Fed Holds Rates Steady</title>
<link>https://news.example.com/fed-holds-rates</link>
</item>
<item>
<title>No link here</title>
</item>
</channel>
</rss>`

func TestFetchParsesFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(sampleRSS))
	}))
	defer srv.Close()

	cfg := &config.FeedsConfig{URLs: []string{srv.URL}, Timeout: 5 * time.Second}
	s := NewSource(cfg, slog.New(slog.DiscardHandler))

	items := s.Fetch(context.Background())
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2 (link-less entries skipped)", len(items))
	}
	if items[0].URL != "https://news.example.com/apple-surges-after-earnings" {
		t.Errorf("url = %q", items[0].URL)
	}
	if items[0].PublishedAt.IsZero() {
		t.Errorf("pubDate not parsed")
	}
	if !items[1].PublishedAt.IsZero() {
		t.Errorf("missing pubDate should stay zero")
	}
}

func TestFetchBrokenFeedSkipped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := &config.FeedsConfig{URLs: []string{srv.URL}, Timeout: 2 * time.Second}
	s := NewSource(cfg, slog.New(slog.DiscardHandler))
	if items := s.Fetch(context.Background()); len(items) != 0 {
		t.Errorf("items = %d, want 0", len(items))
	}
}

func TestSeedURLs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(sampleRSS))
	}))
	defer srv.Close()

	cfg := &config.FeedsConfig{URLs: []string{srv.URL}, Timeout: 5 * time.Second}
	s := NewSource(cfg, slog.New(slog.DiscardHandler))
	urls := s.SeedURLs(context.Background())
	if len(urls) != 2 {
		t.Fatalf("urls = %v", urls)
	}
}
