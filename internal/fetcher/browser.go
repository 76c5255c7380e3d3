package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/marketpulse/marketpulse/internal/config"
	"github.com/marketpulse/marketpulse/internal/types"
)

// BrowserFetcher renders pages in a headless browser for sites that
// require JavaScript. Pages are pooled and reused across fetches.
type BrowserFetcher struct {
	browser  *rod.Browser
	pagePool chan *rod.Page
	cfg      *config.Config
	logger   *slog.Logger
	mu       sync.Mutex
	closed   bool
}

// NewBrowserFetcher launches a headless browser instance.
func NewBrowserFetcher(cfg *config.Config, logger *slog.Logger) (*BrowserFetcher, error) {
	path, err := launcher.New().
		Headless(true).
		NoSandbox(true).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("disable-blink-features", "AutomationControlled").
		Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(path)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	poolSize := cfg.Crawler.Concurrency
	if poolSize < 1 {
		poolSize = 1
	}

	return &BrowserFetcher{
		browser:  browser,
		pagePool: make(chan *rod.Page, poolSize),
		cfg:      cfg,
		logger:   logger.With("component", "browser_fetcher"),
	}, nil
}

// Fetch navigates to the request URL and returns the rendered HTML.
func (f *BrowserFetcher) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil, fmt.Errorf("browser fetcher is closed")
	}
	f.mu.Unlock()

	page, err := f.getPage()
	if err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: err, Retryable: true}
	}
	defer f.putPage(page)

	page = page.Context(ctx)
	timeout := f.cfg.Crawler.TimeoutGet

	start := time.Now()
	if err := page.Timeout(timeout).Navigate(req.URLString()); err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: err, Retryable: true}
	}
	// Wait for dynamic content to settle
	if err := page.Timeout(timeout).WaitStable(300 * time.Millisecond); err != nil {
		f.logger.Debug("page did not stabilize", "url", req.URLString(), "error", err)
	}

	html, err := page.HTML()
	if err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: err, Retryable: false}
	}
	duration := time.Since(start)

	info, err := page.Info()
	finalURL := req.URLString()
	if err == nil && info.URL != "" {
		finalURL = info.URL
	}

	resp := types.NewBrowserResponse(req, http.StatusOK, []byte(html), finalURL, duration)

	f.logger.Debug("browser fetch complete",
		"url", req.URLString(),
		"final_url", finalURL,
		"size", len(html),
		"duration", duration,
	)

	return resp, nil
}

// Close shuts down the browser and its page pool.
func (f *BrowserFetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	close(f.pagePool)
	for page := range f.pagePool {
		_ = page.Close()
	}
	return f.browser.Close()
}

// Type returns the fetcher type identifier.
func (f *BrowserFetcher) Type() string {
	return "browser"
}

// getPage takes a page from the pool or creates a fresh stealth page.
func (f *BrowserFetcher) getPage() (*rod.Page, error) {
	select {
	case page := <-f.pagePool:
		if page != nil {
			return page, nil
		}
	default:
	}
	page, err := stealth.Page(f.browser)
	if err != nil {
		return nil, err
	}
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:  1920,
		Height: 1080,
	}); err != nil {
		return nil, err
	}
	return page, nil
}

// putPage returns a page to the pool, closing it when the pool is full.
func (f *BrowserFetcher) putPage(page *rod.Page) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		_ = page.Close()
		return
	}
	// Free memory from the last page before pooling
	_ = page.Navigate("about:blank")
	select {
	case f.pagePool <- page:
	default:
		_ = page.Close()
	}
}

// New builds a fetcher based on the configured type.
func New(cfg *config.Config, logger *slog.Logger) (Fetcher, error) {
	switch cfg.Fetcher.Type {
	case "browser":
		return NewBrowserFetcher(cfg, logger)
	case "http", "":
		return NewHTTPFetcher(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown fetcher type: %q", cfg.Fetcher.Type)
	}
}
