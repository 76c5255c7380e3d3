package types

import (
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Request represents a single page fetch driven by the crawl frontier.
type Request struct {
	// URL is the target URL to fetch.
	URL *url.URL

	// Referer is the page this URL was discovered on, empty for seeds.
	Referer string

	// Depth is the crawl depth from the seed URL.
	Depth int

	// Headers are custom HTTP headers to send with the request.
	Headers http.Header

	// Timeout overrides the global request timeout for this request.
	Timeout time.Duration

	// FetcherType selects the fetcher implementation: "http" or "browser".
	FetcherType string

	// CreatedAt is when this request was created.
	CreatedAt time.Time
}

// NewRequest creates a Request with sensible defaults.
func NewRequest(rawURL string) (*Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}

	return &Request{
		URL:         u,
		Headers:     make(http.Header),
		FetcherType: "http",
		CreatedAt:   time.Now(),
	}, nil
}

// URLString returns the string representation of the request URL.
func (r *Request) URLString() string {
	if r.URL == nil {
		return ""
	}
	return r.URL.String()
}

// Domain returns the hostname of the request URL.
func (r *Request) Domain() string {
	if r.URL == nil {
		return ""
	}
	return r.URL.Hostname()
}
