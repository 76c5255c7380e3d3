package fetcher

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/marketpulse/marketpulse/internal/config"
	"github.com/marketpulse/marketpulse/internal/types"
)

const defaultRetryAfter = 5 * time.Second

// HTTPFetcher fetches pages over plain net/http with a shared cookie
// jar and a rotating User-Agent. Response bodies are size-capped and
// decoded here rather than by the transport, so brotli responses work
// alongside gzip and deflate.
type HTTPFetcher struct {
	client     *http.Client
	cfg        *config.FetcherConfig
	logger     *slog.Logger
	userAgents []string
	uaIndex    atomic.Int64
}

func NewHTTPFetcher(cfg *config.Config, logger *slog.Logger) (*HTTPFetcher, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        cfg.Fetcher.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.Fetcher.MaxIdleConns / 2,
		IdleConnTimeout:     cfg.Fetcher.IdleConnTimeout,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig:     &tls.Config{InsecureSkipVerify: cfg.Fetcher.TLSInsecure},
		// Content-Encoding is decoded in decodeBody, brotli included.
		DisableCompression: true,
	}

	client := &http.Client{
		Transport: transport,
		Jar:       jar,
		Timeout:   cfg.Crawler.TimeoutGet,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if !cfg.Fetcher.FollowRedirects {
				return http.ErrUseLastResponse
			}
			if len(via) >= cfg.Fetcher.MaxRedirects {
				return fmt.Errorf("stopped after %d redirects", cfg.Fetcher.MaxRedirects)
			}
			return nil
		},
	}

	return &HTTPFetcher{
		client:     client,
		cfg:        &cfg.Fetcher,
		logger:     logger.With("component", "http_fetcher"),
		userAgents: cfg.Crawler.UserAgents,
	}, nil
}

func (f *HTTPFetcher) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URLString(), nil)
	if err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: err}
	}
	f.primeHeaders(httpReq, req)

	start := time.Now()
	httpResp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, &types.FetchError{
			URL:       req.URLString(),
			Err:       err,
			Retryable: retryable(err),
		}
	}
	defer httpResp.Body.Close()
	duration := time.Since(start)

	if ferr := statusError(req, httpResp); ferr != nil {
		return nil, ferr
	}

	body, err := f.readBody(httpResp)
	if err != nil {
		return nil, err
	}

	resp := types.NewResponse(req, httpResp, body, duration)
	f.logger.Debug("fetch complete",
		"url", req.URLString(),
		"status", resp.StatusCode,
		"size", len(body),
		"duration", duration,
	)
	return resp, nil
}

func (f *HTTPFetcher) Close() error {
	f.client.CloseIdleConnections()
	return nil
}

func (f *HTTPFetcher) Type() string { return "http" }

// primeHeaders sets browser-like defaults, the rotated User-Agent, the
// discovery referer, and finally any per-request overrides.
func (f *HTTPFetcher) primeHeaders(httpReq *http.Request, req *types.Request) {
	h := httpReq.Header
	h.Set("User-Agent", f.nextUserAgent())
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	h.Set("Accept-Language", "en-US,en;q=0.9")
	h.Set("Accept-Encoding", "gzip, deflate, br")
	h.Set("Connection", "keep-alive")
	if req.Referer != "" {
		h.Set("Referer", req.Referer)
	}
	for key, values := range req.Headers {
		for _, v := range values {
			h.Set(key, v)
		}
	}
}

func (f *HTTPFetcher) nextUserAgent() string {
	if len(f.userAgents) == 0 {
		return "MarketPulse/" + config.Version
	}
	idx := f.uaIndex.Add(1) % int64(len(f.userAgents))
	return f.userAgents[idx]
}

// readBody drains the response through the size cap and the content
// decoder.
func (f *HTTPFetcher) readBody(httpResp *http.Response) ([]byte, error) {
	u := httpResp.Request.URL.String()

	var reader io.Reader = httpResp.Body
	if f.cfg.MaxBodySize > 0 {
		reader = io.LimitReader(reader, f.cfg.MaxBodySize)
	}
	reader, err := decodeBody(httpResp.Header.Get("Content-Encoding"), reader)
	if err != nil {
		return nil, &types.FetchError{URL: u, Err: err}
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, &types.FetchError{URL: u, Err: err, Retryable: true}
	}
	return body, nil
}

// statusError converts rate-limit and server-error statuses into
// retryable FetchErrors. A 429 carries the parsed Retry-After delay.
func statusError(req *types.Request, httpResp *http.Response) *types.FetchError {
	switch {
	case httpResp.StatusCode == http.StatusTooManyRequests:
		delay := retryAfterDelay(httpResp.Header.Get("Retry-After"))
		body, _ := io.ReadAll(io.LimitReader(httpResp.Body, 512))
		return &types.FetchError{
			URL:        req.URLString(),
			StatusCode: httpResp.StatusCode,
			Err:        fmt.Errorf("rate limited, retry after %s: %s", delay, strings.TrimSpace(string(body))),
			Retryable:  true,
			RetryAfter: delay,
		}
	case httpResp.StatusCode >= 500:
		body, _ := io.ReadAll(io.LimitReader(httpResp.Body, 1024))
		return &types.FetchError{
			URL:        req.URLString(),
			StatusCode: httpResp.StatusCode,
			Err:        fmt.Errorf("HTTP %d: %s", httpResp.StatusCode, string(body)),
			Retryable:  true,
		}
	}
	return nil
}

// decodeBody wraps the reader with the decoder the Content-Encoding
// header calls for.
func decodeBody(encoding string, reader io.Reader) (io.Reader, error) {
	switch encoding {
	case "gzip":
		return gzip.NewReader(reader)
	case "deflate":
		return flate.NewReader(reader), nil
	case "br":
		return brotli.NewReader(reader), nil
	default:
		return reader, nil
	}
}

// retryable reports whether a transport error is worth a second
// attempt. Context cancellation never is; timeouts, truncated reads
// and refused or reset connections are.
func retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return errors.Is(opErr.Err, syscall.ECONNRESET) || errors.Is(opErr.Err, syscall.ECONNREFUSED)
	}
	return false
}

// retryAfterDelay parses a Retry-After header, either delta-seconds or
// an HTTP-date, clamped to [1s, 2m]. An absent or malformed header
// yields the default back-off.
func retryAfterDelay(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return defaultRetryAfter
	}
	if secs, err := strconv.Atoi(header); err == nil {
		d := time.Duration(secs) * time.Second
		if d > 2*time.Minute {
			return 2 * time.Minute
		}
		return d
	}
	if t, err := http.ParseTime(header); err == nil {
		d := time.Until(t)
		switch {
		case d < time.Second:
			return time.Second
		case d > 2*time.Minute:
			return 2 * time.Minute
		}
		return d
	}
	return defaultRetryAfter
}
