package crawl

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
	"sync"
)

// Entry is a pending fetch task in the frontier.
type Entry struct {
	URL     string
	Depth   int
	Referer string // page this URL was discovered on, empty for seeds
}

// Frontier is a de-duplicated FIFO queue of fetch tasks. FIFO order makes
// the traversal breadth-first. Once a URL is seen it is permanently
// excluded for the lifetime of the Frontier; there are no retries and
// no re-visits.
type Frontier struct {
	mu    sync.Mutex
	queue []Entry
	seen  map[string]struct{}
}

// NewFrontier creates an empty Frontier.
func NewFrontier() *Frontier {
	return &Frontier{
		seen: make(map[string]struct{}, 1024),
	}
}

// Push enqueues a URL at the given depth. The URL is canonicalized
// before the seen check. Returns false (and does nothing) for empty or
// already-seen URLs.
func (f *Frontier) Push(rawURL string, depth int, referer string) bool {
	canonical := Canonicalize(rawURL)
	if canonical == "" {
		return false
	}
	key := hashURL(canonical)

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.seen[key]; ok {
		return false
	}
	f.seen[key] = struct{}{}
	f.queue = append(f.queue, Entry{URL: canonical, Depth: depth, Referer: referer})
	return true
}

// Pop removes and returns the head of the queue, or nil when empty.
func (f *Frontier) Pop() *Entry {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.queue) == 0 {
		return nil
	}
	e := f.queue[0]
	f.queue = f.queue[1:]
	return &e
}

// Len returns the current queue depth.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue)
}

// Seen reports whether a URL has already been pushed.
func (f *Frontier) Seen(rawURL string) bool {
	key := hashURL(Canonicalize(rawURL))

	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.seen[key]
	return ok
}

// SeenCount returns the number of unique URLs ever pushed.
func (f *Frontier) SeenCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.seen)
}

// Canonicalize normalizes a URL for deduplication:
// - strips the fragment
// - lowercases scheme and host
// - removes default ports (80 for http, 443 for https)
// Returns "" for empty or unparseable input.
func Canonicalize(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return ""
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	u.Fragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	host := u.Hostname()
	port := u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		u.Host = host
	}

	return u.String()
}

// hashURL creates a compact hash key for the seen set.
func hashURL(canonicalURL string) string {
	h := sha256.Sum256([]byte(canonicalURL))
	return hex.EncodeToString(h[:16]) // 128-bit key
}
