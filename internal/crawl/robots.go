package crawl

import (
	"bufio"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

const robotsBodyCap = 512 * 1024

// RobotsManager answers robots.txt questions for crawl origins. Rule
// sets are fetched once per origin and cached for the manager's
// lifetime. A disabled manager allows everything.
type RobotsManager struct {
	enabled bool
	client  *http.Client

	mu    sync.RWMutex
	rules map[string]*robotsRules
}

// robotsRules is the parsed rule set for one origin. A nil set (fetch
// failed, non-200, unparseable) allows everything.
type robotsRules struct {
	allow      []string
	disallow   []string
	crawlDelay time.Duration
	sitemaps   []string
}

func NewRobotsManager(enabled bool) *RobotsManager {
	return &RobotsManager{
		enabled: enabled,
		client:  &http.Client{Timeout: 10 * time.Second},
		rules:   make(map[string]*robotsRules),
	}
}

// IsAllowed reports whether the origin's robots.txt permits fetching
// the URL. Allow rules win over disallow rules; an unreachable or
// absent robots.txt permits everything.
func (rm *RobotsManager) IsAllowed(rawURL string) bool {
	if !rm.enabled {
		return true
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}

	rules := rm.rulesFor(u.Scheme + "://" + u.Host)
	if rules == nil {
		return true
	}

	path := u.Path
	if path == "" {
		path = "/"
	}
	for _, pattern := range rules.allow {
		if robotsPathMatch(pattern, path) {
			return true
		}
	}
	for _, pattern := range rules.disallow {
		if robotsPathMatch(pattern, path) {
			return false
		}
	}
	return true
}

// CrawlDelay returns the origin's crawl-delay, zero when unspecified.
func (rm *RobotsManager) CrawlDelay(origin string) time.Duration {
	rm.mu.RLock()
	rules := rm.rules[origin]
	rm.mu.RUnlock()
	if rules == nil {
		return 0
	}
	return rules.crawlDelay
}

// Sitemaps returns the sitemap URLs the origin's robots.txt lists.
func (rm *RobotsManager) Sitemaps(origin string) []string {
	rm.mu.RLock()
	rules := rm.rules[origin]
	rm.mu.RUnlock()
	if rules == nil {
		return nil
	}
	return rules.sitemaps
}

func (rm *RobotsManager) rulesFor(origin string) *robotsRules {
	rm.mu.RLock()
	rules, cached := rm.rules[origin]
	rm.mu.RUnlock()
	if cached {
		return rules
	}

	rules = rm.fetch(origin)
	rm.mu.Lock()
	rm.rules[origin] = rules
	rm.mu.Unlock()
	return rules
}

func (rm *RobotsManager) fetch(origin string) *robotsRules {
	resp, err := rm.client.Get(origin + "/robots.txt")
	if err != nil {
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil
	}
	return parseRobots(io.LimitReader(resp.Body, robotsBodyCap))
}

// parseRobots reads a robots.txt body, keeping the rule groups that
// apply to this crawler: the wildcard agent and anything naming
// marketpulse. Sitemap lines are group-independent.
func parseRobots(r io.Reader) *robotsRules {
	rules := &robotsRules{}
	applies := false

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		field, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		field = strings.ToLower(strings.TrimSpace(field))
		value = strings.TrimSpace(value)

		switch field {
		case "user-agent":
			agent := strings.ToLower(value)
			applies = agent == "*" || strings.Contains(agent, "marketpulse")
		case "allow":
			if applies && value != "" {
				rules.allow = append(rules.allow, value)
			}
		case "disallow":
			if applies && value != "" {
				rules.disallow = append(rules.disallow, value)
			}
		case "crawl-delay":
			if applies {
				if secs, err := strconv.ParseFloat(value, 64); err == nil && secs > 0 {
					rules.crawlDelay = time.Duration(secs * float64(time.Second))
				}
			}
		case "sitemap":
			if value != "" {
				rules.sitemaps = append(rules.sitemaps, value)
			}
		}
	}
	return rules
}

// robotsPathMatch reports whether a rule pattern covers the path.
// Patterns are prefixes, with * matching any run of characters and a
// trailing $ anchoring the match to the end of the path.
func robotsPathMatch(pattern, path string) bool {
	if pattern == "" {
		return false
	}
	anchored := strings.HasSuffix(pattern, "$")
	if anchored {
		pattern = strings.TrimSuffix(pattern, "$")
	}

	if !strings.Contains(pattern, "*") {
		if anchored {
			return path == pattern
		}
		return strings.HasPrefix(path, pattern)
	}

	pos := 0
	for i, part := range strings.Split(pattern, "*") {
		if part == "" {
			continue
		}
		idx := strings.Index(path[pos:], part)
		if idx < 0 || (i == 0 && idx != 0) {
			return false
		}
		pos += idx + len(part)
	}
	if anchored {
		return pos == len(path)
	}
	return true
}
