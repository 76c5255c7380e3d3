package classify

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Label is the classification of a URL.
type Label string

const (
	LabelArticle  Label = "article"
	LabelCategory Label = "category"
	LabelUnknown  Label = "unknown"
)

// Policy is the immutable slug configuration the classifier is built with.
type Policy struct {
	categorySlugs map[string]struct{}
	ignoreSlugs   map[string]struct{}
}

// NewPolicy builds a Policy from slug lists. Matching is case-insensitive.
func NewPolicy(categorySlugs, ignoreSlugs []string) Policy {
	p := Policy{
		categorySlugs: make(map[string]struct{}, len(categorySlugs)),
		ignoreSlugs:   make(map[string]struct{}, len(ignoreSlugs)),
	}
	for _, s := range categorySlugs {
		p.categorySlugs[strings.ToLower(s)] = struct{}{}
	}
	for _, s := range ignoreSlugs {
		p.ignoreSlugs[strings.ToLower(s)] = struct{}{}
	}
	return p
}

// Negative signals: URL shapes that indicate listing/hub/non-article pages.
var categoryPatterns = []*regexp.Regexp{
	regexp.MustCompile(`/category/`),
	regexp.MustCompile(`/section/`),
	regexp.MustCompile(`/tags?/`),
	regexp.MustCompile(`/topics?/`),
	regexp.MustCompile(`/page/\d+`),
	regexp.MustCompile(`[?&]page=`),
	regexp.MustCompile(`/(menu|nav|sitemap|archive)`),
	regexp.MustCompile(`/(photos?|gallery|galleries|videos?|media)(/|$)`),
	regexp.MustCompile(`\.(pdf|docx?|xlsx?|zip)$`),
	regexp.MustCompile(`/(podcasts?|games?|tv-schedule|live-stream)(/|$)`),
	regexp.MustCompile(`/\w+/\w+_\w+$`), // regional hub pages like /world/asia_east
}

// Positive signals: URL shapes that indicate a single article page.
var (
	dateSlugPattern = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
	datePathPattern = regexp.MustCompile(`/\d{4}/\d{2}/\d{2}/`)
	longIDPattern   = regexp.MustCompile(`/\d{6,}/`)
	idSuffixPattern = regexp.MustCompile(`-\d{6,}$`)
	pureDigits      = regexp.MustCompile(`^\d+$`)
	nonAlnum        = regexp.MustCompile(`[^a-zA-Z0-9]`)
)

// Classifier labels URLs as article, category, or unknown from URL shape
// alone. It is a pure function of its input; the same URL always yields
// the same label.
type Classifier struct {
	policy Policy
}

// New creates a Classifier with the given policy.
func New(policy Policy) *Classifier {
	return &Classifier{policy: policy}
}

// Classify maps a URL to a label. Article checks run first: when a URL
// carries both an article-positive signal and a category-negative signal
// (a trailing story ID under /page/2, say), the article signal wins.
func (c *Classifier) Classify(rawURL string) Label {
	if c.LikeArticle(rawURL) {
		return LabelArticle
	}
	if c.LikeCategory(rawURL) {
		return LabelCategory
	}
	return LabelUnknown
}

// ClassifyPage is Classify with an HTML hint: a page declaring
// og:type=article is an article regardless of URL shape.
func (c *Classifier) ClassifyPage(rawURL string, doc *goquery.Document) Label {
	if doc != nil {
		ogType, _ := doc.Find(`meta[property="og:type"]`).Attr("content")
		if strings.EqualFold(strings.TrimSpace(ogType), "article") {
			return LabelArticle
		}
	}
	return c.Classify(rawURL)
}

// IsHome reports whether the URL is a site root: empty or "/" path and
// no query string.
func (c *Classifier) IsHome(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return (u.Path == "" || u.Path == "/") && u.RawQuery == ""
}

// LikeCategory reports whether the URL looks like a listing/hub page.
func (c *Classifier) LikeCategory(rawURL string) bool {
	if c.IsHome(rawURL) {
		return true
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	segs := pathSegments(u.Path)
	last, ok := c.lastMeaningfulSegment(segs)
	if !ok && len(segs) > 0 {
		// Only locale/ignored segments left, so this is a home-like hub page.
		return true
	}
	if ok {
		if _, hit := c.policy.categorySlugs[strings.ToLower(last)]; hit {
			return true
		}
	}

	target := u.Path
	if u.RawQuery != "" {
		target += "?" + u.RawQuery
	}
	for _, re := range categoryPatterns {
		if re.MatchString(target) {
			return true
		}
	}

	// Shallow directory-style paths are hub pages
	if strings.HasSuffix(u.Path, "/") && len(segs) <= 3 {
		return true
	}

	return false
}

// LikeArticle reports whether the URL looks like a single article page.
// Positive shape signals are checked first; with none present it falls
// back to "deep path that is not category-like".
func (c *Classifier) LikeArticle(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	segs := pathSegments(u.Path)
	if last, ok := c.lastMeaningfulSegment(segs); ok {
		if dateSlugPattern.MatchString(last) {
			return true
		}
		if strings.Count(last, "-") >= 3 {
			return true
		}
		stripped := nonAlnum.ReplaceAllString(last, "")
		if len(stripped) >= 10 && hasLetter(stripped) && hasDigit(stripped) {
			return true
		}
		if pureDigits.MatchString(last) && len(last) >= 6 {
			return true
		}
	}

	if datePathPattern.MatchString(u.Path) ||
		longIDPattern.MatchString(u.Path) ||
		idSuffixPattern.MatchString(u.Path) {
		return true
	}

	return !c.LikeCategory(rawURL) && len(segs) >= 3
}

// lastMeaningfulSegment returns the last non-empty path segment that is
// not an ignored locale slug.
func (c *Classifier) lastMeaningfulSegment(segs []string) (string, bool) {
	for i := len(segs) - 1; i >= 0; i-- {
		if _, skip := c.policy.ignoreSlugs[strings.ToLower(segs[i])]; skip {
			continue
		}
		return segs[i], true
	}
	return "", false
}

func pathSegments(path string) []string {
	var segs []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}

func hasLetter(s string) bool {
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			return true
		}
	}
	return false
}

func hasDigit(s string) bool {
	for _, r := range s {
		if r >= '0' && r <= '9' {
			return true
		}
	}
	return false
}
