package parser

import (
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/marketpulse/marketpulse/internal/types"
)

// Article holds the fields extracted from a news page.
type Article struct {
	URL         string
	Title       string
	Content     string
	Description string
	Author      string
	PublishedAt time.Time
	ImageURLs   []string
}

// ArticleParser extracts article fields from fetched pages. It tries
// semantic markup first (og: meta tags, <article>, schema.org) and
// falls back to heuristic text extraction.
type ArticleParser struct {
	logger *slog.Logger
}

func NewArticleParser(logger *slog.Logger) *ArticleParser {
	return &ArticleParser{logger: logger.With("component", "article_parser")}
}

// Parse extracts an Article from the response document.
func (p *ArticleParser) Parse(resp *types.Response) (*Article, error) {
	doc, err := resp.Document()
	if err != nil {
		return nil, &types.ParseError{URL: resp.FinalURL, Err: err}
	}

	art := &Article{
		URL:         resp.FinalURL,
		Title:       p.extractTitle(doc),
		Description: metaContent(doc, "og:description", "description"),
		Author:      p.extractAuthor(doc),
		PublishedAt: p.extractPublishedTime(doc, resp.Body),
		ImageURLs:   p.extractImages(doc),
	}
	art.Content = p.extractContent(doc)

	if art.Title == "" && art.Content == "" {
		return nil, &types.ParseError{URL: resp.FinalURL, Err: types.ErrEmptyResponse}
	}

	return art, nil
}

func (p *ArticleParser) extractTitle(doc *goquery.Document) string {
	if t := metaContent(doc, "og:title"); t != "" {
		return t
	}
	if t := strings.TrimSpace(doc.Find("h1").First().Text()); t != "" {
		return t
	}
	title := strings.TrimSpace(doc.Find("title").First().Text())
	// Strip site-name suffixes like " - Reuters" or " | Bloomberg"
	for _, sep := range []string{" | ", " - ", " – "} {
		if idx := strings.LastIndex(title, sep); idx > 20 {
			title = title[:idx]
		}
	}
	return title
}

// extractContent returns the main article body text. Boilerplate
// containers (nav, footer, aside, scripts) are removed before
// collecting paragraph text.
func (p *ArticleParser) extractContent(doc *goquery.Document) string {
	clone := doc.Selection.Clone()
	clone.Find("script, style, nav, header, footer, aside, form, iframe, noscript, figure figcaption").Remove()

	// Prefer the semantic article container when present
	candidates := []string{
		"article",
		"[itemprop=articleBody]",
		"[class*=article-body]",
		"[class*=story-body]",
		"[class*=post-content]",
		"main",
	}
	for _, sel := range candidates {
		if node := clone.Find(sel).First(); node.Length() > 0 {
			if text := collectParagraphs(node); len(text) > 200 {
				return text
			}
		}
	}

	// Fallback: all paragraphs on the page
	return collectParagraphs(clone)
}

func collectParagraphs(sel *goquery.Selection) string {
	var parts []string
	sel.Find("p").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if len(text) < 40 {
			return // skip bylines, captions, share prompts
		}
		parts = append(parts, text)
	})
	return strings.Join(parts, "\n\n")
}

func (p *ArticleParser) extractAuthor(doc *goquery.Document) string {
	if a := metaContent(doc, "article:author", "author"); a != "" && !strings.HasPrefix(a, "http") {
		return a
	}
	if a := strings.TrimSpace(doc.Find("[rel=author], [class*=byline] a, [itemprop=author]").First().Text()); a != "" {
		return a
	}
	return ""
}

// extractPublishedTime reads the publish timestamp from meta tags or
// <time datetime> attributes. The htmlquery XPath fallback catches
// pages where goquery selectors find nothing.
func (p *ArticleParser) extractPublishedTime(doc *goquery.Document, raw []byte) time.Time {
	candidates := []string{
		metaContent(doc, "article:published_time", "og:published_time", "date", "publish-date"),
	}
	if dt, ok := doc.Find("time[datetime]").First().Attr("datetime"); ok {
		candidates = append(candidates, dt)
	}

	// XPath fallback over the raw document
	if candidates[0] == "" && len(raw) > 0 {
		if root, err := htmlquery.Parse(strings.NewReader(string(raw))); err == nil {
			candidates = append(candidates, xpathDatetime(root)...)
		}
	}

	layouts := []string{
		time.RFC3339,
		"2006-01-02T15:04:05Z0700",
		"2006-01-02 15:04:05",
		"2006-01-02",
		"January 2, 2006",
		"Jan 2, 2006",
	}
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		for _, layout := range layouts {
			if t, err := time.Parse(layout, c); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}

func xpathDatetime(root *html.Node) []string {
	var out []string
	exprs := []string{
		"//meta[@itemprop='datePublished']/@content",
		"//span[@class='date']/text()",
		"//*[@class='timestamp']/@data-time",
	}
	for _, expr := range exprs {
		if node, err := htmlquery.Query(root, expr); err == nil && node != nil {
			out = append(out, htmlquery.InnerText(node))
		}
	}
	return out
}

func (p *ArticleParser) extractImages(doc *goquery.Document) []string {
	seen := make(map[string]struct{})
	var urls []string
	add := func(u string) {
		u = strings.TrimSpace(u)
		if u == "" || !strings.HasPrefix(u, "http") {
			return
		}
		if _, ok := seen[u]; ok {
			return
		}
		seen[u] = struct{}{}
		urls = append(urls, u)
	}

	add(metaContent(doc, "og:image"))
	doc.Find("article img[src], [class*=article] img[src]").Each(func(_ int, s *goquery.Selection) {
		if src, ok := s.Attr("src"); ok {
			add(src)
		}
	})
	if len(urls) > 5 {
		urls = urls[:5]
	}
	return urls
}

// metaContent returns the first non-empty content attribute among the
// given meta property/name keys.
func metaContent(doc *goquery.Document, keys ...string) string {
	for _, key := range keys {
		sel := doc.Find("meta[property='" + key + "'], meta[name='" + key + "']").First()
		if content, ok := sel.Attr("content"); ok {
			if c := strings.TrimSpace(content); c != "" {
				return c
			}
		}
	}
	return ""
}
