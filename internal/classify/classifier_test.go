package classify

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func newTestClassifier() *Classifier {
	return New(NewPolicy(
		[]string{"news", "business", "markets", "finance", "topics-hub"},
		[]string{"en", "ko", "us"},
	))
}

func TestClassifyHome(t *testing.T) {
	c := newTestClassifier()

	for _, u := range []string{"https://x.com/", "https://x.com"} {
		if got := c.Classify(u); got != LabelCategory {
			t.Errorf("Classify(%q) = %q, want category", u, got)
		}
	}
}

func TestClassifyHomeWithQueryIsNotHome(t *testing.T) {
	c := newTestClassifier()

	if c.IsHome("https://x.com/?page=2") {
		t.Error("home with query string should not be IsHome")
	}
}

func TestClassifyArticlePositiveSignals(t *testing.T) {
	c := newTestClassifier()

	articles := []string{
		"https://x.com/news/2024-01-15-earnings-beat",         // date-shaped slug
		"https://x.com/news/apple-stock-rallies-after-launch", // >=3 hyphens
		"https://x.com/news/20240115earnings1",                // alnum-mixed, >=10 chars
		"https://x.com/news/8839201",                          // pure digits, >=6
		"https://x.com/2024/01/15/markets-open",               // date path
		"https://x.com/article/123456/",                       // long numeric path segment
		"https://x.com/markets/apple-earnings-909132",         // trailing story ID
	}
	for _, u := range articles {
		if got := c.Classify(u); got != LabelArticle {
			t.Errorf("Classify(%q) = %q, want article", u, got)
		}
	}
}

func TestClassifyCategoryNegativeSignals(t *testing.T) {
	c := newTestClassifier()

	categories := []string{
		"https://x.com/topics/finance",
		"https://x.com/category/economy",
		"https://x.com/section/world",
		"https://x.com/tag/ai",
		"https://x.com/blog/page/2",
		"https://x.com/list?page=3",
		"https://x.com/sitemap",
		"https://x.com/report.pdf",
		"https://x.com/world/asia_east",
		"https://x.com/news/",
	}
	for _, u := range categories {
		if got := c.Classify(u); got != LabelCategory {
			t.Errorf("Classify(%q) = %q, want category", u, got)
		}
	}
}

func TestClassifyArticleWinsOverCategory(t *testing.T) {
	c := newTestClassifier()

	// Both signals fire: /page/2 is a negative pattern, the trailing
	// long ID is a positive one. Article checks run first.
	u := "https://x.com/blog/page/2/story-about-rates-584201"
	if got := c.Classify(u); got != LabelArticle {
		t.Errorf("Classify(%q) = %q, want article", u, got)
	}
}

func TestClassifyIgnoredLocaleOnly(t *testing.T) {
	c := newTestClassifier()

	if got := c.Classify("https://x.com/en/ko"); got != LabelCategory {
		t.Errorf("locale-only path should classify as category, got %q", got)
	}
}

func TestClassifyUnknown(t *testing.T) {
	c := newTestClassifier()

	// Two flat segments, no positive or negative signal.
	if got := c.Classify("https://x.com/about/team"); got != LabelUnknown {
		t.Errorf("Classify(about/team) = %q, want unknown", got)
	}
}

func TestClassifyDeepPathFallback(t *testing.T) {
	c := newTestClassifier()

	// No positive shape signal, but three segments deep and not
	// category-like.
	if got := c.Classify("https://x.com/opinion/columns/rates"); got != LabelArticle {
		t.Errorf("deep non-category path should fall back to article, got %q", got)
	}
}

func TestClassifyIsPure(t *testing.T) {
	c := newTestClassifier()

	u := "https://x.com/news/2024-01-15-earnings-beat"
	first := c.Classify(u)
	for i := 0; i < 10; i++ {
		if got := c.Classify(u); got != first {
			t.Fatalf("Classify is not stable: %q then %q", first, got)
		}
	}
}

func TestClassifyPageOGTypeHint(t *testing.T) {
	c := newTestClassifier()

	html := `<html><head><meta property="og:type" content="article"></head><body></body></html>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatal(err)
	}

	// URL shape says category, page metadata says article.
	if got := c.ClassifyPage("https://x.com/topics/finance", doc); got != LabelArticle {
		t.Errorf("og:type=article should force article, got %q", got)
	}
}

func BenchmarkClassify(b *testing.B) {
	c := newTestClassifier()
	for i := 0; i < b.N; i++ {
		c.Classify("https://x.com/news/2024-01-15-earnings-beat")
	}
}
