package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/marketpulse/marketpulse/internal/classify"
	"github.com/marketpulse/marketpulse/internal/config"
	"github.com/marketpulse/marketpulse/internal/crawl"
	"github.com/marketpulse/marketpulse/internal/parser"
	"github.com/marketpulse/marketpulse/internal/store"
	"github.com/marketpulse/marketpulse/internal/types"
)

// siteFetcher serves canned pages keyed by URL.
type siteFetcher struct {
	pages map[string]string
}

func (f *siteFetcher) Fetch(_ context.Context, req *types.Request) (*types.Response, error) {
	body, ok := f.pages[req.URLString()]
	if !ok {
		return nil, &types.FetchError{URL: req.URLString(), StatusCode: http.StatusNotFound, Err: types.ErrNotFound}
	}
	return types.NewBrowserResponse(req, http.StatusOK, []byte(body), req.URLString(), 0), nil
}

func (f *siteFetcher) Close() error { return nil }

func articleHTML(title, body string) string {
	return fmt.Sprintf(`<html><head><title>%s</title>
<meta property="article:published_time" content="2026-03-15T08:00:00Z"></head>
<body><article><h1>%s</h1><p>%s</p></article></body></html>`, title, title, body)
}

func homeHTML(links ...string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, l := range links {
		fmt.Fprintf(&b, `<a href="%s">link</a>`, l)
	}
	b.WriteString("</body></html>")
	return b.String()
}

// TestFullPipeline walks all four stages: a crawl over a fake site,
// article enrichment, metric calculation, and recommendation output.
func TestFullPipeline(t *testing.T) {
	site := &siteFetcher{pages: map[string]string{
		"https://news.example.com/": homeHTML(
			"/apple-surges-after-record-earnings",
			"/tesla-shares-plunge-on-recall-warning",
			"/weather-and-sports-roundup-for-today",
		),
		"https://news.example.com/apple-surges-after-record-earnings": articleHTML(
			"Apple Surges After Record Earnings",
			"Shares of Apple Inc jumped 8% after the company reported record profits and strong growth, with analysts upbeat on the outlook for the next quarter.",
		),
		"https://news.example.com/tesla-shares-plunge-on-recall-warning": articleHTML(
			"Tesla Shares Plunge On Recall Warning",
			"Tesla stock plunged 6% after the company warned of a major vehicle recall, raising concerns about costs and weak margins in the coming quarters.",
		),
		"https://news.example.com/weather-and-sports-roundup-for-today": articleHTML(
			"Weather And Sports Roundup For Today",
			"A sunny weekend is expected across the region, and the local team won its third straight game in front of a record home crowd on Saturday evening.",
		),
	}}

	cfg := config.DefaultConfig()
	cfg.Crawler.MaxTotal = 10
	cfg.Crawler.MaxDepth = 2
	logger := discardLogger()
	st := store.NewMemStore()
	ctx := context.Background()

	// Stage 1: crawl and ingest
	classifier := classify.New(classify.NewPolicy(cfg.Classifier.CategorySlugs, cfg.Classifier.IgnoreSlugs))
	crawler := crawl.NewCrawler(cfg.Crawler, classifier, site, logger)
	ingestor := NewIngestor(crawler, parser.NewArticleParser(logger), st, logger)

	ingestSum := ingestor.Run(ctx, []string{"https://news.example.com/"}, "20260315")
	if ingestSum.Processed != 3 {
		t.Fatalf("ingested = %+v, want 3 articles", ingestSum)
	}

	// Stage 2: enrich
	procSum, err := testProcessor(st).ProcessUnprocessed(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if procSum.Processed != 3 {
		t.Fatalf("processed = %+v", procSum)
	}

	appleID := NewsIDFor("https://news.example.com/apple-surges-after-record-earnings")
	apple, err := st.ProcByNewsID(ctx, appleID)
	if err != nil {
		t.Fatalf("apple proc row: %v", err)
	}
	if apple.StkCd != "AAPL" {
		t.Errorf("apple stk_cd = %q", apple.StkCd)
	}
	if apple.SentimentScore == nil || *apple.SentimentScore <= 0 {
		t.Errorf("apple sentiment = %v, want positive", apple.SentimentScore)
	}

	teslaID := NewsIDFor("https://news.example.com/tesla-shares-plunge-on-recall-warning")
	tesla, err := st.ProcByNewsID(ctx, teslaID)
	if err != nil {
		t.Fatalf("tesla proc row: %v", err)
	}
	if tesla.StkCd != "TSLA" {
		t.Errorf("tesla stk_cd = %q", tesla.StkCd)
	}
	if tesla.SentimentScore == nil || *tesla.SentimentScore >= 0 {
		t.Errorf("tesla sentiment = %v, want negative", tesla.SentimentScore)
	}

	// Stage 3: calc. The stock-less weather article gets a SKIP marker.
	calcSum, err := testCalc(st).BatchProcess(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if calcSum.Processed != 2 || calcSum.Skipped != 1 {
		t.Fatalf("calc = %+v, want 2 calced and 1 skipped", calcSum)
	}
	if calcSum.MetricsCreated < 2 || calcSum.MetricsCreated > 8 {
		t.Fatalf("metrics created = %d", calcSum.MetricsCreated)
	}

	metrics, err := st.MetricsByDate(ctx, "20260315")
	if err != nil {
		t.Fatal(err)
	}
	var appleMetrics int
	for _, m := range metrics {
		if m.StkCd == "AAPL" {
			appleMetrics++
		}
	}
	if appleMetrics < 1 || appleMetrics > 4 {
		t.Errorf("apple metric rows = %d, want 1..4", appleMetrics)
	}

	// Stage 4: recommend
	rcmdSum, err := testRcmd(st).GenerateAll(ctx, "20260315")
	if err != nil {
		t.Fatal(err)
	}
	if rcmdSum.Processed == 0 {
		t.Fatalf("rcmd = %+v", rcmdSum)
	}

	rows, err := st.RcmdsByDate(ctx, "20260315")
	if err != nil {
		t.Fatal(err)
	}
	counts := make(map[types.RcmdType]int)
	for _, r := range rows {
		counts[r.RcmdType]++
	}
	if counts[types.RcmdNews] == 0 || counts[types.RcmdStock] != 2 {
		t.Errorf("rcmd counts = %v", counts)
	}
	if counts[types.RcmdPortfolio] > 1 {
		t.Errorf("portfolio rows = %d, want at most 1", counts[types.RcmdPortfolio])
	}

	// Re-running every stage adds nothing new
	again := ingestor.Run(ctx, []string{"https://news.example.com/"}, "20260315")
	if again.Processed != 0 {
		t.Errorf("re-ingest stored %d new rows", again.Processed)
	}
	procAgain, err := testProcessor(st).ProcessUnprocessed(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if procAgain.Processed != 0 {
		t.Errorf("re-process handled %d rows", procAgain.Processed)
	}
	calcAgain, err := testCalc(st).BatchProcess(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if calcAgain.Processed != 0 || calcAgain.Skipped != 0 {
		t.Errorf("re-calc = %+v", calcAgain)
	}
}
