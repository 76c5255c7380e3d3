package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/marketpulse/marketpulse/internal/types"
)

func fptr(v float64) *float64 { return &v }

func TestMemStoreInArticleDedup(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	art := &types.InArticle{NewsID: "n1", Title: "First", BaseYmd: "20260315"}
	if err := s.InsertInArticle(ctx, art); err != nil {
		t.Fatalf("insert: %v", err)
	}
	err := s.InsertInArticle(ctx, &types.InArticle{NewsID: "n1", Title: "Again"})
	if !errors.Is(err, types.ErrDuplicate) {
		t.Errorf("duplicate insert err = %v, want ErrDuplicate", err)
	}

	got, err := s.InArticleByNewsID(ctx, "n1")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got.Title != "First" {
		t.Errorf("title = %q, want original kept", got.Title)
	}

	if _, err := s.InArticleByNewsID(ctx, "missing"); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("missing lookup err = %v, want ErrNotFound", err)
	}
}

func TestMemStoreUnprocessedAntiJoin(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	for _, id := range []string{"n1", "n2", "n3"} {
		if err := s.InsertInArticle(ctx, &types.InArticle{NewsID: id}); err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
	}
	if err := s.InsertProcArticle(ctx, &types.ProcArticle{ProcID: "p1", NewsID: "n2"}); err != nil {
		t.Fatalf("insert proc: %v", err)
	}

	got, err := s.UnprocessedInArticles(ctx, 0)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	ids := make(map[string]bool)
	for _, a := range got {
		ids[a.NewsID] = true
	}
	if len(got) != 2 || !ids["n1"] || !ids["n3"] {
		t.Errorf("unprocessed = %v, want n1 and n3", ids)
	}

	limited, err := s.UnprocessedInArticles(ctx, 1)
	if err != nil {
		t.Fatalf("limited query: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("limit 1 returned %d rows", len(limited))
	}
}

func TestMemStoreUncalcedSkipMarkerCounts(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	if err := s.InsertProcArticle(ctx, &types.ProcArticle{ProcID: "p1", NewsID: "n1"}); err != nil {
		t.Fatal(err)
	}
	if err := s.InsertProcArticle(ctx, &types.ProcArticle{ProcID: "p2", NewsID: "n2"}); err != nil {
		t.Fatal(err)
	}
	// SKIP marker on p1 must keep it out of the next batch
	err := s.InsertCalcMetrics(ctx, []*types.CalcMetric{
		{CalcID: "c1", MetricType: types.MetricSkip, SourceProcID: "p1"},
	})
	if err != nil {
		t.Fatal(err)
	}

	got, err := s.UncalcedProcArticles(ctx, 0)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 1 || got[0].ProcID != "p2" {
		t.Errorf("uncalced = %+v, want only p2", got)
	}
}

func TestMemStoreChangeRates(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	bars := []*types.PriceBar{
		{StkCd: "AAPL", BaseYmd: "20260312", Close: 101, ChangeRate: fptr(0.01)},
		{StkCd: "AAPL", BaseYmd: "20260310", Close: 100, ChangeRate: fptr(-0.02)},
		{StkCd: "AAPL", BaseYmd: "20260311", Close: 102, ChangeRate: fptr(0.02)},
		{StkCd: "AAPL", BaseYmd: "20260313", Close: 102, ChangeRate: nil},
		{StkCd: "MSFT", BaseYmd: "20260311", Close: 400, ChangeRate: fptr(0.05)},
		{StkCd: "AAPL", BaseYmd: "20260301", Close: 90, ChangeRate: fptr(0.09)},
	}
	if err := s.InsertPriceBars(ctx, bars); err != nil {
		t.Fatalf("insert: %v", err)
	}

	rates, err := s.ChangeRates(ctx, "AAPL", "20260310", "20260313")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	want := []float64{-0.02, 0.02, 0.01}
	if len(rates) != len(want) {
		t.Fatalf("rates = %v, want %v", rates, want)
	}
	for i := range want {
		if rates[i] != want[i] {
			t.Errorf("rates[%d] = %v, want %v (date ascending, nil skipped)", i, rates[i], want[i])
		}
	}
}

func TestMemStoreMetricsAndRcmdsByDate(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	metrics := []*types.CalcMetric{
		{CalcID: "c1", BaseYmd: "20260315", MetricType: types.MetricSentiment, MetricVal: 0.5, SourceProcID: "p1"},
		{CalcID: "c2", BaseYmd: "20260316", MetricType: types.MetricRisk, MetricVal: 0.7, SourceProcID: "p2"},
	}
	if err := s.InsertCalcMetrics(ctx, metrics); err != nil {
		t.Fatal(err)
	}
	got, err := s.MetricsByDate(ctx, "20260315")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].CalcID != "c1" {
		t.Errorf("metrics = %+v", got)
	}

	rcmds := []*types.RcmdResult{
		{RcmdID: "r1", RcmdType: types.RcmdNews, BaseYmd: "20260315"},
		{RcmdID: "r2", RcmdType: types.RcmdStock, BaseYmd: "20260314"},
	}
	if err := s.InsertRcmdResults(ctx, rcmds); err != nil {
		t.Fatal(err)
	}
	gotR, err := s.RcmdsByDate(ctx, "20260315")
	if err != nil {
		t.Fatal(err)
	}
	if len(gotR) != 1 || gotR[0].RcmdID != "r1" {
		t.Errorf("rcmds = %+v", gotR)
	}
}

func TestExporterJSONL(t *testing.T) {
	dir := t.TempDir()
	e, err := NewExporter(dir, "jsonl")
	if err != nil {
		t.Fatalf("NewExporter: %v", err)
	}
	results := []*types.RcmdResult{
		{RcmdID: "r1", RcmdType: types.RcmdStock, RefStkCd: "AAPL", Score: 42.5, Reason: "BUY", BaseYmd: "20260315", CreatedAt: time.Now()},
		{RcmdID: "r2", RcmdType: types.RcmdNews, RefNewsID: "n1", Score: 31.0, BaseYmd: "20260315", CreatedAt: time.Now()},
	}
	path, err := e.Export(results, "20260315")
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Errorf("jsonl lines = %d, want 2", len(lines))
	}
	if !strings.Contains(lines[0], `"AAPL"`) {
		t.Errorf("first line missing symbol: %s", lines[0])
	}
	if filepath.Ext(path) != ".jsonl" {
		t.Errorf("path = %q", path)
	}
}

func TestExporterCSV(t *testing.T) {
	dir := t.TempDir()
	e, err := NewExporter(dir, "csv")
	if err != nil {
		t.Fatalf("NewExporter: %v", err)
	}
	results := []*types.RcmdResult{
		{RcmdID: "r1", RcmdType: types.RcmdPortfolio, RefStkCd: "AAPL,MSFT", Score: 0.8, BaseYmd: "20260315", CreatedAt: time.Now()},
	}
	path, err := e.Export(results, "20260315")
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Errorf("csv lines = %d, want header + 1 row", len(lines))
	}
	if !strings.HasPrefix(lines[0], "rcmd_id,") {
		t.Errorf("header = %q", lines[0])
	}
}

func TestExporterRejectsUnknownFormat(t *testing.T) {
	if _, err := NewExporter(t.TempDir(), "xml"); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}
