package types

import (
	"strings"
	"time"
)

// MetricType identifies one of the quantitative metrics derived from a
// processed article.
type MetricType string

const (
	MetricSentiment   MetricType = "SENTIMENT"
	MetricPriceImpact MetricType = "PRICE_IMPACT"
	MetricRisk        MetricType = "RISK"
	MetricVolatility  MetricType = "VOLATILITY"

	// MetricSkip is a terminal marker written for processed articles that
	// can never produce a real metric (no identified stock). It keeps the
	// calc batch query from re-selecting the same article forever.
	MetricSkip MetricType = "SKIP"
)

// RcmdType identifies the kind of recommendation a result row carries.
type RcmdType string

const (
	RcmdNews      RcmdType = "NEWS"
	RcmdStock     RcmdType = "STOCK"
	RcmdPortfolio RcmdType = "PORTFOLIO"
)

// Stock action labels attached to STOCK recommendations.
const (
	ActionBuy  = "BUY"
	ActionSell = "SELL"
	ActionHold = "HOLD"
)

// BaseYmdLayout is the layout of the business date attached to every
// pipeline record. It is a reporting date, not a wall-clock insert time.
const BaseYmdLayout = "20060102"

// InArticle is a raw ingested article, written once by the crawl stage
// and immutable afterwards.
type InArticle struct {
	NewsID        string    `bson:"news_id"         json:"news_id"`
	Title         string    `bson:"title"           json:"title"`
	Content       string    `bson:"content"         json:"content"`
	URL           string    `bson:"url"             json:"url"`
	BaseYmd       string    `bson:"base_ymd"        json:"base_ymd"`
	IngestBatchID string    `bson:"ingest_batch_id" json:"ingest_batch_id"`
	PublishDt     time.Time `bson:"publish_dt"      json:"publish_dt"`
}

// ProcArticle is the sentiment/ticker-enriched form of an InArticle.
// At most one ProcArticle exists per news_id.
type ProcArticle struct {
	ProcID         string   `bson:"proc_id"         json:"proc_id"`
	NewsID         string   `bson:"news_id"         json:"news_id"`
	StkCd          string   `bson:"stk_cd"          json:"stk_cd"` // empty when no ticker was identified
	SummaryText    string   `bson:"summary_text"    json:"summary_text"`
	MatchScore     float64  `bson:"match_score"     json:"match_score"`
	SentimentScore *float64 `bson:"sentiment_score" json:"sentiment_score"`
	PriceImpact    *float64 `bson:"price_impact"    json:"price_impact"`
	BaseYmd        string   `bson:"base_ymd"        json:"base_ymd"`
}

// HasStock reports whether a ticker was identified for this article.
func (p *ProcArticle) HasStock() bool { return p.StkCd != "" }

// CalcMetric is a single derived metric row. Zero to four real metrics
// (plus possibly a SKIP marker) exist per ProcArticle.
type CalcMetric struct {
	CalcID       string     `bson:"calc_id"        json:"calc_id"`
	StkCd        string     `bson:"stk_cd"         json:"stk_cd"`
	BaseYmd      string     `bson:"base_ymd"       json:"base_ymd"`
	MetricType   MetricType `bson:"metric_type"    json:"metric_type"`
	MetricVal    float64    `bson:"metric_val"     json:"metric_val"`
	SourceProcID string     `bson:"source_proc_id" json:"source_proc_id"`
}

// RcmdResult is a final ranked recommendation. Rows accumulate across
// generator runs; there is no uniqueness constraint per base_ymd.
type RcmdResult struct {
	RcmdID    string    `bson:"rcmd_id"               json:"rcmd_id"`
	RcmdType  RcmdType  `bson:"rcmd_type"             json:"rcmd_type"`
	RefNewsID string    `bson:"ref_news_id,omitempty" json:"ref_news_id,omitempty"`
	RefStkCd  string    `bson:"ref_stk_cd,omitempty"  json:"ref_stk_cd,omitempty"`
	Score     float64   `bson:"score"                 json:"score"`
	Reason    string    `bson:"reason"                json:"reason"`
	BaseYmd   string    `bson:"base_ymd"              json:"base_ymd"`
	CreatedAt time.Time `bson:"created_at"            json:"created_at"`
}

// PriceBar is one daily price observation for a stock, consumed by the
// volatility metric.
type PriceBar struct {
	StkCd      string   `bson:"stk_cd"      json:"stk_cd"`
	BaseYmd    string   `bson:"base_ymd"    json:"base_ymd"`
	Close      float64  `bson:"close"       json:"close"`
	ChangeRate *float64 `bson:"change_rate" json:"change_rate"`
}

// TickerMatch is one candidate ticker extracted from article text.
// Extractors return matches sorted by descending confidence, then mentions.
type TickerMatch struct {
	Symbol     string  `json:"symbol"`
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
	Mentions   int     `json:"mentions"`
	InTitle    bool    `json:"in_title"`
}

// BatchSummary reports the outcome of one batch run of a pipeline stage.
// Per-record failures are collected here instead of aborting the batch.
type BatchSummary struct {
	Processed      int
	Skipped        int
	Failed         int
	MetricsCreated int
	Errors         []error
}

// Merge folds another summary into this one.
func (b *BatchSummary) Merge(other BatchSummary) {
	b.Processed += other.Processed
	b.Skipped += other.Skipped
	b.Failed += other.Failed
	b.MetricsCreated += other.MetricsCreated
	b.Errors = append(b.Errors, other.Errors...)
}

// JoinSymbols renders a portfolio symbol list the way it is stored on a
// PORTFOLIO recommendation row.
func JoinSymbols(symbols []string) string {
	return strings.Join(symbols, ",")
}
