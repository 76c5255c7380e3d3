package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/marketpulse/marketpulse/internal/analysis"
	"github.com/marketpulse/marketpulse/internal/config"
	"github.com/marketpulse/marketpulse/internal/store"
	"github.com/marketpulse/marketpulse/internal/types"
)

// ArticleProcessor turns raw InArticle rows into enriched ProcArticle
// rows: sentiment, price impact, the best ticker match, and a short
// extractive summary.
type ArticleProcessor struct {
	store     store.Store
	sentiment *analysis.SentimentAnalyzer
	tickers   *analysis.TickerExtractor
	cfg       *config.PipelineConfig
	logger    *slog.Logger
}

func NewArticleProcessor(st store.Store, sent *analysis.SentimentAnalyzer, tick *analysis.TickerExtractor, cfg *config.PipelineConfig, logger *slog.Logger) *ArticleProcessor {
	return &ArticleProcessor{
		store:     st,
		sentiment: sent,
		tickers:   tick,
		cfg:       cfg,
		logger:    logger.With("component", "article_processor"),
	}
}

// ProcessUnprocessed selects up to the configured batch limit of
// articles with no processed counterpart and processes each one.
// Failures are per record; one bad article does not abort the batch.
func (p *ArticleProcessor) ProcessUnprocessed(ctx context.Context) (types.BatchSummary, error) {
	var summary types.BatchSummary

	batch, err := p.store.UnprocessedInArticles(ctx, p.cfg.BatchLimit)
	if err != nil {
		return summary, err
	}

	for _, art := range batch {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		switch _, err := p.processOne(ctx, art); {
		case errors.Is(err, types.ErrDuplicate):
			summary.Skipped++
		case err != nil:
			summary.Failed++
			summary.Errors = append(summary.Errors, &types.StageError{Stage: "process", RecordID: art.NewsID, Err: err})
		default:
			summary.Processed++
		}
	}

	p.logger.Info("process batch complete",
		"selected", len(batch),
		"processed", summary.Processed,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
	)
	return summary, nil
}

// ProcessByID processes a single article by news_id and returns the
// proc_id of its ProcArticle. Already-processed articles are reported
// as skipped, with the proc_id of the existing row.
func (p *ArticleProcessor) ProcessByID(ctx context.Context, newsID string) (string, types.BatchSummary, error) {
	var summary types.BatchSummary

	art, err := p.store.InArticleByNewsID(ctx, newsID)
	if err != nil {
		return "", summary, err
	}

	procID, err := p.processOne(ctx, art)
	switch {
	case errors.Is(err, types.ErrDuplicate):
		summary.Skipped++
	case err != nil:
		summary.Failed++
		summary.Errors = append(summary.Errors, &types.StageError{Stage: "process", RecordID: newsID, Err: err})
	default:
		summary.Processed++
	}
	return procID, summary, nil
}

// processOne returns the proc_id of the article's ProcArticle: the new
// row's ID on success, the existing row's ID alongside ErrDuplicate.
func (p *ArticleProcessor) processOne(ctx context.Context, art *types.InArticle) (string, error) {
	// Idempotency gate: at most one ProcArticle per news_id
	if existing, err := p.store.ProcByNewsID(ctx, art.NewsID); err == nil {
		return existing.ProcID, types.ErrDuplicate
	} else if !errors.Is(err, types.ErrNotFound) {
		return "", err
	}

	analysisText := art.Title + "\n" + truncateRunes(art.Content, p.cfg.AnalysisPrefix)

	sent := p.sentiment.Analyze(analysisText)
	impact := analysis.EstimatePriceImpact(sent, analysisText)

	rec := &types.ProcArticle{
		ProcID:         uuid.NewString(),
		NewsID:         art.NewsID,
		SummaryText:    Summarize(art.Content, p.cfg.SummaryLen),
		SentimentScore: &sent.Score,
		PriceImpact:    &impact,
		BaseYmd:        art.BaseYmd,
	}

	matches := p.tickers.Extract(art.Title, truncateRunes(art.Content, p.cfg.AnalysisPrefix))
	if len(matches) > 0 {
		rec.StkCd = matches[0].Symbol
		rec.MatchScore = matches[0].Confidence
	}

	if err := p.store.InsertProcArticle(ctx, rec); err != nil {
		return "", err
	}
	return rec.ProcID, nil
}

// Summarize returns an extractive summary of at most maxLen runes:
// leading whole sentences while they fit, then a hard cut.
func Summarize(content string, maxLen int) string {
	content = strings.TrimSpace(content)
	if maxLen <= 0 || utf8.RuneCountInString(content) <= maxLen {
		return content
	}

	var b strings.Builder
	for _, sentence := range splitSentences(content) {
		if utf8.RuneCountInString(b.String())+utf8.RuneCountInString(sentence)+1 > maxLen {
			break
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(sentence)
	}
	if b.Len() > 0 {
		return b.String()
	}
	// First sentence alone exceeds the budget
	return truncateRunes(content, maxLen)
}

func splitSentences(text string) []string {
	var out []string
	start := 0
	runes := []rune(text)
	for i, r := range runes {
		if r == '.' || r == '!' || r == '?' {
			if i+1 < len(runes) && runes[i+1] != ' ' && runes[i+1] != '\n' {
				continue // decimal point or abbreviation
			}
			if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
				out = append(out, s)
			}
			start = i + 1
		}
	}
	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		out = append(out, s)
	}
	return out
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
