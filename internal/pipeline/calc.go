package pipeline

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/montanaflynn/stats"

	"github.com/marketpulse/marketpulse/internal/config"
	"github.com/marketpulse/marketpulse/internal/store"
	"github.com/marketpulse/marketpulse/internal/types"
)

// CalcProcessor derives quantitative metrics from processed articles.
// Each article yields up to four metric rows (sentiment, price impact,
// risk, volatility). Articles without an identified stock get a single
// SKIP marker row so the batch query does not re-select them.
type CalcProcessor struct {
	store  store.Store
	cfg    *config.PipelineConfig
	logger *slog.Logger
}

func NewCalcProcessor(st store.Store, cfg *config.PipelineConfig, logger *slog.Logger) *CalcProcessor {
	return &CalcProcessor{
		store:  st,
		cfg:    cfg,
		logger: logger.With("component", "calc_processor"),
	}
}

// BatchProcess selects uncalced articles and writes metrics for each.
// Metrics are committed per article.
func (c *CalcProcessor) BatchProcess(ctx context.Context) (types.BatchSummary, error) {
	var summary types.BatchSummary

	batch, err := c.store.UncalcedProcArticles(ctx, c.cfg.BatchLimit)
	if err != nil {
		return summary, err
	}

	for _, rec := range batch {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		n, err := c.ProcessOne(ctx, rec)
		if err != nil {
			summary.Failed++
			summary.Errors = append(summary.Errors, &types.StageError{Stage: "calc", RecordID: rec.ProcID, Err: err})
			continue
		}
		if n == 0 {
			summary.Skipped++
			continue
		}
		summary.Processed++
		summary.MetricsCreated += n
	}

	c.logger.Info("calc batch complete",
		"selected", len(batch),
		"calced", summary.Processed,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"metrics", summary.MetricsCreated,
	)
	return summary, nil
}

// ProcessOne writes the metric rows for one article and returns the
// number of real metrics created. A SKIP marker counts as zero.
func (c *CalcProcessor) ProcessOne(ctx context.Context, rec *types.ProcArticle) (int, error) {
	if !rec.HasStock() {
		marker := &types.CalcMetric{
			CalcID:       uuid.NewString(),
			BaseYmd:      rec.BaseYmd,
			MetricType:   types.MetricSkip,
			MetricVal:    0,
			SourceProcID: rec.ProcID,
		}
		return 0, c.store.InsertCalcMetrics(ctx, []*types.CalcMetric{marker})
	}

	var metrics []*types.CalcMetric
	add := func(mt types.MetricType, val float64) {
		metrics = append(metrics, &types.CalcMetric{
			CalcID:       uuid.NewString(),
			StkCd:        rec.StkCd,
			BaseYmd:      rec.BaseYmd,
			MetricType:   mt,
			MetricVal:    val,
			SourceProcID: rec.ProcID,
		})
	}

	if rec.SentimentScore != nil {
		add(types.MetricSentiment, *rec.SentimentScore)
	}
	if rec.PriceImpact != nil {
		add(types.MetricPriceImpact, *rec.PriceImpact)
	}

	add(types.MetricRisk, RiskScore(rec.SentimentScore, rec.PriceImpact))

	if vol, ok, err := c.volatility(ctx, rec.StkCd, rec.BaseYmd); err != nil {
		return 0, err
	} else if ok {
		add(types.MetricVolatility, vol)
	}

	if err := c.store.InsertCalcMetrics(ctx, metrics); err != nil {
		return 0, err
	}
	return len(metrics), nil
}

// RiskScore combines sentiment and price impact magnitudes into a risk
// figure. Missing inputs contribute zero; the result is capped at 1.
func RiskScore(sentiment, impact *float64) float64 {
	var s, p float64
	if sentiment != nil {
		s = *sentiment
	}
	if impact != nil {
		p = *impact
	}
	risk := 0.5 + 0.3*math.Abs(s) + 0.2*math.Abs(p)
	if risk > 1.0 {
		risk = 1.0
	}
	return risk
}

// volatility computes the sample standard deviation of daily change
// rates over the window [baseYmd-VolatilityDays, baseYmd], both ends
// inclusive. At least two observations are required; with fewer the
// metric is omitted.
func (c *CalcProcessor) volatility(ctx context.Context, stkCd, baseYmd string) (float64, bool, error) {
	to, err := time.Parse(types.BaseYmdLayout, baseYmd)
	if err != nil {
		return 0, false, nil // unparseable business date, skip the metric
	}
	from := to.AddDate(0, 0, -c.cfg.VolatilityDays)

	rates, err := c.store.ChangeRates(ctx, stkCd, from.Format(types.BaseYmdLayout), baseYmd)
	if err != nil {
		return 0, false, err
	}
	if len(rates) < 2 {
		return 0, false, nil
	}

	sd, err := stats.StandardDeviationSample(stats.Float64Data(rates))
	if err != nil {
		return 0, false, nil
	}
	return sd, true, nil
}
