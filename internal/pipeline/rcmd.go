package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/marketpulse/marketpulse/internal/config"
	"github.com/marketpulse/marketpulse/internal/store"
	"github.com/marketpulse/marketpulse/internal/types"
)

// RcmdGenerator turns a day's calc metrics into ranked NEWS, STOCK and
// PORTFOLIO recommendation rows.
type RcmdGenerator struct {
	store  store.Store
	cfg    *config.RcmdConfig
	logger *slog.Logger
	now    func() time.Time
}

func NewRcmdGenerator(st store.Store, cfg *config.RcmdConfig, logger *slog.Logger) *RcmdGenerator {
	return &RcmdGenerator{
		store:  st,
		cfg:    cfg,
		logger: logger.With("component", "rcmd_generator"),
		now:    time.Now,
	}
}

// GenerateAll runs the three generators for one business date and
// persists all resulting rows.
func (g *RcmdGenerator) GenerateAll(ctx context.Context, baseYmd string) (types.BatchSummary, error) {
	var summary types.BatchSummary

	metrics, err := g.store.MetricsByDate(ctx, baseYmd)
	if err != nil {
		return summary, err
	}

	news, err := g.GenerateNews(ctx, metrics, baseYmd)
	if err != nil {
		return summary, err
	}
	stocks := g.GenerateStocks(metrics, baseYmd)
	portfolio := g.GeneratePortfolio(metrics, baseYmd)

	all := make([]*types.RcmdResult, 0, len(news)+len(stocks)+len(portfolio))
	all = append(all, news...)
	all = append(all, stocks...)
	all = append(all, portfolio...)

	if len(all) == 0 {
		summary.Skipped++
		return summary, nil
	}
	if err := g.store.InsertRcmdResults(ctx, all); err != nil {
		return summary, err
	}
	summary.Processed = len(all)

	g.logger.Info("recommendations generated",
		"base_ymd", baseYmd,
		"news", len(news),
		"stocks", len(stocks),
		"portfolio", len(portfolio),
	)
	return summary, nil
}

// GenerateNews scores each source article by how notable its metrics
// are: strong sentiment in either direction plus elevated risk. Rows
// are ranked by score and capped at the configured top N.
func (g *RcmdGenerator) GenerateNews(ctx context.Context, metrics []*types.CalcMetric, baseYmd string) ([]*types.RcmdResult, error) {
	type article struct {
		sentiment float64
		risk      float64
	}
	byProc := make(map[string]*article)
	for _, m := range metrics {
		if m.SourceProcID == "" || m.MetricType == types.MetricSkip {
			continue
		}
		a, ok := byProc[m.SourceProcID]
		if !ok {
			a = &article{}
			byProc[m.SourceProcID] = a
		}
		switch m.MetricType {
		case types.MetricSentiment:
			a.sentiment = m.MetricVal
		case types.MetricRisk:
			a.risk = m.MetricVal
		}
	}

	var out []*types.RcmdResult
	for procID, a := range byProc {
		score := math.Abs(a.sentiment)*50 + a.risk*30

		refNewsID := ""
		proc, err := g.store.ProcByID(ctx, procID)
		switch {
		case err == nil:
			refNewsID = proc.NewsID
		case !errors.Is(err, types.ErrNotFound):
			return nil, err
		}

		out = append(out, &types.RcmdResult{
			RcmdID:    uuid.NewString(),
			RcmdType:  types.RcmdNews,
			RefNewsID: refNewsID,
			Score:     score,
			Reason:    fmt.Sprintf("sentiment=%.2f risk=%.2f", a.sentiment, a.risk),
			BaseYmd:   baseYmd,
			CreatedAt: g.now().UTC(),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if g.cfg.TopN > 0 && len(out) > g.cfg.TopN {
		out = out[:g.cfg.TopN]
	}
	return out, nil
}

// stockAggregate folds a stock's metric rows for the day. When the same
// metric type arrives from several articles, each new value is averaged
// with the running value rather than accumulated into a true mean, so
// later articles weigh more. That recency bias is intentional.
type stockAggregate struct {
	sentiment  float64
	hasSent    bool
	risk       float64
	hasRisk    bool
	volatility float64
	hasVol     bool
}

func (a *stockAggregate) fold(m *types.CalcMetric) {
	switch m.MetricType {
	case types.MetricSentiment:
		if a.hasSent {
			a.sentiment = (a.sentiment + m.MetricVal) / 2
		} else {
			a.sentiment, a.hasSent = m.MetricVal, true
		}
	case types.MetricRisk:
		if a.hasRisk {
			a.risk = (a.risk + m.MetricVal) / 2
		} else {
			a.risk, a.hasRisk = m.MetricVal, true
		}
	case types.MetricVolatility:
		if a.hasVol {
			a.volatility = (a.volatility + m.MetricVal) / 2
		} else {
			a.volatility, a.hasVol = m.MetricVal, true
		}
	}
}

// GenerateStocks emits one row per stock with an action label. Rows are
// ranked by score magnitude, so a strong sell signal outranks a weak
// buy signal.
func (g *RcmdGenerator) GenerateStocks(metrics []*types.CalcMetric, baseYmd string) []*types.RcmdResult {
	byStock := aggregateByStock(metrics)

	var out []*types.RcmdResult
	for stkCd, a := range byStock {
		score := a.sentiment*50 - a.risk*30 + a.volatility*10

		// The action label reads the raw sentiment and risk, not the
		// composite score: a high score with borderline risk stays HOLD.
		action := types.ActionHold
		switch {
		case a.sentiment > 0.5 && a.risk < 0.5:
			action = types.ActionBuy
		case a.sentiment < -0.5 || a.risk > 0.7:
			action = types.ActionSell
		}

		out = append(out, &types.RcmdResult{
			RcmdID:    uuid.NewString(),
			RcmdType:  types.RcmdStock,
			RefStkCd:  stkCd,
			Score:     score,
			Reason:    fmt.Sprintf("%s: sentiment=%.2f risk=%.2f volatility=%.3f", action, a.sentiment, a.risk, a.volatility),
			BaseYmd:   baseYmd,
			CreatedAt: g.now().UTC(),
		})
	}

	sort.Slice(out, func(i, j int) bool { return math.Abs(out[i].Score) > math.Abs(out[j].Score) })
	if g.cfg.TopN > 0 && len(out) > g.cfg.TopN {
		out = out[:g.cfg.TopN]
	}
	return out
}

// GeneratePortfolio picks stocks with clearly positive sentiment and
// acceptable risk, ranks them by sentiment minus risk, and emits a
// single row carrying the comma-joined symbol list. When no stock
// qualifies, no row is emitted.
func (g *RcmdGenerator) GeneratePortfolio(metrics []*types.CalcMetric, baseYmd string) []*types.RcmdResult {
	byStock := aggregateByStock(metrics)

	type candidate struct {
		stkCd string
		score float64
	}
	var candidates []candidate
	for stkCd, a := range byStock {
		if a.sentiment > 0.2 && a.risk < 0.6 {
			candidates = append(candidates, candidate{stkCd: stkCd, score: a.sentiment - a.risk})
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].stkCd < candidates[j].stkCd
	})
	if g.cfg.PortfolioSize > 0 && len(candidates) > g.cfg.PortfolioSize {
		candidates = candidates[:g.cfg.PortfolioSize]
	}

	symbols := make([]string, len(candidates))
	var total float64
	for i, c := range candidates {
		symbols[i] = c.stkCd
		total += c.score
	}

	return []*types.RcmdResult{{
		RcmdID:    uuid.NewString(),
		RcmdType:  types.RcmdPortfolio,
		RefStkCd:  types.JoinSymbols(symbols),
		Score:     total / float64(len(candidates)),
		Reason:    fmt.Sprintf("%d stocks with positive sentiment and contained risk", len(candidates)),
		BaseYmd:   baseYmd,
		CreatedAt: g.now().UTC(),
	}}
}

func aggregateByStock(metrics []*types.CalcMetric) map[string]*stockAggregate {
	byStock := make(map[string]*stockAggregate)
	for _, m := range metrics {
		if m.StkCd == "" || m.MetricType == types.MetricSkip {
			continue
		}
		a, ok := byStock[m.StkCd]
		if !ok {
			a = &stockAggregate{}
			byStock[m.StkCd] = a
		}
		a.fold(m)
	}
	return byStock
}
