package store

import (
	"context"

	"github.com/marketpulse/marketpulse/internal/types"
)

// Store is the persistence boundary for the ingestion and analysis
// pipeline. Implementations must be safe for concurrent use.
type Store interface {
	// Ingestion stage
	InsertInArticle(ctx context.Context, art *types.InArticle) error
	InArticleByNewsID(ctx context.Context, newsID string) (*types.InArticle, error)
	// UnprocessedInArticles returns ingested articles that have no
	// processed counterpart yet, up to limit.
	UnprocessedInArticles(ctx context.Context, limit int) ([]*types.InArticle, error)

	// Processing stage
	InsertProcArticle(ctx context.Context, rec *types.ProcArticle) error
	ProcByNewsID(ctx context.Context, newsID string) (*types.ProcArticle, error)
	ProcByID(ctx context.Context, procID string) (*types.ProcArticle, error)
	// UncalcedProcArticles returns processed articles that have no
	// calculated metrics yet, up to limit.
	UncalcedProcArticles(ctx context.Context, limit int) ([]*types.ProcArticle, error)

	// Calculation stage
	InsertCalcMetrics(ctx context.Context, metrics []*types.CalcMetric) error
	MetricsByDate(ctx context.Context, baseYmd string) ([]*types.CalcMetric, error)

	// Recommendation stage
	InsertRcmdResults(ctx context.Context, results []*types.RcmdResult) error
	RcmdsByDate(ctx context.Context, baseYmd string) ([]*types.RcmdResult, error)

	// Price history
	InsertPriceBars(ctx context.Context, bars []*types.PriceBar) error
	// ChangeRates returns daily change rates for the stock over the
	// inclusive [fromYmd, toYmd] range, ordered by date ascending.
	ChangeRates(ctx context.Context, stkCd, fromYmd, toYmd string) ([]float64, error)

	Close(ctx context.Context) error
}
