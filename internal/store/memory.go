package store

import (
	"context"
	"sort"
	"sync"

	"github.com/marketpulse/marketpulse/internal/types"
)

// MemStore is an in-memory Store used for tests and dry runs. It
// mirrors the query semantics of MongoStore, including the anti-join
// batch selectors.
type MemStore struct {
	mu        sync.RWMutex
	inArts    []*types.InArticle
	procArts  []*types.ProcArticle
	metrics   []*types.CalcMetric
	rcmds     []*types.RcmdResult
	priceBars []*types.PriceBar
}

func NewMemStore() *MemStore {
	return &MemStore{}
}

func (s *MemStore) InsertInArticle(_ context.Context, art *types.InArticle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.inArts {
		if existing.NewsID == art.NewsID {
			return types.ErrDuplicate
		}
	}
	cp := *art
	s.inArts = append(s.inArts, &cp)
	return nil
}

func (s *MemStore) InArticleByNewsID(_ context.Context, newsID string) (*types.InArticle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, art := range s.inArts {
		if art.NewsID == newsID {
			cp := *art
			return &cp, nil
		}
	}
	return nil, types.ErrNotFound
}

func (s *MemStore) UnprocessedInArticles(_ context.Context, limit int) ([]*types.InArticle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	processed := make(map[string]struct{}, len(s.procArts))
	for _, p := range s.procArts {
		processed[p.NewsID] = struct{}{}
	}
	var out []*types.InArticle
	for _, art := range s.inArts {
		if _, ok := processed[art.NewsID]; ok {
			continue
		}
		cp := *art
		out = append(out, &cp)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *MemStore) InsertProcArticle(_ context.Context, rec *types.ProcArticle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.procArts {
		if existing.NewsID == rec.NewsID {
			return types.ErrDuplicate
		}
	}
	cp := *rec
	s.procArts = append(s.procArts, &cp)
	return nil
}

func (s *MemStore) ProcByNewsID(_ context.Context, newsID string) (*types.ProcArticle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.procArts {
		if p.NewsID == newsID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, types.ErrNotFound
}

func (s *MemStore) ProcByID(_ context.Context, procID string) (*types.ProcArticle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.procArts {
		if p.ProcID == procID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, types.ErrNotFound
}

func (s *MemStore) UncalcedProcArticles(_ context.Context, limit int) ([]*types.ProcArticle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	calced := make(map[string]struct{}, len(s.metrics))
	for _, m := range s.metrics {
		calced[m.SourceProcID] = struct{}{}
	}
	var out []*types.ProcArticle
	for _, p := range s.procArts {
		if _, ok := calced[p.ProcID]; ok {
			continue
		}
		cp := *p
		out = append(out, &cp)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *MemStore) InsertCalcMetrics(_ context.Context, metrics []*types.CalcMetric) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range metrics {
		cp := *m
		s.metrics = append(s.metrics, &cp)
	}
	return nil
}

func (s *MemStore) MetricsByDate(_ context.Context, baseYmd string) ([]*types.CalcMetric, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*types.CalcMetric
	for _, m := range s.metrics {
		if m.BaseYmd == baseYmd {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *MemStore) InsertRcmdResults(_ context.Context, results []*types.RcmdResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range results {
		cp := *r
		s.rcmds = append(s.rcmds, &cp)
	}
	return nil
}

func (s *MemStore) RcmdsByDate(_ context.Context, baseYmd string) ([]*types.RcmdResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*types.RcmdResult
	for _, r := range s.rcmds {
		if r.BaseYmd == baseYmd {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *MemStore) InsertPriceBars(_ context.Context, bars []*types.PriceBar) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range bars {
		cp := *b
		s.priceBars = append(s.priceBars, &cp)
	}
	return nil
}

func (s *MemStore) ChangeRates(_ context.Context, stkCd, fromYmd, toYmd string) ([]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var bars []*types.PriceBar
	for _, b := range s.priceBars {
		if b.StkCd == stkCd && b.BaseYmd >= fromYmd && b.BaseYmd <= toYmd && b.ChangeRate != nil {
			bars = append(bars, b)
		}
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].BaseYmd < bars[j].BaseYmd })
	rates := make([]float64, 0, len(bars))
	for _, b := range bars {
		rates = append(rates, *b.ChangeRate)
	}
	return rates, nil
}

func (s *MemStore) Close(_ context.Context) error { return nil }
