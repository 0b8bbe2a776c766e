package fetcher

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/time/rate"

	"github.com/dsa-core/dsa-core/internal/apperr"
	"github.com/dsa-core/dsa-core/internal/cache"
	"github.com/dsa-core/dsa-core/internal/config"
	"github.com/dsa-core/dsa-core/internal/logging"
	"github.com/dsa-core/dsa-core/internal/model"
)

const (
	quoteTTL          = 60 * time.Second
	historyTTL        = 4 * time.Hour // approximates one trading session
	defaultUSSourceID = "yahoo"       // every US-market call routes here when it is enabled

	// defaultSourceRate caps outbound requests per vendor source; a
	// stricter per-source limit can be set via config.SourceConfig.
	defaultSourceRate = 5 // requests/sec
)

type registeredSource struct {
	source   Source
	breaker  *CircuitBreaker
	limiter  *rate.Limiter
	priority int
	enabled  bool
}

// Pool is the C3 Data Fetcher Pool: it filters sources by market
// support, sorts by effective priority, and attempts them in order with
// circuit breaking and caching.
type Pool struct {
	sources []*registeredSource
	cache   cache.Cache
	log     *logging.Logger
}

// NewPool builds a Pool from a set of sources and a config snapshot that
// may override per-source priority/enablement.
func NewPool(sources []Source, cfg *config.Config, c cache.Cache, log *logging.Logger) *Pool {
	p := &Pool{cache: c, log: log}
	for _, s := range sources {
		priority := s.Priority()
		enabled := true
		rps := defaultSourceRate
		if cfg != nil {
			if ov, ok := cfg.DataSources.Priority[s.ID()]; ok {
				priority = ov.Priority
				enabled = ov.Enabled
				if ov.RateLimit > 0 {
					rps = ov.RateLimit
				}
			}
		}
		p.sources = append(p.sources, &registeredSource{
			source:   s,
			breaker:  NewCircuitBreaker(3, 10*time.Minute),
			limiter:  rate.NewLimiter(rate.Limit(rps), rps),
			priority: priority,
			enabled:  enabled,
		})
	}
	return p
}

// candidates returns enabled sources supporting the ticker's market,
// sorted by ascending priority (lower wins). For the US market every
// call (history, realtime and name) is forced to defaultUSSourceID alone,
// regardless of configured priority, whenever that source is registered
// and enabled.
func (p *Pool) candidates(mkt model.Market, ticker string) []*registeredSource {
	if mkt == model.MarketUS {
		for _, rs := range p.sources {
			if rs.source.ID() == defaultUSSourceID && rs.enabled {
				return []*registeredSource{rs}
			}
		}
	}
	var out []*registeredSource
	for _, rs := range p.sources {
		if rs.enabled && rs.source.SupportsMarket(mkt) {
			out = append(out, rs)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].priority < out[j].priority })
	return out
}

// anySupportsMarket reports whether some registered source (enabled or
// not) claims support for mkt, distinguishing "no source could ever
// serve this market" from "sources exist but are all disabled".
func (p *Pool) anySupportsMarket(mkt model.Market) bool {
	for _, rs := range p.sources {
		if rs.source.SupportsMarket(mkt) {
			return true
		}
	}
	return false
}

// noCandidatesErr picks MarketUnsupported when nothing could ever serve
// mkt, or SourceExhausted when sources exist but are all disabled.
func (p *Pool) noCandidatesErr(mkt model.Market, context string) error {
	if p.anySupportsMarket(mkt) {
		return apperr.SourceExhausted(fmt.Sprintf("all sources for market %s are disabled (%s)", mkt, context), nil)
	}
	return apperr.MarketUnsupported(fmt.Sprintf("no source supports market %s (%s)", mkt, context), nil)
}

// GetHistory returns candle history for ticker, routing across sources
// with fallback, circuit breaking, and per-(ticker,days) caching.
func (p *Pool) GetHistory(ctx context.Context, ticker string, days int) ([]model.Candle, error) {
	canon := model.Canonical(ticker)
	mkt := model.InferMarket(canon)
	if mkt == model.MarketUnknown {
		return nil, apperr.MarketUnsupported(fmt.Sprintf("cannot infer market for %s", canon), nil)
	}
	dispatchTicker := canon
	if mkt == model.MarketUS && model.IsUSIndex(canon) {
		dispatchTicker = model.ResolveUSIndexSymbol(canon)
	}

	key := fmt.Sprintf("history:%s:%d", canon, days)
	if v, ok := cache.GetJSON[[]model.Candle](ctx, p.cache, key); ok {
		return v, nil
	}

	cands := p.candidates(mkt, canon)
	if len(cands) == 0 {
		return nil, p.noCandidatesErr(mkt, "history")
	}

	var lastErr error
	attempted := false
	for _, rs := range cands {
		if !rs.breaker.Allow() {
			continue
		}
		attempted = true
		if err := rs.limiter.Wait(ctx); err != nil {
			lastErr = err
			continue
		}
		bars, err := rs.source.GetHistory(ctx, dispatchTicker, days)
		if err != nil {
			rs.breaker.RecordFailure()
			lastErr = err
			p.log.Warnf("fetcher: %s GetHistory(%s) failed: %v", rs.source.ID(), canon, err)
			continue
		}
		if !strictlyIncreasing(bars) {
			rs.breaker.RecordFailure()
			lastErr = fmt.Errorf("source %s returned non-monotonic candles", rs.source.ID())
			continue
		}
		rs.breaker.RecordSuccess()
		cache.SetJSON(ctx, p.cache, key, bars, historyTTL)
		return bars, nil
	}
	if !attempted {
		return nil, apperr.CircuitOpen(fmt.Sprintf("all sources for %s are circuit-open", canon))
	}
	return nil, apperr.SourceExhausted(fmt.Sprintf("all sources failed for %s history", canon), lastErr)
}

// GetRealtime returns a live quote, memoized per ticker with quoteTTL.
func (p *Pool) GetRealtime(ctx context.Context, ticker string) (model.Quote, error) {
	canon := model.Canonical(ticker)
	mkt := model.InferMarket(canon)
	if mkt == model.MarketUnknown {
		return model.Quote{}, apperr.MarketUnsupported(fmt.Sprintf("cannot infer market for %s", canon), nil)
	}
	dispatchTicker := canon
	if mkt == model.MarketUS && model.IsUSIndex(canon) {
		dispatchTicker = model.ResolveUSIndexSymbol(canon)
	}

	key := "quote:" + canon
	if v, ok := cache.GetJSON[model.Quote](ctx, p.cache, key); ok {
		return v, nil
	}

	cands := p.candidates(mkt, canon)
	if len(cands) == 0 {
		return model.Quote{}, p.noCandidatesErr(mkt, "realtime")
	}

	var lastErr error
	attempted := false
	for _, rs := range cands {
		if !rs.breaker.Allow() {
			continue
		}
		attempted = true
		if err := rs.limiter.Wait(ctx); err != nil {
			lastErr = err
			continue
		}
		q, err := rs.source.GetRealtime(ctx, dispatchTicker)
		if err != nil {
			rs.breaker.RecordFailure()
			lastErr = err
			continue
		}
		q.Ticker = canon
		rs.breaker.RecordSuccess()
		cache.SetJSON(ctx, p.cache, key, q, quoteTTL)
		return q, nil
	}
	if !attempted {
		return model.Quote{}, apperr.CircuitOpen(fmt.Sprintf("all sources for %s are circuit-open", canon))
	}
	return model.Quote{}, apperr.SourceExhausted(fmt.Sprintf("all sources failed for %s realtime", canon), lastErr)
}

// GetName resolves a human-readable name for ticker, falling through
// sources in priority order.
func (p *Pool) GetName(ctx context.Context, ticker string) (string, error) {
	canon := model.Canonical(ticker)
	mkt := model.InferMarket(canon)
	if mkt == model.MarketUS {
		if m, ok := model.USIndexMapping[canon]; ok {
			return m.Name, nil
		}
	}
	cands := p.candidates(mkt, canon)
	if len(cands) == 0 {
		return "", p.noCandidatesErr(mkt, "name")
	}
	var lastErr error
	for _, rs := range cands {
		if !rs.breaker.Allow() {
			continue
		}
		if err := rs.limiter.Wait(ctx); err != nil {
			lastErr = err
			continue
		}
		name, err := rs.source.GetName(ctx, canon)
		if err != nil {
			rs.breaker.RecordFailure()
			lastErr = err
			continue
		}
		rs.breaker.RecordSuccess()
		return name, nil
	}
	return "", apperr.SourceExhausted(fmt.Sprintf("no source resolved a name for %s", canon), lastErr)
}

// PrefetchRealtime warms the quote cache for many tickers, using a
// source's batch capability when available.
func (p *Pool) PrefetchRealtime(ctx context.Context, tickers []string) {
	for _, rs := range p.sources {
		batch, ok := rs.source.(BatchQuoteSource)
		if !ok || !rs.enabled {
			continue
		}
		quotes, err := batch.GetRealtimeBatch(ctx, tickers)
		if err != nil {
			continue
		}
		for t, q := range quotes {
			cache.SetJSON(ctx, p.cache, "quote:"+model.Canonical(t), q, quoteTTL)
		}
	}
}

func strictlyIncreasing(bars []model.Candle) bool {
	for i := 1; i < len(bars); i++ {
		if !bars[i].Date.After(bars[i-1].Date) {
			return false
		}
	}
	return true
}
