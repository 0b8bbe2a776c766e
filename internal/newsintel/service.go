package newsintel

import (
	"context"
	"time"

	"github.com/dsa-core/dsa-core/internal/logging"
	"github.com/dsa-core/dsa-core/internal/model"
)

// Service is the C4 News Service entry point: it fans a ticker out
// across configured dimensions and providers, falling back to the next
// provider on a 429 or transient failure, then dedups/ranks/truncates
// the merged result. If every provider fails it returns an empty
// NewsIntel with SearchFallback set rather than an error, since missing
// news must never block an analysis.
type Service struct {
	Providers  []Provider
	Fallback   Provider
	MaxAgeDays int
	Log        *logging.Logger
	cache      *intelCache
}

// NewService wires providers in priority order (typically Bocha, then
// Tavily, then SerpAPI) with the HTML scrape provider as the terminal
// fallback. maxAgeDays < 0 means "unconfigured" and falls back to 7;
// maxAgeDays == 0 is an explicit "discard everything" and is left as-is.
func NewService(providers []Provider, fallback Provider, maxAgeDays int, log *logging.Logger) *Service {
	if maxAgeDays < 0 {
		maxAgeDays = 7
	}
	return &Service{Providers: providers, Fallback: fallback, MaxAgeDays: maxAgeDays, Log: log, cache: newIntelCache()}
}

// Search runs the templated dimension set for a ticker and returns a
// merged, deduped NewsIntel. MaxAgeDays == 0 short-circuits to an empty
// result without hitting any provider, per the explicit "discard
// everything" boundary.
func (s *Service) Search(ctx context.Context, ticker, name string, isETF bool, dimensionLimit int) model.NewsIntel {
	if s.MaxAgeDays == 0 {
		return model.NewsIntel{Ticker: ticker}
	}
	dims := Dimensions(isETF, dimensionLimit)
	key := cacheKey(ticker, dims, time.Now())
	if cached, ok := s.cache.get(key); ok {
		return cached
	}

	var merged []model.NewsItem
	fallbackUsed := false
	for _, d := range dims {
		query := BuildQuery(d, ticker, name)
		items, usedFallback := s.searchOneDimension(ctx, query, d.Key)
		if usedFallback {
			fallbackUsed = true
		}
		merged = append(merged, items...)
	}

	ranked := DedupAndRank(merged, s.MaxAgeDays, model.MaxNewsItemsInBundle)
	intel := model.NewsIntel{Ticker: ticker, Items: ranked, SearchFallback: fallbackUsed}
	s.cache.set(key, intel)
	return intel
}

func (s *Service) searchOneDimension(ctx context.Context, query, dimKey string) ([]model.NewsItem, bool) {
	for _, p := range s.Providers {
		items, err := p.Search(ctx, query, s.MaxAgeDays)
		if err == nil {
			for i := range items {
				items[i].Dimension = dimKey
			}
			return items, false
		}
		if s.Log != nil {
			if isRateLimited(err) {
				s.Log.Warnf("newsintel: provider %s rate limited on dimension %s", p.ID(), dimKey)
			} else {
				s.Log.Warnf("newsintel: provider %s failed on dimension %s: %v", p.ID(), dimKey, err)
			}
		}
	}
	if s.Fallback == nil {
		return nil, true
	}
	items, err := s.Fallback.Search(ctx, query, s.MaxAgeDays)
	if err != nil {
		if s.Log != nil {
			s.Log.Warnf("newsintel: fallback scrape failed on dimension %s: %v", dimKey, err)
		}
		return nil, true
	}
	for i := range items {
		items[i].Dimension = dimKey
	}
	return items, true
}
