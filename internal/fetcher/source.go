// Package fetcher implements the Data Fetcher Pool (C3): uniform access
// to historical candles, realtime quotes, and human-readable names across
// heterogeneous third-party sources, with priority routing, circuit
// breaking, and caching. Generalizes the teacher's internal/collector
// (a single Fetcher interface with two implementations selected by
// config) into a Pool of named, prioritized, market-scoped sources.
package fetcher

import (
	"context"

	"github.com/dsa-core/dsa-core/internal/model"
)

// Source is the capability interface every vendor adapter implements.
// A small adapter per vendor implements this so the rest of the module
// never sees provider-specific method signatures, per spec.md section 9.
type Source interface {
	ID() string
	Priority() int
	SupportsMarket(m model.Market) bool
	GetHistory(ctx context.Context, ticker string, days int) ([]model.Candle, error)
	GetRealtime(ctx context.Context, ticker string) (model.Quote, error)
	GetName(ctx context.Context, ticker string) (string, error)
}

// BatchQuoteSource is implemented by sources that can fetch quotes for
// many tickers in a single call; the pool uses this for prefetch when
// available, per spec's "batch prefetch is supported" clause.
type BatchQuoteSource interface {
	GetRealtimeBatch(ctx context.Context, tickers []string) (map[string]model.Quote, error)
}
