// Package evidence is the C7 Context Assembler: it fans out across the
// fetcher pool and news service in parallel and folds the results into
// one EvidenceBundle per ticker, grounded on the teacher's concurrent
// collector.Collect pattern generalized from a single fixed index to an
// arbitrary ticker with graceful per-source degradation.
package evidence

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dsa-core/dsa-core/internal/apperr"
	"github.com/dsa-core/dsa-core/internal/fetcher"
	"github.com/dsa-core/dsa-core/internal/indicator"
	"github.com/dsa-core/dsa-core/internal/logging"
	"github.com/dsa-core/dsa-core/internal/model"
	"github.com/dsa-core/dsa-core/internal/newsintel"
)

// HistoryDays is how much daily history is requested per ticker; enough
// for MA20/MACD(26) to have a warmed-up window.
const HistoryDays = 260

// Assembler builds an EvidenceBundle for a ticker by combining the C3
// fetcher pool, C4 news service, and C6 indicator engine.
type Assembler struct {
	Fetcher   *fetcher.Pool
	News      *newsintel.Service
	Log       *logging.Logger
	VirtualCandle bool
}

func New(fp *fetcher.Pool, news *newsintel.Service, virtualCandle bool, log *logging.Logger) *Assembler {
	return &Assembler{Fetcher: fp, News: news, VirtualCandle: virtualCandle, Log: log}
}

// Assemble runs history, realtime quote, name resolution, and news
// search concurrently. A history failure is fatal for the ticker (there
// is nothing to analyze without price data); a realtime failure
// degrades to "use the last close" instead of failing the whole bundle;
// a news failure degrades to an empty NewsIntel with SearchFallback set.
func (a *Assembler) Assemble(ctx context.Context, ticker string, previous *model.AnalysisReport) (*model.EvidenceBundle, error) {
	var (
		candles []model.Candle
		quote   model.Quote
		name    string
		news    model.NewsIntel
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		bars, err := a.Fetcher.GetHistory(gctx, ticker, HistoryDays)
		if err != nil {
			return fmt.Errorf("history fetch failed for %s: %w", ticker, err)
		}
		candles = bars
		return nil
	})

	g.Go(func() error {
		q, err := a.Fetcher.GetRealtime(gctx, ticker)
		if err != nil {
			if a.Log != nil {
				a.Log.Warnf("evidence: realtime quote unavailable for %s, falling back to last close: %v", ticker, err)
			}
			return nil
		}
		quote = q
		return nil
	})

	nameCh := make(chan string, 1)
	g.Go(func() error {
		n, err := a.Fetcher.GetName(gctx, ticker)
		if err != nil {
			n = ticker
		}
		name = n
		nameCh <- n
		return nil
	})

	g.Go(func() error {
		var resolvedName string
		select {
		case resolvedName = <-nameCh:
		case <-gctx.Done():
			return nil
		}
		news = a.News.Search(gctx, ticker, resolvedName, model.IsETF(ticker), newsintel.MaxSearchDimensions)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, apperr.SourceExhausted(err.Error(), err)
	}

	if quote.Price == 0 && len(candles) > 0 {
		last := candles[len(candles)-1]
		quote = model.Quote{Ticker: ticker, Price: last.Close, Timestamp: last.Date, SourceID: "last_close"}
	}

	var quotePtr *model.Quote
	if quote.Price != 0 {
		quotePtr = &quote
	}

	snapshot := indicator.Snapshot(candles, quotePtr, a.VirtualCandle)

	bundle := &model.EvidenceBundle{
		Ticker: ticker, Name: name, Market: model.InferMarket(ticker),
		Quote: quotePtr, Candles: candles, Technical: snapshot, News: news,
		PreviousReport: previous, AssembledAt: time.Now(),
	}
	bundle.Truncate()
	return bundle, nil
}
