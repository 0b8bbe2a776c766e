package model

import "time"

// EvidenceBundle is the assembled input handed to the LLM (or the agent's
// first turn) for one ticker.
type EvidenceBundle struct {
	Ticker          string
	Name            string
	Market          Market
	Quote           *Quote // live quote, or one built from the last close (SourceID "last_close") when realtime failed; nil only when no price is available
	Candles         []Candle
	Technical       TechnicalSnapshot
	News            NewsIntel
	PreviousReport  *AnalysisReport // optional context from the last run
	AssembledAt     time.Time
	Truncated       []string // names of fields truncated to fit the size budget
}

// MaxCandlesInBundle bounds how many recent candles are embedded in the
// bundle; older candles are dropped and the truncation is recorded.
const MaxCandlesInBundle = 90

// MaxNewsItemsInBundle bounds how many news items are embedded.
const MaxNewsItemsInBundle = 15

// Truncate trims oversized fields in place and records which ones were
// cut, per spec's "size-bounded; oversized fields are truncated with a
// recorded marker" invariant.
func (b *EvidenceBundle) Truncate() {
	if len(b.Candles) > MaxCandlesInBundle {
		b.Candles = b.Candles[len(b.Candles)-MaxCandlesInBundle:]
		b.Truncated = append(b.Truncated, "candles")
	}
	if len(b.News.Items) > MaxNewsItemsInBundle {
		b.News.Items = b.News.Items[:MaxNewsItemsInBundle]
		b.Truncated = append(b.Truncated, "news")
	}
}
