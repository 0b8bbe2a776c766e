package model

import "time"

// NewsItem is a single ranked news result.
type NewsItem struct {
	Title       string
	Snippet     string
	URL         string
	PublishedAt time.Time
	Source      string
	Fingerprint string
	Relevance   float64
	Dimension   string // which search dimension produced this item
}

// NewsIntel is the ranked, deduplicated news bundle for one ticker.
type NewsIntel struct {
	Ticker         string
	Items          []NewsItem
	SearchFallback bool // true when, for at least one dimension, no keyed provider succeeded and the scrape fallback (if any) was used; Items may still be non-empty
}
