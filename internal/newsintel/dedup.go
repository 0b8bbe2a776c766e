package newsintel

import (
	"crypto/sha1"
	"encoding/hex"
	"sort"
	"strings"
	"time"

	"github.com/dsa-core/dsa-core/internal/model"
)

// Fingerprint derives a stable dedup key by hashing an item's normalized
// title (lower-cased, whitespace collapsed) and normalized URL together.
// Two items collapse only when both match; the same story under a
// different URL, or the same URL under a different title, gets a
// distinct fingerprint.
func Fingerprint(item model.NewsItem) string {
	title := strings.ToLower(strings.TrimSpace(item.Title))
	title = strings.Join(strings.Fields(title), " ")
	url := strings.ToLower(strings.TrimSpace(item.URL))
	sum := sha1.Sum([]byte(title + "|" + url))
	return hex.EncodeToString(sum[:8])
}

// perDimensionCap bounds how many deduped items survive from a single
// search dimension before the merged set is ranked and capped overall,
// so one prolific dimension can't crowd out the others.
const perDimensionCap = 5

// DedupAndRank fingerprints items, drops anything older than maxAgeDays
// (items with a zero PublishedAt are kept, since some providers don't
// return a reliable date), truncates each dimension's contribution to
// perDimensionCap, then returns the highest-relevance items overall up
// to limit, most recent first among ties.
func DedupAndRank(items []model.NewsItem, maxAgeDays, limit int) []model.NewsItem {
	seen := make(map[string]bool, len(items))
	cutoff := time.Now().AddDate(0, 0, -maxAgeDays)
	byDim := make(map[string][]model.NewsItem)
	for _, it := range items {
		if !it.PublishedAt.IsZero() && it.PublishedAt.Before(cutoff) {
			continue
		}
		fp := Fingerprint(it)
		if seen[fp] {
			continue
		}
		seen[fp] = true
		it.Fingerprint = fp
		byDim[it.Dimension] = append(byDim[it.Dimension], it)
	}

	out := make([]model.NewsItem, 0, len(items))
	for _, dimItems := range byDim {
		sortByRank(dimItems)
		if len(dimItems) > perDimensionCap {
			dimItems = dimItems[:perDimensionCap]
		}
		out = append(out, dimItems...)
	}

	sortByRank(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func sortByRank(items []model.NewsItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Relevance != items[j].Relevance {
			return items[i].Relevance > items[j].Relevance
		}
		return items[i].PublishedAt.After(items[j].PublishedAt)
	})
}
