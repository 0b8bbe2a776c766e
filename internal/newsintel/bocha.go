package newsintel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dsa-core/dsa-core/internal/apperr"
	"github.com/dsa-core/dsa-core/internal/model"
)

// BochaProvider queries the Bocha AI web-search API, the default
// Chinese-market search backend.
type BochaProvider struct {
	Keys   *KeyPool
	Client *http.Client
}

func NewBochaProvider(keys []string) *BochaProvider {
	return &BochaProvider{Keys: NewKeyPool(keys, 60*time.Second), Client: &http.Client{Timeout: 15 * time.Second}}
}

func (b *BochaProvider) ID() string { return "bocha" }

type bochaResponse struct {
	Data struct {
		WebPages struct {
			Value []struct {
				Name          string `json:"name"`
				Snippet       string `json:"snippet"`
				URL           string `json:"url"`
				SiteName      string `json:"siteName"`
				DatePublished string `json:"datePublished"`
			} `json:"value"`
		} `json:"webPages"`
	} `json:"data"`
}

func (b *BochaProvider) Search(ctx context.Context, query string, maxAgeDays int) ([]model.NewsItem, error) {
	key := b.Keys.Take()
	if key == "" {
		return nil, apperr.SourceExhausted("bocha: no usable key", nil)
	}
	body := map[string]interface{}{"query": query, "freshness": freshnessFor(maxAgeDays), "count": 10}
	buf, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, "POST", "https://api.bochaai.com/v1/web-search", bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+key)
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.Client.Do(req)
	if err != nil {
		return nil, apperr.SourceTransient("bocha request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests {
		b.Keys.Cooldown(key)
		return nil, newRateLimited("bocha: rate limited")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperr.SourceTransient(fmt.Sprintf("bocha status %d", resp.StatusCode), nil)
	}
	var parsed bochaResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, apperr.SourceTransient("bocha malformed response", err)
	}
	items := make([]model.NewsItem, 0, len(parsed.Data.WebPages.Value))
	for _, v := range parsed.Data.WebPages.Value {
		items = append(items, model.NewsItem{
			Title: v.Name, Snippet: v.Snippet, URL: v.URL, Source: v.SiteName,
			PublishedAt: parseFlexDate(v.DatePublished),
		})
	}
	return items, nil
}

func freshnessFor(maxAgeDays int) string {
	switch {
	case maxAgeDays <= 1:
		return "oneDay"
	case maxAgeDays <= 7:
		return "oneWeek"
	case maxAgeDays <= 31:
		return "oneMonth"
	default:
		return "noLimit"
	}
}

func parseFlexDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
