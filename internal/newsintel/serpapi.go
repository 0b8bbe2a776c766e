package newsintel

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/dsa-core/dsa-core/internal/apperr"
	"github.com/dsa-core/dsa-core/internal/model"
)

// SerpAPIProvider queries SerpAPI's Google News engine, used as a
// last-resort provider ahead of the HTML scrape fallback.
type SerpAPIProvider struct {
	Keys   *KeyPool
	Client *http.Client
}

func NewSerpAPIProvider(keys []string) *SerpAPIProvider {
	return &SerpAPIProvider{Keys: NewKeyPool(keys, 60*time.Second), Client: &http.Client{Timeout: 15 * time.Second}}
}

func (s *SerpAPIProvider) ID() string { return "serpapi" }

type serpapiResponse struct {
	NewsResults []struct {
		Title   string `json:"title"`
		Snippet string `json:"snippet"`
		Link    string `json:"link"`
		Source  string `json:"source"`
		Date    string `json:"date"`
	} `json:"news_results"`
}

func (s *SerpAPIProvider) Search(ctx context.Context, query string, maxAgeDays int) ([]model.NewsItem, error) {
	key := s.Keys.Take()
	if key == "" {
		return nil, apperr.SourceExhausted("serpapi: no usable key", nil)
	}
	endpoint := fmt.Sprintf("https://serpapi.com/search.json?engine=google_news&q=%s&api_key=%s",
		url.QueryEscape(query), key)
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, apperr.SourceTransient("serpapi request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests {
		s.Keys.Cooldown(key)
		return nil, newRateLimited("serpapi: rate limited")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperr.SourceTransient(fmt.Sprintf("serpapi status %d", resp.StatusCode), nil)
	}
	var parsed serpapiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, apperr.SourceTransient("serpapi malformed response", err)
	}
	items := make([]model.NewsItem, 0, len(parsed.NewsResults))
	for _, r := range parsed.NewsResults {
		items = append(items, model.NewsItem{
			Title: r.Title, Snippet: r.Snippet, URL: r.Link, Source: r.Source,
			PublishedAt: parseFlexDate(r.Date),
		})
	}
	return items, nil
}
