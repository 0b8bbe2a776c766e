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

// TavilyProvider queries the Tavily search API. The Service tries its
// providers in the order given for every market; the default wiring
// places Tavily after Bocha.
type TavilyProvider struct {
	Keys   *KeyPool
	Client *http.Client
}

func NewTavilyProvider(keys []string) *TavilyProvider {
	return &TavilyProvider{Keys: NewKeyPool(keys, 60*time.Second), Client: &http.Client{Timeout: 15 * time.Second}}
}

func (t *TavilyProvider) ID() string { return "tavily" }

type tavilyResponse struct {
	Results []struct {
		Title       string  `json:"title"`
		Content     string  `json:"content"`
		URL         string  `json:"url"`
		Score       float64 `json:"score"`
		PublishedAt string  `json:"published_date"`
	} `json:"results"`
}

func (t *TavilyProvider) Search(ctx context.Context, query string, maxAgeDays int) ([]model.NewsItem, error) {
	key := t.Keys.Take()
	if key == "" {
		return nil, apperr.SourceExhausted("tavily: no usable key", nil)
	}
	body := map[string]interface{}{
		"api_key": key, "query": query, "search_depth": "basic",
		"days": maxAgeDays, "max_results": 10, "include_answer": false,
	}
	buf, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, "POST", "https://api.tavily.com/search", bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.Client.Do(req)
	if err != nil {
		return nil, apperr.SourceTransient("tavily request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests {
		t.Keys.Cooldown(key)
		return nil, newRateLimited("tavily: rate limited")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperr.SourceTransient(fmt.Sprintf("tavily status %d", resp.StatusCode), nil)
	}
	var parsed tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, apperr.SourceTransient("tavily malformed response", err)
	}
	items := make([]model.NewsItem, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		items = append(items, model.NewsItem{
			Title: r.Title, Snippet: r.Content, URL: r.URL, Source: "tavily",
			Relevance: r.Score, PublishedAt: parseFlexDate(r.PublishedAt),
		})
	}
	return items, nil
}
