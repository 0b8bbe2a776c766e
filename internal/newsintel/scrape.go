package newsintel

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"

	"github.com/dsa-core/dsa-core/internal/apperr"
	"github.com/dsa-core/dsa-core/internal/model"
)

// ScrapeProvider is the last-resort fallback when every keyed search
// provider is exhausted or unconfigured: it hits a public search results
// page directly and extracts result links with goquery, converting each
// snippet to markdown so it reads consistently with API-sourced items.
type ScrapeProvider struct {
	Client *http.Client
}

func NewScrapeProvider() *ScrapeProvider {
	return &ScrapeProvider{Client: &http.Client{Timeout: 15 * time.Second}}
}

func (s *ScrapeProvider) ID() string { return "html_scrape" }

func (s *ScrapeProvider) Search(ctx context.Context, query string, maxAgeDays int) ([]model.NewsItem, error) {
	endpoint := "https://www.bing.com/news/search?q=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; dsactl-newsintel/1.0)")

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, apperr.SourceTransient("scrape request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, apperr.SourceTransient(fmt.Sprintf("scrape status %d", resp.StatusCode), nil)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, apperr.SourceTransient("scrape malformed html", err)
	}

	converter := md.NewConverter("", true, nil)
	var items []model.NewsItem
	doc.Find(".news-card").Each(func(_ int, sel *goquery.Selection) {
		titleSel := sel.Find("a.title")
		title := strings.TrimSpace(titleSel.Text())
		href, _ := titleSel.Attr("href")
		if title == "" || href == "" {
			return
		}
		snippetHTML, _ := sel.Find(".snippet").Html()
		snippet, convErr := converter.ConvertString(snippetHTML)
		if convErr != nil {
			snippet = strings.TrimSpace(sel.Find(".snippet").Text())
		}
		source := strings.TrimSpace(sel.Find(".source").Text())
		items = append(items, model.NewsItem{
			Title: title, Snippet: strings.TrimSpace(snippet), URL: href,
			Source: source, PublishedAt: time.Now(),
		})
	})
	return items, nil
}
