package newsintel

import (
	"context"
	"testing"
	"time"

	"github.com/dsa-core/dsa-core/internal/model"
)

type stubProvider struct {
	id    string
	items []model.NewsItem
	err   error
}

func (s *stubProvider) ID() string { return s.id }
func (s *stubProvider) Search(_ context.Context, _ string, _ int) ([]model.NewsItem, error) {
	return s.items, s.err
}

func TestKeyPoolCooldownSkipsRateLimitedKey(t *testing.T) {
	p := NewKeyPool([]string{"a", "b"}, time.Hour)
	k1 := p.Take()
	p.Cooldown(k1)
	k2 := p.Take()
	if k2 == k1 {
		t.Fatalf("expected pool to skip cooled-down key %q", k1)
	}
}

func TestKeyPoolEmptyReturnsBlank(t *testing.T) {
	p := NewKeyPool(nil, time.Minute)
	if p.Take() != "" {
		t.Fatal("expected empty pool to return blank key")
	}
}

func TestDedupAndRankCollapsesFingerprints(t *testing.T) {
	items := []model.NewsItem{
		{Title: "Company beats earnings", Source: "a", PublishedAt: time.Now()},
		{Title: "  company   beats earnings  ", Source: "b", PublishedAt: time.Now()},
	}
	out := DedupAndRank(items, 7, 10)
	if len(out) != 1 {
		t.Fatalf("expected duplicate titles collapsed to 1 item, got %d", len(out))
	}
}

func TestDedupAndRankFiltersStaleItems(t *testing.T) {
	items := []model.NewsItem{
		{Title: "old news", PublishedAt: time.Now().AddDate(0, 0, -30)},
		{Title: "fresh news", PublishedAt: time.Now()},
	}
	out := DedupAndRank(items, 7, 10)
	if len(out) != 1 || out[0].Title != "fresh news" {
		t.Fatalf("expected only the fresh item to survive, got %+v", out)
	}
}

func TestServiceFallsThroughProvidersOnFailure(t *testing.T) {
	failing := &stubProvider{id: "p1", err: newRateLimited("boom")}
	working := &stubProvider{id: "p2", items: []model.NewsItem{{Title: "hit", PublishedAt: time.Now()}}}
	svc := NewService([]Provider{failing, working}, nil, 7, nil)
	intel := svc.Search(context.Background(), "AAPL", "Apple", false, 1)
	if len(intel.Items) != 1 || intel.Items[0].Title != "hit" {
		t.Fatalf("expected fallthrough to the second provider, got %+v", intel)
	}
	if intel.SearchFallback {
		t.Fatal("did not expect SearchFallback when a real provider succeeded")
	}
}

func TestServiceReturnsEmptyWithFallbackFlagWhenAllFail(t *testing.T) {
	failing := &stubProvider{id: "p1", err: newRateLimited("boom")}
	svc := NewService([]Provider{failing}, nil, 7, nil)
	intel := svc.Search(context.Background(), "AAPL", "Apple", false, 1)
	if len(intel.Items) != 0 {
		t.Fatalf("expected empty result, got %+v", intel.Items)
	}
	if !intel.SearchFallback {
		t.Fatal("expected SearchFallback true when every provider failed")
	}
}

func TestServiceCachesWithinSameDay(t *testing.T) {
	calls := 0
	counting := &countingProvider{stubProvider{id: "p1", items: []model.NewsItem{{Title: "x", PublishedAt: time.Now()}}}, &calls}
	svc := NewService([]Provider{counting}, nil, 7, nil)
	svc.Search(context.Background(), "AAPL", "Apple", false, 1)
	svc.Search(context.Background(), "AAPL", "Apple", false, 1)
	if calls != 1 {
		t.Fatalf("expected cache to avoid a second provider call, got %d calls", calls)
	}
}

type countingProvider struct {
	stubProvider
	calls *int
}

func (c *countingProvider) Search(ctx context.Context, q string, d int) ([]model.NewsItem, error) {
	*c.calls++
	return c.stubProvider.Search(ctx, q, d)
}

func TestETFDimensionsDiffer(t *testing.T) {
	stock := Dimensions(false, 5)
	etf := Dimensions(true, 5)
	if stock[0].Key == etf[0].Key {
		t.Fatal("expected ETF dimension templates to differ from stock templates")
	}
}
