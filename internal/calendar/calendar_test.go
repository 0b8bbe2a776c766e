package calendar

import (
	"testing"
	"time"

	"github.com/dsa-core/dsa-core/internal/model"
)

func TestIsOpenWeekend(t *testing.T) {
	sat := time.Date(2026, 8, 8, 12, 0, 0, 0, time.UTC) // a Saturday
	if IsOpen(model.MarketUS, sat) {
		t.Fatal("expected weekend to be closed")
	}
}

func TestIsOpenFailsOpenOnUnknownDate(t *testing.T) {
	weekday := time.Date(2030, 3, 4, 12, 0, 0, 0, time.UTC) // a Monday, far future
	if !IsOpen(model.MarketCN, weekday) {
		t.Fatal("expected unknown weekday to fail open")
	}
}

func TestPartitionUnknownMarketFailsOpen(t *testing.T) {
	open := map[model.Market]bool{model.MarketCN: false, model.MarketUS: false, model.MarketHK: false}
	runnable, skipped := Partition([]string{"600519", "???"}, open)
	if len(runnable) != 1 || runnable[0] != "???" {
		t.Fatalf("expected unknown-market ticker to run, got runnable=%v skipped=%v", runnable, skipped)
	}
	if len(skipped) != 1 || skipped[0] != "600519" {
		t.Fatalf("expected 600519 skipped, got %v", skipped)
	}
}

func TestEffectiveRegionBoth(t *testing.T) {
	if got := EffectiveRegion("both", map[model.Market]bool{model.MarketCN: true, model.MarketUS: false}); got != "cn" {
		t.Fatalf("want cn, got %q", got)
	}
	if got := EffectiveRegion("both", map[model.Market]bool{model.MarketCN: false, model.MarketUS: false}); got != "" {
		t.Fatalf("want empty, got %q", got)
	}
}

func TestCanonicalIdempotent(t *testing.T) {
	cases := []string{"600519", " aapl ", "hk00700", "$SPX"}
	for _, c := range cases {
		once := model.Canonical(c)
		twice := model.Canonical(once)
		if once != twice {
			t.Fatalf("Canonical not idempotent for %q: %q vs %q", c, once, twice)
		}
	}
}
