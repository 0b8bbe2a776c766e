package fetcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dsa-core/dsa-core/internal/cache"
	"github.com/dsa-core/dsa-core/internal/logging"
	"github.com/dsa-core/dsa-core/internal/model"
)

func newTestPool(sources ...Source) *Pool {
	return NewPool(sources, nil, cache.NewMemory(), logging.New("error"))
}

func TestGetHistoryStrictlyIncreasing(t *testing.T) {
	mock := &MockSource{Markets: []model.Market{model.MarketCN}}
	p := newTestPool(mock)
	bars, err := p.GetHistory(context.Background(), "600519", 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 1; i < len(bars); i++ {
		if !bars[i].Date.After(bars[i-1].Date) {
			t.Fatalf("candles not strictly increasing at %d", i)
		}
	}
}

func TestGetHistoryAllSourcesFailed(t *testing.T) {
	mock := &MockSource{Markets: []model.Market{model.MarketCN}, FailAfter: 0, FailErr: errors.New("boom")}
	p := newTestPool(mock)
	_, err := p.GetHistory(context.Background(), "600519", 30)
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestMarketUnsupportedShortCircuits(t *testing.T) {
	mock := &MockSource{Markets: []model.Market{model.MarketUS}}
	p := newTestPool(mock)
	_, err := p.GetHistory(context.Background(), "600519", 30)
	if err == nil {
		t.Fatal("expected MarketUnsupported error")
	}
}

func TestCacheHitAvoidsSecondCall(t *testing.T) {
	mock := &MockSource{Markets: []model.Market{model.MarketCN}}
	p := newTestPool(mock)
	ctx := context.Background()
	if _, err := p.GetRealtime(ctx, "600519"); err != nil {
		t.Fatal(err)
	}
	before := mock.calls
	if _, err := p.GetRealtime(ctx, "600519"); err != nil {
		t.Fatal(err)
	}
	if mock.calls != before {
		t.Fatalf("expected cache hit to avoid a second source call, calls went %d -> %d", before, mock.calls)
	}
}

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	b := NewCircuitBreaker(3, time.Hour)
	for i := 0; i < 3; i++ {
		if !b.Allow() {
			t.Fatalf("expected breaker to allow attempt %d", i)
		}
		b.RecordFailure()
	}
	if b.Allow() {
		t.Fatal("expected breaker to be open after 3 consecutive failures")
	}
}

func TestCircuitBreakerHalfOpenCloses(t *testing.T) {
	b := NewCircuitBreaker(1, time.Millisecond)
	b.RecordFailure()
	if b.Allow() {
		t.Fatal("expected breaker open immediately")
	}
	time.Sleep(2 * time.Millisecond)
	if !b.Allow() {
		t.Fatal("expected half-open probe to be allowed")
	}
	b.RecordSuccess()
	if !b.Allow() {
		t.Fatal("expected breaker closed after success")
	}
}

func TestRoutingRespectsMarket(t *testing.T) {
	cn := &MockSource{Markets: []model.Market{model.MarketCN}}
	us := &MockSource{Markets: []model.Market{model.MarketUS}}
	p := newTestPool(cn, us)
	cands := p.candidates(model.MarketCN, "600519")
	if len(cands) != 1 || cands[0].source != cn {
		t.Fatalf("expected only cn source, got %v", cands)
	}
}
