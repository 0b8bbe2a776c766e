package indicator

import (
	"testing"
	"time"

	"github.com/dsa-core/dsa-core/internal/model"
)

func makeTrendingBars(n int, start, step float64) []model.Candle {
	bars := make([]model.Candle, n)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		price := start + step*float64(i)
		bars[i] = model.Candle{Date: base.AddDate(0, 0, i), Open: price, High: price * 1.01, Low: price * 0.99, Close: price, Volume: 1000}
	}
	return bars
}

func TestSMAInsufficientData(t *testing.T) {
	if _, err := SMA([]float64{1, 2}, 5); err == nil {
		t.Fatal("expected error for insufficient data")
	}
}

func TestRSINeutralOnInsufficientData(t *testing.T) {
	if rsi := RSI([]float64{1, 2, 3}, 14); rsi != 50.0 {
		t.Fatalf("expected neutral RSI 50.0, got %v", rsi)
	}
}

func TestRSIAllGainsIsHundred(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = float64(i) + 1
	}
	if rsi := RSI(closes, 14); rsi != 100.0 {
		t.Fatalf("expected RSI 100 on monotonic gains, got %v", rsi)
	}
}

func TestBullishAlignment(t *testing.T) {
	if !BullishAlignment(30, 20, 10) {
		t.Fatal("expected bullish alignment when ma5 > ma10 > ma20")
	}
	if BullishAlignment(10, 20, 30) {
		t.Fatal("expected no bullish alignment on descending stack")
	}
}

func TestSnapshotStrongTrendWidensBias(t *testing.T) {
	bars := makeTrendingBars(40, 100, 1.0)
	snap := Snapshot(bars, nil, false)
	if !snap.BullishAlignment {
		t.Fatal("expected bullish alignment on a steady uptrend")
	}
	base := 8.0
	widened := EffectiveBiasThreshold(base, snap)
	if snap.StrongTrend && widened <= base {
		t.Fatalf("expected widened threshold under strong trend, got %v", widened)
	}
	if !snap.StrongTrend && widened != base {
		t.Fatalf("expected threshold unchanged when trend isn't strong")
	}
}

func TestSnapshotVirtualCandleUsesLivePrice(t *testing.T) {
	bars := makeTrendingBars(30, 100, 0.5)
	last := bars[len(bars)-1]
	quote := &model.Quote{Price: last.Close + 5, Timestamp: last.Date}
	snap := Snapshot(bars, quote, true)
	if !snap.UsedVirtualCandle {
		t.Fatal("expected virtual candle to be used for a same-day quote")
	}
}

func TestSnapshotSkipsVirtualCandleWhenDisabled(t *testing.T) {
	bars := makeTrendingBars(30, 100, 0.5)
	last := bars[len(bars)-1]
	quote := &model.Quote{Price: last.Close + 5, Timestamp: last.Date}
	snap := Snapshot(bars, quote, false)
	if snap.UsedVirtualCandle {
		t.Fatal("virtual candle should not be applied when disabled")
	}
}

func TestFactorScoresSumsWeightsToOne(t *testing.T) {
	bars := makeTrendingBars(30, 100, 0.2)
	snap := Snapshot(bars, nil, false)
	scores := FactorScores(snap, bars[len(bars)-1].Close)
	var total float64
	for _, s := range scores {
		total += s.Weight
	}
	if total < 0.99 || total > 1.01 {
		t.Fatalf("expected factor weights to sum to ~1.0, got %v", total)
	}
}
