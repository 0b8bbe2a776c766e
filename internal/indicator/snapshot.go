package indicator

import (
	"github.com/dsa-core/dsa-core/internal/model"
)

// StrongTrendThreshold is the trend-strength score at or above which,
// with bullish alignment, the bias band widens (see EffectiveBiasThreshold).
const StrongTrendThreshold = 70.0

// BiasBandMultiplier is applied to the default alert threshold when
// bullish alignment holds and trend strength clears StrongTrendThreshold,
// so a stock riding a strong uptrend doesn't trip an overbought alert on
// every ordinary pullback.
const BiasBandMultiplier = 1.5

// Snapshot builds the technical indicator set for a ticker from its
// daily candle history. If quote is non-nil and same-day, a synthetic
// "virtual candle" is appended so the moving averages reflect the live
// price rather than lagging by one day until the close prints.
func Snapshot(bars []model.Candle, quote *model.Quote, enableVirtualCandle bool) model.TechnicalSnapshot {
	working := bars
	usedVirtual := false
	if enableVirtualCandle && quote != nil && len(bars) > 0 && quote.IsIntraday(bars[len(bars)-1].Date) {
		last := bars[len(bars)-1]
		virtual := model.Candle{
			Date: quote.Timestamp, Open: last.Close, High: quote.Price, Low: quote.Price,
			Close: quote.Price, Volume: last.Volume,
		}
		if virtual.High < virtual.Open {
			virtual.High = virtual.Open
		}
		if virtual.Low > virtual.Open {
			virtual.Low = virtual.Open
		}
		working = append(append([]model.Candle{}, bars...), virtual)
		usedVirtual = true
	}

	closes := ExtractCloses(working)
	snap := model.TechnicalSnapshot{UsedVirtualCandle: usedVirtual}

	if ma, err := SMA(closes, 5); err == nil {
		snap.MA5 = ma
	}
	if ma, err := SMA(closes, 10); err == nil {
		snap.MA10 = ma
	}
	if ma, err := SMA(closes, 20); err == nil {
		snap.MA20 = ma
	}

	line, signal, hist := MACD(closes, 12, 26, 9)
	snap.MACD = model.MACD{Line: line, Signal: signal, Histogram: hist}
	snap.RSI14 = RSI(closes, 14)

	price := 0.0
	if len(closes) > 0 {
		price = closes[len(closes)-1]
	}
	snap.Bias20 = Bias(price, snap.MA20)
	snap.BullishAlignment = BullishAlignment(snap.MA5, snap.MA10, snap.MA20)
	snap.TrendStrength = TrendStrength(snap.MA5, snap.MA10, snap.MA20)
	snap.StrongTrend = snap.BullishAlignment && snap.TrendStrength >= StrongTrendThreshold

	return snap
}

// EffectiveBiasThreshold widens the configured alert threshold under a
// confirmed strong uptrend, per StrongTrend/BiasBandMultiplier.
func EffectiveBiasThreshold(base float64, snap model.TechnicalSnapshot) float64 {
	if snap.StrongTrend {
		return base * BiasBandMultiplier
	}
	return base
}
