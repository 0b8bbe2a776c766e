package indicator

import "github.com/dsa-core/dsa-core/internal/model"

// RSI computes the Wilder-smoothed relative strength index over the
// given period, ported from the teacher's calculator.CalculateRSI.
// Returns 50.0 (neutral) when there isn't enough history rather than
// erroring, since RSI feeds a best-effort snapshot rather than a
// hard-required field.
func RSI(closes []float64, period int) float64 {
	if period <= 0 || len(closes) < period+1 {
		return 50.0
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	for i := period + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - 100.0/(1.0+rs)
}

// Bias computes the percentage deviation of the current price from an MA.
func Bias(price, ma float64) float64 {
	if ma == 0 {
		return 0
	}
	return (price - ma) / ma * 100
}

// BullishAlignment reports whether MA5 > MA10 > MA20, the short-term
// bullish stacking rule the teacher's scoreTrendTracker checks at the
// weekly/50w scale, adapted here to the daily 5/10/20 triplet.
func BullishAlignment(ma5, ma10, ma20 float64) bool {
	return ma5 > ma10 && ma10 > ma20
}

// TrendStrength scores 0-100 how convincingly the moving averages are
// stacked and separated, generalizing the teacher's bull/bear alignment
// check in strategy.scoreTrendTracker into a continuous score usable to
// gate the strong-trend bias-band widening rule.
func TrendStrength(ma5, ma10, ma20 float64) float64 {
	if ma20 == 0 {
		return 0
	}
	spread5_10 := (ma5 - ma10) / ma20 * 100
	spread10_20 := (ma10 - ma20) / ma20 * 100
	score := 50 + (spread5_10+spread10_20)*5
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

// FactorScores reproduces the teacher's weighted-factor scoring panel
// (strategy.score*) against the daily technical snapshot instead of the
// weekly/MA200 index-level indicators it was written for.
func FactorScores(snap model.TechnicalSnapshot, price float64) []model.FactorScore {
	scores := make([]model.FactorScore, 0, 3)

	bias := Bias(price, snap.MA20)
	var biasScore float64
	switch {
	case bias <= -10:
		biasScore = 2.0
	case bias <= -5:
		biasScore = 1.0
	case bias <= 0:
		biasScore = 0.5
	case bias <= 5:
		biasScore = 0
	case bias <= 10:
		biasScore = -1.0
	default:
		biasScore = -2.0
	}
	scores = append(scores, model.FactorScore{
		Name: "MA20偏离度", RawScore: biasScore, Weight: 0.4, Weighted: biasScore * 0.4,
		Commentary: fmtPct("偏离 %+.1f%%", bias),
	})

	var rsiScore float64
	switch {
	case snap.RSI14 <= 30:
		rsiScore = 1.5
	case snap.RSI14 <= 45:
		rsiScore = 0.5
	case snap.RSI14 <= 55:
		rsiScore = 0
	case snap.RSI14 <= 70:
		rsiScore = -0.5
	default:
		rsiScore = -1.5
	}
	scores = append(scores, model.FactorScore{
		Name: "RSI14", RawScore: rsiScore, Weight: 0.35, Weighted: rsiScore * 0.35,
		Commentary: fmtPct("RSI=%.0f", snap.RSI14),
	})

	var trendScore float64
	commentary := "震荡"
	switch {
	case snap.BullishAlignment && snap.StrongTrend:
		trendScore = 1.5
		commentary = "多头排列+强趋势"
	case snap.BullishAlignment:
		trendScore = 1.0
		commentary = "多头排列"
	default:
		trendScore = 0
	}
	scores = append(scores, model.FactorScore{
		Name: "趋势排列", RawScore: trendScore, Weight: 0.25, Weighted: trendScore * 0.25,
		Commentary: commentary,
	})

	return scores
}
