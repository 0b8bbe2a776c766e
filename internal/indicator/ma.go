// Package indicator is the C6 Technical Indicator Engine: pure functions
// over a candle series, no I/O. Generalizes the teacher's
// internal/calculator (MA200/MA20w/MA50w, RSI, 52w/30d range, sized for
// one fixed weekly-DCA index) into the MA5/10/20, MACD, RSI14, bias%, and
// bullish-alignment set spec.md requires per ticker.
package indicator

import (
	"errors"

	"github.com/dsa-core/dsa-core/internal/model"
)

// SMA computes the simple moving average of the last `period` closes.
func SMA(closes []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(closes) < period {
		return 0, errors.New("not enough data for SMA")
	}
	sum := 0.0
	for i := len(closes) - period; i < len(closes); i++ {
		sum += closes[i]
	}
	return sum / float64(period), nil
}

// EMA computes the exponential moving average series over closes with the
// given period; the first value seeds from an SMA of the first `period` points.
func EMA(closes []float64, period int) []float64 {
	if len(closes) == 0 || period <= 0 {
		return nil
	}
	out := make([]float64, len(closes))
	k := 2.0 / float64(period+1)
	seed := 0.0
	n := period
	if n > len(closes) {
		n = len(closes)
	}
	for i := 0; i < n; i++ {
		seed += closes[i]
	}
	seed /= float64(n)
	out[n-1] = seed
	for i := n; i < len(closes); i++ {
		out[i] = closes[i]*k + out[i-1]*(1-k)
	}
	return out
}

// ExtractCloses pulls the Close field out of a candle series.
func ExtractCloses(bars []model.Candle) []float64 {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return closes
}
