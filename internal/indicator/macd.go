package indicator

import "fmt"

func fmtPct(format string, v float64) string {
	return fmt.Sprintf(format, v)
}

// MACD computes the standard 12/26/9 moving-average-convergence-divergence
// triple from a close series. Returns zeros when there are fewer than
// slow+signalPeriod closes, too few to seed the slow EMA and then the
// signal line.
func MACD(closes []float64, fast, slow, signalPeriod int) (line, signal, histogram float64) {
	if len(closes) < slow+signalPeriod {
		return 0, 0, 0
	}
	emaFast := EMA(closes, fast)
	emaSlow := EMA(closes, slow)

	macdSeries := make([]float64, len(closes))
	for i := range closes {
		macdSeries[i] = emaFast[i] - emaSlow[i]
	}
	// signal is the EMA of the MACD series over its valid tail (post slow-1 index)
	valid := macdSeries[slow-1:]
	signalSeries := EMA(valid, signalPeriod)

	line = macdSeries[len(macdSeries)-1]
	signal = signalSeries[len(signalSeries)-1]
	histogram = line - signal
	return line, signal, histogram
}
