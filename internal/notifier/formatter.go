package notifier

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/dsa-core/dsa-core/internal/model"
)

// FormatReport renders an AnalysisReport into an HTML-flavored message
// body, in the same section-by-section layout the pack's
// FormatWeeklyReport uses for its trade signal reports.
func FormatReport(r *model.AnalysisReport) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("<b>%s (%s)</b> | %s\n\n", r.Meta.Name, r.Meta.Ticker, r.Meta.CreatedAt.Format("2006-01-02 15:04")))
	b.WriteString(fmt.Sprintf("current price: %s (%+.2f%%)\n\n", humanize.CommafWithDigits(r.Meta.CurrentPrice, 2), r.Meta.ChangePct))

	b.WriteString(fmt.Sprintf("sentiment score: %.0f/100\n", r.Summary.SentimentScore))
	b.WriteString(fmt.Sprintf("trend: %s\n", r.Summary.TrendPrediction))
	b.WriteString(fmt.Sprintf("advice: %s\n\n", r.Summary.OperationAdvice))
	b.WriteString(r.Summary.AnalysisSummary)
	b.WriteString("\n")

	if s := r.Strategy; s.IdealBuy != nil || s.SecondaryBuy != nil || s.StopLoss != nil || s.TakeProfit != nil {
		b.WriteString("\n<b>strategy</b>\n")
		if s.IdealBuy != nil {
			b.WriteString(fmt.Sprintf("  ideal buy: %s\n", humanize.CommafWithDigits(*s.IdealBuy, 2)))
		}
		if s.SecondaryBuy != nil {
			b.WriteString(fmt.Sprintf("  secondary buy: %s\n", humanize.CommafWithDigits(*s.SecondaryBuy, 2)))
		}
		if s.StopLoss != nil {
			b.WriteString(fmt.Sprintf("  stop loss: %s\n", humanize.CommafWithDigits(*s.StopLoss, 2)))
		}
		if s.TakeProfit != nil {
			b.WriteString(fmt.Sprintf("  take profit: %s\n", humanize.CommafWithDigits(*s.TakeProfit, 2)))
		}
	}

	if len(r.Summary.RiskAlerts) > 0 {
		b.WriteString("\n<b>risk alerts</b>\n")
		for _, alert := range r.Summary.RiskAlerts {
			b.WriteString("  - " + alert + "\n")
		}
	}

	return b.String()
}

// FormatMarketReview renders a whole-market summary across several
// reports, used by the market-review broadcast path.
func FormatMarketReview(reports []*model.AnalysisReport) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("<b>market review</b> | %d tickers\n\n", len(reports)))
	for _, r := range reports {
		b.WriteString(fmt.Sprintf("%s: %.0f/100, %s\n", r.Meta.Ticker, r.Summary.SentimentScore, r.Summary.TrendPrediction))
	}
	return b.String()
}
