// Package pipeline is the C8 Analysis Pipeline: it wires the calendar
// gate, context assembler, indicator engine, LLM router, and
// persistence/notification stages into the single per-ticker run
// described by the original StockAnalysisPipeline.analyze_stock flow,
// reimplemented as a Go orchestration over interfaces instead of a
// direct dependency chain.
package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dsa-core/dsa-core/internal/model"
)

// ReportJSONSchema is the structured-output schema handed to the LLM
// router so providers that support constrained decoding (Gemini) return
// well-formed JSON on the first try; providers that don't still receive
// it as a strong instruction in the prompt.
var ReportJSONSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"sentiment_score":  map[string]interface{}{"type": "number"},
		"stock_name":       map[string]interface{}{"type": "string"},
		"analysis_summary": map[string]interface{}{"type": "string"},
		"operation_advice": map[string]interface{}{"type": "string"},
		"trend_prediction": map[string]interface{}{"type": "string"},
		"risk_alerts":      map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
		"ideal_buy":        map[string]interface{}{"type": "number"},
		"secondary_buy":    map[string]interface{}{"type": "number"},
		"stop_loss":        map[string]interface{}{"type": "number"},
		"take_profit":      map[string]interface{}{"type": "number"},
	},
	"required": []string{"sentiment_score", "analysis_summary", "operation_advice", "trend_prediction"},
}

// BuildPrompt renders the evidence bundle into the user-turn text handed
// to the LLM, matching the original pipeline's practice of embedding the
// technical snapshot, recent candles, and ranked news directly in the
// prompt rather than relying on tool calls for a plain (non-agent) run.
func BuildPrompt(b *model.EvidenceBundle, reportType string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Ticker: %s (%s), market=%s\n", b.Ticker, b.Name, b.Market)
	if b.Quote != nil {
		fmt.Fprintf(&sb, "Current price: %.2f (change %.2f%%, source=%s)\n", b.Quote.Price, b.Quote.ChangePct, b.Quote.SourceID)
	}
	t := b.Technical
	fmt.Fprintf(&sb, "Technicals: MA5=%.2f MA10=%.2f MA20=%.2f MACD(line=%.3f signal=%.3f hist=%.3f) RSI14=%.1f bias20=%.2f%% bullish=%v strong_trend=%v\n",
		t.MA5, t.MA10, t.MA20, t.MACD.Line, t.MACD.Signal, t.MACD.Histogram, t.RSI14, t.Bias20, t.BullishAlignment, t.StrongTrend)

	if len(b.Candles) > 0 {
		recent := b.Candles
		if len(recent) > 10 {
			recent = recent[len(recent)-10:]
		}
		sb.WriteString("Recent daily candles (date,open,high,low,close,volume):\n")
		for _, c := range recent {
			fmt.Fprintf(&sb, "%s,%.2f,%.2f,%.2f,%.2f,%.0f\n", c.Date.Format("2006-01-02"), c.Open, c.High, c.Low, c.Close, c.Volume)
		}
	}

	if len(b.News.Items) > 0 {
		sb.WriteString("Ranked recent news:\n")
		for _, n := range b.News.Items {
			fmt.Fprintf(&sb, "- [%s] %s: %s (%s)\n", n.Dimension, n.Title, n.Snippet, n.Source)
		}
	} else if b.News.SearchFallback {
		sb.WriteString("News search unavailable for this run; analyze on price/technicals alone.\n")
	}

	if b.PreviousReport != nil {
		fmt.Fprintf(&sb, "Previous report sentiment: %.0f, advice: %s\n", b.PreviousReport.Summary.SentimentScore, b.PreviousReport.Summary.OperationAdvice)
	}

	if reportType == "summary" {
		sb.WriteString("\nRespond with a concise summary-only analysis in the required JSON schema.")
	} else {
		sb.WriteString("\nRespond with a detailed analysis in the required JSON schema, including price targets when justified by the evidence.")
	}
	return sb.String()
}

// SystemInstruction is the fixed role/format instruction sent with every
// analysis call.
const SystemInstruction = `You are a disciplined equity research assistant analyzing one ticker at a time from the supplied price history, technical indicators, and news evidence. Respond ONLY with a single JSON object matching the given schema. Never fabricate news or price data not present in the evidence. Ground every claim in the supplied evidence.`

// rawReport mirrors ReportJSONSchema's field names for decoding.
type rawReport struct {
	SentimentScore  float64  `json:"sentiment_score"`
	StockName       string   `json:"stock_name"`
	AnalysisSummary string   `json:"analysis_summary"`
	OperationAdvice string   `json:"operation_advice"`
	TrendPrediction string   `json:"trend_prediction"`
	RiskAlerts      []string `json:"risk_alerts"`
	IdealBuy        *float64 `json:"ideal_buy"`
	SecondaryBuy    *float64 `json:"secondary_buy"`
	StopLoss        *float64 `json:"stop_loss"`
	TakeProfit      *float64 `json:"take_profit"`
}

// ParseReportJSON tolerantly extracts the JSON object from an LLM
// response (which sometimes wraps it in a markdown fence or prose) and
// decodes it into the report's Summary/Strategy fields. The returned
// name is the LLM-authoritative stock_name when the model supplied one,
// for the caller to backfill over whatever placeholder name was used
// while assembling evidence.
func ParseReportJSON(raw string) (model.ReportSummary, model.ReportStrategy, string, error) {
	extracted := extractJSONObject(raw)
	var r rawReport
	if err := json.Unmarshal([]byte(extracted), &r); err != nil {
		return model.ReportSummary{}, model.ReportStrategy{}, "", fmt.Errorf("parse report json: %w", err)
	}
	summary := model.ReportSummary{
		SentimentScore:  r.SentimentScore,
		AnalysisSummary: r.AnalysisSummary,
		OperationAdvice: r.OperationAdvice,
		TrendPrediction: r.TrendPrediction,
		RiskAlerts:      r.RiskAlerts,
	}
	strategy := model.ReportStrategy{
		IdealBuy: r.IdealBuy, SecondaryBuy: r.SecondaryBuy, StopLoss: r.StopLoss, TakeProfit: r.TakeProfit,
	}
	return summary, strategy, strings.TrimSpace(r.StockName), nil
}

// extractJSONObject finds the first balanced {...} span in text, so a
// response like "Here is my analysis:\n```json\n{...}\n```" still parses.
func extractJSONObject(text string) string {
	start := strings.Index(text, "{")
	if start < 0 {
		return text
	}
	depth := 0
	for i := start; i < len(text); i++ {
		switch text[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return text[start:]
}
