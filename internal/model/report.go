package model

import "time"

// ReportMeta identifies and dates an AnalysisReport.
type ReportMeta struct {
	ID            int64  // primary key, globally unique, assigned by the store
	QueryID       string // groups reports from one batch run; not unique
	Ticker        string
	Name          string
	CreatedAt     time.Time
	CurrentPrice  float64
	ChangePct     float64
	ReportType    string // "detailed" | "summary"
	EngineVersion string
}

// ReportSummary is the LLM-authored narrative portion of a report.
type ReportSummary struct {
	SentimentScore   float64 // 0-100
	AnalysisSummary  string
	OperationAdvice  string
	TrendPrediction  string
	RiskAlerts       []string
}

// ReportStrategy carries optional numeric price targets. The LLM may
// dissent from current price ordering; that is not enforced here, only
// recorded in ReportSummary.RiskAlerts by the pipeline.
type ReportStrategy struct {
	IdealBuy     *float64
	SecondaryBuy *float64
	StopLoss     *float64
	TakeProfit   *float64
}

// ReportDetails carries raw audit trail data.
type ReportDetails struct {
	RawResult       string
	ContextSnapshot string
}

// AnalysisReport is the structured output of one pipeline run for one ticker.
type AnalysisReport struct {
	Meta     ReportMeta
	Summary  ReportSummary
	Strategy ReportStrategy
	Details  ReportDetails
}

// CheckStrategyOrdering returns a risk alert string when stop_loss <
// current_price < take_profit is violated; the caller appends it to
// RiskAlerts rather than rejecting the report, per spec.
func (r *AnalysisReport) CheckStrategyOrdering() string {
	s := r.Strategy
	price := r.Meta.CurrentPrice
	if s.StopLoss != nil && *s.StopLoss >= price {
		return "stop_loss is not below current price"
	}
	if s.TakeProfit != nil && *s.TakeProfit <= price {
		return "take_profit is not above current price"
	}
	return ""
}
