package agent

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/dsa-core/dsa-core/internal/evidence"
	"github.com/dsa-core/dsa-core/internal/fetcher"
	"github.com/dsa-core/dsa-core/internal/indicator"
	"github.com/dsa-core/dsa-core/internal/newsintel"
)

func stringArg(args map[string]interface{}, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func intArg(args map[string]interface{}, key string, def int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return def
	}
}

// historyTool wraps the C3 fetcher pool as the get_daily_history tool.
type historyTool struct{ pool *fetcher.Pool }

func NewHistoryTool(pool *fetcher.Pool) Tool { return &historyTool{pool: pool} }

func (t *historyTool) Name() string        { return "get_daily_history" }
func (t *historyTool) Description() string { return "Fetch recent daily OHLCV candles for a ticker" }
func (t *historyTool) Schema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"ticker": map[string]interface{}{"type": "string"},
			"days":   map[string]interface{}{"type": "integer"},
		},
		"required": []string{"ticker"},
	}
}
func (t *historyTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	ticker := stringArg(args, "ticker")
	days := intArg(args, "days", 60)
	bars, err := t.pool.GetHistory(ctx, ticker, days)
	if err != nil {
		return "", err
	}
	buf, _ := json.Marshal(bars)
	return string(buf), nil
}

// quoteTool wraps the C3 fetcher pool as the get_realtime_quote tool.
type quoteTool struct{ pool *fetcher.Pool }

func NewQuoteTool(pool *fetcher.Pool) Tool { return &quoteTool{pool: pool} }

func (t *quoteTool) Name() string        { return "get_realtime_quote" }
func (t *quoteTool) Description() string { return "Fetch the current live quote for a ticker" }
func (t *quoteTool) Schema() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{"ticker": map[string]interface{}{"type": "string"}},
		"required":   []string{"ticker"},
	}
}
func (t *quoteTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	ticker := stringArg(args, "ticker")
	q, err := t.pool.GetRealtime(ctx, ticker)
	if err != nil {
		return "", err
	}
	buf, _ := json.Marshal(q)
	return string(buf), nil
}

// trendTool wraps the C6 indicator engine as the analyze_trend tool.
type trendTool struct{ pool *fetcher.Pool }

func NewTrendTool(pool *fetcher.Pool) Tool { return &trendTool{pool: pool} }

func (t *trendTool) Name() string        { return "analyze_trend" }
func (t *trendTool) Description() string { return "Compute MA/MACD/RSI technicals and trend strength for a ticker" }
func (t *trendTool) Schema() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{"ticker": map[string]interface{}{"type": "string"}},
		"required":   []string{"ticker"},
	}
}
func (t *trendTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	ticker := stringArg(args, "ticker")
	bars, err := t.pool.GetHistory(ctx, ticker, evidence.HistoryDays)
	if err != nil {
		return "", err
	}
	snap := indicator.Snapshot(bars, nil, false)
	buf, _ := json.Marshal(snap)
	return string(buf), nil
}

// newsTool wraps the C4 news service as the search_stock_news tool.
type newsTool struct{ svc *newsintel.Service }

func NewNewsTool(svc *newsintel.Service) Tool { return &newsTool{svc: svc} }

func (t *newsTool) Name() string        { return "search_stock_news" }
func (t *newsTool) Description() string { return "Search recent news and commentary for a ticker" }
func (t *newsTool) Schema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"ticker": map[string]interface{}{"type": "string"},
			"name":   map[string]interface{}{"type": "string"},
		},
		"required": []string{"ticker"},
	}
}
func (t *newsTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	ticker := stringArg(args, "ticker")
	name := stringArg(args, "name")
	intel := t.svc.Search(ctx, ticker, name, false, newsintel.MaxSearchDimensions)
	buf, _ := json.Marshal(intel)
	return string(buf), nil
}

// sectorRankingTool ranks a fixed watchlist by trend strength, standing
// in for a sector-relative ranking capability the agent can call
// without a dedicated sector data source.
type sectorRankingTool struct {
	pool    *fetcher.Pool
	tickers []string
}

func NewSectorRankingTool(pool *fetcher.Pool, tickers []string) Tool {
	return &sectorRankingTool{pool: pool, tickers: tickers}
}

func (t *sectorRankingTool) Name() string { return "get_sector_rankings" }
func (t *sectorRankingTool) Description() string {
	return "Rank the configured watchlist by technical trend strength"
}
func (t *sectorRankingTool) Schema() map[string]interface{} {
	return map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
}
func (t *sectorRankingTool) Execute(ctx context.Context, _ map[string]interface{}) (string, error) {
	type ranked struct {
		Ticker        string  `json:"ticker"`
		TrendStrength float64 `json:"trend_strength"`
	}
	var out []ranked
	for _, tk := range t.tickers {
		bars, err := t.pool.GetHistory(ctx, tk, 60)
		if err != nil {
			continue
		}
		snap := indicator.Snapshot(bars, nil, false)
		out = append(out, ranked{Ticker: tk, TrendStrength: snap.TrendStrength})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TrendStrength > out[j].TrendStrength })
	buf, _ := json.Marshal(out)
	return string(buf), nil
}
