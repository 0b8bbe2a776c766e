package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/dsa-core/dsa-core/internal/apperr"
	"github.com/dsa-core/dsa-core/internal/model"
)

// YahooSource implements Source using the Yahoo Finance public chart
// API, adapted from the teacher's YahooFetcher (which only ever fetched
// one configured index) into a general ticker resolver covering US, HK,
// and CN symbols by mapping to Yahoo's own suffix conventions.
type YahooSource struct {
	Client *http.Client
}

// NewYahooSource builds a YahooSource with an optional proxy, matching
// the teacher's transport construction.
func NewYahooSource(proxyURL string) *YahooSource {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &YahooSource{Client: &http.Client{Timeout: 10 * time.Second, Transport: transport}}
}

func (y *YahooSource) ID() string       { return "yahoo" }
func (y *YahooSource) Priority() int    { return 10 }
func (y *YahooSource) SupportsMarket(m model.Market) bool {
	return m == model.MarketUS || m == model.MarketHK || m == model.MarketCN
}

func (y *YahooSource) yahooSymbol(canon string, mkt model.Market) string {
	switch mkt {
	case model.MarketHK:
		return fmt.Sprintf("%s.HK", trimLeadingZeros(strings.TrimPrefix(canon, "HK")))
	case model.MarketCN:
		if len(canon) == 6 && canon[0] == '6' {
			return canon + ".SS"
		}
		return canon + ".SZ"
	default:
		return canon
	}
}

func trimLeadingZeros(s string) string {
	i := 0
	for i < len(s)-1 && s[i] == '0' {
		i++
	}
	return s[i:]
}

type yahooChart struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Meta       struct {
				ShortName string `json:"shortName"`
			} `json:"meta"`
			Indicators struct {
				Quote []struct {
					Open   []interface{} `json:"open"`
					High   []interface{} `json:"high"`
					Low    []interface{} `json:"low"`
					Close  []interface{} `json:"close"`
					Volume []interface{} `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}

func (y *YahooSource) fetchChart(ctx context.Context, symbol, interval, rng string) (*yahooChart, error) {
	u := fmt.Sprintf("https://query1.finance.yahoo.com/v8/finance/chart/%s?interval=%s&range=%s",
		url.PathEscape(symbol), interval, rng)
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := y.Client.Do(req)
	if err != nil {
		return nil, apperr.SourceTransient("yahoo request failed", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.SourceTransient("yahoo read body failed", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperr.SourceTransient(fmt.Sprintf("yahoo status %d", resp.StatusCode), nil)
	}
	var chart yahooChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, apperr.SourceTransient("yahoo malformed response", err)
	}
	if chart.Chart.Error != nil {
		return nil, apperr.SourceTransient(chart.Chart.Error.Description, nil)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Timestamp) == 0 {
		return nil, apperr.SourceTransient("yahoo returned no data", nil)
	}
	return &chart, nil
}

func candlesFromChart(chart *yahooChart) []model.Candle {
	result := chart.Chart.Result[0]
	quote := result.Indicators.Quote[0]
	bars := make([]model.Candle, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(quote.Close) {
			break
		}
		o, h, l, c := toFloat(quote.Open[i]), toFloat(quote.High[i]), toFloat(quote.Low[i]), toFloat(quote.Close[i])
		if o == 0 && h == 0 && l == 0 && c == 0 {
			continue
		}
		var vol float64
		if i < len(quote.Volume) {
			vol = toFloat(quote.Volume[i])
		}
		bars = append(bars, model.Candle{Date: time.Unix(ts, 0).UTC(), Open: o, High: h, Low: l, Close: c, Volume: vol})
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return dedupByDate(bars)
}

func dedupByDate(bars []model.Candle) []model.Candle {
	out := bars[:0]
	var lastDay string
	for _, b := range bars {
		day := b.Date.Format("2006-01-02")
		if day == lastDay {
			continue
		}
		lastDay = day
		out = append(out, b)
	}
	return out
}

func rangeForDays(days int) string {
	switch {
	case days <= 30:
		return "1mo"
	case days <= 90:
		return "3mo"
	case days <= 180:
		return "6mo"
	case days <= 365:
		return "1y"
	default:
		return "2y"
	}
}

func (y *YahooSource) GetHistory(ctx context.Context, ticker string, days int) ([]model.Candle, error) {
	mkt := model.InferMarket(ticker)
	symbol := ticker
	if !isIndexSymbol(ticker) {
		symbol = y.yahooSymbol(ticker, mkt)
	}
	chart, err := y.fetchChart(ctx, symbol, "1d", rangeForDays(days))
	if err != nil {
		return nil, err
	}
	bars := candlesFromChart(chart)
	if len(bars) > days {
		bars = bars[len(bars)-days:]
	}
	return bars, nil
}

func isIndexSymbol(s string) bool {
	return len(s) > 0 && s[0] == '^'
}

func (y *YahooSource) GetRealtime(ctx context.Context, ticker string) (model.Quote, error) {
	mkt := model.InferMarket(ticker)
	symbol := ticker
	if !isIndexSymbol(ticker) {
		symbol = y.yahooSymbol(ticker, mkt)
	}
	chart, err := y.fetchChart(ctx, symbol, "1d", "5d")
	if err != nil {
		return model.Quote{}, err
	}
	bars := candlesFromChart(chart)
	if len(bars) == 0 {
		return model.Quote{}, apperr.SourceTransient("yahoo: no price data", nil)
	}
	last := bars[len(bars)-1]
	changePct := 0.0
	if len(bars) >= 2 && bars[len(bars)-2].Close != 0 {
		changePct = (last.Close - bars[len(bars)-2].Close) / bars[len(bars)-2].Close * 100
	}
	return model.Quote{
		Price:     last.Close,
		ChangePct: changePct,
		Timestamp: last.Date,
		SourceID:  y.ID(),
	}, nil
}

func (y *YahooSource) GetName(ctx context.Context, ticker string) (string, error) {
	mkt := model.InferMarket(ticker)
	symbol := ticker
	if !isIndexSymbol(ticker) {
		symbol = y.yahooSymbol(ticker, mkt)
	}
	chart, err := y.fetchChart(ctx, symbol, "1d", "1d")
	if err != nil {
		return "", err
	}
	name := chart.Chart.Result[0].Meta.ShortName
	if name == "" {
		return "", apperr.SourceTransient("yahoo returned no name", nil)
	}
	return name, nil
}
