package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/dsa-core/dsa-core/internal/apperr"
	"github.com/dsa-core/dsa-core/internal/model"
)

// VendorSource implements Source over a token-authenticated REST API,
// adapted from the teacher's VsTraderFetcher (a single-symbol proxy
// backend) into a general A-share/HK vendor client keyed by
// TUSHARE_TOKEN. It serves daily bars only; there is no weekly
// aggregation.
type VendorSource struct {
	id      string
	BaseURL string
	Token   string
	Client  *http.Client
	markets map[model.Market]bool
	prio    int
}

// NewVendorSource builds a VendorSource for the given markets.
func NewVendorSource(id, baseURL, token string, priority int, markets ...model.Market) *VendorSource {
	m := map[model.Market]bool{}
	for _, mk := range markets {
		m[mk] = true
	}
	return &VendorSource{
		id:      id,
		BaseURL: baseURL,
		Token:   token,
		Client:  &http.Client{Timeout: 10 * time.Second},
		markets: m,
		prio:    priority,
	}
}

func (v *VendorSource) ID() string    { return v.id }
func (v *VendorSource) Priority() int { return v.prio }
func (v *VendorSource) SupportsMarket(m model.Market) bool { return v.markets[m] }

type vendorBar struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
	Amount    float64 `json:"amount"`
}

func (v *VendorSource) authedRequest(ctx context.Context, endpoint string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, err
	}
	if v.Token != "" {
		req.Header.Set("Authorization", "Bearer "+v.Token)
	}
	resp, err := v.Client.Do(req)
	if err != nil {
		return nil, apperr.SourceTransient("vendor request failed", err)
	}
	return resp, nil
}

func (v *VendorSource) GetHistory(ctx context.Context, ticker string, days int) ([]model.Candle, error) {
	endpoint := fmt.Sprintf("%s/api/v1/bars/daily?symbol=%s&limit=%d", v.BaseURL, ticker, days)
	resp, err := v.authedRequest(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, apperr.SourceTransient(fmt.Sprintf("vendor status %d: %s", resp.StatusCode, string(body)), nil)
	}
	var bars []vendorBar
	if err := json.NewDecoder(resp.Body).Decode(&bars); err != nil {
		return nil, apperr.SourceTransient("vendor malformed bars", err)
	}
	out := make([]model.Candle, len(bars))
	for i, b := range bars {
		out[i] = model.Candle{
			Date: time.Unix(b.Timestamp, 0).UTC(), Open: b.Open, High: b.High,
			Low: b.Low, Close: b.Close, Volume: b.Volume, Amount: b.Amount,
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (v *VendorSource) GetRealtime(ctx context.Context, ticker string) (model.Quote, error) {
	endpoint := fmt.Sprintf("%s/api/v1/quote?symbol=%s", v.BaseURL, ticker)
	resp, err := v.authedRequest(ctx, endpoint)
	if err != nil {
		return model.Quote{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return model.Quote{}, apperr.SourceTransient(fmt.Sprintf("vendor status %d", resp.StatusCode), nil)
	}
	var result struct {
		Price     float64 `json:"price"`
		ChangePct float64 `json:"change_pct"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return model.Quote{}, apperr.SourceTransient("vendor malformed quote", err)
	}
	return model.Quote{Price: result.Price, ChangePct: result.ChangePct, Timestamp: time.Now(), SourceID: v.ID()}, nil
}

func (v *VendorSource) GetName(ctx context.Context, ticker string) (string, error) {
	endpoint := fmt.Sprintf("%s/api/v1/name?symbol=%s", v.BaseURL, ticker)
	resp, err := v.authedRequest(ctx, endpoint)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", apperr.SourceTransient(fmt.Sprintf("vendor status %d", resp.StatusCode), nil)
	}
	var result struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", apperr.SourceTransient("vendor malformed name response", err)
	}
	if result.Name == "" {
		return "", apperr.SourceTransient("vendor returned empty name", nil)
	}
	return result.Name, nil
}
