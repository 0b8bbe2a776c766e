package fetcher

import (
	"context"
	"time"

	"github.com/dsa-core/dsa-core/internal/model"
)

// MockSource returns controllable fixed data for tests, adapted from
// the teacher's collector.MockFetcher.
type MockSource struct {
	Markets   []model.Market
	Bars      []model.Candle
	Quote     model.Quote
	Name      string
	FailAfter int // with FailErr set, this many calls succeed and every later call fails (0 fails immediately)
	calls     int
	FailErr   error
}

func (m *MockSource) ID() string    { return "mock" }
func (m *MockSource) Priority() int { return 1 }
func (m *MockSource) SupportsMarket(mkt model.Market) bool {
	if len(m.Markets) == 0 {
		return true
	}
	for _, x := range m.Markets {
		if x == mkt {
			return true
		}
	}
	return false
}

func (m *MockSource) shouldFail() bool {
	m.calls++
	return m.FailErr != nil && m.calls > m.FailAfter
}

func (m *MockSource) GetHistory(_ context.Context, _ string, days int) ([]model.Candle, error) {
	if m.shouldFail() {
		return nil, m.FailErr
	}
	if m.Bars != nil {
		return m.Bars, nil
	}
	return generateBars(100.0, days), nil
}

func (m *MockSource) GetRealtime(_ context.Context, _ string) (model.Quote, error) {
	if m.shouldFail() {
		return model.Quote{}, m.FailErr
	}
	q := m.Quote
	if q.Timestamp.IsZero() {
		q.Timestamp = time.Now()
	}
	return q, nil
}

func (m *MockSource) GetName(_ context.Context, _ string) (string, error) {
	if m.shouldFail() {
		return "", m.FailErr
	}
	return m.Name, nil
}

func generateBars(basePrice float64, count int) []model.Candle {
	if count <= 0 {
		count = 1
	}
	bars := make([]model.Candle, count)
	start := time.Now().AddDate(0, 0, -count)
	for i := 0; i < count; i++ {
		p := basePrice * (1 + float64(i-count/2)*0.001)
		bars[i] = model.Candle{
			Date: start.AddDate(0, 0, i), Open: p * 0.999, High: p * 1.005,
			Low: p * 0.995, Close: p, Volume: 1000000,
		}
	}
	return bars
}
